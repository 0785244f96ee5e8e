package identity

import (
	"context"
	"time"

	models "vibetrust/internal/identity/model"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, ident *models.Identity) error
	GetByHandle(ctx context.Context, handle string) (*models.Identity, error)
	HandleExists(ctx context.Context, handle string) (bool, error)

	// ApplyRotation installs newKey and moves the session watermark. It fails
	// unless the identity is still active.
	ApplyRotation(ctx context.Context, handle, newKey string, at time.Time) (*models.Identity, error)
	SetKeyRotatedAt(ctx context.Context, handle string, at time.Time) (*models.Identity, error)
	Revoke(ctx context.Context, handle string, at time.Time) (*models.Identity, error)

	SaveLoginChallenge(ctx context.Context, c *models.LoginChallenge, ttl time.Duration) error
	GetLoginChallenge(ctx context.Context, id uuid.UUID) (*models.LoginChallenge, error)
	// ConsumeLoginChallenge reports whether this call was the first to use it.
	ConsumeLoginChallenge(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error)
}

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks vibetrust/internal/identity Repository
