package consent

import (
	"context"

	models "vibetrust/internal/consent/model"
)

// Change is a relationship write together with the transition that caused it.
type Change struct {
	Relationship *models.Relationship
	Transition   *models.Transition
}

type Repository interface {
	// Get returns the relationship for the ordered pair. A pair that was never
	// written reads as status none.
	Get(ctx context.Context, from, to string) (*models.Relationship, error)
	// Save writes every change atomically where the store allows it.
	Save(ctx context.Context, changes ...Change) error
	History(ctx context.Context, from, to string) ([]models.Transition, error)
}

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks vibetrust/internal/consent Repository
