package identity

import (
	"context"
)

type Usecase interface {
	// Register creates an identity and opens its first session.
	Register(ctx context.Context, cmd RegisterCommand) (*RegistrationDTO, error)
	HandleAvailable(ctx context.Context, cmd HandleCheckCommand) (*HandleAvailabilityDTO, error)
	Get(ctx context.Context, handle string) (*IdentityDTO, error)

	CreateLoginChallenge(ctx context.Context, cmd LoginChallengeCommand) (*ChallengeDTO, error)
	CompleteLogin(ctx context.Context, cmd CompleteLoginCommand) (*SessionDTO, error)

	RotateKey(ctx context.Context, cmd RotateKeyCommand) (*RotationDTO, error)
	Revoke(ctx context.Context, cmd RevokeCommand) (*RevocationDTO, error)
	InvalidateAllSessions(ctx context.Context, cmd InvalidateSessionsCommand) (*InvalidationDTO, error)
}
