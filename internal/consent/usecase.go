package consent

import "context"

type Usecase interface {
	// Apply runs a request, accept, block or unblock action.
	Apply(ctx context.Context, cmd ActionCommand) (*ActionDTO, error)
	Status(ctx context.Context, q StatusQuery) (*RelationshipDTO, error)
	// CanDeliver reports whether sender may message recipient right now.
	CanDeliver(ctx context.Context, q DeliverQuery) (*DeliverabilityDTO, error)
}
