package identity

import (
	"context"

	"vibetrust/internal/session"
)

type principalLookup struct {
	repo Repository
}

// NewPrincipalLookup exposes the registry to the session guard.
func NewPrincipalLookup(repo Repository) session.PrincipalLookup {
	return principalLookup{repo: repo}
}

func (p principalLookup) LookupPrincipal(ctx context.Context, handle string) (session.Principal, error) {
	ident, err := p.repo.GetByHandle(ctx, handle)
	if err != nil {
		return session.Principal{}, err
	}
	return session.Principal{
		Handle:       ident.Handle,
		Status:       string(ident.Status),
		KeyRotatedAt: ident.KeyRotatedAt,
	}, nil
}
