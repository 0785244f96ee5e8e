package session

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"vibetrust/internal/storage"
	"vibetrust/pkg/errors"
	"vibetrust/pkg/logger"
)

// PrincipalLookup resolves a handle to its current identity state.
type PrincipalLookup interface {
	LookupPrincipal(ctx context.Context, handle string) (Principal, error)
}

// Lookup is the single session capability shared by every authenticated
// operation.
type Lookup interface {
	Require(ctx context.Context, token, handle string) (Session, error)
	Issue(ctx context.Context, handle string) (string, Session, error)
}

type Guard struct {
	authority  *Authority
	store      *Store
	principals PrincipalLookup
	logger     logger.Logger
	now        func() time.Time
}

func NewGuard(authority *Authority, store *Store, principals PrincipalLookup, logger logger.Logger) *Guard {
	return &Guard{authority: authority, store: store, principals: principals, logger: logger, now: store.now}
}

// Issue creates a session for handle and returns its bearer token.
func (g *Guard) Issue(ctx context.Context, handle string) (string, Session, error) {
	sess, err := g.store.Create(ctx, handle)
	if err != nil {
		g.logger.Error("failed to store session", "handle", handle, "err", err)
		return "", Session{}, errors.ErrStoreUnavailable(err)
	}
	return g.authority.Issue(sess.ID, sess.Handle), sess, nil
}

// Require authenticates token as handle. Sessions issued before the identity's
// last key rotation are rejected.
func (g *Guard) Require(ctx context.Context, token, handle string) (Session, error) {
	handle = strings.ToLower(handle)
	if token == "" {
		return Session{}, errors.ErrUnauthorized
	}

	res := g.authority.Verify(token, handle)
	if !res.Valid {
		if res.Reason == errors.ReasonHandleMismatch {
			return Session{}, errors.ErrHandleMismatch
		}
		return Session{}, errors.ErrUnauthorized
	}

	sess, err := g.store.Lookup(ctx, res.SessionID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return Session{}, errors.ErrSessionExpired
		}
		g.logger.Error("session lookup failed", "err", err)
		return Session{}, errors.ErrStoreUnavailable(err)
	}
	if sess.Expired(g.now()) {
		return Session{}, errors.ErrSessionExpired
	}
	if sess.Handle != handle {
		return Session{}, errors.ErrHandleMismatch
	}

	p, err := g.principals.LookupPrincipal(ctx, handle)
	if err != nil {
		if stderrors.Is(err, errors.ErrIdentityNotFound) {
			return Session{}, errors.ErrUnauthorized
		}
		return Session{}, err
	}
	if p.Status != StatusActive {
		if p.Status == StatusRevoked {
			return Session{}, errors.ErrIdentityRevoked
		}
		return Session{}, errors.ErrIdentityInactive
	}
	if p.KeyRotatedAt != nil && sess.IssuedAt.Before(*p.KeyRotatedAt) {
		return Session{}, errors.ErrSessionRotated
	}
	return sess, nil
}
