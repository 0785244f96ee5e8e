package session

import (
	"context"
	"strings"
	"time"

	"vibetrust/internal/storage"

	"github.com/google/uuid"
)

const keyPrefix = "session:"

// Store keeps sessions in the key-value store under their own TTL.
type Store struct {
	kv  storage.KeyValue
	ttl time.Duration
	now func() time.Time
}

func NewStore(kv storage.KeyValue, ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{kv: kv, ttl: ttl, now: now}
}

func (s *Store) Create(ctx context.Context, handle string) (Session, error) {
	now := s.now().Truncate(Precision)
	sess := Session{
		ID:        uuid.NewString(),
		Handle:    strings.ToLower(handle),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := storage.SetJSON(ctx, s.kv, keyPrefix+sess.ID, sess, s.ttl); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Lookup returns storage.ErrNotFound for unknown or expired sessions.
func (s *Store) Lookup(ctx context.Context, sessionID string) (Session, error) {
	return storage.GetJSON[Session](ctx, s.kv, keyPrefix+sessionID)
}
