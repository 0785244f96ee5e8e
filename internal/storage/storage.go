// Package storage holds the key-value capability the protocol is built on and
// the relational database plumbing shared by the repositories.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vibetrust/config"
)

var ErrNotFound = errors.New("storage: key not found")

// Counter is the state of a windowed counter after an increment.
type Counter struct {
	Count     int64
	ExpiresAt time.Time
}

// KeyValue is the minimal store the protocol needs. A zero ttl means the entry
// never expires.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent or expired. It reports whether
	// this call was the one that stored it.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Incr atomically increments key. The window starts when the counter is
	// created and is not extended by later increments.
	Incr(ctx context.Context, key string, window time.Duration) (Counter, error)
}

// Backend is a KeyValue owned by the process.
type Backend interface {
	KeyValue
	// Sweep removes expired entries and returns how many were dropped.
	Sweep(ctx context.Context) (int64, error)
	Close() error
}

// Open builds the backend named in cfg.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory, "":
		return NewMemory(), nil
	case config.BackendPostgres:
		return NewPostgresKV(ctx, cfg.KVDSN())
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
}

// GetJSON loads key and decodes it into T.
func GetJSON[T any](ctx context.Context, kv KeyValue, key string) (T, error) {
	var out T
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return out, nil
}

func SetJSON(ctx context.Context, kv KeyValue, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, raw, ttl)
}

// MarshalJSON encodes a value for storage.
func MarshalJSON(value any) ([]byte, error) {
	return json.Marshal(value)
}
