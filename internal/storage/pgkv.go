package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx ON kv_entries (expires_at) WHERE expires_at IS NOT NULL;
CREATE TABLE IF NOT EXISTS kv_counters (
	key        TEXT PRIMARY KEY,
	count      BIGINT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS kv_counters_expires_at_idx ON kv_counters (expires_at);
`

// pgxPool is the part of *pgxpool.Pool PostgresKV uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresKV is a durable Backend on two Postgres tables. Every operation is
// a single statement, so SetNX and Incr stay atomic across processes.
type PostgresKV struct {
	pool pgxPool
	now  func() time.Time
}

func NewPostgresKV(ctx context.Context, dsn string) (*PostgresKV, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "storage.NewPostgresKV.ParseConfig: ")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "storage.NewPostgresKV.NewWithConfig: ")
	}
	return &PostgresKV{pool: pool, now: time.Now}, nil
}

// EnsureSchema creates the KV tables if they are missing.
func (p *PostgresKV) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, kvSchema); err != nil {
		return pkgerrors.Wrap(err, "storage.EnsureSchema: ")
	}
	return nil
}

func (p *PostgresKV) expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := p.now().Add(ttl)
	return &t
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, p.now(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "storage.Get: ")
	}
	return value, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, p.expiry(ttl),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "storage.Set: ")
	}
	return nil
}

func (p *PostgresKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	// An expired row may be taken over; a live one makes the WHERE fail and
	// RETURNING yields nothing.
	var stored string
	err := p.pool.QueryRow(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		 WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= $4
		 RETURNING key`,
		key, value, p.expiry(ttl), p.now(),
	).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, pkgerrors.Wrap(err, "storage.SetNX: ")
	}
	return true, nil
}

func (p *PostgresKV) Incr(ctx context.Context, key string, window time.Duration) (Counter, error) {
	now := p.now()
	var c Counter
	err := p.pool.QueryRow(ctx,
		`INSERT INTO kv_counters (key, count, expires_at) VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO UPDATE SET
			count = CASE WHEN kv_counters.expires_at <= $3 THEN 1 ELSE kv_counters.count + 1 END,
			expires_at = CASE WHEN kv_counters.expires_at <= $3 THEN EXCLUDED.expires_at ELSE kv_counters.expires_at END
		 RETURNING count, expires_at`,
		key, now.Add(window), now,
	).Scan(&c.Count, &c.ExpiresAt)
	if err != nil {
		return Counter{}, pkgerrors.Wrap(err, "storage.Incr: ")
	}
	return c, nil
}

func (p *PostgresKV) Sweep(ctx context.Context) (int64, error) {
	now := p.now()
	entries, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "storage.Sweep.Entries: ")
	}
	counters, err := p.pool.Exec(ctx, `DELETE FROM kv_counters WHERE expires_at <= $1`, now)
	if err != nil {
		return entries.RowsAffected(), pkgerrors.Wrap(err, "storage.Sweep.Counters: ")
	}
	return entries.RowsAffected() + counters.RowsAffected(), nil
}

func (p *PostgresKV) Close() error {
	p.pool.Close()
	return nil
}
