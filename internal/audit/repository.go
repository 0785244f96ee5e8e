package audit

import (
	"context"

	"vibetrust/internal/storage"
	"vibetrust/pkg/logger"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const kvPrefix = "audit:"

type Appender interface {
	Append(ctx context.Context, e *Event) error
}

// Repository writes events to Postgres, or to the key-value store when the
// database is not configured or the insert fails.
type Repository struct {
	db     *bun.DB
	kv     storage.KeyValue
	logger logger.Logger
}

func NewRepository(db *bun.DB, kv storage.KeyValue, logger logger.Logger) *Repository {
	return &Repository{db: db, kv: kv, logger: logger}
}

func (r *Repository) Append(ctx context.Context, e *Event) error {
	if r.db != nil {
		_, err := r.db.NewInsert().Model(e).Exec(ctx)
		if err == nil {
			return nil
		}
		r.logger.Warn("audit insert failed, falling back to kv", "audit_id", e.ID, "err", err)
	}
	if r.kv == nil {
		return errors.New("auditRepo.Append: no store available")
	}
	if err := storage.SetJSON(ctx, r.kv, kvPrefix+e.IDString(), e, 0); err != nil {
		return errors.Wrap(err, "auditRepo.Append.KV: ")
	}
	return nil
}

// ListByHandle returns the newest events for handle. It reads Postgres only.
func (r *Repository) ListByHandle(ctx context.Context, handle string, limit int) ([]Event, error) {
	if r.db == nil {
		return nil, errors.New("auditRepo.ListByHandle: database not configured")
	}
	var events []Event
	err := r.db.NewSelect().
		Model(&events).
		Where("handle = ?", handle).
		OrderExpr("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "auditRepo.ListByHandle: ")
	}
	return events, nil
}
