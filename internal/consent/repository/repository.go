package repository

import (
	"context"
	"database/sql"
	"time"

	"vibetrust/internal/consent"
	models "vibetrust/internal/consent/model"
	"vibetrust/internal/storage"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const (
	relationshipPrefix = "consent:"
	historyPrefix      = "consent-history:"
)

// ConsentRepository stores relationships and their transitions in Postgres,
// mirrored to the key-value store which takes over when the database is
// missing or failing.
type ConsentRepository struct {
	db     *bun.DB
	kv     storage.KeyValue
	logger logger.Logger
}

func NewConsentRepository(db *bun.DB, kv storage.KeyValue, logger logger.Logger) *ConsentRepository {
	return &ConsentRepository{db: db, kv: kv, logger: logger}
}

var _ consent.Repository = (*ConsentRepository)(nil)

func pairKey(prefix, from, to string) string {
	return prefix + from + ":" + to
}

func none(from, to string) *models.Relationship {
	return &models.Relationship{From: from, To: to, Status: models.StatusNone}
}

func (r *ConsentRepository) Get(ctx context.Context, from, to string) (*models.Relationship, error) {
	if r.db != nil {
		rel := new(models.Relationship)
		err := r.db.NewSelect().
			Model(rel).
			Where("from_handle = ?", from).
			Where("to_handle = ?", to).
			Scan(ctx)
		if err == nil {
			return rel, nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return none(from, to), nil
		}
		r.logger.Warn("consent select failed, reading kv copy", "from", from, "to", to, "err", errors.Wrap(err, "consentRepo.Get.Scan: "))
	}

	rel, err := storage.GetJSON[models.Relationship](ctx, r.kv, pairKey(relationshipPrefix, from, to))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return none(from, to), nil
		}
		return nil, appErrors.ErrStoreUnavailable(errors.Wrap(err, "consentRepo.Get.KV: "))
	}
	return &rel, nil
}

func (r *ConsentRepository) Save(ctx context.Context, changes ...consent.Change) error {
	now := time.Now().UTC()
	for _, c := range changes {
		c.Relationship.UpdatedAt = now
	}

	if r.db != nil {
		err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, c := range changes {
				_, err := tx.NewInsert().
					Model(c.Relationship).
					On("CONFLICT (from_handle, to_handle) DO UPDATE").
					Set("status = EXCLUDED.status").
					Set("message = EXCLUDED.message").
					Set("requested_at = EXCLUDED.requested_at").
					Set("responded_at = EXCLUDED.responded_at").
					Set("updated_at = EXCLUDED.updated_at").
					Exec(ctx)
				if err != nil {
					return errors.Wrap(err, "upsert relationship")
				}
				if c.Transition == nil {
					continue
				}
				if _, err := tx.NewInsert().Model(c.Transition).Exec(ctx); err != nil {
					return errors.Wrap(err, "insert transition")
				}
			}
			return nil
		})
		if err == nil {
			if err := r.writeKV(ctx, changes); err != nil {
				r.logger.Warn("consent backup write failed", "err", err)
			}
			return nil
		}
		r.logger.Warn("consent write failed, writing kv copy", "err", errors.Wrap(err, "consentRepo.Save.Tx: "))
	}

	if err := r.writeKV(ctx, changes); err != nil {
		return appErrors.ErrStoreUnavailable(errors.Wrap(err, "consentRepo.Save.KV: "))
	}
	return nil
}

// writeKV stores each relationship and appends its transition to the pair's
// history list. The history append is a read then write and is not atomic.
func (r *ConsentRepository) writeKV(ctx context.Context, changes []consent.Change) error {
	for _, c := range changes {
		rel := c.Relationship
		if err := storage.SetJSON(ctx, r.kv, pairKey(relationshipPrefix, rel.From, rel.To), rel, 0); err != nil {
			return err
		}
		if c.Transition == nil {
			continue
		}
		key := pairKey(historyPrefix, rel.From, rel.To)
		history, err := storage.GetJSON[[]models.Transition](ctx, r.kv, key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		history = append(history, *c.Transition)
		if err := storage.SetJSON(ctx, r.kv, key, history, 0); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConsentRepository) History(ctx context.Context, from, to string) ([]models.Transition, error) {
	if r.db != nil {
		var history []models.Transition
		err := r.db.NewSelect().
			Model(&history).
			Where("from_handle = ?", from).
			Where("to_handle = ?", to).
			OrderExpr("at ASC, id ASC").
			Scan(ctx)
		if err == nil {
			return history, nil
		}
		r.logger.Warn("consent history select failed, reading kv copy", "from", from, "to", to, "err", errors.Wrap(err, "consentRepo.History.Scan: "))
	}

	history, err := storage.GetJSON[[]models.Transition](ctx, r.kv, pairKey(historyPrefix, from, to))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, appErrors.ErrStoreUnavailable(errors.Wrap(err, "consentRepo.History.KV: "))
	}
	return history, nil
}
