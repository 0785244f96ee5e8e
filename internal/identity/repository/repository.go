package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	models "vibetrust/internal/identity/model"
	"vibetrust/internal/storage"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const (
	identityPrefix      = "identity:"
	challengePrefix     = "challenge:"
	challengeUsedPrefix = "challenge-used:"
)

// IdentityRepository keeps identities in Postgres and mirrors every write to
// the key-value store. When the database is not configured or a call fails,
// the key-value copy serves reads and takes writes. A kv copy with a later
// updated_at wins over the database row and is written back to it.
type IdentityRepository struct {
	db     *bun.DB
	kv     storage.KeyValue
	logger logger.Logger
}

func NewIdentityRepository(db *bun.DB, kv storage.KeyValue, logger logger.Logger) *IdentityRepository {
	return &IdentityRepository{db: db, kv: kv, logger: logger}
}

// mutableColumns are the only columns an update may touch.
var mutableColumns = []string{"signing_public_key", "key_rotated_at", "status", "updated_at"}

func identityKey(handle string) string {
	return identityPrefix + strings.ToLower(handle)
}

func (r *IdentityRepository) backup(ctx context.Context, ident *models.Identity) {
	if err := storage.SetJSON(ctx, r.kv, identityKey(ident.Handle), ident, 0); err != nil {
		r.logger.Warn("identity backup write failed", "handle", ident.Handle, "err", err)
	}
}

func (r *IdentityRepository) fromKV(ctx context.Context, handle string) (*models.Identity, error) {
	ident, err := storage.GetJSON[models.Identity](ctx, r.kv, identityKey(handle))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.ErrIdentityNotFound
		}
		return nil, appErrors.ErrStoreUnavailable(errors.Wrap(err, "identityRepo.fromKV: "))
	}
	return &ident, nil
}

// mirrorIfNewer returns the kv copy of row when it carries a later write. That
// happens when an update reached only the key-value store during an outage.
func (r *IdentityRepository) mirrorIfNewer(ctx context.Context, row *models.Identity) *models.Identity {
	mirror, err := storage.GetJSON[models.Identity](ctx, r.kv, identityKey(row.Handle))
	if err != nil || !newerMirror(&mirror, row) {
		return nil
	}
	return &mirror
}

func newerMirror(mirror, row *models.Identity) bool {
	return mirror.ID == row.ID && mirror.UpdatedAt.After(row.UpdatedAt)
}

// restore writes a newer kv copy back over the database row.
func (r *IdentityRepository) restore(ctx context.Context, mirror *models.Identity) {
	_, err := r.db.NewUpdate().
		Model(mirror).
		Column(mutableColumns...).
		WherePK().
		Where("updated_at < ?", mirror.UpdatedAt).
		Exec(ctx)
	if err != nil {
		r.logger.Warn("identity restore from kv failed", "handle", mirror.Handle, "err", errors.Wrap(err, "identityRepo.restore: "))
	}
}

// promote inserts an identity that was created only in the key-value store.
// The database stays authoritative for absence.
func (r *IdentityRepository) promote(ctx context.Context, handle string) (*models.Identity, error) {
	ident, err := r.fromKV(ctx, handle)
	if err != nil {
		if !errors.Is(err, appErrors.ErrIdentityNotFound) {
			r.logger.Warn("identity kv lookup failed", "handle", handle, "err", err)
		}
		return nil, appErrors.ErrIdentityNotFound
	}
	_, err = r.db.NewInsert().Model(ident).On("CONFLICT (handle) DO NOTHING").Exec(ctx)
	if err != nil {
		r.logger.Warn("identity promote from kv failed", "handle", handle, "err", errors.Wrap(err, "identityRepo.promote: "))
	}
	return ident, nil
}

func (r *IdentityRepository) Create(ctx context.Context, ident *models.Identity) error {
	ident.Handle = strings.ToLower(ident.Handle)
	if ident.Status == "" {
		ident.Status = models.StatusActive
	}

	if r.db != nil {
		_, err := r.db.NewInsert().Model(ident).Returning("*").Exec(ctx)
		if err == nil {
			r.backup(ctx, ident)
			return nil
		}
		if storage.IsUniqueViolation(err) {
			return appErrors.ErrHandleTaken
		}
		r.logger.Warn("identity insert failed, falling back to kv", "handle", ident.Handle, "err", errors.Wrap(err, "identityRepo.Create.Insert: "))
	}

	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = now
	}
	ident.UpdatedAt = now

	raw, err := storage.MarshalJSON(ident)
	if err != nil {
		return errors.Wrap(err, "identityRepo.Create.Marshal: ")
	}
	created, err := r.kv.SetNX(ctx, identityKey(ident.Handle), raw, 0)
	if err != nil {
		return appErrors.ErrStoreUnavailable(errors.Wrap(err, "identityRepo.Create.SetNX: "))
	}
	if !created {
		return appErrors.ErrHandleTaken
	}
	return nil
}

func (r *IdentityRepository) GetByHandle(ctx context.Context, handle string) (*models.Identity, error) {
	handle = strings.ToLower(handle)
	if r.db != nil {
		ident := new(models.Identity)
		err := r.db.NewSelect().Model(ident).Where("handle = ?", handle).Scan(ctx)
		if err == nil {
			if mirror := r.mirrorIfNewer(ctx, ident); mirror != nil {
				r.logger.Warn("kv copy is newer than the database row, restoring it", "handle", handle)
				r.restore(ctx, mirror)
				return mirror, nil
			}
			return ident, nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return r.promote(ctx, handle)
		}
		r.logger.Warn("identity select failed, reading kv copy", "handle", handle, "err", errors.Wrap(err, "identityRepo.GetByHandle.Scan: "))
	}
	return r.fromKV(ctx, handle)
}

func (r *IdentityRepository) HandleExists(ctx context.Context, handle string) (bool, error) {
	_, err := r.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, appErrors.ErrIdentityNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *IdentityRepository) ApplyRotation(ctx context.Context, handle, newKey string, at time.Time) (*models.Identity, error) {
	return r.update(ctx, handle, func(ident *models.Identity) error {
		if err := requireActive(ident); err != nil {
			return err
		}
		ident.SigningPublicKey = newKey
		ident.KeyRotatedAt = &at
		return nil
	})
}

func (r *IdentityRepository) SetKeyRotatedAt(ctx context.Context, handle string, at time.Time) (*models.Identity, error) {
	return r.update(ctx, handle, func(ident *models.Identity) error {
		if err := requireActive(ident); err != nil {
			return err
		}
		ident.KeyRotatedAt = &at
		return nil
	})
}

func (r *IdentityRepository) Revoke(ctx context.Context, handle string, at time.Time) (*models.Identity, error) {
	return r.update(ctx, handle, func(ident *models.Identity) error {
		if ident.Status == models.StatusRevoked {
			return appErrors.ErrIdentityRevoked
		}
		ident.Status = models.StatusRevoked
		ident.KeyRotatedAt = &at
		return nil
	})
}

func requireActive(ident *models.Identity) error {
	switch ident.Status {
	case models.StatusActive:
		return nil
	case models.StatusRevoked:
		return appErrors.ErrIdentityRevoked
	default:
		return appErrors.ErrIdentityInactive
	}
}

// update runs apply against a row locked for the duration of the transaction,
// or against the key-value copy when the database cannot be used.
func (r *IdentityRepository) update(ctx context.Context, handle string, apply func(*models.Identity) error) (*models.Identity, error) {
	handle = strings.ToLower(handle)

	if r.db != nil {
		ident := new(models.Identity)
		err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			err := tx.NewSelect().Model(ident).Where("handle = ?", handle).For("UPDATE").Scan(ctx)
			if err != nil {
				return err
			}
			if mirror := r.mirrorIfNewer(ctx, ident); mirror != nil {
				r.logger.Warn("kv copy is newer than the database row, applying on top of it", "handle", handle)
				*ident = *mirror
			}
			if err := apply(ident); err != nil {
				return err
			}
			ident.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
			_, err = tx.NewUpdate().
				Model(ident).
				Column(mutableColumns...).
				WherePK().
				Exec(ctx)
			return err
		})
		if err == nil {
			r.backup(ctx, ident)
			return ident, nil
		}
		if _, ok := appErrors.As(err); ok {
			return nil, err
		}
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("identity update failed, writing kv copy", "handle", handle, "err", errors.Wrap(err, "identityRepo.update.Tx: "))
		}
	}

	ident, err := r.fromKV(ctx, handle)
	if err != nil {
		return nil, err
	}
	if err := apply(ident); err != nil {
		return nil, err
	}
	ident.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := storage.SetJSON(ctx, r.kv, identityKey(handle), ident, 0); err != nil {
		return nil, appErrors.ErrStoreUnavailable(errors.Wrap(err, "identityRepo.update.KV: "))
	}
	return ident, nil
}

func (r *IdentityRepository) SaveLoginChallenge(ctx context.Context, c *models.LoginChallenge, ttl time.Duration) error {
	if err := storage.SetJSON(ctx, r.kv, challengePrefix+c.ID.String(), c, ttl); err != nil {
		return errors.Wrap(err, "identityRepo.SaveLoginChallenge: ")
	}
	return nil
}

func (r *IdentityRepository) GetLoginChallenge(ctx context.Context, id uuid.UUID) (*models.LoginChallenge, error) {
	c, err := storage.GetJSON[models.LoginChallenge](ctx, r.kv, challengePrefix+id.String())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.ErrInvalidChallenge
		}
		return nil, errors.Wrap(err, "identityRepo.GetLoginChallenge: ")
	}
	return &c, nil
}

func (r *IdentityRepository) ConsumeLoginChallenge(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error) {
	ok, err := r.kv.SetNX(ctx, challengeUsedPrefix+id.String(), []byte("1"), ttl)
	if err != nil {
		return false, errors.Wrap(err, "identityRepo.ConsumeLoginChallenge: ")
	}
	return ok, nil
}
