package storage

import (
	"context"
	"database/sql"

	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OpenBun connects bun to Postgres. An empty dsn yields a nil DB, which the
// repositories treat as "relational store unavailable".
func OpenBun(ctx context.Context, dsn string) (*bun.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqlDB, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "storage.OpenBun.Ping: ")
	}
	return db, nil
}

// Migrate creates a table for each model and runs any extra statements.
func Migrate(ctx context.Context, db *bun.DB, models []any, extra ...string) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, m := range models {
			if _, err := tx.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
				return pkgerrors.Wrapf(err, "storage.Migrate.CreateTable(%T): ", m)
			}
		}
		for _, stmt := range extra {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return pkgerrors.Wrap(err, "storage.Migrate.Exec: ")
			}
		}
		return nil
	})
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if pkgerrors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
