// Package storagetest starts a throwaway Postgres for repository tests.
package storagetest

import (
	"context"
	"database/sql"
	"log"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// StartBun runs postgres:16-alpine, connects bun to it and creates the given
// tables. When Docker is unavailable it returns a nil DB and a no-op cleanup so
// callers can skip their database tests.
func StartBun(ctx context.Context, tables ...any) (*bun.DB, func()) {
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vibetrust"),
		postgres.WithUsername("vibetrust"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Printf("failed to start container, database tests will be skipped: %s", err)
		return nil, func() {}
	}
	terminate := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable", "application_name=test")
	if err != nil {
		terminate()
		log.Fatalf("failed to get connection string: %v", err)
	}

	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqlDB, pgdialect.New())
	if err := sqlDB.PingContext(ctx); err != nil {
		terminate()
		log.Fatalf("failed to ping db: %v", err)
	}

	for _, t := range tables {
		if _, err := db.NewCreateTable().Model(t).IfNotExists().Exec(ctx); err != nil {
			db.Close()
			terminate()
			log.Fatalf("failed to create table for %T: %v", t, err)
		}
	}

	return db, func() {
		db.Close()
		terminate()
	}
}
