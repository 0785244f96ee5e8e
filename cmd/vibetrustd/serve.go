package main

import (
	"os"
	"os/signal"
	"syscall"

	"vibetrust/config"
	"vibetrust/internal/audit"
	consentModels "vibetrust/internal/consent/model"
	consentRepository "vibetrust/internal/consent/repository"
	consentUsecase "vibetrust/internal/consent/usecase"
	"vibetrust/internal/identity"
	identityModels "vibetrust/internal/identity/model"
	identityRepository "vibetrust/internal/identity/repository"
	identityUsecase "vibetrust/internal/identity/usecase"
	"vibetrust/internal/ratelimit"
	"vibetrust/internal/recovery"
	"vibetrust/internal/server"
	"vibetrust/internal/session"
	"vibetrust/internal/storage"
	"vibetrust/pkg/logger"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func loadConfig(name string) (*config.Config, *logger.Logger, error) {
	v, err := config.LoadConfig(name)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load config")
	}
	cfg, err := config.ParseConfig(v)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func getServeFunc(configName *string) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		cfg, log, err := loadConfig(*configName)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		kv, err := storage.Open(ctx, cfg)
		if err != nil {
			return errors.Wrap(err, "open key-value store")
		}
		defer kv.Close()

		db, err := storage.OpenBun(ctx, cfg.Bun.DSN)
		if err != nil {
			// The repositories run on the key-value store alone until the
			// database comes back.
			log.Warn("relational store unavailable, running on key-value store only", "err", err)
		}
		if db != nil {
			defer db.Close()
		}

		identities := identityRepository.NewIdentityRepository(db, kv, *log)
		principals := identity.NewPrincipalLookup(identities)
		guard := session.NewGuard(
			session.NewAuthority(cfg.Session.Secret),
			session.NewStore(kv, cfg.Session.TTL, nil),
			principals,
			*log,
		)
		limiter := ratelimit.New(kv, ratelimit.PoliciesFromConfig(cfg.RateLimits), *log, nil)
		verifier := recovery.NewVerifier(kv, cfg.Rotation, *log, nil)
		auditor, err := audit.NewRecorder(audit.NewRepository(db, kv, *log), cfg.Audit.Node, cfg.Audit.IPSalt, *log, nil)
		if err != nil {
			return errors.Wrap(err, "audit recorder")
		}

		identityUc := identityUsecase.NewIdentityUsecase(identities, guard, limiter, verifier, auditor, *log, *cfg)
		consentUc := consentUsecase.NewConsentUsecase(consentRepository.NewConsentRepository(db, kv, *log), guard, principals, limiter, *log)

		srv, err := server.New(cfg.Server, *log, identityUc, consentUc)
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	}
}

var relationalModels = []any{
	(*identityModels.Identity)(nil),
	(*consentModels.Relationship)(nil),
	(*consentModels.Transition)(nil),
	(*audit.Event)(nil),
}

var relationalIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_audit_events_handle ON audit_events (handle, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_consent_transitions_pair ON consent_transitions (from_handle, to_handle, at)`,
}

func getMigrateFunc(configName *string) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		cfg, log, err := loadConfig(*configName)
		if err != nil {
			return err
		}
		ctx := c.Context

		if cfg.Bun.DSN == "" {
			log.Warn("bun.dsn is empty, skipping relational tables")
		} else {
			db, err := storage.OpenBun(ctx, cfg.Bun.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.Migrate(ctx, db, relationalModels, relationalIndexes...); err != nil {
				return err
			}
			log.Info("relational tables ready", "tables", len(relationalModels))
		}

		if cfg.Storage.Backend != config.BackendPostgres {
			log.Info("key-value backend is in memory, nothing to migrate", "backend", cfg.Storage.Backend)
			return nil
		}
		kv, err := storage.NewPostgresKV(ctx, cfg.KVDSN())
		if err != nil {
			return err
		}
		defer kv.Close()
		if err := kv.EnsureSchema(ctx); err != nil {
			return err
		}
		log.Info("key-value tables ready")
		return nil
	}
}

func getSweepFunc(configName *string) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		cfg, log, err := loadConfig(*configName)
		if err != nil {
			return err
		}
		if cfg.Storage.Backend != config.BackendPostgres {
			log.Warn("in-memory store does not outlive the process, nothing to sweep")
			return nil
		}

		kv, err := storage.Open(c.Context, cfg)
		if err != nil {
			return err
		}
		defer kv.Close()

		n, err := kv.Sweep(c.Context)
		if err != nil {
			return errors.Wrap(err, "sweep")
		}
		log.Info("expired entries removed", "count", n)
		return nil
	}
}
