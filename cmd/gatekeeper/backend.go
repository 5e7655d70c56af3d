// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/gatekeeper/internal/auth"
	authpg "github.com/holomush/gatekeeper/internal/auth/postgres"
	authsqlite "github.com/holomush/gatekeeper/internal/auth/sqlite"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/internal/xdg"
)

// connectBaseDelay is the first backoff interval between connection attempts.
const connectBaseDelay = 250 * time.Millisecond

type memoryBackend struct {
	*auth.MemoryStore
}

func (memoryBackend) Ping(context.Context) error { return nil }
func (memoryBackend) Close() error               { return nil }

type postgresBackend struct {
	*authpg.UserStore
}

func (b postgresBackend) Close() error {
	b.UserStore.Close()
	return nil
}

// openBackend opens the store named by cfg.Store.Driver. SQL stores are
// retried with exponential backoff until cfg.Store.ConnectTimeout elapses.
func openBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memoryBackend{auth.NewMemoryStore()}, nil
	case config.DriverPostgres:
		return connectWithRetry(ctx, cfg.Store.Driver, cfg.Store.ConnectTimeout(), func(ctx context.Context) (Backend, error) {
			s, err := authpg.Open(ctx, cfg.Store.DatabaseURL)
			if err != nil {
				return nil, err
			}
			return postgresBackend{s}, nil
		})
	case config.DriverSQLite:
		if err := xdg.EnsureDir(filepath.Dir(cfg.Store.SQLitePath)); err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("path", cfg.Store.SQLitePath).Wrap(err)
		}
		return connectWithRetry(ctx, cfg.Store.Driver, cfg.Store.ConnectTimeout(), func(ctx context.Context) (Backend, error) {
			s, err := authsqlite.Open(ctx, cfg.Store.SQLitePath)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "store.driver").
			Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func connectWithRetry(ctx context.Context, driver string, budget time.Duration, open func(context.Context) (Backend, error)) (Backend, error) {
	var (
		backend  Backend
		attempts int
	)
	backoff := retry.WithMaxDuration(budget, retry.NewExponential(connectBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		b, err := open(ctx)
		if err != nil {
			slog.WarnContext(ctx, "store connection failed, retrying",
				"driver", driver,
				"attempt", attempts,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		backend = b
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("driver", driver).
			With("attempts", attempts).
			Wrap(err)
	}

	slog.InfoContext(ctx, "connected to store", "driver", driver, "attempts", attempts)
	return backend, nil
}

// newMigrator creates a migrator for the configured SQL store.
func newMigrator(cfg *config.Config) (*store.Migrator, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return store.NewMigrator(store.DialectPostgres, cfg.Store.DatabaseURL)
	case config.DriverSQLite:
		if err := xdg.EnsureDir(filepath.Dir(cfg.Store.SQLitePath)); err != nil {
			return nil, oops.Code("MIGRATION_FAILED").With("path", cfg.Store.SQLitePath).Wrap(err)
		}
		return store.NewMigrator(store.DialectSQLite, cfg.Store.SQLitePath)
	default:
		return nil, oops.Code("MIGRATION_UNSUPPORTED_DRIVER").
			With("driver", cfg.Store.Driver).
			Errorf("store driver %q has no schema to migrate", cfg.Store.Driver)
	}
}

// openStore opens the backend and, for SQL stores with auto-migrate on,
// applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config, deps *StoreDeps) (Backend, error) {
	backend, err := deps.BackendOpener(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Store.Driver == config.DriverMemory || !cfg.Store.AutoMigrate {
		return backend, nil
	}

	if err := runAutoMigrate(cfg, deps); err != nil {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Warn("failed to close store after migration error", "error", closeErr)
		}
		return nil, err
	}
	return backend, nil
}

func runAutoMigrate(cfg *config.Config, deps *StoreDeps) error {
	migrator, err := deps.MigratorFactory(cfg)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	slog.Info("database migrations applied", "driver", cfg.Store.Driver)
	return nil
}

// newService builds the credential service over backend with the configured
// policies and password storage.
func newService(cfg *config.Config, backend auth.Backend) (*auth.Service, error) {
	var hasher auth.PasswordHasher
	switch cfg.Auth.PasswordStorage {
	case config.StoragePlaintext:
		hasher = auth.PlaintextHasher{}
	default:
		hasher = auth.NewArgon2idHasher(auth.Argon2Params{
			MemoryKiB:   uint32(cfg.Auth.Argon2.MemoryKiB),  //nolint:gosec // range checked by config.Validate
			Iterations:  uint32(cfg.Auth.Argon2.Iterations), //nolint:gosec // range checked by config.Validate
			Parallelism: uint8(cfg.Auth.Argon2.Parallelism), //nolint:gosec // range checked by config.Validate
		})
	}

	return auth.NewService(backend,
		auth.WithUsernamePolicy(auth.UsernamePolicy{MinLength: cfg.Auth.UsernameMinLength}),
		auth.WithPasswordPolicy(auth.PasswordPolicy{MinLength: cfg.Auth.PasswordMinLength}),
		auth.WithHasher(hasher),
	)
}
