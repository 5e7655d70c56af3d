// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/postgres"
	"github.com/holomush/gatekeeper/internal/store"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("gatekeeper_test"),
		tcpostgres.WithUsername("gatekeeper"),
		tcpostgres.WithPassword("gatekeeper"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(store.DialectPostgres, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func cleanupUser(t *testing.T, username string) {
	t.Cleanup(func() {
		_, _ = testPool.Exec(context.Background(), `DELETE FROM users WHERE username = $1`, username)
	})
}

func TestUserStore_Integration(t *testing.T) {
	ctx := context.Background()
	s := postgres.NewUserStore(testPool)
	cleanupUser(t, "pgalice")

	h, err := s.Acquire(ctx)
	require.NoError(t, err)
	defer h.Release()

	exists, err := h.Exists(ctx, "pgalice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, h.Insert(ctx, "pgalice", "stored"))

	pw, ok, err := h.GetPassword(ctx, "pgalice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "stored", pw)

	err = h.Insert(ctx, "pgalice", "other")
	assert.ErrorIs(t, err, auth.ErrDuplicateUsername)

	_, ok, err = h.GetPassword(ctx, "PGALICE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserStore_ConcurrentRegisterIntegration(t *testing.T) {
	ctx := context.Background()
	s := postgres.NewUserStore(testPool)
	cleanupUser(t, "racer")

	svc, err := auth.NewService(s, auth.WithHasher(auth.PlaintextHasher{}))
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Register(ctx, "racer", "Password1!"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.NoError(t, svc.Login(ctx, "racer", "Password1!"))
	assert.Equal(t, int32(0), testPool.Stat().AcquiredConns(), "every handle released")
}
