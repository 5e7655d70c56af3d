// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/auth/sqlite"
	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

func openStore(t *testing.T) *sqlite.UserStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")

	m, err := store.NewMigrator(store.DialectSQLite, path)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	s, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	h, err := s.Acquire(ctx)
	require.NoError(t, err)
	defer h.Release()

	exists, err := h.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	_, ok, err := h.GetPassword(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.Insert(ctx, "alice", "stored"))

	exists, err = h.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	pw, ok, err := h.GetPassword(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "stored", pw)

	exists, err = h.Exists(ctx, "ALICE")
	require.NoError(t, err)
	assert.False(t, exists, "lookups are case-sensitive")
}

func TestUserStore_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	h, err := s.Acquire(ctx)
	require.NoError(t, err)
	defer h.Release()

	require.NoError(t, h.Insert(ctx, "alice", "first"))

	err = h.Insert(ctx, "alice", "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
	errutil.AssertErrorCode(t, err, auth.CodeDuplicateUsername)

	pw, _, err := h.GetPassword(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "first", pw)
}

func TestUserStore_MissingSchema(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	h, err := s.Acquire(ctx)
	require.NoError(t, err)
	defer h.Release()

	err = h.Insert(ctx, "alice", "stored")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrDuplicateUsername)
	errutil.AssertErrorCode(t, err, "USER_INSERT_FAILED")
}

func TestUserStore_ConcurrentRegister(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	svc, err := auth.NewService(s, auth.WithHasher(auth.PlaintextHasher{}))
	require.NoError(t, err)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Register(ctx, "alice", "Password1!")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, auth.ErrUsernameTaken):
			taken++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, taken)

	require.NoError(t, svc.Login(ctx, "alice", "Password1!"))
	assert.NoError(t, s.Ping(ctx))
}
