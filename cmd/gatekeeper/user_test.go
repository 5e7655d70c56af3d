// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestUserCommands_SQLiteRoundTrip(t *testing.T) {
	isolateEnv(t)
	storeArgs := sqliteArgs(t)

	out, err := execute(t, append([]string{"user", "add", "alice1", "--password", "Passw0rd!"}, storeArgs...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "User registered successfully!")

	out, err = execute(t, append([]string{"user", "verify", "alice1", "--password", "Passw0rd!"}, storeArgs...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Login successful!")

	_, err = execute(t, append([]string{"user", "verify", "alice1", "--password", "wrong"}, storeArgs...)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	_, err = execute(t, append([]string{"user", "add", "alice1", "--password", "Passw0rd!"}, storeArgs...)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrUsernameTaken)
}

func TestUserCommands_RequirePassword(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "user", "add", "alice1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestUserCommands_ValidationErrors(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "user", "add", "ab", "--password", "Passw0rd!")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidUsername)
	errutil.AssertErrorContext(t, err, "username", "ab")
}

func TestRunUserAction_UsesInjectedBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.PasswordStorage = config.StoragePlaintext
	mem := auth.NewMemoryStore()
	deps := &StoreDeps{
		BackendOpener: func(context.Context, *config.Config) (Backend, error) {
			return memoryBackend{mem}, nil
		},
	}
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	register := func(ctx context.Context, svc *auth.Service, u, p string) error { return svc.Register(ctx, u, p) }
	err := runUserAction(context.Background(), cfg, cmd, deps, "alice1", "Passw0rd!", "done", register)
	require.NoError(t, err)
	assert.Equal(t, "done\n", buf.String())
	assert.Equal(t, 1, mem.Len())
}
