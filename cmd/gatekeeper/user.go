// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/config"
)

// userAction is one credential operation run against the service.
type userAction func(ctx context.Context, svc *auth.Service, username, password string) error

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register or verify users in the configured store",
	}

	cmd.AddCommand(newUserActionCmd(
		"add <username>",
		"Register a new user",
		"User registered successfully!",
		func(ctx context.Context, svc *auth.Service, username, password string) error {
			return svc.Register(ctx, username, password)
		},
	))
	cmd.AddCommand(newUserActionCmd(
		"verify <username>",
		"Check a username and password like a login would",
		"Login successful!",
		func(ctx context.Context, svc *auth.Service, username, password string) error {
			return svc.Login(ctx, username, password)
		},
	))

	return cmd
}

func newUserActionCmd(use, short, success string, action userAction) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runUserAction(cmd.Context(), cfg, cmd, nil, args[0], password, success, action)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password for the user")
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag registered above

	return cmd
}

// runUserAction opens the store, runs action, and prints success. If deps is
// nil, default implementations are used.
func runUserAction(
	ctx context.Context,
	cfg *config.Config,
	cmd *cobra.Command,
	deps *StoreDeps,
	username, password, success string,
	action userAction,
) error {
	if deps == nil {
		deps = &StoreDeps{}
	}
	deps.setDefaults()

	if cfg.Store.Driver == config.DriverMemory {
		slog.Warn("store driver is memory; changes are discarded on exit")
	}

	backend, err := openStore(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Warn("error closing store", "error", closeErr)
		}
	}()

	svc, err := newService(cfg, backend)
	if err != nil {
		return err
	}

	if err := action(ctx, svc, username, password); err != nil {
		return oops.With("username", username).Wrap(err)
	}
	cmd.Println(success)
	return nil
}
