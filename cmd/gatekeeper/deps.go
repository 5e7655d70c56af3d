package main

import (
	"context"
	"net"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/observability"
)

// StoreDeps contains injectable dependencies for commands that open the
// identity store. All fields with nil values will use their default implementations.
type StoreDeps struct {
	// BackendOpener opens the configured identity store.
	// Default: openBackend
	BackendOpener func(ctx context.Context, cfg *config.Config) (Backend, error)

	// MigratorFactory creates a schema migrator for the configured SQL store.
	// Default: newMigrator
	MigratorFactory func(cfg *config.Config) (AutoMigrator, error)
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	StoreDeps

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

func (d *StoreDeps) setDefaults() {
	if d.BackendOpener == nil {
		d.BackendOpener = openBackend
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(cfg *config.Config) (AutoMigrator, error) {
			m, err := newMigrator(cfg)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
}

func (d *ServeDeps) setDefaults() {
	d.StoreDeps.setDefaults()
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
}

// Backend is an identity store with a connection lifecycle.
type Backend interface {
	auth.Backend
	Ping(ctx context.Context) error
	Close() error
}

// AutoMigrator wraps the migrator methods used at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
