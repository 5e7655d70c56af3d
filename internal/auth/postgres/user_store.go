// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides the PostgreSQL auth.Backend.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
)

// querier is the subset of a pgx connection the store issues statements on.
// Both *pgxpool.Conn and pgxmock pools satisfy it.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type acquireFunc func(ctx context.Context) (querier, func(), error)

// UserStore implements auth.Backend using PostgreSQL. Each Acquire checks a
// connection out of the pool; Release returns it.
type UserStore struct {
	pool    *pgxpool.Pool
	acquire acquireFunc
}

var _ auth.Backend = (*UserStore)(nil)

// NewUserStore creates a UserStore over pool. The caller owns the pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		pool: pool,
		acquire: func(ctx context.Context) (querier, func(), error) {
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return nil, nil, err
			}
			return conn, conn.Release, nil
		},
	}
}

// newUserStoreWithQuerier builds a store whose handles all share q.
func newUserStoreWithQuerier(q querier) *UserStore {
	return &UserStore{
		acquire: func(context.Context) (querier, func(), error) {
			return q, func() {}, nil
		},
	}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*UserStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			Wrap(err)
	}
	return NewUserStore(pool), nil
}

// Ping checks that the database is reachable.
func (s *UserStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close closes the underlying pool.
func (s *UserStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Acquire checks out a pooled connection.
func (s *UserStore) Acquire(ctx context.Context) (auth.Handle, error) {
	q, release, err := s.acquire(ctx)
	if err != nil {
		return nil, oops.Code("DB_ACQUIRE_FAILED").Wrap(err)
	}
	return &handle{q: q, release: release}, nil
}

type handle struct {
	q       querier
	release func()
}

func (h *handle) Release() {
	if h.release != nil {
		h.release()
		h.release = nil
	}
}

// Exists reports whether a row holds username.
func (h *handle) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := h.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("USER_QUERY_FAILED").
			With("operation", "check username").
			With("username", username).
			Wrap(err)
	}
	return exists, nil
}

// Insert adds a row. The UNIQUE constraint on username makes the existence
// check and the write one step.
func (h *handle) Insert(ctx context.Context, username, password string) error {
	_, err := h.q.Exec(ctx, `
		INSERT INTO users (id, username, password, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		ulid.Make().String(),
		username,
		password,
		time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return auth.DuplicateUsername(username, err)
		}
		return oops.Code("USER_INSERT_FAILED").
			With("operation", "insert user").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// GetPassword returns the stored credential for username.
func (h *handle) GetPassword(ctx context.Context, username string) (string, bool, error) {
	var password string
	err := h.q.QueryRow(ctx,
		`SELECT password FROM users WHERE username = $1`,
		username,
	).Scan(&password)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.Code("USER_QUERY_FAILED").
			With("operation", "get password").
			With("username", username).
			Wrap(err)
	}
	return password, true, nil
}
