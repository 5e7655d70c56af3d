// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sqlite provides a single-file auth.Backend on the pure-Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/holomush/gatekeeper/internal/auth"
)

const busyTimeoutMS = "5000"

// UserStore implements auth.Backend on a SQLite file. Each Acquire checks out
// a *sql.Conn. Writes are serialized because SQLite allows one writer.
type UserStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

var _ auth.Backend = (*UserStore)(nil)

// Open opens (creating if needed) the database file at path. The users table
// must exist; run the sqlite migrations first.
func Open(ctx context.Context, path string) (*UserStore, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "open db").
			With("path", path).
			Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping db").
			With("path", path).
			Wrap(err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return &UserStore{db: db}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+busyTimeoutMS+")")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// Ping checks that the database file is usable.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *UserStore) Close() error {
	if err := s.db.Close(); err != nil {
		return oops.Code("DB_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// Acquire checks out a connection.
func (s *UserStore) Acquire(ctx context.Context) (auth.Handle, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, oops.Code("DB_ACQUIRE_FAILED").Wrap(err)
	}
	return &handle{conn: conn, writeMu: &s.writeMu}, nil
}

type handle struct {
	conn    *sql.Conn
	writeMu *sync.Mutex
}

func (h *handle) Release() {
	if h.conn != nil {
		_ = h.conn.Close() //nolint:errcheck // returns the conn to the pool
		h.conn = nil
	}
}

// Exists reports whether a row holds username.
func (h *handle) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := h.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)`,
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

// Insert adds a row; the UNIQUE constraint on username rejects duplicates.
func (h *handle) Insert(ctx context.Context, username, password string) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	_, err := h.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password, created_at) VALUES (?, ?, ?, ?)`,
		ulid.Make().String(),
		username,
		password,
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
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
	err := h.conn.QueryRowContext(ctx,
		`SELECT password FROM users WHERE username = ?`,
		username,
	).Scan(&password)
	if errors.Is(err, sql.ErrNoRows) {
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

func isUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
