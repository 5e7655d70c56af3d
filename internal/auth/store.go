// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// UserStore is the identity persistence contract.
type UserStore interface {
	// Exists reports whether an identity holds username.
	Exists(ctx context.Context, username string) (bool, error)

	// Insert allocates username with the given stored credential.
	// The existence check and the allocation are one atomic step; a
	// username that is already allocated yields an error wrapping
	// ErrDuplicateUsername.
	Insert(ctx context.Context, username, password string) error

	// GetPassword returns the stored credential for username.
	// Returns ("", false, nil) if no such identity exists.
	GetPassword(ctx context.Context, username string) (string, bool, error)
}

// Handle is a UserStore scoped to one operation. Release must be called
// exactly once when the operation finishes, on every exit path.
type Handle interface {
	UserStore
	Release()
}

// Backend hands out handles onto durable storage.
type Backend interface {
	Acquire(ctx context.Context) (Handle, error)
}
