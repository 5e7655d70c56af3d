// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Backend. It is the reference implementation
// of the store contract and backs the "memory" store driver.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]string
}

var (
	_ Backend   = (*MemoryStore)(nil)
	_ UserStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]string)}
}

// Acquire returns a handle onto the shared map. Releasing it is a no-op.
func (s *MemoryStore) Acquire(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return memoryHandle{s}, nil
}

// Exists reports whether username is allocated.
func (s *MemoryStore) Exists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[username]
	return ok, nil
}

// Insert allocates username under the write lock.
func (s *MemoryStore) Insert(_ context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return DuplicateUsername(username, nil)
	}
	s.users[username] = password
	return nil
}

// GetPassword returns the stored credential for username.
func (s *MemoryStore) GetPassword(_ context.Context, username string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pw, ok := s.users[username]
	return pw, ok, nil
}

// Len returns the number of stored identities.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

type memoryHandle struct {
	*MemoryStore
}

func (memoryHandle) Release() {}
