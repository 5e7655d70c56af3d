// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Service registers identities and authenticates login attempts.
type Service struct {
	backend   Backend
	usernames UsernamePolicy
	passwords PasswordPolicy
	hasher    PasswordHasher
}

// Option configures a Service.
type Option func(*Service)

// WithUsernamePolicy overrides the default username policy.
func WithUsernamePolicy(p UsernamePolicy) Option {
	return func(s *Service) { s.usernames = p }
}

// WithPasswordPolicy overrides the default password policy.
func WithPasswordPolicy(p PasswordPolicy) Option {
	return func(s *Service) { s.passwords = p }
}

// WithHasher overrides the default argon2id hasher.
func WithHasher(h PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

// NewService creates a Service over backend.
func NewService(backend Backend, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("backend is required")
	}
	s := &Service{
		backend:   backend,
		usernames: DefaultUsernamePolicy(),
		passwords: DefaultPasswordPolicy(),
		hasher:    NewArgon2idHasher(DefaultArgon2Params()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("hasher is required")
	}
	return s, nil
}

// Register creates a new identity. Username format is checked before password
// format, and both before uniqueness. A failed Register leaves the store
// unchanged.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if out := s.usernames.Validate(username); !out.Valid {
		return invalidUsername(out.Reason)
	}
	if out := s.passwords.Validate(password); !out.Valid {
		return weakPassword(out.Reason)
	}

	stored, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code(CodeRegisterFailed).
			With("operation", "hash password").
			Wrap(err)
	}

	h, err := s.backend.Acquire(ctx)
	if err != nil {
		return oops.Code(CodeRegisterFailed).
			With("operation", "acquire store").
			Wrap(err)
	}
	defer h.Release()

	if err := h.Insert(ctx, username, stored); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return oops.Code(CodeUsernameTaken).
				With("username", username).
				Wrap(ErrUsernameTaken)
		}
		return oops.Code(CodeRegisterFailed).
			With("operation", "insert user").
			Wrap(err)
	}
	return nil
}

// Login checks username and password against the stored credential.
// Complexity rules are not re-applied.
func (s *Service) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return oops.Code(CodeMissingCredentials).Wrap(ErrMissingCredentials)
	}

	h, err := s.backend.Acquire(ctx)
	if err != nil {
		return oops.Code(CodeLoginFailed).
			With("operation", "acquire store").
			Wrap(err)
	}
	defer h.Release()

	stored, ok, err := h.GetPassword(ctx, username)
	if err != nil {
		return oops.Code(CodeLoginFailed).
			With("operation", "get password").
			Wrap(err)
	}
	if !ok {
		return oops.Code(CodeUnknownUser).
			With("username", username).
			Wrap(ErrUnknownUser)
	}

	valid, err := s.hasher.Verify(password, stored)
	if err != nil {
		return oops.Code(CodeLoginFailed).
			With("operation", "verify password").
			Wrap(err)
	}
	if !valid {
		return oops.Code(CodeInvalidPassword).
			With("username", username).
			Wrap(ErrInvalidPassword)
	}
	return nil
}

// Logout acknowledges a logout. No session state exists, so it always succeeds.
func (s *Service) Logout(_ context.Context) error {
	return nil
}

// UsernameAvailable reports whether username could be registered right now.
// Malformed names yield the same error Register would.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if out := s.usernames.Validate(username); !out.Valid {
		return false, invalidUsername(out.Reason)
	}

	h, err := s.backend.Acquire(ctx)
	if err != nil {
		return false, oops.Code(CodeLookupFailed).
			With("operation", "acquire store").
			Wrap(err)
	}
	defer h.Release()

	exists, err := h.Exists(ctx, username)
	if err != nil {
		return false, oops.Code(CodeLookupFailed).
			With("operation", "check username").
			Wrap(err)
	}
	return !exists, nil
}
