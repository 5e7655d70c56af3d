// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth is the credential-management core of gatekeeper.
//
// # Policies
//
// UsernamePolicy and PasswordPolicy are pure validators. Each returns an
// Outcome naming the first rule the candidate failed.
//
// # Storage
//
// A Backend hands out a Handle per operation; the Handle is a UserStore and
// must be released when the operation ends. MemoryStore is the in-process
// backend. SQL backends live in the postgres and sqlite subpackages.
//
// # Service
//
// Service ties the policies, a PasswordHasher and a Backend together:
//   - Register - validate username, then password, then allocate the name
//   - Login - compare a candidate password with the stored credential
//   - Logout - stateless acknowledgement
//   - UsernameAvailable - validate and check whether a name is free
//
// Errors wrap the package sentinels (ErrUsernameTaken, ErrUnknownUser, ...)
// and carry an oops code. Discriminate with errors.Is.
package auth
