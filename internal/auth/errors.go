// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel error kinds. Every error returned by Service wraps exactly one of
// these (or none, for backend failures), so callers discriminate with errors.Is.
var (
	// ErrInvalidUsername is returned by Register when the username fails UsernamePolicy.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrWeakPassword is returned by Register when the password fails PasswordPolicy.
	ErrWeakPassword = errors.New("password does not meet complexity requirements")
	// ErrUsernameTaken is returned by Register when the username is already registered.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrMissingCredentials is returned by Login when username or password is empty.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrUnknownUser is returned by Login when no identity holds the username.
	ErrUnknownUser = errors.New("username does not exist")
	// ErrInvalidPassword is returned by Login when the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrDuplicateUsername is returned by UserStore.Insert when the username is allocated.
	ErrDuplicateUsername = errors.New("duplicate username")
)

// Error codes attached to returned errors.
const (
	CodeInvalidUsername    = "AUTH_INVALID_USERNAME"
	CodeWeakPassword       = "AUTH_WEAK_PASSWORD"
	CodeUsernameTaken      = "AUTH_USERNAME_TAKEN"
	CodeMissingCredentials = "AUTH_MISSING_CREDENTIALS"
	CodeUnknownUser        = "AUTH_UNKNOWN_USER"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeDuplicateUsername  = "STORE_DUPLICATE_USERNAME"
	CodeRegisterFailed     = "AUTH_REGISTER_FAILED"
	CodeLoginFailed        = "AUTH_LOGIN_FAILED"
	CodeLookupFailed       = "AUTH_LOOKUP_FAILED"
)

const reasonKey = "reason"

// DuplicateUsername builds the error a UserStore returns when Insert loses
// the race for a username.
func DuplicateUsername(username string, cause error) error {
	b := oops.Code(CodeDuplicateUsername).With("username", username)
	if cause != nil {
		return b.Wrap(errors.Join(ErrDuplicateUsername, cause))
	}
	return b.Wrap(ErrDuplicateUsername)
}

func invalidUsername(r Reason) error {
	return oops.Code(CodeInvalidUsername).With(reasonKey, string(r)).Wrap(ErrInvalidUsername)
}

func weakPassword(r Reason) error {
	return oops.Code(CodeWeakPassword).With(reasonKey, string(r)).Wrap(ErrWeakPassword)
}

// ReasonOf returns the policy reason carried by a Register validation error.
func ReasonOf(err error) (Reason, bool) {
	if !errors.Is(err, ErrInvalidUsername) && !errors.Is(err, ErrWeakPassword) {
		return "", false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "", false
	}
	r, ok := oopsErr.Context()[reasonKey].(string)
	if !ok || r == "" {
		return "", false
	}
	return Reason(r), true
}
