// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"unicode"
	"unicode/utf8"
)

// Default policy bounds.
const (
	DefaultUsernameMinLength = 3
	DefaultPasswordMinLength = 8
)

// Reason identifies the policy rule a candidate failed.
type Reason string

// Username reasons.
const (
	ReasonTooShort        Reason = "too_short"
	ReasonNotAlphanumeric Reason = "not_alphanumeric"
)

// Password reasons. ReasonTooShort is shared with usernames.
const (
	ReasonMissingUppercase Reason = "missing_uppercase"
	ReasonMissingLowercase Reason = "missing_lowercase"
	ReasonMissingDigit     Reason = "missing_digit"
	ReasonMissingSpecial   Reason = "missing_special"
)

// Outcome is the result of validating a candidate against a policy.
// Reason is empty when Valid is true.
type Outcome struct {
	Valid  bool
	Reason Reason
}

func pass() Outcome { return Outcome{Valid: true} }

func fail(r Reason) Outcome { return Outcome{Reason: r} }

// UsernamePolicy validates candidate usernames.
type UsernamePolicy struct {
	MinLength int
}

// DefaultUsernamePolicy returns the policy used when none is configured.
func DefaultUsernamePolicy() UsernamePolicy {
	return UsernamePolicy{MinLength: DefaultUsernameMinLength}
}

// Validate checks, in order: length, then that every rune is in [A-Za-z0-9].
// The input is never trimmed or case-folded.
func (p UsernamePolicy) Validate(username string) Outcome {
	if utf8.RuneCountInString(username) < p.MinLength {
		return fail(ReasonTooShort)
	}
	for _, r := range username {
		if !isASCIIAlnum(r) {
			return fail(ReasonNotAlphanumeric)
		}
	}
	return pass()
}

// PasswordPolicy validates candidate passwords at registration time.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy returns the policy used when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: DefaultPasswordMinLength}
}

// Validate reports the first failing rule in this order: length, uppercase,
// lowercase, digit, special character.
func (p PasswordPolicy) Validate(password string) Outcome {
	if utf8.RuneCountInString(password) < p.MinLength {
		return fail(ReasonTooShort)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case isSpecial(r):
			special = true
		}
	}

	switch {
	case !upper:
		return fail(ReasonMissingUppercase)
	case !lower:
		return fail(ReasonMissingLowercase)
	case !digit:
		return fail(ReasonMissingDigit)
	case !special:
		return fail(ReasonMissingSpecial)
	}
	return pass()
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// isSpecial reports whether r is neither a word character (letter, number,
// underscore) nor whitespace.
func isSpecial(r rune) bool {
	if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
		return false
	}
	return true
}
