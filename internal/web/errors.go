// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// Transport-level error codes.
const (
	CodeInvalidBody      = "WEB_INVALID_BODY"
	CodeMissingParameter = "WEB_MISSING_PARAMETER"
	CodeInternal         = "WEB_INTERNAL"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

var usernameMessages = map[auth.Reason]string{
	auth.ReasonTooShort:        "Username must be alphanumeric and at least 3 characters long.",
	auth.ReasonNotAlphanumeric: "Username must be alphanumeric and at least 3 characters long.",
}

var passwordMessages = map[auth.Reason]string{
	auth.ReasonTooShort:         "Password must be at least 8 characters.",
	auth.ReasonMissingUppercase: "Password must include at least one uppercase letter.",
	auth.ReasonMissingLowercase: "Password must include at least one lowercase letter.",
	auth.ReasonMissingDigit:     "Password must include at least one number.",
	auth.ReasonMissingSpecial:   "Password must include at least one special character.",
}

// describe maps a service error to its HTTP status and response body.
func describe(err error) (int, errorBody) {
	code := errutil.Code(err)
	reason, _ := auth.ReasonOf(err)

	switch {
	case errors.Is(err, auth.ErrInvalidUsername):
		return http.StatusUnprocessableEntity, errorBody{
			Detail: messageFor(usernameMessages, reason, auth.ErrInvalidUsername),
			Code:   auth.CodeInvalidUsername,
			Reason: string(reason),
		}
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity, errorBody{
			Detail: messageFor(passwordMessages, reason, auth.ErrWeakPassword),
			Code:   auth.CodeWeakPassword,
			Reason: string(reason),
		}
	case errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusBadRequest, errorBody{Detail: "Username already exists", Code: auth.CodeUsernameTaken}
	case errors.Is(err, auth.ErrMissingCredentials):
		return http.StatusBadRequest, errorBody{Detail: "Username and password are required.", Code: auth.CodeMissingCredentials}
	case errors.Is(err, auth.ErrUnknownUser):
		return http.StatusNotFound, errorBody{Detail: "Username does not exist.", Code: auth.CodeUnknownUser}
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusUnauthorized, errorBody{Detail: "Invalid password.", Code: auth.CodeInvalidPassword}
	case code == CodeInvalidBody:
		return http.StatusUnprocessableEntity, errorBody{Detail: err.Error(), Code: CodeInvalidBody}
	case code == CodeMissingParameter:
		return http.StatusBadRequest, errorBody{Detail: err.Error(), Code: CodeMissingParameter}
	default:
		return http.StatusInternalServerError, errorBody{Detail: "Internal server error.", Code: CodeInternal}
	}
}

func messageFor(messages map[auth.Reason]string, reason auth.Reason, fallback error) string {
	if msg, ok := messages[reason]; ok {
		return msg
	}
	return fallback.Error()
}

// resultLabel is the metrics label for an operation outcome.
func resultLabel(err error) string {
	if err == nil {
		return observability.ResultSuccess
	}
	if code := errutil.Code(err); code != "" {
		return code
	}
	return observability.ResultFailure
}
