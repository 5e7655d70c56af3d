// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the credential service over HTTP with JSON bodies.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/propagation"

	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// CredentialService is the service the handlers call. *auth.Service implements it.
type CredentialService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics records outcomes into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithPropagator overrides the trace-context propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(h *Handler) { h.propagator = p }
}

// Handler serves the gatekeeper API.
type Handler struct {
	svc        CredentialService
	logger     *slog.Logger
	metrics    *observability.Metrics
	propagator propagation.TextMapPropagator
	root       http.Handler
}

// NewHandler builds the API handler over svc.
func NewHandler(svc CredentialService, opts ...Option) *Handler {
	h := &Handler{
		svc:        svc,
		logger:     slog.Default(),
		propagator: propagation.TraceContext{},
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleHome)
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("GET /register/available", h.handleAvailable)
	mux.HandleFunc("GET /login", h.handleLogin)
	mux.HandleFunc("POST /logout", h.handleLogout)

	h.root = h.recoverPanics(h.extractTrace(h.observe(mux)))
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

type messageResponse struct {
	Message string `json:"message"`
}

type availabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

type credentialsRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func (h *Handler) handleHome(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "gatekeeper user auth service"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, err := decodeCredentials(r)
	if err == nil {
		err = h.svc.Register(r.Context(), username, password)
	}
	h.metrics.RecordRegistration(resultLabel(err))
	if err != nil {
		h.writeError(w, r, "registration rejected", err)
		return
	}

	h.logger.InfoContext(r.Context(), "user registered", "username", username)
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "User registered successfully!"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	username := q.Get("username")

	err := h.svc.Login(r.Context(), username, q.Get("password"))
	h.metrics.RecordLogin(resultLabel(err))
	if err != nil {
		h.writeError(w, r, "login rejected", err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", "username", username)
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Login successful!"})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		h.writeError(w, r, "logout failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Logout successful!"})
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		h.writeError(w, r, "availability check rejected",
			oops.Code(CodeMissingParameter).Errorf("username is required."))
		return
	}

	available, err := h.svc.UsernameAvailable(r.Context(), username)
	if err != nil {
		h.writeError(w, r, "availability check failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, availabilityResponse{Username: username, Available: available})
}

// decodeCredentials reads a {"username","password"} body. Both fields must be
// present and be strings.
func decodeCredentials(r *http.Request) (string, string, error) {
	var req credentialsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", "", oops.Code(CodeInvalidBody).Errorf("request body is required")
		}
		return "", "", oops.Code(CodeInvalidBody).Errorf("invalid JSON body: %v", err)
	}

	var missing []string
	if req.Username == nil {
		missing = append(missing, "username")
	}
	if req.Password == nil {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return "", "", oops.Code(CodeInvalidBody).
			With("fields", missing).
			Errorf("field required: %s", strings.Join(missing, ", "))
	}
	return *req.Username, *req.Password, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, body := describe(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	errutil.LogErrorContext(r.Context(), h.logger, level, msg, err, "status", status)
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}
