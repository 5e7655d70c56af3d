// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/propagation"
)

// unmatchedRoute labels requests no route pattern matched.
const unmatchedRoute = "unmatched"

// recoverPanics turns a handler panic into a 500 response.
func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := oops.Code(CodeInternal).
				With("method", r.Method).
				With("path", r.URL.Path).
				Errorf("handler panic: %v", rec)
			h.writeError(w, r, "handler panicked", err)
		}()
		next.ServeHTTP(w, r)
	})
}

// extractTrace copies an incoming W3C traceparent into the request context so
// log records carry trace_id and span_id.
func (h *Handler) extractTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := h.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// observe logs each request and counts it by route pattern and status.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		h.metrics.RecordHTTPRequest(route, m.Code)

		h.logger.Log(r.Context(), requestLevel(m.Code), "http request",
			"method", r.Method,
			"route", route,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration.Round(time.Microsecond),
		)
	})
}

func requestLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
