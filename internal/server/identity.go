// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
)

const (
	// UserHeader carries the numeric id of the caller, set by the upstream
	// identity layer. The server never authenticates it.
	UserHeader = "X-User-ID"
	// RequestIDHeader echoes the request id back to the caller.
	RequestIDHeader = "X-Request-ID"
)

type contextKey int

const userKey contextKey = iota

// userMiddleware stores the X-User-ID header in the request context. A
// malformed or non-positive id is rejected with 400.
func userMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			slog.Debug("rejecting malformed user id", "path", r.URL.Path, "value", raw)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"X-User-ID must be a positive integer"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, id)))
	})
}

// UserFromContext returns the caller id set by the X-User-ID header.
func UserFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey).(int64)
	return id, ok
}

// requestIDMiddleware reuses an incoming X-Request-ID or lets chi assign
// one, and echoes it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RequestIDHeader, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r)
	})
	return middleware.RequestID(echo)
}

// RequestIDFromContext returns the id assigned to the current request.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}
