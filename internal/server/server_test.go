// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compgraph/compgraph/internal/metrics"
	"github.com/compgraph/compgraph/internal/server"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func newBareServer(t *testing.T, cfg server.Config) *server.Server {
	t.Helper()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	srv, err := server.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func serve(srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_New_EmptyListenAddr(t *testing.T) {
	_, err := server.New(server.Config{})
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeServerConfigInvalid), "got %s", cgerr.CodeOf(err))
	assert.Contains(t, err.Error(), "listen address is required")
}

func TestServer_New_InvalidRateLimit(t *testing.T) {
	_, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: 5},
	})
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeServerConfigInvalid))
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := newBareServer(t, server.Config{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestServer_SecurityHeaders(t *testing.T) {
	srv := newBareServer(t, server.Config{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestServer_RequestID(t *testing.T) {
	srv := newBareServer(t, server.Config{})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	first := w.Header().Get(server.RequestIDHeader)
	assert.NotEmpty(t, first, "an id is assigned")

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEqual(t, first, w.Header().Get(server.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(server.RequestIDHeader, "trace-42")
	w = serve(srv, req)
	assert.Equal(t, "trace-42", w.Header().Get(server.RequestIDHeader))
}

func TestRequestIDFromContext(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = server.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(server.RequestIDHeader, "trace-7")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "trace-7", seen)
	assert.Empty(t, server.RequestIDFromContext(context.Background()))
}

func TestServer_MalformedUserHeader(t *testing.T) {
	srv := newBareServer(t, server.Config{})

	for _, v := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(server.UserHeader, v)
		w := serve(srv, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "value %q", v)
	}
}

func TestServer_CORSOrigins(t *testing.T) {
	srv := newBareServer(t, server.Config{
		CORSOrigins: []string{"https://app.example.com", "https://admin.example.com"},
	})

	for _, origin := range []string{"https://app.example.com", "https://admin.example.com"} {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "GET")
		w := serve(srv, req)
		assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := serve(srv, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.Conflict()
	srv := newBareServer(t, server.Config{Metrics: m})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "compgraph_ledger_conflicts_total 1")
}

func TestServer_RateLimited(t *testing.T) {
	srv := newBareServer(t, server.Config{
		RateLimit: server.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2},
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv := newTestStack(t).srv

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, path := range []string{
		"/api/v1/competencies/graph",
		"/api/v1/competencies/{node}/descendants",
		"/api/v1/nodes/update",
		"/api/v1/versions/statistics",
	} {
		assert.Contains(t, body, path)
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	srv := newBareServer(t, server.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	<-ctx.Done()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down within timeout")
	}
}
