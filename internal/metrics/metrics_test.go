// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compgraph/compgraph/internal/metrics"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Mutation("add_triple", "ok")
		m.Skip("protected")
		m.Bump("CREATE")
		m.Conflict()
		m.ObserveTraversal("descendants", time.Now())
		m.SetBreakerState("sparql", 2)
	})
}

func TestCountersIncrement(t *testing.T) {
	m := metrics.New()

	m.Mutation("apply_graph", "ok")
	m.Mutation("apply_graph", "ok")
	m.Skip("literal")
	m.Bump("UPDATE")
	m.Conflict()
	m.SetBreakerState("sparql:competencies", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("apply_graph", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Skipped.WithLabelValues("literal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VersionBumps.WithLabelValues("UPDATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conflicts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("sparql:competencies")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := metrics.New()
	m.Mutation("delete_node", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `compgraph_gateway_mutations_total{operation="delete_node",outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
