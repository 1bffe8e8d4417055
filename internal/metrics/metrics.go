// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

// Package metrics holds the Prometheus collectors for the mutation gateway,
// version ledger and traversal engine. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "compgraph"

// Metrics bundles every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Mutations         *prometheus.CounterVec
	Skipped           *prometheus.CounterVec
	VersionBumps      *prometheus.CounterVec
	Conflicts         prometheus.Counter
	TraversalDuration *prometheus.HistogramVec
	BreakerState      *prometheus.GaugeVec
}

// New creates the collectors and registers them together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "mutations_total",
				Help:      "Mutation requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		Skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "skipped_items_total",
				Help:      "Graph batch items skipped, by reason",
			},
			[]string{"reason"},
		),

		VersionBumps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "version_bumps_total",
				Help:      "Version increments by change type",
			},
			[]string{"change_type"},
		),

		Conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "conflicts_total",
				Help:      "Optimistic concurrency conflicts detected",
			},
		),

		TraversalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "traversal",
				Name:      "duration_seconds",
				Help:      "Traversal query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "breaker_state",
				Help:      "Triple store circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Mutations,
		m.Skipped,
		m.VersionBumps,
		m.Conflicts,
		m.TraversalDuration,
		m.BreakerState,
	)
	return m
}

// Registry exposes the private registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Mutation counts one gateway operation.
func (m *Metrics) Mutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation, outcome).Inc()
}

// Skip counts one skipped batch item.
func (m *Metrics) Skip(reason string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(reason).Inc()
}

// Bump counts one ledger version increment.
func (m *Metrics) Bump(changeType string) {
	if m == nil {
		return
	}
	m.VersionBumps.WithLabelValues(changeType).Inc()
}

// Conflict counts one detected version conflict.
func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.Conflicts.Inc()
}

// ObserveTraversal records how long a traversal operation took.
func (m *Metrics) ObserveTraversal(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.TraversalDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// SetBreakerState records the numeric breaker state.
func (m *Metrics) SetBreakerState(breaker string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(breaker).Set(float64(state))
}
