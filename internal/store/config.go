// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package store

import "time"

// TripleStoreConfig controls which triple store backend the factory uses.
type TripleStoreConfig struct {
	Backend    string // "sqlite" (default) or "sparql"
	Path       string // sqlite database file
	URL        string // sparql server base URL
	Repository string
	Username   string
	Password   string
	Timeout    time.Duration

	// Circuit breaker settings for remote backends.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
	// BreakerObserver, when set, receives every breaker state transition.
	BreakerObserver func(name string, state int)
}

// LedgerConfig controls which ledger backend the factory uses.
type LedgerConfig struct {
	Backend  string // "sqlite" (default) or "postgres"
	Path     string // sqlite database file
	DSN      string // postgres connection string
	MaxConns int32
}
