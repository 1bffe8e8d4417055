// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package store

import (
	"sort"
	"sync"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const defaultBackend = "sqlite"

// TripleStoreFactory opens a triple store from its configuration.
type TripleStoreFactory func(cfg TripleStoreConfig) (TripleStore, error)

// LedgerFactory opens a ledger from its configuration.
type LedgerFactory func(cfg LedgerConfig) (Ledger, error)

var (
	tripleFactories = map[string]TripleStoreFactory{}
	ledgerFactories = map[string]LedgerFactory{}
	factoriesMu     sync.RWMutex
)

// RegisterTripleStore registers a triple store backend. Backend packages call
// this from init(). This function is goroutine-safe.
func RegisterTripleStore(name string, f TripleStoreFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	tripleFactories[name] = f
}

// RegisterLedger registers a ledger backend. Backend packages call this from
// init(). This function is goroutine-safe.
func RegisterLedger(name string, f LedgerFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	ledgerFactories[name] = f
}

func resolveBackend(name string) string {
	if name == "" {
		return defaultBackend
	}
	return name
}

// NewTripleStore opens the configured triple store backend.
func NewTripleStore(cfg TripleStoreConfig) (TripleStore, error) {
	backend := resolveBackend(cfg.Backend)

	factoriesMu.RLock()
	factory, ok := tripleFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, cgerr.New(cgerr.CodeStoreBackendUnsupported,
			"unsupported triple store backend: "+backend, cgerr.FieldBackend(backend))
	}

	return factory(cfg)
}

// NewLedger opens the configured ledger backend.
func NewLedger(cfg LedgerConfig) (Ledger, error) {
	backend := resolveBackend(cfg.Backend)

	factoriesMu.RLock()
	factory, ok := ledgerFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, cgerr.New(cgerr.CodeStoreBackendUnsupported,
			"unsupported ledger backend: "+backend, cgerr.FieldBackend(backend))
	}

	return factory(cfg)
}

// Backends lists the registered triple store and ledger backend names.
func Backends() (triples, ledgers []string) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	for name := range tripleFactories {
		triples = append(triples, name)
	}
	for name := range ledgerFactories {
		ledgers = append(ledgers, name)
	}
	sort.Strings(triples)
	sort.Strings(ledgers)
	return triples, ledgers
}
