// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sparql

import (
	"github.com/sony/gobreaker"

	"github.com/compgraph/compgraph/internal/store"
)

func init() {
	store.RegisterTripleStore("sparql", newTripleStore)
}

func newTripleStore(cfg store.TripleStoreConfig) (store.TripleStore, error) {
	opts := Options{
		URL:              cfg.URL,
		Repository:       cfg.Repository,
		Username:         cfg.Username,
		Password:         cfg.Password,
		Timeout:          cfg.Timeout,
		FailureThreshold: cfg.BreakerThreshold,
		OpenTimeout:      cfg.BreakerCooldown,
	}
	if observe := cfg.BreakerObserver; observe != nil {
		opts.OnStateChange = func(name string, _, to gobreaker.State) {
			observe(name, int(to))
		}
	}
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return NewTripleStore(client), nil
}
