// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sqlite

import (
	"github.com/compgraph/compgraph/internal/store"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func init() {
	store.RegisterTripleStore("sqlite", newTripleStore)
	store.RegisterLedger("sqlite", newLedger)
}

func newTripleStore(cfg store.TripleStoreConfig) (store.TripleStore, error) {
	if cfg.Path == "" {
		return nil, cgerr.New(cgerr.CodeStoreTriplesInvalid, "sqlite triple store requires a path")
	}
	return NewTripleStore(cfg.Path)
}

func newLedger(cfg store.LedgerConfig) (store.Ledger, error) {
	if cfg.Path == "" {
		return nil, cgerr.New(cgerr.CodeStoreLedgerInvalid, "sqlite ledger requires a path")
	}
	return NewLedger(cfg.Path)
}
