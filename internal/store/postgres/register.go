// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package postgres

import (
	"context"
	"time"

	"github.com/compgraph/compgraph/internal/store"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const connectTimeout = 10 * time.Second

func init() {
	store.RegisterLedger("postgres", newLedger)
}

func newLedger(cfg store.LedgerConfig) (store.Ledger, error) {
	if cfg.DSN == "" {
		return nil, cgerr.New(cgerr.CodeStoreLedgerInvalid, "postgres ledger requires a dsn")
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return NewLedger(ctx, cfg.DSN, cfg.MaxConns)
}
