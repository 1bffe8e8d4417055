// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package store_test

import (
	"path/filepath"
	"testing"

	"github.com/compgraph/compgraph/internal/store"
	_ "github.com/compgraph/compgraph/internal/store/sqlite" // register sqlite backend
	cgerr "github.com/compgraph/compgraph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTripleStore_DefaultsToSQLite(t *testing.T) {
	ts, err := store.NewTripleStore(store.TripleStoreConfig{Path: filepath.Join(t.TempDir(), "graph.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ts.Close() })
	assert.NotNil(t, ts)
}

func TestNewLedger_SQLite(t *testing.T) {
	l, err := store.NewLedger(store.LedgerConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	assert.NotNil(t, l)
}

func TestNewTripleStore_UnknownBackend(t *testing.T) {
	_, err := store.NewTripleStore(store.TripleStoreConfig{Backend: "unknown"})
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeStoreBackendUnsupported))
	assert.Contains(t, err.Error(), "unknown")
}

func TestNewLedger_UnknownBackend(t *testing.T) {
	_, err := store.NewLedger(store.LedgerConfig{Backend: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}

func TestNewTripleStore_SQLiteRequiresPath(t *testing.T) {
	_, err := store.NewTripleStore(store.TripleStoreConfig{Backend: "sqlite"})
	require.Error(t, err)
	assert.True(t, cgerr.IsInvalidInput(err))
}

func TestBackendsListsRegistered(t *testing.T) {
	triples, ledgers := store.Backends()
	assert.Contains(t, triples, "sqlite")
	assert.Contains(t, ledgers, "sqlite")
}

func TestChangeKindValid(t *testing.T) {
	assert.True(t, store.ChangeCreate.Valid())
	assert.True(t, store.ChangeUpdate.Valid())
	assert.True(t, store.ChangeDelete.Valid())
	assert.False(t, store.ChangeKind("RENAME").Valid())
	assert.False(t, store.ChangeKind("").Valid())
}
