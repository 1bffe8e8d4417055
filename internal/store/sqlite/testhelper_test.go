// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/compgraph/compgraph/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

func newTripleStore(t *testing.T) *sqlite.TripleStore {
	t.Helper()
	s, err := sqlite.NewTripleStore(testDBPath(t, "graph"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newLedger(t *testing.T) *sqlite.Ledger {
	t.Helper()
	l, err := sqlite.NewLedger(testDBPath(t, "ledger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}
