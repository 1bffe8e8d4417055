// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sqlite

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"

// open opens (or creates) the database at dbPath and applies ddl.
func open(dbPath, ddl string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, cgerr.Errorf(cgerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, cgerr.Errorf(cgerr.CodeStoreDatabaseFailure, "migrating sqlite db: %w", err)
	}

	return db, nil
}

// formatTime serialises a time for storage.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// limitOf maps a non-positive limit to SQLite's "no limit".
func limitOf(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func offsetOf(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
