// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/compgraph/compgraph/internal/store"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// Compile-time interface check.
var _ store.Ledger = (*Ledger)(nil)

// Ledger implements store.Ledger backed by SQLite.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

const ledgerDDL = `
CREATE TABLE IF NOT EXISTS node_version (
	node_uri         TEXT PRIMARY KEY,
	version          INTEGER NOT NULL,
	last_modified    TEXT NOT NULL,
	last_modified_by INTEGER
);

CREATE TABLE IF NOT EXISTS node_change_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	node_uri    TEXT NOT NULL,
	user_id     INTEGER NOT NULL,
	change_type TEXT NOT NULL CHECK (change_type IN ('CREATE', 'UPDATE', 'DELETE')),
	old_value   TEXT,
	new_value   TEXT,
	version     INTEGER NOT NULL,
	changed_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_node ON node_change_history(node_uri, id);
CREATE INDEX IF NOT EXISTS idx_history_user ON node_change_history(user_id);
`

// NewLedger opens (or creates) a SQLite database at dbPath and initialises
// the version and history tables.
func NewLedger(dbPath string) (*Ledger, error) {
	db, err := open(dbPath, ledgerDDL)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, logger: slog.Default(), now: time.Now}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Ping verifies the database is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return cgerr.Wrap(err, cgerr.CodeStoreLedgerFailure, "pinging sqlite ledger", cgerr.FieldBackend("sqlite"))
	}
	return nil
}

// GetVersion returns the node's version record, or the unversioned sentinel.
func (l *Ledger) GetVersion(ctx context.Context, uri string) (store.VersionRecord, error) {
	const q = `SELECT version, last_modified, last_modified_by FROM node_version WHERE node_uri = ?`

	rec := store.VersionRecord{NodeURI: uri}
	var modified string
	var by sql.NullInt64
	err := l.db.QueryRowContext(ctx, q, uri).Scan(&rec.Version, &modified, &by)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Unversioned(uri), nil
	}
	if err != nil {
		return rec, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "getting version of %s: %w", uri, err)
	}

	if rec.LastModified, err = parseTime(modified); err != nil {
		return rec, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "parsing last_modified of %s: %w", uri, err)
	}
	if by.Valid {
		rec.LastModifiedBy = &by.Int64
	}
	return rec, nil
}

// BumpVersion upserts the version row and appends the history entry in one
// immediate transaction.
func (l *Ledger) BumpVersion(ctx context.Context, b store.Bump) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "beginning bump transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			l.logger.ErrorContext(ctx, "ledger rollback failed", "node_uri", b.NodeURI, "error", rbErr)
		}
	}()

	now := formatTime(l.now())

	const upsert = `INSERT INTO node_version (node_uri, version, last_modified, last_modified_by)
VALUES (?, 1, ?, ?)
ON CONFLICT(node_uri) DO UPDATE SET
	version = node_version.version + 1,
	last_modified = excluded.last_modified,
	last_modified_by = excluded.last_modified_by
RETURNING version`

	var version int64
	if err := tx.QueryRowContext(ctx, upsert, b.NodeURI, now, b.UserID).Scan(&version); err != nil {
		return 0, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "bumping version of %s: %w", b.NodeURI, err)
	}

	const appendHistory = `INSERT INTO node_change_history
	(node_uri, user_id, change_type, old_value, new_value, version, changed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, appendHistory,
		b.NodeURI, b.UserID, string(b.Kind), nullJSON(b.OldValue), nullJSON(b.NewValue), version, now,
	); err != nil {
		return 0, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "appending history of %s: %w", b.NodeURI, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "committing bump of %s: %w", b.NodeURI, err)
	}
	return version, nil
}

// GetVersions returns one record per input URI, in input order.
func (l *Ledger) GetVersions(ctx context.Context, uris []string) ([]store.VersionRecord, error) {
	if len(uris) == 0 {
		return []store.VersionRecord{}, nil
	}

	q := `SELECT node_uri, version, last_modified, last_modified_by FROM node_version
WHERE node_uri IN (` + placeholders(len(uris)) + `)`
	args := make([]any, len(uris))
	for i, u := range uris {
		args[i] = u
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "getting versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]store.VersionRecord, len(uris))
	for rows.Next() {
		var rec store.VersionRecord
		var modified string
		var by sql.NullInt64
		if err := rows.Scan(&rec.NodeURI, &rec.Version, &modified, &by); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "scanning version: %w", err)
		}
		if rec.LastModified, err = parseTime(modified); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "parsing last_modified of %s: %w", rec.NodeURI, err)
		}
		if by.Valid {
			v := by.Int64
			rec.LastModifiedBy = &v
		}
		found[rec.NodeURI] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "iterating versions: %w", err)
	}

	out := make([]store.VersionRecord, len(uris))
	for i, u := range uris {
		if rec, ok := found[u]; ok {
			out[i] = rec
		} else {
			out[i] = store.Unversioned(u)
		}
	}
	return out, nil
}

const historyColumns = `id, node_uri, user_id, change_type, old_value, new_value, version, changed_at`

// History returns the node's history entries, most recent first.
func (l *Ledger) History(ctx context.Context, uri string, limit int) ([]store.HistoryEntry, error) {
	q := `SELECT ` + historyColumns + ` FROM node_change_history
WHERE node_uri = ? ORDER BY id DESC LIMIT ?`

	rows, err := l.db.QueryContext(ctx, q, uri, limitOf(limit))
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "getting history of %s: %w", uri, err)
	}
	return scanHistory(rows)
}

// Statistics aggregates the ledger tables.
func (l *Ledger) Statistics(ctx context.Context, topN, recentN int) (*store.Stats, error) {
	stats := &store.Stats{}

	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(version), 0) FROM node_version`,
	).Scan(&stats.VersionedNodes, &stats.TotalVersionSum); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "counting versions: %w", err)
	}

	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM node_change_history`,
	).Scan(&stats.HistoryCount); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "counting history: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `SELECT user_id, COUNT(*) AS changes FROM node_change_history
GROUP BY user_id ORDER BY changes DESC, user_id LIMIT ?`, limitOf(topN))
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "ranking contributors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats.TopContributors = []store.Contributor{}
	for rows.Next() {
		var c store.Contributor
		if err := rows.Scan(&c.UserID, &c.Changes); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "scanning contributor: %w", err)
		}
		stats.TopContributors = append(stats.TopContributors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "iterating contributors: %w", err)
	}

	recent, err := l.db.QueryContext(ctx, `SELECT `+historyColumns+` FROM node_change_history
ORDER BY id DESC LIMIT ?`, limitOf(recentN))
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "listing recent changes: %w", err)
	}
	if stats.Recent, err = scanHistory(recent); err != nil {
		return nil, err
	}
	return stats, nil
}

func scanHistory(rows *sql.Rows) ([]store.HistoryEntry, error) {
	defer func() { _ = rows.Close() }()

	entries := []store.HistoryEntry{}
	for rows.Next() {
		var (
			e             store.HistoryEntry
			kind, changed string
			oldV, newV    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.NodeURI, &e.UserID, &kind, &oldV, &newV, &e.Version, &changed); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "scanning history entry: %w", err)
		}
		e.Kind = store.ChangeKind(kind)
		if oldV.Valid {
			e.OldValue = json.RawMessage(oldV.String)
		}
		if newV.Valid {
			e.NewValue = json.RawMessage(newV.String)
		}
		t, err := parseTime(changed)
		if err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "parsing changed_at of entry %d: %w", e.ID, err)
		}
		e.ChangedAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "iterating history: %w", err)
	}
	return entries, nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
