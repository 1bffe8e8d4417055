// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

// Package postgres implements the version ledger on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/compgraph/compgraph/internal/store"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// Compile-time interface check.
var _ store.Ledger = (*Ledger)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS node_version (
	node_uri         TEXT PRIMARY KEY,
	version          BIGINT NOT NULL,
	last_modified    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_modified_by BIGINT
);

CREATE TABLE IF NOT EXISTS node_change_history (
	id          BIGSERIAL PRIMARY KEY,
	node_uri    TEXT NOT NULL,
	user_id     BIGINT NOT NULL,
	change_type TEXT NOT NULL CHECK (change_type IN ('CREATE', 'UPDATE', 'DELETE')),
	old_value   JSONB,
	new_value   JSONB,
	version     BIGINT NOT NULL,
	changed_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_node_change_history_node ON node_change_history(node_uri, id DESC);
CREATE INDEX IF NOT EXISTS idx_node_change_history_user ON node_change_history(user_id);
`

// Ledger implements store.Ledger on a pgx connection pool.
type Ledger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLedger connects to dsn, applies the schema and returns the ledger.
func NewLedger(ctx context.Context, dsn string, maxConns int32) (*Ledger, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, cgerr.Wrap(err, cgerr.CodeStoreLedgerInvalid, "parsing postgres dsn", cgerr.FieldBackend("postgres"))
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, cgerr.Wrap(err, cgerr.CodeStoreLedgerFailure, "creating postgres pool", cgerr.FieldBackend("postgres"))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, cgerr.Wrap(err, cgerr.CodeStoreLedgerFailure, "pinging postgres", cgerr.FieldBackend("postgres"))
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, cgerr.Wrap(err, cgerr.CodeStoreLedgerFailure, "migrating ledger schema", cgerr.FieldBackend("postgres"))
	}

	return &Ledger{pool: pool, logger: slog.Default()}, nil
}

// Close releases the pool.
func (l *Ledger) Close() error {
	l.pool.Close()
	return nil
}

// Ping checks a pooled connection.
func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.pool.Ping(ctx); err != nil {
		return cgerr.Wrap(err, cgerr.CodeStoreLedgerFailure, "pinging postgres", cgerr.FieldBackend("postgres"))
	}
	return nil
}

// GetVersion returns the node's version record, or the unversioned sentinel.
func (l *Ledger) GetVersion(ctx context.Context, uri string) (store.VersionRecord, error) {
	rec := store.VersionRecord{NodeURI: uri}
	err := l.pool.QueryRow(ctx,
		`SELECT version, last_modified, last_modified_by FROM node_version WHERE node_uri = $1`, uri,
	).Scan(&rec.Version, &rec.LastModified, &rec.LastModifiedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Unversioned(uri), nil
	}
	if err != nil {
		return rec, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "getting version of %s: %w", uri, err)
	}
	return rec, nil
}

// BumpVersion upserts the version row and appends history in one transaction.
func (l *Ledger) BumpVersion(ctx context.Context, b store.Bump) (int64, error) {
	var version int64
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
INSERT INTO node_version (node_uri, version, last_modified, last_modified_by)
VALUES ($1, 1, CURRENT_TIMESTAMP, $2)
ON CONFLICT (node_uri) DO UPDATE SET
	version = node_version.version + 1,
	last_modified = CURRENT_TIMESTAMP,
	last_modified_by = EXCLUDED.last_modified_by
RETURNING version`, b.NodeURI, b.UserID).Scan(&version); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
INSERT INTO node_change_history (node_uri, user_id, change_type, old_value, new_value, version, changed_at)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, CURRENT_TIMESTAMP)`,
			b.NodeURI, b.UserID, string(b.Kind), nullJSON(b.OldValue), nullJSON(b.NewValue), version)
		return err
	})
	if err != nil {
		return 0, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "bumping version of %s: %w", b.NodeURI, err)
	}
	return version, nil
}

// GetVersions returns one record per input URI, in input order.
func (l *Ledger) GetVersions(ctx context.Context, uris []string) ([]store.VersionRecord, error) {
	if len(uris) == 0 {
		return []store.VersionRecord{}, nil
	}

	rows, err := l.pool.Query(ctx,
		`SELECT node_uri, version, last_modified, last_modified_by FROM node_version WHERE node_uri = ANY($1)`, uris)
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "getting versions: %w", err)
	}
	defer rows.Close()

	found := make(map[string]store.VersionRecord, len(uris))
	for rows.Next() {
		var rec store.VersionRecord
		if err := rows.Scan(&rec.NodeURI, &rec.Version, &rec.LastModified, &rec.LastModifiedBy); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "scanning version: %w", err)
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

// History returns the node's history, most recent first.
func (l *Ledger) History(ctx context.Context, uri string, limit int) ([]store.HistoryEntry, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+historyColumns+` FROM node_change_history
WHERE node_uri = $1 ORDER BY changed_at DESC, id DESC LIMIT $2`, uri, limitOf(limit))
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "getting history of %s: %w", uri, err)
	}
	return scanHistory(rows)
}

// Statistics aggregates the ledger tables.
func (l *Ledger) Statistics(ctx context.Context, topN, recentN int) (*store.Stats, error) {
	stats := &store.Stats{TopContributors: []store.Contributor{}}

	if err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(version), 0)::BIGINT FROM node_version`,
	).Scan(&stats.VersionedNodes, &stats.TotalVersionSum); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "counting versions: %w", err)
	}

	if err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM node_change_history`,
	).Scan(&stats.HistoryCount); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "counting history: %w", err)
	}

	rows, err := l.pool.Query(ctx, `SELECT user_id, COUNT(*) AS changes FROM node_change_history
GROUP BY user_id ORDER BY changes DESC, user_id LIMIT $1`, limitOf(topN))
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "ranking contributors: %w", err)
	}
	stats.TopContributors, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Contributor, error) {
		var c store.Contributor
		err := row.Scan(&c.UserID, &c.Changes)
		return c, err
	})
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "scanning contributors: %w", err)
	}

	recent, err := l.pool.Query(ctx, `SELECT `+historyColumns+` FROM node_change_history
ORDER BY changed_at DESC, id DESC LIMIT $1`, limitOf(recentN))
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "listing recent changes: %w", err)
	}
	if stats.Recent, err = scanHistory(recent); err != nil {
		return nil, err
	}
	return stats, nil
}

func scanHistory(rows pgx.Rows) ([]store.HistoryEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.HistoryEntry, error) {
		var (
			e          store.HistoryEntry
			kind       string
			oldV, newV []byte
		)
		if err := row.Scan(&e.ID, &e.NodeURI, &e.UserID, &kind, &oldV, &newV, &e.Version, &e.ChangedAt); err != nil {
			return e, err
		}
		e.Kind = store.ChangeKind(kind)
		if oldV != nil {
			e.OldValue = json.RawMessage(oldV)
		}
		if newV != nil {
			e.NewValue = json.RawMessage(newV)
		}
		return e, nil
	})
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreLedgerFailure, "scanning history: %w", err)
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	return entries, nil
}

func nullJSON(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

// limitOf maps a non-positive limit to "no limit".
func limitOf(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
