// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/vocab"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// Compile-time interface check.
var _ store.TripleStore = (*TripleStore)(nil)

// TripleStore implements store.TripleStore backed by SQLite, keeping every
// statement in a single triples table with SPO/POS/OSP indexes.
type TripleStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const triplesDDL = `
CREATE TABLE IF NOT EXISTS triples (
	subject   TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object    TEXT NOT NULL,
	kind      TEXT NOT NULL CHECK (kind IN ('iri', 'literal')),
	datatype  TEXT NOT NULL DEFAULT '',
	lang      TEXT NOT NULL DEFAULT '',
	created   TEXT NOT NULL,
	UNIQUE(subject, predicate, object, kind, datatype, lang)
);

CREATE INDEX IF NOT EXISTS idx_spo ON triples(subject, predicate, object);
CREATE INDEX IF NOT EXISTS idx_pos ON triples(predicate, object, subject);
CREATE INDEX IF NOT EXISTS idx_osp ON triples(object, subject, predicate);
`

// NewTripleStore opens (or creates) a SQLite database at dbPath and
// initialises the triples table.
func NewTripleStore(dbPath string) (*TripleStore, error) {
	db, err := open(dbPath, triplesDDL)
	if err != nil {
		return nil, err
	}
	return &TripleStore{db: db, logger: slog.Default()}, nil
}

// Close closes the underlying database connection.
func (s *TripleStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *TripleStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return cgerr.Wrap(err, cgerr.CodeStoreTriplesUnavailable, "pinging sqlite triple store", cgerr.FieldBackend("sqlite"))
	}
	return nil
}

const insertTriple = `INSERT INTO triples (subject, predicate, object, kind, datatype, lang, created)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(subject, predicate, object, kind, datatype, lang) DO NOTHING`

const deleteTriple = `DELETE FROM triples
WHERE subject = ? AND predicate = ? AND object = ? AND kind = ? AND datatype = ? AND lang = ?`

func termKind(t store.Term) store.TermKind {
	if t.Kind == "" {
		return store.TermLiteral
	}
	return t.Kind
}

// Insert adds the triples in one transaction. Existing triples are left alone.
func (s *TripleStore) Insert(ctx context.Context, triples ...store.Triple) error {
	return s.inTx(ctx, "inserting triples", func(tx *sql.Tx) error {
		created := formatTime(time.Now())
		for _, t := range triples {
			if _, err := tx.ExecContext(ctx, insertTriple,
				t.Subject, t.Predicate, t.Object.Value, termKind(t.Object), t.Object.Datatype, t.Object.Lang, created,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the triples in one transaction. Missing triples are ignored.
func (s *TripleStore) Delete(ctx context.Context, triples ...store.Triple) error {
	return s.inTx(ctx, "deleting triples", func(tx *sql.Tx) error {
		for _, t := range triples {
			if _, err := tx.ExecContext(ctx, deleteTriple,
				t.Subject, t.Predicate, t.Object.Value, termKind(t.Object), t.Object.Datatype, t.Object.Lang,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutNode asserts the node type and replaces its label atomically.
func (s *TripleStore) PutNode(ctx context.Context, uri, class, label string) error {
	return s.inTx(ctx, "putting node "+uri, func(tx *sql.Tx) error {
		created := formatTime(time.Now())
		if _, err := tx.ExecContext(ctx, insertTriple,
			uri, vocab.RDFType, class, store.TermIRI, "", "", created,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM triples WHERE subject = ? AND predicate = ? AND kind = 'literal'`,
			uri, vocab.RDFSLabel,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, insertTriple,
			uri, vocab.RDFSLabel, label, store.TermLiteral, "", "", created,
		)
		return err
	})
}

// DeleteNode removes the node's outgoing and incoming triples in one transaction.
func (s *TripleStore) DeleteNode(ctx context.Context, uri string) error {
	return s.inTx(ctx, "deleting node "+uri, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM triples WHERE subject = ?`, uri); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM triples WHERE object = ? AND kind = 'iri'`, uri)
		return err
	})
}

// Clear removes every triple.
func (s *TripleStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM triples`); err != nil {
		return cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "clearing triples: %w", err)
	}
	return nil
}

// Count returns the number of stored triples.
func (s *TripleStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM triples`).Scan(&n); err != nil {
		return 0, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "counting triples: %w", err)
	}
	return n, nil
}

// Match returns the triples selected by p, ordered by subject, predicate and object.
func (s *TripleStore) Match(ctx context.Context, p store.Pattern) ([]store.Triple, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT subject, predicate, object, kind, datatype, lang FROM triples WHERE 1 = 1`)
	if p.Subject != "" {
		qb.WriteString(` AND subject = ?`)
		args = append(args, p.Subject)
	}
	if p.Predicate != "" {
		qb.WriteString(` AND predicate = ?`)
		args = append(args, p.Predicate)
	}
	if p.Object != nil {
		qb.WriteString(` AND object = ? AND kind = ?`)
		args = append(args, p.Object.Value, termKind(*p.Object))
	}
	qb.WriteString(` ORDER BY subject, predicate, object`)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "matching triples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var triples []store.Triple
	for rows.Next() {
		var t store.Triple
		var kind string
		if err := rows.Scan(&t.Subject, &t.Predicate, &t.Object.Value, &kind, &t.Object.Datatype, &t.Object.Lang); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "scanning triple: %w", err)
		}
		t.Object.Kind = store.TermKind(kind)
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "iterating triples: %w", err)
	}
	return triples, nil
}

// labelOf selects the first rdfs:label of column, falling back to column itself.
func labelOf(column string) string {
	return `COALESCE((SELECT l.object FROM triples l
	WHERE l.subject = ` + column + ` AND l.predicate = '` + vocab.RDFSLabel + `' AND l.kind = 'literal'
	ORDER BY l.object LIMIT 1), ` + column + `)`
}

// closureCTE walks the predicate in one direction without depth bound. UNION
// deduplicates visited nodes so cycles terminate.
func closureCTE(dir store.Direction) string {
	from, to := "subject", "object"
	if dir == store.Up {
		from, to = "object", "subject"
	}
	return `WITH RECURSIVE closure(node) AS (
	SELECT ` + to + ` FROM triples WHERE ` + from + ` = ? AND predicate = ? AND kind = 'iri'
	UNION
	SELECT t.` + to + ` FROM closure c
	JOIN triples t ON t.` + from + ` = c.node AND t.predicate = ? AND t.kind = 'iri'
)
`
}

// Closure returns the transitive closure from q.Start, excluding the start node.
func (s *TripleStore) Closure(ctx context.Context, q store.ClosureQuery) ([]store.NodeRef, error) {
	query := closureCTE(q.Direction) + `SELECT c.node, ` + labelOf("c.node") + `
FROM closure c WHERE c.node != ?
ORDER BY c.node LIMIT ? OFFSET ?`

	s.logger.DebugContext(ctx, "closure query", "start", q.Start, "direction", q.Direction, "predicate", q.Predicate)

	rows, err := s.db.QueryContext(ctx, query,
		q.Start, q.Predicate, q.Predicate, q.Start, limitOf(q.Page.Limit), offsetOf(q.Page.Offset),
	)
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "closure from %s: %w", q.Start, err)
	}
	return scanNodeRefs(rows)
}

// HasChain reports whether end is reachable from start in at least one hop.
func (s *TripleStore) HasChain(ctx context.Context, predicate, start, end string) (bool, error) {
	query := closureCTE(store.Down) + `SELECT EXISTS(SELECT 1 FROM closure WHERE node = ?)`

	var found bool
	if err := s.db.QueryRowContext(ctx, query, start, predicate, predicate, end).Scan(&found); err != nil {
		return false, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "checking chain %s -> %s: %w", start, end, err)
	}
	return found, nil
}

// Connected returns end, then its ancestors, then its descendants. Each group
// is ordered by URI and nodes appear once.
func (s *TripleStore) Connected(ctx context.Context, predicate, end string) ([]store.NodeRef, error) {
	var endLabel string
	if err := s.db.QueryRowContext(ctx, `SELECT `+labelOf("?"), end, end).Scan(&endLabel); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "labelling %s: %w", end, err)
	}

	result := []store.NodeRef{{URI: end, Label: endLabel}}
	seen := map[string]bool{end: true}
	for _, dir := range []store.Direction{store.Up, store.Down} {
		refs, err := s.Closure(ctx, store.ClosureQuery{Start: end, Predicate: predicate, Direction: dir})
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if seen[ref.URI] {
				continue
			}
			seen[ref.URI] = true
			result = append(result, ref)
		}
	}
	return result, nil
}

// Reachable performs a bounded breadth-first expansion using a recursive CTE
// over outgoing resource edges. The start node is always part of the result.
func (s *TripleStore) Reachable(ctx context.Context, q store.ReachQuery) ([]store.GraphNode, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`WITH RECURSIVE reach(node, depth) AS (
	SELECT ?, 0
	UNION
	SELECT t.object, r.depth + 1
	FROM reach r
	JOIN triples t ON t.subject = r.node AND t.kind = 'iri'
	WHERE r.depth < ?`)
	args = append(args, q.Start, q.Depth)

	if len(q.Exclude) > 0 {
		qb.WriteString(` AND t.predicate NOT IN (` + placeholders(len(q.Exclude)) + `)`)
		for _, p := range q.Exclude {
			args = append(args, p)
		}
	}

	qb.WriteString(`
)
SELECT g.node, ` + labelOf("g.node") + `,
	CASE
		WHEN EXISTS (SELECT 1 FROM triples k WHERE k.subject = g.node AND k.predicate = '` + vocab.RDFType + `'
			AND k.object IN ('` + vocab.RDFSClass + `', '` + vocab.OWLClass + `')) THEN 'class'
		WHEN EXISTS (SELECT 1 FROM triples k WHERE k.subject = g.node AND k.predicate = '` + vocab.RDFType + `'
			AND k.object = '` + vocab.RDFProperty + `') THEN 'property'
		ELSE 'literal'
	END
FROM (SELECT node, MIN(depth) AS depth FROM reach GROUP BY node) g
ORDER BY g.depth, g.node
LIMIT ? OFFSET ?`)
	args = append(args, limitOf(q.Page.Limit), offsetOf(q.Page.Offset))

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "expanding from %s: %w", q.Start, err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []store.GraphNode
	for rows.Next() {
		var n store.GraphNode
		var kind string
		if err := rows.Scan(&n.URI, &n.Label, &kind); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "scanning reachable node: %w", err)
		}
		n.Kind = store.NodeKind(kind)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "iterating reachable nodes: %w", err)
	}
	return nodes, nil
}

// EdgesAmong returns all resource triples where both subject and object are
// in nodes.
func (s *TripleStore) EdgesAmong(ctx context.Context, nodes []string) ([]store.Edge, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	ph := placeholders(len(nodes))
	q := `SELECT subject, predicate, object FROM triples
WHERE kind = 'iri'
	AND subject != object
	AND subject IN (` + ph + `)
	AND object IN (` + ph + `)
ORDER BY subject, predicate, object`

	args := make([]any, 0, len(nodes)*2)
	for _, n := range nodes {
		args = append(args, n)
	}
	for _, n := range nodes {
		args = append(args, n)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "collecting edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []store.Edge
	for rows.Next() {
		var e store.Edge
		if err := rows.Scan(&e.Source, &e.Predicate, &e.Target); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "scanning edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "iterating edges: %w", err)
	}
	return edges, nil
}

func (s *TripleStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.ErrorContext(ctx, "triple store rollback failed", "op", op, "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "committing %s: %w", op, err)
	}
	return nil
}

func scanNodeRefs(rows *sql.Rows) ([]store.NodeRef, error) {
	defer func() { _ = rows.Close() }()

	var refs []store.NodeRef
	for rows.Next() {
		var r store.NodeRef
		if err := rows.Scan(&r.URI, &r.Label); err != nil {
			return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "scanning node: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "iterating nodes: %w", err)
	}
	return refs, nil
}
