// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package store

import "context"

// TripleStore holds the ontology graph. Implementations translate each call
// into one backend request.
type TripleStore interface {
	Insert(ctx context.Context, triples ...Triple) error
	Delete(ctx context.Context, triples ...Triple) error

	// PutNode asserts <uri> rdf:type <class> and replaces its rdfs:label.
	PutNode(ctx context.Context, uri, class, label string) error
	// DeleteNode removes every triple with uri as subject or object.
	DeleteNode(ctx context.Context, uri string) error
	Clear(ctx context.Context) error

	Match(ctx context.Context, p Pattern) ([]Triple, error)
	Count(ctx context.Context) (int64, error)

	// Closure returns the transitive closure of q.Predicate from q.Start,
	// excluding the start node, ordered by URI.
	Closure(ctx context.Context, q ClosureQuery) ([]NodeRef, error)
	// HasChain reports whether end is reachable from start in one or more hops.
	HasChain(ctx context.Context, predicate, start, end string) (bool, error)
	// Connected returns end plus every node linked to it through predicate
	// or its inverse, in discovery order.
	Connected(ctx context.Context, predicate, end string) ([]NodeRef, error)
	// Reachable returns the start node and every node within q.Depth
	// outgoing resource hops.
	Reachable(ctx context.Context, q ReachQuery) ([]GraphNode, error)
	// EdgesAmong returns resource edges whose endpoints are both in nodes,
	// excluding self loops.
	EdgesAmong(ctx context.Context, nodes []string) ([]Edge, error)

	Ping(ctx context.Context) error
	Close() error
}

// Ledger persists node versions and the append-only change history.
type Ledger interface {
	GetVersion(ctx context.Context, uri string) (VersionRecord, error)
	// BumpVersion increments the node version and appends a history entry in
	// one transaction, returning the new version.
	BumpVersion(ctx context.Context, b Bump) (int64, error)
	GetVersions(ctx context.Context, uris []string) ([]VersionRecord, error)
	History(ctx context.Context, uri string, limit int) ([]HistoryEntry, error)
	Statistics(ctx context.Context, topN, recentN int) (*Stats, error)

	Ping(ctx context.Context) error
	Close() error
}
