// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

// Package traversal answers hierarchy and neighborhood queries over the
// ontology graph.
package traversal

import (
	"context"
	"log/slog"
	"time"

	"github.com/compgraph/compgraph/internal/metrics"
	"github.com/compgraph/compgraph/internal/ontology"
	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/vocab"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultLimit = 50
	MaxLimit     = 100
)

// Config wires an Engine.
type Config struct {
	Store     store.TripleStore
	Namespace ontology.Namespace
	// Hierarchy is the predicate followed by Ancestors, Descendants and
	// FindPath.
	Hierarchy string
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Engine runs read-only graph queries.
type Engine struct {
	store     store.TripleStore
	ns        ontology.Namespace
	hierarchy string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Graph is a node set with the edges among its members.
type Graph struct {
	Nodes []store.GraphNode `json:"nodes"`
	Links []store.Edge      `json:"links"`
}

// New returns an engine over cfg.Store.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "traversal engine requires a triple store")
	}
	ns := cfg.Namespace
	if ns.Base == "" {
		ns = ontology.DefaultNamespace()
	}
	hierarchy := cfg.Hierarchy
	if hierarchy == "" {
		hierarchy = vocab.DefaultHierarchy
	}
	hierarchy = ns.Normalize(hierarchy)
	if !ontology.WellFormed(hierarchy) {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "hierarchy predicate must be an absolute URI: "+hierarchy)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     cfg.Store,
		ns:        ns,
		hierarchy: hierarchy,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "traversal"),
	}, nil
}

// Hierarchy returns the predicate the engine follows.
func (e *Engine) Hierarchy() string {
	return e.hierarchy
}

func (e *Engine) node(name, uri string) (string, error) {
	n := e.ns.Normalize(uri)
	if !ontology.WellFormed(n) {
		return "", cgerr.New(cgerr.CodeTraversalInputInvalid, name+" must be an absolute http(s) URI", cgerr.FieldNodeURI(n))
	}
	return n, nil
}

func page(limit, offset int) (store.Page, error) {
	if offset < 0 {
		return store.Page{}, cgerr.New(cgerr.CodeTraversalInputInvalid, "offset must not be negative", cgerr.Field("offset", offset))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		return store.Page{}, cgerr.New(cgerr.CodeTraversalInputInvalid, "limit exceeds maximum", cgerr.Field("limit", limit), cgerr.Field("max", MaxLimit))
	}
	return store.Page{Limit: limit, Offset: offset}, nil
}

// Ancestors returns every node that reaches uri through one or more
// hierarchy hops, ordered by URI.
func (e *Engine) Ancestors(ctx context.Context, uri string, limit, offset int) ([]store.NodeRef, error) {
	return e.closure(ctx, "ancestors", store.Up, uri, limit, offset)
}

// Descendants returns every node reachable from uri through one or more
// hierarchy hops, ordered by URI.
func (e *Engine) Descendants(ctx context.Context, uri string, limit, offset int) ([]store.NodeRef, error) {
	return e.closure(ctx, "descendants", store.Down, uri, limit, offset)
}

func (e *Engine) closure(ctx context.Context, op string, dir store.Direction, uri string, limit, offset int) ([]store.NodeRef, error) {
	defer e.metrics.ObserveTraversal(op, time.Now())

	start, err := e.node("node", uri)
	if err != nil {
		return nil, err
	}
	p, err := page(limit, offset)
	if err != nil {
		return nil, err
	}

	refs, err := e.store.Closure(ctx, store.ClosureQuery{Start: start, Predicate: e.hierarchy, Direction: dir, Page: p})
	if err != nil {
		e.logger.ErrorContext(ctx, "closure query failed", "operation", op, "node_uri", start, "error", err)
		return nil, cgerr.With(err, cgerr.FieldNodeURI(start))
	}
	if refs == nil {
		refs = []store.NodeRef{}
	}
	return refs, nil
}

// FindPath returns the nodes connected to end through the hierarchy or its
// inverse when a chain from start to end exists, and an empty result
// otherwise. The result is the neighborhood of end along the relation, not
// an ordered path.
func (e *Engine) FindPath(ctx context.Context, start, end string) ([]store.NodeRef, error) {
	defer e.metrics.ObserveTraversal("path", time.Now())

	from, err := e.node("start", start)
	if err != nil {
		return nil, err
	}
	to, err := e.node("end", end)
	if err != nil {
		return nil, err
	}

	ok, err := e.store.HasChain(ctx, e.hierarchy, from, to)
	if err != nil {
		return nil, cgerr.With(err, cgerr.FieldNodeURI(from))
	}
	if !ok {
		return []store.NodeRef{}, nil
	}

	refs, err := e.store.Connected(ctx, e.hierarchy, to)
	if err != nil {
		return nil, cgerr.With(err, cgerr.FieldNodeURI(to))
	}
	return refs, nil
}

// Neighborhood returns the nodes within depth outgoing resource hops of uri,
// the start node included, and the edges among them. Every IRI-valued
// predicate is followed, rdf:type included.
func (e *Engine) Neighborhood(ctx context.Context, uri string, depth, limit, offset int) (*Graph, error) {
	defer e.metrics.ObserveTraversal("neighborhood", time.Now())

	start, err := e.node("node", uri)
	if err != nil {
		return nil, err
	}
	if depth < MinDepth || depth > MaxDepth {
		return nil, cgerr.New(cgerr.CodeTraversalInputInvalid, "depth must be between 1 and 5", cgerr.Field("depth", depth))
	}
	p, err := page(limit, offset)
	if err != nil {
		return nil, err
	}

	nodes, err := e.store.Reachable(ctx, store.ReachQuery{
		Start: start,
		Depth: depth,
		Page:  p,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "neighborhood discovery failed", "node_uri", start, "depth", depth, "error", err)
		return nil, cgerr.With(err, cgerr.FieldNodeURI(start))
	}

	g := &Graph{Nodes: nodes, Links: []store.Edge{}}
	if g.Nodes == nil {
		g.Nodes = []store.GraphNode{}
	}
	if len(nodes) == 0 {
		return g, nil
	}

	uris := make([]string, len(nodes))
	for i, n := range nodes {
		uris[i] = n.URI
	}
	edges, err := e.store.EdgesAmong(ctx, uris)
	if err != nil {
		e.logger.ErrorContext(ctx, "neighborhood edges failed", "node_uri", start, "nodes", len(uris), "error", err)
		return nil, cgerr.With(err, cgerr.FieldNodeURI(start))
	}
	if edges != nil {
		g.Links = edges
	}
	e.logger.DebugContext(ctx, "neighborhood expanded", "node_uri", start, "depth", depth, "nodes", len(g.Nodes), "links", len(g.Links))
	return g, nil
}
