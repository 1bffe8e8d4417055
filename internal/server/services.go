// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package server

import (
	"context"

	"github.com/compgraph/compgraph/internal/ledger"
	"github.com/compgraph/compgraph/internal/ontology"
	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/traversal"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// GraphService is the mutation gateway as seen by the handlers.
type GraphService interface {
	ApplyGraph(ctx context.Context, g ontology.Graph) (*ontology.ApplyResult, error)
	AddTriple(ctx context.Context, in ontology.TripleInput) (store.Triple, error)
	DeleteTriple(ctx context.Context, in ontology.TripleInput) (store.Triple, error)
	DeleteNode(ctx context.Context, uri string) error
	ClearAll(ctx context.Context, confirm bool) error
	ExportGraph(ctx context.Context) (*ontology.Graph, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// VersionService is the version ledger as seen by the handlers.
type VersionService interface {
	GetVersion(ctx context.Context, uri string) (store.VersionRecord, error)
	BumpVersion(ctx context.Context, c ledger.Change) (int64, error)
	UpdateWithVersion(ctx context.Context, c ledger.Change, expected int64) (int64, error)
	BatchGetVersions(ctx context.Context, uris []string) ([]store.VersionRecord, error)
	GetHistory(ctx context.Context, uri string, limit int) ([]store.HistoryEntry, error)
	Statistics(ctx context.Context, topN, recentN int) (*store.Stats, error)
	Ping(ctx context.Context) error
}

// TraversalService is the traversal engine as seen by the handlers.
type TraversalService interface {
	Ancestors(ctx context.Context, uri string, limit, offset int) ([]store.NodeRef, error)
	Descendants(ctx context.Context, uri string, limit, offset int) ([]store.NodeRef, error)
	FindPath(ctx context.Context, start, end string) ([]store.NodeRef, error)
	Neighborhood(ctx context.Context, uri string, depth, limit, offset int) (*traversal.Graph, error)
}

var (
	_ GraphService     = (*ontology.Gateway)(nil)
	_ VersionService   = (*ledger.Service)(nil)
	_ TraversalService = (*traversal.Engine)(nil)
)

// Services holds the components injected into route handlers.
type Services struct {
	graph     GraphService
	versions  VersionService
	traversal TraversalService
}

// NewServices returns a Services, rejecting nil components.
func NewServices(graph GraphService, versions VersionService, tr TraversalService) (*Services, error) {
	if graph == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "graph service is required")
	}
	if versions == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "version service is required")
	}
	if tr == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "traversal service is required")
	}
	return &Services{graph: graph, versions: versions, traversal: tr}, nil
}
