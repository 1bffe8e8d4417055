// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/compgraph/compgraph/internal/ledger"
	"github.com/compgraph/compgraph/internal/ontology"
	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/traversal"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Backend status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	// Graph
	huma.Register(s.api, huma.Operation{
		OperationID: "export-graph",
		Method:      http.MethodGet,
		Path:        "/api/v1/competencies/graph",
		Summary:     "Export the whole graph",
		Tags:        []string{"graph"},
	}, s.handleExportGraph)

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-graph",
		Method:      http.MethodPost,
		Path:        "/api/v1/competencies/graph",
		Summary:     "Apply a batch of node and link descriptors",
		Tags:        []string{"graph"},
	}, s.handleApplyGraph)

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-graph",
		Method:      http.MethodDelete,
		Path:        "/api/v1/competencies/graph",
		Summary:     "Remove every statement",
		Tags:        []string{"graph"},
	}, s.handleClearGraph)

	huma.Register(s.api, huma.Operation{
		OperationID: "add-triple",
		Method:      http.MethodPost,
		Path:        "/api/v1/triples",
		Summary:     "Insert one statement",
		Tags:        []string{"graph"},
	}, s.handleAddTriple)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-triple",
		Method:      http.MethodDelete,
		Path:        "/api/v1/triples",
		Summary:     "Remove one statement",
		Tags:        []string{"graph"},
	}, s.handleDeleteTriple)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-node",
		Method:      http.MethodDelete,
		Path:        "/api/v1/nodes/{node}",
		Summary:     "Remove every statement about a node",
		Tags:        []string{"graph"},
	}, s.handleDeleteNode)

	// Traversal
	huma.Register(s.api, huma.Operation{
		OperationID: "neighborhood",
		Method:      http.MethodGet,
		Path:        "/api/v1/competencies/graph/{node}",
		Summary:     "Subgraph around a node",
		Tags:        []string{"traversal"},
	}, s.handleNeighborhood)

	huma.Register(s.api, huma.Operation{
		OperationID: "find-path",
		Method:      http.MethodGet,
		Path:        "/api/v1/competencies/path",
		Summary:     "Nodes connected to end when start reaches it",
		Tags:        []string{"traversal"},
	}, s.handleFindPath)

	huma.Register(s.api, huma.Operation{
		OperationID: "ancestors",
		Method:      http.MethodGet,
		Path:        "/api/v1/competencies/{node}/ancestors",
		Summary:     "Transitive ancestors of a competence",
		Tags:        []string{"traversal"},
	}, s.handleAncestors)

	huma.Register(s.api, huma.Operation{
		OperationID: "descendants",
		Method:      http.MethodGet,
		Path:        "/api/v1/competencies/{node}/descendants",
		Summary:     "Transitive descendants of a competence",
		Tags:        []string{"traversal"},
	}, s.handleDescendants)

	// Versions
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/v1/nodes/version",
		Summary:     "Current version of a node",
		Tags:        []string{"versions"},
	}, s.handleGetVersion)

	huma.Register(s.api, huma.Operation{
		OperationID: "batch-versions",
		Method:      http.MethodPost,
		Path:        "/api/v1/nodes/versions",
		Summary:     "Current versions of several nodes",
		Tags:        []string{"versions"},
	}, s.handleBatchVersions)

	huma.Register(s.api, huma.Operation{
		OperationID: "node-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/nodes/history",
		Summary:     "Change history of a node, most recent first",
		Tags:        []string{"versions"},
	}, s.handleHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-node",
		Method:      http.MethodPost,
		Path:        "/api/v1/nodes/update",
		Summary:     "Record a change if the expected version still holds",
		Tags:        []string{"versions"},
	}, s.handleUpdateNode)

	huma.Register(s.api, huma.Operation{
		OperationID: "version-statistics",
		Method:      http.MethodGet,
		Path:        "/api/v1/versions/statistics",
		Summary:     "Ledger statistics",
		Tags:        []string{"versions"},
	}, s.handleStatistics)
}

// --- Request/Response types for huma ---

type statusOutput struct {
	Body struct {
		Status      string `json:"status" example:"ok" doc:"ok or degraded"`
		Version     string `json:"version"`
		Triples     int64  `json:"triples"`
		TripleStore string `json:"triplestore" doc:"ok or the ping error"`
		Ledger      string `json:"ledger" doc:"ok or the ping error"`
	}
}

type graphOutput struct {
	Body *ontology.Graph
}

type applyGraphInput struct {
	Body struct {
		Nodes []ontology.Node `json:"nodes" required:"false"`
		Links []ontology.Link `json:"links" required:"false"`
	}
}

type applyGraphOutput struct {
	Body *ontology.ApplyResult
}

type clearGraphInput struct {
	Confirm bool `query:"confirm" doc:"Must be true"`
}

type statusMessageOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type tripleInput struct {
	Body ontology.TripleInput
}

type tripleOutput struct {
	Body struct {
		Triple  store.Triple `json:"triple"`
		Version int64        `json:"version,omitempty" doc:"New subject version when X-User-ID was sent"`
	}
}

type nodeInput struct {
	Node string `path:"node" doc:"Node URI (escaped) or local name"`
}

type deleteNodeOutput struct {
	Body struct {
		Status  string `json:"status"`
		Node    string `json:"node"`
		Version int64  `json:"version,omitempty"`
	}
}

type neighborhoodInput struct {
	Node   string `path:"node"`
	Depth  int    `query:"depth" default:"2" doc:"Hops, 1 to 5"`
	Limit  int    `query:"limit" doc:"Page size, at most 100"`
	Offset int    `query:"offset"`
}

type neighborhoodOutput struct {
	Body *traversal.Graph
}

type closureInput struct {
	Node   string `path:"node"`
	Limit  int    `query:"limit" doc:"Page size, at most 100"`
	Offset int    `query:"offset"`
}

type nodeRefsOutput struct {
	Body []store.NodeRef
}

type findPathInput struct {
	Start string `query:"start_id" required:"true"`
	End   string `query:"end_id" required:"true"`
}

type versionInput struct {
	URI string `query:"uri" required:"true"`
}

type versionOutput struct {
	Body store.VersionRecord
}

type batchVersionsInput struct {
	Body struct {
		URIs []string `json:"uris" maxItems:"500"`
	}
}

type batchVersionsOutput struct {
	Body struct {
		Versions []store.VersionRecord `json:"versions"`
	}
}

type historyInput struct {
	URI   string `query:"uri" required:"true"`
	Limit int    `query:"limit" doc:"Defaults to 10, at most 1000"`
}

type historyOutput struct {
	Body struct {
		History []store.HistoryEntry `json:"history"`
	}
}

type updateNodeInput struct {
	Body struct {
		NodeURI         string           `json:"node_uri"`
		ExpectedVersion int64            `json:"expected_version"`
		ChangeType      store.ChangeKind `json:"change_type" required:"false" doc:"Defaults to UPDATE"`
		OldValue        any              `json:"old_value,omitempty"`
		NewValue        any              `json:"new_value,omitempty"`
	}
}

type updateNodeOutput struct {
	Body struct {
		NodeURI string `json:"node_uri"`
		Version int64  `json:"version"`
	}
}

type statisticsInput struct {
	Top    int `query:"top" doc:"Top contributors, defaults to 10"`
	Recent int `query:"recent" doc:"Recent changes, defaults to 10"`
}

type statisticsOutput struct {
	Body *store.Stats
}

// --- Handlers ---

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Version = Version
	out.Body.TripleStore = "ok"
	out.Body.Ledger = "ok"

	if err := s.services.graph.Ping(ctx); err != nil {
		out.Body.Status = "degraded"
		out.Body.TripleStore = err.Error()
	} else if n, err := s.services.graph.Count(ctx); err == nil {
		out.Body.Triples = n
	}
	if err := s.services.versions.Ping(ctx); err != nil {
		out.Body.Status = "degraded"
		out.Body.Ledger = err.Error()
	}
	return out, nil
}

func (s *Server) handleExportGraph(ctx context.Context, _ *struct{}) (*graphOutput, error) {
	g, err := s.services.graph.ExportGraph(ctx)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	return &graphOutput{Body: g}, nil
}

func (s *Server) handleApplyGraph(ctx context.Context, input *applyGraphInput) (*applyGraphOutput, error) {
	res, err := s.services.graph.ApplyGraph(ctx, ontology.Graph{Nodes: input.Body.Nodes, Links: input.Body.Links})
	if err != nil {
		return nil, apiError(ctx, err)
	}
	if res.Skipped == nil {
		res.Skipped = []ontology.Skip{}
	}
	return &applyGraphOutput{Body: res}, nil
}

func (s *Server) handleClearGraph(ctx context.Context, input *clearGraphInput) (*statusMessageOutput, error) {
	if err := s.services.graph.ClearAll(ctx, input.Confirm); err != nil {
		return nil, apiError(ctx, err)
	}
	out := &statusMessageOutput{}
	out.Body.Status = "cleared"
	return out, nil
}

func (s *Server) handleAddTriple(ctx context.Context, input *tripleInput) (*tripleOutput, error) {
	t, err := s.services.graph.AddTriple(ctx, input.Body)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	out := &tripleOutput{}
	out.Body.Triple = t
	out.Body.Version = s.record(ctx, t.Subject, store.ChangeUpdate, nil, t)
	return out, nil
}

func (s *Server) handleDeleteTriple(ctx context.Context, input *tripleInput) (*tripleOutput, error) {
	t, err := s.services.graph.DeleteTriple(ctx, input.Body)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	out := &tripleOutput{}
	out.Body.Triple = t
	out.Body.Version = s.record(ctx, t.Subject, store.ChangeUpdate, t, nil)
	return out, nil
}

func (s *Server) handleDeleteNode(ctx context.Context, input *nodeInput) (*deleteNodeOutput, error) {
	node := pathNode(input.Node)
	if err := s.services.graph.DeleteNode(ctx, node); err != nil {
		return nil, apiError(ctx, err)
	}
	out := &deleteNodeOutput{}
	out.Body.Status = "deleted"
	out.Body.Node = node
	out.Body.Version = s.record(ctx, node, store.ChangeDelete, nil, nil)
	return out, nil
}

// record bumps the node version on behalf of the X-User-ID caller. Anonymous
// mutations are not versioned. A failed bump is logged and reported as
// version 0; the mutation itself has already been applied.
func (s *Server) record(ctx context.Context, uri string, kind store.ChangeKind, oldValue, newValue any) int64 {
	user, ok := UserFromContext(ctx)
	if !ok {
		return 0
	}
	c := ledger.Change{NodeURI: uri, UserID: user, Kind: kind}
	if oldValue != nil {
		c.OldValue, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		c.NewValue, _ = json.Marshal(newValue)
	}
	v, err := s.services.versions.BumpVersion(ctx, c)
	if err != nil {
		logger(ctx).WarnContext(ctx, "mutation applied but version not recorded",
			"node_uri", uri, "user_id", user, "error", err)
		return 0
	}
	return v
}

func (s *Server) handleNeighborhood(ctx context.Context, input *neighborhoodInput) (*neighborhoodOutput, error) {
	g, err := s.services.traversal.Neighborhood(ctx, pathNode(input.Node), input.Depth, input.Limit, input.Offset)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	return &neighborhoodOutput{Body: g}, nil
}

func (s *Server) handleFindPath(ctx context.Context, input *findPathInput) (*nodeRefsOutput, error) {
	refs, err := s.services.traversal.FindPath(ctx, input.Start, input.End)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	return &nodeRefsOutput{Body: refs}, nil
}

func (s *Server) handleAncestors(ctx context.Context, input *closureInput) (*nodeRefsOutput, error) {
	refs, err := s.services.traversal.Ancestors(ctx, pathNode(input.Node), input.Limit, input.Offset)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	return &nodeRefsOutput{Body: refs}, nil
}

func (s *Server) handleDescendants(ctx context.Context, input *closureInput) (*nodeRefsOutput, error) {
	refs, err := s.services.traversal.Descendants(ctx, pathNode(input.Node), input.Limit, input.Offset)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	return &nodeRefsOutput{Body: refs}, nil
}

func (s *Server) handleGetVersion(ctx context.Context, input *versionInput) (*versionOutput, error) {
	rec, err := s.services.versions.GetVersion(ctx, input.URI)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	return &versionOutput{Body: rec}, nil
}

func (s *Server) handleBatchVersions(ctx context.Context, input *batchVersionsInput) (*batchVersionsOutput, error) {
	recs, err := s.services.versions.BatchGetVersions(ctx, input.Body.URIs)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	out := &batchVersionsOutput{}
	out.Body.Versions = recs
	if out.Body.Versions == nil {
		out.Body.Versions = []store.VersionRecord{}
	}
	return out, nil
}

func (s *Server) handleHistory(ctx context.Context, input *historyInput) (*historyOutput, error) {
	hist, err := s.services.versions.GetHistory(ctx, input.URI, input.Limit)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	out := &historyOutput{}
	out.Body.History = hist
	if out.Body.History == nil {
		out.Body.History = []store.HistoryEntry{}
	}
	return out, nil
}

func (s *Server) handleUpdateNode(ctx context.Context, input *updateNodeInput) (*updateNodeOutput, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, apiError(ctx, cgerr.New(cgerr.CodeServerAuthUnauthorized, UserHeader+" header is required"))
	}
	kind := input.Body.ChangeType
	if kind == "" {
		kind = store.ChangeUpdate
	}
	c := ledger.Change{NodeURI: input.Body.NodeURI, UserID: user, Kind: kind}
	var err error
	if c.OldValue, err = snapshot(input.Body.OldValue); err != nil {
		return nil, apiError(ctx, err)
	}
	if c.NewValue, err = snapshot(input.Body.NewValue); err != nil {
		return nil, apiError(ctx, err)
	}

	v, err := s.services.versions.UpdateWithVersion(ctx, c, input.Body.ExpectedVersion)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	out := &updateNodeOutput{}
	out.Body.NodeURI = input.Body.NodeURI
	out.Body.Version = v
	return out, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, cgerr.Wrap(err, cgerr.CodeServerRequestInvalid, "encoding snapshot")
	}
	return raw, nil
}

func (s *Server) handleStatistics(ctx context.Context, input *statisticsInput) (*statisticsOutput, error) {
	stats, err := s.services.versions.Statistics(ctx, input.Top, input.Recent)
	if err != nil {
		return nil, apiError(ctx, err)
	}
	return &statisticsOutput{Body: stats}, nil
}

// pathNode decodes a node path parameter so full URIs can be sent escaped.
func pathNode(raw string) string {
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
