// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compgraph/compgraph/internal/ledger"
	"github.com/compgraph/compgraph/internal/ontology"
	"github.com/compgraph/compgraph/internal/server"
	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/store/sqlite"
	"github.com/compgraph/compgraph/internal/traversal"
	"github.com/compgraph/compgraph/internal/vocab"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const ex = "http://example.org/competencies#"

type stack struct {
	srv     *server.Server
	triples *sqlite.TripleStore
	ledger  *ledger.Service
}

func newTestStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()

	ts, err := sqlite.NewTripleStore(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ts.Close() })
	lg, err := sqlite.NewLedger(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lg.Close() })

	gw, err := ontology.NewGateway(ontology.GatewayConfig{Store: ts})
	require.NoError(t, err)
	led, err := ledger.New(ledger.Config{Store: lg})
	require.NoError(t, err)
	eng, err := traversal.New(traversal.Config{Store: ts})
	require.NoError(t, err)

	svc, err := server.NewServices(gw, led, eng)
	require.NoError(t, err)
	return &stack{srv: newBareServer(t, server.Config{Services: svc}), triples: ts, ledger: led}
}

type call struct {
	method string
	path   string
	body   any
	user   int64
}

func (s *stack) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user > 0 {
		req.Header.Set(server.UserHeader, strconv.FormatInt(c.user, 10))
	}
	return serve(s.srv, req)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Errors []struct {
		Location string `json:"location"`
		Value    any    `json:"value"`
	} `json:"errors"`
}

func TestNewServices_RequiresAll(t *testing.T) {
	_, err := server.NewServices(nil, nil, nil)
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeServerConfigInvalid))
}

func TestRoutes_Status(t *testing.T) {
	s := newTestStack(t)
	require.NoError(t, s.triples.Insert(context.Background(), store.Triple{
		Subject: ex + "a", Predicate: vocab.DefaultHierarchy, Object: store.IRI(ex + "b"),
	}))

	w := s.do(t, call{method: http.MethodGet, path: "/api/v1/status"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[map[string]any](t, w)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "ok", got["ledger"])
	assert.EqualValues(t, 1, got["triples"])
}

func TestRoutes_ApplyGraphScenario(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/competencies/graph", body: map[string]any{
		"nodes": []map[string]string{
			{"id": "not-a-uri", "label": "Bad"},
			{"id": ex + "compA", "label": "Competence A", "type": "class"},
			{"id": ex + "compB", "label": "Competence B", "type": "class"},
		},
		"links": []map[string]string{
			{"source": ex + "compA", "predicate": vocab.DefaultHierarchy, "target": ex + "compB"},
		},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[ontology.ApplyResult](t, w)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 2, res.AppliedNodes)
	assert.Equal(t, 1, res.AppliedLinks)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, ontology.SkipInvalid, res.Skipped[0].Reason)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/competencies/compA/descendants"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []store.NodeRef{{URI: ex + "compB", Label: "Competence B"}}, decode[[]store.NodeRef](t, w))

	escaped := "/api/v1/competencies/" + url.PathEscape(ex+"compB") + "/ancestors"
	w = s.do(t, call{method: http.MethodGet, path: escaped})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []store.NodeRef{{URI: ex + "compA", Label: "Competence A"}}, decode[[]store.NodeRef](t, w))

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/competencies/graph"})
	require.Equal(t, http.StatusOK, w.Code)
	g := decode[ontology.Graph](t, w)
	assert.Contains(t, g.Links, ontology.Link{
		Source:     ex + "compA",
		Predicate:  vocab.DefaultHierarchy,
		Target:     ex + "compB",
		TargetKind: store.TermIRI,
	})
	for _, l := range g.Links {
		assert.NotEqual(t, vocab.RDFSLabel, l.Predicate, "literal statements are not links")
	}
}

func TestRoutes_TraversalQueries(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}} {
		require.NoError(t, s.triples.Insert(ctx, store.Triple{
			Subject: ex + pair[0], Predicate: vocab.DefaultHierarchy, Object: store.IRI(ex + pair[1]),
		}))
	}
	require.NoError(t, s.triples.PutNode(ctx, ex+"a", vocab.RDFSClass, "A"))

	w := s.do(t, call{method: http.MethodGet, path: "/api/v1/competencies/path?start_id=a&end_id=c"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ids []string
	for _, r := range decode[[]store.NodeRef](t, w) {
		ids = append(ids, r.URI)
	}
	assert.ElementsMatch(t, []string{ex + "a", ex + "b", ex + "c"}, ids)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/competencies/path?start_id=c&end_id=a"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/competencies/graph/a?depth=1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	g := decode[traversal.Graph](t, w)
	assert.Len(t, g.Nodes, 3)
	assert.Contains(t, g.Links, store.Edge{Source: ex + "a", Predicate: vocab.RDFType, Target: vocab.RDFSClass})
	assert.Len(t, g.Links, 2)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/competencies/graph/a?depth=9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/competencies/a/descendants?limit=101"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutes_TripleLifecycle(t *testing.T) {
	s := newTestStack(t)
	triple := map[string]string{"subject": "compA", "predicate": ex + "requires", "object": "compB", "object_kind": "iri"}

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/triples", body: triple})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[map[string]any](t, w)
	assert.NotContains(t, got, "version", "anonymous mutations are not versioned")

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/triples", body: triple, user: 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["version"])

	n, err := s.triples.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	w = s.do(t, call{method: http.MethodDelete, path: "/api/v1/triples", body: triple, user: 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["version"])

	n, err = s.triples.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	hist, err := s.ledger.GetHistory(context.Background(), ex+"compA", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.NotEmpty(t, hist[0].OldValue)
	assert.Empty(t, hist[0].NewValue)
}

func TestRoutes_MutationErrors(t *testing.T) {
	s := newTestStack(t)

	tests := []struct {
		name string
		c    call
		want int
	}{
		{"bad subject", call{method: http.MethodPost, path: "/api/v1/triples", body: map[string]string{
			"subject": "a b", "predicate": ex + "p", "object": "x"}}, http.StatusBadRequest},
		{"protected predicate", call{method: http.MethodPost, path: "/api/v1/triples", body: map[string]string{
			"subject": ex + "a", "predicate": vocab.RDFType, "object": vocab.OWLClass}}, http.StatusForbidden},
		{"protected node", call{method: http.MethodDelete, path: "/api/v1/nodes/" + url.PathEscape(vocab.RDFSClass)}, http.StatusForbidden},
		{"clear without confirm", call{method: http.MethodDelete, path: "/api/v1/competencies/graph"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.c)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, tt.want, decode[problem](t, w).Status)
		})
	}
}

func TestRoutes_DeleteNodeAndClear(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	require.NoError(t, s.triples.Insert(ctx,
		store.Triple{Subject: ex + "a", Predicate: vocab.DefaultHierarchy, Object: store.IRI(ex + "b")},
		store.Triple{Subject: ex + "b", Predicate: vocab.DefaultHierarchy, Object: store.IRI(ex + "c")},
	))

	w := s.do(t, call{method: http.MethodDelete, path: "/api/v1/nodes/b", user: 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[map[string]any](t, w)
	assert.Equal(t, ex+"b", got["node"])
	assert.EqualValues(t, 1, got["version"])

	n, err := s.triples.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.triples.Insert(ctx, store.Triple{Subject: ex + "x", Predicate: ex + "p", Object: store.Literal("v")}))
	w = s.do(t, call{method: http.MethodDelete, path: "/api/v1/competencies/graph?confirm=true"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	n, err = s.triples.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRoutes_VersionWorkflow(t *testing.T) {
	s := newTestStack(t)
	update := func(expected int64, user int64) *httptest.ResponseRecorder {
		return s.do(t, call{method: http.MethodPost, path: "/api/v1/nodes/update", user: user, body: map[string]any{
			"node_uri":         "compA",
			"expected_version": expected,
			"old_value":        map[string]string{"label": "A"},
			"new_value":        map[string]string{"label": "A2"},
		}})
	}

	w := update(0, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	w = update(0, 1)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["version"])

	w = update(1, 2)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["version"])

	w = update(1, 2)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	p := decode[problem](t, w)
	fields := map[string]any{}
	for _, e := range p.Errors {
		fields[e.Location] = e.Value
	}
	assert.EqualValues(t, 1, fields["expected_version"])
	assert.EqualValues(t, 2, fields["current_version"])
	assert.Equal(t, ex+"compA", fields["node_uri"])

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/nodes/version?uri=compA"})
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[store.VersionRecord](t, w)
	assert.Equal(t, int64(2), rec.Version)
	require.NotNil(t, rec.LastModifiedBy)
	assert.Equal(t, int64(2), *rec.LastModifiedBy)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/nodes/versions", body: map[string]any{
		"uris": []string{"compA", ex + "never"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	batch := decode[struct {
		Versions []store.VersionRecord `json:"versions"`
	}](t, w)
	require.Len(t, batch.Versions, 2)
	assert.Equal(t, int64(2), batch.Versions[0].Version)
	assert.Equal(t, store.Unversioned(ex+"never").Version, batch.Versions[1].Version)
	assert.Nil(t, batch.Versions[1].LastModifiedBy)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/nodes/history?uri=compA&limit=1"})
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[struct {
		History []store.HistoryEntry `json:"history"`
	}](t, w)
	require.Len(t, hist.History, 1)
	assert.Equal(t, int64(2), hist.History[0].Version)
	assert.JSONEq(t, `{"label":"A2"}`, string(hist.History[0].NewValue))

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/nodes/history?uri=compA&limit=1001"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/versions/statistics"})
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[store.Stats](t, w)
	assert.Equal(t, int64(1), stats.VersionedNodes)
	assert.Equal(t, int64(2), stats.HistoryCount)
}

func TestRoutes_VersionValidation(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, call{method: http.MethodGet, path: "/api/v1/nodes/version?uri=" + url.QueryEscape("a b")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/nodes/update", user: 1, body: map[string]any{
		"node_uri": "compA", "expected_version": 0, "change_type": "RENAME",
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

// downGraph reports every call as a store outage.
type downGraph struct {
	server.GraphService
}

var errDown = cgerr.New(cgerr.CodeStoreTriplesUnavailable, "circuit breaker is open")

func (downGraph) ExportGraph(context.Context) (*ontology.Graph, error) { return nil, errDown }
func (downGraph) Ping(context.Context) error                        { return errDown }

func TestRoutes_StoreOutage(t *testing.T) {
	dir := t.TempDir()
	lg, err := sqlite.NewLedger(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lg.Close() })
	led, err := ledger.New(ledger.Config{Store: lg})
	require.NoError(t, err)
	ts, err := sqlite.NewTripleStore(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ts.Close() })
	eng, err := traversal.New(traversal.Config{Store: ts})
	require.NoError(t, err)

	svc, err := server.NewServices(downGraph{}, led, eng)
	require.NoError(t, err)
	srv := newBareServer(t, server.Config{Services: svc})

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/v1/competencies/graph", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "circuit breaker", "server-side causes stay in the log")

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, "degraded", got["status"])
	assert.Equal(t, "ok", got["ledger"])
}
