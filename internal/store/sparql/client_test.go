// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sparql_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/store/sparql"
	"github.com/compgraph/compgraph/internal/vocab"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

const ex = "http://example.org/competencies#"

// fakeEndpoint records requests and answers with canned responses.
type fakeEndpoint struct {
	mu       sync.Mutex
	queries  []string
	updates  []string
	paths    []string
	auth     []string
	status   int
	response any
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	if q := r.PostForm.Get("query"); q != "" {
		f.queries = append(f.queries, q)
	}
	if u := r.PostForm.Get("update"); u != "" {
		f.updates = append(f.updates, u)
	}
	user, pass, _ := r.BasicAuth()
	f.auth = append(f.auth, user+":"+pass)
	status, response := f.status, f.response
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, "boom", status)
		return
	}
	w.Header().Set("Content-Type", "application/sparql-results+json")
	if response == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = json.NewEncoder(w).Encode(response)
}

func newStore(t *testing.T, f *fakeEndpoint, opts sparql.Options) *sparql.TripleStore {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	opts.URL = srv.URL
	if opts.Repository == "" {
		opts.Repository = "competencies"
	}
	c, err := sparql.NewClient(opts)
	require.NoError(t, err)
	return sparql.NewTripleStore(c)
}

func bindings(rows ...map[string]sparql.Binding) map[string]any {
	return map[string]any{
		"head":    map[string]any{"vars": []string{}},
		"results": map[string]any{"bindings": rows},
	}
}

func uri(v string) sparql.Binding { return sparql.Binding{Type: "uri", Value: v} }
func lit(v string) sparql.Binding { return sparql.Binding{Type: "literal", Value: v} }

func TestNewClientValidatesOptions(t *testing.T) {
	_, err := sparql.NewClient(sparql.Options{Repository: "r"})
	require.Error(t, err)
	assert.True(t, cgerr.IsInvalidInput(err))

	_, err = sparql.NewClient(sparql.Options{URL: "not a url", Repository: "r"})
	require.Error(t, err)
}

func TestInsertPostsUpdateToStatements(t *testing.T) {
	f := &fakeEndpoint{}
	s := newStore(t, f, sparql.Options{Username: "admin", Password: "secret"})

	err := s.Insert(context.Background(),
		store.Triple{Subject: ex + "a", Predicate: vocab.DefaultHierarchy, Object: store.IRI(ex + "b")},
		store.Triple{Subject: ex + "a", Predicate: vocab.RDFSLabel, Object: store.Literal("say \"hi\"\n")},
	)
	require.NoError(t, err)

	require.Len(t, f.updates, 1)
	assert.Equal(t, "/repositories/competencies/statements", f.paths[0])
	assert.Equal(t, "admin:secret", f.auth[0])
	u := f.updates[0]
	assert.Contains(t, u, "INSERT DATA {")
	assert.Contains(t, u, "<"+ex+"a> <"+vocab.DefaultHierarchy+"> <"+ex+"b> .")
	assert.Contains(t, u, `"say \"hi\"\n"`)
}

func TestInsertRejectsUnsafeIRI(t *testing.T) {
	f := &fakeEndpoint{}
	s := newStore(t, f, sparql.Options{})

	err := s.Insert(context.Background(),
		store.Triple{Subject: ex + "a> <x", Predicate: vocab.DefaultHierarchy, Object: store.IRI(ex + "b")},
	)
	require.Error(t, err)
	assert.True(t, cgerr.IsInvalidInput(err))
	assert.Empty(t, f.updates, "nothing reaches the server")
}

func TestTypedAndTaggedLiterals(t *testing.T) {
	f := &fakeEndpoint{}
	s := newStore(t, f, sparql.Options{})

	require.NoError(t, s.Insert(context.Background(),
		store.Triple{Subject: ex + "a", Predicate: ex + "level", Object: store.Term{Value: "3", Kind: store.TermLiteral, Datatype: vocab.XSD + "integer"}},
		store.Triple{Subject: ex + "a", Predicate: vocab.RDFSLabel, Object: store.Term{Value: "Навык", Kind: store.TermLiteral, Lang: "ru"}},
	))
	require.Len(t, f.updates, 1)
	assert.Contains(t, f.updates[0], `"3"^^<`+vocab.XSD+`integer>`)
	assert.Contains(t, f.updates[0], `"Навык"@ru`)
}

func TestDeleteNodeIsOneCompoundRequest(t *testing.T) {
	f := &fakeEndpoint{}
	s := newStore(t, f, sparql.Options{})

	require.NoError(t, s.DeleteNode(context.Background(), ex+"a"))
	require.Len(t, f.updates, 1)
	assert.Contains(t, f.updates[0], "DELETE WHERE { <"+ex+"a> ?p ?o } ;")
	assert.Contains(t, f.updates[0], "DELETE WHERE { ?s ?p <"+ex+"a> }")
}

func TestPutNodeReplacesLabel(t *testing.T) {
	f := &fakeEndpoint{}
	s := newStore(t, f, sparql.Options{})

	require.NoError(t, s.PutNode(context.Background(), ex+"a", vocab.RDFSClass, "A"))
	require.Len(t, f.updates, 1)
	assert.Contains(t, f.updates[0], "DELETE WHERE { <"+ex+"a> rdfs:label ?label } ;")
	assert.Contains(t, f.updates[0], "<"+ex+"a> rdf:type <"+vocab.RDFSClass+">")
	assert.Contains(t, f.updates[0], `rdfs:label "A"`)
}

func TestClosureQueryAndLabelFallback(t *testing.T) {
	f := &fakeEndpoint{response: bindings(
		map[string]sparql.Binding{"node": uri(ex + "b"), "label": lit("B")},
		map[string]sparql.Binding{"node": uri(ex + "c")},
	)}
	s := newStore(t, f, sparql.Options{})

	refs, err := s.Closure(context.Background(), store.ClosureQuery{
		Start: ex + "a", Predicate: vocab.DefaultHierarchy, Direction: store.Down,
		Page: store.Page{Limit: 50, Offset: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, []store.NodeRef{{URI: ex + "b", Label: "B"}, {URI: ex + "c", Label: ex + "c"}}, refs)

	require.Len(t, f.queries, 1)
	q := f.queries[0]
	assert.Equal(t, "/repositories/competencies", f.paths[0])
	assert.Contains(t, q, "PREFIX rdfs: <"+vocab.RDFS+">")
	assert.Contains(t, q, "<"+ex+"a> (<"+vocab.DefaultHierarchy+">)+ ?node")
	assert.Contains(t, q, "FILTER(?node != <"+ex+"a>)")
	assert.Contains(t, q, "FILTER(isIRI(?node))")
	assert.Contains(t, q, "LIMIT 50 OFFSET 10")

	_, err = s.Closure(context.Background(), store.ClosureQuery{
		Start: ex + "c", Predicate: vocab.DefaultHierarchy, Direction: store.Up,
	})
	require.NoError(t, err)
	assert.Contains(t, f.queries[1], "?node (<"+vocab.DefaultHierarchy+">)+ <"+ex+"c>")
}

func TestHasChainUsesAsk(t *testing.T) {
	yes := true
	f := &fakeEndpoint{response: map[string]any{"head": map[string]any{}, "boolean": yes}}
	s := newStore(t, f, sparql.Options{})

	ok, err := s.HasChain(context.Background(), vocab.DefaultHierarchy, ex+"a", ex+"c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, f.queries[0], "ASK { <"+ex+"a> (<"+vocab.DefaultHierarchy+">)+ <"+ex+"c> }")
}

func TestConnectedDeduplicatesInServerOrder(t *testing.T) {
	f := &fakeEndpoint{response: bindings(
		map[string]sparql.Binding{"node": uri(ex + "c")},
		map[string]sparql.Binding{"node": uri(ex + "a"), "label": lit("A")},
		map[string]sparql.Binding{"node": uri(ex + "a"), "label": lit("A alt")},
		map[string]sparql.Binding{"node": uri(ex + "d")},
	)}
	s := newStore(t, f, sparql.Options{})

	refs, err := s.Connected(context.Background(), vocab.DefaultHierarchy, ex+"c")
	require.NoError(t, err)
	assert.Equal(t, []store.NodeRef{
		{URI: ex + "c", Label: ex + "c"},
		{URI: ex + "a", Label: "A"},
		{URI: ex + "d", Label: ex + "d"},
	}, refs)
}

func TestReachableBuildsBoundedUnion(t *testing.T) {
	f := &fakeEndpoint{response: bindings(
		map[string]sparql.Binding{"id": uri(ex + "a"), "label": lit("A"), "kind": lit("class")},
		map[string]sparql.Binding{"id": uri(ex + "b"), "kind": lit("literal")},
	)}
	s := newStore(t, f, sparql.Options{})

	nodes, err := s.Reachable(context.Background(), store.ReachQuery{
		Start: ex + "a", Depth: 2, Exclude: []string{vocab.RDFType}, Page: store.Page{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, []store.GraphNode{
		{URI: ex + "a", Label: "A", Kind: store.KindClass},
		{URI: ex + "b", Label: ex + "b", Kind: store.KindLiteral},
	}, nodes)

	q := f.queries[0]
	assert.Contains(t, q, "BIND(<"+ex+"a> AS ?id) BIND(0 AS ?d)")
	assert.Contains(t, q, "<"+ex+"a> ?p1 ?id .")
	assert.Contains(t, q, "<"+ex+"a> ?p1 ?n1 . ?n1 ?p2 ?id .")
	assert.Contains(t, q, "?p2 NOT IN (<"+vocab.RDFType+">)")
	assert.NotContains(t, q, "?p3")
	assert.Contains(t, q, "LIMIT 10")
}

func TestEdgesAmongUsesValues(t *testing.T) {
	f := &fakeEndpoint{response: bindings(
		map[string]sparql.Binding{"source": uri(ex + "a"), "predicate": uri(vocab.DefaultHierarchy), "target": uri(ex + "b")},
	)}
	s := newStore(t, f, sparql.Options{})

	edges, err := s.EdgesAmong(context.Background(), []string{ex + "a", ex + "b"})
	require.NoError(t, err)
	assert.Equal(t, []store.Edge{{Source: ex + "a", Predicate: vocab.DefaultHierarchy, Target: ex + "b"}}, edges)
	assert.Contains(t, f.queries[0], "VALUES ?source { <"+ex+"a> <"+ex+"b> }")
	assert.Contains(t, f.queries[0], "FILTER(?source != ?target)")

	none, err := s.EdgesAmong(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Len(t, f.queries, 1, "empty input issues no request")
}

func TestMatchAndCount(t *testing.T) {
	f := &fakeEndpoint{response: bindings(
		map[string]sparql.Binding{"p": uri(vocab.RDFSLabel), "o": {Type: "literal", Value: "A", Lang: "en"}},
	)}
	s := newStore(t, f, sparql.Options{})

	triples, err := s.Match(context.Background(), store.Pattern{Subject: ex + "a"})
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, ex+"a", triples[0].Subject)
	assert.Equal(t, store.Term{Value: "A", Kind: store.TermLiteral, Lang: "en"}, triples[0].Object)

	f.mu.Lock()
	f.response = bindings(map[string]sparql.Binding{"n": {Type: "literal", Value: "42", Datatype: vocab.XSD + "integer"}})
	f.mu.Unlock()

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestMatchKeepsBlankNodesApart(t *testing.T) {
	f := &fakeEndpoint{response: bindings(
		map[string]sparql.Binding{"s": uri(ex + "a"), "p": uri(ex + "hasPart"), "o": {Type: "bnode", Value: "b0"}},
		map[string]sparql.Binding{"s": {Type: "bnode", Value: "b0"}, "p": uri(vocab.RDFSLabel), "o": lit("part")},
	)}
	s := newStore(t, f, sparql.Options{})
	ctx := context.Background()

	triples, err := s.Match(ctx, store.Pattern{})
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, store.Term{Value: "_:b0", Kind: store.TermBlank}, triples[0].Object)
	assert.False(t, triples[0].Object.IsIRI())
	assert.Equal(t, "_:b0", triples[1].Subject)

	err = s.Delete(ctx, triples[0])
	require.Error(t, err)
	assert.True(t, cgerr.IsInvalidInput(err))
	err = s.Delete(ctx, triples[1])
	require.Error(t, err)
	assert.True(t, cgerr.IsInvalidInput(err))
	assert.Empty(t, f.updates, "blank nodes never reach an update")
}

func TestServerErrorIsStoreFailure(t *testing.T) {
	f := &fakeEndpoint{status: http.StatusBadRequest}
	s := newStore(t, f, sparql.Options{FailureThreshold: 1})

	err := s.Clear(context.Background())
	require.Error(t, err)
	assert.True(t, cgerr.HasCode(err, cgerr.CodeStoreTriplesFailure))
	assert.False(t, cgerr.IsUnavailable(err))
	assert.Equal(t, gobreaker.StateClosed, s.Client().State(), "4xx does not trip the breaker")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	f := &fakeEndpoint{status: http.StatusInternalServerError}
	var transitions []string
	s := newStore(t, f, sparql.Options{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := s.Ping(ctx)
		require.Error(t, err)
		assert.True(t, cgerr.HasCode(err, cgerr.CodeStoreTriplesFailure))
	}
	assert.Equal(t, gobreaker.StateOpen, s.Client().State())
	assert.Equal(t, []string{"closed->open"}, transitions)

	err := s.Ping(ctx)
	require.Error(t, err)
	assert.True(t, cgerr.IsUnavailable(err))
	assert.Len(t, f.queries, 2, "open breaker short-circuits requests")
}

func TestUnreachableEndpointIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := sparql.NewClient(sparql.Options{URL: addr, Repository: "competencies", Timeout: time.Second})
	require.NoError(t, err)

	err = sparql.NewTripleStore(c).Ping(context.Background())
	require.Error(t, err)
	assert.True(t, cgerr.IsUnavailable(err))
}
