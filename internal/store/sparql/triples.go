// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sparql

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/vocab"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// Compile-time interface check.
var _ store.TripleStore = (*TripleStore)(nil)

// TripleStore implements store.TripleStore over a SPARQL repository.
type TripleStore struct {
	client *Client
}

// NewTripleStore wraps a client.
func NewTripleStore(client *Client) *TripleStore {
	return &TripleStore{client: client}
}

// Client exposes the underlying protocol client.
func (s *TripleStore) Client() *Client {
	return s.client
}

// Close is a no-op; the HTTP client holds no exclusive resources.
func (s *TripleStore) Close() error {
	return nil
}

var prologue = func() string {
	names := make([]string, 0, len(vocab.Prefixes))
	for name := range vocab.Prefixes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "PREFIX %s: <%s>\n", name, vocab.Prefixes[name])
	}
	return b.String()
}()

func (s *TripleStore) query(ctx context.Context, q string) (*Results, error) {
	return s.client.Query(ctx, prologue+q)
}

func (s *TripleStore) update(ctx context.Context, u string) error {
	return s.client.Update(ctx, prologue+u)
}

// Ping issues a trivial ASK.
func (s *TripleStore) Ping(ctx context.Context) error {
	_, err := s.query(ctx, "ASK { ?s ?p ?o }")
	return err
}

// Insert sends one INSERT DATA request.
func (s *TripleStore) Insert(ctx context.Context, triples ...store.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	u, err := dataBlock("INSERT", triples)
	if err != nil {
		return err
	}
	return s.update(ctx, u)
}

// Delete sends one DELETE DATA request.
func (s *TripleStore) Delete(ctx context.Context, triples ...store.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	u, err := dataBlock("DELETE", triples)
	if err != nil {
		return err
	}
	return s.update(ctx, u)
}

// PutNode replaces the node label and asserts its type in one request.
func (s *TripleStore) PutNode(ctx context.Context, uri, class, label string) error {
	n, err := iri(uri)
	if err != nil {
		return err
	}
	c, err := iri(class)
	if err != nil {
		return err
	}
	l, err := literal(store.Literal(label))
	if err != nil {
		return err
	}
	return s.update(ctx, fmt.Sprintf(
		"DELETE WHERE { %[1]s rdfs:label ?label } ;\nINSERT DATA { %[1]s rdf:type %[2]s . %[1]s rdfs:label %[3]s . }",
		n, c, l,
	))
}

// DeleteNode removes outgoing and incoming triples in one multi-operation update.
func (s *TripleStore) DeleteNode(ctx context.Context, uri string) error {
	n, err := iri(uri)
	if err != nil {
		return err
	}
	return s.update(ctx, fmt.Sprintf("DELETE WHERE { %[1]s ?p ?o } ;\nDELETE WHERE { ?s ?p %[1]s }", n))
}

// Clear removes every statement in the default graph.
func (s *TripleStore) Clear(ctx context.Context) error {
	return s.update(ctx, "DELETE WHERE { ?s ?p ?o }")
}

// Count returns the number of statements.
func (s *TripleStore) Count(ctx context.Context) (int64, error) {
	res, err := s.query(ctx, "SELECT (COUNT(*) AS ?n) WHERE { ?s ?p ?o }")
	if err != nil {
		return 0, err
	}
	if len(res.Results.Bindings) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseInt(value(res.Results.Bindings[0], "n", "0"), 10, 64)
	if err != nil {
		return 0, cgerr.Errorf(cgerr.CodeStoreTriplesFailure, "parsing count: %w", err)
	}
	return n, nil
}

// Match selects triples by pattern.
func (s *TripleStore) Match(ctx context.Context, p store.Pattern) ([]store.Triple, error) {
	subj, pred, obj := "?s", "?p", "?o"
	var err error
	if p.Subject != "" {
		if subj, err = iri(p.Subject); err != nil {
			return nil, err
		}
	}
	if p.Predicate != "" {
		if pred, err = iri(p.Predicate); err != nil {
			return nil, err
		}
	}
	if p.Object != nil {
		if obj, err = term(*p.Object); err != nil {
			return nil, err
		}
	}

	q := fmt.Sprintf("SELECT * WHERE { %s %s %s } ORDER BY ?s ?p ?o", subj, pred, obj)
	res, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}

	triples := make([]store.Triple, 0, len(res.Results.Bindings))
	for _, row := range res.Results.Bindings {
		t := store.Triple{
			Subject:   resource(row, "s", p.Subject),
			Predicate: value(row, "p", p.Predicate),
		}
		if b, ok := row["o"]; ok {
			t.Object = b.Term()
		} else if p.Object != nil {
			t.Object = *p.Object
		}
		triples = append(triples, t)
	}
	return triples, nil
}

func pageClause(p store.Page) string {
	var b strings.Builder
	if p.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", p.Limit)
	}
	if p.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", p.Offset)
	}
	return b.String()
}

// Closure uses a one-or-more property path and pushes paging into the query.
func (s *TripleStore) Closure(ctx context.Context, q store.ClosureQuery) ([]store.NodeRef, error) {
	start, err := iri(q.Start)
	if err != nil {
		return nil, err
	}
	pred, err := iri(q.Predicate)
	if err != nil {
		return nil, err
	}

	pattern := fmt.Sprintf("%s (%s)+ ?node", start, pred)
	if q.Direction == store.Up {
		pattern = fmt.Sprintf("?node (%s)+ %s", pred, start)
	}

	query := fmt.Sprintf(`SELECT ?node (MIN(STR(?l)) AS ?label) WHERE {
  %s .
  FILTER(?node != %s)
  FILTER(isIRI(?node))
  OPTIONAL { ?node rdfs:label ?l }
}
GROUP BY ?node
ORDER BY ?node%s`, pattern, start, pageClause(q.Page))

	res, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	return nodeRefs(res), nil
}

// HasChain asks whether start reaches end through one or more hops.
func (s *TripleStore) HasChain(ctx context.Context, predicate, start, end string) (bool, error) {
	st, err := iri(start)
	if err != nil {
		return false, err
	}
	en, err := iri(end)
	if err != nil {
		return false, err
	}
	pred, err := iri(predicate)
	if err != nil {
		return false, err
	}

	res, err := s.query(ctx, fmt.Sprintf("ASK { %s (%s)+ %s }", st, pred, en))
	if err != nil {
		return false, err
	}
	if res.Boolean == nil {
		return false, cgerr.New(cgerr.CodeStoreTriplesFailure, "ASK response carried no boolean")
	}
	return *res.Boolean, nil
}

// Connected returns every node related to end through predicate or its
// inverse, end included, deduplicated in the order the server returns them.
func (s *TripleStore) Connected(ctx context.Context, predicate, end string) ([]store.NodeRef, error) {
	en, err := iri(end)
	if err != nil {
		return nil, err
	}
	pred, err := iri(predicate)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT ?node ?label WHERE {
  ?node (^%[1]s* | %[1]s*) %[2]s .
  FILTER(isIRI(?node))
  OPTIONAL { ?node rdfs:label ?label }
}`, pred, en)

	res, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}

	refs := nodeRefs(res)
	seen := make(map[string]bool, len(refs))
	out := make([]store.NodeRef, 0, len(refs))
	for _, r := range refs {
		if seen[r.URI] {
			continue
		}
		seen[r.URI] = true
		out = append(out, r)
	}
	return out, nil
}

// Reachable unions fixed-length outgoing chains of 0..depth hops, keeps the
// shortest depth per node and pages the result.
func (s *TripleStore) Reachable(ctx context.Context, q store.ReachQuery) ([]store.GraphNode, error) {
	start, err := iri(q.Start)
	if err != nil {
		return nil, err
	}
	exclude, err := iriList(q.Exclude, ", ")
	if err != nil {
		return nil, err
	}

	branches := []string{fmt.Sprintf("{ BIND(%s AS ?id) BIND(0 AS ?d) }", start)}
	for hop := 1; hop <= q.Depth; hop++ {
		var b strings.Builder
		prev := start
		var filters []string
		for i := 1; i <= hop; i++ {
			next := fmt.Sprintf("?n%d", i)
			if i == hop {
				next = "?id"
			}
			fmt.Fprintf(&b, "%s ?p%d %s . ", prev, i, next)
			filters = append(filters, "isIRI("+next+")")
			if exclude != "" {
				filters = append(filters, fmt.Sprintf("?p%d NOT IN (%s)", i, exclude))
			}
			prev = next
		}
		fmt.Fprintf(&b, "FILTER(%s) BIND(%d AS ?d)", strings.Join(filters, " && "), hop)
		branches = append(branches, "{ "+b.String()+" }")
	}

	query := fmt.Sprintf(`SELECT ?id ?depth (MIN(STR(?l)) AS ?label) ?kind WHERE {
  {
    SELECT ?id (MIN(?d) AS ?depth) WHERE {
      %s
    }
    GROUP BY ?id
    ORDER BY ?depth ?id%s
  }
  OPTIONAL { ?id rdfs:label ?l }
  BIND(IF(EXISTS { ?id rdf:type ?c . FILTER(?c IN (rdfs:Class, owl:Class)) }, "class",
       IF(EXISTS { ?id rdf:type rdf:Property }, "property", "literal")) AS ?kind)
}
GROUP BY ?id ?depth ?kind
ORDER BY ?depth ?id`, strings.Join(branches, "\n      UNION\n      "), pageClause(q.Page))

	res, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}

	nodes := make([]store.GraphNode, 0, len(res.Results.Bindings))
	for _, row := range res.Results.Bindings {
		id := value(row, "id", "")
		if id == "" {
			continue
		}
		nodes = append(nodes, store.GraphNode{
			URI:   id,
			Label: value(row, "label", id),
			Kind:  store.NodeKind(value(row, "kind", string(store.KindLiteral))),
		})
	}
	return nodes, nil
}

// EdgesAmong fetches resource triples between members of nodes.
func (s *TripleStore) EdgesAmong(ctx context.Context, nodes []string) ([]store.Edge, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	values, err := iriList(nodes, " ")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT ?source ?predicate ?target WHERE {
  VALUES ?source { %[1]s }
  VALUES ?target { %[1]s }
  ?source ?predicate ?target .
  FILTER(?source != ?target)
}
ORDER BY ?source ?predicate ?target`, values)

	res, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}

	edges := make([]store.Edge, 0, len(res.Results.Bindings))
	for _, row := range res.Results.Bindings {
		edges = append(edges, store.Edge{
			Source:    value(row, "source", ""),
			Predicate: value(row, "predicate", ""),
			Target:    value(row, "target", ""),
		})
	}
	return edges, nil
}

func nodeRefs(res *Results) []store.NodeRef {
	refs := make([]store.NodeRef, 0, len(res.Results.Bindings))
	for _, row := range res.Results.Bindings {
		uri := value(row, "node", "")
		if uri == "" {
			continue
		}
		refs = append(refs, store.NodeRef{URI: uri, Label: value(row, "label", uri)})
	}
	return refs
}
