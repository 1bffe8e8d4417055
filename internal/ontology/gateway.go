// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package ontology

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/compgraph/compgraph/internal/metrics"
	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/vocab"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// GatewayConfig wires a Gateway.
type GatewayConfig struct {
	Store     store.TripleStore
	Namespace Namespace
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Gateway validates mutations and applies them to the triple store. Every
// item is applied on its own; there is no cross-item transaction.
type Gateway struct {
	store    store.TripleStore
	ns       Namespace
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewGateway returns a gateway over cfg.Store. A zero Namespace falls back
// to DefaultNamespace.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Store == nil {
		return nil, cgerr.New(cgerr.CodeServerConfigInvalid, "gateway requires a triple store")
	}
	ns := cfg.Namespace
	if ns.Base == "" {
		ns.Base = vocab.DefaultNamespace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:    cfg.Store,
		ns:       ns,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  cfg.Metrics,
		logger:   logger.With("component", "ontology"),
	}, nil
}

// Namespace returns the namespace the gateway resolves against.
func (g *Gateway) Namespace() Namespace {
	return g.ns
}

// ApplyGraph upserts every node and inserts every link in the batch. Items
// that fail validation or are rejected by the store are reported in
// Skipped. An unavailable store aborts the rest of the batch; the partial
// result is returned with the error.
func (g *Gateway) ApplyGraph(ctx context.Context, graph Graph) (*ApplyResult, error) {
	res := &ApplyResult{BatchID: uuid.NewString(), NodeIndexes: []int{}, Skipped: []Skip{}}
	logger := g.logger.With("batch_id", res.BatchID)

	literals := literalLabels(graph.Nodes, g.ns)

	for i, n := range graph.Nodes {
		if err := ctx.Err(); err != nil {
			return res, g.abort(logger, res, cgerr.Wrap(err, cgerr.CodeOntologyBatchCanceled, "graph batch canceled"))
		}
		id := strings.TrimSpace(n.ID)
		reason, detail, err := g.applyNode(ctx, n)
		if err != nil {
			return res, g.abort(logger, res, err)
		}
		if reason != "" {
			g.skip(logger, res, Skip{Item: "node", Index: i, ID: id, Reason: reason, Detail: detail})
			continue
		}
		res.AppliedNodes++
		res.NodeIndexes = append(res.NodeIndexes, i)
	}

	for i, l := range graph.Links {
		if err := ctx.Err(); err != nil {
			return res, g.abort(logger, res, cgerr.Wrap(err, cgerr.CodeOntologyBatchCanceled, "graph batch canceled"))
		}
		reason, detail, err := g.applyLink(ctx, l, literals)
		if err != nil {
			return res, g.abort(logger, res, err)
		}
		if reason != "" {
			id := strings.TrimSpace(l.Source) + " " + strings.TrimSpace(l.Predicate) + " " + strings.TrimSpace(l.Target)
			g.skip(logger, res, Skip{Item: "link", Index: i, ID: id, Reason: reason, Detail: detail})
			continue
		}
		res.AppliedLinks++
	}

	outcome := "ok"
	if len(res.Skipped) > 0 {
		outcome = "partial"
	}
	g.metrics.Mutation("apply_graph", outcome)
	logger.InfoContext(ctx, "graph batch applied",
		"nodes", res.AppliedNodes,
		"links", res.AppliedLinks,
		"skipped", len(res.Skipped),
		"total", res.Total(),
	)
	return res, nil
}

// applyNode returns a skip reason, or an error when the batch must stop.
func (g *Gateway) applyNode(ctx context.Context, n Node) (SkipReason, string, error) {
	if err := g.validate.Struct(n); err != nil {
		return SkipInvalid, describe(err), nil
	}
	if n.Type == store.KindLiteral {
		return SkipLiteral, "", nil
	}

	id := strings.TrimSpace(n.ID)
	if !WellFormed(id) {
		return SkipInvalid, "node id must be an absolute http(s) URI", nil
	}
	if g.ns.IsProtected(id) {
		return SkipProtected, "", nil
	}

	class := vocab.RDFSClass
	if n.Type == store.KindProperty {
		class = vocab.RDFProperty
	}
	label := strings.TrimSpace(n.Label)
	if label == "" {
		label = vocab.LocalName(id)
	}

	if err := g.store.PutNode(ctx, id, class, label); err != nil {
		if cgerr.IsUnavailable(err) {
			return "", "", cgerr.With(err, cgerr.FieldNodeURI(id))
		}
		return SkipStoreFailure, err.Error(), nil
	}
	return "", "", nil
}

func (g *Gateway) applyLink(ctx context.Context, l Link, literals map[string]string) (SkipReason, string, error) {
	if err := g.validate.Struct(l); err != nil {
		return SkipInvalid, describe(err), nil
	}

	subject := g.ns.Normalize(l.Source)
	predicate := g.ns.Normalize(l.Predicate)
	if !WellFormed(subject) || !WellFormed(predicate) {
		return SkipInvalid, "source and predicate must resolve to absolute http(s) URIs", nil
	}
	object, err := g.linkTarget(l, literals)
	if err != nil {
		return SkipInvalid, err.Error(), nil
	}
	if g.protectedTriple(subject, predicate, object) {
		return SkipProtected, "", nil
	}

	t := store.Triple{Subject: subject, Predicate: predicate, Object: object}
	if err := g.store.Insert(ctx, t); err != nil {
		if cgerr.IsUnavailable(err) {
			return "", "", cgerr.With(err, cgerr.FieldNodeURI(subject))
		}
		return SkipStoreFailure, err.Error(), nil
	}
	return "", "", nil
}

// linkTarget classifies a link target: explicit kind first, then a literal
// node of the same batch, then the URI-shape heuristic after resolution.
func (g *Gateway) linkTarget(l Link, literals map[string]string) (store.Term, error) {
	raw := strings.TrimSpace(l.Target)
	switch l.TargetKind {
	case store.TermLiteral:
		return literalTerm(raw, l.Datatype, l.Lang)
	case store.TermIRI:
		return iriTerm(g.ns.Normalize(raw))
	}

	if label, ok := literals[raw]; ok {
		return literalTerm(label, l.Datatype, l.Lang)
	}
	if resolved := g.ns.Normalize(raw); WellFormed(resolved) {
		return store.IRI(resolved), nil
	}
	return literalTerm(raw, l.Datatype, l.Lang)
}

// AddTriple inserts one statement.
func (g *Gateway) AddTriple(ctx context.Context, in TripleInput) (store.Triple, error) {
	t, err := g.triple(in)
	if err != nil {
		g.metrics.Mutation("add_triple", "rejected")
		return store.Triple{}, err
	}
	if err := g.store.Insert(ctx, t); err != nil {
		g.metrics.Mutation("add_triple", "error")
		g.logger.ErrorContext(ctx, "adding triple failed", "subject", t.Subject, "predicate", t.Predicate, "error", err)
		return store.Triple{}, cgerr.With(err, cgerr.FieldNodeURI(t.Subject))
	}
	g.metrics.Mutation("add_triple", "ok")
	g.logger.InfoContext(ctx, "triple added", "subject", t.Subject, "predicate", t.Predicate, "object", t.Object.Value)
	return t, nil
}

// DeleteTriple removes one statement. Deleting an absent statement succeeds.
func (g *Gateway) DeleteTriple(ctx context.Context, in TripleInput) (store.Triple, error) {
	t, err := g.triple(in)
	if err != nil {
		g.metrics.Mutation("delete_triple", "rejected")
		return store.Triple{}, err
	}
	if err := g.store.Delete(ctx, t); err != nil {
		g.metrics.Mutation("delete_triple", "error")
		g.logger.ErrorContext(ctx, "deleting triple failed", "subject", t.Subject, "predicate", t.Predicate, "error", err)
		return store.Triple{}, cgerr.With(err, cgerr.FieldNodeURI(t.Subject))
	}
	g.metrics.Mutation("delete_triple", "ok")
	g.logger.InfoContext(ctx, "triple deleted", "subject", t.Subject, "predicate", t.Predicate, "object", t.Object.Value)
	return t, nil
}

// triple validates in and builds the statement it names. Subject and
// predicate are resolved against the namespace; the object is not, unless
// the caller marks it as an IRI.
func (g *Gateway) triple(in TripleInput) (store.Triple, error) {
	if err := g.validate.Struct(in); err != nil {
		return store.Triple{}, cgerr.New(cgerr.CodeOntologyDescriptorInvalid, describe(err))
	}

	subject := g.ns.Normalize(in.Subject)
	predicate := g.ns.Normalize(in.Predicate)
	if !WellFormed(subject) {
		return store.Triple{}, cgerr.New(cgerr.CodeOntologyIdentifierInvalid,
			"subject must be an absolute http(s) URI", cgerr.FieldNodeURI(subject))
	}
	if !WellFormed(predicate) {
		return store.Triple{}, cgerr.New(cgerr.CodeOntologyIdentifierInvalid,
			"predicate must be an absolute http(s) URI", cgerr.Field("predicate", predicate))
	}

	var object store.Term
	var err error
	raw := strings.TrimSpace(in.Object)
	switch in.ObjectKind {
	case store.TermIRI:
		object, err = iriTerm(g.ns.Normalize(raw))
	case store.TermLiteral:
		object, err = literalTerm(raw, in.Datatype, in.Lang)
	default:
		if WellFormed(raw) {
			object = store.IRI(raw)
		} else {
			object, err = literalTerm(raw, in.Datatype, in.Lang)
		}
	}
	if err != nil {
		return store.Triple{}, err
	}

	if g.protectedTriple(subject, predicate, object) {
		return store.Triple{}, cgerr.New(cgerr.CodeOntologyTripleProtected,
			"triple touches a protected namespace", cgerr.FieldNodeURI(subject))
	}
	return store.Triple{Subject: subject, Predicate: predicate, Object: object}, nil
}

// DeleteNode removes every triple in which the node is subject or object.
func (g *Gateway) DeleteNode(ctx context.Context, uri string) error {
	node := g.ns.Normalize(uri)
	if !WellFormed(node) {
		g.metrics.Mutation("delete_node", "rejected")
		return cgerr.New(cgerr.CodeOntologyIdentifierInvalid, "node must be an absolute http(s) URI", cgerr.FieldNodeURI(node))
	}
	if g.ns.IsProtected(node) {
		g.metrics.Mutation("delete_node", "rejected")
		return cgerr.New(cgerr.CodeOntologyTripleProtected, "node is in a protected namespace", cgerr.FieldNodeURI(node))
	}
	if err := g.store.DeleteNode(ctx, node); err != nil {
		g.metrics.Mutation("delete_node", "error")
		g.logger.ErrorContext(ctx, "deleting node failed", "node_uri", node, "error", err)
		return cgerr.With(err, cgerr.FieldNodeURI(node))
	}
	g.metrics.Mutation("delete_node", "ok")
	g.logger.InfoContext(ctx, "node deleted", "node_uri", node)
	return nil
}

// ClearAll removes every triple. It refuses to run unless confirm is set.
func (g *Gateway) ClearAll(ctx context.Context, confirm bool) error {
	if !confirm {
		g.metrics.Mutation("clear_all", "rejected")
		return cgerr.New(cgerr.CodeOntologyClearUnconfirmed, "clearing the graph requires explicit confirmation")
	}
	if err := g.store.Clear(ctx); err != nil {
		g.metrics.Mutation("clear_all", "error")
		return err
	}
	g.metrics.Mutation("clear_all", "ok")
	g.logger.WarnContext(ctx, "graph cleared")
	return nil
}

// ExportGraph returns every subject and resource object as a node and every
// resource-valued statement as a link, in store order. Statements touching a
// blank node are left out.
func (g *Gateway) ExportGraph(ctx context.Context) (*Graph, error) {
	triples, err := g.store.Match(ctx, store.Pattern{})
	if err != nil {
		return nil, err
	}

	out := &Graph{Nodes: []Node{}, Links: []Link{}}
	seen := make(map[string]bool)
	addNode := func(uri string) {
		if seen[uri] {
			return
		}
		seen[uri] = true
		out.Nodes = append(out.Nodes, Node{ID: uri, Label: vocab.LocalName(uri), Type: store.KindClass})
	}

	for _, t := range triples {
		if store.IsBlankNode(t.Subject) {
			continue
		}
		addNode(t.Subject)
		if !t.Object.IsIRI() {
			continue
		}
		addNode(t.Object.Value)
		out.Links = append(out.Links, Link{
			Source:     t.Subject,
			Predicate:  t.Predicate,
			Target:     t.Object.Value,
			TargetKind: store.TermIRI,
		})
	}
	return out, nil
}

// Count returns the number of statements in the store.
func (g *Gateway) Count(ctx context.Context) (int64, error) {
	return g.store.Count(ctx)
}

// Ping checks the triple store.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

func (g *Gateway) protectedTriple(subject, predicate string, object store.Term) bool {
	if g.ns.IsProtected(subject) || g.ns.IsProtected(predicate) {
		return true
	}
	return object.IsIRI() && g.ns.IsProtected(object.Value)
}

func (g *Gateway) skip(logger *slog.Logger, res *ApplyResult, s Skip) {
	res.Skipped = append(res.Skipped, s)
	g.metrics.Skip(string(s.Reason))
	logger.Warn("skipping graph item", "item", s.Item, "index", s.Index, "id", s.ID, "reason", s.Reason, "detail", s.Detail)
}

func (g *Gateway) abort(logger *slog.Logger, res *ApplyResult, err error) error {
	g.metrics.Mutation("apply_graph", "aborted")
	logger.Error("graph batch aborted",
		"nodes", res.AppliedNodes,
		"links", res.AppliedLinks,
		"skipped", len(res.Skipped),
		"error", err,
	)
	return cgerr.With(err, cgerr.Field("batch_id", res.BatchID))
}

// literalLabels maps literal node ids, raw and resolved, to their labels.
func literalLabels(nodes []Node, ns Namespace) map[string]string {
	out := make(map[string]string)
	for _, n := range nodes {
		if n.Type != store.KindLiteral {
			continue
		}
		id := strings.TrimSpace(n.ID)
		if id == "" {
			continue
		}
		label := n.Label
		if label == "" {
			label = id
		}
		out[id] = label
		out[ns.Normalize(id)] = label
	}
	return out
}

func iriTerm(uri string) (store.Term, error) {
	if !WellFormed(uri) {
		return store.Term{}, cgerr.New(cgerr.CodeOntologyIdentifierInvalid,
			"object must be an absolute http(s) URI", cgerr.Field("object", uri))
	}
	return store.IRI(uri), nil
}

func literalTerm(value, datatype, lang string) (store.Term, error) {
	if datatype != "" && lang != "" {
		return store.Term{}, cgerr.New(cgerr.CodeOntologyDescriptorInvalid, "a literal takes a datatype or a language, not both")
	}
	if datatype != "" && !WellFormed(datatype) {
		return store.Term{}, cgerr.New(cgerr.CodeOntologyIdentifierInvalid,
			"datatype must be an absolute http(s) URI", cgerr.Field("datatype", datatype))
	}
	return store.Term{Value: value, Kind: store.TermLiteral, Datatype: datatype, Lang: lang}, nil
}
