// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package ontology

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/compgraph/compgraph/internal/store"
)

// Graph is a batch of node and link descriptors.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Links []Link `json:"links" yaml:"links"`
}

// Node describes a resource to upsert. Literal nodes are never written as
// resources; links that target their id receive the label as a literal.
type Node struct {
	ID    string         `json:"id" yaml:"id" validate:"required"`
	Label string         `json:"label,omitempty" yaml:"label,omitempty" validate:"max=1024"`
	Type  store.NodeKind `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=class property literal"`
}

// Link describes a single statement. TargetKind overrides the URI-shape
// heuristic when set.
type Link struct {
	Source     string         `json:"source" yaml:"source" validate:"required"`
	Predicate  string         `json:"predicate" yaml:"predicate" validate:"required"`
	Target     string         `json:"target" yaml:"target" validate:"required"`
	TargetKind store.TermKind `json:"target_kind,omitempty" yaml:"target_kind,omitempty" validate:"omitempty,oneof=iri literal"`
	Datatype   string         `json:"datatype,omitempty" yaml:"datatype,omitempty"`
	Lang       string         `json:"lang,omitempty" yaml:"lang,omitempty" validate:"omitempty,bcp47_language_tag"`
}

// TripleInput is the argument of AddTriple and DeleteTriple.
type TripleInput struct {
	Subject    string         `json:"subject" validate:"required"`
	Predicate  string         `json:"predicate" validate:"required"`
	Object     string         `json:"object" validate:"required"`
	ObjectKind store.TermKind `json:"object_kind,omitempty" validate:"omitempty,oneof=iri literal"`
	Datatype   string         `json:"datatype,omitempty"`
	Lang       string         `json:"lang,omitempty" validate:"omitempty,bcp47_language_tag"`
}

// SkipReason explains why a batch item was not applied.
type SkipReason string

const (
	SkipInvalid      SkipReason = "invalid"
	SkipLiteral      SkipReason = "literal"
	SkipProtected    SkipReason = "protected"
	SkipStoreFailure SkipReason = "store_failure"
)

// Skip records one item left out of a batch.
type Skip struct {
	Item   string     `json:"item"` // "node" or "link"
	Index  int        `json:"index"`
	ID     string     `json:"id"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// ApplyResult summarises one ApplyGraph call.
type ApplyResult struct {
	BatchID      string `json:"batch_id"`
	AppliedNodes int    `json:"applied_nodes"`
	AppliedLinks int    `json:"applied_links"`
	// NodeIndexes lists, in order, the positions of the nodes that were
	// written. Nodes after an abort appear neither here nor in Skipped.
	NodeIndexes  []int  `json:"applied_node_indexes"`
	Skipped      []Skip `json:"skipped"`
}

// Total is the number of items the batch contained.
func (r *ApplyResult) Total() int {
	return r.AppliedNodes + r.AppliedLinks + len(r.Skipped)
}

// describe flattens validator errors into one readable line.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
