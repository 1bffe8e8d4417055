// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package store

import (
	"encoding/json"
	"strings"
	"time"
)

// --- Term types ---

// TermKind discriminates resource objects from literal values.
type TermKind string

const (
	TermIRI     TermKind = "iri"
	TermLiteral TermKind = "literal"
	// TermBlank is a blank node read back from a store. Its "_:" label is
	// only meaningful within the result that carried it.
	TermBlank TermKind = "bnode"
)

// BlankPrefix starts every blank node label.
const BlankPrefix = "_:"

// Term is the object position of a triple.
type Term struct {
	Value    string   `json:"value"`
	Kind     TermKind `json:"kind"`
	Datatype string   `json:"datatype,omitempty"`
	Lang     string   `json:"lang,omitempty"`
}

// IRI returns a resource term.
func IRI(value string) Term {
	return Term{Value: value, Kind: TermIRI}
}

// Literal returns a plain string literal term.
func Literal(value string) Term {
	return Term{Value: value, Kind: TermLiteral}
}

// IsIRI reports whether the term names a resource.
func (t Term) IsIRI() bool {
	return t.Kind == TermIRI
}

// Blank returns a blank node term for label, adding the "_:" prefix.
func Blank(label string) Term {
	return Term{Value: BlankPrefix + strings.TrimPrefix(label, BlankPrefix), Kind: TermBlank}
}

// IsBlankNode reports whether a subject or object value is a blank node label.
func IsBlankNode(value string) bool {
	return strings.HasPrefix(value, BlankPrefix)
}

// Triple is a single (subject, predicate, object) statement.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    Term   `json:"object"`
}

// Pattern selects triples. Empty fields match anything.
type Pattern struct {
	Subject   string
	Predicate string
	Object    *Term
}

// --- Traversal types ---

// Direction selects which way a closure follows the hierarchy predicate.
type Direction string

const (
	// Up follows the predicate from object to subject (ancestors).
	Up Direction = "up"
	// Down follows the predicate from subject to object (descendants).
	Down Direction = "down"
)

// Page bounds a result set.
type Page struct {
	Limit  int
	Offset int
}

// NodeRef is a node URI with its display label. Label falls back to the URI.
type NodeRef struct {
	URI   string `json:"id"`
	Label string `json:"label"`
}

// NodeKind classifies a node by its rdf:type.
type NodeKind string

const (
	KindClass    NodeKind = "class"
	KindProperty NodeKind = "property"
	KindLiteral  NodeKind = "literal"
)

// GraphNode is a node discovered during neighborhood expansion.
type GraphNode struct {
	URI   string   `json:"id"`
	Label string   `json:"label"`
	Kind  NodeKind `json:"type"`
}

// Edge is a resource-to-resource triple.
type Edge struct {
	Source    string `json:"source"`
	Predicate string `json:"predicate"`
	Target    string `json:"target"`
}

// ClosureQuery describes a transitive closure over one predicate.
type ClosureQuery struct {
	Start     string
	Predicate string
	Direction Direction
	Page      Page
}

// ReachQuery describes a bounded-radius expansion over outgoing resource edges.
type ReachQuery struct {
	Start   string
	Depth   int
	Exclude []string // predicates not followed
	Page    Page
}

// --- Ledger types ---

// ChangeKind classifies a history entry.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "CREATE"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// Valid reports whether k is one of the known change kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeCreate, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// VersionRecord is the current version of a node. Version 0 with a nil
// LastModifiedBy means the node has never been versioned.
type VersionRecord struct {
	NodeURI        string    `json:"node_uri"`
	Version        int64     `json:"version"`
	LastModified   time.Time `json:"last_modified"`
	LastModifiedBy *int64    `json:"last_modified_by"`
}

// Unversioned returns the sentinel record for a node with no ledger row.
func Unversioned(uri string) VersionRecord {
	return VersionRecord{NodeURI: uri}
}

// Bump is a single version increment with its history snapshot.
type Bump struct {
	NodeURI  string
	UserID   int64
	Kind     ChangeKind
	OldValue json.RawMessage
	NewValue json.RawMessage
}

// HistoryEntry is one append-only change record.
type HistoryEntry struct {
	ID        int64           `json:"id"`
	NodeURI   string          `json:"node_uri"`
	UserID    int64           `json:"user_id"`
	Kind      ChangeKind      `json:"change_type"`
	OldValue  json.RawMessage `json:"old_value,omitempty"`
	NewValue  json.RawMessage `json:"new_value,omitempty"`
	Version   int64           `json:"version"`
	ChangedAt time.Time       `json:"changed_at"`
}

// Contributor counts the history entries written by one user.
type Contributor struct {
	UserID  int64 `json:"user_id"`
	Changes int64 `json:"changes"`
}

// Stats summarises the ledger.
type Stats struct {
	VersionedNodes  int64          `json:"versioned_nodes"`
	TotalVersionSum int64          `json:"total_version_sum"`
	HistoryCount    int64          `json:"history_count"`
	TopContributors []Contributor  `json:"top_contributors"`
	Recent          []HistoryEntry `json:"recent"`
}
