// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

// Package ontology is the mutation gateway: it validates and normalizes
// node and edge descriptors and turns them into triple store operations.
package ontology

import (
	"net/url"
	"strings"

	"github.com/compgraph/compgraph/internal/vocab"
)

// Namespace resolves bare identifiers and recognizes reserved vocabulary.
type Namespace struct {
	// Base is prepended to identifiers that are not absolute URIs.
	Base string
	// System is the store vendor's reserved namespace, protected alongside
	// the W3C schema namespaces.
	System string
}

// DefaultNamespace returns the competency namespace with GraphDB's system
// vocabulary protected.
func DefaultNamespace() Namespace {
	return Namespace{Base: vocab.DefaultNamespace, System: vocab.Ontotext}
}

// IsAbsolute reports whether value starts with an http or https scheme.
func IsAbsolute(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// Normalize trims value and resolves it against the base namespace unless it
// is already absolute. Empty values pass through.
func (n Namespace) Normalize(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || IsAbsolute(v) {
		return v
	}
	return n.Base + v
}

// IsProtected reports whether uri falls under a schema namespace that user
// edits must not touch.
func (n Namespace) IsProtected(uri string) bool {
	for _, ns := range n.protected() {
		if ns != "" && strings.HasPrefix(uri, ns) {
			return true
		}
	}
	return false
}

func (n Namespace) protected() []string {
	return []string{vocab.RDF, vocab.RDFS, vocab.OWL, vocab.XML, vocab.XSD, n.System}
}

// WellFormed reports whether value is an absolute http(s) URI that can be
// written as an IRI reference: a host and no whitespace or delimiter chars.
func WellFormed(value string) bool {
	if !IsAbsolute(value) {
		return false
	}
	if strings.ContainsAny(value, " \t\r\n<>\"{}|^`\\") {
		return false
	}
	u, err := url.Parse(value)
	return err == nil && u.Host != ""
}
