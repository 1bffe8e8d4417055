// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sparql

import "github.com/compgraph/compgraph/internal/store"

// Results is the SPARQL 1.1 JSON results document.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Boolean *bool `json:"boolean,omitempty"`
	Results struct {
		Bindings []map[string]Binding `json:"bindings"`
	} `json:"results"`
}

// Binding is one bound variable in a solution.
type Binding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Term converts the binding into a store term. Blank nodes keep their _:
// prefix and are never reported as IRIs.
func (b Binding) Term() store.Term {
	switch b.Type {
	case "uri":
		return store.IRI(b.Value)
	case "bnode":
		return store.Blank(b.Value)
	default:
		return store.Term{Value: b.Value, Kind: store.TermLiteral, Datatype: b.Datatype, Lang: b.Lang}
	}
}

// resource returns the bound subject of name with blank nodes prefixed, or
// fallback when unbound.
func resource(row map[string]Binding, name, fallback string) string {
	b, ok := row[name]
	if !ok {
		return fallback
	}
	if b.Type == "bnode" {
		return store.Blank(b.Value).Value
	}
	return b.Value
}

// value returns the bound value of name, or fallback when unbound.
func value(row map[string]Binding, name, fallback string) string {
	if b, ok := row[name]; ok {
		return b.Value
	}
	return fallback
}
