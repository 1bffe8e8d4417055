// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

package sparql

import (
	"strings"

	"github.com/compgraph/compgraph/internal/store"
	"github.com/compgraph/compgraph/internal/vocab"
	cgerr "github.com/compgraph/compgraph/pkg/errors"
)

// iriForbidden are the characters SPARQL does not allow inside <...>.
const iriForbidden = "<>\"{}|^`\\ \t\r\n"

// iri renders uri as an IRI reference.
func iri(uri string) (string, error) {
	if uri == "" || strings.ContainsAny(uri, iriForbidden) {
		return "", cgerr.New(cgerr.CodeStoreTriplesInvalid, "cannot render IRI", cgerr.FieldNodeURI(uri))
	}
	if store.IsBlankNode(uri) {
		return "", cgerr.New(cgerr.CodeStoreTriplesInvalid, "blank nodes cannot be addressed", cgerr.FieldNodeURI(uri))
	}
	return "<" + uri + ">", nil
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// literal renders a quoted literal with its language tag or datatype.
func literal(t store.Term) (string, error) {
	out := `"` + literalEscaper.Replace(t.Value) + `"`
	switch {
	case t.Lang != "":
		if strings.ContainsAny(t.Lang, iriForbidden+"@") {
			return "", cgerr.New(cgerr.CodeStoreTriplesInvalid, "invalid language tag: "+t.Lang)
		}
		return out + "@" + t.Lang, nil
	case t.Datatype != "" && t.Datatype != vocab.XSDString:
		dt, err := iri(t.Datatype)
		if err != nil {
			return "", err
		}
		return out + "^^" + dt, nil
	}
	return out, nil
}

func term(t store.Term) (string, error) {
	switch t.Kind {
	case store.TermIRI:
		return iri(t.Value)
	case store.TermBlank:
		return "", cgerr.New(cgerr.CodeStoreTriplesInvalid, "blank nodes cannot be addressed", cgerr.Field("object", t.Value))
	default:
		return literal(t)
	}
}

// statement renders "<s> <p> o ." for use inside DATA blocks.
func statement(t store.Triple) (string, error) {
	s, err := iri(t.Subject)
	if err != nil {
		return "", err
	}
	p, err := iri(t.Predicate)
	if err != nil {
		return "", err
	}
	o, err := term(t.Object)
	if err != nil {
		return "", err
	}
	return s + " " + p + " " + o + " .", nil
}

func dataBlock(op string, triples []store.Triple) (string, error) {
	var b strings.Builder
	b.WriteString(op)
	b.WriteString(" DATA {\n")
	for _, t := range triples {
		st, err := statement(t)
		if err != nil {
			return "", err
		}
		b.WriteString("  ")
		b.WriteString(st)
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String(), nil
}

func iriList(uris []string, sep string) (string, error) {
	parts := make([]string, 0, len(uris))
	for _, u := range uris {
		r, err := iri(u)
		if err != nil {
			return "", err
		}
		parts = append(parts, r)
	}
	return strings.Join(parts, sep), nil
}
