// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Compgraph Contributors

// Package vocab holds the namespace and term IRIs shared by the gateway,
// traversal engine and store backends.
package vocab

const (
	RDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS = "http://www.w3.org/2000/01/rdf-schema#"
	OWL  = "http://www.w3.org/2002/07/owl#"
	XML  = "http://www.w3.org/XML/1998/namespace"
	XSD  = "http://www.w3.org/2001/XMLSchema#"

	// GraphDB system vocabulary.
	Ontotext = "http://www.ontotext.com/"
)

const (
	RDFType     = RDF + "type"
	RDFProperty = RDF + "Property"
	RDFSLabel   = RDFS + "label"
	RDFSClass   = RDFS + "Class"
	OWLClass    = OWL + "Class"
	XSDString   = XSD + "string"
)

const (
	// DefaultNamespace resolves bare identifiers.
	DefaultNamespace = "http://example.org/competencies#"
	// DefaultHierarchy is the competency sub-relation.
	DefaultHierarchy = "http://example.org/hasSubCompetence"
)

// Prefixes maps the well-known prefixes used in generated SPARQL.
var Prefixes = map[string]string{
	"rdf":  RDF,
	"rdfs": RDFS,
	"owl":  OWL,
	"xsd":  XSD,
}

// LocalName returns the part of uri after the last '#' or '/'.
func LocalName(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '#' || uri[i] == '/' {
			if i == len(uri)-1 {
				return uri
			}
			return uri[i+1:]
		}
	}
	return uri
}
