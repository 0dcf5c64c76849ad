// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sql holds the core domain types shared by every translation stage:
// RDF terms, the algebra and expression sum types, property paths, and the
// SQL fragment IR.
package sql

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultGraph is the reserved IRI denoting the default/global graph.
const DefaultGraph = "urn:___GLOBAL"

// TermKind tags the identity of an RDF term for cache and database lookup.
type TermKind byte

const (
	// KindIRI identifies an IRI term.
	KindIRI TermKind = 'U'
	// KindLiteral identifies a literal term.
	KindLiteral TermKind = 'L'
	// KindBlank identifies a blank node term.
	KindBlank TermKind = 'B'
)

func (k TermKind) String() string {
	return string(rune(k))
}

// TermUUID is the 128-bit opaque identifier assigned to a resolved term.
// Equality is byte equality; it is never meaningfully ordered.
type TermUUID = uuid.UUID

// NewTermUUID generates a fresh random term UUID (used by tests; resolved
// terms come from the database).
func NewTermUUID() TermUUID {
	return uuid.New()
}

// ParseTermUUID parses the canonical string form of a term UUID.
func ParseTermUUID(s string) (TermUUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, InvalidTerm.New("malformed UUID %q: %s", s, err)
	}
	return id, nil
}

// Key is the canonical identity used for cache and database lookup.
type Key struct {
	Text string
	Kind TermKind
}

// Term is the tagged union of {IRI, Literal, BlankNode, Variable}. Exactly one
// constructor below should be used to build one; the zero value is invalid.
type Term struct {
	kind     termNodeKind
	value    string // IRI text, literal lexical form, blank node label, or variable name
	lang     string // literal-only
	datatype string // literal-only, an IRI
}

type termNodeKind byte

const (
	termIRI termNodeKind = iota
	termLiteral
	termBlank
	termVariable
)

// NewIRI builds an IRI term.
func NewIRI(iri string) Term { return Term{kind: termIRI, value: iri} }

// NewBlankNode builds a blank node term with the given label.
func NewBlankNode(label string) Term { return Term{kind: termBlank, value: label} }

// NewVariable builds a variable placeholder. Variables are never stored as terms.
func NewVariable(name string) Term { return Term{kind: termVariable, value: name} }

// NewLiteral builds a plain literal, optionally tagged with a language or a datatype IRI.
func NewLiteral(lexical, lang, datatype string) Term {
	return Term{kind: termLiteral, value: lexical, lang: lang, datatype: datatype}
}

// IsVariable reports whether the term is a variable placeholder.
func (t Term) IsVariable() bool { return t.kind == termVariable }

// VariableName returns the variable's name; only meaningful when IsVariable is true.
func (t Term) VariableName() string { return t.value }

// Lang returns the literal's language tag, if any.
func (t Term) Lang() string { return t.lang }

// Datatype returns the literal's datatype IRI, if any.
func (t Term) Datatype() string { return t.datatype }

// TermInfo returns the (text, kind) identity pair used for cache/database lookup.
// Variables must not be passed; doing so returns InvalidTerm.
func TermInfo(t Term) (string, TermKind, error) {
	switch t.kind {
	case termIRI:
		if t.value == "" {
			return "", 0, InvalidTerm.New("empty IRI")
		}
		return t.value, KindIRI, nil
	case termLiteral:
		return t.value, KindLiteral, nil
	case termBlank:
		return t.value, KindBlank, nil
	case termVariable:
		return "", 0, InvalidTerm.New("variables have no term identity: %s", t.value)
	default:
		return "", 0, InvalidTerm.New("unknown term kind")
	}
}

// ToSQLLiteral renders t as a SQL-safe quoted string literal, doubling embedded
// single quotes. Variables raise InvalidTerm.
func ToSQLLiteral(t Term) (string, error) {
	switch t.kind {
	case termIRI, termLiteral, termBlank:
		return quoteSQL(t.value), nil
	default:
		return "", InvalidTerm.New("cannot render variable %s as a SQL literal", t.value)
	}
}

func quoteSQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// TableKind enumerates the four table roles the database contract (§6) exposes.
type TableKind string

const (
	// TableQuad is the quad table role.
	TableQuad TableKind = "quad"
	// TableTerm is the term table role.
	TableTerm TableKind = "term"
	// TableGraph is the graph table role.
	TableGraph TableKind = "graph"
	// TableDatatype is the datatype table role.
	TableDatatype TableKind = "datatype"
)

// TableNamingPolicy derives concrete table names from a global prefix, a space id,
// and a table role. It is the sole way the compiler learns physical table names.
type TableNamingPolicy struct {
	GlobalPrefix string
}

// TableName returns the concrete table name for (spaceID, kind).
func (p TableNamingPolicy) TableName(spaceID string, kind TableKind) string {
	var suffix string
	switch kind {
	case TableQuad:
		suffix = "quad"
	case TableTerm:
		suffix = "term"
	case TableGraph:
		suffix = "graph"
	case TableDatatype:
		suffix = "datatype"
	default:
		suffix = string(kind)
	}
	parts := []string{}
	if p.GlobalPrefix != "" {
		parts = append(parts, p.GlobalPrefix)
	}
	if spaceID != "" {
		parts = append(parts, spaceID)
	}
	parts = append(parts, suffix)
	return strings.Join(parts, "_")
}
