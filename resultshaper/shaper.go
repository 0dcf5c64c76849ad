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

// Package resultshaper implements C12: turning the collaborator's raw SQL
// rows back into SPARQL-shaped results (bindings, triples, or a boolean),
// using the column bookkeeping the assembler (C8) attaches to an
// AssembledQuery.
package resultshaper

import (
	stdsql "database/sql"
	"fmt"
	"sort"

	"github.com/dolthub/sparql-compiler/internal/compiler"
	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// Value is one bound (or unbound) SPARQL term in a result row.
type Value struct {
	Bound     bool
	Term      vgsql.Term
	IsIRI     bool
	IsBlank   bool
	IsLiteral bool
}

// Unbound is the zero Value: §4.12 "NULL becomes variable unbound".
var Unbound = Value{}

// Binding is one SELECT result row, keyed by SPARQL variable name.
type Binding map[string]Value

// Triple is an (s,p,o) result record, used by CONSTRUCT and DESCRIBE.
type Triple struct {
	Subject   vgsql.Term
	Predicate vgsql.Term
	Object    vgsql.Term
}

// ShapeSelect implements §4.12's SELECT shaping: each row becomes a Binding,
// columns are translated back to SPARQL variable names via aq.ColumnToVar,
// and literal companions (lang/datatype/type) are consulted when present.
func ShapeSelect(rows *stdsql.Rows, aq compiler.AssembledQuery) ([]Binding, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]Binding, 0)
	for rows.Next() {
		raw, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		b := Binding{}
		for col, varName := range aq.ColumnToVar {
			v, ok := raw[col]
			if !ok || v == nil {
				b[varName] = Unbound
				continue
			}
			b[varName] = shapeValue(varName, v, raw, aq.Companions[varName])
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ShapeAsk implements §4.12 ASK: true iff any row came back.
func ShapeAsk(rows *stdsql.Rows) (bool, error) {
	got := rows.Next()
	return got, rows.Err()
}

// ShapeDescribe implements §4.12 DESCRIBE: pass triples through unchanged.
func ShapeDescribe(rows *stdsql.Rows, aq compiler.AssembledQuery) ([]Triple, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Triple
	for rows.Next() {
		raw, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		s, _ := raw["s"].(string)
		p, _ := raw["p"].(string)
		oVal := shapeValue("o", raw["o"], raw, aq.Companions["o"])
		out = append(out, Triple{
			Subject:   vgsql.NewIRI(s),
			Predicate: vgsql.NewIRI(p),
			Object:    oVal.Term,
		})
	}
	return out, rows.Err()
}

// ShapeConstruct implements §4.12 CONSTRUCT: for each row, instantiate every
// template triple by substituting its variables, dropping any triple with an
// unbound slot, and deduplicating across rows.
func ShapeConstruct(rows *stdsql.Rows, aq compiler.AssembledQuery, template []vgsql.TriplePattern) ([]Triple, error) {
	bindings, err := ShapeSelect(rows, aq)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []Triple
	for _, b := range bindings {
		for _, tp := range template {
			s, sOK := instantiate(tp.Subject, b)
			p, pOK := instantiate(tp.Predicate, b)
			o, oOK := instantiate(tp.Object, b)
			if !sOK || !pOK || !oOK {
				continue
			}
			key := tripleKey(s, p, o)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Triple{Subject: s, Predicate: p, Object: o})
		}
	}
	return out, nil
}

// instantiate substitutes a CONSTRUCT template slot: a variable is resolved
// against b (false if unbound), anything else (a bound IRI or literal term
// written directly into the template) passes through unchanged.
func instantiate(t vgsql.Term, b Binding) (vgsql.Term, bool) {
	if !t.IsVariable() {
		return t, true
	}
	v, ok := b[t.VariableName()]
	if !ok || !v.Bound {
		return vgsql.Term{}, false
	}
	return v.Term, true
}

func tripleKey(s, p, o vgsql.Term) string {
	sText, _, _ := vgsql.TermInfo(s)
	pText, _, _ := vgsql.TermInfo(p)
	oText, oKind, _ := vgsql.TermInfo(o)
	return fmt.Sprintf("%s\x00%s\x00%s\x00%c\x00%s\x00%s", sText, pText, oText, oKind, o.Lang(), o.Datatype())
}

// shapeValue builds a Value for column col's raw text given its companion
// type/lang/datatype columns, if any. Without a TypeCol companion the value
// is an opaque text result (e.g. a BIND/aggregate expression) reported as a
// plain literal.
func shapeValue(_ string, raw interface{}, row map[string]interface{}, cc compiler.CompanionCols) Value {
	text := fmt.Sprintf("%v", raw)

	if cc.TypeCol == "" {
		return Value{Bound: true, IsLiteral: true, Term: vgsql.NewLiteral(text, "", "")}
	}

	kind, _ := row[cc.TypeCol].(string)
	switch vgsql.TermKind(firstByte(kind)) {
	case vgsql.KindIRI:
		return Value{Bound: true, IsIRI: true, Term: vgsql.NewIRI(text)}
	case vgsql.KindBlank:
		return Value{Bound: true, IsBlank: true, Term: vgsql.NewBlankNode(text)}
	default:
		lang, _ := row[cc.LangCol].(string)
		dt, _ := row[cc.DatatypeCol].(string)
		return Value{Bound: true, IsLiteral: true, Term: vgsql.NewLiteral(text, lang, dt)}
	}
}

func firstByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

// scanRow reads the current row into a column-name-keyed map of driver
// values, the shape every other function in this package works against.
func scanRow(rows *stdsql.Rows, cols []string) (map[string]interface{}, error) {
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(cols))
	for i, c := range cols {
		switch v := vals[i].(type) {
		case []byte:
			out[c] = string(v)
		default:
			out[c] = v
		}
	}
	return out, nil
}

// SortedVars returns a Binding's variable names in sorted order, useful for
// deterministic test output and stable column ordering in CLI front ends.
func SortedVars(b Binding) []string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String renders a Value the way a human-readable result table would.
func (v Value) String() string {
	if !v.Bound {
		return ""
	}
	text, _, _ := vgsql.TermInfo(v.Term)
	switch {
	case v.IsIRI:
		return "<" + text + ">"
	case v.IsBlank:
		return "_:" + text
	default:
		if lang := v.Term.Lang(); lang != "" {
			return fmt.Sprintf("%q@%s", text, lang)
		}
		if dt := v.Term.Datatype(); dt != "" {
			return fmt.Sprintf("%q^^<%s>", text, dt)
		}
		return fmt.Sprintf("%q", text)
	}
}
