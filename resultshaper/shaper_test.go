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

package resultshaper

import (
	stdsql "database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/sparql-compiler/internal/compiler"
	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// mockRows runs a throwaway query against a sqlmock connection so the shaper
// can be exercised on a real *sql.Rows.
func mockRows(t *testing.T, rows *sqlmock.Rows) *stdsql.Rows {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectQuery("SELECT").WillReturnRows(rows)
	r, err := db.Query("SELECT 1")
	require.NoError(t, err)
	return r
}

func TestShapeSelect_ReconstructsTypedBindings(t *testing.T) {
	require := require.New(t)

	rows := mockRows(t, sqlmock.NewRows([]string{"x", "x__type", "x__lang", "x__dt", "n"}).
		AddRow("ex:alice", "U", nil, nil, "Alice").
		AddRow("ex:bob", "U", nil, nil, nil))

	aq := compiler.AssembledQuery{
		ColumnToVar: map[string]string{"x": "X", "n": "n"},
		Companions: map[string]compiler.CompanionCols{
			"X": {TypeCol: "x__type", LangCol: "x__lang", DatatypeCol: "x__dt"},
		},
	}
	bindings, err := ShapeSelect(rows, aq)
	require.NoError(err)
	require.Len(bindings, 2)

	// original case survives SQL lowercasing via the reverse map.
	x := bindings[0]["X"]
	require.True(x.Bound)
	require.True(x.IsIRI)
	text, _, _ := vgsql.TermInfo(x.Term)
	require.Equal("ex:alice", text)

	// ?n has no companions: an opaque text value shaped as a plain literal.
	n := bindings[0]["n"]
	require.True(n.Bound)
	require.True(n.IsLiteral)

	// NULL becomes unbound.
	require.False(bindings[1]["n"].Bound)
}

func TestShapeSelect_LiteralCarriesLangAndDatatype(t *testing.T) {
	require := require.New(t)

	rows := mockRows(t, sqlmock.NewRows([]string{"n", "n__type", "n__lang", "n__dt"}).
		AddRow("chat", "L", "fr", nil).
		AddRow("42", "L", nil, "http://www.w3.org/2001/XMLSchema#integer"))

	aq := compiler.AssembledQuery{
		ColumnToVar: map[string]string{"n": "n"},
		Companions: map[string]compiler.CompanionCols{
			"n": {TypeCol: "n__type", LangCol: "n__lang", DatatypeCol: "n__dt"},
		},
	}
	bindings, err := ShapeSelect(rows, aq)
	require.NoError(err)
	require.Len(bindings, 2)
	require.Equal("fr", bindings[0]["n"].Term.Lang())
	require.Equal("http://www.w3.org/2001/XMLSchema#integer", bindings[1]["n"].Term.Datatype())
}

func TestShapeAsk(t *testing.T) {
	require := require.New(t)

	got, err := ShapeAsk(mockRows(t, sqlmock.NewRows([]string{"ask_result"}).AddRow(1)))
	require.NoError(err)
	require.True(got)

	got, err = ShapeAsk(mockRows(t, sqlmock.NewRows([]string{"ask_result"})))
	require.NoError(err)
	require.False(got)
}

func TestShapeConstruct_InstantiatesDropsAndDeduplicates(t *testing.T) {
	require := require.New(t)

	rows := mockRows(t, sqlmock.NewRows([]string{"s", "o"}).
		AddRow("ex:alice", "ex:bob").
		AddRow("ex:alice", "ex:bob"). // duplicate row
		AddRow("ex:carol", nil))      // unbound ?o: triple dropped

	aq := compiler.AssembledQuery{ColumnToVar: map[string]string{"s": "s", "o": "o"}}
	template := []vgsql.TriplePattern{
		{Subject: vgsql.NewVariable("s"), Predicate: vgsql.NewIRI("ex:knows"), Object: vgsql.NewVariable("o")},
	}
	triples, err := ShapeConstruct(rows, aq, template)
	require.NoError(err)
	require.Len(triples, 1)

	pText, _, _ := vgsql.TermInfo(triples[0].Predicate)
	require.Equal("ex:knows", pText)
}

func TestShapeConstruct_ConstantTemplateSlotsPassThrough(t *testing.T) {
	require := require.New(t)

	rows := mockRows(t, sqlmock.NewRows([]string{"s"}).AddRow("ex:alice"))
	aq := compiler.AssembledQuery{ColumnToVar: map[string]string{"s": "s"}}
	template := []vgsql.TriplePattern{
		{Subject: vgsql.NewVariable("s"), Predicate: vgsql.NewIRI("rdf:type"), Object: vgsql.NewIRI("ex:Person")},
	}
	triples, err := ShapeConstruct(rows, aq, template)
	require.NoError(err)
	require.Len(triples, 1)
	oText, _, _ := vgsql.TermInfo(triples[0].Object)
	require.Equal("ex:Person", oText)
}

func TestShapeDescribe_PassesTriplesThrough(t *testing.T) {
	require := require.New(t)

	rows := mockRows(t, sqlmock.NewRows([]string{"s", "p", "o", "o__type", "o__lang"}).
		AddRow("ex:alice", "ex:name", "Alice", "L", nil).
		AddRow("ex:alice", "ex:knows", "ex:bob", "U", nil))

	aq := compiler.AssembledQuery{
		Companions: map[string]compiler.CompanionCols{
			"o": {TypeCol: "o__type", LangCol: "o__lang"},
		},
	}
	triples, err := ShapeDescribe(rows, aq)
	require.NoError(err)
	require.Len(triples, 2)

	sText, _, _ := vgsql.TermInfo(triples[0].Subject)
	require.Equal("ex:alice", sText)
	oText, oKind, _ := vgsql.TermInfo(triples[0].Object)
	require.Equal("Alice", oText)
	require.Equal(vgsql.KindLiteral, oKind)
	_, oKind2, _ := vgsql.TermInfo(triples[1].Object)
	require.Equal(vgsql.KindIRI, oKind2)
}

func TestValueString(t *testing.T) {
	require := require.New(t)
	require.Equal("", Unbound.String())
	require.Equal("<ex:a>", Value{Bound: true, IsIRI: true, Term: vgsql.NewIRI("ex:a")}.String())
	require.Equal(`"chat"@fr`, Value{Bound: true, IsLiteral: true, Term: vgsql.NewLiteral("chat", "fr", "")}.String())
	require.Equal("_:b0", Value{Bound: true, IsBlank: true, Term: vgsql.NewBlankNode("b0")}.String())
}
