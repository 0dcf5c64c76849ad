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

package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

func oMappingFull() []vgsql.VarMapping {
	return []vgsql.VarMapping{{
		Var:           "o",
		SQL:           "t_object_uuid_0.term_text",
		TermTypeCol:   "t_object_uuid_0.term_type",
		LangCol:       "t_object_uuid_0.term_lang",
		DatatypeIDCol: "t_object_uuid_0.term_datatype_id",
	}}
}

func callBuiltin(t *testing.T, tr *Translator, fn vgsql.Builtin, args ...vgsql.Expression) (string, error) {
	t.Helper()
	return tr.translateBuiltin(oMappingFull(), vgsql.BuiltinCall{Fn: fn, Args: args})
}

func TestTranslateBuiltin_StrAndCaseFunctions(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	out, err := callBuiltin(t, tr, vgsql.FnStr, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("CAST(t_object_uuid_0.term_text AS TEXT)", out)

	out, err = callBuiltin(t, tr, vgsql.FnStrLen, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("LENGTH(t_object_uuid_0.term_text)", out)

	out, err = callBuiltin(t, tr, vgsql.FnUCase, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("UPPER(t_object_uuid_0.term_text)", out)

	out, err = callBuiltin(t, tr, vgsql.FnLCase, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("LOWER(t_object_uuid_0.term_text)", out)
}

func TestTranslateBuiltin_Substr(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	two, err := callBuiltin(t, tr, vgsql.FnSubstr, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("2", "", "")})
	require.NoError(err)
	require.Equal("SUBSTRING(t_object_uuid_0.term_text FROM '2')", two)

	three, err := callBuiltin(t, tr, vgsql.FnSubstr,
		vgsql.VarRef{Name: "o"},
		vgsql.Const{Value: vgsql.NewLiteral("2", "", "")},
		vgsql.Const{Value: vgsql.NewLiteral("3", "", "")},
	)
	require.NoError(err)
	require.Equal("SUBSTRING(t_object_uuid_0.term_text FROM '2' FOR '3')", three)
}

func TestTranslateBuiltin_ContainsStartsEndsWithLiteralPatternUsesLike(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	contains, err := callBuiltin(t, tr, vgsql.FnContains, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("ali", "", "")})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text LIKE '%ali%')", contains)

	starts, err := callBuiltin(t, tr, vgsql.FnStrStarts, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("ali", "", "")})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text LIKE 'ali%')", starts)

	ends, err := callBuiltin(t, tr, vgsql.FnStrEnds, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("ice", "", "")})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text LIKE '%ice')", ends)
}

func TestTranslateBuiltin_ContainsWithVariablePatternUsesConcat(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	p := []vgsql.VarMapping{
		{Var: "o", SQL: "t_object_uuid_0.term_text"},
		{Var: "p", SQL: "t_object_uuid_1.term_text"},
	}
	out, err := tr.translateBuiltin(p, vgsql.BuiltinCall{Fn: vgsql.FnContains, Args: []vgsql.Expression{vgsql.VarRef{Name: "o"}, vgsql.VarRef{Name: "p"}}})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text LIKE CONCAT('%', t_object_uuid_1.term_text, '%'))", out)
}

func TestTranslateBuiltin_StrBeforeAndStrAfter(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	before, err := callBuiltin(t, tr, vgsql.FnStrBefore, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("@", "", "")})
	require.NoError(err)
	require.Contains(before, "SUBSTRING(t_object_uuid_0.term_text FROM 1 FOR POSITION")

	after, err := callBuiltin(t, tr, vgsql.FnStrAfter, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("@", "", "")})
	require.NoError(err)
	require.Contains(after, "SUBSTRING(t_object_uuid_0.term_text FROM POSITION")
}

func TestTranslateBuiltin_ReplaceAndConcat(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	replace, err := callBuiltin(t, tr, vgsql.FnReplace,
		vgsql.VarRef{Name: "o"},
		vgsql.Const{Value: vgsql.NewLiteral("a", "", "")},
		vgsql.Const{Value: vgsql.NewLiteral("b", "", "")},
	)
	require.NoError(err)
	require.Equal("REPLACE(t_object_uuid_0.term_text, 'a', 'b')", replace)

	concat, err := callBuiltin(t, tr, vgsql.FnConcat, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("!", "", "")})
	require.NoError(err)
	require.Equal("CONCAT(t_object_uuid_0.term_text, '!')", concat)
}

func TestTranslateBuiltin_EncodeForURI(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnEncodeForURI, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Contains(out, "REPLACE(REPLACE(REPLACE(")
}

func TestTranslateBuiltin_RegexLiteralValidPattern(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnRegex, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("^a.*z$", "", "")})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text ~ '^a.*z$')", out)
}

func TestTranslateBuiltin_RegexLiteralInvalidPatternCompilesToFalse(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnRegex, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("(unclosed", "", "")})
	require.NoError(err)
	require.Equal("FALSE", out)
}

func TestTranslateBuiltin_RegexVariablePatternGuardsAgainstEmpty(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	p := []vgsql.VarMapping{
		{Var: "o", SQL: "t_object_uuid_0.term_text"},
		{Var: "pat", SQL: "t_object_uuid_1.term_text"},
	}
	out, err := tr.translateBuiltin(p, vgsql.BuiltinCall{Fn: vgsql.FnRegex, Args: []vgsql.Expression{vgsql.VarRef{Name: "o"}, vgsql.VarRef{Name: "pat"}}})
	require.NoError(err)
	require.Contains(out, "CASE WHEN t_object_uuid_1.term_text IS NULL OR t_object_uuid_1.term_text = '' THEN FALSE")
}

func TestTranslateBuiltin_Bound(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnBound, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text IS NOT NULL)", out)
}

func TestTranslateBuiltin_SameTerm(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnSameTerm, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewIRI("ex:bob")})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text = 'ex:bob')", out)
}

func TestTranslateBuiltin_IsKindFunctionsUseTermTypeColumn(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	uri, err := callBuiltin(t, tr, vgsql.FnIsURI, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_type = 'U')", uri)

	lit, err := callBuiltin(t, tr, vgsql.FnIsLiteral, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_type = 'L')", lit)

	blank, err := callBuiltin(t, tr, vgsql.FnIsBlank, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_type = 'B')", blank)
}

func TestTranslateBuiltin_IsKindOnConstantEvaluatesDirectly(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnIsURI, vgsql.Const{Value: vgsql.NewIRI("ex:bob")})
	require.NoError(err)
	require.Equal("TRUE", out)

	out, err = callBuiltin(t, tr, vgsql.FnIsLiteral, vgsql.Const{Value: vgsql.NewIRI("ex:bob")})
	require.NoError(err)
	require.Equal("FALSE", out)
}

func TestTranslateBuiltin_IsNumeric(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnIsNumeric, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Contains(out, "~ '")

	// constants are decided at compile time, no runtime regex.
	out, err = callBuiltin(t, tr, vgsql.FnIsNumeric, vgsql.Const{Value: vgsql.NewLiteral("-3.14", "", "")})
	require.NoError(err)
	require.Equal("TRUE", out)

	out, err = callBuiltin(t, tr, vgsql.FnIsNumeric, vgsql.Const{Value: vgsql.NewLiteral("abc", "", "")})
	require.NoError(err)
	require.Equal("FALSE", out)
}

func TestTranslateBuiltin_LangUsesLangColumnForVariable(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnLang, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("COALESCE(t_object_uuid_0.term_lang, '')", out)
}

func TestTranslateBuiltin_LangOnConstantLiteral(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnLang, vgsql.Const{Value: vgsql.NewLiteral("bonjour", "fr", "")})
	require.NoError(err)
	require.Equal("'fr'", out)
}

func TestTranslateBuiltin_DatatypeUsesDatatypeTableWhenAvailable(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnDatatype, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Contains(out, "SELECT dt.datatype_uri FROM vg_test_datatype dt WHERE dt.datatype_id = t_object_uuid_0.term_datatype_id")
}

func TestTranslateBuiltin_DatatypeFallsBackToInferenceWhenTableUnavailable(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	tr.Ctx.DatatypeTableAvailable = false
	out, err := callBuiltin(t, tr, vgsql.FnDatatype, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Contains(out, "CASE ")
	require.Contains(out, "XMLSchema#integer")
}

func TestTranslateBuiltin_Coalesce(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnCoalesce, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("none", "", "")})
	require.NoError(err)
	require.Equal("COALESCE(t_object_uuid_0.term_text, 'none')", out)
}

func TestTranslateBuiltin_If(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnIf,
		vgsql.VarRef{Name: "o"},
		vgsql.Const{Value: vgsql.NewLiteral("yes", "", "")},
		vgsql.Const{Value: vgsql.NewLiteral("no", "", "")},
	)
	require.NoError(err)
	require.Equal("(CASE WHEN t_object_uuid_0.term_text THEN 'yes' ELSE 'no' END)", out)
}

func TestTranslateBuiltin_NumericFunctions(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	abs, err := callBuiltin(t, tr, vgsql.FnAbs, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("ABS(t_object_uuid_0.term_text)", abs)

	ceil, err := callBuiltin(t, tr, vgsql.FnCeil, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("CEIL(t_object_uuid_0.term_text)", ceil)

	floor, err := callBuiltin(t, tr, vgsql.FnFloor, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("FLOOR(t_object_uuid_0.term_text)", floor)

	round, err := callBuiltin(t, tr, vgsql.FnRound, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("ROUND(t_object_uuid_0.term_text)", round)
}

func TestTranslateBuiltin_RandAndNow(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	rnd, err := callBuiltin(t, tr, vgsql.FnRand)
	require.NoError(err)
	require.Equal("RANDOM()", rnd)

	now, err := callBuiltin(t, tr, vgsql.FnNow)
	require.NoError(err)
	require.Equal("NOW()", now)
}

func TestTranslateBuiltin_DateTimeParts(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	cases := []struct {
		fn   vgsql.Builtin
		part string
	}{
		{vgsql.FnYear, "YEAR"},
		{vgsql.FnMonth, "MONTH"},
		{vgsql.FnDay, "DAY"},
		{vgsql.FnHours, "HOUR"},
		{vgsql.FnMinutes, "MINUTE"},
		{vgsql.FnSeconds, "SECOND"},
	}
	for _, c := range cases {
		out, err := callBuiltin(t, tr, c.fn, vgsql.VarRef{Name: "o"})
		require.NoError(err)
		require.Equal("EXTRACT("+c.part+" FROM t_object_uuid_0.term_text)", out)
	}
}

func TestTranslateBuiltin_UUIDAndBNode(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())

	uid, err := callBuiltin(t, tr, vgsql.FnUUID)
	require.NoError(err)
	require.Equal("gen_random_uuid()::text", uid)

	b0, err := callBuiltin(t, tr, vgsql.FnBNode)
	require.NoError(err)
	require.Contains(b0, "MD5(ROW_NUMBER()")

	b1, err := callBuiltin(t, tr, vgsql.FnBNode, vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Contains(b1, "MD5(CONCAT(t_object_uuid_0.term_text::text")
}

func TestTranslateBuiltin_LangMatches(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := callBuiltin(t, tr, vgsql.FnLangMatches, vgsql.VarRef{Name: "o"}, vgsql.Const{Value: vgsql.NewLiteral("FR", "", "")})
	require.NoError(err)
	require.Equal("(LOWER(t_object_uuid_0.term_text) = LOWER('FR'))", out)
}

func TestTranslateBuiltin_ExistsCorrelatesOnSharedVariable(t *testing.T) {
	require := require.New(t)
	resolver := newFakeResolver(vgsql.Key{Text: "ex:knows", Kind: vgsql.KindIRI})
	tr := newTestTranslator(resolver)

	outer := []vgsql.VarMapping{{Var: "s", SQL: "q0.subject_uuid_ref"}}
	sub := vgsql.BGP{Triples: []vgsql.TriplePattern{
		{Subject: vgsql.NewVariable("s"), Predicate: vgsql.NewIRI("ex:knows"), Object: vgsql.NewVariable("x")},
	}}
	out, err := tr.translateBuiltin(outer, vgsql.BuiltinCall{Fn: vgsql.FnExists, SubPattern: sub})
	require.NoError(err)
	require.Contains(out, "EXISTS (SELECT 1 FROM vg_test_quad")
	require.Contains(out, ".term_text = q0.subject_uuid_ref")

	notOut, err := tr.translateBuiltin(outer, vgsql.BuiltinCall{Fn: vgsql.FnNotExists, SubPattern: sub})
	require.NoError(err)
	require.Contains(notOut, "NOT EXISTS (SELECT 1 FROM vg_test_quad")
}

func TestTranslateBuiltin_UnknownFunctionErrors(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	_, err := tr.translateBuiltin(nil, vgsql.BuiltinCall{Fn: vgsql.Builtin(999)})
	require.Error(err)
	require.True(vgsql.UnsupportedFeature.Is(err))
}
