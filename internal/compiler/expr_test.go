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

func oMapping() []vgsql.VarMapping {
	return []vgsql.VarMapping{{Var: "o", SQL: "t_object_uuid_0.term_text"}}
}

func TestTranslateExpr_VarRefResolvesMapping(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	sqlText, err := tr.TranslateExpr(oMapping(), vgsql.VarRef{Name: "o"})
	require.NoError(err)
	require.Equal("t_object_uuid_0.term_text", sqlText)
}

func TestTranslateExpr_VarRefUnmappedYieldsSentinel(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	sqlText, err := tr.TranslateExpr(nil, vgsql.VarRef{Name: "ghost"})
	require.NoError(err)
	require.Equal("'UNMAPPED_ghost'", sqlText)
}

func TestTranslateExpr_VarRefUnmappedStrictModeErrors(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	tr.Ctx.Config.StrictUnmappedVariables = true
	_, err := tr.TranslateExpr(nil, vgsql.VarRef{Name: "ghost"})
	require.Error(err)
	require.True(vgsql.UnmappedVariable.Is(err))
}

func TestTranslateExpr_Const(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	sqlText, err := tr.TranslateExpr(nil, vgsql.Const{Value: vgsql.NewLiteral("42", "", "")})
	require.NoError(err)
	require.Equal("'42'", sqlText)
}

func TestTranslateArithmetic_BinaryOpsCastToDecimal(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	m := oMapping()

	add, err := tr.TranslateExpr(m, vgsql.Arithmetic{Op: vgsql.ArithAdd, Lhs: vgsql.VarRef{Name: "o"}, Rhs: vgsql.Const{Value: vgsql.NewLiteral("1", "", "")}})
	require.NoError(err)
	require.Equal("(CAST(t_object_uuid_0.term_text AS DECIMAL) + CAST('1' AS DECIMAL))", add)

	div, err := tr.TranslateExpr(m, vgsql.Arithmetic{Op: vgsql.ArithDiv, Lhs: vgsql.VarRef{Name: "o"}, Rhs: vgsql.Const{Value: vgsql.NewLiteral("0", "", "")}})
	require.NoError(err)
	require.Equal("(CAST(t_object_uuid_0.term_text AS DECIMAL) / NULLIF(CAST('0' AS DECIMAL), 0))", div)
}

func TestTranslateArithmetic_UnaryOps(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	m := oMapping()

	plus, err := tr.TranslateExpr(m, vgsql.Arithmetic{Op: vgsql.ArithUnaryPlus, Lhs: vgsql.VarRef{Name: "o"}})
	require.NoError(err)
	require.Equal("(+CAST(t_object_uuid_0.term_text AS DECIMAL))", plus)

	minus, err := tr.TranslateExpr(m, vgsql.Arithmetic{Op: vgsql.ArithUnaryMinus, Lhs: vgsql.VarRef{Name: "o"}})
	require.NoError(err)
	require.Equal("(-CAST(t_object_uuid_0.term_text AS DECIMAL))", minus)
}

func TestTranslateRelational_EqAndNeqCompareTextDirectly(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	m := oMapping()

	eq, err := tr.TranslateExpr(m, vgsql.Relational{Op: vgsql.RelEq, Lhs: vgsql.VarRef{Name: "o"}, Rhs: vgsql.Const{Value: vgsql.NewIRI("ex:bob")}})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text = 'ex:bob')", eq)

	neq, err := tr.TranslateExpr(m, vgsql.Relational{Op: vgsql.RelNeq, Lhs: vgsql.VarRef{Name: "o"}, Rhs: vgsql.Const{Value: vgsql.NewIRI("ex:bob")}})
	require.NoError(err)
	require.Equal("(t_object_uuid_0.term_text <> 'ex:bob')", neq)
}

func TestTranslateRelational_OrderingOpsCastToDecimal(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	m := oMapping()
	lt, err := tr.TranslateExpr(m, vgsql.Relational{Op: vgsql.RelLt, Lhs: vgsql.VarRef{Name: "o"}, Rhs: vgsql.Const{Value: vgsql.NewLiteral("5", "", "")}})
	require.NoError(err)
	require.Equal("(CAST(t_object_uuid_0.term_text AS DECIMAL) < CAST('5' AS DECIMAL))", lt)
}

func TestTranslateRelational_InExpandsToSQLIn(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	m := oMapping()
	in, err := tr.TranslateExpr(m, vgsql.Relational{
		Op:      vgsql.RelIn,
		Lhs:     vgsql.VarRef{Name: "o"},
		RhsList: []vgsql.Expression{vgsql.Const{Value: vgsql.NewIRI("ex:bob")}, vgsql.Const{Value: vgsql.NewIRI("ex:carol")}},
	})
	require.NoError(err)
	require.Equal("t_object_uuid_0.term_text IN ('ex:bob', 'ex:carol')", in)
}

func TestTranslateRelational_InWithEmptyListIsFalse(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := tr.TranslateExpr(oMapping(), vgsql.Relational{Op: vgsql.RelIn, Lhs: vgsql.VarRef{Name: "o"}})
	require.NoError(err)
	require.Equal("FALSE", out)
}

func TestTranslateLogical_AndOrNot(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	lhs := vgsql.Relational{Op: vgsql.RelEq, Lhs: vgsql.VarRef{Name: "o"}, Rhs: vgsql.Const{Value: vgsql.NewLiteral("1", "", "")}}
	rhs := vgsql.Relational{Op: vgsql.RelEq, Lhs: vgsql.VarRef{Name: "o"}, Rhs: vgsql.Const{Value: vgsql.NewLiteral("2", "", "")}}

	and, err := tr.TranslateExpr(oMapping(), vgsql.Logical{Op: vgsql.LogicAnd, Lhs: lhs, Rhs: rhs})
	require.NoError(err)
	require.Contains(and, " AND ")

	or, err := tr.TranslateExpr(oMapping(), vgsql.Logical{Op: vgsql.LogicOr, Lhs: lhs, Rhs: rhs})
	require.NoError(err)
	require.Contains(or, " OR ")

	not, err := tr.TranslateExpr(oMapping(), vgsql.Logical{Op: vgsql.LogicNot, Lhs: lhs})
	require.NoError(err)
	require.Contains(not, "(NOT ")
}

func TestTranslateAggregate_CountStarWithoutArg(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	out, err := tr.TranslateExpr(nil, vgsql.AggregateExpr{Func: vgsql.AggCount})
	require.NoError(err)
	require.Equal("COUNT(*)", out)
}

func TestBuildAggregateSQL_AllFunctions(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	m := oMapping()

	cases := []struct {
		fn       vgsql.AggregateFunc
		distinct bool
		want     string
	}{
		{vgsql.AggCount, true, "COUNT(DISTINCT t_object_uuid_0.term_text)"},
		{vgsql.AggSum, false, "SUM(CAST(t_object_uuid_0.term_text AS DECIMAL))"},
		{vgsql.AggAvg, false, "AVG(CAST(t_object_uuid_0.term_text AS DECIMAL))"},
		{vgsql.AggMin, false, "MIN(t_object_uuid_0.term_text)"},
		{vgsql.AggMax, false, "MAX(t_object_uuid_0.term_text)"},
		{vgsql.AggSample, false, "(ARRAY_AGG(t_object_uuid_0.term_text))[1]"},
		{vgsql.AggGroupConcat, false, "STRING_AGG(t_object_uuid_0.term_text, ',')"},
	}
	for _, c := range cases {
		out, err := buildAggregateSQL(tr, m, c.fn, vgsql.VarRef{Name: "o"}, c.distinct)
		require.NoError(err)
		require.Equal(c.want, out)
	}
}

func TestBuildAggregateSQL_UnknownFunctionErrors(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	_, err := buildAggregateSQL(tr, nil, vgsql.AggregateFunc(999), nil, false)
	require.Error(err)
	require.True(vgsql.UnsupportedFeature.Is(err))
}

func TestIsNumericLiteral(t *testing.T) {
	require := require.New(t)
	require.True(isNumericLiteral("42"))
	require.True(isNumericLiteral("-3.14"))
	require.False(isNumericLiteral("not-a-number"))
	require.False(isNumericLiteral(""))
}

func TestReferencesAggregate_DetectsAggregateMappingAndTokens(t *testing.T) {
	require := require.New(t)
	mappings := []vgsql.VarMapping{{Var: "__agg_0__", SQL: "COUNT(*)", IsAggregate: true}}
	require.True(referencesAggregate(mappings, "(COUNT(*) > 1)"))
	require.True(referencesAggregate(nil, "SUM(x) > 1"))
	require.False(referencesAggregate(mappings, "(t_object_uuid_0.term_text = 'ex:bob')"))
}

func TestTranslateExpr_UnsupportedExpressionKindErrors(t *testing.T) {
	require := require.New(t)
	tr := newTestTranslator(newFakeResolver())
	_, err := tr.TranslateExpr(nil, nil)
	require.Error(err)
	require.True(vgsql.UnsupportedFeature.Is(err))
}
