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
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// TranslateExpr translates a SPARQL expression against mappings to a SQL
// scalar expression (C5, §4.5).
func (t *Translator) TranslateExpr(mappings []vgsql.VarMapping, expr vgsql.Expression) (string, error) {
	switch e := expr.(type) {
	case vgsql.VarRef:
		m, ok := lookupMapping(mappings, e.Name)
		if !ok {
			if t.Ctx.Config.StrictUnmappedVariables {
				return "", vgsql.UnmappedVariable.New(e.Name)
			}
			if t.Ctx.Logger != nil {
				t.Ctx.Logger.Warnf("unmapped variable %s emitted as sentinel", e.Name)
			}
			return fmt.Sprintf("'UNMAPPED_%s'", e.Name), nil
		}
		// Aggregate-result mappings are returned verbatim: no AS-splitting,
		// no wrapping (§4.5.1).
		return m.SQL, nil

	case vgsql.Const:
		return vgsql.ToSQLLiteral(e.Value)

	case vgsql.Arithmetic:
		return t.translateArithmetic(mappings, e)

	case vgsql.Relational:
		return t.translateRelational(mappings, e)

	case vgsql.Logical:
		return t.translateLogical(mappings, e)

	case vgsql.BuiltinCall:
		return t.translateBuiltin(mappings, e)

	case vgsql.AggregateExpr:
		return t.translateAggregate(mappings, e)

	default:
		return "", vgsql.UnsupportedFeature.New(fmt.Sprintf("%T", expr))
	}
}

func (t *Translator) translateArithmetic(mappings []vgsql.VarMapping, e vgsql.Arithmetic) (string, error) {
	lhs, err := t.TranslateExpr(mappings, e.Lhs)
	if err != nil {
		return "", err
	}
	switch e.Op {
	case vgsql.ArithUnaryPlus:
		return fmt.Sprintf("(+CAST(%s AS DECIMAL))", lhs), nil
	case vgsql.ArithUnaryMinus:
		return fmt.Sprintf("(-CAST(%s AS DECIMAL))", lhs), nil
	}

	rhs, err := t.TranslateExpr(mappings, e.Rhs)
	if err != nil {
		return "", err
	}
	lhsCast := fmt.Sprintf("CAST(%s AS DECIMAL)", lhs)
	rhsCast := fmt.Sprintf("CAST(%s AS DECIMAL)", rhs)
	switch e.Op {
	case vgsql.ArithAdd:
		return fmt.Sprintf("(%s + %s)", lhsCast, rhsCast), nil
	case vgsql.ArithSub:
		return fmt.Sprintf("(%s - %s)", lhsCast, rhsCast), nil
	case vgsql.ArithMul:
		return fmt.Sprintf("(%s * %s)", lhsCast, rhsCast), nil
	case vgsql.ArithDiv:
		// division uses NULLIF(...,0) to avoid divide-by-zero.
		return fmt.Sprintf("(%s / NULLIF(%s, 0))", lhsCast, rhsCast), nil
	default:
		return "", vgsql.UnsupportedFeature.New("arithmetic operator")
	}
}

func (t *Translator) translateRelational(mappings []vgsql.VarMapping, e vgsql.Relational) (string, error) {
	if e.Op == vgsql.RelIn {
		if len(e.RhsList) == 0 {
			return "FALSE", nil
		}
		lhs, err := t.TranslateExpr(mappings, e.Lhs)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(e.RhsList))
		for _, r := range e.RhsList {
			sqlText, err := t.TranslateExpr(mappings, r)
			if err != nil {
				return "", err
			}
			parts = append(parts, sqlText)
		}
		return fmt.Sprintf("%s IN (%s)", lhs, strings.Join(parts, ", ")), nil
	}

	lhs, err := t.TranslateExpr(mappings, e.Lhs)
	if err != nil {
		return "", err
	}
	rhs, err := t.TranslateExpr(mappings, e.Rhs)
	if err != nil {
		return "", err
	}

	switch e.Op {
	case vgsql.RelEq:
		return fmt.Sprintf("(%s = %s)", lhs, rhs), nil
	case vgsql.RelNeq:
		return fmt.Sprintf("(%s <> %s)", lhs, rhs), nil
	case vgsql.RelLt, vgsql.RelLe, vgsql.RelGt, vgsql.RelGe:
		op := map[vgsql.RelOp]string{
			vgsql.RelLt: "<", vgsql.RelLe: "<=", vgsql.RelGt: ">", vgsql.RelGe: ">=",
		}[e.Op]
		return fmt.Sprintf("(CAST(%s AS DECIMAL) %s CAST(%s AS DECIMAL))", lhs, op, rhs), nil
	default:
		return "", vgsql.UnsupportedFeature.New("relational operator")
	}
}

func (t *Translator) translateLogical(mappings []vgsql.VarMapping, e vgsql.Logical) (string, error) {
	lhs, err := t.TranslateExpr(mappings, e.Lhs)
	if err != nil {
		return "", err
	}
	if e.Op == vgsql.LogicNot {
		return fmt.Sprintf("(NOT %s)", lhs), nil
	}
	rhs, err := t.TranslateExpr(mappings, e.Rhs)
	if err != nil {
		return "", err
	}
	switch e.Op {
	case vgsql.LogicAnd:
		return fmt.Sprintf("(%s AND %s)", lhs, rhs), nil
	case vgsql.LogicOr:
		return fmt.Sprintf("(%s OR %s)", lhs, rhs), nil
	default:
		return "", vgsql.UnsupportedFeature.New("logical operator")
	}
}

func (t *Translator) translateAggregate(mappings []vgsql.VarMapping, e vgsql.AggregateExpr) (string, error) {
	return buildAggregateSQL(t, mappings, e.Func, e.Arg, e.Distinct)
}

// buildAggregateSQL synthesizes the SQL for one aggregate. COUNT(*) is used
// whenever the counted variable has no mapping, including the DISTINCT case
// (to avoid illegal COUNT(DISTINCT *)), per §4.5.6.
func buildAggregateSQL(t *Translator, mappings []vgsql.VarMapping, fn vgsql.AggregateFunc, arg vgsql.Expression, distinct bool) (string, error) {
	if v, ok := arg.(vgsql.VarRef); ok && fn == vgsql.AggCount {
		if _, mapped := lookupMapping(mappings, v.Name); !mapped {
			return "COUNT(*)", nil
		}
	}

	var argSQL string
	hasArg := arg != nil
	if hasArg {
		s, err := t.TranslateExpr(mappings, arg)
		if err != nil {
			return "", err
		}
		argSQL = s
	}

	distinctKw := ""
	if distinct {
		distinctKw = "DISTINCT "
	}

	switch fn {
	case vgsql.AggCount:
		if !hasArg {
			return "COUNT(*)", nil
		}
		return fmt.Sprintf("COUNT(%s%s)", distinctKw, argSQL), nil
	case vgsql.AggSum:
		return fmt.Sprintf("SUM(%sCAST(%s AS DECIMAL))", distinctKw, argSQL), nil
	case vgsql.AggAvg:
		return fmt.Sprintf("AVG(%sCAST(%s AS DECIMAL))", distinctKw, argSQL), nil
	case vgsql.AggMin:
		return fmt.Sprintf("MIN(%s)", argSQL), nil
	case vgsql.AggMax:
		return fmt.Sprintf("MAX(%s)", argSQL), nil
	case vgsql.AggSample:
		return fmt.Sprintf("(ARRAY_AGG(%s))[1]", argSQL), nil
	case vgsql.AggGroupConcat:
		return fmt.Sprintf("STRING_AGG(%s%s, ',')", distinctKw, argSQL), nil
	default:
		return "", vgsql.UnsupportedFeature.New("aggregate function")
	}
}

// isNumericLiteral reports whether s parses as a decimal number, used by
// isNUMERIC's inline-literal fast path.
func isNumericLiteral(s string) bool {
	_, err := decimal.NewFromString(s)
	return err == nil
}

// havingDetectionTokens are scanned for in a translated FILTER condition to
// decide whether it belongs in HAVING instead of WHERE (§4.5.7).
var havingDetectionTokens = []string{"COUNT(", "SUM(", "AVG(", "MIN(", "MAX(", "STRING_AGG(", "ARRAY_AGG("}

// referencesAggregate reports whether sqlText references an aggregate-result
// variable's mapping (by its SQL text) or one of the recognized aggregate
// function call tokens.
func referencesAggregate(mappings []vgsql.VarMapping, sqlText string) bool {
	for _, m := range mappings {
		if m.IsAggregate && m.SQL != "" && strings.Contains(sqlText, m.SQL) {
			return true
		}
	}
	for _, tok := range havingDetectionTokens {
		if strings.Contains(sqlText, tok) {
			return true
		}
	}
	return false
}
