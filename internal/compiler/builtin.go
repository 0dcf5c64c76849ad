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
	"regexp"
	"strings"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// numericPattern matches a signed decimal/scientific literal, used by
// isNUMERIC's runtime regex check.
var numericPattern = `^[+-]?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`

func (t *Translator) translateBuiltin(mappings []vgsql.VarMapping, call vgsql.BuiltinCall) (string, error) {
	args := call.Args

	arg := func(i int) (string, error) { return t.TranslateExpr(mappings, args[i]) }

	// argMapping resolves the i'th argument's VarMapping, when it is a
	// variable reference, so builtins can inspect companion columns.
	argMapping := func(i int) (vgsql.VarMapping, bool) {
		if v, ok := args[i].(vgsql.VarRef); ok {
			return lookupMapping(mappings, v.Name)
		}
		return vgsql.VarMapping{}, false
	}

	switch call.Fn {
	case vgsql.FnStr:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("CAST(%s AS TEXT)", x), nil

	case vgsql.FnStrLen:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("LENGTH(%s)", x), nil

	case vgsql.FnUCase:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("UPPER(%s)", x), nil

	case vgsql.FnLCase:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("LOWER(%s)", x), nil

	case vgsql.FnSubstr:
		s, err := arg(0)
		if err != nil {
			return "", err
		}
		start, err := arg(1)
		if err != nil {
			return "", err
		}
		if len(args) == 2 {
			return fmt.Sprintf("SUBSTRING(%s FROM %s)", s, start), nil
		}
		length, err := arg(2)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("SUBSTRING(%s FROM %s FOR %s)", s, start, length), nil

	case vgsql.FnContains, vgsql.FnStrStarts, vgsql.FnStrEnds:
		return t.translateLikeBuiltin(call.Fn, args, mappings)

	case vgsql.FnStrBefore:
		return t.translateStrBeforeAfter(true, args, mappings)
	case vgsql.FnStrAfter:
		return t.translateStrBeforeAfter(false, args, mappings)

	case vgsql.FnReplace:
		s, err := arg(0)
		if err != nil {
			return "", err
		}
		p, err := arg(1)
		if err != nil {
			return "", err
		}
		r, err := arg(2)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("REPLACE(%s, %s, %s)", s, p, r), nil

	case vgsql.FnConcat:
		parts := make([]string, 0, len(args))
		for i := range args {
			s, err := arg(i)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return fmt.Sprintf("CONCAT(%s)", strings.Join(parts, ", ")), nil

	case vgsql.FnEncodeForURI:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		// No single standard SQL builtin covers RFC 3986 percent-encoding;
		// the pattern below covers the common unsafe character set.
		return fmt.Sprintf("REPLACE(REPLACE(REPLACE(%s, ' ', '%%20'), '/', '%%2F'), '#', '%%23')", x), nil

	case vgsql.FnRegex:
		return t.translateRegex(args, mappings)

	case vgsql.FnBound:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s IS NOT NULL)", x), nil

	case vgsql.FnSameTerm:
		l, err := arg(0)
		if err != nil {
			return "", err
		}
		r, err := arg(1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s = %s)", l, r), nil

	case vgsql.FnIsURI, vgsql.FnIsIRI:
		m, hasM := argMapping(0)
		return translateIsKind(args[0], m, hasM, vgsql.KindIRI)
	case vgsql.FnIsLiteral:
		m, hasM := argMapping(0)
		return translateIsKind(args[0], m, hasM, vgsql.KindLiteral)
	case vgsql.FnIsBlank:
		m, hasM := argMapping(0)
		return translateIsKind(args[0], m, hasM, vgsql.KindBlank)

	case vgsql.FnIsNumeric:
		if c, ok := args[0].(vgsql.Const); ok {
			text, _, err := vgsql.TermInfo(c.Value)
			if err != nil {
				return "", err
			}
			if isNumericLiteral(text) {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s ~ '%s')", x, numericPattern), nil

	case vgsql.FnLang:
		m, hasM := argMapping(0)
		return translateLang(args[0], m, hasM)

	case vgsql.FnDatatype:
		m, hasM := argMapping(0)
		return t.translateDatatype(args[0], m, hasM)

	case vgsql.FnCoalesce:
		parts := make([]string, 0, len(args))
		for i := range args {
			s, err := arg(i)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return fmt.Sprintf("COALESCE(%s)", strings.Join(parts, ", ")), nil

	case vgsql.FnIf:
		c, err := arg(0)
		if err != nil {
			return "", err
		}
		then, err := arg(1)
		if err != nil {
			return "", err
		}
		els, err := arg(2)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(CASE WHEN %s THEN %s ELSE %s END)", c, then, els), nil

	case vgsql.FnAbs:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ABS(%s)", x), nil
	case vgsql.FnCeil:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("CEIL(%s)", x), nil
	case vgsql.FnFloor:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("FLOOR(%s)", x), nil
	case vgsql.FnRound:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ROUND(%s)", x), nil

	case vgsql.FnRand:
		return "RANDOM()", nil
	case vgsql.FnNow:
		return "NOW()", nil

	case vgsql.FnYear, vgsql.FnMonth, vgsql.FnDay, vgsql.FnHours, vgsql.FnMinutes, vgsql.FnSeconds:
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		part := map[vgsql.Builtin]string{
			vgsql.FnYear: "YEAR", vgsql.FnMonth: "MONTH", vgsql.FnDay: "DAY",
			vgsql.FnHours: "HOUR", vgsql.FnMinutes: "MINUTE", vgsql.FnSeconds: "SECOND",
		}[call.Fn]
		return fmt.Sprintf("EXTRACT(%s FROM %s)", part, x), nil

	case vgsql.FnUUID:
		return "gen_random_uuid()::text", nil

	case vgsql.FnBNode:
		if len(args) == 0 {
			return "('_:' || MD5(ROW_NUMBER() OVER ()::text))", nil
		}
		x, err := arg(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("('_:' || MD5(CONCAT(%s::text, ROW_NUMBER() OVER ()::text)))", x), nil

	case vgsql.FnLangMatches:
		l, err := arg(0)
		if err != nil {
			return "", err
		}
		r, err := arg(1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(LOWER(%s) = LOWER(%s))", l, r), nil

	case vgsql.FnExists, vgsql.FnNotExists:
		return t.translateExists(call, mappings)

	default:
		return "", vgsql.UnsupportedFeature.New("builtin function")
	}
}

func (t *Translator) translateLikeBuiltin(fn vgsql.Builtin, args []vgsql.Expression, mappings []vgsql.VarMapping) (string, error) {
	x, err := t.TranslateExpr(mappings, args[0])
	if err != nil {
		return "", err
	}
	pattern, isLiteral := literalText(args[1])

	var left, right string // wildcard placement around the pattern
	switch fn {
	case vgsql.FnContains:
		left, right = "%", "%"
	case vgsql.FnStrStarts:
		left, right = "", "%"
	case vgsql.FnStrEnds:
		left, right = "%", ""
	default:
		return "", vgsql.UnsupportedFeature.New("like builtin")
	}

	if isLiteral {
		return fmt.Sprintf("(%s LIKE '%s%s%s')", x, left, escapeLike(pattern), right), nil
	}

	// Variables are concatenated with the wildcard literals (§4.5.5).
	p, err := t.TranslateExpr(mappings, args[1])
	if err != nil {
		return "", err
	}
	parts := []string{}
	if left != "" {
		parts = append(parts, "'"+left+"'")
	}
	parts = append(parts, p)
	if right != "" {
		parts = append(parts, "'"+right+"'")
	}
	return fmt.Sprintf("(%s LIKE CONCAT(%s))", x, strings.Join(parts, ", ")), nil
}

func literalText(e vgsql.Expression) (string, bool) {
	c, ok := e.(vgsql.Const)
	if !ok {
		return "", false
	}
	if c.Value.IsVariable() {
		return "", false
	}
	text, _, err := vgsql.TermInfo(c.Value)
	if err != nil {
		return "", false
	}
	return text, true
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

func (t *Translator) translateStrBeforeAfter(before bool, args []vgsql.Expression, mappings []vgsql.VarMapping) (string, error) {
	s, err := t.TranslateExpr(mappings, args[0])
	if err != nil {
		return "", err
	}
	delim, err := t.TranslateExpr(mappings, args[1])
	if err != nil {
		return "", err
	}
	if before {
		return fmt.Sprintf(
			"(CASE WHEN POSITION(%s IN %s) > 0 THEN SUBSTRING(%s FROM 1 FOR POSITION(%s IN %s) - 1) ELSE '' END)",
			delim, s, s, delim, s,
		), nil
	}
	return fmt.Sprintf(
		"(CASE WHEN POSITION(%s IN %s) > 0 THEN SUBSTRING(%s FROM POSITION(%s IN %s) + LENGTH(%s)) ELSE '' END)",
		delim, s, s, delim, s, delim,
	), nil
}

// translateRegex compiles REGEX(x,p[,flags]). Literal patterns are validated
// at compile time with Go's regexp package (§9); an invalid literal pattern
// compiles to FALSE with InvalidRegex logged. Variable patterns are deferred
// to runtime behind a guard CASE (§4.5.5).
func (t *Translator) translateRegex(args []vgsql.Expression, mappings []vgsql.VarMapping) (string, error) {
	x, err := t.TranslateExpr(mappings, args[0])
	if err != nil {
		return "", err
	}
	pattern, isLiteral := literalText(args[1])
	if isLiteral {
		goPattern := pattern
		if len(args) == 3 {
			if flags, ok := literalText(args[2]); ok && strings.Contains(flags, "i") {
				goPattern = "(?i)" + goPattern
			}
		}
		if _, err := regexp.Compile(goPattern); err != nil {
			if t.Ctx.Logger != nil {
				t.Ctx.Logger.Warnf("invalid regex %q: %s", pattern, err)
			}
			return "FALSE", nil
		}
		return fmt.Sprintf("(%s ~ '%s')", x, escapeSQLLiteral(pattern)), nil
	}

	p, err := t.TranslateExpr(mappings, args[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(CASE WHEN %s IS NULL OR %s = '' THEN FALSE ELSE %s ~ %s END)", p, p, x, p), nil
}

func escapeSQLLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func translateIsKind(e vgsql.Expression, m vgsql.VarMapping, hasM bool, kind vgsql.TermKind) (string, error) {
	if _, ok := e.(vgsql.VarRef); ok {
		if hasM && m.TermTypeCol != "" {
			return fmt.Sprintf("(%s = '%s')", m.TermTypeCol, string(rune(kind))), nil
		}
	}
	if c, ok := e.(vgsql.Const); ok {
		_, k, err := vgsql.TermInfo(c.Value)
		if err == nil {
			if k == kind {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
	}
	return "FALSE", nil
}

func translateLang(e vgsql.Expression, m vgsql.VarMapping, hasM bool) (string, error) {
	if _, ok := e.(vgsql.VarRef); ok {
		if hasM && m.LangCol != "" {
			return fmt.Sprintf("COALESCE(%s, '')", m.LangCol), nil
		}
		return "''", nil
	}
	if c, ok := e.(vgsql.Const); ok {
		return "'" + escapeSQLLiteral(c.Value.Lang()) + "'", nil
	}
	return "''", nil
}

func (t *Translator) translateDatatype(e vgsql.Expression, m vgsql.VarMapping, hasM bool) (string, error) {
	x, err := t.TranslateExpr(nil, e)
	if err != nil && !isVarRefOrConst(e) {
		return "", err
	}
	if v, ok := e.(vgsql.VarRef); ok {
		if hasM && t.Ctx.DatatypeTableAvailable && m.DatatypeIDCol != "" {
			return fmt.Sprintf(
				"(SELECT dt.datatype_uri FROM %s dt WHERE dt.datatype_id = %s)",
				t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableDatatype), m.DatatypeIDCol,
			), nil
		}
		col := m.SQL
		if col == "" {
			col = v.Name
		}
		return datatypeInferenceCase(col), nil
	}
	return datatypeInferenceCase(x), nil
}

func isVarRefOrConst(e vgsql.Expression) bool {
	switch e.(type) {
	case vgsql.VarRef, vgsql.Const:
		return true
	default:
		return false
	}
}

// datatypeInferenceCase falls back to regex-driven datatype inference when
// the datatype table is unavailable (§4.5.5 DATATYPE()).
func datatypeInferenceCase(col string) string {
	return fmt.Sprintf(
		"(CASE "+
			"WHEN %s ~ '^[+-]?[0-9]+$' THEN 'http://www.w3.org/2001/XMLSchema#integer' "+
			"WHEN %s ~ '^[+-]?[0-9]+\\.[0-9]+$' THEN 'http://www.w3.org/2001/XMLSchema#decimal' "+
			"WHEN %s ~ '^[+-]?[0-9]+(\\.[0-9]+)?[eE][+-]?[0-9]+$' THEN 'http://www.w3.org/2001/XMLSchema#double' "+
			"WHEN %s IN ('true','false') THEN 'http://www.w3.org/2001/XMLSchema#boolean' "+
			"ELSE 'http://www.w3.org/2001/XMLSchema#string' END)",
		col, col, col, col,
	)
}

// translateExists compiles EXISTS{P}/NOT EXISTS{P} to [NOT] EXISTS(subquery),
// correlating the subquery on shared variables the same way MINUS does
// (§4.5.5, §4.6 Minus).
func (t *Translator) translateExists(call vgsql.BuiltinCall, outer []vgsql.VarMapping) (string, error) {
	inner, err := t.TranslatePattern(call.SubPattern, nil, "")
	if err != nil {
		return "", err
	}
	shared := sharedVariables(outer, inner.Mappings)
	conds := append([]string(nil), inner.Where...)
	for _, v := range shared {
		outerM, _ := lookupMapping(outer, v)
		innerM, _ := lookupMapping(inner.Mappings, v)
		conds = append(conds, fmt.Sprintf("%s = %s", innerM.SQL, outerM.SQL))
	}

	from := inner.From
	body := fmt.Sprintf("SELECT 1 %s %s", from, strings.Join(inner.Joins, " "))
	if len(conds) > 0 {
		body += " WHERE " + strings.Join(conds, " AND ")
	}

	kw := "EXISTS"
	if call.Fn == vgsql.FnNotExists {
		kw = "NOT EXISTS"
	}
	return fmt.Sprintf("%s (%s)", kw, body), nil
}
