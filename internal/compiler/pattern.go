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
	"sort"
	"strings"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// contextConstraintPlaceholder is substituted with a quad alias by the BGP
// translator; a context constraint travels through the whole recursive
// TranslatePattern dispatch as a single templated string rather than a
// function value, so every node that just passes it through (Join, Filter,
// Extend, ...) needs no special knowledge of it at all.
const contextConstraintPlaceholder = "{alias}"

// graphConstraint formats the per-alias context constraint for a resolved
// graph uuid (or the poison uuid when a named graph IRI did not resolve).
func graphConstraint(uuid string) string {
	return fmt.Sprintf("%s.context_uuid = '%s'", contextConstraintPlaceholder, uuid)
}

// poisonGraphUUID never matches a real term uuid; used when GRAPH <iri> names
// a graph absent from the term table so the pattern yields zero rows (§4.6).
const poisonGraphUUID = "00000000-0000-0000-0000-000000000000"

// TranslatePattern is the single dispatch over algebra node kind (C6, §4.6).
// projectedVars is nil/empty to mean "project everything seen"; contextConstraint
// is a templated condition (see contextConstraintPlaceholder) pushed down from an
// enclosing GRAPH, applied only once it reaches a BGP or property path leaf.
func (t *Translator) TranslatePattern(alg vgsql.Algebra, projectedVars []string, contextConstraint string) (vgsql.SQLFragment, error) {
	switch n := alg.(type) {
	case vgsql.BGP:
		return t.translateBGP(n, projectedVars, contextConstraint)
	case vgsql.PropertyPathPattern:
		return t.translatePropertyPathPattern(n, contextConstraint)
	case vgsql.Join:
		return t.translateJoin(n, projectedVars, contextConstraint)
	case vgsql.Union:
		return t.translateUnion(n, projectedVars, contextConstraint)
	case vgsql.LeftJoin:
		return t.translateLeftJoin(n, projectedVars, contextConstraint)
	case vgsql.Minus:
		return t.translateMinus(n, projectedVars, contextConstraint)
	case vgsql.Filter:
		return t.translateFilter(n, projectedVars, contextConstraint)
	case vgsql.Extend:
		return t.translateExtend(n, projectedVars, contextConstraint)
	case vgsql.Values:
		return t.translateValues(n)
	case vgsql.Graph:
		return t.translateGraph(n, projectedVars)
	case vgsql.Slice:
		return t.TranslatePattern(n.P, projectedVars, contextConstraint)
	case vgsql.OrderBy:
		return t.TranslatePattern(n.P, projectedVars, contextConstraint)
	case vgsql.Project:
		return t.TranslatePattern(n.P, mergeVars(projectedVars, n.Vars), contextConstraint)
	case vgsql.Distinct:
		return t.TranslatePattern(n.P, projectedVars, contextConstraint)
	case vgsql.Group:
		return t.translateGroup(n, contextConstraint)
	case vgsql.AggregateJoin:
		return t.translateAggregateJoin(n, projectedVars, contextConstraint)
	case vgsql.SubSelect:
		return t.translateSubSelect(n)
	default:
		if t.Ctx.Logger != nil {
			t.Ctx.Logger.Warnf("unknown algebra node %T; emitting empty fragment", alg)
		}
		return t.emptyFragment(), nil
	}
}

// emptyFragment is the safe no-op fragment for an unknown node kind (§4.6
// Failure semantics): it references one quad alias and matches nothing.
func (t *Translator) emptyFragment() vgsql.SQLFragment {
	alias := t.Ctx.Aliases.NextQuadAlias()
	table := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	return vgsql.SQLFragment{
		From:  fmt.Sprintf("FROM %s %s", table, alias),
		Where: []string{"1=0"},
	}
}

func mergeVars(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// translateFilter applies §4.5.7's HAVING-vs-WHERE rule on top of the nested
// pattern's translation.
func (t *Translator) translateFilter(n vgsql.Filter, projectedVars []string, cc string) (vgsql.SQLFragment, error) {
	inner, err := t.TranslatePattern(n.P, projectedVars, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	cond, err := t.TranslateExpr(inner.Mappings, n.Expr)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	if referencesAggregate(inner.Mappings, cond) {
		return inner.WithHaving(cond), nil
	}
	return inner.WithWhere(cond), nil
}

// translateExtend is SPARQL BIND: the nested pattern's projection is first
// widened with every variable the expression references so it produces the
// mappings BIND's expression needs, then the new mapping is added (§4.6 Extend).
func (t *Translator) translateExtend(n vgsql.Extend, projectedVars []string, cc string) (vgsql.SQLFragment, error) {
	widened := mergeVars(projectedVars, referencedVars(n.Expr))
	inner, err := t.TranslatePattern(n.P, widened, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	exprSQL, err := t.TranslateExpr(inner.Mappings, n.Expr)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	return inner.WithMapping(vgsql.VarMapping{Var: n.Var, SQL: exprSQL}), nil
}

// referencedVars walks an expression tree collecting every VarRef it mentions.
// For a builtin call only its Args are walked; the SubPattern of an EXISTS{}
// or NOT EXISTS{} is not searched.
func referencedVars(e vgsql.Expression) []string {
	var out []string
	var walk func(vgsql.Expression)
	walk = func(e vgsql.Expression) {
		switch x := e.(type) {
		case vgsql.VarRef:
			out = append(out, x.Name)
		case vgsql.Relational:
			walk(x.Lhs)
			if x.Rhs != nil {
				walk(x.Rhs)
			}
			for _, r := range x.RhsList {
				walk(r)
			}
		case vgsql.Logical:
			walk(x.Lhs)
			if x.Rhs != nil {
				walk(x.Rhs)
			}
		case vgsql.Arithmetic:
			walk(x.Lhs)
			if x.Rhs != nil {
				walk(x.Rhs)
			}
		case vgsql.BuiltinCall:
			for _, a := range x.Args {
				walk(a)
			}
		case vgsql.AggregateExpr:
			if x.Arg != nil {
				walk(x.Arg)
			}
		}
	}
	walk(e)
	return out
}

// translateValues compiles an inline VALUES block to a derived table of
// UNION ALL'd literal rows (§4.6 Values). Every value is quoted as a string
// literal uniformly, including UNDEF which becomes SQL NULL.
func (t *Translator) translateValues(n vgsql.Values) (vgsql.SQLFragment, error) {
	alias := t.Ctx.Aliases.NextValuesAlias()
	cols := make([]string, len(n.Vars))
	for i, v := range n.Vars {
		cols[i] = fmt.Sprintf("%s_col", sanitizeColumnName(v))
	}

	rows := make([]string, 0, len(n.Rows))
	for _, row := range n.Rows {
		parts := make([]string, len(n.Vars))
		for i := range n.Vars {
			if i >= len(row) {
				parts[i] = fmt.Sprintf("NULL AS %s", cols[i])
				continue
			}
			term := row[i]
			if term.IsVariable() {
				// variable Term: UNDEF
				parts[i] = fmt.Sprintf("NULL AS %s", cols[i])
				continue
			}
			lit, err := vgsql.ToSQLLiteral(term)
			if err != nil {
				return vgsql.SQLFragment{}, err
			}
			parts[i] = fmt.Sprintf("%s AS %s", lit, cols[i])
		}
		rows = append(rows, "SELECT "+strings.Join(parts, ", "))
	}
	if len(rows) == 0 {
		parts := make([]string, len(n.Vars))
		for i := range n.Vars {
			parts[i] = fmt.Sprintf("NULL AS %s", cols[i])
		}
		rows = append(rows, "SELECT "+strings.Join(parts, ", ")+" WHERE FALSE")
	}

	mappings := make([]vgsql.VarMapping, len(n.Vars))
	for i, v := range n.Vars {
		mappings[i] = vgsql.VarMapping{Var: v, SQL: fmt.Sprintf("%s.%s", alias, cols[i])}
	}

	return vgsql.SQLFragment{
		From:     fmt.Sprintf("FROM (%s) %s", strings.Join(rows, " UNION ALL "), alias),
		Mappings: mappings,
	}, nil
}

func sanitizeColumnName(v string) string {
	return strings.ReplaceAll(v, "-", "_")
}

// translateGraph implements §4.6 Graph: a bound IRI resolves to a context
// constraint (or a poison one when the named graph is unknown); a graph
// variable instead recurses unconstrained and, if projected, gains a term
// join exposing the context's text.
func (t *Translator) translateGraph(n vgsql.Graph, projectedVars []string) (vgsql.SQLFragment, error) {
	if n.Term.IsVariable() {
		inner, err := t.TranslatePattern(n.P, projectedVars, "")
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		gvar := n.Term.VariableName()
		if !isProjected(gvar, projectedVars) {
			return inner, nil
		}
		firstAlias := firstQuadAlias(inner.From)
		if firstAlias == "" {
			return inner, nil
		}
		termAlias := t.Ctx.Aliases.NextTermAlias("context")
		termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
		join := fmt.Sprintf("JOIN %s %s ON %s.term_uuid = %s.context_uuid", termTable, termAlias, termAlias, firstAlias)
		out := inner.WithJoin(join)
		out = out.WithMapping(vgsql.VarMapping{
			Var:           gvar,
			SQL:           fmt.Sprintf("%s.term_text", termAlias),
			TermTypeCol:   fmt.Sprintf("%s.term_type", termAlias),
			LangCol:       fmt.Sprintf("%s.term_lang", termAlias),
			DatatypeIDCol: fmt.Sprintf("%s.term_datatype_id", termAlias),
		})
		return out, nil
	}

	text, kind, err := vgsql.TermInfo(n.Term)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	hits, err := t.Ctx.Resolver.ResolveTerms([]vgsql.Key{{Text: text, Kind: kind}})
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	uuid, ok := hits[vgsql.Key{Text: text, Kind: kind}]
	if !ok {
		return t.TranslatePattern(n.P, projectedVars, graphConstraint(poisonGraphUUID))
	}
	return t.TranslatePattern(n.P, projectedVars, graphConstraint(uuid.String()))
}

func isProjected(v string, projectedVars []string) bool {
	if len(projectedVars) == 0 {
		return true
	}
	for _, p := range projectedVars {
		if p == v {
			return true
		}
	}
	return false
}

// firstQuadAlias extracts the alias of a "FROM <table> <alias>" fragment; it
// returns "" when From is a derived table (SubSelect/Union/Values), in which
// case GRAPH ?g has no single quad alias to key its term join on and is left
// unmapped for that branch.
func firstQuadAlias(from string) string {
	fields := strings.Fields(strings.TrimPrefix(from, "FROM "))
	if len(fields) < 2 {
		return ""
	}
	if strings.HasPrefix(fields[0], "(") {
		return ""
	}
	return fields[1]
}

// translateGroup stores the grouping variables on the nested AggregateJoin's
// fragment and ensures they are present as mappings (§4.6 Group).
func (t *Translator) translateGroup(n vgsql.Group, cc string) (vgsql.SQLFragment, error) {
	inner, err := t.TranslatePattern(n.P, nil, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	groupSQL := make([]string, 0, len(n.GroupVars))
	for _, v := range n.GroupVars {
		if m, ok := inner.Lookup(v); ok {
			groupSQL = append(groupSQL, m.SQL)
		}
	}
	return inner.WithGroupBy(groupSQL), nil
}

// translateAggregateJoin synthesizes one SQL aggregate expression per
// Aggregate, storing each under its synthetic result variable (§4.6
// Group/AggregateJoin).
func (t *Translator) translateAggregateJoin(n vgsql.AggregateJoin, projectedVars []string, cc string) (vgsql.SQLFragment, error) {
	widened := append([]string(nil), projectedVars...)
	for _, agg := range n.Aggregates {
		if agg.Arg != nil {
			widened = mergeVars(widened, referencedVars(agg.Arg))
		}
	}
	inner, err := t.TranslatePattern(n.P, widened, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	out := inner
	for _, agg := range n.Aggregates {
		sqlText, err := buildAggregateSQL(t, inner.Mappings, agg.Func, agg.Arg, agg.Distinct)
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		out = out.WithMapping(vgsql.VarMapping{Var: agg.ResultVar, SQL: sqlText, IsAggregate: true})
	}
	return out, nil
}

// translateSubSelect assembles the nested query to a full SELECT and exposes
// it as a derived table (§4.6 SubSelect).
func (t *Translator) translateSubSelect(n vgsql.SubSelect) (vgsql.SQLFragment, error) {
	inner, err := t.TranslatePattern(n.Query, nil, "")
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	alias := t.Ctx.Aliases.NextSubqueryAlias()
	vars := make([]string, 0, len(inner.Mappings))
	for _, m := range inner.Mappings {
		vars = append(vars, m.Var)
	}
	sort.Strings(vars)
	selectList := make([]string, 0, len(vars))
	for _, v := range vars {
		m, _ := inner.Lookup(v)
		selectList = append(selectList, fmt.Sprintf("%s AS %s", m.SQL, v))
	}
	body := "SELECT " + strings.Join(selectList, ", ") + " " + inner.From + " " + strings.Join(inner.Joins, " ")
	if len(inner.Where) > 0 {
		body += " WHERE " + strings.Join(inner.Where, " AND ")
	}
	if len(inner.GroupBy) > 0 {
		body += " GROUP BY " + strings.Join(inner.GroupBy, ", ")
	}
	if len(inner.Having) > 0 {
		body += " HAVING " + strings.Join(inner.Having, " AND ")
	}
	mappings := make([]vgsql.VarMapping, len(vars))
	for i, v := range vars {
		mappings[i] = vgsql.VarMapping{Var: v, SQL: fmt.Sprintf("%s.%s", alias, v)}
	}
	return vgsql.SQLFragment{
		From:     fmt.Sprintf("FROM (%s) %s", body, alias),
		Mappings: mappings,
	}, nil
}
