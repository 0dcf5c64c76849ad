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
	"sort"
	"strings"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// translateJoin implements §4.6 Join: translate both sides independently
// (they mint aliases from the same generator so there is never a collision
// in the common case), combine their FROM clauses with a CROSS JOIN, and
// equate every shared variable's term columns.
func (t *Translator) translateJoin(n vgsql.Join, projectedVars []string, cc string) (vgsql.SQLFragment, error) {
	left, err := t.TranslatePattern(n.L, nil, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	right, err := t.TranslatePattern(n.R, nil, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	return combineJoin(left, right), nil
}

// combineJoin merges two independently-translated fragments with a CROSS
// JOIN plus equality conditions on every shared variable, renaming any
// colliding quad alias on the right side first.
func combineJoin(left, right vgsql.SQLFragment) vgsql.SQLFragment {
	right = renameCollisions(left, right)

	rightFrom := strings.TrimPrefix(right.From, "FROM ")
	from := left.From
	joins := append([]string(nil), left.Joins...)
	addedCross := 0
	if rightFrom != "" {
		joins = append(joins, "CROSS JOIN "+rightFrom)
		addedCross = 1
	}
	joins = append(joins, right.Joins...)

	where := append([]string(nil), left.Where...)
	where = append(where, right.Where...)

	mappings := append([]vgsql.VarMapping(nil), left.Mappings...)
	shared := sharedVariables(left.Mappings, right.Mappings)
	for _, v := range shared {
		lm, _ := lookupMapping(left.Mappings, v)
		rm, _ := lookupMapping(right.Mappings, v)
		where = append(where, fmt.Sprintf("%s = %s", lm.SQL, rm.SQL))
	}
	for _, m := range right.Mappings {
		if _, ok := lookupMapping(left.Mappings, m.Var); ok {
			continue
		}
		mappings = append(mappings, m)
	}

	return vgsql.SQLFragment{
		From:       from,
		Joins:      joins,
		Where:      where,
		Mappings:   mappings,
		CrossJoins: left.CrossJoins + right.CrossJoins + addedCross,
	}
}

// renameCollisions detects quad/term aliases that both sides happen to share
// (possible when the optimizer's global plan assigns the same alias to a
// variable present on both sides is intentional and left alone; an accidental
// collision from independent counters is not) and renames the offending
// right-side alias throughout its own From/Joins/Where/Mappings.
func renameCollisions(left, right vgsql.SQLFragment) vgsql.SQLFragment {
	leftAliases := collectAliases(left)
	rightAliases := collectAliases(right)

	renames := map[string]string{}
	for a := range rightAliases {
		if leftAliases[a] && !sharesVariable(left, right, a) {
			renames[a] = a + "_r"
		}
	}
	if len(renames) == 0 {
		return right
	}
	return applyRenames(right, renames)
}

// collectAliases gathers every alias token appearing in f's From/Joins.
func collectAliases(f vgsql.SQLFragment) map[string]bool {
	out := map[string]bool{}
	for _, part := range append([]string{f.From}, f.Joins...) {
		fields := strings.Fields(part)
		for i := 0; i < len(fields)-1; i++ {
			if fields[i] == "FROM" || fields[i] == "JOIN" {
				// table name is fields[i+1], alias is fields[i+2] when present
				if i+2 < len(fields) {
					out[fields[i+2]] = true
				}
			}
		}
	}
	return out
}

// sharesVariable reports whether the colliding alias a backs a mapping that
// is, in fact, the same shared variable on both sides (the optimizer's
// intentional alias reuse), in which case it must NOT be renamed.
func sharesVariable(left, right vgsql.SQLFragment, a string) bool {
	for _, v := range sharedVariables(left.Mappings, right.Mappings) {
		lm, _ := lookupMapping(left.Mappings, v)
		rm, _ := lookupMapping(right.Mappings, v)
		if strings.HasPrefix(lm.SQL, a+".") && strings.HasPrefix(rm.SQL, a+".") {
			return true
		}
	}
	return false
}

// applyRenames rewrites each colliding alias only where it occupies a true
// alias position: as a column qualifier ("q3.") or as the declared alias
// following a table name or a derived-table close paren in a FROM/JOIN
// clause. Tokens that merely share the name (column names, table names,
// string literals) are left alone.
func applyRenames(f vgsql.SQLFragment, renames map[string]string) vgsql.SQLFragment {
	rename := func(s string) string {
		for old, nw := range renames {
			s = renameAlias(s, old, nw)
		}
		return s
	}
	out := f
	out.From = rename(f.From)
	out.Joins = make([]string, len(f.Joins))
	for i, j := range f.Joins {
		out.Joins[i] = rename(j)
	}
	out.Where = make([]string, len(f.Where))
	for i, w := range f.Where {
		out.Where[i] = rename(w)
	}
	out.Mappings = make([]vgsql.VarMapping, len(f.Mappings))
	for i, m := range f.Mappings {
		m.SQL = rename(m.SQL)
		m.TermTypeCol = rename(m.TermTypeCol)
		m.LangCol = rename(m.LangCol)
		m.DatatypeIDCol = rename(m.DatatypeIDCol)
		out.Mappings[i] = m
	}
	return out
}

func renameAlias(s, old, nw string) string {
	quoted := regexp.QuoteMeta(old)
	s = regexp.MustCompile(`\b`+quoted+`\.`).ReplaceAllString(s, nw+".")
	s = regexp.MustCompile(`(FROM\s+\S+|JOIN\s+\S+|\))\s+`+quoted+`\b`).ReplaceAllString(s, "$1 "+nw)
	return s
}

// translateUnion implements §4.6 Union: both sides are assembled as
// standalone SELECTs over a consistent, sorted column list and concatenated
// with UNION, wrapped as a derived table. A side whose own From is already a
// UNION-derived table is re-wrapped rather than double-nested.
func (t *Translator) translateUnion(n vgsql.Union, projectedVars []string, cc string) (vgsql.SQLFragment, error) {
	left, err := t.TranslatePattern(n.L, projectedVars, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	right, err := t.TranslatePattern(n.R, projectedVars, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}

	allVars := allVariables(left.Mappings, right.Mappings)
	sort.Strings(allVars)

	leftSelect := unionBranchSelect(left, allVars)
	rightSelect := unionBranchSelect(right, allVars)

	alias := t.Ctx.Aliases.NextUnionAlias()
	body := fmt.Sprintf("%s UNION %s", leftSelect, rightSelect)
	mappings := make([]vgsql.VarMapping, len(allVars))
	for i, v := range allVars {
		mappings[i] = vgsql.VarMapping{Var: v, SQL: fmt.Sprintf("%s.var_%d", alias, i)}
	}

	return vgsql.SQLFragment{
		From:        fmt.Sprintf("FROM (%s) %s", body, alias),
		Mappings:    mappings,
		FromIsUnion: true,
	}, nil
}

// unionBranchSelect builds one branch's standalone SELECT, using NULL AS
// var_i for any column the branch doesn't bind, per §4.6 Union.
func unionBranchSelect(f vgsql.SQLFragment, allVars []string) string {
	cols := make([]string, len(allVars))
	for i, v := range allVars {
		if m, ok := f.Lookup(v); ok {
			cols[i] = fmt.Sprintf("%s AS var_%d", m.SQL, i)
		} else {
			cols[i] = fmt.Sprintf("NULL AS var_%d", i)
		}
	}
	from := f.From
	if from == "" {
		from = "FROM (SELECT 1) __empty__"
	}
	body := "SELECT " + strings.Join(cols, ", ") + " " + from
	if len(f.Joins) > 0 {
		body += " " + strings.Join(f.Joins, " ")
	}
	if len(f.Where) > 0 {
		body += " WHERE " + strings.Join(f.Where, " AND ")
	}
	return body
}

// translateLeftJoin implements §4.6 LeftJoin (OPTIONAL): start from the
// required fragment, convert every optional-side JOIN to LEFT JOIN, and
// attach any optional-side alias that isn't already declared as a LEFT JOIN
// against the quad table, connected to an already-declared alias. Optional
// WHERE conditions stay in WHERE so trailing NULLs survive.
func (t *Translator) translateLeftJoin(n vgsql.LeftJoin, projectedVars []string, cc string) (vgsql.SQLFragment, error) {
	req, err := t.TranslatePattern(n.L, nil, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	opt, err := t.TranslatePattern(n.R, nil, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	opt = renameCollisions(req, opt)

	declared := collectAliases(req)
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)

	joins := append([]string(nil), req.Joins...)

	optFrom := strings.TrimPrefix(opt.From, "FROM ")
	if optFrom != "" {
		if alias := firstQuadAlias(opt.From); alias != "" && !declared[alias] {
			anchor := firstQuadAlias(req.From)
			if anchor != "" {
				joins = append(joins, fmt.Sprintf("LEFT JOIN %s %s ON %s.subject_uuid = %s.subject_uuid", quadTable, alias, alias, anchor))
			} else {
				joins = append(joins, "LEFT JOIN "+optFrom+" ON TRUE")
			}
			declared[alias] = true
		} else {
			joins = append(joins, "LEFT JOIN "+optFrom+" ON TRUE")
		}
	}
	for _, j := range opt.Joins {
		joins = append(joins, toLeftJoin(j))
	}

	shared := sharedVariables(req.Mappings, opt.Mappings)

	where := append([]string(nil), req.Where...)
	where = append(where, opt.Where...)
	for _, v := range shared {
		rm, _ := lookupMapping(req.Mappings, v)
		om, _ := lookupMapping(opt.Mappings, v)
		where = append(where, fmt.Sprintf("(%s IS NULL OR %s = %s)", om.SQL, om.SQL, rm.SQL))
	}

	mappings := append([]vgsql.VarMapping(nil), req.Mappings...)
	for _, m := range opt.Mappings {
		if _, ok := lookupMapping(req.Mappings, m.Var); ok {
			continue
		}
		mappings = append(mappings, m)
	}

	return vgsql.SQLFragment{
		From:     req.From,
		Joins:    joins,
		Where:    where,
		Mappings: mappings,
	}, nil
}

func toLeftJoin(join string) string {
	if strings.HasPrefix(join, "JOIN ") {
		return "LEFT " + join
	}
	if strings.HasPrefix(join, "CROSS JOIN ") {
		return "LEFT JOIN " + strings.TrimPrefix(join, "CROSS JOIN ") + " ON TRUE"
	}
	return join
}

// translateMinus implements §4.6 Minus: the positive fragment gains a
// NOT EXISTS subquery built from the negative fragment, correlated on shared
// variables; with no shared variables the subquery is uncorrelated.
func (t *Translator) translateMinus(n vgsql.Minus, projectedVars []string, cc string) (vgsql.SQLFragment, error) {
	pos, err := t.TranslatePattern(n.L, projectedVars, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	neg, err := t.TranslatePattern(n.R, nil, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}

	shared := sharedVariables(pos.Mappings, neg.Mappings)
	conds := append([]string(nil), neg.Where...)
	for _, v := range shared {
		pm, _ := lookupMapping(pos.Mappings, v)
		nm, _ := lookupMapping(neg.Mappings, v)
		conds = append(conds, fmt.Sprintf("%s = %s", nm.SQL, pm.SQL))
	}

	body := "SELECT 1 " + neg.From
	if len(neg.Joins) > 0 {
		body += " " + strings.Join(neg.Joins, " ")
	}
	if len(conds) > 0 {
		body += " WHERE " + strings.Join(conds, " AND ")
	}

	return pos.WithWhere(fmt.Sprintf("NOT EXISTS (%s)", body)), nil
}
