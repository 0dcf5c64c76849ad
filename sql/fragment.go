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

package sql

// VarMapping associates a SPARQL variable with the SQL scalar expression that
// produces its value. Order is preserved so downstream stages can emit columns
// deterministically.
type VarMapping struct {
	Var string
	SQL string
	// IsAggregate marks a mapping whose SQL is a full aggregate expression
	// (stored under a synthetic __agg_N__ name); C5 returns it verbatim with
	// no further wrapping when referenced.
	IsAggregate bool
	// TermTypeCol, LangCol, and DatatypeIDCol are the companion columns
	// exposed alongside SQL when the variable is bound to a term-table join
	// (set by BGP translation, §4.6 step 3). They are empty for variables
	// bound by BIND/VALUES/aggregates, in which case builtins that need them
	// (isURI, LANG, DATATYPE, ...) fall back to inline inference.
	TermTypeCol  string
	LangCol      string
	DatatypeIDCol string
}

// SQLFragment is the in-memory representation of a partial translated query
// (C4). Per §9's redesign flag, GroupBy/Having are explicit fields rather than
// magic pseudo-keys (__GROUP_BY_VARS__/__HAVING_CONDITIONS__) smuggled into the
// variable mapping list.
type SQLFragment struct {
	// From starts with "FROM" or is empty; may be a derived-table expression
	// "FROM (...) alias".
	From string
	// Where is an ordered list of boolean SQL expressions, ANDed at emission.
	Where []string
	// Joins is an ordered list of already-formatted JOIN clauses.
	Joins []string
	// Mappings is the ordered variable -> SQL-expression map.
	Mappings []VarMapping
	// OrderBy is an optional ORDER BY clause string (without the keywords).
	OrderBy string
	// GroupBy holds the variables a Group node grouped by.
	GroupBy []string
	// Having holds HAVING-clause conditions (filters over aggregate results).
	Having []string
	// CrossJoins counts CROSS JOINs emitted into this fragment; used by C8 to
	// decide when CONSTRUCT needs an implicit DISTINCT.
	CrossJoins int
	// FromIsUnion marks a fragment whose From is a UNION-derived table. The
	// assembler (C8) and BGP context-constraint push-down (C6) both skip
	// wrapping such a fragment in an outer WHERE/context predicate; everything
	// must already live inside the branches (§4.6, §4.8).
	FromIsUnion bool
}

// Empty returns the zero fragment.
func Empty() SQLFragment { return SQLFragment{} }

// Of builds a fragment from its parts. Callers should treat the result as
// immutable; translators never mutate a fragment once another node has read it.
func Of(from string, where, joins []string, mappings []VarMapping, orderBy string) SQLFragment {
	return SQLFragment{From: from, Where: where, Joins: joins, Mappings: mappings, OrderBy: orderBy}
}

// Lookup returns the mapping for v, if any.
func (f SQLFragment) Lookup(v string) (VarMapping, bool) {
	for _, m := range f.Mappings {
		if m.Var == v {
			return m, true
		}
	}
	return VarMapping{}, false
}

// WithMapping returns a copy of f with m appended or replacing an existing
// mapping for the same variable (Extend semantics: a variable may be rebound).
func (f SQLFragment) WithMapping(m VarMapping) SQLFragment {
	out := f.clone()
	for i, existing := range out.Mappings {
		if existing.Var == m.Var {
			out.Mappings[i] = m
			return out
		}
	}
	out.Mappings = append(out.Mappings, m)
	return out
}

// WithWhere returns a copy of f with cond appended to Where.
func (f SQLFragment) WithWhere(cond string) SQLFragment {
	out := f.clone()
	out.Where = append(out.Where, cond)
	return out
}

// WithHaving returns a copy of f with cond appended to Having.
func (f SQLFragment) WithHaving(cond string) SQLFragment {
	out := f.clone()
	out.Having = append(out.Having, cond)
	return out
}

// WithJoin returns a copy of f with a formatted JOIN clause appended.
func (f SQLFragment) WithJoin(join string) SQLFragment {
	out := f.clone()
	out.Joins = append(out.Joins, join)
	return out
}

// WithGroupBy returns a copy of f with its GroupBy SQL expressions set.
func (f SQLFragment) WithGroupBy(groupBy []string) SQLFragment {
	out := f.clone()
	out.GroupBy = append([]string(nil), groupBy...)
	return out
}

func (f SQLFragment) clone() SQLFragment {
	out := f
	out.Where = append([]string(nil), f.Where...)
	out.Joins = append([]string(nil), f.Joins...)
	out.Mappings = append([]VarMapping(nil), f.Mappings...)
	out.GroupBy = append([]string(nil), f.GroupBy...)
	out.Having = append([]string(nil), f.Having...)
	return out
}

// Optimize deduplicates Where and Joins while preserving first-seen order.
func Optimize(f SQLFragment) SQLFragment {
	out := f.clone()
	out.Where = dedup(out.Where)
	out.Joins = dedup(out.Joins)
	return out
}

func dedup(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		result = append(result, it)
	}
	return result
}

// IsUnionDerived reports whether From wraps a UNION-derived table, per the §4.6/
// §4.8 rule that context constraints and outer WHERE clauses must never wrap a
// UNION — everything has to be pushed into its branches instead.
func (f SQLFragment) IsUnionDerived() bool {
	return f.FromIsUnion
}
