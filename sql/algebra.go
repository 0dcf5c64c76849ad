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

// Algebra is the closed sum type mirroring SPARQL algebra (§3). A §9 redesign
// flag replaces dynamic dispatch on node-name strings with an exhaustive type
// switch over these concrete node types — see internal/compiler's translators.
type Algebra interface {
	isAlgebra()
}

// TriplePattern is one triple of a BGP; any of S/P/O may be a Term with
// IsVariable() true.
type TriplePattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// BGP is a Basic Graph Pattern: triple patterns matched conjunctively.
type BGP struct {
	Triples []TriplePattern
}

func (BGP) isAlgebra() {}

// Join is the conjunction of two patterns.
type Join struct {
	L, R Algebra
}

func (Join) isAlgebra() {}

// Union is the disjunction of two patterns.
type Union struct {
	L, R Algebra
}

func (Union) isAlgebra() {}

// LeftJoin is SPARQL OPTIONAL: every row of L appears, extended by R when it
// matches and joined on an optional filter condition.
type LeftJoin struct {
	L, R Algebra
	Cond Expression // optional; nil means no extra filter beyond the join
}

func (LeftJoin) isAlgebra() {}

// Minus is SPARQL MINUS: rows of L excluded when R has any compatible match.
type Minus struct {
	L, R Algebra
}

func (Minus) isAlgebra() {}

// Filter restricts P to rows where Expr is true.
type Filter struct {
	Expr Expression
	P    Algebra
}

func (Filter) isAlgebra() {}

// Extend is SPARQL BIND: binds the result of Expr to Var for each row of P.
type Extend struct {
	Var  string
	Expr Expression
	P    Algebra
}

func (Extend) isAlgebra() {}

// Values is an inline VALUES block: Vars names each column, Rows holds one
// Term per column per row (a variable Term, or a row too short to reach the
// column, marks UNDEF/unbound).
type Values struct {
	Vars []string
	Rows [][]Term
}

func (Values) isAlgebra() {}

// Graph restricts P to a named graph; Term is either a bound IRI or a Variable.
type Graph struct {
	Term Term
	P    Algebra
}

func (Graph) isAlgebra() {}

// Slice applies OFFSET/LIMIT to P.
type Slice struct {
	Offset *int64
	Limit  *int64
	P      Algebra
}

func (Slice) isAlgebra() {}

// OrderCondition is one ORDER BY key.
type OrderCondition struct {
	Expr       Expression
	Descending bool
}

// OrderBy sorts P's rows.
type OrderBy struct {
	Conditions []OrderCondition
	P          Algebra
}

func (OrderBy) isAlgebra() {}

// Project restricts P's output to the named variables, in order.
type Project struct {
	Vars []string
	P    Algebra
}

func (Project) isAlgebra() {}

// Distinct deduplicates P's rows.
type Distinct struct {
	P Algebra
}

func (Distinct) isAlgebra() {}

// Group applies GROUP BY GroupVars to P; it always wraps an AggregateJoin.
type Group struct {
	GroupVars []string
	P         Algebra
}

func (Group) isAlgebra() {}

// Aggregate is one aggregate computation within an AggregateJoin.
type Aggregate struct {
	ResultVar string // synthetic name, conventionally __agg_N__
	Func      AggregateFunc
	Arg       Expression // nil for COUNT(*)
	Distinct  bool
}

// AggregateFunc enumerates supported SPARQL aggregate functions.
type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggSample
	AggGroupConcat
)

// AggregateJoin computes Aggregates over P.
type AggregateJoin struct {
	Aggregates []Aggregate
	P          Algebra
}

func (AggregateJoin) isAlgebra() {}

// SubSelect embeds a nested query algebra, to be assembled as a derived table.
type SubSelect struct {
	Query Algebra
}

func (SubSelect) isAlgebra() {}

// PropertyPathPattern is a single property-path triple pattern.
type PropertyPathPattern struct {
	Subject Term
	Path    Path
	Object  Term
}

func (PropertyPathPattern) isAlgebra() {}
