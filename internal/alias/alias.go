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

// Package alias implements the SQL identifier generator (C2): one counter per
// alias category, plus an optional string prefix so independent subtrees
// never collide.
package alias

import "fmt"

// Generator mints unique, stable SQL identifiers across the lifetime of one
// request. It is not safe for concurrent use — translation is single-threaded
// per §5.
type Generator struct {
	prefix string
	quad   int
	term   int
	sub    int
	union  int
	values int
}

// New returns a root generator with no prefix.
func New() *Generator {
	return &Generator{}
}

// Child returns a new generator that prefixes every identifier it mints with
// prefix, guaranteeing it can never collide with aliases from g or from any
// other child built with a different prefix.
func (g *Generator) Child(prefix string) *Generator {
	return &Generator{prefix: g.prefix + prefix}
}

// NextQuadAlias mints the next quad-table alias, e.g. "q0", "Lq1".
func (g *Generator) NextQuadAlias() string {
	a := fmt.Sprintf("%sq%d", g.prefix, g.quad)
	g.quad++
	return a
}

// NextTermAlias mints the next term-table alias for the given quad position
// or column (e.g. "subject", "object_uuid", or "context" for a GRAPH variable).
func (g *Generator) NextTermAlias(position string) string {
	a := fmt.Sprintf("%st_%s_%d", g.prefix, position, g.term)
	g.term++
	return a
}

// NextSubqueryAlias mints the next derived-table alias for a nested SELECT.
func (g *Generator) NextSubqueryAlias() string {
	a := fmt.Sprintf("%ssub_%d", g.prefix, g.sub)
	g.sub++
	return a
}

// NextUnionAlias mints the next UNION-derived-table alias.
func (g *Generator) NextUnionAlias() string {
	a := fmt.Sprintf("%sunion_%d", g.prefix, g.union)
	g.union++
	return a
}

// NextValuesAlias mints the next VALUES-derived-table alias.
func (g *Generator) NextValuesAlias() string {
	a := fmt.Sprintf("%svalues_%d", g.prefix, g.values)
	g.values++
	return a
}
