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

// Package compiler implements C5 through C9 and C11: the expression
// translator, the pattern translator, the property path compiler, the query
// assembler, the update translator, and the optional global optimizer.
package compiler

import (
	"fmt"
	"strings"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// Translator holds one request's SparqlContext and exposes the translation
// entry points used by the orchestrator (C10).
type Translator struct {
	Ctx *vgsql.SparqlContext
}

// New builds a Translator bound to ctx.
func New(ctx *vgsql.SparqlContext) *Translator {
	return &Translator{Ctx: ctx}
}

// mappingUUIDExpr returns a SQL expression producing the term uuid behind a
// variable mapping: a term-table-backed mapping reads term_uuid off its
// existing join; anything else (BIND/VALUES text) goes back through a term
// lookup.
func mappingUUIDExpr(m vgsql.VarMapping, termTable string) string {
	if m.TermTypeCol != "" {
		return strings.TrimSuffix(m.TermTypeCol, ".term_type") + ".term_uuid"
	}
	return fmt.Sprintf("(SELECT term_uuid FROM %s WHERE term_text = %s)", termTable, m.SQL)
}

func lookupMapping(mappings []vgsql.VarMapping, name string) (vgsql.VarMapping, bool) {
	for _, m := range mappings {
		if m.Var == name {
			return m, true
		}
	}
	return vgsql.VarMapping{}, false
}

// sharedVariables returns the set of variable names present in both mapping lists.
func sharedVariables(a, b []vgsql.VarMapping) []string {
	inA := make(map[string]bool, len(a))
	for _, m := range a {
		inA[m.Var] = true
	}
	var shared []string
	seen := make(map[string]bool)
	for _, m := range b {
		if inA[m.Var] && !seen[m.Var] {
			shared = append(shared, m.Var)
			seen[m.Var] = true
		}
	}
	return shared
}

func allVariables(a, b []vgsql.VarMapping) []string {
	seen := make(map[string]bool)
	var all []string
	for _, m := range a {
		if !seen[m.Var] {
			seen[m.Var] = true
			all = append(all, m.Var)
		}
	}
	for _, m := range b {
		if !seen[m.Var] {
			seen[m.Var] = true
			all = append(all, m.Var)
		}
	}
	return all
}
