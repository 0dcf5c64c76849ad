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

	"github.com/mitchellh/hashstructure"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// RunGlobalOptimizer is C11's optional pre-pass (§4.11): a single
// breadth-first walk of the algebra that assigns each variable a canonical
// quad alias on first sight, reused for every later occurrence. The result is
// injected into SparqlContext.AliasPlan, which BGP planning consults before
// minting a fresh alias (pattern_bgp.go's planQuadAlias). This is what
// collapses otherwise-redundant self-joins in large, highly-connected BGPs.
func (t *Translator) RunGlobalOptimizer(root vgsql.Algebra) vgsql.VariableAliasPlan {
	vars := bfsVariableOrder(root)
	plan := vgsql.VariableAliasPlan{}

	if !t.Ctx.Config.AggressiveAliasPacking || len(vars) <= t.Ctx.Config.AliasPackingThreshold {
		for _, v := range vars {
			plan[v] = t.Ctx.Aliases.NextQuadAlias()
		}
		return plan
	}

	// Packing: once the connected variable set grows past the configured
	// threshold, cap the number of distinct quad aliases at AliasPackingWidth
	// and assign variables to them round-robin. Correctness survives because
	// the BGP translator still emits an explicit equality condition for every
	// shared variable regardless of which alias backs it (§4.6 step 4); this
	// only trades self-join count for WHERE-clause equalities.
	width := t.Ctx.Config.AliasPackingWidth
	if width <= 0 {
		width = 8
	}
	pool := make([]string, width)
	for i := range pool {
		pool[i] = t.Ctx.Aliases.NextQuadAlias()
	}
	for i, v := range vars {
		plan[v] = pool[i%width]
	}
	return plan
}

// bfsVariableOrder performs the breadth-first traversal §4.11 specifies,
// collecting each variable's name the first time it is encountered. Repeated
// BGP subtrees (identical triple lists reached by different branches, e.g.
// two sides of a UNION sharing a sub-pattern) are recognized via a
// structural hash so their variables are not double-counted against the
// packing threshold.
func bfsVariableOrder(root vgsql.Algebra) []string {
	var order []string
	seenVar := map[string]bool{}
	seenBGPHash := map[uint64]bool{}

	queue := []vgsql.Algebra{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		switch x := n.(type) {
		case vgsql.BGP:
			// Term's fields are unexported, which hashstructure skips, so the
			// triples are hashed through their %#v rendering instead.
			if h, err := hashstructure.Hash(fmt.Sprintf("%#v", x.Triples), nil); err == nil {
				if seenBGPHash[h] {
					continue
				}
				seenBGPHash[h] = true
			}
			for _, tp := range x.Triples {
				addVar(&order, seenVar, tp.Subject)
				addVar(&order, seenVar, tp.Predicate)
				addVar(&order, seenVar, tp.Object)
			}
		case vgsql.PropertyPathPattern:
			addVar(&order, seenVar, x.Subject)
			addVar(&order, seenVar, x.Object)
		case vgsql.Join:
			queue = append(queue, x.L, x.R)
		case vgsql.Union:
			queue = append(queue, x.L, x.R)
		case vgsql.LeftJoin:
			queue = append(queue, x.L, x.R)
		case vgsql.Minus:
			queue = append(queue, x.L, x.R)
		case vgsql.Filter:
			queue = append(queue, x.P)
		case vgsql.Extend:
			queue = append(queue, x.P)
		case vgsql.Graph:
			queue = append(queue, x.P)
		case vgsql.Slice:
			queue = append(queue, x.P)
		case vgsql.OrderBy:
			queue = append(queue, x.P)
		case vgsql.Project:
			queue = append(queue, x.P)
		case vgsql.Distinct:
			queue = append(queue, x.P)
		case vgsql.Group:
			queue = append(queue, x.P)
		case vgsql.AggregateJoin:
			queue = append(queue, x.P)
		case vgsql.SubSelect:
			queue = append(queue, x.Query)
		}
	}
	return order
}

func addVar(order *[]string, seen map[string]bool, term vgsql.Term) {
	if !term.IsVariable() {
		return
	}
	name := term.VariableName()
	if seen[name] {
		return
	}
	seen[name] = true
	*order = append(*order, name)
}
