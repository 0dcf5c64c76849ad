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

// quadBinding records where a variable was first bound within a BGP: the
// quad alias and the column ("subject_uuid", "predicate_uuid", "object_uuid").
type quadBinding struct {
	alias string
	col   string
}

func positionColumn(pos string) string {
	switch pos {
	case "subject":
		return "subject_uuid"
	case "predicate":
		return "predicate_uuid"
	case "object":
		return "object_uuid"
	default:
		return pos + "_uuid"
	}
}

// translateBGP implements §4.6 BGP: batch-resolve bound terms, plan one quad
// alias per triple (reusing the optimizer's global plan when present), join
// adjacent triples on shared variables, and expose every in-scope variable
// through a term-table join.
func (t *Translator) translateBGP(n vgsql.BGP, projectedVars []string, contextConstraint string) (vgsql.SQLFragment, error) {
	if len(n.Triples) == 0 {
		return vgsql.SQLFragment{}, nil
	}

	keys := make([]vgsql.Key, 0, len(n.Triples)*3)
	for _, tp := range n.Triples {
		for _, term := range [3]vgsql.Term{tp.Subject, tp.Predicate, tp.Object} {
			if term.IsVariable() {
				continue
			}
			text, kind, err := vgsql.TermInfo(term)
			if err != nil {
				return vgsql.SQLFragment{}, err
			}
			keys = append(keys, vgsql.Key{Text: text, Kind: kind})
		}
	}
	var resolved map[vgsql.Key]vgsql.TermUUID
	if len(keys) > 0 {
		var err error
		resolved, err = t.Ctx.Resolver.ResolveTerms(keys)
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
	}

	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)

	var from string
	var joins []string
	var where []string
	crossJoins := 0
	bindings := make(map[string]quadBinding)
	aliases := make([]string, len(n.Triples))

	for i, tp := range n.Triples {
		alias := t.planQuadAlias(tp)
		aliases[i] = alias

		terms := [3]vgsql.Term{tp.Subject, tp.Predicate, tp.Object}
		positions := [3]string{"subject", "predicate", "object"}
		for p, term := range terms {
			col := positionColumn(positions[p])
			if term.IsVariable() {
				name := term.VariableName()
				if existing, ok := bindings[name]; ok {
					where = append(where, fmt.Sprintf("%s.%s = %s.%s", alias, col, existing.alias, existing.col))
				} else {
					bindings[name] = quadBinding{alias: alias, col: col}
				}
				continue
			}
			text, kind, err := vgsql.TermInfo(term)
			if err != nil {
				return vgsql.SQLFragment{}, err
			}
			uuid, ok := resolved[vgsql.Key{Text: text, Kind: kind}]
			if !ok {
				where = append(where, "1=0")
				continue
			}
			where = append(where, fmt.Sprintf("%s.%s = '%s'", alias, col, uuid.String()))
		}

		if i == 0 {
			from = fmt.Sprintf("FROM %s %s", quadTable, alias)
			continue
		}
		sharedCond := sharedConditionsForTriple(tp, alias, aliases[:i], n.Triples[:i])
		if len(sharedCond) > 0 {
			joins = append(joins, fmt.Sprintf("JOIN %s %s ON %s", quadTable, alias, strings.Join(sharedCond, " AND ")))
		} else {
			joins = append(joins, fmt.Sprintf("CROSS JOIN %s %s", quadTable, alias))
			crossJoins++
		}
	}

	if contextConstraint != "" {
		for _, alias := range aliases {
			where = append(where, strings.ReplaceAll(contextConstraint, contextConstraintPlaceholder, alias))
		}
	}

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	var mappings []vgsql.VarMapping
	for _, name := range names {
		b := bindings[name]
		if !isProjected(name, projectedVars) {
			continue
		}
		termAlias := t.Ctx.Aliases.NextTermAlias(b.col)
		joins = append(joins, fmt.Sprintf("JOIN %s %s ON %s.term_uuid = %s.%s", termTable, termAlias, termAlias, b.alias, b.col))
		mappings = append(mappings, vgsql.VarMapping{
			Var:           name,
			SQL:           fmt.Sprintf("%s.term_text", termAlias),
			TermTypeCol:   fmt.Sprintf("%s.term_type", termAlias),
			LangCol:       fmt.Sprintf("%s.term_lang", termAlias),
			DatatypeIDCol: fmt.Sprintf("%s.term_datatype_id", termAlias),
		})
	}

	return vgsql.SQLFragment{
		From:       from,
		Joins:      joins,
		Where:      where,
		Mappings:   mappings,
		CrossJoins: crossJoins,
	}, nil
}

// planQuadAlias consults the global optimizer's alias plan (C11), when one is
// present: the planned alias of the first variable of tp (in subject,
// predicate, object order) that has one is reused instead of minting a fresh
// alias. The other variables' planned aliases are not compared with it. With
// no plan, or no planned variable in tp, a fresh alias is minted.
func (t *Translator) planQuadAlias(tp vgsql.TriplePattern) string {
	if t.Ctx.AliasPlan != nil {
		for _, term := range [3]vgsql.Term{tp.Subject, tp.Predicate, tp.Object} {
			if !term.IsVariable() {
				continue
			}
			if alias, ok := t.Ctx.AliasPlan[term.VariableName()]; ok {
				return alias
			}
		}
	}
	return t.Ctx.Aliases.NextQuadAlias()
}

// sharedConditionsForTriple builds the ON conditions joining tp's alias to
// any of the previously-emitted triples' aliases via a shared variable.
func sharedConditionsForTriple(tp vgsql.TriplePattern, alias string, priorAliases []string, prior []vgsql.TriplePattern) []string {
	var conds []string
	seen := make(map[string]bool)
	terms := [3]vgsql.Term{tp.Subject, tp.Predicate, tp.Object}
	positions := [3]string{"subject", "predicate", "object"}
	for p, term := range terms {
		if !term.IsVariable() {
			continue
		}
		name := term.VariableName()
		for i, priorTriple := range prior {
			priorTerms := [3]vgsql.Term{priorTriple.Subject, priorTriple.Predicate, priorTriple.Object}
			for pp, priorTerm := range priorTerms {
				if !priorTerm.IsVariable() || priorTerm.VariableName() != name {
					continue
				}
				key := fmt.Sprintf("%s.%s=%s.%s", alias, positions[p], priorAliases[i], positions[pp])
				if seen[key] {
					continue
				}
				seen[key] = true
				conds = append(conds, fmt.Sprintf("%s.%s = %s.%s", alias, positionColumn(positions[p]), priorAliases[i], positionColumn(positions[pp])))
			}
		}
	}
	return conds
}
