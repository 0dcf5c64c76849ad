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

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// translatePropertyPathPattern implements C7 (§4.7): compile n.Path to a
// derived table exposing (start_node, end_node) and constrain it by the
// pattern's subject/object, in the same quad/term idiom the BGP translator
// uses (bound endpoints resolve via C3 and filter; variable endpoints gain a
// term-table join so their text is exposed).
func (t *Translator) translatePropertyPathPattern(n vgsql.PropertyPathPattern, cc string) (vgsql.SQLFragment, error) {
	if neg, ok := n.Path.(vgsql.PathNeg); ok {
		return t.translateNegatedPropertySet(n, neg, cc)
	}

	body, err := t.compilePath(n.Path, cc)
	if err != nil {
		return vgsql.SQLFragment{}, err
	}
	alias := t.Ctx.Aliases.NextSubqueryAlias()
	from := fmt.Sprintf("FROM (%s) %s", body, alias)

	var where []string
	var mappings []vgsql.VarMapping
	var joins []string

	if err := t.bindPathEndpoint(n.Subject, alias, "start_node", &where, &mappings, &joins); err != nil {
		return vgsql.SQLFragment{}, err
	}
	if err := t.bindPathEndpoint(n.Object, alias, "end_node", &where, &mappings, &joins); err != nil {
		return vgsql.SQLFragment{}, err
	}

	return vgsql.SQLFragment{From: from, Joins: joins, Where: where, Mappings: mappings}, nil
}

// bindPathEndpoint resolves a bound endpoint term to a WHERE equality against
// col, or, for a variable endpoint, adds a term-table join exposing its text.
func (t *Translator) bindPathEndpoint(term vgsql.Term, alias, col string, where *[]string, mappings *[]vgsql.VarMapping, joins *[]string) error {
	if term.IsVariable() {
		termAlias := t.Ctx.Aliases.NextTermAlias(col)
		termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
		*joins = append(*joins, fmt.Sprintf("JOIN %s %s ON %s.term_uuid = %s.%s", termTable, termAlias, termAlias, alias, col))
		*mappings = append(*mappings, vgsql.VarMapping{
			Var:           term.VariableName(),
			SQL:           fmt.Sprintf("%s.term_text", termAlias),
			TermTypeCol:   fmt.Sprintf("%s.term_type", termAlias),
			LangCol:       fmt.Sprintf("%s.term_lang", termAlias),
			DatatypeIDCol: fmt.Sprintf("%s.term_datatype_id", termAlias),
		})
		return nil
	}
	text, kind, err := vgsql.TermInfo(term)
	if err != nil {
		return err
	}
	hits, err := t.Ctx.Resolver.ResolveTerms([]vgsql.Key{{Text: text, Kind: kind}})
	if err != nil {
		return err
	}
	uuid, ok := hits[vgsql.Key{Text: text, Kind: kind}]
	if !ok {
		*where = append(*where, "1=0")
		return nil
	}
	*where = append(*where, fmt.Sprintf("%s.%s = '%s'", alias, col, uuid.String()))
	return nil
}

// compilePath returns the SQL body (unwrapped SELECT, possibly a WITH
// RECURSIVE statement) producing (start_node, end_node) for path, per the
// per-form rules in §4.7. cc is the context constraint pushed down into every
// Elt leaf.
func (t *Translator) compilePath(path vgsql.Path, cc string) (string, error) {
	switch p := path.(type) {
	case vgsql.PathElt:
		return t.compilePathElt(p, cc)
	case vgsql.PathInv:
		inner, err := t.compilePath(p.A, cc)
		if err != nil {
			return "", err
		}
		alias := t.Ctx.Aliases.NextSubqueryAlias()
		return fmt.Sprintf("SELECT %s.end_node AS start_node, %s.start_node AS end_node FROM (%s) %s", alias, alias, inner, alias), nil
	case vgsql.PathSeq:
		return t.compilePathSeq(p, cc)
	case vgsql.PathAlt:
		return t.compilePathAlt(p, cc)
	case vgsql.PathMul:
		return t.compilePathMul(p, cc)
	case vgsql.PathNeg:
		return t.compilePathNegVarVar(p, cc)
	default:
		return "", vgsql.UnsupportedFeature.New(fmt.Sprintf("path node %T", path))
	}
}

// compilePathElt resolves the predicate IRI and emits the direct-edge base
// relation (§4.7 Elt).
func (t *Translator) compilePathElt(p vgsql.PathElt, cc string) (string, error) {
	table := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	alias := t.Ctx.Aliases.NextQuadAlias()

	hits, err := t.Ctx.Resolver.ResolveTerms([]vgsql.Key{{Text: p.IRI, Kind: vgsql.KindIRI}})
	if err != nil {
		return "", err
	}
	uuid, ok := hits[vgsql.Key{Text: p.IRI, Kind: vgsql.KindIRI}]

	where := []string{"1=0"}
	if ok {
		where = []string{fmt.Sprintf("%s.predicate_uuid = '%s'", alias, uuid.String())}
	}
	if cc != "" {
		where = append(where, strings.ReplaceAll(cc, contextConstraintPlaceholder, alias))
	}
	return fmt.Sprintf(
		"SELECT %s.subject_uuid AS start_node, %s.object_uuid AS end_node FROM %s %s WHERE %s",
		alias, alias, table, alias, strings.Join(where, " AND "),
	), nil
}

func (t *Translator) compilePathSeq(p vgsql.PathSeq, cc string) (string, error) {
	aBody, err := t.compilePath(p.A, cc)
	if err != nil {
		return "", err
	}
	bBody, err := t.compilePath(p.B, cc)
	if err != nil {
		return "", err
	}
	aAlias := t.Ctx.Aliases.NextSubqueryAlias()
	bAlias := t.Ctx.Aliases.NextSubqueryAlias()
	return fmt.Sprintf(
		"SELECT %s.start_node AS start_node, %s.end_node AS end_node FROM (%s) %s JOIN (%s) %s ON %s.end_node = %s.start_node",
		aAlias, bAlias, aBody, aAlias, bBody, bAlias, aAlias, bAlias,
	), nil
}

func (t *Translator) compilePathAlt(p vgsql.PathAlt, cc string) (string, error) {
	aBody, err := t.compilePath(p.A, cc)
	if err != nil {
		return "", err
	}
	bBody, err := t.compilePath(p.B, cc)
	if err != nil {
		return "", err
	}
	aAlias := t.Ctx.Aliases.NextSubqueryAlias()
	bAlias := t.Ctx.Aliases.NextSubqueryAlias()
	return fmt.Sprintf(
		"SELECT start_node, end_node FROM (%s) %s UNION ALL SELECT start_node, end_node FROM (%s) %s",
		aBody, aAlias, bBody, bAlias,
	), nil
}

// compilePathMul implements Mul(a, *|+|?) via a recursive CTE with cycle
// detection and a hard depth bound (§4.7).
func (t *Translator) compilePathMul(p vgsql.PathMul, cc string) (string, error) {
	aBody, err := t.compilePath(p.A, cc)
	if err != nil {
		return "", err
	}
	maxDepth := t.Ctx.Config.PropertyPathMaxDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}

	if p.Mod == vgsql.ModOpt {
		nodesAlias := t.Ctx.Aliases.NextSubqueryAlias()
		directAlias := t.Ctx.Aliases.NextSubqueryAlias()
		return fmt.Sprintf(
			"SELECT n AS start_node, n AS end_node FROM "+
				"(SELECT start_node AS n FROM (%s) %s_s UNION SELECT end_node AS n FROM (%s) %s_e) %s "+
				"UNION SELECT start_node, end_node FROM (%s) %s",
			aBody, nodesAlias, aBody, nodesAlias, nodesAlias, aBody, directAlias,
		), nil
	}

	cteName := fmt.Sprintf("%s_cte", t.Ctx.Aliases.NextSubqueryAlias())
	aAlias := t.Ctx.Aliases.NextSubqueryAlias()

	var baseCase string
	if p.Mod == vgsql.ModStar {
		nodesAlias := t.Ctx.Aliases.NextSubqueryAlias()
		baseCase = fmt.Sprintf(
			"SELECT n AS start_node, n AS end_node, ARRAY[n] AS visited, 0 AS depth FROM "+
				"(SELECT start_node AS n FROM (%s) %s_s UNION SELECT end_node AS n FROM (%s) %s_e) %s",
			aBody, nodesAlias, aBody, nodesAlias, nodesAlias,
		)
	} else { // ModPlus
		baseCase = fmt.Sprintf(
			"SELECT start_node, end_node, ARRAY[start_node, end_node] AS visited, 1 AS depth FROM (%s) %s",
			aBody, aAlias,
		)
	}

	stepAlias := t.Ctx.Aliases.NextSubqueryAlias()
	recursiveCase := fmt.Sprintf(
		"SELECT p.start_node, s.end_node, p.visited || s.end_node, p.depth + 1 "+
			"FROM %s p JOIN (%s) %s s ON p.end_node = s.start_node "+
			"WHERE NOT (s.end_node = ANY(p.visited)) AND p.depth < %d",
		cteName, aBody, stepAlias, maxDepth,
	)

	return fmt.Sprintf(
		"WITH RECURSIVE %s(start_node, end_node, visited, depth) AS (%s UNION ALL %s) SELECT start_node, end_node FROM %s",
		cteName, baseCase, recursiveCase, cteName,
	), nil
}

// compilePathNegVarVar compiles a negated property set for the var/var
// binding case used whenever Neg appears nested inside a larger path
// expression (its endpoints there are always fresh intermediate variables,
// never the pattern's own subject/object). The top-level Neg case, where
// subject and/or object may be bound, is handled by
// translateNegatedPropertySet instead, which has visibility into the
// pattern's actual endpoints.
func (t *Translator) compilePathNegVarVar(p vgsql.PathNeg, cc string) (string, error) {
	altBodies := make([]string, 0, len(p.Alternatives))
	for _, alt := range p.Alternatives {
		b, err := t.compilePath(alt, cc)
		if err != nil {
			return "", err
		}
		altBodies = append(altBodies, b)
	}
	unionAlias := t.Ctx.Aliases.NextSubqueryAlias()
	union := unionAllBodies(altBodies, unionAlias)

	nodesAlias := t.Ctx.Aliases.NextSubqueryAlias()
	table := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	quadAlias := t.Ctx.Aliases.NextQuadAlias()
	nodes := fmt.Sprintf(
		"SELECT DISTINCT n FROM (SELECT subject_uuid AS n FROM %s %s UNION SELECT object_uuid AS n FROM %s %s) %s",
		table, quadAlias, table, quadAlias, nodesAlias,
	)
	candAlias1 := t.Ctx.Aliases.NextSubqueryAlias()
	candAlias2 := t.Ctx.Aliases.NextSubqueryAlias()
	matchAlias := t.Ctx.Aliases.NextSubqueryAlias()
	return fmt.Sprintf(
		"SELECT %s.n AS start_node, %s.n AS end_node FROM (%s) %s CROSS JOIN (%s) %s "+
			"WHERE %s.n <> %s.n AND NOT EXISTS (SELECT 1 FROM (%s) %s WHERE %s.start_node = %s.n AND %s.end_node = %s.n)",
		candAlias1, candAlias2, nodes, candAlias1, nodes, candAlias2,
		candAlias1, candAlias2,
		union, matchAlias, matchAlias, candAlias1, matchAlias, candAlias2,
	), nil
}

func unionAllBodies(bodies []string, aliasPrefix string) string {
	parts := make([]string, len(bodies))
	for i, b := range bodies {
		parts[i] = fmt.Sprintf("SELECT start_node, end_node FROM (%s) %s_%d", b, aliasPrefix, i)
	}
	return strings.Join(parts, " UNION ALL ")
}

// translateNegatedPropertySet handles !(p1|p2|...) at the top level of a
// property path triple pattern, where the subject/object binding state
// narrows the candidate set per §4.7.
func (t *Translator) translateNegatedPropertySet(n vgsql.PropertyPathPattern, neg vgsql.PathNeg, cc string) (vgsql.SQLFragment, error) {
	altBodies := make([]string, 0, len(neg.Alternatives))
	for _, alt := range neg.Alternatives {
		b, err := t.compilePath(alt, cc)
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		altBodies = append(altBodies, b)
	}
	matchAlias := t.Ctx.Aliases.NextSubqueryAlias()
	union := unionAllBodies(altBodies, matchAlias)

	var where []string
	var mappings []vgsql.VarMapping
	var joins []string

	if !n.Subject.IsVariable() && !n.Object.IsVariable() {
		sText, sKind, err := vgsql.TermInfo(n.Subject)
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		oText, oKind, err := vgsql.TermInfo(n.Object)
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		hits, err := t.Ctx.Resolver.ResolveTerms([]vgsql.Key{{Text: sText, Kind: sKind}, {Text: oText, Kind: oKind}})
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		sUUID, sOK := hits[vgsql.Key{Text: sText, Kind: sKind}]
		oUUID, oOK := hits[vgsql.Key{Text: oText, Kind: oKind}]
		if !sOK || !oOK {
			return vgsql.SQLFragment{Where: []string{"1=0"}}, nil
		}
		cond := fmt.Sprintf(
			"NOT EXISTS (SELECT 1 FROM (%s) %s WHERE %s.start_node = '%s' AND %s.end_node = '%s')",
			union, matchAlias, matchAlias, sUUID.String(), matchAlias, oUUID.String(),
		)
		return vgsql.SQLFragment{Where: []string{cond}}, nil
	}

	table := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	quadAlias := t.Ctx.Aliases.NextQuadAlias()
	nodesAlias := t.Ctx.Aliases.NextSubqueryAlias()
	nodes := fmt.Sprintf(
		"SELECT DISTINCT n FROM (SELECT subject_uuid AS n FROM %s %s UNION SELECT object_uuid AS n FROM %s %s) %s",
		table, quadAlias, table, quadAlias, nodesAlias,
	)

	switch {
	case n.Subject.IsVariable() && n.Object.IsVariable():
		candAlias1 := t.Ctx.Aliases.NextSubqueryAlias()
		candAlias2 := t.Ctx.Aliases.NextSubqueryAlias()
		derived := t.Ctx.Aliases.NextSubqueryAlias()
		body := fmt.Sprintf(
			"SELECT %s.n AS start_node, %s.n AS end_node FROM (%s) %s CROSS JOIN (%s) %s "+
				"WHERE %s.n <> %s.n AND NOT EXISTS (SELECT 1 FROM (%s) %s WHERE %s.start_node = %s.n AND %s.end_node = %s.n)",
			candAlias1, candAlias2, nodes, candAlias1, nodes, candAlias2,
			candAlias1, candAlias2,
			union, matchAlias, matchAlias, candAlias1, matchAlias, candAlias2,
		)
		from := fmt.Sprintf("FROM (%s) %s", body, derived)
		if err := t.bindPathEndpoint(n.Subject, derived, "start_node", &where, &mappings, &joins); err != nil {
			return vgsql.SQLFragment{}, err
		}
		if err := t.bindPathEndpoint(n.Object, derived, "end_node", &where, &mappings, &joins); err != nil {
			return vgsql.SQLFragment{}, err
		}
		return vgsql.SQLFragment{From: from, Joins: joins, Where: where, Mappings: mappings}, nil

	case n.Subject.IsVariable():
		oText, oKind, err := vgsql.TermInfo(n.Object)
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		hits, err := t.Ctx.Resolver.ResolveTerms([]vgsql.Key{{Text: oText, Kind: oKind}})
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		oUUID, ok := hits[vgsql.Key{Text: oText, Kind: oKind}]
		if !ok {
			return vgsql.SQLFragment{Where: []string{"1=0"}}, nil
		}
		derived := t.Ctx.Aliases.NextSubqueryAlias()
		body := fmt.Sprintf(
			"SELECT %s.n AS start_node FROM (%s) %s "+
				"WHERE NOT EXISTS (SELECT 1 FROM (%s) %s WHERE %s.start_node = %s.n AND %s.end_node = '%s')",
			nodesAlias, nodes, nodesAlias, union, matchAlias, matchAlias, nodesAlias, matchAlias, oUUID.String(),
		)
		from := fmt.Sprintf("FROM (%s) %s", body, derived)
		if err := t.bindPathEndpoint(n.Subject, derived, "start_node", &where, &mappings, &joins); err != nil {
			return vgsql.SQLFragment{}, err
		}
		return vgsql.SQLFragment{From: from, Joins: joins, Where: where, Mappings: mappings}, nil

	default: // object is the variable
		sText, sKind, err := vgsql.TermInfo(n.Subject)
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		hits, err := t.Ctx.Resolver.ResolveTerms([]vgsql.Key{{Text: sText, Kind: sKind}})
		if err != nil {
			return vgsql.SQLFragment{}, err
		}
		sUUID, ok := hits[vgsql.Key{Text: sText, Kind: sKind}]
		if !ok {
			return vgsql.SQLFragment{Where: []string{"1=0"}}, nil
		}
		derived := t.Ctx.Aliases.NextSubqueryAlias()
		body := fmt.Sprintf(
			"SELECT %s.n AS end_node FROM (%s) %s "+
				"WHERE NOT EXISTS (SELECT 1 FROM (%s) %s WHERE %s.start_node = '%s' AND %s.end_node = %s.n)",
			nodesAlias, nodes, nodesAlias, union, matchAlias, matchAlias, sUUID.String(), matchAlias, nodesAlias,
		)
		from := fmt.Sprintf("FROM (%s) %s", body, derived)
		if err := t.bindPathEndpoint(n.Object, derived, "end_node", &where, &mappings, &joins); err != nil {
			return vgsql.SQLFragment{}, err
		}
		return vgsql.SQLFragment{From: from, Joins: joins, Where: where, Mappings: mappings}, nil
	}
}
