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

	"github.com/spf13/cast"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// QueryForm enumerates the four SPARQL query forms (§4.8).
type QueryForm int

const (
	FormSelect QueryForm = iota
	FormConstruct
	FormAsk
	FormDescribe
)

// AssembleOptions carries C8's per-request assembly-time metadata; §4.6 notes
// these live on the orchestrator's request state rather than on the fragment
// because they only matter at SELECT-statement assembly time.
type AssembleOptions struct {
	Form          QueryForm
	ProjectedVars []string // empty means "project everything the fragment maps"
	Distinct      bool
	Offset        *int64
	Limit         *int64
	OrderBy       []vgsql.OrderCondition
	// ConstructTemplate is every triple pattern of a CONSTRUCT template;
	// only its variable references are needed for the assembler (the result
	// shaper does the actual instantiation, §4.12).
	ConstructTemplate []vgsql.TriplePattern
	// DescribeIRIs is the supplied IRI list for DESCRIBE with no WHERE.
	DescribeIRIs []string
	// DescribeVar names the variable whose bindings are the described
	// subjects when DESCRIBE carries a WHERE pattern.
	DescribeVar string
}

// CompanionCols names the extra columns projected alongside a variable's
// value column so the result shaper (C12) can reconstruct a literal's
// language tag and datatype IRI (§4.12) without a second round trip. Any
// field may be empty when the variable's binding has no term-table backing
// (BIND/VALUES/aggregate results), in which case the shaper treats the value
// as a plain untyped literal.
type CompanionCols struct {
	TypeCol     string
	LangCol     string
	DatatypeCol string
}

// AssembledQuery is the finished SQL text plus the alias bookkeeping the
// result shaper needs to translate SQL columns back to SPARQL variable names.
type AssembledQuery struct {
	SQL string
	// ColumnToVar maps each emitted SELECT column alias back to its original
	// (case-preserved) SPARQL variable name (§4.8 projection rules).
	ColumnToVar map[string]string
	// Companions maps a variable name to its lang/datatype/type companion
	// column aliases, present whenever the variable resolves to a term-table
	// join (§4.12 literal reconstruction).
	Companions map[string]CompanionCols
}

// Assemble builds the final SQL statement for one query form from a
// translated root fragment (C8, §4.8).
func (t *Translator) Assemble(frag vgsql.SQLFragment, opts AssembleOptions) (AssembledQuery, error) {
	switch opts.Form {
	case FormAsk:
		return t.assembleAsk(frag)
	case FormConstruct:
		return t.assembleConstruct(frag, opts)
	case FormDescribe:
		return t.assembleDescribe(frag, opts)
	default:
		return t.assembleSelect(frag, opts)
	}
}

func (t *Translator) assembleSelect(frag vgsql.SQLFragment, opts AssembleOptions) (AssembledQuery, error) {
	vars := opts.ProjectedVars
	if len(vars) == 0 {
		for _, m := range frag.Mappings {
			vars = append(vars, m.Var)
		}
	}

	proj, colToVar, companions := t.projectionColumns(frag, vars)
	distinctKw := ""
	if opts.Distinct || (frag.CrossJoins > 0 && opts.Form == FormConstruct) {
		distinctKw = "DISTINCT "
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s%s", distinctKw, strings.Join(proj, ", "))
	b.WriteString(" " + ensureFrom(frag.From))
	if len(frag.Joins) > 0 {
		b.WriteString(" " + strings.Join(frag.Joins, " "))
	}
	if !frag.IsUnionDerived() && len(frag.Where) > 0 {
		b.WriteString(" WHERE " + strings.Join(frag.Where, " AND "))
	}
	if len(frag.GroupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(frag.GroupBy, ", "))
	}
	if len(frag.Having) > 0 {
		b.WriteString(" HAVING " + strings.Join(frag.Having, " AND "))
	}
	if orderSQL, err := t.buildOrderBy(frag, opts.OrderBy); err != nil {
		return AssembledQuery{}, err
	} else if orderSQL != "" {
		b.WriteString(" ORDER BY " + orderSQL)
	}
	if opts.Offset != nil {
		fmt.Fprintf(&b, " OFFSET %s", cast.ToString(*opts.Offset))
	}
	if opts.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %s", cast.ToString(*opts.Limit))
	}

	return AssembledQuery{SQL: b.String(), ColumnToVar: colToVar, Companions: companions}, nil
}

// projectionColumns builds the SELECT list for vars against frag, producing
// lowercased, collision-disambiguated column aliases, the reverse map the
// result shaper uses to recover original SPARQL variable names, and the
// companion lang/datatype/type columns needed for literal reconstruction
// (§4.12). The datatype companion resolves the datatype IRI through the
// datatype table inline, the same correlated-subquery shape C5's DATATYPE()
// builtin uses (builtin.go's translateDatatype), so the shaper never has to
// issue a second lookup.
func (t *Translator) projectionColumns(frag vgsql.SQLFragment, vars []string) ([]string, map[string]string, map[string]CompanionCols) {
	used := map[string]int{}
	colToVar := map[string]string{}
	companions := map[string]CompanionCols{}
	proj := make([]string, 0, len(vars))
	for _, v := range vars {
		col := disambiguate(strings.ToLower(v), used)
		m, ok := frag.Lookup(v)
		if !ok {
			proj = append(proj, fmt.Sprintf(`'UNMAPPED_%s' AS "%s"`, v, col))
			colToVar[col] = v
			continue
		}
		proj = append(proj, fmt.Sprintf(`%s AS "%s"`, m.SQL, col))
		colToVar[col] = v

		var cc CompanionCols
		if m.TermTypeCol != "" {
			cc.TypeCol = col + "__type"
			proj = append(proj, fmt.Sprintf(`%s AS "%s"`, m.TermTypeCol, cc.TypeCol))
		}
		if m.LangCol != "" {
			cc.LangCol = col + "__lang"
			proj = append(proj, fmt.Sprintf(`%s AS "%s"`, m.LangCol, cc.LangCol))
		}
		if m.DatatypeIDCol != "" && t.Ctx.DatatypeTableAvailable {
			cc.DatatypeCol = col + "__dt"
			dtExpr := fmt.Sprintf(
				"(SELECT dt.datatype_uri FROM %s dt WHERE dt.datatype_id = %s)",
				t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableDatatype), m.DatatypeIDCol,
			)
			proj = append(proj, fmt.Sprintf(`%s AS "%s"`, dtExpr, cc.DatatypeCol))
		}
		if cc != (CompanionCols{}) {
			companions[v] = cc
		}
	}
	return proj, colToVar, companions
}

func disambiguate(base string, used map[string]int) string {
	n := used[base]
	used[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n)
}

func ensureFrom(from string) string {
	if from == "" {
		return ""
	}
	if strings.HasPrefix(from, "FROM") {
		return from
	}
	return "FROM " + from
}

func (t *Translator) buildOrderBy(frag vgsql.SQLFragment, conditions []vgsql.OrderCondition) (string, error) {
	if len(conditions) == 0 {
		return "", nil
	}
	parts := make([]string, len(conditions))
	for i, c := range conditions {
		sqlText, err := t.TranslateExpr(frag.Mappings, c.Expr)
		if err != nil {
			return "", err
		}
		if c.Descending {
			parts[i] = sqlText + " DESC"
		} else {
			parts[i] = sqlText + " ASC"
		}
	}
	return strings.Join(parts, ", "), nil
}

// assembleAsk implements §4.8 ASK: truthy iff any row comes back.
func (t *Translator) assembleAsk(frag vgsql.SQLFragment) (AssembledQuery, error) {
	var b strings.Builder
	b.WriteString("SELECT 1 AS ask_result " + ensureFrom(frag.From))
	if len(frag.Joins) > 0 {
		b.WriteString(" " + strings.Join(frag.Joins, " "))
	}
	if !frag.IsUnionDerived() && len(frag.Where) > 0 {
		b.WriteString(" WHERE " + strings.Join(frag.Where, " AND "))
	}
	b.WriteString(" LIMIT 1")
	return AssembledQuery{SQL: b.String()}, nil
}

// assembleConstruct projects every variable referenced by the CONSTRUCT
// template (sorted, stably), implicitly DISTINCT when the WHERE fragment
// contains a CROSS JOIN (§4.8 CONSTRUCT).
func (t *Translator) assembleConstruct(frag vgsql.SQLFragment, opts AssembleOptions) (AssembledQuery, error) {
	seen := map[string]bool{}
	var vars []string
	for _, tp := range opts.ConstructTemplate {
		for _, term := range [3]vgsql.Term{tp.Subject, tp.Predicate, tp.Object} {
			if term.IsVariable() && !seen[term.VariableName()] {
				seen[term.VariableName()] = true
				vars = append(vars, term.VariableName())
			}
		}
	}
	sort.Strings(vars)
	opts.ProjectedVars = vars
	return t.assembleSelect(frag, opts)
}

// assembleDescribe joins quad and term tables three times (s,p,o) to return
// all triples with the described subjects (§4.8 DESCRIBE). Explicit IRIs
// resolve to a direct subject filter. With a WHERE pattern, the described
// subjects are the bindings of opts.DescribeVar: the pattern's translated
// fragment becomes a self-contained IN-subquery producing that variable's
// term uuids, so the pattern is evaluated inside the one statement and none
// of its aliases leak into the outer scope.
func (t *Translator) assembleDescribe(frag vgsql.SQLFragment, opts AssembleOptions) (AssembledQuery, error) {
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)

	qAlias := t.Ctx.Aliases.NextQuadAlias()
	sAlias := t.Ctx.Aliases.NextTermAlias("subject")
	pAlias := t.Ctx.Aliases.NextTermAlias("predicate")
	oAlias := t.Ctx.Aliases.NextTermAlias("object")

	var subjWhere string
	if len(opts.DescribeIRIs) > 0 {
		hits, err := t.Ctx.Resolver.ResolveTerms(describeKeys(opts.DescribeIRIs))
		if err != nil {
			return AssembledQuery{}, err
		}
		uuids := make([]string, 0, len(opts.DescribeIRIs))
		for _, iri := range opts.DescribeIRIs {
			if u, ok := hits[vgsql.Key{Text: iri, Kind: vgsql.KindIRI}]; ok {
				uuids = append(uuids, fmt.Sprintf("'%s'", u.String()))
			}
		}
		if len(uuids) == 0 {
			subjWhere = "1=0"
		} else {
			subjWhere = fmt.Sprintf("%s.subject_uuid IN (%s)", qAlias, strings.Join(uuids, ", "))
		}
	} else if opts.DescribeVar != "" {
		m, ok := frag.Lookup(opts.DescribeVar)
		if !ok {
			subjWhere = "1=0"
		} else {
			body := "SELECT " + mappingUUIDExpr(m, termTable) + " " + ensureFrom(frag.From)
			if len(frag.Joins) > 0 {
				body += " " + strings.Join(frag.Joins, " ")
			}
			if !frag.IsUnionDerived() && len(frag.Where) > 0 {
				body += " WHERE " + strings.Join(frag.Where, " AND ")
			}
			subjWhere = fmt.Sprintf("%s.subject_uuid IN (%s)", qAlias, body)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT %s.term_text AS "s", %s.term_text AS "p", %s.term_text AS "o", `, sAlias, pAlias, oAlias)
	fmt.Fprintf(&b, `%s.term_type AS "o__type", %s.term_lang AS "o__lang"`, oAlias, oAlias)
	companions := map[string]CompanionCols{"o": {TypeCol: "o__type", LangCol: "o__lang"}}
	if t.Ctx.DatatypeTableAvailable {
		dtExpr := fmt.Sprintf(
			"(SELECT dt.datatype_uri FROM %s dt WHERE dt.datatype_id = %s.term_datatype_id)",
			t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableDatatype), oAlias,
		)
		fmt.Fprintf(&b, `, %s AS "o__dt"`, dtExpr)
		companions["o"] = CompanionCols{TypeCol: "o__type", LangCol: "o__lang", DatatypeCol: "o__dt"}
	}
	b.WriteString(" ")
	fmt.Fprintf(&b, "FROM %s %s ", quadTable, qAlias)
	fmt.Fprintf(&b, "JOIN %s %s ON %s.term_uuid = %s.subject_uuid ", termTable, sAlias, sAlias, qAlias)
	fmt.Fprintf(&b, "JOIN %s %s ON %s.term_uuid = %s.predicate_uuid ", termTable, pAlias, pAlias, qAlias)
	fmt.Fprintf(&b, "JOIN %s %s ON %s.term_uuid = %s.object_uuid", termTable, oAlias, oAlias, qAlias)
	if subjWhere != "" {
		b.WriteString(" WHERE " + subjWhere)
	}

	colToVar := map[string]string{"s": "s", "p": "p", "o": "o"}
	return AssembledQuery{SQL: b.String(), ColumnToVar: colToVar, Companions: companions}, nil
}

func describeKeys(iris []string) []vgsql.Key {
	keys := make([]vgsql.Key, len(iris))
	for i, iri := range iris {
		keys[i] = vgsql.Key{Text: iri, Kind: vgsql.KindIRI}
	}
	return keys
}
