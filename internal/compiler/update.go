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

// UpdateStatement is one emitted SQL statement plus a label identifying which
// update clause produced it, for logging and for collaborators that want to
// run the sequence inside a single transaction (§4.9, §6).
type UpdateStatement struct {
	Label string
	SQL   string
}

// Quad is a fully-bound (s,p,o,graph) tuple, the unit INSERT DATA/DELETE DATA
// operate on; graph is DefaultGraph when the data block names none.
type Quad struct {
	Subject   vgsql.Term
	Predicate vgsql.Term
	Object    vgsql.Term
	Graph     string
}

// InsertData implements §4.9 INSERT DATA: batch-insert any new term keys
// (idempotent via ON CONFLICT DO NOTHING), then batch-insert the quads.
func (t *Translator) InsertData(quads []Quad) ([]UpdateStatement, error) {
	if len(quads) == 0 {
		return nil, nil
	}
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	graphTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableGraph)

	termRows, err := termInsertRows(quads)
	if err != nil {
		return nil, err
	}

	var stmts []UpdateStatement
	if len(termRows) > 0 {
		stmts = append(stmts, UpdateStatement{
			Label: "insert_data/terms",
			SQL: fmt.Sprintf(
				"INSERT INTO %s (term_uuid, term_text, term_type) VALUES %s ON CONFLICT (term_text, term_type) DO NOTHING",
				termTable, strings.Join(termRows, ", "),
			),
		})
	}

	graphs := distinctGraphs(quads)
	for _, g := range graphs {
		stmts = append(stmts, UpdateStatement{
			Label: "insert_data/graph",
			SQL: fmt.Sprintf(
				"INSERT INTO %s (graph_uri, graph_uuid) SELECT %s, %s WHERE NOT EXISTS (SELECT 1 FROM %s WHERE graph_uri = %s)",
				graphTable, quoteLiteral(g), termUUIDLookupExpr(termTable, g, vgsql.KindIRI), graphTable, quoteLiteral(g),
			),
		})
	}

	quadRows := make([]string, 0, len(quads))
	for _, q := range quads {
		sExpr, err := termLookupOrResolved(termTable, q.Subject)
		if err != nil {
			return nil, err
		}
		pExpr, err := termLookupOrResolved(termTable, q.Predicate)
		if err != nil {
			return nil, err
		}
		oExpr, err := termLookupOrResolved(termTable, q.Object)
		if err != nil {
			return nil, err
		}
		gExpr := termUUIDLookupExpr(termTable, graphOrDefault(q.Graph), vgsql.KindIRI)
		quadRows = append(quadRows, fmt.Sprintf("(%s, %s, %s, %s)", sExpr, pExpr, oExpr, gExpr))
	}
	stmts = append(stmts, UpdateStatement{
		Label: "insert_data/quads",
		SQL: fmt.Sprintf(
			"INSERT INTO %s (subject_uuid, predicate_uuid, object_uuid, context_uuid) VALUES %s",
			quadTable, strings.Join(quadRows, ", "),
		),
	})
	return stmts, nil
}

// Load implements §4.9 LOAD: the HTTP fetch and RDF parsing of the remote
// source are an external collaborator's concern (§1, §6); by the time this
// reaches the translator, `quads` are the already-materialized triples and
// Load only emits the INSERT DATA half, rewriting each quad's graph to
// target when one is given.
func (t *Translator) Load(quads []Quad, target string) ([]UpdateStatement, error) {
	if target != "" {
		rewritten := make([]Quad, len(quads))
		for i, q := range quads {
			q.Graph = target
			rewritten[i] = q
		}
		quads = rewritten
	}
	return t.InsertData(quads)
}

// DeleteData implements §4.9 DELETE DATA: one DELETE per triple, matching via
// UUID subqueries into the term table.
func (t *Translator) DeleteData(quads []Quad) ([]UpdateStatement, error) {
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)

	stmts := make([]UpdateStatement, 0, len(quads))
	for _, q := range quads {
		sExpr := termUUIDSubquery(termTable, q.Subject)
		pExpr := termUUIDSubquery(termTable, q.Predicate)
		oExpr := termUUIDSubquery(termTable, q.Object)
		gExpr := termUUIDLookupExpr(termTable, graphOrDefault(q.Graph), vgsql.KindIRI)
		stmts = append(stmts, UpdateStatement{
			Label: "delete_data",
			SQL: fmt.Sprintf(
				"DELETE FROM %s WHERE subject_uuid = (%s) AND predicate_uuid = (%s) AND object_uuid = (%s) AND context_uuid = %s",
				quadTable, sExpr, pExpr, oExpr, gExpr,
			),
		})
	}
	return coalesceDeletes(stmts), nil
}

// Modify implements §4.9 MODIFY: translate the WHERE pattern, materialize its
// bindings in a CTE, and for each template row substitute variables with
// bindings.<col> and constants with term-table lookups, emitting correlated
// DELETE and INSERT statements.
func (t *Translator) Modify(deleteTpl, insertTpl []vgsql.TriplePattern, wherePattern vgsql.Algebra, graph string) ([]UpdateStatement, error) {
	frag, err := t.TranslatePattern(wherePattern, nil, "")
	if err != nil {
		return nil, err
	}

	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	bindingsCTE, colNames := buildBindingsCTE(frag, termTable)
	gExpr := termUUIDLookupExpr(termTable, graphOrDefault(graph), vgsql.KindIRI)

	var stmts []UpdateStatement
	if len(deleteTpl) > 0 {
		conds := make([]string, 0, len(deleteTpl))
		for _, tp := range deleteTpl {
			sExpr, err := templateSlotExpr(tp.Subject, colNames, termTable)
			if err != nil {
				return nil, err
			}
			pExpr, err := templateSlotExpr(tp.Predicate, colNames, termTable)
			if err != nil {
				return nil, err
			}
			oExpr, err := templateSlotExpr(tp.Object, colNames, termTable)
			if err != nil {
				return nil, err
			}
			conds = append(conds, fmt.Sprintf(
				"(quad.subject_uuid = %s AND quad.predicate_uuid = %s AND quad.object_uuid = %s AND quad.context_uuid = %s)",
				sExpr, pExpr, oExpr, gExpr,
			))
		}
		stmts = append(stmts, UpdateStatement{
			Label: "modify/delete",
			SQL: fmt.Sprintf(
				"%s DELETE FROM %s quad USING bindings WHERE %s",
				bindingsCTE, quadTable, strings.Join(conds, " OR "),
			),
		})
	}

	if len(insertTpl) > 0 {
		rowExprs := make([]string, 0, len(insertTpl))
		for _, tp := range insertTpl {
			sExpr, err := templateSlotExpr(tp.Subject, colNames, termTable)
			if err != nil {
				return nil, err
			}
			pExpr, err := templateSlotExpr(tp.Predicate, colNames, termTable)
			if err != nil {
				return nil, err
			}
			oExpr, err := templateSlotExpr(tp.Object, colNames, termTable)
			if err != nil {
				return nil, err
			}
			rowExprs = append(rowExprs, fmt.Sprintf("SELECT %s, %s, %s, %s FROM bindings", sExpr, pExpr, oExpr, gExpr))
		}
		stmts = append(stmts, UpdateStatement{
			Label: "modify/insert",
			SQL: fmt.Sprintf(
				"%s INSERT INTO %s (subject_uuid, predicate_uuid, object_uuid, context_uuid) %s",
				bindingsCTE, quadTable, strings.Join(rowExprs, " UNION ALL "),
			),
		})
	}
	return stmts, nil
}

// Clear implements §4.9 CLEAR: DELETE scoped by context, or unscoped for ALL.
func (t *Translator) Clear(graph string, all bool) UpdateStatement {
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	if all {
		return UpdateStatement{Label: "clear/all", SQL: fmt.Sprintf("DELETE FROM %s", quadTable)}
	}
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
	gExpr := termUUIDLookupExpr(termTable, graphOrDefault(graph), vgsql.KindIRI)
	return UpdateStatement{
		Label: "clear/graph",
		SQL:   fmt.Sprintf("DELETE FROM %s WHERE context_uuid = %s", quadTable, gExpr),
	}
}

// Create implements §4.9 CREATE: insert the graph IRI (no-op if present).
func (t *Translator) Create(graph string) UpdateStatement {
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
	return UpdateStatement{
		Label: "create",
		SQL: fmt.Sprintf(
			"INSERT INTO %s (term_uuid, term_text, term_type) VALUES (gen_random_uuid(), %s, '%s') ON CONFLICT (term_text, term_type) DO NOTHING",
			termTable, quoteLiteral(graph), string(rune(vgsql.KindIRI)),
		),
	}
}

// Drop implements §4.9 DROP: delete quads in the graph, then remove the graph
// term if no quad still uses it as its context. References to the term as a
// subject, predicate or object are not checked.
func (t *Translator) Drop(graph string) []UpdateStatement {
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
	gExpr := termUUIDLookupExpr(termTable, graph, vgsql.KindIRI)
	return []UpdateStatement{
		{Label: "drop/quads", SQL: fmt.Sprintf("DELETE FROM %s WHERE context_uuid = %s", quadTable, gExpr)},
		{Label: "drop/term", SQL: fmt.Sprintf(
			"DELETE FROM %s WHERE term_text = %s AND term_type = '%s' AND NOT EXISTS (SELECT 1 FROM %s WHERE context_uuid = %s)",
			termTable, quoteLiteral(graph), string(rune(vgsql.KindIRI)), quadTable, gExpr,
		)},
	}
}

// Copy implements §4.9 COPY: ensure the target graph term exists, CLEAR the
// target, then insert quads from source with context rewritten to target.
func (t *Translator) Copy(src, tgt string) []UpdateStatement {
	stmts := []UpdateStatement{t.Create(tgt), t.Clear(tgt, false)}
	stmts = append(stmts, t.copyOrAddQuads(src, tgt, false))
	return stmts
}

// Add implements §4.9 ADD: like Copy, but additive and ignores duplicates.
func (t *Translator) Add(src, tgt string) []UpdateStatement {
	stmts := []UpdateStatement{t.Create(tgt)}
	stmts = append(stmts, t.copyOrAddQuads(src, tgt, true))
	return stmts
}

func (t *Translator) copyOrAddQuads(src, tgt string, ignoreDuplicates bool) UpdateStatement {
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
	srcExpr := termUUIDLookupExpr(termTable, src, vgsql.KindIRI)
	tgtExpr := termUUIDLookupExpr(termTable, tgt, vgsql.KindIRI)
	conflict := ""
	if ignoreDuplicates {
		conflict = " ON CONFLICT DO NOTHING"
	}
	return UpdateStatement{
		Label: "copy_or_add/quads",
		SQL: fmt.Sprintf(
			"INSERT INTO %s (subject_uuid, predicate_uuid, object_uuid, context_uuid) "+
				"SELECT subject_uuid, predicate_uuid, object_uuid, %s FROM %s WHERE context_uuid = %s%s",
			quadTable, tgtExpr, quadTable, srcExpr, conflict,
		),
	}
}

// Move implements §4.9 MOVE: rewrite context_uuid from source to target.
func (t *Translator) Move(src, tgt string) UpdateStatement {
	quadTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableQuad)
	termTable := t.Ctx.Naming.TableName(t.Ctx.SpaceID, vgsql.TableTerm)
	srcExpr := termUUIDLookupExpr(termTable, src, vgsql.KindIRI)
	tgtExpr := termUUIDLookupExpr(termTable, tgt, vgsql.KindIRI)
	return UpdateStatement{
		Label: "move",
		SQL:   fmt.Sprintf("UPDATE %s SET context_uuid = %s WHERE context_uuid = %s", quadTable, tgtExpr, srcExpr),
	}
}

// coalesceDeletes merges consecutive "delete_data" statements targeting the
// same table into a single statement ORed together (§4.9 Batching).
func coalesceDeletes(stmts []UpdateStatement) []UpdateStatement {
	if len(stmts) <= 1 {
		return stmts
	}
	conds := make([]string, 0, len(stmts))
	for _, s := range stmts {
		cond := strings.SplitN(s.SQL, " WHERE ", 2)
		if len(cond) == 2 {
			conds = append(conds, "("+cond[1]+")")
		}
	}
	prefix := strings.SplitN(stmts[0].SQL, " WHERE ", 2)[0]
	return []UpdateStatement{{
		Label: "delete_data",
		SQL:   fmt.Sprintf("%s WHERE %s", prefix, strings.Join(conds, " OR ")),
	}}
}

func graphOrDefault(g string) string {
	if g == "" {
		return vgsql.DefaultGraph
	}
	return g
}

func distinctGraphs(quads []Quad) []string {
	seen := map[string]bool{}
	var out []string
	for _, q := range quads {
		g := graphOrDefault(q.Graph)
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// termInsertRows covers every term a quad batch needs resolved, including the
// graph IRIs themselves: context_uuid is a term uuid, so the graph term must
// exist before the quad rows' lookup subqueries run.
func termInsertRows(quads []Quad) ([]string, error) {
	seen := map[vgsql.Key]bool{}
	var rows []string
	add := func(text string, kind vgsql.TermKind) {
		k := vgsql.Key{Text: text, Kind: kind}
		if seen[k] {
			return
		}
		seen[k] = true
		rows = append(rows, fmt.Sprintf("(gen_random_uuid(), %s, '%s')", quoteLiteral(text), string(rune(kind))))
	}
	for _, q := range quads {
		for _, term := range [3]vgsql.Term{q.Subject, q.Predicate, q.Object} {
			text, kind, err := vgsql.TermInfo(term)
			if err != nil {
				return nil, err
			}
			add(text, kind)
		}
		add(graphOrDefault(q.Graph), vgsql.KindIRI)
	}
	return rows, nil
}

func termLookupOrResolved(termTable string, term vgsql.Term) (string, error) {
	text, kind, err := vgsql.TermInfo(term)
	if err != nil {
		return "", err
	}
	return termUUIDLookupExpr(termTable, text, kind), nil
}

func termUUIDLookupExpr(termTable, text string, kind vgsql.TermKind) string {
	return fmt.Sprintf("(SELECT term_uuid FROM %s WHERE term_text = %s AND term_type = '%s')", termTable, quoteLiteral(text), string(rune(kind)))
}

func termUUIDSubquery(termTable string, term vgsql.Term) string {
	text, kind, err := vgsql.TermInfo(term)
	if err != nil {
		return "NULL"
	}
	return fmt.Sprintf("SELECT term_uuid FROM %s WHERE term_text = %s AND term_type = '%s'", termTable, quoteLiteral(text), string(rune(kind)))
}

// buildBindingsCTE materializes a pattern's translated fragment as a
// "WITH bindings AS (...)" prefix, returning the prefix text and the map from
// SPARQL variable name to its bindings column. Columns carry term UUIDs, not
// text: template slots compare them against quad.*_uuid columns. A
// term-table-backed mapping reads term_uuid off its existing join; anything
// else (BIND/VALUES text) goes back through a term lookup.
func buildBindingsCTE(frag vgsql.SQLFragment, termTable string) (string, map[string]string) {
	cols := make(map[string]string, len(frag.Mappings))
	selectList := make([]string, 0, len(frag.Mappings))
	for _, m := range frag.Mappings {
		col := sanitizeColumnName(m.Var) + "_col"
		cols[m.Var] = col
		selectList = append(selectList, fmt.Sprintf("%s AS %s", mappingUUIDExpr(m, termTable), col))
	}
	body := "SELECT " + strings.Join(selectList, ", ") + " " + ensureFrom(frag.From)
	if len(frag.Joins) > 0 {
		body += " " + strings.Join(frag.Joins, " ")
	}
	if !frag.IsUnionDerived() && len(frag.Where) > 0 {
		body += " WHERE " + strings.Join(frag.Where, " AND ")
	}
	return fmt.Sprintf("WITH bindings AS (%s)", body), cols
}

// templateSlotExpr renders one subject/predicate/object slot of an update
// template: a variable substitutes to its bindings column; a constant
// resolves via a term-table lookup.
func templateSlotExpr(term vgsql.Term, colNames map[string]string, termTable string) (string, error) {
	if term.IsVariable() {
		col, ok := colNames[term.VariableName()]
		if !ok {
			return "", vgsql.UnmappedVariable.New(term.VariableName())
		}
		return "bindings." + col, nil
	}
	return termLookupOrResolved(termTable, term)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
