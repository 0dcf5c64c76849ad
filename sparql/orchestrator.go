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

package sparql

import (
	"context"
	stdsql "database/sql"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/sparql-compiler/internal/alias"
	"github.com/dolthub/sparql-compiler/internal/compiler"
	"github.com/dolthub/sparql-compiler/resultshaper"
	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// Parser is the external collaborator (§1, §6) that turns SPARQL text into
// algebra. The compiler never parses SPARQL itself; an embedding program
// wires in whatever grammar it has and satisfies this interface, or skips it
// entirely by constructing QueryRequest/UpdateRequest from a pre-parsed
// algebra directly.
type Parser interface {
	ParseQuery(sparqlText string) (QueryRequest, error)
	ParseUpdate(sparqlText string) (UpdateRequest, error)
}

// Executor is the collaborator that actually runs SQL against the database
// (§1, §6); the orchestrator only ever issues the one statement it was handed
// by the translator, never opens a connection or manages a transaction
// itself beyond ordering UPDATE statements sequentially (§5, §4.9 Batching).
type Executor interface {
	Query(sqlText string) (*stdsql.Rows, error)
	Exec(sqlText string) error
}

// UpdateOp enumerates the ten SPARQL UPDATE operations C9 translates.
type UpdateOp int

const (
	OpInsertData UpdateOp = iota
	OpDeleteData
	OpModify
	OpLoad
	OpClear
	OpCreate
	OpDrop
	OpCopy
	OpMove
	OpAdd
)

// QueryRequest is a pre-parsed SPARQL query, the shape ParseQuery produces or
// that a caller embedding its own parser can build directly.
type QueryRequest struct {
	Form              compiler.QueryForm
	Algebra           vgsql.Algebra
	ProjectedVars     []string
	Distinct          bool
	Offset            *int64
	Limit             *int64
	OrderBy           []vgsql.OrderCondition
	ConstructTemplate []vgsql.TriplePattern
	DescribeIRIs      []string
	DescribeVar       string
}

// UpdateRequest is a pre-parsed SPARQL UPDATE operation.
type UpdateRequest struct {
	Op             UpdateOp
	InsertData     []compiler.Quad
	DeleteData     []compiler.Quad
	DeleteTemplate []vgsql.TriplePattern
	InsertTemplate []vgsql.TriplePattern
	WherePattern   vgsql.Algebra
	Graph          string
	Source         string
	Target         string
	ClearAll       bool
}

// Orchestrator is C10: the single per-request entry point. It owns nothing
// across requests except the term cache; a fresh SparqlContext, with a fresh
// alias generator, is built for every call (§3 "Lifecycle", §5 "Shared
// resources").
type Orchestrator struct {
	Cache    vgsql.TermCache
	Naming   vgsql.TableNamingPolicy
	Logger   logrus.FieldLogger
	Config   vgsql.Config
	Tracer   opentracing.Tracer
	Optimize bool
}

// NewOrchestrator builds an Orchestrator bound to a term cache, table naming
// policy, logger, and configuration. The resolver (cache + database
// fallback, C3) is supplied per-call to RunQuery/RunUpdate rather than held
// here, since it is the one collaborator with its own database connection
// and request callers may want to vary it (e.g. per tenant).
func NewOrchestrator(cache vgsql.TermCache, naming vgsql.TableNamingPolicy, logger logrus.FieldLogger, cfg vgsql.Config) *Orchestrator {
	return &Orchestrator{
		Cache:  cache,
		Naming: naming,
		Logger: logger,
		Config: cfg,
		Tracer: opentracing.GlobalTracer(),
	}
}

// newContext builds the fresh, request-scoped SparqlContext (§4.10 step 3).
func (o *Orchestrator) newContext(spaceID string, resolver vgsql.TermResolver) *vgsql.SparqlContext {
	return &vgsql.SparqlContext{
		Ctx:                    context.Background(),
		SpaceID:                spaceID,
		Aliases:                alias.New(),
		Cache:                  o.Cache,
		Resolver:               resolver,
		Naming:                 o.Naming,
		Logger:                 o.Logger,
		DatatypeTableAvailable: true,
		Config:                 o.Config,
	}
}

// RunQuery implements §4.10 step 4: optionally run the global optimizer,
// translate the root algebra, assemble the SQL, execute it, and shape the
// result.
func (o *Orchestrator) RunQuery(spaceID string, req QueryRequest, resolver vgsql.TermResolver, exec Executor) (interface{}, error) {
	ctx := o.newContext(spaceID, resolver)
	t := compiler.New(ctx)

	if o.Optimize {
		ctx.AliasPlan = t.RunGlobalOptimizer(req.Algebra)
	}

	frag, err := t.TranslatePattern(req.Algebra, req.ProjectedVars, "")
	if err != nil {
		return nil, err
	}
	frag = vgsql.Optimize(frag)

	aq, err := t.Assemble(frag, compiler.AssembleOptions{
		Form:              req.Form,
		ProjectedVars:     req.ProjectedVars,
		Distinct:          req.Distinct,
		Offset:            req.Offset,
		Limit:             req.Limit,
		OrderBy:           req.OrderBy,
		ConstructTemplate: req.ConstructTemplate,
		DescribeIRIs:      req.DescribeIRIs,
		DescribeVar:       req.DescribeVar,
	})
	if err != nil {
		return nil, err
	}

	span := o.Tracer.StartSpan("sparql.execute")
	rows, err := exec.Query(aq.SQL)
	span.Finish()
	if err != nil {
		return nil, vgsql.ExecutionError.New(errors.Wrap(err, "query execution").Error())
	}
	defer rows.Close()

	switch req.Form {
	case compiler.FormAsk:
		return resultshaper.ShapeAsk(rows)
	case compiler.FormConstruct:
		return resultshaper.ShapeConstruct(rows, aq, req.ConstructTemplate)
	case compiler.FormDescribe:
		return resultshaper.ShapeDescribe(rows, aq)
	default:
		return resultshaper.ShapeSelect(rows, aq)
	}
}

// RunUpdate implements §4.10 step 5: translate with C9 and execute the
// resulting statement sequence in order. Atomicity (wrapping them in one
// transaction) is Executor's concern; the translator only guarantees the
// sequence itself is order-safe (§5 "Ordering").
func (o *Orchestrator) RunUpdate(spaceID string, req UpdateRequest, resolver vgsql.TermResolver, exec Executor) error {
	ctx := o.newContext(spaceID, resolver)
	t := compiler.New(ctx)

	stmts, err := o.translateUpdate(t, req)
	if err != nil {
		return err
	}

	span := o.Tracer.StartSpan("sparql.execute_update")
	defer span.Finish()
	for _, stmt := range stmts {
		if err := exec.Exec(stmt.SQL); err != nil {
			return vgsql.ExecutionError.New(errors.Wrapf(err, "statement %q", stmt.Label).Error())
		}
	}
	return nil
}

func (o *Orchestrator) translateUpdate(t *compiler.Translator, req UpdateRequest) ([]compiler.UpdateStatement, error) {
	switch req.Op {
	case OpInsertData:
		return t.InsertData(req.InsertData)
	case OpDeleteData:
		return t.DeleteData(req.DeleteData)
	case OpModify:
		return t.Modify(req.DeleteTemplate, req.InsertTemplate, req.WherePattern, req.Graph)
	case OpLoad:
		return t.Load(req.InsertData, req.Target)
	case OpClear:
		return []compiler.UpdateStatement{t.Clear(req.Graph, req.ClearAll)}, nil
	case OpCreate:
		return []compiler.UpdateStatement{t.Create(req.Graph)}, nil
	case OpDrop:
		return t.Drop(req.Graph), nil
	case OpCopy:
		return t.Copy(req.Source, req.Target), nil
	case OpMove:
		return []compiler.UpdateStatement{t.Move(req.Source, req.Target)}, nil
	case OpAdd:
		return t.Add(req.Source, req.Target), nil
	default:
		return nil, vgsql.UnsupportedFeature.New("unknown update operation")
	}
}
