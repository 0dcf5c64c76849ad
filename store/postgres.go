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

// Package store is the reference "collaborator" (§1, §6): a PostgreSQL
// implementation of the narrow interfaces the compiler consumes
// (cache.DB's QueryTermUUIDs, sparql.Executor's Query/Exec), built on
// database/sql and the lib/pq driver. It owns the four §6 tables; the
// compiler never opens a connection or knows this package exists.
package store

import (
	stdsql "database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/dolthub/sparql-compiler/internal/cache"
	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// Postgres wraps a *sql.DB opened against the "postgres" driver and
// implements both cache.DB and sparql.Executor.
type Postgres struct {
	db *stdsql.DB
}

// Open connects to PostgreSQL at dsn (a "postgres://" URL or libpq keyword
// string, per lib/pq's convention).
func Open(dsn string) (*Postgres, error) {
	db, err := stdsql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// QueryTermUUIDs implements cache.DB: it executes the batch lookup SQL C3
// builds (internal/cache.BuildLookupSQL) and returns one row per match.
func (p *Postgres) QueryTermUUIDs(sqlText string) ([]cache.Row, error) {
	rows, err := p.db.Query(sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cache.Row
	for rows.Next() {
		var text, kind, id string
		if err := rows.Scan(&text, &kind, &id); err != nil {
			return nil, err
		}
		uid, err := vgsql.ParseTermUUID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, cache.Row{Text: text, Kind: vgsql.TermKind(kind[0]), ID: uid})
	}
	return out, rows.Err()
}

// Query implements sparql.Executor: runs the assembled SELECT/ASK/CONSTRUCT/
// DESCRIBE statement and hands the raw *sql.Rows back to the result shaper.
func (p *Postgres) Query(sqlText string) (*stdsql.Rows, error) {
	return p.db.Query(sqlText)
}

// Exec implements sparql.Executor: runs one UPDATE statement emitted by C9.
func (p *Postgres) Exec(sqlText string) error {
	_, err := p.db.Exec(sqlText)
	return err
}

// ExecTx runs a sequence of UPDATE statements inside a single transaction,
// satisfying §5's expectation that the collaborator wrap an UPDATE sequence
// for atomicity; the translator itself only guarantees statement ordering.
func (p *Postgres) ExecTx(statements []string) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("statement failed, rolled back: %w", err)
		}
	}
	return tx.Commit()
}

// EnsureSchema creates the four §6 tables for spaceID if they do not already
// exist, using the Postgres-specific surface the compiler targets
// (gen_random_uuid(), pgcrypto). It is a convenience for local/test setup,
// not something the compiler itself ever emits.
func (p *Postgres) EnsureSchema(naming vgsql.TableNamingPolicy, spaceID string) error {
	termTable := naming.TableName(spaceID, vgsql.TableTerm)
	quadTable := naming.TableName(spaceID, vgsql.TableQuad)
	graphTable := naming.TableName(spaceID, vgsql.TableGraph)
	datatypeTable := naming.TableName(spaceID, vgsql.TableDatatype)

	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS %[4]s (
	datatype_id SERIAL PRIMARY KEY,
	datatype_uri TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS %[1]s (
	term_uuid UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	term_text TEXT NOT NULL,
	term_type CHAR(1) NOT NULL CHECK (term_type IN ('U','L','B')),
	term_lang TEXT,
	term_datatype_id INTEGER REFERENCES %[4]s(datatype_id),
	UNIQUE(term_text, term_type)
);
CREATE INDEX IF NOT EXISTS %[1]s_text_type_idx ON %[1]s (term_text, term_type);

CREATE TABLE IF NOT EXISTS %[3]s (
	graph_uuid UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	graph_uri TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS %[2]s (
	subject_uuid UUID NOT NULL REFERENCES %[1]s(term_uuid),
	predicate_uuid UUID NOT NULL REFERENCES %[1]s(term_uuid),
	object_uuid UUID NOT NULL REFERENCES %[1]s(term_uuid),
	context_uuid UUID NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s_subject_idx ON %[2]s (subject_uuid);
CREATE INDEX IF NOT EXISTS %[2]s_pred_obj_idx ON %[2]s (predicate_uuid, object_uuid);
CREATE INDEX IF NOT EXISTS %[2]s_context_idx ON %[2]s (context_uuid);
`, termTable, quadTable, graphTable, datatypeTable)

	_, err := p.db.Exec(ddl)
	return err
}
