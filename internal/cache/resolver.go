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

package cache

import (
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// DB is the narrow batch-read collaborator the resolver falls back to on a
// cache miss. The compiler never opens a connection itself (§1); execution of
// this single SQL statement is the only database access C3 performs.
type DB interface {
	// QueryTermUUIDs executes sqlText and returns one (text,kind,uuid) row per
	// match. sqlText is produced by BuildLookupSQL below.
	QueryTermUUIDs(sqlText string) ([]Row, error)
}

// Row is one term-table row as returned by the lookup query.
type Row struct {
	Text string
	Kind vgsql.TermKind
	ID   vgsql.TermUUID
}

// Resolver implements C3: resolve_terms(keys) -> map<Key,UUID>.
type Resolver struct {
	Cache  vgsql.TermCache
	DB     DB
	Naming vgsql.TableNamingPolicy
	Space  string
	Tracer opentracing.Tracer
}

// NewResolver builds a Resolver over the given cache and database collaborator.
func NewResolver(c vgsql.TermCache, db DB, naming vgsql.TableNamingPolicy, space string) *Resolver {
	return &Resolver{Cache: c, DB: db, Naming: naming, Space: space, Tracer: opentracing.GlobalTracer()}
}

// ResolveTerms is the sole suspension point (other than execution) per §5: it
// queries the cache, and on a partial miss issues exactly one batch SQL
// lookup against the term table before repopulating the cache. Keys absent
// from the database are simply absent from the returned map (§4.3 step 5);
// callers treat that as "no match" and emit an impossible condition.
func (r *Resolver) ResolveTerms(keys []vgsql.Key) (map[vgsql.Key]vgsql.TermUUID, error) {
	span := r.Tracer.StartSpan("sparql.resolve_terms")
	defer span.Finish()

	keys = dedupKeys(keys)
	if shard, err := ShardKey(keys); err == nil {
		span.SetTag("term_batch", shard)
	}
	hits, err := r.Cache.GetBatch(keys)
	if err != nil {
		return nil, vgsql.CacheError.New(err.Error())
	}

	misses := make([]vgsql.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := hits[k]; !ok {
			misses = append(misses, k)
		}
	}

	if len(misses) > 0 {
		sqlText := BuildLookupSQL(r.Naming, r.Space, misses)
		rows, err := r.DB.QueryTermUUIDs(sqlText)
		if err != nil {
			return nil, vgsql.ExecutionError.New(errors.Wrap(err, "term lookup").Error())
		}
		found := make(map[vgsql.Key]vgsql.TermUUID, len(rows))
		for _, row := range rows {
			k := vgsql.Key{Text: row.Text, Kind: row.Kind}
			found[k] = row.ID
			hits[k] = row.ID
		}
		if len(found) > 0 {
			if err := r.Cache.PutBatch(found); err != nil {
				return nil, vgsql.CacheError.New(err.Error())
			}
		}
	}

	return hits, nil
}

// BuildLookupSQL builds the single batch lookup statement for a set of
// cache-miss keys (§4.3 step 3). A single key uses a direct equality
// predicate; more than one uses a VALUES-JOIN shape against the term table so
// the database can use the composite (text,kind) index instead of an OR
// chain.
func BuildLookupSQL(naming vgsql.TableNamingPolicy, space string, keys []vgsql.Key) string {
	table := naming.TableName(space, vgsql.TableTerm)
	if len(keys) == 1 {
		k := keys[0]
		return fmt.Sprintf(
			"SELECT term_text, term_type, term_uuid FROM %s WHERE term_text = %s AND term_type = %s",
			table, quoteLiteral(k.Text), quoteLiteral(string(rune(k.Kind))),
		)
	}

	rows := make([]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, fmt.Sprintf("(%s, %s)", quoteLiteral(k.Text), quoteLiteral(string(rune(k.Kind)))))
	}
	return fmt.Sprintf(
		"SELECT tt.term_text, tt.term_type, tt.term_uuid FROM %s tt "+
			"INNER JOIN (VALUES %s) AS keys(text, kind) "+
			"ON tt.term_text = keys.text AND tt.term_type = keys.kind",
		table, strings.Join(rows, ", "),
	)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func dedupKeys(keys []vgsql.Key) []vgsql.Key {
	seen := make(map[vgsql.Key]struct{}, len(keys))
	out := make([]vgsql.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
