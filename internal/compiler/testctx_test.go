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
	"github.com/dolthub/sparql-compiler/internal/alias"
	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// fakeResolver is an in-memory TermResolver stand-in: every (text,kind) key
// maps to a deterministic UUID derived from its position in the map, so
// tests can assert on concrete UUID strings without a database.
type fakeResolver struct {
	known map[vgsql.Key]vgsql.TermUUID
}

func newFakeResolver(keys ...vgsql.Key) *fakeResolver {
	r := &fakeResolver{known: map[vgsql.Key]vgsql.TermUUID{}}
	for _, k := range keys {
		r.known[k] = vgsql.NewTermUUID()
	}
	return r
}

func (r *fakeResolver) ResolveTerms(keys []vgsql.Key) (map[vgsql.Key]vgsql.TermUUID, error) {
	out := map[vgsql.Key]vgsql.TermUUID{}
	for _, k := range keys {
		if id, ok := r.known[k]; ok {
			out[k] = id
		}
	}
	return out, nil
}

func newTestTranslator(resolver vgsql.TermResolver) *Translator {
	ctx := &vgsql.SparqlContext{
		SpaceID:                "test",
		Aliases:                alias.New(),
		Resolver:               resolver,
		Naming:                 vgsql.TableNamingPolicy{GlobalPrefix: "vg"},
		DatatypeTableAvailable: true,
		Config:                 vgsql.DefaultConfig(),
	}
	return New(ctx)
}
