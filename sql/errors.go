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

package sql

import "gopkg.in/src-d/go-errors.v1"

// Error kinds (§7). UnknownTerm, UnmappedVariable, and InvalidRegex are recovered
// locally by the translator; the rest are surfaced to the caller unchanged.
var (
	// ParseError is raised by the external SPARQL parser and surfaced unchanged.
	ParseError = errors.NewKind("parse error: %s")

	// UnsupportedFeature marks an algebra or expression node this compiler does
	// not translate.
	UnsupportedFeature = errors.NewKind("unsupported feature: %s")

	// InvalidTerm marks a malformed IRI, literal, or unknown term kind.
	InvalidTerm = errors.NewKind("invalid term: %s")

	// UnknownTerm marks a bound term absent from the term table. Recovered
	// locally by emitting `1=0`.
	UnknownTerm = errors.NewKind("term not found: %s")

	// UnmappedVariable marks a variable referenced by an expression with no
	// mapping from the surrounding pattern.
	UnmappedVariable = errors.NewKind("unmapped variable: %s")

	// InvalidRegex marks a compile-time-known regex that failed to compile.
	InvalidRegex = errors.NewKind("invalid regex %q: %s")

	// ScopeError marks a generated fragment that would reference an alias not
	// in scope. Callers should not attempt to recover from this; it indicates
	// a translator bug.
	ScopeError = errors.NewKind("scope error: alias %q is not declared in this scope")

	// ExecutionError wraps a failure surfaced from the database.
	ExecutionError = errors.NewKind("execution error: %s")

	// CacheError wraps a transport error from the term cache.
	CacheError = errors.NewKind("cache error: %s")
)
