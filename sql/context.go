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

import (
	"context"

	"github.com/sirupsen/logrus"
)

// TermCache is the narrow interface the compiler consumes for the C3 term
// cache contract. The storage backend behind it is an external collaborator
// (§1); internal/cache ships a default in-memory implementation and an
// optional boltdb-backed one.
type TermCache interface {
	GetBatch(keys []Key) (map[Key]TermUUID, error)
	PutBatch(map[Key]TermUUID) error
}

// TermResolver is what the pattern and path translators (C6/C7) actually call
// to turn bound terms into UUIDs; it wraps TermCache with the one-statement
// database fallback (internal/cache.Resolver is the default implementation).
// Kept distinct from TermCache so a translator never reaches around the cache
// to the database collaborator directly.
type TermResolver interface {
	ResolveTerms(keys []Key) (map[Key]TermUUID, error)
}

// AliasSource is the narrow interface C6/C7 use to mint SQL identifiers; it is
// satisfied by internal/alias.Generator, kept here as an interface so the sql
// package (which everything else depends on) never imports internal/alias.
type AliasSource interface {
	NextQuadAlias() string
	NextTermAlias(position string) string
	NextSubqueryAlias() string
	NextUnionAlias() string
	NextValuesAlias() string
}

// VariableAliasPlan is produced by the optional global optimizer (C11): a
// canonical quad alias assignment per variable, consulted by BGP planning
// before minting a fresh alias.
type VariableAliasPlan map[string]string

// SparqlContext carries everything a translation pass needs and is discarded
// at the end of one request (§3 "Lifecycle", §5).
type SparqlContext struct {
	Ctx context.Context

	SpaceID  string
	Aliases  AliasSource
	Cache    TermCache
	Resolver TermResolver
	Naming   TableNamingPolicy
	Logger   logrus.FieldLogger

	// DatatypeTableAvailable tells C5's DATATYPE() translation whether it may
	// join against the datatype table or must fall back to regex inference.
	DatatypeTableAvailable bool

	// AliasPlan is non-nil when the global optimizer (C11) has run.
	AliasPlan VariableAliasPlan

	Config Config
}

// Config holds the ambient, loadable configuration for a SparqlContext (see
// sparql/config.go for the YAML-backed loader).
type Config struct {
	GlobalPrefix string `yaml:"global_prefix"`

	// StrictUnmappedVariables upgrades UnmappedVariable from the
	// 'UNMAPPED_<name>' sentinel to a hard error (§7, §9 Open Question 1).
	StrictUnmappedVariables bool `yaml:"strict_unmapped_variables"`

	// AggressiveAliasPacking enables C11's round-robin alias-packing
	// heuristic for large connected BGPs (§4.11, §9 Open Question 3).
	AggressiveAliasPacking bool `yaml:"aggressive_alias_packing"`

	// AliasPackingThreshold is the variable-count threshold past which
	// AggressiveAliasPacking engages.
	AliasPackingThreshold int `yaml:"alias_packing_threshold"`

	// AliasPackingWidth bounds how many aliases a packed cluster may use.
	AliasPackingWidth int `yaml:"alias_packing_width"`

	// PropertyPathMaxDepth bounds the recursive CTE depth emitted for `*`/`+`
	// paths (§4.7).
	PropertyPathMaxDepth int `yaml:"property_path_max_depth"`
}

// DefaultConfig returns the configuration used when no file is loaded.
func DefaultConfig() Config {
	return Config{
		GlobalPrefix:           "vg",
		StrictUnmappedVariables: false,
		AggressiveAliasPacking: false,
		AliasPackingThreshold:  64,
		AliasPackingWidth:      8,
		PropertyPathMaxDepth:   10,
	}
}
