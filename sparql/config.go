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

// Package sparql implements C10, the per-request orchestrator: parsing
// handoff, SparqlContext construction, and dispatch to the translation and
// result-shaping stages.
package sparql

import (
	"os"

	"gopkg.in/yaml.v2"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

// LoadConfig reads a YAML configuration file into a vgsql.Config, defaulting
// any field the file omits. The teacher's engine.go takes its Config as a
// plain in-memory struct; this loader is the ambient, file-backed form of it.
func LoadConfig(path string) (vgsql.Config, error) {
	cfg := vgsql.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
