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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_OverridesAndDefaults(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(path, []byte(
		"global_prefix: custom\n"+
			"strict_unmapped_variables: true\n"+
			"property_path_max_depth: 25\n",
	), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(err)
	require.Equal("custom", cfg.GlobalPrefix)
	require.True(cfg.StrictUnmappedVariables)
	require.Equal(25, cfg.PropertyPathMaxDepth)
	// omitted fields keep their defaults.
	require.False(cfg.AggressiveAliasPacking)
	require.Equal(64, cfg.AliasPackingThreshold)
}

func TestLoadConfig_MissingFileReturnsError(t *testing.T) {
	require := require.New(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(err)
}
