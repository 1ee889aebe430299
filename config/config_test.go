// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/factorize/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	config, err := LoadConfig("config.toml.template")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
}

func TestSetDefault(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[data]
ratings_path = "ratings.csv"

[training]
n_factors = 4
reg = 0.5
n_epochs = 7
random_state = 42
jobs = 2
pre_update_user = true

[output]
dir = "out"
example_users = [1, 2, 3]
dump_factors = true
`), 0644))
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ratings.csv", config.Data.RatingsPath)
	assert.Equal(t, "ratings", config.Data.SQLiteTable)
	assert.Equal(t, 4, config.Training.NFactors)
	assert.Equal(t, 0.5, config.Training.Reg)
	assert.Equal(t, 0.01, config.Training.Lr)
	assert.Equal(t, 7, config.Training.NEpochs)
	assert.Equal(t, int64(42), config.Training.RandomState)
	assert.Equal(t, 2, config.Training.Jobs)
	assert.True(t, config.Training.PreUpdateUser)
	assert.Equal(t, "out", config.Output.Dir)
	assert.Equal(t, 5, config.Output.TopN)
	assert.Equal(t, []int{1, 2, 3}, config.Output.ExampleUsers)
	assert.True(t, config.Output.DumpFactors)

	assert.Equal(t, model.Params{
		model.NFactors:      4,
		model.Reg:           0.5,
		model.Lr:            0.01,
		model.NEpochs:       7,
		model.RandomState:   int64(42),
		model.PreUpdateUser: true,
	}, config.Training.Params())
}

func TestBindEnv(t *testing.T) {
	t.Setenv("FACTORIZE_RATINGS_PATH", "<ratings_path>")
	t.Setenv("FACTORIZE_N_FACTORS", "16")
	t.Setenv("FACTORIZE_REG", "0.2")
	t.Setenv("FACTORIZE_JOBS", "8")
	t.Setenv("FACTORIZE_OUTPUT_DIR", "<output_dir>")
	t.Setenv("FACTORIZE_EXAMPLE_USERS", "0,3,7")
	t.Setenv("FACTORIZE_SQLITE_PATH", "<sqlite_path>")
	t.Setenv("FACTORIZE_SQLITE_TABLE", "<sqlite_table>")
	t.Setenv("FACTORIZE_LR", "0.05")
	t.Setenv("FACTORIZE_N_EPOCHS", "12")
	t.Setenv("FACTORIZE_RANDOM_STATE", "99")
	t.Setenv("FACTORIZE_VERBOSE", "3")
	t.Setenv("FACTORIZE_PRE_UPDATE_USER", "true")
	t.Setenv("FACTORIZE_PREVIEW_ROWS", "2")
	t.Setenv("FACTORIZE_TOP_N", "7")
	t.Setenv("FACTORIZE_DUMP_FACTORS", "true")

	config, err := LoadConfig("config.toml.template")
	require.NoError(t, err)
	assert.Equal(t, "<ratings_path>", config.Data.RatingsPath)
	assert.Equal(t, 16, config.Training.NFactors)
	assert.Equal(t, 0.2, config.Training.Reg)
	assert.Equal(t, 8, config.Training.Jobs)
	assert.Equal(t, "<output_dir>", config.Output.Dir)
	assert.Equal(t, []int{0, 3, 7}, config.Output.ExampleUsers)
	assert.Equal(t, "<sqlite_path>", config.Data.SQLitePath)
	assert.Equal(t, "<sqlite_table>", config.Data.SQLiteTable)
	assert.Equal(t, 0.05, config.Training.Lr)
	assert.Equal(t, 12, config.Training.NEpochs)
	assert.Equal(t, int64(99), config.Training.RandomState)
	assert.Equal(t, 3, config.Training.Verbose)
	assert.True(t, config.Training.PreUpdateUser)
	assert.Equal(t, 2, config.Output.PreviewRows)
	assert.Equal(t, 7, config.Output.TopN)
	assert.True(t, config.Output.DumpFactors)
}

func TestBindEnvDefault(t *testing.T) {
	t.Setenv("FACTORIZE_N_FACTORS", "16")
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 16, config.Training.NFactors)
	// check default values
	assert.Equal(t, 30, config.Training.NEpochs)
	assert.Equal(t, 5, config.Output.TopN)
	assert.False(t, config.Output.DumpFactors)
}

func TestValidate(t *testing.T) {
	config := GetDefaultConfig()
	assert.NoError(t, config.Validate())

	config.Training.NFactors = 0
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Training.Reg = -1
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Output.ExampleUsers = []int{0, -1}
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Output.ExampleUsers = []int{math.MaxInt32}
	assert.NoError(t, config.Validate())
	config.Output.ExampleUsers = []int{math.MaxInt32 + 1}
	assert.Error(t, config.Validate())

	config = GetDefaultConfig()
	config.Data.RatingsPath = ""
	assert.Error(t, config.Validate())
	config.Data.SQLitePath = "ratings.db"
	assert.NoError(t, config.Validate())
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[training]\nn_epochs = 0\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
