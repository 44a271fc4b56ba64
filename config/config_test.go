// Copyright 2020 gorse Project Authors
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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/als/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	data, err := os.ReadFile("config.toml.template")
	require.NoError(t, err)
	v := New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(string(data))))
	config, err := Unmarshal(v)
	require.NoError(t, err)
	// the template documents the defaults
	assert.Equal(t, GetDefaultConfig(), config)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
[model]
rank = 32
lambda = 0.1
feedback = "explicit"
solver = "cholesky"
non_negative = true

[fit]
jobs = 4
test_ratio = 0.2
`), 0644)
	require.NoError(t, err)
	config, err := LoadConfig(path)
	require.NoError(t, err)
	// [model]
	assert.Equal(t, 32, config.Model.Rank)
	assert.Equal(t, 0.1, config.Model.Lambda)
	assert.Equal(t, "explicit", config.Model.Feedback)
	assert.Equal(t, "cholesky", config.Model.Solver)
	assert.True(t, config.Model.NonNegative)
	assert.Equal(t, 10, config.Model.NIter)
	assert.Equal(t, 3, config.Model.CGSteps)
	// [fit]
	assert.Equal(t, 4, config.Fit.Jobs)
	assert.Equal(t, 0.2, config.Fit.TestRatio)
	assert.Equal(t, 10, config.Fit.TopK)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("GORSE_ALS_MODEL_RANK", "16")
	t.Setenv("GORSE_ALS_MODEL_SOLVER", "cholesky")
	t.Setenv("GORSE_ALS_FIT_JOBS", "2")
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 16, config.Model.Rank)
	assert.Equal(t, "cholesky", config.Model.Solver)
	assert.Equal(t, 2, config.Fit.Jobs)
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[model]\nranks = 3\n"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, GetDefaultConfig().Validate())

	config := GetDefaultConfig()
	config.Model.Rank = 0
	config.Model.Solver = "qr"
	config.Fit.TestRatio = 1
	err := config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "value of `model.rank` in config must be greater than 0")
	assert.Contains(t, err.Error(), "value of `model.solver` in config must be one of [cholesky,conjugate_gradient]")
	assert.Contains(t, err.Error(), "value of `fit.test_ratio` in config must be less than 1")

	config = GetDefaultConfig()
	config.Model.Precision = "single"
	config.Model.Feedback = "explicit"
	err = config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "model.precision")

	config = GetDefaultConfig()
	config.Model.Preprocess = "log1p"
	config.Model.Alpha = 0
	assert.True(t, errors.Is(config.Validate(), errors.NotValid))
}

func TestParams(t *testing.T) {
	config := GetDefaultConfig()
	params := config.Model.Params()
	assert.Equal(t, 10, params.GetInt(model.NFactors, 0))
	assert.Equal(t, 0.01, params.GetFloat64(model.Reg, 0))
	assert.Equal(t, "conjugate_gradient", params.GetString(model.Solver, ""))
	assert.Equal(t, int64(0), params.GetInt64(model.RandomState, -1))

	config.Model.Feedback = "explicit"
	params = config.Model.Params()
	assert.NotContains(t, params, model.Solver)
	assert.NotContains(t, params, model.CGSteps)

	fitConfig := config.Fit.ToFitConfig()
	assert.Equal(t, 1, fitConfig.Jobs)
	assert.Equal(t, 1, fitConfig.Verbose)
	assert.Equal(t, 10, fitConfig.TopK)
}
