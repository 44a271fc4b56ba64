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
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/als/model"
	"github.com/gorse-io/als/model/cf"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding the
// configuration, e.g. GORSE_ALS_MODEL_RANK.
const EnvPrefix = "GORSE_ALS"

// Config is the configuration for fitting a factorization.
type Config struct {
	Model ModelConfig `mapstructure:"model"`
	Fit   FitConfig   `mapstructure:"fit"`
}

// ModelConfig is the configuration of the ALS model.
type ModelConfig struct {
	Rank          int     `mapstructure:"rank" validate:"gt=0"`
	Lambda        float64 `mapstructure:"lambda" validate:"gte=0"`
	NIter         int     `mapstructure:"n_iter" validate:"gt=0"`
	Feedback      string  `mapstructure:"feedback" validate:"oneof=implicit explicit"`
	Solver        string  `mapstructure:"solver" validate:"oneof=cholesky conjugate_gradient"`
	CGSteps       int     `mapstructure:"cg_steps" validate:"gt=0"`
	NonNegative   bool    `mapstructure:"non_negative"`
	AllowNegative bool    `mapstructure:"allow_negative"`
	Tol           float64 `mapstructure:"tol"`
	InitStdDev    float64 `mapstructure:"init_std" validate:"gte=0"`
	RandomState   int64   `mapstructure:"random_state"`
	Precision     string  `mapstructure:"precision" validate:"oneof=single double"`
	Preprocess    string  `mapstructure:"preprocess" validate:"oneof=identity log1p normalize"`
	Alpha         float64 `mapstructure:"alpha" validate:"gte=0"`
}

// FitConfig is the configuration of a fit run.
type FitConfig struct {
	Jobs      int     `mapstructure:"jobs" validate:"gt=0"`
	Verbose   int     `mapstructure:"verbose" validate:"gt=0"`
	TopK      int     `mapstructure:"top_k" validate:"gt=0"`
	TestRatio float64 `mapstructure:"test_ratio" validate:"gte=0,lt=1"`
	Seed      int64   `mapstructure:"seed"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Rank:       10,
			Lambda:     0.01,
			NIter:      10,
			Feedback:   "implicit",
			Solver:     "conjugate_gradient",
			CGSteps:    3,
			Tol:        0.001,
			InitStdDev: 0.01,
			Precision:  "double",
			Preprocess: "identity",
			Alpha:      1,
		},
		Fit: FitConfig{
			Jobs:    1,
			Verbose: 1,
			TopK:    10,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [model]
	v.SetDefault("model.rank", defaultConfig.Model.Rank)
	v.SetDefault("model.lambda", defaultConfig.Model.Lambda)
	v.SetDefault("model.n_iter", defaultConfig.Model.NIter)
	v.SetDefault("model.feedback", defaultConfig.Model.Feedback)
	v.SetDefault("model.solver", defaultConfig.Model.Solver)
	v.SetDefault("model.cg_steps", defaultConfig.Model.CGSteps)
	v.SetDefault("model.non_negative", defaultConfig.Model.NonNegative)
	v.SetDefault("model.allow_negative", defaultConfig.Model.AllowNegative)
	v.SetDefault("model.tol", defaultConfig.Model.Tol)
	v.SetDefault("model.init_std", defaultConfig.Model.InitStdDev)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.precision", defaultConfig.Model.Precision)
	v.SetDefault("model.preprocess", defaultConfig.Model.Preprocess)
	v.SetDefault("model.alpha", defaultConfig.Model.Alpha)
	// [fit]
	v.SetDefault("fit.jobs", defaultConfig.Fit.Jobs)
	v.SetDefault("fit.verbose", defaultConfig.Fit.Verbose)
	v.SetDefault("fit.top_k", defaultConfig.Fit.TopK)
	v.SetDefault("fit.test_ratio", defaultConfig.Fit.TestRatio)
	v.SetDefault("fit.seed", defaultConfig.Fit.Seed)
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from a toml or yaml file. An empty path
// loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return Unmarshal(v)
}

// Unmarshal decodes and validates the configuration held by v. Unknown keys
// are rejected.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	}); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Params converts the model configuration to hyper-parameters. Solver
// settings only apply to implicit feedback and are left out otherwise.
func (c *ModelConfig) Params() model.Params {
	params := model.Params{
		model.NFactors:       c.Rank,
		model.Reg:            c.Lambda,
		model.NEpochs:        c.NIter,
		model.Feedback:       c.Feedback,
		model.Solver:         c.Solver,
		model.CGSteps:        c.CGSteps,
		model.NonNegative:    c.NonNegative,
		model.AllowNegative:  c.AllowNegative,
		model.ConvergenceTol: c.Tol,
		model.InitStdDev:     c.InitStdDev,
		model.RandomState:    c.RandomState,
	}
	if c.Feedback == "explicit" {
		delete(params, model.Solver)
		delete(params, model.CGSteps)
	}
	return params
}

// ToFitConfig converts the fit configuration. Validation targets are set by
// the caller after splitting the data.
func (c *FitConfig) ToFitConfig() *cf.FitConfig {
	return cf.NewFitConfig().
		SetJobs(c.Jobs).
		SetVerbose(c.Verbose).
		SetTopK(c.TopK)
}
