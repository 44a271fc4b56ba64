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


package main

import (
	"github.com/gorse-io/als/config"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagBindings maps command line flags to configuration keys. Flags set on
// the command line override the configuration file and the environment.
var flagBindings = map[string]string{
	"jobs":           "fit.jobs",
	"verbose":        "fit.verbose",
	"top-k":          "fit.top_k",
	"test-ratio":     "fit.test_ratio",
	"seed":           "fit.seed",
	"rank":           "model.rank",
	"lambda":         "model.lambda",
	"n-iter":         "model.n_iter",
	"feedback":       "model.feedback",
	"solver":         "model.solver",
	"cg-steps":       "model.cg_steps",
	"non-negative":   "model.non_negative",
	"allow-negative": "model.allow_negative",
	"tol":            "model.tol",
	"init-std":       "model.init_std",
	"random-state":   "model.random_state",
	"precision":      "model.precision",
	"preprocess":     "model.preprocess",
	"alpha":          "model.alpha",
}

func addModelFlags(flagSet *pflag.FlagSet) {
	defaultConfig := config.GetDefaultConfig()
	flagSet.Int("verbose", defaultConfig.Fit.Verbose, "log and evaluate every this many iterations")
	flagSet.Int("top-k", defaultConfig.Fit.TopK, "length of evaluated recommendation lists")
	flagSet.Float64("test-ratio", defaultConfig.Fit.TestRatio, "ratio of interactions of every user held out for evaluation")
	flagSet.Int64("seed", defaultConfig.Fit.Seed, "random seed of the holdout split")
	flagSet.Int("rank", defaultConfig.Model.Rank, "rank of the factorization")
	flagSet.Float64("lambda", defaultConfig.Model.Lambda, "regularization strength")
	flagSet.Int("n-iter", defaultConfig.Model.NIter, "maximum number of alternations")
	flagSet.String("feedback", defaultConfig.Model.Feedback, "feedback type (implicit, explicit)")
	flagSet.String("solver", defaultConfig.Model.Solver, "solver of implicit feedback (cholesky, conjugate_gradient)")
	flagSet.Int("cg-steps", defaultConfig.Model.CGSteps, "conjugate gradient steps per update")
	flagSet.Bool("non-negative", defaultConfig.Model.NonNegative, "constrain factors to be non-negative")
	flagSet.Bool("allow-negative", defaultConfig.Model.AllowNegative, "accept negative implicit feedback as dislikes")
	flagSet.Float64("tol", defaultConfig.Model.Tol, "relative loss improvement to keep iterating")
	flagSet.Float64("init-std", defaultConfig.Model.InitStdDev, "standard deviation of initial factors")
	flagSet.Int64("random-state", defaultConfig.Model.RandomState, "random seed of initial factors")
	flagSet.String("precision", defaultConfig.Model.Precision, "precision of factors (single, double)")
	flagSet.String("preprocess", defaultConfig.Model.Preprocess, "transform of interactions (identity, log1p, normalize)")
	flagSet.Float64("alpha", defaultConfig.Model.Alpha, "scale of log1p preprocessing")
}

// loadConfig merges defaults, the configuration file, environment variables
// and command line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	for flag, key := range flagBindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Trace(err)
			}
		}
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "load config %s", path)
		}
	}
	conf, err := config.Unmarshal(v)
	return conf, errors.Trace(err)
}
