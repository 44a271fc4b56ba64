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
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/gorse-io/als/base/log"
	"github.com/gorse-io/als/common/floats"
	"github.com/gorse-io/als/dataset"
	"github.com/gorse-io/als/model/cf"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var transformCommand = &cobra.Command{
	Use:   "transform <model> <interactions>",
	Short: "Compute user embeddings for new interactions with fixed item factors.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := transformOptions{model: args[0], input: args[1]}
		opts.csv.Sep, _ = cmd.Flags().GetString("sep")
		opts.csv.Header, _ = cmd.Flags().GetBool("header")
		opts.jobs, _ = cmd.Flags().GetInt("jobs")
		opts.userOut, _ = cmd.Flags().GetString("user-out")
		if opts.userOut == "" {
			return errors.NotValidf("empty --user-out")
		}
		header, r, err := loadModelHeader(opts.model)
		if err != nil {
			return errors.Trace(err)
		}
		switch header.Precision {
		case "single":
			return runTransform[float32](cmd.Context(), header, r, opts)
		case "double":
			return runTransform[float64](cmd.Context(), header, r, opts)
		default:
			return errors.NotValidf("precision %q", header.Precision)
		}
	},
}

type transformOptions struct {
	model   string
	input   string
	csv     dataset.CSVOptions
	jobs    int
	userOut string
}

func runTransform[T floats.Float](ctx context.Context, header *modelHeader, r io.Reader, opts transformOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.Fit(uuid.NewString())
	m, err := cf.UnmarshalModel[T](r)
	if err != nil {
		return errors.Annotatef(err, "read model %s", opts.model)
	}
	opts.csv.ItemDict = dataset.NewFreqDictFromSlice(header.ItemIds)
	data, err := dataset.LoadCSV[T](opts.input, opts.csv)
	if err != nil {
		return errors.Trace(err)
	}
	x, err := data.ToCSR()
	if err != nil {
		return errors.Trace(err)
	}
	logger.Info("load interactions",
		zap.String("path", opts.input),
		zap.Int("n_users", x.Rows()),
		zap.Int("nnz", x.Nnz()),
		zap.Int("n_skipped", data.Skipped))
	users, err := m.Transform(ctx, x, cf.NewFitConfig().SetJobs(opts.jobs))
	if err != nil {
		return errors.Trace(err)
	}
	if err = saveEmbeddings(opts.userOut, data.UserDict.ToSlice(), users); err != nil {
		return errors.Trace(err)
	}
	logger.Info("save user embeddings", zap.String("path", opts.userOut))
	return nil
}
