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
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorse-io/als/base/encoding"
	"github.com/gorse-io/als/base/log"
	"github.com/gorse-io/als/common/floats"
	"github.com/gorse-io/als/config"
	"github.com/gorse-io/als/dataset"
	"github.com/gorse-io/als/model/cf"
	"github.com/gorse-io/als/sparse"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fitCommand = &cobra.Command{
	Use:   "fit <interactions>",
	Short: "Fit item factors to user,item[,value] interactions.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		opts := fitOptions{input: args[0]}
		opts.csv.Sep, _ = cmd.Flags().GetString("sep")
		opts.csv.Header, _ = cmd.Flags().GetBool("header")
		opts.modelOut, _ = cmd.Flags().GetString("model-out")
		opts.userOut, _ = cmd.Flags().GetString("user-out")
		opts.output = cmd.OutOrStdout()
		opts.progress = cmd.ErrOrStderr()
		if conf.Model.Precision == "single" {
			return runFit[float32](cmd.Context(), conf, opts)
		}
		return runFit[float64](cmd.Context(), conf, opts)
	},
}

func init() {
	addModelFlags(fitCommand.Flags())
	fitCommand.Flags().StringP("model-out", "o", "", "path of the fitted model")
}

type fitOptions struct {
	input    string
	csv      dataset.CSVOptions
	modelOut string
	userOut  string
	output   io.Writer
	progress io.Writer
}

func runFit[T floats.Float](ctx context.Context, conf *config.Config, opts fitOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.Fit(uuid.NewString())
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
		zap.Int("n_items", x.Cols()),
		zap.Int("nnz", x.Nnz()))

	preprocess, err := sparse.NewPreprocessor[T](conf.Model.Preprocess, conf.Model.Alpha)
	if err != nil {
		return errors.Trace(err)
	}
	m := cf.NewALS[T](conf.Model.Params())
	m.SetPreprocess(preprocess)
	fitConfig := conf.Fit.ToFitConfig()
	train := x
	if conf.Fit.TestRatio > 0 {
		var test *sparse.CSR[T]
		train, test, err = dataset.Split(x, conf.Fit.TestRatio, conf.Fit.Seed)
		if err != nil {
			return errors.Trace(err)
		}
		fitConfig.SetValidation(cf.Targets(test))
		logger.Info("hold out interactions", zap.Int("n_train", train.Nnz()), zap.Int("n_test", test.Nnz()))
	}

	bar := progressbar.NewOptions(conf.Model.NIter,
		progressbar.OptionSetWriter(opts.progress),
		progressbar.OptionSetDescription("fit"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())
	fitConfig.SetOnIteration(func(record cf.TraceRecord) {
		if record.Name == "loss" {
			bar.Describe(fmt.Sprintf("loss %.6g", record.Value))
			_ = bar.Add(1)
		}
	})
	users, trace, err := m.FitTransform(ctx, train, fitConfig)
	_ = bar.Finish()
	if err != nil {
		return errors.Trace(err)
	}
	logger.Info("fit complete", zap.String("state", m.State().String()))
	if err = renderTrace(opts.output, trace); err != nil {
		return errors.Trace(err)
	}

	if opts.modelOut != "" {
		if err = saveModel(opts.modelOut, data.ItemDict.ToSlice(), m); err != nil {
			return errors.Trace(err)
		}
		logger.Info("save model", zap.String("path", opts.modelOut))
	}
	if opts.userOut != "" {
		if err = saveEmbeddings(opts.userOut, data.UserDict.ToSlice(), users); err != nil {
			return errors.Trace(err)
		}
		logger.Info("save user embeddings", zap.String("path", opts.userOut))
	}
	return nil
}

// renderTrace prints one row per iteration with the loss followed by scores.
func renderTrace(w io.Writer, trace []cf.TraceRecord) error {
	if len(trace) == 0 {
		return nil
	}
	names := lo.Uniq(lo.Map(trace, func(r cf.TraceRecord, _ int) string { return r.Name }))
	groups := lo.GroupBy(trace, func(r cf.TraceRecord) int { return r.Iter })
	iters := lo.Uniq(lo.Map(trace, func(r cf.TraceRecord, _ int) int { return r.Iter }))
	rows := lo.Map(iters, func(iter int, _ int) []string {
		values := lo.SliceToMap(groups[iter], func(r cf.TraceRecord) (string, float64) { return r.Name, r.Value })
		return append([]string{strconv.Itoa(iter)}, lo.Map(names, func(name string, _ int) string {
			if v, ok := values[name]; ok {
				return encoding.FormatFloat(v)
			}
			return ""
		})...)
	})
	table := tablewriter.NewWriter(w)
	table.Header(lo.ToAnySlice(append([]string{"iter"}, names...))...)
	if err := table.Bulk(rows); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(table.Render())
}
