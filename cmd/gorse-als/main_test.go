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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/als/config"
	"github.com/gorse-io/als/dataset"
	"github.com/gorse-io/als/model/cf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const interactions = `user,item,value
u1,i1,5
u1,i3,1
u2,i2,3
u3,i1,2
u3,i3,4
u4,i2,1
`

func readLines(t *testing.T, path string) []string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestFitAndTransform(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(input, []byte(interactions), 0644))
	modelPath := filepath.Join(dir, "model.bin")
	usersPath := filepath.Join(dir, "users.csv")

	buf := bytes.NewBuffer(nil)
	rootCommand.SetOut(buf)
	rootCommand.SetErr(bytes.NewBuffer(nil))
	rootCommand.SetArgs([]string{"fit", input, "--header",
		"--rank", "2", "--solver", "cholesky", "--n-iter", "5", "--tol=-1",
		"-o", modelPath, "--user-out", usersPath})
	require.NoError(t, rootCommand.Execute())
	assert.Contains(t, strings.ToLower(buf.String()), "loss")
	lines := readLines(t, usersPath)
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "u1,"))
	assert.Len(t, strings.Split(lines[0], ","), 3)

	header, r, err := loadModelHeader(modelPath)
	require.NoError(t, err)
	assert.Equal(t, "double", header.Precision)
	assert.Equal(t, []string{"i1", "i3", "i2"}, header.ItemIds)
	m, err := cf.UnmarshalModel[float64](r)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Components().Rows)

	// unknown items are skipped
	input = filepath.Join(dir, "test.csv")
	require.NoError(t, os.WriteFile(input, []byte("v1,i2,1\nv1,i9,1\nv2,i1,3\n"), 0644))
	usersPath = filepath.Join(dir, "transformed.csv")
	rootCommand.SetArgs([]string{"transform", modelPath, input, "--header=false", "--user-out", usersPath})
	require.NoError(t, rootCommand.Execute())
	lines = readLines(t, usersPath)
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "v2,"))
}

func TestRunFit_Single(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(input, []byte(interactions), 0644))
	conf := config.GetDefaultConfig()
	conf.Model.Rank = 2
	conf.Model.NIter = 3
	conf.Model.Precision = "single"
	conf.Model.Preprocess = "log1p"
	conf.Fit.TestRatio = 0.5
	output := bytes.NewBuffer(nil)
	usersPath := filepath.Join(dir, "users.csv")
	err := runFit[float32](context.Background(), conf, fitOptions{
		input:    input,
		csv:      dataset.CSVOptions{Header: true},
		userOut:  usersPath,
		output:   output,
		progress: bytes.NewBuffer(nil),
	})
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(output.String()), "ndcg@10")
	assert.Len(t, readLines(t, usersPath), 4)
}

func TestRenderTrace(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, renderTrace(buf, nil))
	assert.Empty(t, buf.String())
	require.NoError(t, renderTrace(buf, []cf.TraceRecord{
		{Iter: 1, Name: "loss", Value: 2},
		{Iter: 1, Name: "map@10", Value: 0.5},
		{Iter: 2, Name: "loss", Value: 1.5},
	}))
	assert.Contains(t, buf.String(), "1.5")
	assert.Contains(t, buf.String(), "0.5")
}
