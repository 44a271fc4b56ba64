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

package cf

import (
	"bytes"
	"context"
	"testing"

	"github.com/gorse-io/als/model"
	"github.com/gorse-io/als/sparse"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalModel(t *testing.T) {
	x := sparse.FromDense(implicitScenario)
	m := NewALS[float64](model.Params{
		model.NFactors: 2,
		model.Reg:      0.05,
		model.Solver:   "cholesky",
		model.NEpochs:  5,
	})
	p, err := sparse.NewPreprocessor[float64](sparse.PreprocessLog1p, 2)
	require.NoError(t, err)
	m.SetPreprocess(p)
	_, _, err = m.FitTransform(context.Background(), x, nil)
	require.NoError(t, err)

	buf := bytes.NewBuffer(nil)
	require.NoError(t, MarshalModel(buf, m))
	data := buf.Bytes()
	tmp, err := UnmarshalModel[float64](bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, m.GetParams(), tmp.GetParams())
	assert.Equal(t, m.Components(), tmp.Components())
	assert.Equal(t, sparse.PreprocessLog1p, tmp.Preprocess().Name())
	assert.Equal(t, 2.0, tmp.Preprocess().Alpha())

	expected, err := m.Transform(context.Background(), x, nil)
	require.NoError(t, err)
	actual, err := tmp.Transform(context.Background(), x, nil)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)

	// precision mismatch
	_, err = UnmarshalModel[float32](bytes.NewReader(data))
	assert.True(t, errors.Is(err, errors.NotValid))
	// truncated stream
	_, err = UnmarshalModel[float64](bytes.NewReader(data[:len(data)-1]))
	assert.Error(t, err)
}

func TestMarshalModel_Unfitted(t *testing.T) {
	m := NewALS[float32](model.Params{model.NFactors: 3})
	buf := bytes.NewBuffer(nil)
	require.NoError(t, MarshalModel(buf, m))
	tmp, err := UnmarshalModel[float32](buf)
	require.NoError(t, err)
	assert.True(t, tmp.Invalid())
	assert.Equal(t, sparse.PreprocessIdentity, tmp.Preprocess().Name())
}

type scaleRows struct{}

func (scaleRows) Name() string { return sparse.PreprocessIdentity }

func (scaleRows) Alpha() float64 { return 0 }

func (scaleRows) Apply(x *sparse.CSR[float64]) *sparse.CSR[float64] {
	return x.Map(func(_ int, src, dst []float64) {
		for i := range src {
			dst[i] = 2 * src[i]
		}
	})
}

func TestMarshalModel_CustomPreprocessor(t *testing.T) {
	m := NewALS[float64](model.Params{model.NFactors: 2, model.NEpochs: 2})
	m.SetPreprocess(scaleRows{})
	_, _, err := m.FitTransform(context.Background(), sparse.FromDense(implicitScenario), nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	err = MarshalModel(&buf, m)
	assert.True(t, errors.Is(err, errors.NotValid), err)
}
