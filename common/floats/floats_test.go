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

package floats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	a := []float32{3, 2, 5, 6, 0, 0}
	Zero(a)
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, a)
}

func TestAdd(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{5, 6, 7, 8}
	Add(a, b)
	assert.Equal(t, []float64{6, 8, 10, 12}, a)
	assert.Panics(t, func() { Add([]float64{1}, nil) })
}

func TestSub(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	Sub(a, b)
	assert.Equal(t, []float32{-4, -4, -4, -4}, a)
	assert.Panics(t, func() { Sub([]float32{1}, nil) })
}

func TestSubTo(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	c := make([]float32, 4)
	SubTo(a, b, c)
	assert.Equal(t, []float32{-4, -4, -4, -4}, c)
	assert.Panics(t, func() { SubTo([]float32{1}, nil, nil) })
}

func TestMulConst(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	MulConst(a, 2)
	assert.Equal(t, []float64{2, 4, 6, 8}, a)
}

func TestMulConstTo(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := make([]float32, 4)
	MulConstTo(a, 3, b)
	assert.Equal(t, []float32{3, 6, 9, 12}, b)
	assert.Panics(t, func() { MulConstTo(a, 3, nil) })
}

func TestMulConstAdd(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{5, 6, 7, 8}
	MulConstAdd(a, 2, b)
	assert.Equal(t, []float64{7, 10, 13, 16}, b)
	assert.Panics(t, func() { MulConstAdd(a, 2, nil) })
}

func TestMulConstAddTo(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	c := make([]float32, 4)
	MulConstAddTo(a, 2, b, c)
	assert.Equal(t, []float32{7, 10, 13, 16}, c)
}

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	assert.Equal(t, float32(70), Dot(a, b))
	assert.Equal(t, 30.0, Norm2([]float64{1, 2, 3, 4}))
	assert.Panics(t, func() { Dot(a, nil) })
}

func TestScalar(t *testing.T) {
	assert.Equal(t, float32(3), Sqrt(float32(9)))
	assert.Equal(t, 3.0, Sqrt(9.0))
	assert.InDelta(t, math.Log1p(2), float64(Log1p(float32(2))), 1e-6)
	assert.Equal(t, math.Log1p(2), Log1p(2.0))
	assert.Equal(t, 2.0, Abs(-2.0))
}

func TestConvert(t *testing.T) {
	a := []float64{1.5, 2.5}
	b := make([]float32, 2)
	Convert(a, b)
	assert.Equal(t, []float32{1.5, 2.5}, b)
}

func TestMatrix(t *testing.T) {
	m := NewMatrix[float64](3, 2)
	assert.False(t, m.Empty())
	copy(m.Row(1), []float64{1, 2})
	assert.Equal(t, []float64{0, 0, 1, 2, 0, 0}, m.Data)
	assert.Equal(t, 2.0, m.At(1, 1))
	assert.Equal(t, 5.0, m.SquaredNorm())
	c := m.Clone()
	c.Row(0)[0] = 10
	assert.Equal(t, 0.0, m.At(0, 0))
	assert.True(t, Matrix[float32]{}.Empty())
}
