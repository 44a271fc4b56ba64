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
	"math/rand"
	"testing"

	"github.com/gorse-io/als/common/blas"
	"github.com/gorse-io/als/common/floats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rng *rand.Rand, rows, cols int) floats.Matrix[float64] {
	m := floats.NewMatrix[float64](rows, cols)
	for i := range m.Data {
		m.Data[i] = rng.NormFloat64()
	}
	return m
}

func TestRidge_ZeroObservations(t *testing.T) {
	fixed := randomMatrix(rand.New(rand.NewSource(0)), 4, 3)
	dst := []float64{1, 2, 3}
	k := &ridgeKernel[float64]{reg: 0.1}
	require.NoError(t, k.update(newWorkspace[float64](3, false), fixed, nil, nil, dst))
	assert.Equal(t, []float64{0, 0, 0}, dst)

	// no observations needs no solve, even without regularization
	dst = []float64{1, 2, 3}
	k = &ridgeKernel[float64]{reg: 0}
	require.NoError(t, k.update(newWorkspace[float64](3, true), fixed, nil, nil, dst))
	assert.Equal(t, []float64{0, 0, 0}, dst)
}

func TestRidge_LeastSquares(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	fixed := randomMatrix(rng, 6, 3)
	indices := []int32{0, 2, 3, 5}
	values := []float64{1.5, -0.5, 2, 1}
	reg := 0.1

	// (Y_nnzᵀ Y_nnz + λI) w = Y_nnzᵀ r
	y := mat.NewDense(len(indices), 3, nil)
	for n, i := range indices {
		y.SetRow(n, fixed.Row(int(i)))
	}
	var a mat.Dense
	a.Mul(y.T(), y)
	for i := 0; i < 3; i++ {
		a.Set(i, i, a.At(i, i)+reg)
	}
	var b, expected mat.VecDense
	b.MulVec(y.T(), mat.NewVecDense(len(values), values))
	require.NoError(t, expected.SolveVec(&a, &b))

	dst := make([]float64, 3)
	k := &ridgeKernel[float64]{reg: reg}
	require.NoError(t, k.update(newWorkspace[float64](3, false), fixed, indices, values, dst))
	assert.InDeltaSlice(t, expected.RawVector().Data, dst, 1e-10)
}

func TestRidge_Singular(t *testing.T) {
	fixed := floats.NewMatrix[float64](2, 2)
	dst := make([]float64, 2)
	k := &ridgeKernel[float64]{reg: 0}
	err := k.update(newWorkspace[float64](2, false), fixed, []int32{0}, []float64{1}, dst)
	assert.ErrorIs(t, err, ErrNumericalFailure)
}

func TestRidge_NonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	fixed := randomMatrix(rng, 8, 4)
	indices := []int32{0, 1, 2, 3, 4, 5, 6, 7}
	values := []float64{1, -2, 3, -1, 0.5, 2, -3, 1}
	dst := make([]float64, 4)
	k := &ridgeKernel[float64]{reg: 0.1}
	require.NoError(t, k.update(newWorkspace[float64](4, true), fixed, indices, values, dst))
	for _, v := range dst {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

// implicitSystem materializes the implicit system of one entity.
func implicitSystem(gram []float64, fixed floats.Matrix[float64], indices []int32, values []float64) (*mat.Dense, *mat.VecDense) {
	rank := fixed.Cols
	a := mat.NewDense(rank, rank, append([]float64(nil), gram...))
	b := mat.NewVecDense(rank, nil)
	for n, i := range indices {
		y := mat.NewVecDense(rank, append([]float64(nil), fixed.Row(int(i))...))
		var outer mat.Dense
		outer.Outer(values[n], y, y)
		a.Add(a, &outer)
		b.AddScaledVec(b, 1+values[n], y)
	}
	return a, b
}

func TestImplicitKernels(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	rank := 4
	fixed := randomMatrix(rng, 10, rank)
	gram := make([]float64, rank*rank)
	blas.Gram(fixed, 0.1, gram)
	indices := []int32{1, 4, 7}
	values := []float64{2, 5, 1}

	a, b := implicitSystem(gram, fixed, indices, values)
	var expected mat.VecDense
	require.NoError(t, expected.SolveVec(a, b))

	// direct solve
	dst := make([]float64, rank)
	w := newWorkspace[float64](rank, false)
	require.NoError(t, (&choleskyKernel[float64]{}).update(w, gram, fixed, indices, values, dst))
	assert.InDeltaSlice(t, expected.RawVector().Data, dst, 1e-9)

	// conjugate gradient reaches the exact solution within rank steps
	dst = make([]float64, rank)
	require.NoError(t, (&cgKernel[float64]{steps: 10}).update(w, gram, fixed, indices, values, dst))
	assert.InDeltaSlice(t, expected.RawVector().Data, dst, 1e-4)

	// a warm start at the solution stays there
	require.NoError(t, (&cgKernel[float64]{steps: 3}).update(w, gram, fixed, indices, values, dst))
	assert.InDeltaSlice(t, expected.RawVector().Data, dst, 1e-4)
}

func TestImplicitKernel_Selection(t *testing.T) {
	assert.IsType(t, &cgKernel[float64]{}, newImplicitKernel[float64](SolverConjugateGradient, 3, false))
	assert.IsType(t, &choleskyKernel[float64]{}, newImplicitKernel[float64](SolverConjugateGradient, 3, true))
	assert.IsType(t, &choleskyKernel[float32]{}, newImplicitKernel[float32](SolverCholesky, 3, false))
}

func TestImplicitKernel_NoObservations(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	fixed := randomMatrix(rng, 5, 3)
	gram := make([]float64, 9)
	blas.Gram(fixed, 0.1, gram)
	w := newWorkspace[float64](3, false)
	dst := []float64{1, 1, 1}
	require.NoError(t, (&choleskyKernel[float64]{}).update(w, gram, fixed, nil, nil, dst))
	assert.InDeltaSlice(t, []float64{0, 0, 0}, dst, 1e-12)
	dst = []float64{0, 0, 0}
	require.NoError(t, (&cgKernel[float64]{steps: 3}).update(w, gram, fixed, nil, nil, dst))
	assert.Equal(t, []float64{0, 0, 0}, dst)
}

func TestCG_Breakdown(t *testing.T) {
	fixed := floats.Matrix[float64]{Rows: 1, Cols: 2, Data: []float64{1, 0}}
	// A = -I + y yᵀ = diag(0, -1), b = (2, 0)
	gram := []float64{-1, 0, 0, -1}
	dst := make([]float64, 2)
	err := (&cgKernel[float64]{steps: 3}).update(newWorkspace[float64](2, false), gram, fixed, []int32{0}, []float64{1}, dst)
	assert.ErrorIs(t, err, ErrNumericalFailure)
}

func TestCholesky_NotPositiveDefinite(t *testing.T) {
	fixed := floats.NewMatrix[float64](2, 2)
	gram := make([]float64, 4)
	dst := make([]float64, 2)
	err := (&choleskyKernel[float64]{}).update(newWorkspace[float64](2, false), gram, fixed, []int32{0}, []float64{1}, dst)
	assert.ErrorIs(t, err, ErrNumericalFailure)
}

func TestImplicitLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	rank := 3
	reg := 0.5
	fixed := randomMatrix(rng, 6, rank)
	gram := make([]float64, rank*rank)
	blas.Gram(fixed, reg, gram)
	indices := []int32{0, 3}
	values := []float64{4, 1}
	x := []float64{0.3, -0.2, 0.1}

	// Σ over all columns of c (p - s)² + λ‖x‖²
	var expected float64
	for i := 0; i < fixed.Rows; i++ {
		s := floats.Dot(x, fixed.Row(i))
		c, p := 1.0, 0.0
		for n, j := range indices {
			if int(j) == i {
				c, p = 1+values[n], 1
			}
		}
		expected += c * (p - s) * (p - s)
	}
	expected += reg * floats.Norm2(x)
	w := newWorkspace[float64](rank, false)
	assert.InDelta(t, expected, implicitLoss(w, gram, fixed, indices, values, x), 1e-12)
}

func TestImplicitKernel_Float32(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	rank := 3
	fixed64 := randomMatrix(rng, 6, rank)
	fixed32 := floats.NewMatrix[float32](6, rank)
	floats.Convert(fixed64.Data, fixed32.Data)
	gram64 := make([]float64, rank*rank)
	gram32 := make([]float32, rank*rank)
	blas.Gram(fixed64, 0.1, gram64)
	blas.Gram(fixed32, 0.1, gram32)

	dst64 := make([]float64, rank)
	dst32 := make([]float32, rank)
	require.NoError(t, (&choleskyKernel[float64]{}).update(newWorkspace[float64](rank, false), gram64, fixed64, []int32{0, 2}, []float64{1, 3}, dst64))
	require.NoError(t, (&choleskyKernel[float32]{}).update(newWorkspace[float32](rank, false), gram32, fixed32, []int32{0, 2}, []float32{1, 3}, dst32))
	for i := range dst64 {
		assert.InDelta(t, dst64[i], float64(dst32[i]), 1e-4)
	}
}
