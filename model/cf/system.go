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
	"github.com/gorse-io/als/common/floats"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// denseSystem is a rank × rank symmetric system A x = b solved in double
// precision. Only the upper triangle of A is written.
type denseSystem struct {
	rank int
	a    *mat.SymDense
	b    []float64
	x    []float64
	chol mat.Cholesky
	nnls *nnls
}

func newDenseSystem(rank int, nonNegative bool) *denseSystem {
	s := &denseSystem{
		rank: rank,
		a:    mat.NewSymDense(rank, nil),
		b:    make([]float64, rank),
		x:    make([]float64, rank),
	}
	if nonNegative {
		s.nnls = newNNLS(rank)
	}
	return s
}

// resetSystem sets A = base + reg·I and b = 0. A nil base is the zero matrix.
func resetSystem[T floats.Float](s *denseSystem, base []T, reg float64) {
	raw := s.a.RawSymmetric()
	for i := 0; i < s.rank; i++ {
		for j := i; j < s.rank; j++ {
			var v float64
			if base != nil {
				v = float64(base[i*s.rank+j])
			}
			if i == j {
				v += reg
			}
			raw.Data[i*raw.Stride+j] = v
		}
	}
	floats.Zero(s.b)
}

// addOuter updates A += alpha·y·yᵀ.
func addOuter[T floats.Float](s *denseSystem, y []T, alpha float64) {
	raw := s.a.RawSymmetric()
	for i := 0; i < s.rank; i++ {
		ay := alpha * float64(y[i])
		if ay == 0 {
			continue
		}
		row := raw.Data[i*raw.Stride : i*raw.Stride+s.rank]
		for j := i; j < s.rank; j++ {
			row[j] += ay * float64(y[j])
		}
	}
}

// addRHS updates b += beta·y.
func addRHS[T floats.Float](s *denseSystem, y []T, beta float64) {
	for i := range s.b {
		s.b[i] += beta * float64(y[i])
	}
}

// solve stores the solution in s.x. Non-negative systems are solved by NNLS.
func (s *denseSystem) solve() error {
	if s.nnls != nil {
		return errors.Trace(s.nnls.solve(s.a, s.b, s.x))
	}
	if ok := s.chol.Factorize(s.a); !ok {
		return numericalFailuref("cholesky factorization failed: matrix is not positive definite")
	}
	if err := s.chol.SolveVecTo(mat.NewVecDense(s.rank, s.x), mat.NewVecDense(s.rank, s.b)); err != nil {
		return numericalFailuref("ill-conditioned system: %v", err)
	}
	return nil
}

func storeSolution[T floats.Float](s *denseSystem, dst []T) {
	floats.Convert(s.x, dst)
}
