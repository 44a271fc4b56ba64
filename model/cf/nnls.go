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
	"math"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/mat"
)

const (
	nnlsMaxIter   = 10000
	nnlsTolerance = 1e-3
)

// nnls solves min ½xᵀAx - bᵀx subject to x ≥ 0 for a symmetric positive
// definite A, that is the non-negative least squares problem given in
// normal-equation form (Lawson-Hanson active set, fast variant of Bro and de
// Jong). The search starts from x = 0.
type nnls struct {
	n       int
	maxIter int
	tol     float64
	passive *bitset.BitSet
	s       []float64
	w       []float64
	idx     []int
	subData []float64
	subB    []float64
	subX    []float64
	chol    mat.Cholesky
}

func newNNLS(n int) *nnls {
	return &nnls{
		n:       n,
		maxIter: nnlsMaxIter,
		tol:     nnlsTolerance,
		passive: bitset.New(uint(n)),
		s:       make([]float64, n),
		w:       make([]float64, n),
		idx:     make([]int, 0, n),
		subData: make([]float64, n*n),
		subB:    make([]float64, n),
		subX:    make([]float64, n),
	}
}

func (p *nnls) solve(a mat.Symmetric, b, x []float64) error {
	for i := range x {
		x[i] = 0
	}
	p.passive.ClearAll()
	copy(p.w, b)
	for iter := 0; iter < p.maxIter; {
		// the most violated dual constraint enters the passive set
		j, best := -1, p.tol
		for i := 0; i < p.n; i++ {
			if !p.passive.Test(uint(i)) && p.w[i] > best {
				j, best = i, p.w[i]
			}
		}
		if j < 0 {
			return nil
		}
		p.passive.Set(uint(j))
		for first := true; ; first = false {
			iter++
			if err := p.solvePassive(a, b); err != nil {
				return err
			}
			alpha, blocked := 1.0, false
			for i, e := p.passive.NextSet(0); e; i, e = p.passive.NextSet(i + 1) {
				if p.s[i] <= 0 {
					blocked = true
					if d := x[i] - p.s[i]; d > 0 {
						alpha = math.Min(alpha, x[i]/d)
					} else {
						alpha = 0
					}
				}
			}
			if !blocked {
				break
			}
			if first && p.s[j] <= 0 && x[j] == 0 {
				// no progress is possible along j
				p.passive.Clear(uint(j))
				return nil
			}
			for i := range x {
				x[i] += alpha * (p.s[i] - x[i])
			}
			for i, e := p.passive.NextSet(0); e; i, e = p.passive.NextSet(i + 1) {
				if x[i] <= 1e-12 {
					x[i] = 0
					p.passive.Clear(i)
				}
			}
			if iter >= p.maxIter {
				return nil
			}
		}
		copy(x, p.s)
		// w = b - A x
		for i := 0; i < p.n; i++ {
			p.w[i] = b[i]
			for k := 0; k < p.n; k++ {
				if x[k] != 0 {
					p.w[i] -= a.At(i, k) * x[k]
				}
			}
		}
	}
	return nil
}

// solvePassive solves the unconstrained problem restricted to the passive
// set. Entries outside the passive set are zero.
func (p *nnls) solvePassive(a mat.Symmetric, b []float64) error {
	p.idx = p.idx[:0]
	for i, e := p.passive.NextSet(0); e; i, e = p.passive.NextSet(i + 1) {
		p.idx = append(p.idx, int(i))
	}
	k := len(p.idx)
	sub := mat.NewSymDense(k, p.subData[:k*k])
	for r, i := range p.idx {
		p.subB[r] = b[i]
		for c := r; c < k; c++ {
			sub.SetSym(r, c, a.At(i, p.idx[c]))
		}
	}
	if ok := p.chol.Factorize(sub); !ok {
		return numericalFailuref("non-negative least squares: passive subproblem is not positive definite")
	}
	if err := p.chol.SolveVecTo(mat.NewVecDense(k, p.subX[:k]), mat.NewVecDense(k, p.subB[:k])); err != nil {
		return numericalFailuref("non-negative least squares: %v", err)
	}
	for i := range p.s {
		p.s[i] = 0
	}
	for r, i := range p.idx {
		p.s[i] = p.subX[r]
	}
	return nil
}
