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

	"github.com/gorse-io/als/common/blas"
	"github.com/gorse-io/als/common/floats"
)

// cgTolerance is the squared residual norm below which conjugate gradient
// stops early.
const cgTolerance = 1e-10

// workspace holds the scratch buffers of one worker.
type workspace[T floats.Float] struct {
	sys *denseSystem
	r   []T
	p   []T
	ap  []T
	tmp []T
}

func newWorkspace[T floats.Float](rank int, nonNegative bool) *workspace[T] {
	return &workspace[T]{
		sys: newDenseSystem(rank, nonNegative),
		r:   make([]T, rank),
		p:   make([]T, rank),
		ap:  make([]T, rank),
		tmp: make([]T, rank),
	}
}

// implicitKernel updates one factor under the weighted implicit feedback
// objective. Given the gram matrix G = YᵀY + λI of the fixed side, the
// factor of an entity with observations (i, w_i) solves
//
//	(G + Σ |w_i| y_i y_iᵀ) x = Σ_{w_i > 0} (1 + w_i) y_i
//
// Positive entries are preferences with confidence 1 + w, negative entries
// (when allowed) are dislikes with confidence 1 + |w|.
type implicitKernel[T floats.Float] interface {
	update(w *workspace[T], gram []T, fixed floats.Matrix[T], indices []int32, values []T, dst []T) error
}

func newImplicitKernel[T floats.Float](solver Solver, cgSteps int, nonNegative bool) implicitKernel[T] {
	if solver == SolverConjugateGradient && !nonNegative {
		return &cgKernel[T]{steps: cgSteps}
	}
	// a projected conjugate gradient iterate is not a constrained solution,
	// so non-negative updates always solve the materialized system
	return &choleskyKernel[T]{}
}

func confidence[T floats.Float](v T) (conf, pref float64) {
	if v > 0 {
		return float64(v), 1
	}
	return math.Abs(float64(v)), 0
}

type choleskyKernel[T floats.Float] struct{}

func (k *choleskyKernel[T]) update(w *workspace[T], gram []T, fixed floats.Matrix[T], indices []int32, values []T, dst []T) error {
	resetSystem(w.sys, gram, 0)
	for n, i := range indices {
		y := fixed.Row(int(i))
		conf, pref := confidence(values[n])
		if conf != 0 {
			addOuter(w.sys, y, conf)
		}
		if pref != 0 {
			addRHS(w.sys, y, 1+conf)
		}
	}
	if err := w.sys.solve(); err != nil {
		return err
	}
	storeSolution(w.sys, dst)
	return nil
}

// cgKernel runs a fixed number of conjugate gradient steps warm-started from
// the current factor. The system matrix is never materialized.
type cgKernel[T floats.Float] struct {
	steps int
}

func (k *cgKernel[T]) update(w *workspace[T], gram []T, fixed floats.Matrix[T], indices []int32, values []T, dst []T) error {
	x, r, p, ap := dst, w.r, w.p, w.ap
	// r = b - A x
	floats.Zero(r)
	for n, i := range indices {
		if conf, pref := confidence(values[n]); pref != 0 {
			floats.MulConstAdd(fixed.Row(int(i)), T(1+conf), r)
		}
	}
	applyImplicit(gram, fixed, indices, values, x, ap)
	floats.Sub(r, ap)
	copy(p, r)
	rsOld := floats.Dot(r, r)
	for step := 0; step < k.steps; step++ {
		if float64(rsOld) < cgTolerance {
			break
		}
		applyImplicit(gram, fixed, indices, values, p, ap)
		pAp := floats.Dot(p, ap)
		if pAp <= 0 || math.IsNaN(float64(pAp)) {
			return numericalFailuref("conjugate gradient breakdown: pᵀAp = %v", pAp)
		}
		alpha := rsOld / pAp
		floats.MulConstAdd(p, alpha, x)
		floats.MulConstAdd(ap, -alpha, r)
		rsNew := floats.Dot(r, r)
		if float64(rsNew) < cgTolerance {
			break
		}
		floats.MulConst(p, rsNew/rsOld)
		floats.Add(p, r)
		rsOld = rsNew
	}
	return nil
}

// applyImplicit computes dst = G v + Σ |w_i| (y_iᵀv) y_i.
func applyImplicit[T floats.Float](gram []T, fixed floats.Matrix[T], indices []int32, values []T, v, dst []T) {
	rank := len(v)
	blas.Gemv(blas.NoTrans, rank, rank, 1, gram, rank, v, 0, dst)
	for n, i := range indices {
		conf, _ := confidence(values[n])
		if conf == 0 {
			continue
		}
		y := fixed.Row(int(i))
		floats.MulConstAdd(y, T(conf)*floats.Dot(y, v), dst)
	}
}

// implicitLoss returns the objective restricted to one entity:
//
//	xᵀGx + Σ_nnz [(1+|w|)(p - s)² - s²],  s = xᵀy
//
// which is Σ over all columns of c (p - s)² plus λ‖x‖².
func implicitLoss[T floats.Float](w *workspace[T], gram []T, fixed floats.Matrix[T], indices []int32, values []T, x []T) float64 {
	rank := len(x)
	blas.Gemv(blas.NoTrans, rank, rank, 1, gram, rank, x, 0, w.tmp)
	loss := float64(floats.Dot(x, w.tmp))
	for n, i := range indices {
		s := float64(floats.Dot(x, fixed.Row(int(i))))
		conf, pref := confidence(values[n])
		loss += (1+conf)*(pref-s)*(pref-s) - s*s
	}
	return loss
}
