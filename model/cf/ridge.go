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
)

// ridgeKernel updates one factor from the observed entries of its row:
//
//	w = argmin ‖Y_nnz w - r_nnz‖² + λ‖w‖²
//
// where Y_nnz holds the fixed factors of the observed columns only.
type ridgeKernel[T floats.Float] struct {
	reg float64
}

func (k *ridgeKernel[T]) update(w *workspace[T], fixed floats.Matrix[T], indices []int32, values []T, dst []T) error {
	if len(indices) == 0 {
		floats.Zero(dst)
		return nil
	}
	resetSystem[T](w.sys, nil, k.reg)
	for n, i := range indices {
		y := fixed.Row(int(i))
		addOuter(w.sys, y, 1)
		addRHS(w.sys, y, float64(values[n]))
	}
	if err := w.sys.solve(); err != nil {
		return err
	}
	storeSolution(w.sys, dst)
	return nil
}

// explicitResidual returns Σ (r - xᵀy)² over the observed entries of a row.
func explicitResidual[T floats.Float](fixed floats.Matrix[T], indices []int32, values []T, x []T) float64 {
	var sum float64
	for n, i := range indices {
		e := float64(values[n]) - float64(floats.Dot(x, fixed.Row(int(i))))
		sum += e * e
	}
	return sum
}
