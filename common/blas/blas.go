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

package blas

import (
	"context"
	"runtime"
	"sync"

	"github.com/gorse-io/als/common/floats"
	"github.com/gorse-io/als/common/parallel"
	"go.uber.org/atomic"
)

type Transpose int

const (
	NoTrans Transpose = 111
	Trans   Transpose = 112
)

func NewTranspose(transpose bool) Transpose {
	if transpose {
		return Trans
	} else {
		return NoTrans
	}
}

// minRowsPerThread is the smallest chunk of rows worth a goroutine.
const minRowsPerThread = 4096

var (
	threads = atomic.NewInt32(int32(runtime.NumCPU()))

	// overrides counts active SetThreads calls. The value before the first
	// override is restored when the last one ends.
	overrideMu sync.Mutex
	overrides  int
	saved      int32
)

// Threads returns the number of goroutines used by level-3 kernels.
func Threads() int {
	return int(threads.Load())
}

// SetThreads sets the number of goroutines used by level-3 kernels and returns
// a function restoring the previous value. Callers that parallelize over
// kernels themselves pin it to 1 for the duration of the call:
//
//	defer blas.SetThreads(1)()
//
// Overrides may overlap across goroutines: the setting in effect before the
// first override comes back once every restore function has been called.
func SetThreads(n int) (restore func()) {
	if n < 1 {
		n = 1
	}
	overrideMu.Lock()
	defer overrideMu.Unlock()
	if overrides == 0 {
		saved = threads.Load()
	}
	overrides++
	threads.Store(int32(n))
	var once sync.Once
	return func() {
		once.Do(func() {
			overrideMu.Lock()
			defer overrideMu.Unlock()
			overrides--
			if overrides == 0 {
				threads.Store(saved)
			}
		})
	}
}

// Gram computes dst = AᵀA + reg·I where A is a row-major matrix. dst is a
// Cols × Cols row-major buffer.
func Gram[T floats.Float](a floats.Matrix[T], reg T, dst []T) {
	k := a.Cols
	if len(dst) != k*k {
		panic("blas: dst must be a Cols × Cols matrix")
	}
	floats.Zero(dst)
	nThreads := min(Threads(), a.Rows/minRowsPerThread)
	if nThreads <= 1 {
		syrk(a, 0, a.Rows, dst)
	} else {
		chunks := parallel.Split(make([]struct{}, a.Rows), nThreads)
		partial := make([][]T, len(chunks))
		begins := make([]int, len(chunks))
		for i := 1; i < len(chunks); i++ {
			begins[i] = begins[i-1] + len(chunks[i-1])
		}
		_ = parallel.For(context.Background(), len(chunks), nThreads, func(i int) {
			partial[i] = make([]T, k*k)
			syrk(a, begins[i], begins[i]+len(chunks[i]), partial[i])
		})
		for i := range partial {
			floats.Add(dst, partial[i])
		}
	}
	// mirror the upper triangle
	for i := 0; i < k; i++ {
		for j := 0; j < i; j++ {
			dst[i*k+j] = dst[j*k+i]
		}
		dst[i*k+i] += reg
	}
}

// syrk accumulates the upper triangle of AᵀA over rows [begin, end).
func syrk[T floats.Float](a floats.Matrix[T], begin, end int, dst []T) {
	k := a.Cols
	for r := begin; r < end; r++ {
		row := a.Row(r)
		for i := 0; i < k; i++ {
			if row[i] == 0 {
				continue
			}
			floats.MulConstAdd(row[i:], row[i], dst[i*k+i:(i+1)*k])
		}
	}
}

// Gemv computes y = alpha * op(A) * x + beta * y where A is m × n row-major.
func Gemv[T floats.Float](trans Transpose, m, n int, alpha T, a []T, lda int, x []T, beta T, y []T) {
	if trans == NoTrans {
		for i := 0; i < m; i++ {
			y[i] = alpha*floats.Dot(a[i*lda:i*lda+n], x) + beta*y[i]
		}
	} else {
		floats.MulConst(y, beta)
		for i := 0; i < m; i++ {
			floats.MulConstAdd(a[i*lda:i*lda+n], alpha*x[i], y)
		}
	}
}
