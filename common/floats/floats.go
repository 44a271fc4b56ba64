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

	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

// Float is the element type of factor matrices: float32 for single precision
// and float64 for double precision.
type Float interface {
	constraints.Float
}

// Zero fills zeros in a slice of floats.
func Zero[T Float](a []T) {
	for i := range a {
		a[i] = 0
	}
}

// Add two vectors: dst = dst + s
func Add[T Float](dst, s []T) {
	if len(dst) != len(s) {
		panic("floats: slice lengths do not match")
	}
	for i := range dst {
		dst[i] += s[i]
	}
}

// Sub one vector by another: dst = dst - s
func Sub[T Float](dst, s []T) {
	if len(dst) != len(s) {
		panic("floats: slice lengths do not match")
	}
	for i := range dst {
		dst[i] -= s[i]
	}
}

// SubTo subtracts one vector by another and saves the result in dst: dst = a - b
func SubTo[T Float](a, b, dst []T) {
	if len(dst) != len(b) || len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] = a[i] - b[i]
	}
}

// MulConst multiplies a vector with a const: dst = dst * c
func MulConst[T Float](dst []T, c T) {
	for i := range dst {
		dst[i] *= c
	}
}

// MulConstTo multiplies a vector and a const, then saves the result in dst: dst = a * c
func MulConstTo[T Float](a []T, c T, dst []T) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] = a[i] * c
	}
}

// MulConstAdd multiplies a vector and a const, then adds to dst: dst = dst + a * c
func MulConstAdd[T Float](a []T, c T, dst []T) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] += a[i] * c
	}
}

// MulConstAddTo computes dst = a * c + b.
func MulConstAddTo[T Float](a []T, c T, b, dst []T) {
	if len(a) != len(b) || len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] = a[i]*c + b[i]
	}
}

// Dot two vectors.
func Dot[T Float](a, b []T) (ret T) {
	if len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		ret += a[i] * b[i]
	}
	return
}

// Norm2 returns the squared euclidean norm of a vector.
func Norm2[T Float](a []T) (ret T) {
	for i := range a {
		ret += a[i] * a[i]
	}
	return
}

func Sqrt[T Float](x T) T {
	switch v := any(x).(type) {
	case float32:
		return T(math32.Sqrt(v))
	default:
		return T(math.Sqrt(float64(x)))
	}
}

func Log1p[T Float](x T) T {
	switch v := any(x).(type) {
	case float32:
		return T(math32.Log1p(v))
	default:
		return T(math.Log1p(float64(x)))
	}
}

func Abs[T Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// Convert copies a vector into a vector of another precision.
func Convert[S, T Float](src []S, dst []T) {
	if len(src) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range src {
		dst[i] = T(src[i])
	}
}

// Matrix is a dense row-major matrix. Factor matrices store one entity per
// row, so a Matrix with Rows entities and Cols factors has the same memory
// layout as a Cols × Rows column-major matrix.
type Matrix[T Float] struct {
	Rows int
	Cols int
	Data []T
}

// NewMatrix creates a zero matrix.
func NewMatrix[T Float](rows, cols int) Matrix[T] {
	return Matrix[T]{Rows: rows, Cols: cols, Data: make([]T, rows*cols)}
}

// Row returns the i-th row. The returned slice shares memory with the matrix.
func (m Matrix[T]) Row(i int) []T {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Empty returns true if the matrix holds no data.
func (m Matrix[T]) Empty() bool {
	return m.Data == nil
}

// Clone returns a deep copy.
func (m Matrix[T]) Clone() Matrix[T] {
	data := make([]T, len(m.Data))
	copy(data, m.Data)
	return Matrix[T]{Rows: m.Rows, Cols: m.Cols, Data: data}
}

// At returns the element at (i, j).
func (m Matrix[T]) At(i, j int) T {
	return m.Data[i*m.Cols+j]
}

// SquaredNorm returns the squared Frobenius norm.
func (m Matrix[T]) SquaredNorm() float64 {
	var sum float64
	for _, v := range m.Data {
		sum += float64(v) * float64(v)
	}
	return sum
}
