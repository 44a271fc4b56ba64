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

package sparse

import (
	"sort"

	"github.com/gorse-io/als/common/floats"
	"github.com/juju/errors"
)

// CSR is a compressed sparse row matrix. Column indices are sorted and unique
// within a row.
type CSR[T floats.Float] struct {
	Indptr  []int
	Indices []int32
	Values  []T
	rows    int
	cols    int
}

// NewCSR wraps compressed arrays into a matrix after checking their structure.
func NewCSR[T floats.Float](rows, cols int, indptr []int, indices []int32, values []T) (*CSR[T], error) {
	if rows < 0 || cols < 0 {
		return nil, errors.NotValidf("shape (%d, %d)", rows, cols)
	}
	if len(indptr) != rows+1 {
		return nil, errors.NotValidf("indptr of length %d for %d rows", len(indptr), rows)
	}
	if len(indices) != len(values) {
		return nil, errors.NotValidf("%d indices for %d values", len(indices), len(values))
	}
	if indptr[0] != 0 || indptr[rows] != len(indices) {
		return nil, errors.NotValidf("indptr bounds [%d, %d]", indptr[0], indptr[rows])
	}
	for i := 0; i < rows; i++ {
		if indptr[i] > indptr[i+1] {
			return nil, errors.NotValidf("decreasing indptr at row %d", i)
		}
		for j := indptr[i]; j < indptr[i+1]; j++ {
			if indices[j] < 0 || int(indices[j]) >= cols {
				return nil, errors.NotValidf("column index %d in row %d", indices[j], i)
			}
			if j > indptr[i] && indices[j] <= indices[j-1] {
				return nil, errors.NotValidf("unsorted column indices in row %d", i)
			}
		}
	}
	return &CSR[T]{Indptr: indptr, Indices: indices, Values: values, rows: rows, cols: cols}, nil
}

// FromTriplets builds a matrix from (row, column, value) triplets. Values of
// duplicated positions are summed.
func FromTriplets[T floats.Float](rows, cols int, rowIndices, colIndices []int32, values []T) (*CSR[T], error) {
	if len(rowIndices) != len(colIndices) || len(rowIndices) != len(values) {
		return nil, errors.NotValidf("triplets of lengths %d, %d, %d", len(rowIndices), len(colIndices), len(values))
	}
	for k := range rowIndices {
		if rowIndices[k] < 0 || int(rowIndices[k]) >= rows {
			return nil, errors.NotValidf("row index %d", rowIndices[k])
		}
		if colIndices[k] < 0 || int(colIndices[k]) >= cols {
			return nil, errors.NotValidf("column index %d", colIndices[k])
		}
	}
	order := make([]int, len(values))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if rowIndices[ka] != rowIndices[kb] {
			return rowIndices[ka] < rowIndices[kb]
		}
		return colIndices[ka] < colIndices[kb]
	})
	m := &CSR[T]{Indptr: make([]int, rows+1), rows: rows, cols: cols}
	lastRow, lastCol := int32(-1), int32(-1)
	for _, k := range order {
		r, c := rowIndices[k], colIndices[k]
		if r == lastRow && c == lastCol {
			m.Values[len(m.Values)-1] += values[k]
			continue
		}
		m.Indices = append(m.Indices, c)
		m.Values = append(m.Values, values[k])
		m.Indptr[r+1]++
		lastRow, lastCol = r, c
	}
	for i := 0; i < rows; i++ {
		m.Indptr[i+1] += m.Indptr[i]
	}
	return m, nil
}

// FromDense builds a matrix from the nonzero entries of a dense matrix.
func FromDense[T floats.Float](dense [][]T) *CSR[T] {
	m := &CSR[T]{Indptr: make([]int, len(dense)+1), rows: len(dense)}
	for i, row := range dense {
		m.cols = max(m.cols, len(row))
		for j, v := range row {
			if v != 0 {
				m.Indices = append(m.Indices, int32(j))
				m.Values = append(m.Values, v)
			}
		}
		m.Indptr[i+1] = len(m.Indices)
	}
	return m
}

// Rows returns the number of rows.
func (m *CSR[T]) Rows() int {
	return m.rows
}

// Cols returns the number of columns.
func (m *CSR[T]) Cols() int {
	return m.cols
}

// Nnz returns the number of stored entries.
func (m *CSR[T]) Nnz() int {
	return len(m.Values)
}

// Row returns column indices and values of the i-th row. Both slices share
// memory with the matrix.
func (m *CSR[T]) Row(i int) ([]int32, []T) {
	begin, end := m.Indptr[i], m.Indptr[i+1]
	return m.Indices[begin:end], m.Values[begin:end]
}

// At returns the entry at (i, j).
func (m *CSR[T]) At(i, j int) T {
	indices, values := m.Row(i)
	k := sort.Search(len(indices), func(k int) bool { return indices[k] >= int32(j) })
	if k < len(indices) && indices[k] == int32(j) {
		return values[k]
	}
	return 0
}

// Transpose returns the compressed sparse row form of the transposed matrix,
// that is the column view of m.
func (m *CSR[T]) Transpose() *CSR[T] {
	t := &CSR[T]{
		Indptr:  make([]int, m.cols+1),
		Indices: make([]int32, len(m.Indices)),
		Values:  make([]T, len(m.Values)),
		rows:    m.cols,
		cols:    m.rows,
	}
	for _, j := range m.Indices {
		t.Indptr[j+1]++
	}
	for j := 0; j < m.cols; j++ {
		t.Indptr[j+1] += t.Indptr[j]
	}
	next := make([]int, m.cols)
	copy(next, t.Indptr[:m.cols])
	// rows are visited in order so the transposed rows come out sorted
	for i := 0; i < m.rows; i++ {
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			j := m.Indices[k]
			t.Indices[next[j]] = int32(i)
			t.Values[next[j]] = m.Values[k]
			next[j]++
		}
	}
	return t
}

// Map returns a copy of m whose values of row i are replaced by f(i, values).
// f writes into dst, which is a fresh slice of the same length.
func (m *CSR[T]) Map(f func(row int, src, dst []T)) *CSR[T] {
	c := &CSR[T]{
		Indptr:  m.Indptr,
		Indices: m.Indices,
		Values:  make([]T, len(m.Values)),
		rows:    m.rows,
		cols:    m.cols,
	}
	for i := 0; i < m.rows; i++ {
		begin, end := m.Indptr[i], m.Indptr[i+1]
		f(i, m.Values[begin:end], c.Values[begin:end])
	}
	return c
}

// CheckNonNegative returns an error naming the first negative entry.
func (m *CSR[T]) CheckNonNegative() error {
	for i := 0; i < m.rows; i++ {
		indices, values := m.Row(i)
		for k, v := range values {
			if v < 0 {
				return errors.NotValidf("negative entry %v at (%d, %d)", v, i, indices[k])
			}
		}
	}
	return nil
}

// ToDense expands the matrix.
func (m *CSR[T]) ToDense() [][]T {
	dense := make([][]T, m.rows)
	for i := range dense {
		dense[i] = make([]T, m.cols)
		indices, values := m.Row(i)
		for k, j := range indices {
			dense[i][j] = values[k]
		}
	}
	return dense
}
