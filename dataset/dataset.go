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

package dataset

import (
	"bufio"
	"io"
	"math"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/als/base"
	"github.com/gorse-io/als/base/log"
	"github.com/gorse-io/als/common/floats"
	"github.com/gorse-io/als/common/util"
	"github.com/gorse-io/als/sparse"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Interactions are (user, item, value) triplets with string ids mapped to
// dense indices.
type Interactions[T floats.Float] struct {
	UserDict    *FreqDict
	ItemDict    *FreqDict
	UserIndices []int32
	ItemIndices []int32
	Values      []T
	// number of rows dropped because the item is unknown to a frozen dictionary
	Skipped int
}

func NewInteractions[T floats.Float]() *Interactions[T] {
	return &Interactions[T]{
		UserDict: NewFreqDict(),
		ItemDict: NewFreqDict(),
	}
}

func (d *Interactions[T]) CountUsers() int {
	return d.UserDict.Count()
}

func (d *Interactions[T]) CountItems() int {
	return d.ItemDict.Count()
}

func (d *Interactions[T]) Len() int {
	return len(d.Values)
}

// Add appends an interaction.
func (d *Interactions[T]) Add(userId, itemId string, value T) {
	d.UserIndices = append(d.UserIndices, int32(d.UserDict.Id(userId)))
	d.ItemIndices = append(d.ItemIndices, int32(d.ItemDict.Id(itemId)))
	d.Values = append(d.Values, value)
}

// ToCSR builds the user × item matrix. Duplicated pairs are summed.
func (d *Interactions[T]) ToCSR() (*sparse.CSR[T], error) {
	m, err := sparse.FromTriplets(d.CountUsers(), d.CountItems(), d.UserIndices, d.ItemIndices, d.Values)
	return m, errors.Trace(err)
}

type CSVOptions struct {
	Sep    string
	Header bool
	// ItemDict freezes item ids. Rows with unknown items are skipped.
	ItemDict *FreqDict
}

// LoadCSV reads interactions from a file of user,item[,value] lines. A
// missing value counts as 1.
func LoadCSV[T floats.Float](path string, opts CSVOptions) (*Interactions[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	d, err := ReadCSV[T](file, opts)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}
	return d, nil
}

// ReadCSV reads interactions from a stream. See LoadCSV.
func ReadCSV[T floats.Float](r io.Reader, opts CSVOptions) (*Interactions[T], error) {
	if opts.Sep == "" {
		opts.Sep = ","
	}
	d := NewInteractions[T]()
	if opts.ItemDict != nil {
		d.ItemDict = NewFreqDictFromSlice(opts.ItemDict.ToSlice())
	}
	var parseErr error
	err := base.ReadLines(bufio.NewScanner(r), opts.Sep, func(record int, fields []string) bool {
		if record == 0 && opts.Header {
			return true
		}
		fields = lo.Map(fields, func(f string, _ int) string { return strings.TrimSpace(f) })
		if len(fields) == 1 && fields[0] == "" {
			return true
		}
		if len(fields) < 2 {
			parseErr = errors.NotValidf("record %d: %d fields", record+1, len(fields))
			return false
		}
		value := T(1)
		if len(fields) > 2 && fields[2] != "" {
			v, err := util.ParseFloat[T](fields[2])
			if err != nil || math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				parseErr = errors.NotValidf("record %d: value %q", record+1, fields[2])
				return false
			}
			value = v
		}
		if opts.ItemDict != nil {
			if _, ok := d.ItemDict.Lookup(fields[1]); !ok {
				d.Skipped++
				return true
			}
		}
		d.Add(fields[0], fields[1], value)
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if d.Skipped > 0 {
		log.Logger().Warn("skip interactions with unknown items", zap.Int("n_skipped", d.Skipped))
	}
	return d, nil
}

// Split holds out a ratio of every user's interactions as test data. Users
// with a single interaction keep it in the train split. Both matrices have
// the shape of the full matrix.
func Split[T floats.Float](m *sparse.CSR[T], testRatio float64, seed int64) (train, test *sparse.CSR[T], err error) {
	if testRatio < 0 || testRatio >= 1 {
		return nil, nil, errors.NotValidf("test ratio %v", testRatio)
	}
	rng := base.NewRandomGenerator(seed)
	var (
		trainRows, trainCols, testRows, testCols []int32
		trainValues, testValues                  []T
	)
	for i := 0; i < m.Rows(); i++ {
		indices, values := m.Row(i)
		held := mapset.NewSet[int]()
		if n := len(indices); n > 1 {
			k := min(int(math.Round(testRatio*float64(n))), n-1)
			held.Append(rng.Sample(0, n, k)...)
		}
		for k, j := range indices {
			if held.Contains(k) {
				testRows, testCols, testValues = append(testRows, int32(i)), append(testCols, j), append(testValues, values[k])
			} else {
				trainRows, trainCols, trainValues = append(trainRows, int32(i)), append(trainCols, j), append(trainValues, values[k])
			}
		}
	}
	if train, err = sparse.FromTriplets(m.Rows(), m.Cols(), trainRows, trainCols, trainValues); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if test, err = sparse.FromTriplets(m.Rows(), m.Cols(), testRows, testCols, testValues); err != nil {
		return nil, nil, errors.Trace(err)
	}
	return train, test, nil
}
