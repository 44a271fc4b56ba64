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
	"github.com/gorse-io/als/common/floats"
	"github.com/juju/errors"
)

const (
	PreprocessIdentity  = "identity"
	PreprocessLog1p     = "log1p"
	PreprocessNormalize = "normalize"
)

// Preprocessor transforms interactions before they reach the solvers. The
// same preprocessor is applied by fit and transform.
type Preprocessor[T floats.Float] interface {
	Name() string
	Alpha() float64
	Apply(x *CSR[T]) *CSR[T]
}

// NewPreprocessor creates a preprocessor by name.
func NewPreprocessor[T floats.Float](name string, alpha float64) (Preprocessor[T], error) {
	switch name {
	case "", PreprocessIdentity:
		return Identity[T]{}, nil
	case PreprocessLog1p:
		if alpha <= 0 {
			return nil, errors.NotValidf("log1p alpha %v", alpha)
		}
		return Log1p[T]{alpha: T(alpha)}, nil
	case PreprocessNormalize:
		return NormalizeRows[T]{}, nil
	default:
		return nil, errors.NotValidf("preprocessor %q", name)
	}
}

// Identity passes interactions through.
type Identity[T floats.Float] struct{}

func (Identity[T]) Name() string { return PreprocessIdentity }

func (Identity[T]) Alpha() float64 { return 0 }

func (Identity[T]) Apply(x *CSR[T]) *CSR[T] { return x }

// Log1p maps every count c to log(1 + alpha·c), the usual confidence scaling
// for implicit feedback.
type Log1p[T floats.Float] struct {
	alpha T
}

func (Log1p[T]) Name() string { return PreprocessLog1p }

func (p Log1p[T]) Alpha() float64 { return float64(p.alpha) }

func (p Log1p[T]) Apply(x *CSR[T]) *CSR[T] {
	return x.Map(func(_ int, src, dst []T) {
		for k, v := range src {
			dst[k] = floats.Log1p(p.alpha * v)
		}
	})
}

// NormalizeRows scales every row to unit euclidean norm. Empty rows stay
// empty.
type NormalizeRows[T floats.Float] struct{}

func (NormalizeRows[T]) Name() string { return PreprocessNormalize }

func (NormalizeRows[T]) Alpha() float64 { return 0 }

func (NormalizeRows[T]) Apply(x *CSR[T]) *CSR[T] {
	return x.Map(func(_ int, src, dst []T) {
		norm := floats.Sqrt(floats.Norm2(src))
		if norm == 0 {
			copy(dst, src)
			return
		}
		floats.MulConstTo(src, 1/norm, dst)
	})
}
