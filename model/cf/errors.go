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

import "github.com/juju/errors"

// ErrNumericalFailure is attached to errors raised when a linear system
// cannot be solved: a failed factorization, an ill-conditioned solve or a
// conjugate gradient breakdown.
const ErrNumericalFailure = errors.ConstError("numerical failure")

func numericalFailuref(format string, args ...any) error {
	return errors.WithType(errors.Errorf(format, args...), ErrNumericalFailure)
}
