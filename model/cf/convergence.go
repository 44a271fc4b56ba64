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

import "math"

// State of an optimizer.
type State int

const (
	Initializing State = iota
	Iterating
	Converged
	MaxIterReached
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterReached:
		return "max_iter_reached"
	default:
		return "unknown"
	}
}

// TraceRecord is a value observed after an iteration: the loss or a score.
type TraceRecord struct {
	Iter  int
	Name  string
	Value float64
}

// convergenceTracker stops iterating once the relative improvement of the
// loss drops below tol:
//
//	lossPrev / loss - 1 < tol
//
// An increasing loss gives a negative improvement and stops as well. A zero
// loss cannot improve. A tolerance of -1 or below never stops.
type convergenceTracker struct {
	tol      float64
	lossPrev float64
}

func newConvergenceTracker(tol float64) *convergenceTracker {
	return &convergenceTracker{tol: tol, lossPrev: math.Inf(1)}
}

func (c *convergenceTracker) update(loss float64) bool {
	converged := loss == 0 || c.lossPrev/loss-1 < c.tol
	c.lossPrev = loss
	return converged
}
