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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvergenceTracker(t *testing.T) {
	c := newConvergenceTracker(0.01)
	// the first iteration never converges
	assert.False(t, c.update(10))
	assert.False(t, c.update(5))
	assert.True(t, c.update(4.99))

	// an increasing loss stops as well
	c = newConvergenceTracker(0.01)
	assert.False(t, c.update(10))
	assert.True(t, c.update(11))

	// a zero loss cannot improve
	c = newConvergenceTracker(0.01)
	assert.True(t, c.update(0))

	// a tolerance of -1 never stops
	c = newConvergenceTracker(-1)
	for _, loss := range []float64{10, 10, 20, 1e-9} {
		assert.False(t, c.update(loss))
	}
}

func TestState(t *testing.T) {
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "iterating", Iterating.String())
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "max_iter_reached", MaxIterReached.String())
}
