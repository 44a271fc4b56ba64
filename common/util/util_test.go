// Copyright 2024 gorse Project Authors
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

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPanic(t *testing.T) {
	f := func() (err error) {
		defer CheckPanic(&err)
		panic("boom")
	}
	var err error
	assert.NotPanics(t, func() { err = f() })
	assert.ErrorContains(t, err, "boom")

	g := func() (err error) {
		defer CheckPanic(&err)
		return nil
	}
	assert.NoError(t, g())
}

func TestParse(t *testing.T) {
	f, err := ParseFloat[float32]("1.5")
	assert.NoError(t, err)
	assert.Equal(t, float32(1.5), f)
	d, err := ParseFloat[float64]("0.1")
	assert.NoError(t, err)
	assert.Equal(t, 0.1, d)
	_, err = ParseFloat[float64]("x")
	assert.Error(t, err)
}
