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
	"io"

	"github.com/gorse-io/als/base/encoding"
	"github.com/gorse-io/als/common/floats"
	"github.com/gorse-io/als/model"
	"github.com/gorse-io/als/sparse"
	"github.com/juju/errors"
)

const modelName = "als"

// Marshal model into byte stream: name, precision, hyper-parameters,
// preprocessor and item factors. Only preprocessors built by
// sparse.NewPreprocessor can be saved.
func (als *ALS[T]) Marshal(w io.Writer) error {
	switch als.preprocess.(type) {
	case sparse.Identity[T], sparse.Log1p[T], sparse.NormalizeRows[T]:
	default:
		return errors.NotValidf("preprocessor %q of type %T", als.preprocess.Name(), als.preprocess)
	}
	if err := encoding.WriteString(w, modelName); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteString(w, precision[T]()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, als.Params.Copy()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteString(w, als.preprocess.Name()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, als.preprocess.Alpha()); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteMatrix(w, als.components))
}

// Unmarshal model from byte stream.
func (als *ALS[T]) Unmarshal(r io.Reader) error {
	name, err := encoding.ReadString(r)
	if err != nil {
		return errors.Trace(err)
	}
	if name != modelName {
		return errors.NotValidf("model %q", name)
	}
	prec, err := encoding.ReadString(r)
	if err != nil {
		return errors.Trace(err)
	}
	if prec != precision[T]() {
		return errors.NotValidf("%s precision model loaded as %s precision", prec, precision[T]())
	}
	var params model.Params
	if err = encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	preprocessName, err := encoding.ReadString(r)
	if err != nil {
		return errors.Trace(err)
	}
	var alpha float64
	if err = encoding.ReadGob(r, &alpha); err != nil {
		return errors.Trace(err)
	}
	preprocess, err := sparse.NewPreprocessor[T](preprocessName, alpha)
	if err != nil {
		return errors.Trace(err)
	}
	components, err := encoding.ReadMatrix[T](r)
	if err != nil {
		return errors.Trace(err)
	}
	als.SetParams(params)
	als.SetPreprocess(preprocess)
	als.Clear()
	if components.Rows > 0 || components.Cols > 0 {
		if err = als.SetComponents(components); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// MarshalModel writes the durable part of a model.
func MarshalModel[T floats.Float](w io.Writer, m *ALS[T]) error {
	return m.Marshal(w)
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel[T floats.Float](r io.Reader) (*ALS[T], error) {
	m := NewALS[T](nil)
	if err := m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
