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


package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gorse-io/als/base"
	"github.com/gorse-io/als/base/encoding"
	"github.com/gorse-io/als/common/floats"
	"github.com/gorse-io/als/model/cf"
	"github.com/juju/errors"
)

// modelHeader precedes the serialized model. Item ids map columns of
// interactions to rows of the item factors.
type modelHeader struct {
	Precision string
	ItemIds   []string
}

func precisionOf[T floats.Float]() string {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return "single"
	}
	return "double"
}

func saveModel[T floats.Float](path string, itemIds []string, m *cf.ALS[T]) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	header := modelHeader{Precision: precisionOf[T](), ItemIds: itemIds}
	if err = encoding.WriteGob(w, header); err != nil {
		return errors.Trace(err)
	}
	if err = cf.MarshalModel(w, m); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(w.Flush())
}

// loadModelHeader reads the header of a model file and returns the reader
// positioned at the serialized model.
func loadModelHeader(path string) (*modelHeader, io.Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	r := bytes.NewReader(data)
	var header modelHeader
	if err = encoding.ReadGob(r, &header); err != nil {
		return nil, nil, errors.Annotatef(err, "read model %s", path)
	}
	return &header, r, nil
}

// saveEmbeddings writes one line per user: the user id followed by factors.
func saveEmbeddings[T floats.Float](path string, userIds []string, users floats.Matrix[T]) error {
	if len(userIds) != users.Rows {
		return errors.Errorf("%d user ids for %d embeddings", len(userIds), users.Rows)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	for i, userId := range userIds {
		fields := make([]string, 0, users.Cols+1)
		fields = append(fields, base.Escape(userId, ","))
		for _, v := range users.Row(i) {
			fields = append(fields, encoding.FormatFloat(v))
		}
		if _, err = fmt.Fprintln(w, strings.Join(fields, ",")); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(w.Flush())
}
