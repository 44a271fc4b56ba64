// Copyright 2022 gorse Project Authors
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

package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"strconv"

	"github.com/gorse-io/als/common/floats"
	"github.com/juju/errors"
)

// WriteMatrix writes the shape and elements of a matrix to byte stream.
func WriteMatrix[T floats.Float](w io.Writer, m floats.Matrix[T]) error {
	if err := binary.Write(w, binary.LittleEndian, [2]int64{int64(m.Rows), int64(m.Cols)}); err != nil {
		return errors.Trace(err)
	}
	if len(m.Data) == 0 {
		return nil
	}
	return errors.Trace(binary.Write(w, binary.LittleEndian, m.Data))
}

// ReadMatrix reads a matrix written by WriteMatrix.
func ReadMatrix[T floats.Float](r io.Reader) (floats.Matrix[T], error) {
	var shape [2]int64
	if err := binary.Read(r, binary.LittleEndian, &shape); err != nil {
		return floats.Matrix[T]{}, errors.Trace(err)
	}
	if shape[0] < 0 || shape[1] < 0 {
		return floats.Matrix[T]{}, errors.Errorf("invalid matrix shape %v", shape)
	}
	m := floats.NewMatrix[T](int(shape[0]), int(shape[1]))
	if len(m.Data) == 0 {
		return m, nil
	}
	if err := binary.Read(r, binary.LittleEndian, m.Data); err != nil {
		return floats.Matrix[T]{}, errors.Trace(err)
	}
	return m, nil
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	err := binary.Write(w, binary.LittleEndian, int32(len(s)))
	if err != nil {
		return errors.Trace(err)
	}
	n, err := w.Write(s)
	if err != nil {
		return errors.Trace(err)
	} else if n != len(s) {
		return errors.New("fail to write string")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	err := binary.Read(r, binary.LittleEndian, &length)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if length < 0 {
		return nil, errors.Errorf("invalid length %d", length)
	}
	data := make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, errors.Annotate(err, "fail to read string")
	}
	return data, nil
}

// WriteGob writes object to byte stream.
func WriteGob(w io.Writer, v interface{}) error {
	buffer := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(v)
	if err != nil {
		return errors.Trace(err)
	}
	return WriteBytes(w, buffer.Bytes())
}

// ReadGob read object from byte stream.
func ReadGob(r io.Reader, v interface{}) error {
	data, err := ReadBytes(r)
	if err != nil {
		return err
	}
	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	return errors.Trace(decoder.Decode(v))
}

// FormatFloat formats a float with the shortest representation that
// round-trips at its own precision.
func FormatFloat[T floats.Float](val T) string {
	switch v := any(val).(type) {
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	}
}
