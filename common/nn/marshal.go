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

package nn

import (
	"io"
	"slices"

	"github.com/gorse-io/deepwide/base/encoding"
	"github.com/juju/errors"
)

// WriteParameters writes shapes and values of parameters to a byte stream.
func WriteParameters(w io.Writer, params []*Tensor) error {
	if err := encoding.WriteGob(w, len(params)); err != nil {
		return errors.Trace(err)
	}
	for _, p := range params {
		if err := encoding.WriteGob(w, p.shape); err != nil {
			return errors.Trace(err)
		}
		if err := encoding.WriteFloat32s(w, p.data); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadParameters reads values written by WriteParameters into params. The number of
// parameters and every shape must match.
func ReadParameters(r io.Reader, params []*Tensor) error {
	var n int
	if err := encoding.ReadGob(r, &n); err != nil {
		return errors.Trace(err)
	}
	if n != len(params) {
		return errors.Errorf("expect %d parameters, got %d", len(params), n)
	}
	for i, p := range params {
		var shape []int
		if err := encoding.ReadGob(r, &shape); err != nil {
			return errors.Trace(err)
		}
		if !slices.Equal(shape, p.shape) {
			return errors.Errorf("parameter %d: expect shape %v, got %v", i, p.shape, shape)
		}
		data, err := encoding.ReadFloat32s(r)
		if err != nil {
			return errors.Trace(err)
		}
		if len(data) != len(p.data) {
			return errors.Errorf("parameter %d: expect %d values, got %d", i, len(p.data), len(data))
		}
		copy(p.data, data)
	}
	return nil
}
