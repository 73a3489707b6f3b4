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

package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const (
	ErrColumnNotFound = errors.ConstError("column not found")
	ErrDuplicateKey   = errors.ConstError("duplicate key")
)

// Frame is an ordered table of named columns. Cells hold strings (from CSV), JSON values
// (float64, bool, string, nested objects) or nil for missing values.
type Frame struct {
	names   []string
	index   map[string]int
	columns [][]any
	length  int
}

// NewFrame creates an empty frame with the given columns. Repeated names are ignored.
func NewFrame(names ...string) *Frame {
	f := &Frame{index: make(map[string]int)}
	for _, name := range names {
		f.addColumn(name)
	}
	return f
}

func (f *Frame) addColumn(name string) int {
	if i, ok := f.index[name]; ok {
		return i
	}
	i := len(f.names)
	f.index[name] = i
	f.names = append(f.names, name)
	// new columns are null for existing rows
	f.columns = append(f.columns, make([]any, f.length))
	return i
}

// Append adds a row. Values of unknown columns create new columns, added in lexical order.
func (f *Frame) Append(row map[string]any) {
	var unknown []string
	for name := range row {
		if _, ok := f.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		f.addColumn(name)
	}
	for i, name := range f.names {
		f.columns[i] = append(f.columns[i], row[name])
	}
	f.length++
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return f.length
}

// Columns returns column names in order of appearance.
func (f *Frame) Columns() []string {
	return f.names
}

func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Values returns the raw cells of a column.
func (f *Frame) Values(name string) ([]any, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.Annotatef(ErrColumnNotFound, "column %s", name)
	}
	return f.columns[i], nil
}

// Row returns the cells of row i keyed by column name. Null cells are omitted.
func (f *Frame) Row(i int) map[string]any {
	row := make(map[string]any, len(f.names))
	for j, name := range f.names {
		if v := f.columns[j][i]; v != nil {
			row[name] = v
		}
	}
	return row
}

// Strings returns a column as strings. Null cells become empty strings.
func (f *Frame) Strings(name string) ([]string, error) {
	values, err := f.Values(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := make([]string, len(values))
	for i, v := range values {
		result[i] = FormatValue(v)
	}
	return result, nil
}

// Floats returns a column as floats. Null cells become zero and are counted in nulls.
// A cell that is not a number fails.
func (f *Frame) Floats(name string) (result []float32, nulls int, err error) {
	values, err := f.Values(name)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	result = make([]float32, len(values))
	for i, v := range values {
		value, ok, err := ParseFloat(v)
		if err != nil {
			return nil, 0, errors.Annotatef(err, "column %s row %d", name, i)
		}
		if !ok {
			nulls++
		}
		result[i] = value
	}
	return result, nulls, nil
}

// Index maps values of a key column to row numbers.
func (f *Frame) Index(key string) (map[string]int, error) {
	keys, err := f.Strings(key)
	if err != nil {
		return nil, errors.Trace(err)
	}
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		if _, exist := index[k]; exist {
			return nil, errors.Annotatef(ErrDuplicateKey, "%s = %s", key, k)
		}
		index[k] = i
	}
	return index, nil
}

// ParseFloat converts a cell to a float. ok is false for null cells.
func ParseFloat(v any) (value float32, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return float32(x), true, nil
	case float32:
		return x, true, nil
	case int:
		return float32(x), true, nil
	case int64:
		return float32(x), true, nil
	case bool:
		if x {
			return 1, true, nil
		}
		return 0, true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, nil
		}
		if b, err := strconv.ParseBool(s); err == nil && !isNumeric(s) {
			if b {
				return 1, true, nil
			}
			return 0, true, nil
		}
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0, false, errors.NotValidf("number %q", x)
		}
		return float32(f), true, nil
	default:
		return 0, false, errors.NotValidf("number %v", v)
	}
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// FormatValue converts a cell to a string. Null cells become empty strings.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
