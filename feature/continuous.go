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

package feature

import (
	"github.com/araddon/dateparse"
	"github.com/gorse-io/deepwide/base/log"
	"github.com/gorse-io/deepwide/common/floats"
	"github.com/gorse-io/deepwide/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// BuildContinuous extracts numeric columns row by row. If yearColumn is not empty, the
// calendar year of that timestamp column is appended as the last feature. Null cells are
// read as zero.
func BuildContinuous(frame *dataset.Frame, columns []string, yearColumn string) ([][]float32, error) {
	width := len(columns)
	if yearColumn != "" {
		width++
	}
	features := make([][]float32, frame.Len())
	for i := range features {
		features[i] = make([]float32, width)
	}
	for j, name := range columns {
		values, nulls, err := frame.Floats(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if nulls > 0 {
			log.Logger().Warn("null values are read as zero", zap.String("column", name), zap.Int("n_nulls", nulls))
		}
		for i, v := range values {
			features[i][j] = v
		}
	}
	if yearColumn != "" {
		timestamps, err := frame.Strings(yearColumn)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for i, s := range timestamps {
			t, err := dateparse.ParseAny(s)
			if err != nil {
				return nil, errors.NotValidf("timestamp %q in column %s row %d", s, yearColumn, i)
			}
			features[i][width-1] = float32(t.Year())
		}
	}
	return features, nil
}

// Scaler standardizes features by removing the mean and scaling to unit variance.
type Scaler struct {
	Mean []float32
	Std  []float32
}

// Fit computes the mean and the population standard deviation of every column. A column
// without variance is scaled by one.
func (s *Scaler) Fit(x [][]float32) error {
	if len(x) == 0 {
		return errors.New("cannot fit scaler on empty data")
	}
	width := len(x[0])
	s.Mean = make([]float32, width)
	s.Std = make([]float32, width)
	column := make([]float32, len(x))
	for j := 0; j < width; j++ {
		for i := range x {
			column[i] = x[i][j]
		}
		s.Mean[j] = floats.Mean(column)
		s.Std[j] = floats.StdDev(column)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return nil
}

// Transform returns (x - mean) / std. The input is not modified.
func (s *Scaler) Transform(x [][]float32) ([][]float32, error) {
	result := make([][]float32, len(x))
	for i, row := range x {
		if len(row) != len(s.Mean) {
			return nil, errors.Errorf("expect %d features, got %d", len(s.Mean), len(row))
		}
		result[i] = make([]float32, len(row))
		for j, v := range row {
			result[i][j] = (v - s.Mean[j]) / s.Std[j]
		}
	}
	return result, nil
}
