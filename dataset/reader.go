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
	"io"
	"os"

	"github.com/gorse-io/deepwide/base"
	"github.com/gorse-io/deepwide/base/json"
	"github.com/gorse-io/deepwide/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	UserKey    = "user_id"
	ItemKey    = "business_id"
	RatingKey  = "stars"
	UserPrefix = "user_"
	ItemPrefix = "item_"
)

// ReadReviews reads a review table in csv format. The first line is the header; user_id
// and business_id columns are required. Cells are kept as strings.
func ReadReviews(r io.Reader) (*Frame, error) {
	var frame *Frame
	var header []string
	err := base.ReadLines(r, ',', func(i int, fields []string) error {
		if i == 0 {
			header = fields
			frame = NewFrame(fields...)
			return nil
		}
		if len(fields) != len(header) {
			return errors.NotValidf("line %d has %d fields, expect %d", i+1, len(fields), len(header))
		}
		row := make(map[string]any, len(fields))
		for j, field := range fields {
			row[header[j]] = field
		}
		frame.Append(row)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if frame == nil {
		return nil, errors.NotValidf("empty review table")
	}
	for _, key := range []string{UserKey, ItemKey} {
		if !frame.Has(key) {
			return nil, errors.Annotatef(ErrColumnNotFound, "column %s", key)
		}
	}
	return frame, nil
}

// ReadRecords reads JSON objects (an array or JSON lines). Every attribute except key is
// renamed to prefix + attribute. Objects without key are rejected.
func ReadRecords(r io.Reader, key, prefix string) (*Frame, error) {
	frame := NewFrame(key)
	err := json.ReadObjects(r, func(object map[string]any) error {
		if _, ok := object[key]; !ok {
			return errors.Annotatef(ErrColumnNotFound, "record %d has no %s", frame.Len(), key)
		}
		row := make(map[string]any, len(object))
		for name, value := range object {
			if name == key {
				row[name] = value
			} else {
				row[prefix+name] = value
			}
		}
		frame.Append(row)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return frame, nil
}

// LoadReviews reads a review table from a csv file.
func LoadReviews(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	frame, err := ReadReviews(file)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read %s", path)
	}
	log.Logger().Info("load reviews", zap.String("path", path), zap.Int("n_reviews", frame.Len()))
	return frame, nil
}

// LoadRecords reads user or business records from a JSON file.
func LoadRecords(path, key, prefix string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	frame, err := ReadRecords(file, key, prefix)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read %s", path)
	}
	log.Logger().Info("load records", zap.String("path", path), zap.Int("n_records", frame.Len()),
		zap.Int("n_columns", len(frame.Columns())))
	return frame, nil
}
