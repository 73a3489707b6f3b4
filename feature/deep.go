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
	"github.com/gorse-io/deepwide/dataset"
	"github.com/juju/errors"
)

// DeepEncoder maps businesses to the indices of their categorical attributes. Each column
// has its own vocabulary of catalog values numbered 1..N by first encounter; 0 is used for
// values and businesses outside the catalog.
type DeepEncoder struct {
	columns []string
	vocabs  []*dataset.FreqDict
	items   map[string][]int32
}

func NewDeepEncoder(catalog *dataset.Frame, columns []string) (*DeepEncoder, error) {
	ids, err := catalog.Strings(dataset.ItemKey)
	if err != nil {
		return nil, errors.Trace(err)
	}
	e := &DeepEncoder{
		columns: columns,
		vocabs:  make([]*dataset.FreqDict, len(columns)),
		items:   make(map[string][]int32, len(ids)),
	}
	for _, id := range ids {
		e.items[id] = make([]int32, len(columns))
	}
	for j, name := range columns {
		values, err := catalog.Strings(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		e.vocabs[j] = dataset.NewFreqDict()
		for i, value := range values {
			e.items[ids[i]][j] = int32(e.vocabs[j].Add(value) + 1)
		}
	}
	return e, nil
}

func (e *DeepEncoder) Columns() []string {
	return e.columns
}

// VocabLens returns the number of indices of every column including index 0.
func (e *DeepEncoder) VocabLens() []int {
	lens := make([]int, len(e.vocabs))
	for j, vocab := range e.vocabs {
		lens[j] = vocab.Count() + 1
	}
	return lens
}

// Index returns the index of a value in column j.
func (e *DeepEncoder) Index(j int, value string) int32 {
	if id, ok := e.vocabs[j].Id(value); ok {
		return int32(id + 1)
	}
	return 0
}

// Encode returns one slice of indices per column for the given businesses.
func (e *DeepEncoder) Encode(itemIds []string) [][]int32 {
	result := make([][]int32, len(e.columns))
	for j := range result {
		result[j] = make([]int32, len(itemIds))
	}
	for i, id := range itemIds {
		if indices, ok := e.items[id]; ok {
			for j, index := range indices {
				result[j][i] = index
			}
		}
	}
	return result
}
