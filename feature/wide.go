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
	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
)

// WideEncoder turns a category list into a fixed length binary vector: one bit per
// vocabulary slot followed by one bit per combination.
type WideEncoder struct {
	vocabulary   *Vocabulary
	combinations []Combination
}

func NewWideEncoder(vocabulary *Vocabulary, combinations []Combination) *WideEncoder {
	return &WideEncoder{vocabulary: vocabulary, combinations: combinations}
}

// Len returns the number of bits of every encoded vector.
func (e *WideEncoder) Len() int {
	return e.vocabulary.Len() + len(e.combinations)
}

// Encode sets the slot of every category (slot 0 for unknown categories) and the bit of
// every combination contained in the categories.
func (e *WideEncoder) Encode(categories []string) *bitset.BitSet {
	bits := bitset.New(uint(e.Len()))
	set := mapset.NewThreadUnsafeSet(categories...)
	for _, category := range categories {
		bits.Set(uint(e.vocabulary.Index(category)))
	}
	offset := uint(e.vocabulary.Len())
	for k, combination := range e.combinations {
		if combination.Categories.IsSubset(set) {
			bits.Set(offset + uint(k))
		}
	}
	return bits
}

// Dense expands a wide vector to floats.
func Dense(bits *bitset.BitSet, n int) []float32 {
	x := make([]float32, n)
	for i, ok := bits.NextSet(0); ok && int(i) < n; i, ok = bits.NextSet(i + 1) {
		x[i] = 1
	}
	return x
}
