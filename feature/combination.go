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
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/deepwide/dataset"
	"github.com/samber/lo"
)

const combinationSeparator = "\x1f"

// Combination is a set of categories that occur together, with the number of records it
// was counted in.
type Combination struct {
	Categories mapset.Set[string]
	Freq       int
}

// Key returns the sorted categories joined by a separator.
func (c Combination) Key() string {
	return combinationKey(c.Categories.ToSlice())
}

func combinationKey(categories []string) string {
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)
	return strings.Join(sorted, combinationSeparator)
}

// SplitCategories splits a category list and removes repeated categories, keeping the
// first occurrence.
func SplitCategories(s, sep string) []string {
	return lo.Uniq(strings.Split(s, sep))
}

// SelectCombinations counts every p-subset of the categories of each record and returns
// the topk most frequent subsets. Ties are broken by first encounter.
func SelectCombinations(records [][]string, p, topk int) []Combination {
	dict := dataset.NewFreqDict()
	subset := make([]string, p)
	for _, categories := range records {
		forEachCombination(categories, p, subset, func(subset []string) {
			dict.Add(combinationKey(subset))
		})
	}
	var result []Combination
	for _, id := range dict.TopK(topk) {
		key, _ := dict.String(id)
		result = append(result, Combination{
			Categories: mapset.NewThreadUnsafeSet(strings.Split(key, combinationSeparator)...),
			Freq:       dict.Freq(id),
		})
	}
	return result
}

// forEachCombination visits p-subsets of items in lexicographic order of positions.
func forEachCombination(items []string, p int, buf []string, visit func([]string)) {
	if p <= 0 || p > len(items) {
		return
	}
	indices := make([]int, p)
	for i := range indices {
		indices[i] = i
	}
	for {
		for i, j := range indices {
			buf[i] = items[j]
		}
		visit(buf)
		// advance to the next combination
		i := p - 1
		for i >= 0 && indices[i] == len(items)-p+i {
			i--
		}
		if i < 0 {
			return
		}
		indices[i]++
		for j := i + 1; j < p; j++ {
			indices[j] = indices[j-1] + 1
		}
	}
}
