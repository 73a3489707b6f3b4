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
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/deepwide/base/log"
	"github.com/gorse-io/deepwide/config"
	"github.com/gorse-io/deepwide/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Features are the model inputs of one split.
type Features struct {
	Continuous [][]float32
	// Deep holds one slice of indices per deep column.
	Deep   [][]int32
	Wide   []*bitset.BitSet
	Target []float32
}

func (f *Features) Len() int {
	return len(f.Target)
}

// Pipeline fits feature transformations once and applies them to every split.
type Pipeline struct {
	config       config.FeaturesConfig
	Scaler       Scaler
	Vocabulary   *Vocabulary
	Combinations []Combination
	Deep         *DeepEncoder
	Wide         *WideEncoder
}

func NewPipeline(cfg config.FeaturesConfig) *Pipeline {
	return &Pipeline{config: cfg}
}

// Fit builds the category vocabulary and deep vocabularies from the business catalog, and
// the combinations and the scaler from the joined training split.
func (p *Pipeline) Fit(train, catalog *dataset.Frame) error {
	// vocabulary of categories
	catalogCategories, err := catalog.Strings(p.config.CategoryColumn)
	if err != nil {
		return errors.Trace(err)
	}
	var tokens []string
	for _, s := range catalogCategories {
		tokens = append(tokens, strings.Split(s, p.config.CategorySeparator)...)
	}
	p.Vocabulary = NewVocabulary(tokens, p.config.VocabularySize)

	// cross combinations
	trainCategories, err := p.categories(train)
	if err != nil {
		return errors.Trace(err)
	}
	p.Combinations = nil
	for _, c := range p.config.Combinations {
		p.Combinations = append(p.Combinations, SelectCombinations(trainCategories, c.Size, c.TopK)...)
	}
	p.Wide = NewWideEncoder(p.Vocabulary, p.Combinations)

	// deep vocabularies
	if p.Deep, err = NewDeepEncoder(catalog, p.config.DeepColumns); err != nil {
		return errors.Trace(err)
	}

	// scaler
	continuous, err := BuildContinuous(train, p.config.ContinuousColumns, p.config.YearColumn)
	if err != nil {
		return errors.Trace(err)
	}
	if err = p.Scaler.Fit(continuous); err != nil {
		return errors.Trace(err)
	}

	log.Logger().Info("fit features",
		zap.Int("n_continuous", p.ContinuousDim()),
		zap.Ints("deep_vocab_lens", p.Deep.VocabLens()),
		zap.Int("n_wide", p.Wide.Len()),
		zap.Int("n_categories", p.Vocabulary.Len()),
		zap.Int("n_combinations", len(p.Combinations)))
	return nil
}

func (p *Pipeline) categories(frame *dataset.Frame) ([][]string, error) {
	values, err := frame.Strings(p.config.CategoryColumn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	records := make([][]string, len(values))
	for i, s := range values {
		records[i] = SplitCategories(s, p.config.CategorySeparator)
	}
	return records, nil
}

// Transform builds the features of a joined split. Targets are read from the stars column
// if it exists and are zero otherwise.
func (p *Pipeline) Transform(frame *dataset.Frame) (*Features, error) {
	if p.Wide == nil {
		return nil, errors.New("feature pipeline is not fitted")
	}
	features := &Features{}
	continuous, err := BuildContinuous(frame, p.config.ContinuousColumns, p.config.YearColumn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if features.Continuous, err = p.Scaler.Transform(continuous); err != nil {
		return nil, errors.Trace(err)
	}
	itemIds, err := frame.Strings(dataset.ItemKey)
	if err != nil {
		return nil, errors.Trace(err)
	}
	features.Deep = p.Deep.Encode(itemIds)
	records, err := p.categories(frame)
	if err != nil {
		return nil, errors.Trace(err)
	}
	features.Wide = make([]*bitset.BitSet, len(records))
	for i, categories := range records {
		features.Wide[i] = p.Wide.Encode(categories)
	}
	if frame.Has(dataset.RatingKey) {
		if features.Target, _, err = frame.Floats(dataset.RatingKey); err != nil {
			return nil, errors.Trace(err)
		}
	} else {
		features.Target = make([]float32, frame.Len())
	}
	return features, nil
}

// ContinuousDim returns the number of continuous features including the derived year.
func (p *Pipeline) ContinuousDim() int {
	return len(p.Scaler.Mean)
}

func (p *Pipeline) VocabLens() []int {
	return p.Deep.VocabLens()
}

func (p *Pipeline) WideDim() int {
	return p.Wide.Len()
}
