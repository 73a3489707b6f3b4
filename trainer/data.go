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

package trainer

import (
	"github.com/gorse-io/deepwide/base/log"
	"github.com/gorse-io/deepwide/config"
	"github.com/gorse-io/deepwide/dataset"
	"github.com/gorse-io/deepwide/feature"
	"github.com/gorse-io/deepwide/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Data holds the fitted feature pipeline and the features of every split.
type Data struct {
	Pipeline *feature.Pipeline
	Train    *feature.Features
	Valid    *feature.Features
	Test     *feature.Features
}

// Architecture derives the model layout from the fitted features.
func (d *Data) Architecture(cfg config.ModelConfig) model.Architecture {
	return model.Architecture{
		Continuous:    d.Pipeline.ContinuousDim(),
		DeepVocabs:    d.Pipeline.VocabLens(),
		Wide:          d.Pipeline.WideDim(),
		EmbeddingSize: cfg.EmbeddingSize,
		Hidden:        cfg.Hidden,
		Dropout:       cfg.Dropout,
	}
}

// Splits are the raw tables of a run.
type Splits struct {
	Train *dataset.Frame
	Valid *dataset.Frame
	Test  *dataset.Frame
	Users *dataset.Frame
	Items *dataset.Frame
}

// LoadSplits reads every input file named by the data configuration.
func LoadSplits(cfg config.DataConfig) (*Splits, error) {
	var (
		splits Splits
		err    error
	)
	if splits.Train, err = dataset.LoadReviews(cfg.Path(cfg.TrainFile)); err != nil {
		return nil, errors.Trace(err)
	}
	if splits.Valid, err = dataset.LoadReviews(cfg.Path(cfg.ValidFile)); err != nil {
		return nil, errors.Trace(err)
	}
	if splits.Test, err = dataset.LoadReviews(cfg.Path(cfg.TestFile)); err != nil {
		return nil, errors.Trace(err)
	}
	if splits.Users, err = dataset.LoadRecords(cfg.Path(cfg.UserFile), dataset.UserKey, dataset.UserPrefix); err != nil {
		return nil, errors.Trace(err)
	}
	if splits.Items, err = dataset.LoadRecords(cfg.Path(cfg.ItemFile), dataset.ItemKey, dataset.ItemPrefix); err != nil {
		return nil, errors.Trace(err)
	}
	return &splits, nil
}

// Prepare joins every split with users and businesses, fits the feature pipeline on the
// training split and the business catalog, and transforms all splits. Under the drop
// policy, reviews of unknown users or businesses are skipped in the training and
// validation splits. The test split always fails on them, since every test record needs
// a prediction.
func Prepare(cfg *config.Config, splits *Splits) (*Data, error) {
	dropMissing := cfg.Data.JoinPolicy == config.JoinPolicyDrop
	train, err := join("train", splits.Train, splits, dropMissing)
	if err != nil {
		return nil, errors.Trace(err)
	}
	valid, err := join("valid", splits.Valid, splits, dropMissing)
	if err != nil {
		return nil, errors.Trace(err)
	}
	test, err := join("test", splits.Test, splits, false)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if train.Len() == 0 {
		return nil, errors.New("empty training split")
	}

	data := &Data{Pipeline: feature.NewPipeline(cfg.Features)}
	if err = data.Pipeline.Fit(train, splits.Items); err != nil {
		return nil, errors.Trace(err)
	}
	if data.Train, err = data.Pipeline.Transform(train); err != nil {
		return nil, errors.Annotate(err, "train")
	}
	if data.Valid, err = data.Pipeline.Transform(valid); err != nil {
		return nil, errors.Annotate(err, "valid")
	}
	if data.Test, err = data.Pipeline.Transform(test); err != nil {
		return nil, errors.Annotate(err, "test")
	}
	return data, nil
}

func join(name string, reviews *dataset.Frame, splits *Splits, dropMissing bool) (*dataset.Frame, error) {
	joined, dropped, err := dataset.Join(reviews, splits.Users, splits.Items, dropMissing)
	if err != nil {
		return nil, errors.Annotatef(err, "join %s", name)
	}
	if dropped > 0 {
		log.Logger().Warn("drop reviews with unknown user or business",
			zap.String("split", name), zap.Int("dropped", dropped))
	}
	return joined, nil
}

// LoadData loads and prepares every split named by the configuration.
func LoadData(cfg *config.Config) (*Data, error) {
	splits, err := LoadSplits(cfg.Data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Prepare(cfg, splits)
}
