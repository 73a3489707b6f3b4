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
	"context"
	"slices"
	"strconv"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/deepwide/base/log"
	"github.com/gorse-io/deepwide/config"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var embeddingSizes = []string{"16", "32", "64", "128", "200"}

// Result is the best trial of a search.
type Result struct {
	Params map[string]any
	Score  Score
}

// Search tunes the learning rate, the embedding size and the first dropout rate by
// minimising the validation error.
type Search struct {
	ctx    context.Context
	config *config.Config
	data   *Data
	result Result
	found  bool
}

func NewSearch(cfg *config.Config, data *Data) *Search {
	return &Search{
		ctx:    context.Background(),
		config: cfg,
		data:   data,
	}
}

// trialConfig copies the configuration and applies suggested hyper-parameters.
func (s *Search) trialConfig(lr float64, embeddingSize int, dropout float64) *config.Config {
	cfg := *s.config
	cfg.Training.LearningRate = float32(lr)
	cfg.Training.Epochs = s.config.Tune.Epochs
	cfg.Model.EmbeddingSize = embeddingSize
	cfg.Model.Hidden = slices.Clone(s.config.Model.Hidden)
	cfg.Model.Dropout = slices.Clone(s.config.Model.Dropout)
	if len(cfg.Model.Dropout) > 0 {
		cfg.Model.Dropout[0] = float32(dropout)
	} else if len(cfg.Model.Hidden) > 0 {
		cfg.Model.Dropout = []float32{float32(dropout)}
	}
	return &cfg
}

func (s *Search) Objective(trial goptuna.Trial) (float64, error) {
	lr := lo.Must(trial.SuggestLogFloat("lr", 1e-4, 5e-2))
	embeddingSize, err := trial.SuggestCategorical("embedding_size", embeddingSizes)
	if err != nil {
		return 0, errors.Trace(err)
	}
	dropout := lo.Must(trial.SuggestFloat("dropout", 0, 0.5))
	size, err := strconv.Atoi(embeddingSize)
	if err != nil {
		return 0, errors.Trace(err)
	}

	cfg := s.trialConfig(lr, size, dropout)
	t, err := NewTrainer(cfg, s.data.Architecture(cfg.Model), nil)
	if err != nil {
		return 0, errors.Trace(err)
	}
	fitConfig := NewFitConfig().
		SetVerbose(0).
		SetProgress(false).
		SetCheckpoint(false).
		SetOutput(false)
	if _, err = t.Fit(s.ctx, s.data.Train, s.data.Valid, s.data.Test, fitConfig); err != nil {
		return 0, errors.Trace(err)
	}
	score, err := t.Best()
	if err != nil {
		return 0, errors.Trace(err)
	}
	params := map[string]any{
		"lr":             lr,
		"embedding_size": size,
		"dropout":        dropout,
	}
	log.Logger().Info("finish trial", append([]zap.Field{zap.Any("params", params), zap.Int("best_epoch", score.Epoch)}, score.ZapFields()...)...)
	if !s.found || score.BetterThan(s.result.Score) {
		s.result = Result{Params: params, Score: score}
		s.found = true
	}
	return float64(score.ValidRMSE), nil
}

func (s *Search) Result() Result {
	return s.result
}

// Run optimizes the objective with a TPE sampler for the configured number of trials.
func (s *Search) Run(ctx context.Context) (Result, error) {
	s.ctx = ctx
	study, err := goptuna.CreateStudy(s.config.Tune.Name,
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(s.config.Training.RandomState))))
	if err != nil {
		return Result{}, errors.Trace(err)
	}
	if err = study.Optimize(s.Objective, s.config.Tune.Trials); err != nil {
		return Result{}, errors.Trace(err)
	}
	log.Logger().Info("finish search", append([]zap.Field{zap.Any("params", s.result.Params)}, s.result.Score.ZapFields()...)...)
	return s.result, nil
}
