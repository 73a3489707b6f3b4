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
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/deepwide/config"
	"github.com/gorse-io/deepwide/dataset"
	"github.com/gorse-io/deepwide/feature"
	"github.com/gorse-io/deepwide/model"
	"github.com/gorse-io/deepwide/storage/blob"
	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRMSE(t *testing.T) {
	rmse, err := RMSE([]float32{0, 3, 4, 0}, []float32{9, 3, 5, 9})
	assert.NoError(t, err)
	assert.InDelta(t, 0.7071, rmse, 1e-4)

	_, err = RMSE([]float32{0, 0}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrNoRatings)
	_, err = RMSE(nil, nil)
	assert.ErrorIs(t, err, ErrNoRatings)
	_, err = RMSE([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	a := Score{ValidRMSE: 1.0}
	b := Score{ValidRMSE: 1.2}
	assert.True(t, a.BetterThan(b))
	assert.False(t, b.BetterThan(a))
	assert.True(t, a.BetterThan(Score{}))
	assert.False(t, Score{}.BetterThan(a))
	assert.Len(t, a.ZapFields(), 3)
}

func TestFitConfig(t *testing.T) {
	var fitConfig *FitConfig
	fitConfig = fitConfig.LoadDefaultIfNil()
	assert.Equal(t, NewFitConfig(), fitConfig)
	fitConfig.SetVerbose(5).SetProgress(false).SetCheckpoint(false).SetOutput(false)
	assert.Equal(t, &FitConfig{Verbose: 5}, fitConfig)
}

func TestBatch(t *testing.T) {
	arch := model.Architecture{Continuous: 2, DeepVocabs: []int{3}, Wide: 4, EmbeddingSize: 2}
	features := &feature.Features{
		Continuous: [][]float32{{1, 2}, {3, 4}, {5, 6}},
		Deep:       [][]int32{{0, 1, 2}},
		Wide: []*bitset.BitSet{
			bitset.New(4).Set(0),
			bitset.New(4).Set(1).Set(3),
			bitset.New(4),
		},
		Target: []float32{5, 4, 3},
	}
	inputs, target := Batch(arch, features, []int{2, 1})
	require.Len(t, inputs, 3)
	assert.Equal(t, []int{2, 2}, inputs[0].Shape())
	assert.Equal(t, []float32{5, 6, 3, 4}, inputs[0].Data())
	assert.Equal(t, []int{2, 1}, inputs[1].Shape())
	assert.Equal(t, []float32{2, 1}, inputs[1].Data())
	assert.Equal(t, []int{2, 4}, inputs[2].Shape())
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 1, 0, 1}, inputs[2].Data())
	assert.Equal(t, []int{2, 1}, target.Shape())
	assert.Equal(t, []float32{3, 4}, target.Data())
}

// writeFixture writes a small review dataset. Ratings follow business stars, so that they
// can be learned.
func writeFixture(t *testing.T, dir string) {
	fake := faker.NewWithSeed(rand.NewSource(0))
	const numUsers, numItems = 20, 10
	cities := []string{"Phoenix", "Las Vegas", "Tempe"}
	states := []string{"AZ", "NV"}
	categories := []string{"Food", "Bars", "Coffee", "Pizza", "Nightlife"}

	var users strings.Builder
	for i := 0; i < numUsers; i++ {
		_, _ = fmt.Fprintf(&users, `{"user_id": "u%d", "name": %q, "average_stars": %v, "review_count": %d, "yelping_since": "%d-03-04 05:06:07"}`+"\n",
			i, fake.Person().FirstName(), fake.Float64(2, 1, 5), fake.IntBetween(1, 500), fake.IntBetween(2005, 2018))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(users.String()), 0644))

	var items strings.Builder
	items.WriteString("[\n")
	for i := 0; i < numItems; i++ {
		if i > 0 {
			items.WriteString(",\n")
		}
		_, _ = fmt.Fprintf(&items, `{"business_id": "b%d", "city": %q, "state": %q, "stars": %d, "categories": "%s, %s"}`,
			i, cities[i%len(cities)], states[i%len(states)], 1+i%5, categories[i%5], categories[(i+1)%5])
	}
	items.WriteString("\n]\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "business.json"), []byte(items.String()), 0644))

	writeReviews := func(name string, n int, rated bool) {
		var reviews strings.Builder
		if rated {
			reviews.WriteString("user_id,business_id,stars\n")
		} else {
			reviews.WriteString("user_id,business_id\n")
		}
		for i := 0; i < n; i++ {
			u, b := fake.IntBetween(0, numUsers-1), fake.IntBetween(0, numItems-1)
			if rated {
				_, _ = fmt.Fprintf(&reviews, "u%d,b%d,%d\n", u, b, 1+b%5)
			} else {
				_, _ = fmt.Fprintf(&reviews, "u%d,b%d\n", u, b)
			}
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(reviews.String()), 0644))
	}
	writeReviews("train.csv", 200, true)
	writeReviews("valid.csv", 40, true)
	writeReviews("test.csv", 30, false)
}

func newTestConfig(dir string) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Data.Dir = dir
	cfg.Features.ContinuousColumns = []string{"user_average_stars", "user_review_count", "item_stars"}
	cfg.Features.DeepColumns = []string{"item_city", "item_state"}
	cfg.Features.VocabularySize = 4
	cfg.Features.Combinations = []config.CombinationConfig{{Size: 2, TopK: 3}}
	cfg.Model.EmbeddingSize = 4
	cfg.Model.Hidden = []int{8, 4}
	cfg.Model.Dropout = []float32{0.1, 0.1}
	cfg.Training.Epochs = 3
	cfg.Training.BatchSize = 8
	cfg.Training.LearningRate = 0.05
	cfg.Storage.Dir = filepath.Join(dir, "out")
	cfg.Tune.Trials = 2
	cfg.Tune.Epochs = 1
	return cfg
}

func TestLoadData(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := newTestConfig(dir)
	data, err := LoadData(cfg)
	require.NoError(t, err)
	assert.Equal(t, 200, data.Train.Len())
	assert.Equal(t, 40, data.Valid.Len())
	assert.Equal(t, 30, data.Test.Len())
	assert.Equal(t, make([]float32, 30), data.Test.Target)

	arch := data.Architecture(cfg.Model)
	// three columns plus the year
	assert.Equal(t, 4, arch.Continuous)
	assert.Equal(t, []int{4, 3}, arch.DeepVocabs)
	assert.Equal(t, 5+3, arch.Wide)
	assert.Equal(t, cfg.Model.Hidden, arch.Hidden)

	// missing file
	cfg.Data.UserFile = "missing.json"
	_, err = LoadData(cfg)
	assert.Error(t, err)
}

func TestPrepareJoinPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := newTestConfig(dir)
	splits, err := LoadSplits(cfg.Data)
	require.NoError(t, err)
	splits.Valid.Append(map[string]any{dataset.UserKey: "u99", dataset.ItemKey: "b0", dataset.RatingKey: "3"})

	_, err = Prepare(cfg, splits)
	assert.True(t, errors.Is(err, dataset.ErrMissingUser))

	cfg.Data.JoinPolicy = config.JoinPolicyDrop
	data, err := Prepare(cfg, splits)
	require.NoError(t, err)
	assert.Equal(t, 40, data.Valid.Len())

	// test records are never dropped
	splits.Test.Append(map[string]any{dataset.UserKey: "u0", dataset.ItemKey: "b99"})
	_, err = Prepare(cfg, splits)
	assert.True(t, errors.Is(err, dataset.ErrMissingItem))
}

func TestFit(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := newTestConfig(dir)
	data, err := LoadData(cfg)
	require.NoError(t, err)
	store, err := blob.Open(cfg.Storage)
	require.NoError(t, err)

	trainer, err := NewTrainer(cfg, data.Architecture(cfg.Model), store)
	require.NoError(t, err)
	score, err := trainer.Fit(context.Background(), data.Train, data.Valid, data.Test, NewFitConfig().SetProgress(false))
	require.NoError(t, err)
	assert.Equal(t, 3, score.Epoch)
	assert.Positive(t, score.TrainRMSE)
	assert.Positive(t, score.ValidRMSE)
	history := trainer.History()
	require.Len(t, history, 3)
	assert.Equal(t, score, history[2])
	assert.Less(t, history[2].Loss, history[0].Loss)
	best, err := trainer.Best()
	assert.NoError(t, err)
	assert.LessOrEqual(t, best.ValidRMSE, score.ValidRMSE)
	assert.NotEmpty(t, trainer.RunId())

	// predictions
	predictions := trainer.Predictions()
	assert.Len(t, predictions, 30)
	content, err := os.ReadFile(filepath.Join(cfg.Storage.Dir, "20269470.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 31)
	assert.Equal(t, PredictionHeader, lines[0])

	// checkpoint
	m, err := LoadCheckpoint(store, cfg.Training.CheckpointName)
	require.NoError(t, err)
	restored, err := Predict(m, data.Test)
	require.NoError(t, err)
	assert.Equal(t, predictions, restored)
	_, err = LoadCheckpoint(store, "missing.ckpt")
	assert.Error(t, err)

	// summary
	buf := bytes.NewBuffer(nil)
	require.NoError(t, trainer.Summary(buf))
	assert.Contains(t, buf.String(), fmt.Sprint(history[0].Loss))
}

func TestFitDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := newTestConfig(dir)
	cfg.Training.Epochs = 2
	data, err := LoadData(cfg)
	require.NoError(t, err)

	fit := func() []float32 {
		trainer, err := NewTrainer(cfg, data.Architecture(cfg.Model), nil)
		require.NoError(t, err)
		fitConfig := NewFitConfig().SetProgress(false).SetCheckpoint(false).SetOutput(false)
		_, err = trainer.Fit(context.Background(), data.Train, data.Valid, data.Test, fitConfig)
		require.NoError(t, err)
		return trainer.Predictions()
	}
	assert.Equal(t, fit(), fit())
}

func TestFitOptimizers(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := newTestConfig(dir)
	cfg.Training.Epochs = 1
	data, err := LoadData(cfg)
	require.NoError(t, err)
	fitConfig := NewFitConfig().SetProgress(false).SetCheckpoint(false).SetOutput(false)

	for _, optimizer := range []string{config.OptimizerAdam, config.OptimizerSGD} {
		cfg.Training.Optimizer = optimizer
		cfg.Training.LearningRate = 0.01
		trainer, err := NewTrainer(cfg, data.Architecture(cfg.Model), nil)
		require.NoError(t, err)
		_, err = trainer.Fit(context.Background(), data.Train, data.Valid, data.Test, fitConfig)
		assert.NoError(t, err, optimizer)
	}

	cfg.Training.Optimizer = "rmsprop"
	trainer, err := NewTrainer(cfg, data.Architecture(cfg.Model), nil)
	require.NoError(t, err)
	_, err = trainer.Fit(context.Background(), data.Train, data.Valid, data.Test, fitConfig)
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestFitErrors(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := newTestConfig(dir)
	data, err := LoadData(cfg)
	require.NoError(t, err)

	// checkpoints need a store
	trainer, err := NewTrainer(cfg, data.Architecture(cfg.Model), nil)
	require.NoError(t, err)
	_, err = trainer.Fit(context.Background(), data.Train, data.Valid, data.Test, nil)
	assert.Error(t, err)

	// cancellation is checked between mini-batches
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fitConfig := NewFitConfig().SetProgress(false).SetCheckpoint(false).SetOutput(false)
	_, err = trainer.Fit(ctx, data.Train, data.Valid, data.Test, fitConfig)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, trainer.History())

	// a validation split without ratings is scored zero
	unrated := *data.Valid
	unrated.Target = make([]float32, data.Valid.Len())
	score, err := trainer.Fit(context.Background(), data.Train, &unrated, data.Test, fitConfig)
	require.NoError(t, err)
	assert.Zero(t, score.ValidRMSE)
	_, err = trainer.Best()
	assert.ErrorIs(t, err, ErrNoRatings)

	// the predictions file cannot be stored
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Storage.Dir, cfg.Output.Name+".csv", "keep"), os.ModePerm))
	trainer, err = NewTrainer(cfg, data.Architecture(cfg.Model), blob.NewPOSIX(cfg.Storage.Dir))
	require.NoError(t, err)
	_, err = trainer.Fit(context.Background(), data.Train, data.Valid, data.Test, NewFitConfig().SetProgress(false))
	assert.Error(t, err)
}

func TestWritePredictions(t *testing.T) {
	store := blob.NewPOSIX(t.TempDir())
	require.NoError(t, WritePredictions(store, "pred.csv", []float32{3.5, 4, 1.25}))
	var content []byte
	require.NoError(t, blob.Read(store, "pred.csv", func(r io.Reader) error {
		var err error
		content, err = io.ReadAll(r)
		return err
	}))
	assert.Equal(t, "pred\n3.5\n4\n1.25\n", string(content))
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := newTestConfig(dir)
	data, err := LoadData(cfg)
	require.NoError(t, err)

	search := NewSearch(cfg, data)
	result, err := search.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result, search.Result())
	assert.Contains(t, result.Params, "lr")
	assert.Contains(t, result.Params, "embedding_size")
	assert.Contains(t, result.Params, "dropout")
	assert.Positive(t, result.Score.ValidRMSE)
	assert.Equal(t, 1, result.Score.Epoch)

	// the base configuration is left untouched
	assert.Equal(t, 4, cfg.Model.EmbeddingSize)
	assert.Equal(t, []float32{0.1, 0.1}, cfg.Model.Dropout)
	assert.Equal(t, 3, cfg.Training.Epochs)
}
