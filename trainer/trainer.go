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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/deepwide/base"
	"github.com/gorse-io/deepwide/base/encoding"
	"github.com/gorse-io/deepwide/base/log"
	"github.com/gorse-io/deepwide/common/monitor"
	"github.com/gorse-io/deepwide/common/nn"
	"github.com/gorse-io/deepwide/config"
	"github.com/gorse-io/deepwide/feature"
	"github.com/gorse-io/deepwide/model"
	"github.com/gorse-io/deepwide/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"modernc.org/mathutil"
)

// PredictionHeader is the header of the prediction file.
const PredictionHeader = "pred"

// Trainer fits a deep and wide model epoch by epoch. A single random generator seeded by
// the configuration drives weight initialization, dropout and shuffling.
type Trainer struct {
	config *config.Config
	store  blob.Store
	rng    base.RandomGenerator
	model  *model.DeepWide
	pusher *monitor.Pusher
	runId  string

	history     []Score
	predictions []float32
}

// NewTrainer creates a trainer. The store may be nil if neither checkpoints nor
// predictions are written.
func NewTrainer(cfg *config.Config, arch model.Architecture, store blob.Store) (*Trainer, error) {
	rng := base.NewRandomGenerator(cfg.Training.RandomState)
	m, err := model.NewDeepWide(arch, rng.Split())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Trainer{
		config: cfg,
		store:  store,
		rng:    rng,
		model:  m,
		pusher: monitor.NewPusher(cfg.Metrics.PushGateway, cfg.Metrics.Job),
		runId:  uuid.New().String(),
	}, nil
}

func (t *Trainer) Model() *model.DeepWide {
	return t.model
}

func (t *Trainer) RunId() string {
	return t.runId
}

// History returns the scores of all finished epochs.
func (t *Trainer) History() []Score {
	return t.history
}

// Predictions returns the test predictions of the last finished epoch.
func (t *Trainer) Predictions() []float32 {
	return t.predictions
}

// Best returns the epoch with the lowest validation error.
func (t *Trainer) Best() (Score, error) {
	if len(t.history) == 0 {
		return Score{}, errors.New("no finished epoch")
	}
	best := lo.MinBy(t.history, func(a, b Score) bool {
		return a.BetterThan(b)
	})
	if best.ValidRMSE == 0 {
		return best, ErrNoRatings
	}
	return best, nil
}

func (t *Trainer) newOptimizer() (nn.Optimizer, error) {
	var optimizer nn.Optimizer
	params := t.model.Parameters()
	switch t.config.Training.Optimizer {
	case config.OptimizerAdagrad:
		optimizer = nn.NewAdagrad(params, t.config.Training.LearningRate)
	case config.OptimizerAdam:
		optimizer = nn.NewAdam(params, t.config.Training.LearningRate)
	case config.OptimizerSGD:
		optimizer = nn.NewSGD(params, t.config.Training.LearningRate)
	default:
		return nil, errors.NotSupportedf("optimizer %q", t.config.Training.Optimizer)
	}
	optimizer.SetWeightDecay(t.config.Training.WeightDecay)
	return optimizer, nil
}

// Fit trains the model for the configured number of epochs. After every epoch the model is
// checkpointed, train and validation errors are evaluated and the test split is predicted.
// Test predictions are written after the last epoch.
func (t *Trainer) Fit(ctx context.Context, train, valid, test *feature.Features, fitConfig *FitConfig) (Score, error) {
	fitConfig = fitConfig.LoadDefaultIfNil()
	nEpochs := t.config.Training.Epochs
	if (fitConfig.Checkpoint || fitConfig.Output) && t.store == nil {
		return Score{}, errors.New("blob store is required to write checkpoints or predictions")
	}
	if train.Len() == 0 {
		return Score{}, errors.New("empty training split")
	}
	log.Logger().Info("fit DeepWide",
		zap.String("run_id", t.runId),
		zap.Int("train_set_size", train.Len()),
		zap.Int("valid_set_size", valid.Len()),
		zap.Int("test_set_size", test.Len()),
		zap.Any("arch", t.model.Arch),
		zap.Any("training", t.config.Training))
	optimizer, err := t.newOptimizer()
	if err != nil {
		return Score{}, errors.Trace(err)
	}

	indices := lo.Range(train.Len())
	var score Score
	for epoch := 1; epoch <= nEpochs; epoch++ {
		fitStart := time.Now()
		loss, err := t.fitEpoch(ctx, optimizer, train, indices, epoch, fitConfig)
		if err != nil {
			return score, errors.Trace(err)
		}
		fitTime := time.Since(fitStart)

		if fitConfig.Checkpoint {
			if err = t.SaveCheckpoint(); err != nil {
				return score, errors.Trace(err)
			}
		}

		evalStart := time.Now()
		score = Score{Epoch: epoch, Loss: loss}
		score.TrainRMSE, err = t.evaluate("train", train)
		if err != nil {
			return score, errors.Trace(err)
		}
		score.ValidRMSE, err = t.evaluate("valid", valid)
		if err != nil {
			return score, errors.Trace(err)
		}
		if t.predictions, err = Predict(t.model, test); err != nil {
			return score, errors.Trace(err)
		}
		evalTime := time.Since(evalStart)
		t.history = append(t.history, score)

		monitor.ObserveEpoch(t.runId, monitor.Epoch{
			Epoch:     epoch,
			Loss:      score.Loss,
			TrainRMSE: score.TrainRMSE,
			ValidRMSE: score.ValidRMSE,
			Duration:  fitTime,
		})
		if err = t.pusher.Push(); err != nil {
			log.Logger().Warn("failed to push metrics", zap.Error(err))
		}
		if epoch == nEpochs || (fitConfig.Verbose > 0 && epoch%fitConfig.Verbose == 0) {
			fields := append([]zap.Field{
				zap.String("fit_time", fitTime.String()),
				zap.String("eval_time", evalTime.String()),
			}, score.ZapFields()...)
			log.Logger().Info(fmt.Sprintf("fit DeepWide %v/%v", epoch, nEpochs), fields...)
		}
	}

	if fitConfig.Output {
		name := t.config.Output.Name + ".csv"
		if err = WritePredictions(t.store, name, t.predictions); err != nil {
			return score, errors.Trace(err)
		}
		log.Logger().Info("write predictions", zap.String("name", name), zap.Int("n_predictions", len(t.predictions)))
	}
	return score, nil
}

// fitEpoch runs one pass of mini-batch training over a fresh shuffle and returns the mean
// training loss.
func (t *Trainer) fitEpoch(ctx context.Context, optimizer nn.Optimizer, train *feature.Features, indices []int, epoch int, fitConfig *FitConfig) (float32, error) {
	n := len(indices)
	batchSize := t.config.Training.BatchSize
	t.rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	var bar *progressbar.ProgressBar
	if fitConfig.Progress {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch, t.config.Training.Epochs)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
	} else {
		bar = progressbar.DefaultSilent(int64(n))
	}
	defer func() { _ = bar.Finish() }()

	var sum float32
	for start := 0; start < n; start += batchSize {
		if err := ctx.Err(); err != nil {
			return 0, errors.Trace(err)
		}
		end := mathutil.Min(start+batchSize, n)
		inputs, target := Batch(t.model.Arch, train, indices[start:end])
		output, err := t.model.Forward(inputs, true)
		if err != nil {
			return 0, errors.Trace(err)
		}
		loss := nn.MeanSquareError(target, output)
		optimizer.ZeroGrad()
		loss.Backward()
		optimizer.Step()
		sum += loss.Data()[0] * float32(end-start)
		_ = bar.Add(end - start)
	}
	return sum / float32(n), nil
}

// evaluate returns the RMSE of a split. A split without ratings is reported and scored zero.
func (t *Trainer) evaluate(name string, features *feature.Features) (float32, error) {
	predictions, err := Predict(t.model, features)
	if err != nil {
		return 0, errors.Trace(err)
	}
	rmse, err := RMSE(features.Target, predictions)
	if errors.Is(err, ErrNoRatings) {
		log.Logger().Warn("skip evaluation", zap.String("split", name), zap.Error(err))
		return 0, nil
	}
	return rmse, err
}

// SaveCheckpoint overwrites the checkpoint in the blob store.
func (t *Trainer) SaveCheckpoint() error {
	return blob.Write(t.store, t.config.Training.CheckpointName, func(w io.Writer) error {
		return model.MarshalModel(w, t.model)
	})
}

// LoadCheckpoint reads a model saved by SaveCheckpoint.
func LoadCheckpoint(store blob.Store, name string) (*model.DeepWide, error) {
	var m *model.DeepWide
	err := blob.Read(store, name, func(r io.Reader) error {
		var err error
		m, err = model.UnmarshalModel(r)
		return err
	})
	if err != nil {
		return nil, errors.Annotatef(err, "failed to load checkpoint %s", name)
	}
	return m, nil
}

// WritePredictions writes one prediction per line after a header.
func WritePredictions(store blob.Store, name string, predictions []float32) error {
	return blob.Write(store, name, func(w io.Writer) error {
		buf := bufio.NewWriter(w)
		if err := base.WriteLine(buf, PredictionHeader); err != nil {
			return errors.Trace(err)
		}
		for _, p := range predictions {
			if err := base.WriteLine(buf, encoding.FormatFloat32(p)); err != nil {
				return errors.Trace(err)
			}
		}
		return buf.Flush()
	})
}

// Summary renders the scores of all epochs as a table.
func (t *Trainer) Summary(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Epoch", "Loss", "Train RMSE", "Valid RMSE"})
	for _, score := range t.history {
		if err := table.Append([]string{
			fmt.Sprint(score.Epoch),
			fmt.Sprint(score.Loss),
			fmt.Sprint(score.TrainRMSE),
			fmt.Sprint(score.ValidRMSE),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return table.Render()
}
