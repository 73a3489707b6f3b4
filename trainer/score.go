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
	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ErrNoRatings is returned by RMSE when no ground truth rating is available.
const ErrNoRatings errors.ConstError = "no nonzero ratings to evaluate"

// Score of one epoch.
type Score struct {
	Epoch     int
	Loss      float32
	TrainRMSE float32
	ValidRMSE float32
}

func (score Score) ZapFields() []zap.Field {
	return []zap.Field{
		zap.Float32("loss", score.Loss),
		zap.Float32("train_rmse", score.TrainRMSE),
		zap.Float32("valid_rmse", score.ValidRMSE),
	}
}

// BetterThan compares validation errors. A score without validation error is never better.
func (score Score) BetterThan(s Score) bool {
	if score.ValidRMSE == 0 {
		return false
	}
	return s.ValidRMSE == 0 || score.ValidRMSE < s.ValidRMSE
}

// RMSE computes the root mean squared error over entries whose actual rating is nonzero.
// Zero ratings mark records without ground truth.
func RMSE(actual, predicted []float32) (float32, error) {
	if len(actual) != len(predicted) {
		return 0, errors.Errorf("%d ratings but %d predictions", len(actual), len(predicted))
	}
	var (
		sum   float32
		count int
	)
	for i, r := range actual {
		if r == 0 {
			continue
		}
		sum += (r - predicted[i]) * (r - predicted[i])
		count++
	}
	if count == 0 {
		return 0, ErrNoRatings
	}
	return math32.Sqrt(sum / float32(count)), nil
}

type FitConfig struct {
	// Verbose logs scores every Verbose epochs. The last epoch is always logged.
	Verbose int
	// Progress shows a progress bar over mini-batches.
	Progress bool
	// Checkpoint stores the model after every epoch.
	Checkpoint bool
	// Output writes test predictions after the last epoch.
	Output bool
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Verbose:    1,
		Progress:   true,
		Checkpoint: true,
		Output:     true,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetProgress(progress bool) *FitConfig {
	config.Progress = progress
	return config
}

func (config *FitConfig) SetCheckpoint(checkpoint bool) *FitConfig {
	config.Checkpoint = checkpoint
	return config
}

func (config *FitConfig) SetOutput(output bool) *FitConfig {
	config.Output = output
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}
