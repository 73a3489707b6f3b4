// Copyright 2020 gorse Project Authors
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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	config, err := LoadConfig("config.toml.template")
	require.NoError(t, err)

	// [data]
	assert.Equal(t, "data", config.Data.Dir)
	assert.Equal(t, "train.csv", config.Data.TrainFile)
	assert.Equal(t, "valid.csv", config.Data.ValidFile)
	assert.Equal(t, "test.csv", config.Data.TestFile)
	assert.Equal(t, "user.json", config.Data.UserFile)
	assert.Equal(t, "business.json", config.Data.ItemFile)
	assert.Equal(t, JoinPolicyError, config.Data.JoinPolicy)
	assert.Equal(t, filepath.Join("data", "train.csv"), config.Data.Path(config.Data.TrainFile))
	// [features]
	assert.Len(t, config.Features.ContinuousColumns, 11)
	assert.Equal(t, "user_yelping_since", config.Features.YearColumn)
	assert.Equal(t, []string{"item_city", "item_postal_code", "item_state"}, config.Features.DeepColumns)
	assert.Equal(t, "item_categories", config.Features.CategoryColumn)
	assert.Equal(t, ", ", config.Features.CategorySeparator)
	assert.Equal(t, 500, config.Features.VocabularySize)
	assert.Equal(t, []CombinationConfig{{2, 225}, {3, 80}, {4, 15}}, config.Features.Combinations)
	// [model]
	assert.Equal(t, 200, config.Model.EmbeddingSize)
	assert.Equal(t, []int{1024, 512, 256}, config.Model.Hidden)
	assert.Equal(t, []float32{0.05, 0.1, 0.1}, config.Model.Dropout)
	// [training]
	assert.Equal(t, 10, config.Training.Epochs)
	assert.Equal(t, 32, config.Training.BatchSize)
	assert.Equal(t, OptimizerAdagrad, config.Training.Optimizer)
	assert.Equal(t, float32(0.005), config.Training.LearningRate)
	assert.Zero(t, config.Training.WeightDecay)
	assert.Equal(t, int64(2019), config.Training.RandomState)
	assert.Equal(t, "model.ckpt", config.Training.CheckpointName)
	assert.True(t, config.Training.Verbose)
	// [tune]
	assert.Equal(t, "deepwide", config.Tune.Name)
	assert.Equal(t, 10, config.Tune.Trials)
	assert.Equal(t, 3, config.Tune.Epochs)
	// [storage]
	assert.Equal(t, StoragePosix, config.Storage.Backend)
	assert.Equal(t, ".", config.Storage.Dir)
	assert.False(t, config.Storage.S3.UseSSL)
	// [metrics]
	assert.Empty(t, config.Metrics.PushGateway)
	assert.Equal(t, "deepwide", config.Metrics.Job)
	// [output]
	assert.Equal(t, "20269470", config.Output.Name)
}

func TestDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	expected := GetDefaultConfig()
	assert.Equal(t, expected.Features, config.Features)
	assert.Equal(t, expected.Model, config.Model)
	assert.Equal(t, expected.Training, config.Training)
	assert.Equal(t, expected.Data, config.Data)
	assert.Equal(t, "train.csv", config.Data.Path("train.csv"))
	assert.Equal(t, "/tmp/train.csv", config.Data.Path("/tmp/train.csv"))
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("DEEPWIDE_TRAINING_EPOCHS", "3")
	t.Setenv("DEEPWIDE_TRAINING_OPTIMIZER", "adam")
	t.Setenv("DEEPWIDE_DATA_JOIN_POLICY", "drop")
	t.Setenv("DEEPWIDE_STORAGE_BACKEND", "s3")
	t.Setenv("DEEPWIDE_STORAGE_S3_ENDPOINT", "localhost:9000")
	t.Setenv("DEEPWIDE_STORAGE_S3_BUCKET", "models")
	t.Setenv("DEEPWIDE_MODEL_HIDDEN", "64,32")
	t.Setenv("DEEPWIDE_MODEL_DROPOUT", "0.2,0.3")
	config, err := LoadConfig("config.toml.template")
	require.NoError(t, err)
	assert.Equal(t, 3, config.Training.Epochs)
	assert.Equal(t, OptimizerAdam, config.Training.Optimizer)
	assert.Equal(t, JoinPolicyDrop, config.Data.JoinPolicy)
	assert.Equal(t, StorageS3, config.Storage.Backend)
	assert.Equal(t, "localhost:9000", config.Storage.S3.Endpoint)
	assert.Equal(t, "models", config.Storage.S3.Bucket)
	assert.Equal(t, []int{64, 32}, config.Model.Hidden)
	assert.Equal(t, []float32{0.2, 0.3}, config.Model.Dropout)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, GetDefaultConfig().Validate())
	// trailing hidden layers may go without dropout
	c := GetDefaultConfig()
	c.Model.Dropout = []float32{0.1}
	assert.NoError(t, c.Validate())
	c.Model.Dropout = nil
	assert.NoError(t, c.Validate())

	mutations := map[string]func(c *Config){
		"join policy":       func(c *Config) { c.Data.JoinPolicy = "ignore" },
		"optimizer":         func(c *Config) { c.Training.Optimizer = "rmsprop" },
		"batch size":        func(c *Config) { c.Training.BatchSize = 0 },
		"learning rate":     func(c *Config) { c.Training.LearningRate = 0 },
		"dropout rate":      func(c *Config) { c.Model.Dropout = []float32{1, 0.1, 0.1} },
		"dropout length":    func(c *Config) { c.Model.Dropout = []float32{0.1, 0.1, 0.1, 0.1} },
		"hidden units":      func(c *Config) { c.Model.Hidden = []int{10, 0, 10} },
		"combination size":  func(c *Config) { c.Features.Combinations[0].Size = 1 },
		"vocabulary size":   func(c *Config) { c.Features.VocabularySize = 0 },
		"deep columns":      func(c *Config) { c.Features.DeepColumns = nil },
		"storage backend":   func(c *Config) { c.Storage.Backend = "ftp" },
		"s3 without bucket": func(c *Config) { c.Storage.Backend = StorageS3; c.Storage.S3.Endpoint = "localhost:9000" },
		"push gateway":      func(c *Config) { c.Metrics.PushGateway = "not a url" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := GetDefaultConfig()
			mutate(c)
			err := c.Validate()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, errors.NotValid))
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[training]\noptimizer = \"lbfgs\"\n"), 0644))
	_, err = LoadConfig(path)
	assert.True(t, errors.Is(err, errors.NotValid))
}
