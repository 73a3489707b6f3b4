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
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	JoinPolicyError = "error"
	JoinPolicyDrop  = "drop"

	OptimizerAdagrad = "adagrad"
	OptimizerAdam    = "adam"
	OptimizerSGD     = "sgd"

	StoragePosix = "posix"
	StorageS3    = "s3"
	StorageGCS   = "gcs"
	StorageAzure = "azure"
)

// Config is the configuration for a training run.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Features FeaturesConfig `mapstructure:"features"`
	Model    ModelConfig    `mapstructure:"model"`
	Training TrainingConfig `mapstructure:"training"`
	Tune     TuneConfig     `mapstructure:"tune"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Output   OutputConfig   `mapstructure:"output"`
}

// DataConfig locates input files. Relative file names are resolved against Dir.
type DataConfig struct {
	Dir        string `mapstructure:"dir"`
	TrainFile  string `mapstructure:"train_file" validate:"required"`
	ValidFile  string `mapstructure:"valid_file" validate:"required"`
	TestFile   string `mapstructure:"test_file" validate:"required"`
	UserFile   string `mapstructure:"user_file" validate:"required"`
	ItemFile   string `mapstructure:"item_file" validate:"required"`
	JoinPolicy string `mapstructure:"join_policy" validate:"oneof=error drop"`
}

// Path resolves a data file name.
func (c *DataConfig) Path(name string) string {
	if filepath.IsAbs(name) || c.Dir == "" {
		return name
	}
	return filepath.Join(c.Dir, name)
}

type CombinationConfig struct {
	Size int `mapstructure:"size" validate:"gte=2"`
	TopK int `mapstructure:"top_k" validate:"gt=0"`
}

type FeaturesConfig struct {
	ContinuousColumns []string            `mapstructure:"continuous_columns" validate:"required,dive,required"`
	YearColumn        string              `mapstructure:"year_column"`
	DeepColumns       []string            `mapstructure:"deep_columns" validate:"required,dive,required"`
	CategoryColumn    string              `mapstructure:"category_column" validate:"required"`
	CategorySeparator string              `mapstructure:"category_separator" validate:"required"`
	VocabularySize    int                 `mapstructure:"vocabulary_size" validate:"gt=0"`
	Combinations      []CombinationConfig `mapstructure:"combinations" validate:"dive"`
}

type ModelConfig struct {
	EmbeddingSize int       `mapstructure:"embedding_size" validate:"gt=0"`
	Hidden        []int     `mapstructure:"hidden" validate:"required,dive,gt=0"`
	Dropout       []float32 `mapstructure:"dropout" validate:"dive,gte=0,lt=1"`
}

type TrainingConfig struct {
	Epochs         int     `mapstructure:"epochs" validate:"gt=0"`
	BatchSize      int     `mapstructure:"batch_size" validate:"gt=0"`
	Optimizer      string  `mapstructure:"optimizer" validate:"oneof=adagrad adam sgd"`
	LearningRate   float32 `mapstructure:"learning_rate" validate:"gt=0"`
	WeightDecay    float32 `mapstructure:"weight_decay" validate:"gte=0"`
	RandomState    int64   `mapstructure:"random_state"`
	CheckpointName string  `mapstructure:"checkpoint_name" validate:"required"`
	Verbose        bool    `mapstructure:"verbose"`
}

type TuneConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	Trials int    `mapstructure:"trials" validate:"gt=0"`
	Epochs int    `mapstructure:"epochs" validate:"gt=0"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

type StorageConfig struct {
	Backend string      `mapstructure:"backend" validate:"oneof=posix s3 gcs azure"`
	Dir     string      `mapstructure:"dir"`
	S3      S3Config    `mapstructure:"s3"`
	GCS     GCSConfig   `mapstructure:"gcs"`
	Azure   AzureConfig `mapstructure:"azure"`
}

type MetricsConfig struct {
	PushGateway string `mapstructure:"push_gateway" validate:"omitempty,url"`
	Job         string `mapstructure:"job" validate:"required"`
}

type OutputConfig struct {
	Name string `mapstructure:"name" validate:"required"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			TrainFile:  "train.csv",
			ValidFile:  "valid.csv",
			TestFile:   "test.csv",
			UserFile:   "user.json",
			ItemFile:   "business.json",
			JoinPolicy: JoinPolicyError,
		},
		Features: FeaturesConfig{
			ContinuousColumns: []string{
				"user_average_stars", "user_cool", "user_fans", "user_review_count", "user_useful", "user_funny",
				"item_is_open", "item_latitude", "item_longitude", "item_review_count", "item_stars",
			},
			YearColumn:        "user_yelping_since",
			DeepColumns:       []string{"item_city", "item_postal_code", "item_state"},
			CategoryColumn:    "item_categories",
			CategorySeparator: ", ",
			VocabularySize:    500,
			Combinations: []CombinationConfig{
				{Size: 2, TopK: 225},
				{Size: 3, TopK: 80},
				{Size: 4, TopK: 15},
			},
		},
		Model: ModelConfig{
			EmbeddingSize: 200,
			Hidden:        []int{1024, 512, 256},
			Dropout:       []float32{0.05, 0.1, 0.1},
		},
		Training: TrainingConfig{
			Epochs:         10,
			BatchSize:      32,
			Optimizer:      OptimizerAdagrad,
			LearningRate:   0.005,
			RandomState:    2019,
			CheckpointName: "model.ckpt",
			Verbose:        true,
		},
		Tune: TuneConfig{
			Name:   "deepwide",
			Trials: 10,
			Epochs: 3,
		},
		Storage: StorageConfig{
			Backend: StoragePosix,
			Dir:     ".",
		},
		Metrics: MetricsConfig{
			Job: "deepwide",
		},
		Output: OutputConfig{
			Name: "20269470",
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.dir", defaultConfig.Data.Dir)
	v.SetDefault("data.train_file", defaultConfig.Data.TrainFile)
	v.SetDefault("data.valid_file", defaultConfig.Data.ValidFile)
	v.SetDefault("data.test_file", defaultConfig.Data.TestFile)
	v.SetDefault("data.user_file", defaultConfig.Data.UserFile)
	v.SetDefault("data.item_file", defaultConfig.Data.ItemFile)
	v.SetDefault("data.join_policy", defaultConfig.Data.JoinPolicy)
	// [features]
	v.SetDefault("features.continuous_columns", defaultConfig.Features.ContinuousColumns)
	v.SetDefault("features.year_column", defaultConfig.Features.YearColumn)
	v.SetDefault("features.deep_columns", defaultConfig.Features.DeepColumns)
	v.SetDefault("features.category_column", defaultConfig.Features.CategoryColumn)
	v.SetDefault("features.category_separator", defaultConfig.Features.CategorySeparator)
	v.SetDefault("features.vocabulary_size", defaultConfig.Features.VocabularySize)
	v.SetDefault("features.combinations", []map[string]any{
		{"size": 2, "top_k": 225},
		{"size": 3, "top_k": 80},
		{"size": 4, "top_k": 15},
	})
	// [model]
	v.SetDefault("model.embedding_size", defaultConfig.Model.EmbeddingSize)
	v.SetDefault("model.hidden", defaultConfig.Model.Hidden)
	v.SetDefault("model.dropout", defaultConfig.Model.Dropout)
	// [training]
	v.SetDefault("training.epochs", defaultConfig.Training.Epochs)
	v.SetDefault("training.batch_size", defaultConfig.Training.BatchSize)
	v.SetDefault("training.optimizer", defaultConfig.Training.Optimizer)
	v.SetDefault("training.learning_rate", defaultConfig.Training.LearningRate)
	v.SetDefault("training.weight_decay", defaultConfig.Training.WeightDecay)
	v.SetDefault("training.random_state", defaultConfig.Training.RandomState)
	v.SetDefault("training.checkpoint_name", defaultConfig.Training.CheckpointName)
	v.SetDefault("training.verbose", defaultConfig.Training.Verbose)
	// [tune]
	v.SetDefault("tune.name", defaultConfig.Tune.Name)
	v.SetDefault("tune.trials", defaultConfig.Tune.Trials)
	v.SetDefault("tune.epochs", defaultConfig.Tune.Epochs)
	// [storage]
	v.SetDefault("storage.backend", defaultConfig.Storage.Backend)
	v.SetDefault("storage.dir", defaultConfig.Storage.Dir)
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.use_ssl", false)
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "")
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("storage.azure.connection_string", "")
	v.SetDefault("storage.azure.container", "")
	v.SetDefault("storage.azure.prefix", "")
	// [metrics]
	v.SetDefault("metrics.push_gateway", defaultConfig.Metrics.PushGateway)
	v.SetDefault("metrics.job", defaultConfig.Metrics.Job)
	// [output]
	v.SetDefault("output.name", defaultConfig.Output.Name)
}

// LoadConfig loads configuration from a TOML file. Every key can be overridden by an
// environment variable named DEEPWIDE_<SECTION>_<KEY>. An empty path loads defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("DEEPWIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigType("toml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
