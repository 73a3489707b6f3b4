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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gorse-io/deepwide/base/log"
	"github.com/gorse-io/deepwide/cmd/version"
	"github.com/gorse-io/deepwide/config"
	"github.com/gorse-io/deepwide/storage/blob"
	"github.com/gorse-io/deepwide/trainer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "deepwide",
	Short: "Deep and wide rating prediction for Yelp reviews.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a model and predict ratings of the test split.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, data := load(cmd)
		store, err := blob.Open(cfg.Storage)
		if err != nil {
			log.Logger().Fatal("failed to open blob store", zap.Error(err))
		}
		t, err := trainer.NewTrainer(cfg, data.Architecture(cfg.Model), store)
		if err != nil {
			log.Logger().Fatal("failed to create trainer", zap.Error(err))
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		fitConfig := trainer.NewFitConfig().SetProgress(cfg.Training.Verbose)
		if _, err = t.Fit(ctx, data.Train, data.Valid, data.Test, fitConfig); err != nil {
			log.Logger().Fatal("failed to train model", zap.Error(err))
		}
		if err = t.Summary(os.Stdout); err != nil {
			log.Logger().Fatal("failed to render summary", zap.Error(err))
		}
	},
}

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search hyper-parameters that minimise the validation error.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, data := load(cmd)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		result, err := trainer.NewSearch(cfg, data).Run(ctx)
		if err != nil {
			log.Logger().Fatal("failed to search hyper-parameters", zap.Error(err))
		}
		fmt.Printf("best valid RMSE %v at epoch %d with %v\n", result.Score.ValidRMSE, result.Score.Epoch, result.Params)
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show version information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func load(cmd *cobra.Command) (*config.Config, *trainer.Data) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	data, err := trainer.LoadData(cfg)
	if err != nil {
		log.Logger().Fatal("failed to load data", zap.Error(err))
	}
	return cfg, data
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(trainCommand, tuneCommand, versionCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
