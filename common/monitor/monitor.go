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

package monitor

import (
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const LabelRun = "run"

var (
	EpochTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deepwide",
		Subsystem: "trainer",
		Name:      "epoch_total",
	}, []string{LabelRun})
	EpochLoss = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deepwide",
		Subsystem: "trainer",
		Name:      "epoch_loss",
	}, []string{LabelRun})
	EpochTrainRMSE = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deepwide",
		Subsystem: "trainer",
		Name:      "epoch_train_rmse",
	}, []string{LabelRun})
	EpochValidRMSE = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deepwide",
		Subsystem: "trainer",
		Name:      "epoch_valid_rmse",
	}, []string{LabelRun})
	EpochSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "deepwide",
		Subsystem: "trainer",
		Name:      "epoch_seconds",
	}, []string{LabelRun})
)

// Epoch is the outcome of one training epoch.
type Epoch struct {
	Epoch     int
	Loss      float32
	TrainRMSE float32
	ValidRMSE float32
	Duration  time.Duration
}

// ObserveEpoch sets the gauges of a run.
func ObserveEpoch(run string, epoch Epoch) {
	EpochTotal.WithLabelValues(run).Set(float64(epoch.Epoch))
	EpochLoss.WithLabelValues(run).Set(float64(epoch.Loss))
	EpochTrainRMSE.WithLabelValues(run).Set(float64(epoch.TrainRMSE))
	EpochValidRMSE.WithLabelValues(run).Set(float64(epoch.ValidRMSE))
	EpochSeconds.WithLabelValues(run).Set(epoch.Duration.Seconds())
}

// Pusher sends the gauges of a run to a Prometheus push gateway. A pusher without a
// gateway does nothing.
type Pusher struct {
	pusher *push.Pusher
}

func NewPusher(gateway, job string) *Pusher {
	if gateway == "" {
		return &Pusher{}
	}
	return &Pusher{
		pusher: push.New(gateway, job).
			Collector(EpochTotal).
			Collector(EpochLoss).
			Collector(EpochTrainRMSE).
			Collector(EpochValidRMSE).
			Collector(EpochSeconds),
	}
}

func (p *Pusher) Push() error {
	if p.pusher == nil {
		return nil
	}
	return errors.Trace(p.pusher.Push())
}
