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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveEpoch(t *testing.T) {
	ObserveEpoch("test", Epoch{
		Epoch:     3,
		Loss:      1.5,
		TrainRMSE: 1.25,
		ValidRMSE: 1.75,
		Duration:  2 * time.Second,
	})
	assert.Equal(t, float64(3), testutil.ToFloat64(EpochTotal.WithLabelValues("test")))
	assert.Equal(t, 1.5, testutil.ToFloat64(EpochLoss.WithLabelValues("test")))
	assert.Equal(t, 1.25, testutil.ToFloat64(EpochTrainRMSE.WithLabelValues("test")))
	assert.Equal(t, 1.75, testutil.ToFloat64(EpochValidRMSE.WithLabelValues("test")))
	assert.Equal(t, float64(2), testutil.ToFloat64(EpochSeconds.WithLabelValues("test")))
}

func TestPusher(t *testing.T) {
	// no gateway
	assert.NoError(t, NewPusher("", "deepwide").Push())

	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	ObserveEpoch("push", Epoch{Epoch: 1})
	assert.NoError(t, NewPusher(server.URL, "deepwide").Push())
	assert.True(t, strings.Contains(body, "deepwide_trainer_epoch_total"))
}
