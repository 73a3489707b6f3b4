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
	"github.com/gorse-io/deepwide/common/nn"
	"github.com/gorse-io/deepwide/feature"
	"github.com/gorse-io/deepwide/model"
	"github.com/juju/errors"
	"modernc.org/mathutil"
)

const predictBatchSize = 1024

// Batch converts records at indices to model inputs and a target column.
func Batch(arch model.Architecture, features *feature.Features, indices []int) ([]*nn.Tensor, *nn.Tensor) {
	n := len(indices)
	continuous := make([]float32, 0, n*arch.Continuous)
	wide := make([]float32, 0, n*arch.Wide)
	deep := make([][]float32, len(features.Deep))
	for j := range deep {
		deep[j] = make([]float32, n)
	}
	target := make([]float32, n)
	for k, i := range indices {
		continuous = append(continuous, features.Continuous[i]...)
		for j := range deep {
			deep[j][k] = float32(features.Deep[j][i])
		}
		wide = append(wide, feature.Dense(features.Wide[i], arch.Wide)...)
		target[k] = features.Target[i]
	}
	inputs := make([]*nn.Tensor, 0, len(deep)+2)
	inputs = append(inputs, nn.NewTensor(continuous, n, arch.Continuous))
	for j := range deep {
		inputs = append(inputs, nn.NewTensor(deep[j], n, 1))
	}
	inputs = append(inputs, nn.NewTensor(wide, n, arch.Wide))
	return inputs, nn.NewTensor(target, n, 1)
}

// Predict rates every record in order.
func Predict(m *model.DeepWide, features *feature.Features) ([]float32, error) {
	n := features.Len()
	predictions := make([]float32, 0, n)
	indices := make([]int, 0, predictBatchSize)
	for start := 0; start < n; start += predictBatchSize {
		end := mathutil.Min(start+predictBatchSize, n)
		indices = indices[:0]
		for i := start; i < end; i++ {
			indices = append(indices, i)
		}
		inputs, _ := Batch(m.Arch, features, indices)
		y, err := m.Predict(inputs)
		if err != nil {
			return nil, errors.Trace(err)
		}
		predictions = append(predictions, y...)
	}
	return predictions, nil
}
