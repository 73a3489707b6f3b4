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

package nn_test

import (
	"testing"

	"github.com/gorse-io/deepwide/base"
	"github.com/gorse-io/deepwide/common/nn"
	"github.com/stretchr/testify/assert"
)

func testOptimizer(optimizerCreator func(params []*nn.Tensor, lr float32) nn.Optimizer, lr float32, epochs int) (losses []float32) {
	// y = 3x + 1 on [-1, 1]
	xs := make([]float32, 100)
	ys := make([]float32, 100)
	for i := range xs {
		xs[i] = -1 + 2*float32(i)/99
		ys[i] = 3*xs[i] + 1
	}
	x := nn.NewTensor(xs, 100, 1)
	y := nn.NewTensor(ys, 100, 1)

	model := nn.NewLinear(1, 1, base.NewRandomGenerator(0))
	optimizer := optimizerCreator(model.Parameters(), lr)
	for i := 0; i < epochs; i++ {
		yPred := model.Forward(x)
		loss := nn.MeanSquareError(y, yPred)
		losses = append(losses, loss.Data()[0])
		optimizer.ZeroGrad()
		loss.Backward()
		optimizer.Step()
	}
	return
}

func TestSGD(t *testing.T) {
	losses := testOptimizer(nn.NewSGD, 0.1, 100)
	assert.IsDecreasing(t, losses)
	assert.Less(t, losses[len(losses)-1], float32(1e-3))
}

func TestAdam(t *testing.T) {
	losses := testOptimizer(nn.NewAdam, 0.05, 500)
	assert.Less(t, losses[len(losses)-1], losses[0])
	assert.Less(t, losses[len(losses)-1], float32(0.05))
}

func TestAdagrad(t *testing.T) {
	losses := testOptimizer(nn.NewAdagrad, 0.5, 500)
	assert.Less(t, losses[len(losses)-1], losses[0])
	assert.Less(t, losses[len(losses)-1], float32(0.01))
}

func TestWeightDecay(t *testing.T) {
	w := nn.NewTensor([]float32{1}, 1).RequireGrad()
	optimizer := nn.NewSGD([]*nn.Tensor{w}, 0.1)
	optimizer.SetWeightDecay(1)
	loss := nn.Mul(w, nn.NewScalar(0))
	optimizer.ZeroGrad()
	loss.Backward()
	optimizer.Step()
	assert.InDelta(t, float32(0.9), w.Data()[0], 1e-6)

	// parameters without gradients are left alone
	optimizer.ZeroGrad()
	optimizer.Step()
	assert.InDelta(t, float32(0.9), w.Data()[0], 1e-6)
}
