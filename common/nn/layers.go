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

package nn

import (
	"github.com/gorse-io/deepwide/base"
)

type Layer interface {
	Parameters() []*Tensor
	Forward(x *Tensor) *Tensor
}

// Trainable is implemented by layers that behave differently during training.
type Trainable interface {
	SetTraining(training bool)
}

type LinearLayer struct {
	W *Tensor
	B *Tensor
}

// NewLinear creates a fully connected layer with Glorot-uniform weights and zero bias.
func NewLinear(in, out int, rng base.RandomGenerator) *LinearLayer {
	return &LinearLayer{
		W: GlorotUniform(rng, in, out).RequireGrad(),
		B: Zeros(out).RequireGrad(),
	}
}

func (l *LinearLayer) Forward(x *Tensor) *Tensor {
	return Add(MatMul(x, l.W), l.B)
}

func (l *LinearLayer) Parameters() []*Tensor {
	return []*Tensor{l.W, l.B}
}

type EmbeddingLayer struct {
	W *Tensor
}

// NewEmbedding creates an n x dim lookup table initialized from U(-0.05, 0.05).
func NewEmbedding(n, dim int, rng base.RandomGenerator) *EmbeddingLayer {
	return &EmbeddingLayer{
		W: Uniform(rng, -0.05, 0.05, n, dim).RequireGrad(),
	}
}

func (e *EmbeddingLayer) Parameters() []*Tensor {
	return []*Tensor{e.W}
}

func (e *EmbeddingLayer) Forward(x *Tensor) *Tensor {
	return Embedding(e.W, x)
}

type reluLayer struct{}

func NewReLU() Layer {
	return &reluLayer{}
}

func (r *reluLayer) Parameters() []*Tensor {
	return nil
}

func (r *reluLayer) Forward(x *Tensor) *Tensor {
	return ReLu(x)
}

// DropoutLayer zeroes each input with probability rate while training and scales the
// survivors by 1/(1-rate). It is the identity otherwise.
type DropoutLayer struct {
	rate     float32
	rng      base.RandomGenerator
	training bool
}

func NewDropout(rate float32, rng base.RandomGenerator) *DropoutLayer {
	return &DropoutLayer{rate: rate, rng: rng}
}

func (d *DropoutLayer) Parameters() []*Tensor {
	return nil
}

func (d *DropoutLayer) SetTraining(training bool) {
	d.training = training
}

func (d *DropoutLayer) Forward(x *Tensor) *Tensor {
	if !d.training || d.rate <= 0 {
		return x
	}
	mask := d.rng.BernoulliVector(len(x.data), 1-d.rate)
	scale := 1 / (1 - d.rate)
	for i := range mask {
		mask[i] *= scale
	}
	return Dropout(x, mask)
}

type Sequential struct {
	Layers []Layer
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

func (s *Sequential) Parameters() []*Tensor {
	var params []*Tensor
	for _, l := range s.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (s *Sequential) SetTraining(training bool) {
	for _, l := range s.Layers {
		if t, ok := l.(Trainable); ok {
			t.SetTraining(training)
		}
	}
}

func (s *Sequential) Forward(x *Tensor) *Tensor {
	for _, l := range s.Layers {
		x = l.Forward(x)
	}
	return x
}
