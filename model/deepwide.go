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

package model

import (
	"fmt"
	"io"

	"github.com/gorse-io/deepwide/base"
	"github.com/gorse-io/deepwide/base/encoding"
	"github.com/gorse-io/deepwide/common/nn"
	"github.com/juju/errors"
)

const headerDeepWide = "DeepWide"

// ErrInputArity is returned when the number of inputs does not match the architecture.
const ErrInputArity errors.ConstError = "wrong number of model inputs"

// Architecture describes the layers of a deep and wide model.
type Architecture struct {
	Continuous    int
	DeepVocabs    []int
	Wide          int
	EmbeddingSize int
	Hidden        []int
	Dropout       []float32
}

// NumInputs returns the number of tensors expected by Forward: the continuous matrix,
// one index vector per deep column and the wide matrix.
func (a Architecture) NumInputs() int {
	return len(a.DeepVocabs) + 2
}

func (a Architecture) validate() error {
	if a.Continuous < 0 || a.Wide < 0 {
		return errors.NotValidf("input sizes (%d, %d)", a.Continuous, a.Wide)
	}
	if a.EmbeddingSize <= 0 && len(a.DeepVocabs) > 0 {
		return errors.NotValidf("embedding size %d", a.EmbeddingSize)
	}
	for _, n := range a.DeepVocabs {
		if n <= 0 {
			return errors.NotValidf("deep vocabulary length %d", n)
		}
	}
	for _, n := range a.Hidden {
		if n <= 0 {
			return errors.NotValidf("hidden size %d", n)
		}
	}
	if len(a.Dropout) > len(a.Hidden) {
		return errors.NotValidf("%d dropout rates for %d hidden layers", len(a.Dropout), len(a.Hidden))
	}
	return nil
}

// DeepWide joins a deep tower over embeddings and continuous features with a linear
// model over the wide binary features.
type DeepWide struct {
	Arch Architecture

	embeddings []*nn.EmbeddingLayer
	tower      *nn.Sequential
	output     *nn.LinearLayer
}

// NewDeepWide builds a model. Weights and dropout masks are drawn from rng.
func NewDeepWide(arch Architecture, rng base.RandomGenerator) (*DeepWide, error) {
	if err := arch.validate(); err != nil {
		return nil, errors.Trace(err)
	}
	m := &DeepWide{Arch: arch}
	for _, n := range arch.DeepVocabs {
		m.embeddings = append(m.embeddings, nn.NewEmbedding(n, arch.EmbeddingSize, rng))
	}
	in := len(arch.DeepVocabs)*arch.EmbeddingSize + arch.Continuous
	var layers []nn.Layer
	for i, out := range arch.Hidden {
		var rate float32
		if i < len(arch.Dropout) {
			rate = arch.Dropout[i]
		}
		layers = append(layers, nn.NewLinear(in, out, rng), nn.NewReLU(), nn.NewDropout(rate, rng))
		in = out
	}
	m.tower = nn.NewSequential(layers...)
	m.output = nn.NewLinear(in+arch.Wide, 1, rng)
	return m, nil
}

// Parameters returns embeddings, tower weights and output weights in a fixed order.
func (m *DeepWide) Parameters() []*nn.Tensor {
	var params []*nn.Tensor
	for _, e := range m.embeddings {
		params = append(params, e.Parameters()...)
	}
	params = append(params, m.tower.Parameters()...)
	params = append(params, m.output.Parameters()...)
	return params
}

// Forward predicts a batch of ratings. Inputs are ordered as [continuous, deep_1 .. deep_n,
// wide]; continuous is batch x Continuous, deep_j is a batch x 1 column of indices and wide
// is batch x Wide. The result is batch x 1. Dropout is only applied when training.
func (m *DeepWide) Forward(inputs []*nn.Tensor, training bool) (*nn.Tensor, error) {
	if len(inputs) != m.Arch.NumInputs() {
		return nil, errors.Annotatef(ErrInputArity, "expect %d inputs, got %d", m.Arch.NumInputs(), len(inputs))
	}
	continuous, wide := inputs[0], inputs[len(inputs)-1]
	deep := inputs[1 : len(inputs)-1]
	if err := checkMatrix("continuous", continuous, m.Arch.Continuous); err != nil {
		return nil, err
	}
	batchSize := continuous.Shape()[0]
	if err := checkMatrix("wide", wide, m.Arch.Wide); err != nil {
		return nil, err
	}
	if wide.Shape()[0] != batchSize {
		return nil, errors.NotValidf("wide batch size %d", wide.Shape()[0])
	}
	parts := make([]*nn.Tensor, 0, len(deep)+1)
	for j, x := range deep {
		if err := checkMatrix(fmt.Sprintf("deep %d", j), x, 1); err != nil {
			return nil, err
		}
		if x.Shape()[0] != batchSize {
			return nil, errors.NotValidf("deep input %d batch size %d", j, x.Shape()[0])
		}
		for _, v := range x.Data() {
			if int(v) < 0 || int(v) >= m.Arch.DeepVocabs[j] {
				return nil, errors.NotValidf("deep input %d index %v", j, v)
			}
		}
		// batch x 1 x EmbeddingSize
		parts = append(parts, nn.Flatten(m.embeddings[j].Forward(x)))
	}
	parts = append(parts, continuous)

	m.tower.SetTraining(training)
	hidden := m.tower.Forward(nn.Concat(parts...))
	return m.output.Forward(nn.Concat(hidden, wide)), nil
}

func checkMatrix(name string, x *nn.Tensor, cols int) error {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != cols {
		return errors.NotValidf("%s input with shape %v", name, shape)
	}
	return nil
}

// Predict runs Forward in evaluation mode and flattens the result.
func (m *DeepWide) Predict(inputs []*nn.Tensor) ([]float32, error) {
	y, err := m.Forward(inputs, false)
	if err != nil {
		return nil, err
	}
	return y.Data(), nil
}

func (m *DeepWide) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, m.Arch); err != nil {
		return errors.Trace(err)
	}
	return nn.WriteParameters(w, m.Parameters())
}

func (m *DeepWide) Unmarshal(r io.Reader) error {
	var arch Architecture
	if err := encoding.ReadGob(r, &arch); err != nil {
		return errors.Trace(err)
	}
	// parameters are overwritten below, so the seed does not matter
	restored, err := NewDeepWide(arch, base.NewRandomGenerator(0))
	if err != nil {
		return errors.Trace(err)
	}
	if err = nn.ReadParameters(r, restored.Parameters()); err != nil {
		return errors.Trace(err)
	}
	*m = *restored
	return nil
}

// MarshalModel writes a model with its header.
func MarshalModel(w io.Writer, m *DeepWide) error {
	if err := encoding.WriteString(w, headerDeepWide); err != nil {
		return errors.Trace(err)
	}
	return m.Marshal(w)
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (*DeepWide, error) {
	header, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch header {
	case headerDeepWide:
		var m DeepWide
		if err := m.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &m, nil
	}
	return nil, fmt.Errorf("unknown model: %v", header)
}
