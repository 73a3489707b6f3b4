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
	"github.com/chewxy/math32"
	"github.com/gorse-io/deepwide/base"
)

// Uniform creates a tensor filled with uniform random values in [low, high).
func Uniform(rng base.RandomGenerator, low, high float32, shape ...int) *Tensor {
	return NewTensor(rng.UniformVector(numElements(shape), low, high), shape...)
}

// GlorotUniform creates a fanIn x fanOut weight matrix drawn from U(-limit, limit)
// where limit = sqrt(6 / (fanIn + fanOut)).
func GlorotUniform(rng base.RandomGenerator, fanIn, fanOut int) *Tensor {
	limit := math32.Sqrt(6 / float32(fanIn+fanOut))
	return Uniform(rng, -limit, limit, fanIn, fanOut)
}
