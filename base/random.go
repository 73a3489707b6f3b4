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

package base

import (
	"math/rand"
)

// RandomGenerator is the random generator shared by every stochastic component of a
// training run: weight initialization, dropout masks and mini-batch shuffling. It is
// passed explicitly instead of seeding the global source, so that independent runs
// with the same seed are reproducible side by side.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// UniformVector makes a vec filled with uniform random floats in [low, high).
func (rng RandomGenerator) UniformVector(size int, low, high float32) []float32 {
	ret := make([]float32, size)
	scale := high - low
	for i := 0; i < len(ret); i++ {
		ret[i] = rng.Float32()*scale + low
	}
	return ret
}

// NormalVector makes a vec filled with normal random floats.
func (rng RandomGenerator) NormalVector(size int, mean, stdDev float32) []float32 {
	ret := make([]float32, size)
	for i := 0; i < len(ret); i++ {
		ret[i] = float32(rng.NormFloat64())*stdDev + mean
	}
	return ret
}

// BernoulliVector makes a vec of 0/1 floats where each element is 1 with probability p.
func (rng RandomGenerator) BernoulliVector(size int, p float32) []float32 {
	ret := make([]float32, size)
	for i := range ret {
		if rng.Float32() < p {
			ret[i] = 1
		}
	}
	return ret
}

// Split derives an independent generator from the current one.
func (rng RandomGenerator) Split() RandomGenerator {
	return NewRandomGenerator(rng.Int63())
}
