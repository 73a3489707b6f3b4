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
	"fmt"
	"slices"
	"strings"

	"github.com/gorse-io/deepwide/common/floats"
)

// Tensor is a dense row-major array of 32-bit floats. Tensors produced by operations
// remember the operation, so that gradients can be propagated by Backward.
type Tensor struct {
	data        []float32
	shape       []int
	grad        *Tensor
	op          op
	requireGrad bool
}

func NewTensor(data []float32, shape ...int) *Tensor {
	if len(data) != numElements(shape) {
		panic(fmt.Sprintf("nn: %d elements do not fit shape %v", len(data), shape))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

func NewScalar(data float32) *Tensor {
	return &Tensor{
		data:  []float32{data},
		shape: []int{},
	}
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	data := make([]float32, numElements(shape))
	for i := range data {
		data[i] = 1
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		data:  make([]float32, numElements(shape)),
		shape: shape,
	}
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// RequireGrad marks a leaf tensor as a parameter whose gradient is kept after Backward.
func (t *Tensor) RequireGrad() *Tensor {
	t.requireGrad = true
	return t
}

func (t *Tensor) Shape() []int {
	return t.shape
}

func (t *Tensor) Data() []float32 {
	return t.data
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

func (t *Tensor) String() string {
	// Print scalar value
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := 0; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// Backward computes gradients of t with respect to every tensor in its graph. Gradients of
// a tensor used by several operations are accumulated.
func (t *Tensor) Backward() {
	t.grad = Ones(t.shape...)
	if t.op == nil {
		return
	}
	// topological order of operations, output first
	var (
		order   []op
		visited = make(map[op]struct{})
	)
	var visit func(o op)
	visit = func(o op) {
		if _, ok := visited[o]; ok {
			return
		}
		visited[o] = struct{}{}
		inputs, _ := o.inputsAndOutput()
		for _, input := range inputs {
			if input != nil && input.op != nil {
				visit(input.op)
			}
		}
		order = append(order, o)
	}
	visit(t.op)
	slices.Reverse(order)

	for _, o := range order {
		inputs, output := o.inputsAndOutput()
		if output.grad == nil {
			continue
		}
		grads := o.backward(output.grad)
		for i, g := range grads {
			if g == nil || inputs[i] == nil {
				continue
			}
			if inputs[i].op == nil && !inputs[i].requireGrad {
				continue
			}
			if inputs[i].grad == nil {
				inputs[i].grad = g
			} else {
				floats.Add(inputs[i].grad.data, g.data)
			}
		}
		// intermediate gradients are no longer needed
		if output != t {
			output.grad = nil
		}
	}
}

func (t *Tensor) clone() *Tensor {
	newData := make([]float32, len(t.data))
	copy(newData, t.data)
	return &Tensor{
		data:  newData,
		shape: t.shape,
	}
}

func (t *Tensor) broadcastSize(other *Tensor) int {
	wSize := numElements(other.shape)
	if wSize == 0 || len(t.data)%wSize != 0 {
		panic(fmt.Sprintf("nn: cannot broadcast %v to %v", other.shape, t.shape))
	}
	return wSize
}

func (t *Tensor) add(other *Tensor) *Tensor {
	wSize := t.broadcastSize(other)
	for i := range t.data {
		t.data[i] += other.data[i%wSize]
	}
	return t
}

func (t *Tensor) sub(other *Tensor) *Tensor {
	wSize := t.broadcastSize(other)
	for i := range t.data {
		t.data[i] -= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) mul(other *Tensor) *Tensor {
	wSize := t.broadcastSize(other)
	for i := range t.data {
		t.data[i] *= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) square() *Tensor {
	for i := range t.data {
		t.data[i] = t.data[i] * t.data[i]
	}
	return t
}

func (t *Tensor) matMul(other *Tensor, aTranspose, bTranspose bool) *Tensor {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic("nn: matMul requires 2-D tensors")
	}
	m, k := t.shape[0], t.shape[1]
	if aTranspose {
		m, k = k, m
	}
	k2, n := other.shape[0], other.shape[1]
	if bTranspose {
		k2, n = n, k2
	}
	if k != k2 {
		panic(fmt.Sprintf("nn: matMul shape mismatch %v x %v", t.shape, other.shape))
	}
	y := Zeros(m, n)
	floats.MM(aTranspose, bTranspose, m, n, k, t.data, t.shape[1], other.data, other.shape[1], y.data, n)
	return y
}
