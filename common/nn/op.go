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

	"github.com/gorse-io/deepwide/common/floats"
)

type op interface {
	String() string
	forward(inputs ...*Tensor) *Tensor
	backward(dy *Tensor) []*Tensor
	inputsAndOutput() ([]*Tensor, *Tensor)
	setInputs(inputs ...*Tensor)
	setOutput(y *Tensor)
}

type opBase struct {
	inputs []*Tensor
	output *Tensor
}

func (b *opBase) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func (b *opBase) setInputs(inputs ...*Tensor) {
	b.inputs = inputs
}

func (b *opBase) setOutput(y *Tensor) {
	b.output = y
}

func apply[T op](f T, inputs ...*Tensor) *Tensor {
	y := f.forward(inputs...)
	f.setInputs(inputs...)
	f.setOutput(y)
	y.op = f
	return y
}

type add struct {
	opBase
}

func (a *add) String() string {
	return "Add"
}

func (a *add) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.add(inputs[1])
	return y
}

func (a *add) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx1 := Zeros(a.inputs[1].shape...)
	wSize := len(gx1.data)
	for i := range dy.data {
		gx1.data[i%wSize] += dy.data[i]
	}
	return []*Tensor{gx0, gx1}
}

type sub struct {
	opBase
}

func (s *sub) String() string {
	return "Sub"
}

func (s *sub) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.sub(inputs[1])
	return y
}

func (s *sub) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx1 := Zeros(s.inputs[1].shape...)
	wSize := len(gx1.data)
	for i := range dy.data {
		gx1.data[i%wSize] -= dy.data[i]
	}
	return []*Tensor{gx0, gx1}
}

type mul struct {
	opBase
}

func (m *mul) String() string {
	return "Mul"
}

func (m *mul) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.mul(inputs[1])
	return y
}

func (m *mul) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx0.mul(m.inputs[1])
	gx1 := Zeros(m.inputs[1].shape...)
	wSize := len(gx1.data)
	for i := range dy.data {
		gx1.data[i%wSize] += dy.data[i] * m.inputs[0].data[i]
	}
	return []*Tensor{gx0, gx1}
}

type square struct {
	opBase
}

func (s *square) String() string {
	return "Square"
}

func (s *square) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.square()
	return y
}

func (s *square) backward(dy *Tensor) []*Tensor {
	dx := s.inputs[0].clone()
	dx.mul(dy)
	floats.MulConst(dx.data, 2)
	return []*Tensor{dx}
}

type mean struct {
	opBase
}

func (m *mean) String() string {
	return "Mean"
}

func (m *mean) forward(inputs ...*Tensor) *Tensor {
	return NewScalar(floats.Mean(inputs[0].data))
}

func (m *mean) backward(dy *Tensor) []*Tensor {
	dx := Zeros(m.inputs[0].shape...)
	g := dy.data[0] / float32(len(dx.data))
	for i := range dx.data {
		dx.data[i] = g
	}
	return []*Tensor{dx}
}

type matMul struct {
	opBase
}

func (m *matMul) String() string {
	return "MatMul"
}

func (m *matMul) forward(inputs ...*Tensor) *Tensor {
	return inputs[0].matMul(inputs[1], false, false)
}

func (m *matMul) backward(dy *Tensor) []*Tensor {
	dx0 := dy.matMul(m.inputs[1], false, true)
	dx1 := m.inputs[0].matMul(dy, true, false)
	return []*Tensor{dx0, dx1}
}

type relu struct {
	opBase
}

func (r *relu) String() string {
	return "ReLU"
}

func (r *relu) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	for i := range y.data {
		if y.data[i] < 0 {
			y.data[i] = 0
		}
	}
	return y
}

func (r *relu) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	for i := range dx.data {
		if r.inputs[0].data[i] <= 0 {
			dx.data[i] = 0
		}
	}
	return []*Tensor{dx}
}

// dropout multiplies its input by a fixed mask of zeros and 1/(1-rate).
type dropout struct {
	opBase
	mask []float32
}

func (d *dropout) String() string {
	return "Dropout"
}

func (d *dropout) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	for i := range y.data {
		y.data[i] *= d.mask[i]
	}
	return y
}

func (d *dropout) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	for i := range dx.data {
		dx.data[i] *= d.mask[i]
	}
	return []*Tensor{dx}
}

type embedding struct {
	opBase
}

func (e *embedding) String() string {
	return "Embedding"
}

func (e *embedding) forward(inputs ...*Tensor) *Tensor {
	w, x := inputs[0], inputs[1]
	dim := numElements(w.shape[1:])
	shape := append(append([]int{}, x.shape...), w.shape[1:]...)
	y := Zeros(shape...)
	for i, v := range x.data {
		index := int(v)
		if index < 0 || index >= w.shape[0] {
			panic(fmt.Sprintf("nn: embedding index %d out of range [0, %d)", index, w.shape[0]))
		}
		copy(y.data[i*dim:(i+1)*dim], w.data[index*dim:(index+1)*dim])
	}
	return y
}

func (e *embedding) backward(dy *Tensor) []*Tensor {
	w, x := e.inputs[0], e.inputs[1]
	dim := numElements(w.shape[1:])
	dw := Zeros(w.shape...)
	for i, v := range x.data {
		index := int(v)
		floats.Add(dw.data[index*dim:(index+1)*dim], dy.data[i*dim:(i+1)*dim])
	}
	return []*Tensor{dw, nil}
}

// concat joins 2-D tensors along the second axis.
type concat struct {
	opBase
}

func (c *concat) String() string {
	return "Concat"
}

func (c *concat) forward(inputs ...*Tensor) *Tensor {
	rows := inputs[0].shape[0]
	cols := 0
	for _, x := range inputs {
		cols += x.shape[1]
	}
	y := Zeros(rows, cols)
	for i := 0; i < rows; i++ {
		offset := i * cols
		for _, x := range inputs {
			width := x.shape[1]
			copy(y.data[offset:offset+width], x.data[i*width:(i+1)*width])
			offset += width
		}
	}
	return y
}

func (c *concat) backward(dy *Tensor) []*Tensor {
	rows, cols := dy.shape[0], dy.shape[1]
	grads := make([]*Tensor, len(c.inputs))
	for j, x := range c.inputs {
		grads[j] = Zeros(x.shape...)
	}
	for i := 0; i < rows; i++ {
		offset := i * cols
		for j, x := range c.inputs {
			width := x.shape[1]
			copy(grads[j].data[i*width:(i+1)*width], dy.data[offset:offset+width])
			offset += width
		}
	}
	return grads
}

type reshape struct {
	opBase
	shape []int
}

func (r *reshape) String() string {
	return "Reshape"
}

func (r *reshape) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.shape = r.shape
	return y
}

func (r *reshape) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	dx.shape = r.inputs[0].shape
	return []*Tensor{dx}
}

// Add returns the element-wise sum of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Add(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffix(x0, x1)
	return apply(&add{}, x0, x1)
}

// Sub returns the element-wise difference of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Sub(x0, x1 *Tensor) *Tensor {
	checkSuffix(x0, x1)
	return apply(&sub{}, x0, x1)
}

// Mul returns the element-wise product of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Mul(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffix(x0, x1)
	return apply(&mul{}, x0, x1)
}

func checkSuffix(x0, x1 *Tensor) {
	if len(x0.shape) < len(x1.shape) {
		panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
	}
	for i := 0; i < len(x1.shape); i++ {
		if x0.shape[len(x0.shape)-len(x1.shape)+i] != x1.shape[i] {
			panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
		}
	}
}

// Square returns the element-wise square of a tensor.
func Square(x *Tensor) *Tensor {
	return apply(&square{}, x)
}

// Mean returns the mean of all elements in a tensor.
func Mean(x *Tensor) *Tensor {
	return apply(&mean{}, x)
}

func MatMul(x, y *Tensor) *Tensor {
	return apply(&matMul{}, x, y)
}

func ReLu(x *Tensor) *Tensor {
	return apply(&relu{}, x)
}

// Dropout multiplies x by mask element-wise. The mask is expected to be already scaled.
func Dropout(x *Tensor, mask []float32) *Tensor {
	if len(mask) != len(x.data) {
		panic("nn: dropout mask does not match input")
	}
	return apply(&dropout{mask: mask}, x)
}

// Embedding looks up rows of w by the indices stored in x.
func Embedding(w, x *Tensor) *Tensor {
	return apply(&embedding{}, w, x)
}

// Concat joins 2-D tensors with the same number of rows along the second axis.
func Concat(xs ...*Tensor) *Tensor {
	if len(xs) == 0 {
		panic("nn: nothing to concatenate")
	}
	for _, x := range xs {
		if len(x.shape) != 2 || x.shape[0] != xs[0].shape[0] {
			panic(fmt.Sprintf("nn: cannot concatenate %v with %v", x.shape, xs[0].shape))
		}
	}
	return apply(&concat{}, xs...)
}

func Reshape(x *Tensor, shape ...int) *Tensor {
	if numElements(shape) != len(x.data) {
		panic(fmt.Sprintf("nn: cannot reshape %v to %v", x.shape, shape))
	}
	return apply(&reshape{shape: shape}, x)
}

// Flatten keeps the first axis and merges the others, so that a batch of [n, ...] becomes
// an n x m matrix.
func Flatten(x *Tensor) *Tensor {
	if len(x.shape) == 0 {
		panic("nn: cannot flatten a scalar")
	}
	return Reshape(x, x.shape[0], numElements(x.shape[1:]))
}

// MeanSquareError returns mean((y - yPred)^2).
func MeanSquareError(y, yPred *Tensor) *Tensor {
	return Mean(Square(Sub(yPred, y)))
}
