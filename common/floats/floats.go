// Copyright 2022 gorse Project Authors
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

package floats

import "math"

func dot(a, b []float32) (ret float32) {
	for i := range a {
		ret += a[i] * b[i]
	}
	return
}

func mulConstAdd(a []float32, c float32, dst []float32) {
	for i := range a {
		dst[i] += a[i] * c
	}
}

// Zero fills zeros in a slice of 32-bit floats.
func Zero(a []float32) {
	for i := range a {
		a[i] = 0
	}
}

// Add two vectors: dst = dst + s
func Add(dst, s []float32) {
	if len(dst) != len(s) {
		panic("floats: slice lengths do not match")
	}
	for i := range dst {
		dst[i] += s[i]
	}
}

// MulConst multiplies a vector with a const: dst = dst * c
func MulConst(dst []float32, c float32) {
	for i := range dst {
		dst[i] *= c
	}
}

// MulConstAdd multiplies a vector and a const, then adds to dst: dst = dst + a * c
func MulConstAdd(a []float32, c float32, dst []float32) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	mulConstAdd(a, c, dst)
}

// Dot two vectors.
func Dot(a, b []float32) (ret float32) {
	if len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	return dot(a, b)
}

// Sum of a vector. Values are accumulated in float64.
func Sum(a []float32) float32 {
	return float32(sum64(a))
}

func sum64(a []float32) (ret float64) {
	for _, v := range a {
		ret += float64(v)
	}
	return
}

// Mean of a vector. The mean of an empty vector is zero.
func Mean(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return float32(sum64(a) / float64(len(a)))
}

// StdDev returns the population standard deviation of a vector. Moments are accumulated
// in float64 so that large columns keep their precision.
func StdDev(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	mean := sum64(a) / float64(len(a))
	var sum float64
	for _, v := range a {
		d := float64(v) - mean
		sum += d * d
	}
	return float32(math.Sqrt(sum / float64(len(a))))
}

// MM accumulates a matrix product into c: C += op(A) * op(B), where C is m x n, op(A) is
// m x k and op(B) is k x n. Matrices are row-major with leading dimensions lda, ldb and ldc.
// Zero elements of A are skipped in the non-transposed case, which keeps multi-hot inputs cheap.
func MM(transA, transB bool, m, n, k int, a []float32, lda int, b []float32, ldb int, c []float32, ldc int) {
	switch {
	case !transA && !transB:
		for i := 0; i < m; i++ {
			ci := c[i*ldc : i*ldc+n]
			for l := 0; l < k; l++ {
				if v := a[i*lda+l]; v != 0 {
					mulConstAdd(b[l*ldb:l*ldb+n], v, ci)
				}
			}
		}
	case !transA && transB:
		for i := 0; i < m; i++ {
			ai := a[i*lda : i*lda+k]
			for j := 0; j < n; j++ {
				c[i*ldc+j] += dot(ai, b[j*ldb:j*ldb+k])
			}
		}
	case transA && !transB:
		for l := 0; l < k; l++ {
			bl := b[l*ldb : l*ldb+n]
			for i := 0; i < m; i++ {
				if v := a[l*lda+i]; v != 0 {
					mulConstAdd(bl, v, c[i*ldc:i*ldc+n])
				}
			}
		}
	default:
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				var sum float32
				for l := 0; l < k; l++ {
					sum += a[l*lda+i] * b[j*ldb+l]
				}
				c[i*ldc+j] += sum
			}
		}
	}
}
