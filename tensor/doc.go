// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides dense, row-major tensors with a sparse set of
// structurally non-zero coordinates.
//
// # Overview
//
// Tensors are the values flowing through a computational graph and the
// derivatives the engine produces. This package provides:
//   - Generic tensors over native numeric types (Dense[T])
//   - Construction from flat slices, shapes, or nested slices
//   - A non-zero coordinate set used by derivative tensors
//   - Nested-bracket text rendering
//
// # Basic Usage
//
//	import "github.com/born-ml/sparsegrad/tensor"
//
//	func main() {
//	    x, _ := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	    fmt.Println(x.At(1, 0)) // 3
//	    fmt.Println(x)          // Tensor[float64][2 2] [[1, 2], [3, 4]]
//
//	    n, _ := tensor.FromNested[float64]([][]float64{{1, 2}, {3, 4}})
//	    fmt.Println(n.Shape()) // [2 2]
//	}
//
// # Derivative Tensors
//
// The derivative of a tensor of shape S with respect to a tensor of shape R
// has shape concat(S, R). Only the coordinates listed by NonZero hold
// non-zero values; every other coordinate reads as zero.
//
//	id := tensor.Identity[float64](tensor.Shape{2}, nil)
//	fmt.Println(id.NonZero()) // [[0 0] [1 1]]
//
// # Errors
//
// Constructors return errors wrapping the sentinels below. Element access
// with a bad coordinate panics with ErrIndexRank or ErrIndexRange.
package tensor
