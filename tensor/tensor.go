// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// Type aliases for public API

// Numeric is the constraint for tensor element types.
// Supported types: int, int32, int64, float32, float64.
type Numeric = tensor.Numeric

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Int     DataType = tensor.Int
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// Dense is a dense row-major tensor with a non-zero coordinate set.
//
// Example:
//
//	d := tensor.Zeros[float64](tensor.Shape{2, 3})
//	d.SetNonZero(1.5, 0, 2)
//	fmt.Println(d.NonZero()) // [[0 2]]
type Dense[T Numeric] = tensor.Dense[T]

// Space caches the coordinate enumeration of shapes.
type Space = index.Space

// Sentinel errors.
var (
	ErrInvalidShape    = tensor.ErrInvalidShape
	ErrShapeMismatch   = tensor.ErrShapeMismatch
	ErrInnerDim        = tensor.ErrInnerDim
	ErrNotScalar       = tensor.ErrNotScalar
	ErrIndexRank       = tensor.ErrIndexRank
	ErrIndexRange      = tensor.ErrIndexRange
	ErrArity           = tensor.ErrArity
	ErrAlreadyAttached = tensor.ErrAlreadyAttached
	ErrCorruptGraph    = tensor.ErrCorruptGraph
	ErrReleased        = tensor.ErrReleased
	ErrForeignGraph    = tensor.ErrForeignGraph
)

// Zeros creates a tensor filled with zeros. Panics on an invalid shape.
func Zeros[T Numeric](shape Shape) *Dense[T] {
	return tensor.Zeros[T](shape)
}

// Full creates a tensor filled with value.
func Full[T Numeric](shape Shape, value T) *Dense[T] {
	return tensor.Full(shape, value)
}

// Scalar creates a tensor of shape [1].
func Scalar[T Numeric](value T) *Dense[T] {
	return tensor.Scalar(value)
}

// FromSlice creates a tensor from flat row-major data and a shape.
//
// Example:
//
//	x, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
func FromSlice[T Numeric](data []T, shape Shape) (*Dense[T], error) {
	return tensor.FromSlice(data, shape)
}

// FromFlat creates a 1-D tensor of shape [len(data)].
func FromFlat[T Numeric](data []T) (*Dense[T], error) {
	return tensor.FromFlat(data)
}

// FromNested creates a tensor from nested slices, inferring its shape.
//
// Example:
//
//	x, err := tensor.FromNested[float64]([][]float64{{1, 2}, {3, 4}})
func FromNested[T Numeric](nested any) (*Dense[T], error) {
	return tensor.FromNested[T](nested)
}

// Identity returns the derivative of a tensor of the given shape with
// respect to itself. space may be nil.
func Identity[T Numeric](shape Shape, space *Space) *Dense[T] {
	return tensor.Identity[T](shape, space)
}

// NewSpace creates an empty coordinate cache.
func NewSpace() *Space {
	return index.NewSpace()
}

// Format renders values in nested-bracket form, e.g. [[1, 2], [3, 4]].
func Format[T Numeric](d *Dense[T]) string {
	return tensor.Format(d)
}
