package tensor

import (
	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/index"
)

// Zeros creates a tensor filled with zeros.
// Panics on an invalid shape.
//
// Example:
//
//	t := tensor.Zeros[float64](tensor.Shape{3, 4})
func Zeros[T Numeric](shape Shape) *Dense[T] {
	if err := shape.Validate(); err != nil {
		panic(err)
	}
	return newDense[T](shape)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float64](tensor.Shape{3, 3}, 3.14)
func Full[T Numeric](shape Shape, value T) *Dense[T] {
	d := Zeros[T](shape)
	for i := range d.data {
		d.data[i] = value
	}
	return d
}

// Scalar creates a single-element tensor of shape [1].
func Scalar[T Numeric](value T) *Dense[T] {
	d := newDense[T](Shape{1})
	d.data[0] = value
	return d
}

// FromSlice creates a tensor from flat row-major data and a shape.
// The slice is copied into the tensor's memory.
func FromSlice[T Numeric](data []T, shape Shape) (*Dense[T], error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, errors.Wrapf(ErrInvalidShape, "shape %v requires %d elements, but got %d",
			shape, shape.NumElements(), len(data))
	}

	d := newDense[T](shape)
	copy(d.data, data)
	return d, nil
}

// FromFlat creates a 1-D tensor whose shape is [len(data)].
func FromFlat[T Numeric](data []T) (*Dense[T], error) {
	return FromSlice(data, Shape{len(data)})
}

// Identity returns the derivative of a tensor of the given shape with respect
// to itself: shape concat(shape, shape), ones on the diagonal coordinates
// (idx, idx) and structurally zero elsewhere.
//
// space may be nil, in which case coordinates are enumerated without caching.
func Identity[T Numeric](shape Shape, space *index.Space) *Dense[T] {
	d := Zeros[T](shape.Concat(shape))
	set := func(idx []int) {
		diag := index.Concat(idx, idx)
		d.SetNonZero(1, diag...)
	}

	if space == nil {
		index.Each(shape, set)
		return d
	}
	for _, idx := range space.Enumerate(shape) {
		set(idx)
	}
	return d
}
