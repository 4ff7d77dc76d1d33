package tensor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/index"
)

// Shape represents the dimensions of a tensor.
// A valid shape has at least one axis and every extent is positive.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (at least one axis, all dimensions > 0).
func (s Shape) Validate() error {
	if len(s) == 0 {
		return errors.Wrap(ErrInvalidShape, "shape has no axes")
	}
	for i, dim := range s {
		if dim <= 0 {
			return errors.Wrapf(ErrInvalidShape, "dimension at index %d is %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String renders the shape as [d0 d1 ...].
func (s Shape) String() string {
	return fmt.Sprint([]int(s))
}

// IsScalar reports whether the shape is exactly [1].
func (s Shape) IsScalar() bool {
	return len(s) == 1 && s[0] == 1
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	return index.Strides(s)
}

// Concat returns the shape of a derivative tensor: s followed by other.
func (s Shape) Concat(other Shape) Shape {
	return index.Concat(s, other)
}

// Squeeze drops every unit-length axis. A shape made only of unit axes
// squeezes to [1] so that the result is still a valid shape.
func (s Shape) Squeeze() Shape {
	out := make(Shape, 0, len(s))
	for _, dim := range s {
		if dim != 1 {
			out = append(out, dim)
		}
	}
	if len(out) == 0 {
		return Shape{1}
	}
	return out
}
