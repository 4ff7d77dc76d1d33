package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// BroadcastOp expands a single-element tensor to a target shape.
//
// Backward pass:
//   - ∂out/∂x has shape concat(target, x.shape), every entry 1
//
// For the usual [1]-shaped operand the Jacobian shape is concat(target, [1]).
type BroadcastOp[T tensor.Numeric] struct {
	Shape tensor.Shape
}

// NewBroadcastOp creates a new BroadcastOp to the given shape.
func NewBroadcastOp[T tensor.Numeric](shape tensor.Shape) BroadcastOp[T] {
	return BroadcastOp[T]{Shape: shape.Clone()}
}

// Name returns "broadcast".
func (BroadcastOp[T]) Name() string { return "broadcast" }

// Forward replicates x's only value across the target shape.
func (op BroadcastOp[T]) Forward(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	if x.NumElements() != 1 {
		return nil, errors.Wrapf(tensor.ErrNotScalar, "broadcast of %v to %v", x.Shape(), op.Shape)
	}
	if err := op.Shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, "broadcast")
	}
	return tensor.Full(op.Shape, x.Data()[0]), nil
}

// Backward returns an all-ones Jacobian.
func (op BroadcastOp[T]) Backward(x *tensor.Dense[T], space *index.Space) *tensor.Dense[T] {
	shape := op.Shape.Concat(x.Shape())
	grad := tensor.Zeros[T](shape)
	for _, idx := range space.Enumerate(shape) {
		grad.SetNonZero(1, idx...)
	}
	return grad
}
