package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// SubscriptOp selects the single element at a fixed coordinate.
// The output has shape [1].
//
// Backward pass:
//   - ∂out/∂x has shape concat([1], x.shape) with a single 1 at (0, idx...)
type SubscriptOp[T tensor.Numeric] struct {
	Index []int
}

// NewSubscriptOp creates a new SubscriptOp for the given coordinate.
func NewSubscriptOp[T tensor.Numeric](idx ...int) SubscriptOp[T] {
	return SubscriptOp[T]{Index: append([]int(nil), idx...)}
}

// Name returns "subscript".
func (SubscriptOp[T]) Name() string { return "subscript" }

// Forward selects x[idx]. The coordinate must match x's rank and shape.
func (op SubscriptOp[T]) Forward(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	off, err := x.Offset(op.Index)
	if err != nil {
		return nil, errors.WithMessagef(err, "subscript %v of %v", op.Index, x.Shape())
	}
	return tensor.Scalar(x.Data()[off]), nil
}

// Backward returns the one-hot Jacobian of the selected coordinate.
func (op SubscriptOp[T]) Backward(x *tensor.Dense[T], _ *index.Space) *tensor.Dense[T] {
	grad := tensor.Zeros[T](tensor.Shape{1}.Concat(x.Shape()))
	grad.SetNonZero(1, index.Concat([]int{0}, op.Index)...)
	return grad
}
