package ops

import (
	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// SumOp reduces a tensor to a single element of shape [1] by summation.
//
// Backward pass:
//   - ∂sum/∂x has shape concat([1], x.shape), every entry 1
type SumOp[T tensor.Numeric] struct{}

// NewSumOp creates a new SumOp.
func NewSumOp[T tensor.Numeric]() SumOp[T] {
	return SumOp[T]{}
}

// Name returns "sum".
func (SumOp[T]) Name() string { return "sum" }

// Forward computes the total of all entries.
func (SumOp[T]) Forward(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	var total T
	for _, v := range x.Data() {
		total += v
	}
	return tensor.Scalar(total), nil
}

// Backward returns an all-ones Jacobian.
func (SumOp[T]) Backward(x *tensor.Dense[T], space *index.Space) *tensor.Dense[T] {
	shape := tensor.Shape{1}.Concat(x.Shape())
	grad := tensor.Zeros[T](shape)
	for _, idx := range space.Enumerate(shape) {
		grad.SetNonZero(1, idx...)
	}
	return grad
}
