package ops

import (
	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// PowOp represents element-wise exponentiation by a constant: output = x^p.
//
// Backward pass:
//   - ∂(x^p)/∂x = p·x^(p-1), placed on the diagonal
//
// Values are computed in float64 and converted to T, so integer tensors
// truncate fractional results.
type PowOp[T tensor.Numeric] struct {
	Power float64
}

// NewPowOp creates a new PowOp with exponent p.
func NewPowOp[T tensor.Numeric](p float64) PowOp[T] {
	return PowOp[T]{Power: p}
}

// Name returns "pow".
func (PowOp[T]) Name() string { return "pow" }

// Forward computes x^p.
func (op PowOp[T]) Forward(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	return elementwise(x, func(v T) T { return pow(v, op.Power) }), nil
}

// Backward computes p·x^(p-1) on the diagonal.
func (op PowOp[T]) Backward(x *tensor.Dense[T], space *index.Space) *tensor.Dense[T] {
	return diagonal(x, space, func(idx []int) T {
		return T(op.Power * float64(pow(x.At(idx...), op.Power-1)))
	})
}
