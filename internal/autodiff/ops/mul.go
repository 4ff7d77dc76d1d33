package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// MulOp represents an element-wise multiplication operation: output = a * b.
//
// Backward pass:
//   - ∂(a*b)/∂a = diag(b)
//   - ∂(a*b)/∂b = diag(a)
//
// Diagonal entries where the other operand is zero are structurally zero.
type MulOp[T tensor.Numeric] struct{}

// NewMulOp creates a new MulOp.
func NewMulOp[T tensor.Numeric]() MulOp[T] {
	return MulOp[T]{}
}

// Name returns "mul".
func (MulOp[T]) Name() string { return "mul" }

// Forward computes a * b.
func (MulOp[T]) Forward(a, b *tensor.Dense[T]) (*tensor.Dense[T], error) {
	if !a.Shape().Equal(b.Shape()) {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "mul: %v vs %v", a.Shape(), b.Shape())
	}

	out := tensor.Zeros[T](a.Shape())
	da, db, dst := a.Data(), b.Data(), out.Data()
	for i := range dst {
		dst[i] = da[i] * db[i]
	}
	return out, nil
}

// Backward computes input Jacobians for multiplication.
func (MulOp[T]) Backward(a, b *tensor.Dense[T], space *index.Space) (*tensor.Dense[T], *tensor.Dense[T]) {
	gradA := diagonal(a, space, func(idx []int) T { return b.At(idx...) })
	gradB := diagonal(b, space, func(idx []int) T { return a.At(idx...) })
	return gradA, gradB
}
