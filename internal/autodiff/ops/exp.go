package ops

import (
	"math"

	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// ExpOp represents the exponential operation with a constant base: y = b^x.
//
// Backward pass:
//   - ∂(b^x)/∂x = ln(b)·b^x, placed on the diagonal
type ExpOp[T tensor.Numeric] struct {
	Base float64
}

// NewExpOp creates a new ExpOp with the given base. Use math.E for exp(x).
func NewExpOp[T tensor.Numeric](base float64) ExpOp[T] {
	return ExpOp[T]{Base: base}
}

// Name returns "exp".
func (ExpOp[T]) Name() string { return "exp" }

// Forward computes b^x.
func (op ExpOp[T]) Forward(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	return elementwise(x, func(v T) T {
		return T(math.Pow(op.Base, float64(v)))
	}), nil
}

// Backward computes ln(b)·b^x on the diagonal.
func (op ExpOp[T]) Backward(x *tensor.Dense[T], space *index.Space) *tensor.Dense[T] {
	lnBase := math.Log(op.Base)
	return diagonal(x, space, func(idx []int) T {
		return T(lnBase * math.Pow(op.Base, float64(x.At(idx...))))
	})
}
