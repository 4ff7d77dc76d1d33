package ops

import (
	"math"

	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// LogOp represents the element-wise logarithm with a constant base.
//
// Forward:
//
//	output = ln(x) / ln(b)
//
// Backward:
//
//	∂output/∂x = 1 / (x·ln(b)), placed on the diagonal
//
// Non-positive inputs follow float64 semantics (NaN, -Inf); no domain check is made.
type LogOp[T tensor.Numeric] struct {
	Base float64
}

// NewLogOp creates a new LogOp with the given base. Use math.E for ln(x).
func NewLogOp[T tensor.Numeric](base float64) LogOp[T] {
	return LogOp[T]{Base: base}
}

// Name returns "log".
func (LogOp[T]) Name() string { return "log" }

// Forward computes log_b(x).
func (op LogOp[T]) Forward(x *tensor.Dense[T]) (*tensor.Dense[T], error) {
	lnBase := math.Log(op.Base)
	return elementwise(x, func(v T) T {
		return T(math.Log(float64(v)) / lnBase)
	}), nil
}

// Backward computes 1/(x·ln(b)) on the diagonal.
func (op LogOp[T]) Backward(x *tensor.Dense[T], space *index.Space) *tensor.Dense[T] {
	lnBase := math.Log(op.Base)
	return diagonal(x, space, func(idx []int) T {
		return T(1 / (float64(x.At(idx...)) * lnBase))
	})
}
