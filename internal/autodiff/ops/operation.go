// Package ops defines the differentiable kernels of the computational graph.
//
// Each kernel provides:
//   - Forward: the materialized output value for its operands
//   - Backward: one local Jacobian per operand, in sparse form
//
// A local Jacobian of output y with respect to operand x has shape
// concat(y.shape, x.shape); entry (i, j) holds ∂y[i]/∂x[j]. Only structurally
// non-zero entries are written and recorded in the Jacobian's non-zero set.
//
// Supported kernels:
//   - AddOp: element-wise addition (∂(a+b)/∂a = I, ∂(a+b)/∂b = I)
//   - MulOp: element-wise multiplication (∂(a*b)/∂a = diag(b), ∂(a*b)/∂b = diag(a))
//   - MatMulOp: matrix multiplication of 2-D operands
//   - PowOp, ExpOp, LogOp: element-wise power, exponential and logarithm
//   - SumOp: full reduction to a single element
//   - SubscriptOp: selection of one element
//   - BroadcastOp: expansion of a single element to a shape
//
// Kernels are pure: they hold only their parameters, never operands or cached
// results. Arity is part of the type, so a unary kernel cannot be applied to
// two operands.
package ops

import (
	"math"

	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// UnaryKernel is a differentiable operation of one operand.
type UnaryKernel[T tensor.Numeric] interface {
	// Name identifies the kernel in logs and errors.
	Name() string

	// Forward computes the output for x, or reports a contract violation.
	Forward(x *tensor.Dense[T]) (*tensor.Dense[T], error)

	// Backward returns ∂Forward(x)/∂x. x must have passed Forward.
	Backward(x *tensor.Dense[T], space *index.Space) *tensor.Dense[T]
}

// BinaryKernel is a differentiable operation of two operands.
type BinaryKernel[T tensor.Numeric] interface {
	// Name identifies the kernel in logs and errors.
	Name() string

	// Forward computes the output for (a, b), or reports a contract violation.
	Forward(a, b *tensor.Dense[T]) (*tensor.Dense[T], error)

	// Backward returns (∂y/∂a, ∂y/∂b) for y = Forward(a, b).
	Backward(a, b *tensor.Dense[T], space *index.Space) (*tensor.Dense[T], *tensor.Dense[T])
}

// elementwise builds a tensor shaped like x with out[i] = fn(x[i]).
func elementwise[T tensor.Numeric](x *tensor.Dense[T], fn func(T) T) *tensor.Dense[T] {
	out := tensor.Zeros[T](x.Shape())
	src, dst := x.Data(), out.Data()
	for i, v := range src {
		dst[i] = fn(v)
	}
	return out
}

// diagonal builds the Jacobian of an element-wise function of x:
// shape concat(x.shape, x.shape), value fn(idx) at (idx, idx).
func diagonal[T tensor.Numeric](x *tensor.Dense[T], space *index.Space, fn func(idx []int) T) *tensor.Dense[T] {
	shape := x.Shape()
	grad := tensor.Zeros[T](shape.Concat(shape))
	for _, idx := range space.Enumerate(shape) {
		grad.SetNonZero(fn(idx), index.Concat(idx, idx)...)
	}
	return grad
}

// pow evaluates v^p in float64 and converts back to T.
func pow[T tensor.Numeric](v T, p float64) T {
	return T(math.Pow(float64(v), p))
}
