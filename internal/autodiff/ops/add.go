package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// AddOp represents an element-wise addition operation: output = a + b.
//
// Backward pass:
//   - ∂(a+b)/∂a = I, the identity of shape concat(shape, shape)
//   - ∂(a+b)/∂b = I
//
// Operands must have identical shapes; scalar operands are broadcast by the
// caller before the kernel runs.
type AddOp[T tensor.Numeric] struct{}

// NewAddOp creates a new AddOp.
func NewAddOp[T tensor.Numeric]() AddOp[T] {
	return AddOp[T]{}
}

// Name returns "add".
func (AddOp[T]) Name() string { return "add" }

// Forward computes a + b.
func (AddOp[T]) Forward(a, b *tensor.Dense[T]) (*tensor.Dense[T], error) {
	if !a.Shape().Equal(b.Shape()) {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "add: %v vs %v", a.Shape(), b.Shape())
	}

	out := tensor.Zeros[T](a.Shape())
	da, db, dst := a.Data(), b.Data(), out.Data()
	for i := range dst {
		dst[i] = da[i] + db[i]
	}
	return out, nil
}

// Backward returns the identity Jacobian for both operands.
// Both results share storage; they are read-only to the engine.
func (AddOp[T]) Backward(a, _ *tensor.Dense[T], space *index.Space) (*tensor.Dense[T], *tensor.Dense[T]) {
	grad := tensor.Identity[T](a.Shape(), space)
	return grad, grad
}
