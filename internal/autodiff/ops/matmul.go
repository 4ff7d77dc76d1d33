package ops

import (
	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// MatMulOp represents a matrix multiplication operation: output = a @ b.
//
// For a[r1,c1] and b[c1,c2], output[i,k] = Σⱼ a[i,j]·b[j,k].
//
// Backward pass:
//   - ∂out/∂a has shape [r1,c2,r1,c1]; entry (i,k,i,j) = b[j,k]
//   - ∂out/∂b has shape [r1,c2,c1,c2]; entry (i,k,j,k) = a[i,j]
//
// Every other entry is structurally zero and never materialized as non-zero.
type MatMulOp[T tensor.Numeric] struct{}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp[T tensor.Numeric]() MatMulOp[T] {
	return MatMulOp[T]{}
}

// Name returns "matmul".
func (MatMulOp[T]) Name() string { return "matmul" }

// Forward computes a @ b. Both operands must be 2-D with matching inner dimension.
func (MatMulOp[T]) Forward(a, b *tensor.Dense[T]) (*tensor.Dense[T], error) {
	if a.Dim() != 2 || b.Dim() != 2 {
		return nil, errors.Wrapf(tensor.ErrInnerDim, "matmul: operands must be 2-D, got %v and %v", a.Shape(), b.Shape())
	}

	rows, inner, cols := a.Shape()[0], a.Shape()[1], b.Shape()[1]
	if inner != b.Shape()[0] {
		return nil, errors.Wrapf(tensor.ErrInnerDim, "matmul: %v @ %v", a.Shape(), b.Shape())
	}

	out := tensor.Zeros[T](tensor.Shape{rows, cols})
	da, db, dst := a.Data(), b.Data(), out.Data()
	for i := 0; i < rows; i++ {
		for j := 0; j < inner; j++ {
			aij := da[i*inner+j]
			for k := 0; k < cols; k++ {
				dst[i*cols+k] += aij * db[j*cols+k]
			}
		}
	}
	return out, nil
}

// Backward computes input Jacobians for matrix multiplication.
func (MatMulOp[T]) Backward(a, b *tensor.Dense[T], space *index.Space) (*tensor.Dense[T], *tensor.Dense[T]) {
	rows, inner, cols := a.Shape()[0], a.Shape()[1], b.Shape()[1]

	gradA := tensor.Zeros[T](tensor.Shape{rows, cols, rows, inner})
	for _, idx := range space.Enumerate([]int{rows, cols, inner}) {
		i, k, j := idx[0], idx[1], idx[2]
		gradA.SetNonZero(b.At(j, k), i, k, i, j)
	}

	gradB := tensor.Zeros[T](tensor.Shape{rows, cols, inner, cols})
	for _, idx := range space.Enumerate([]int{rows, cols, inner}) {
		i, k, j := idx[0], idx[1], idx[2]
		gradB.SetNonZero(a.At(i, j), i, k, j, k)
	}

	return gradA, gradB
}
