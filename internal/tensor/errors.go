package tensor

import "github.com/pkg/errors"

// Contract violations reported by tensors, kernels and the graph.
// Returned errors wrap one of these; test with errors.Is.
var (
	// ErrInvalidShape: empty shape, non-positive extent, or data/shape size mismatch.
	ErrInvalidShape = errors.New("invalid shape")

	// ErrShapeMismatch: elementwise operands with different, non-broadcastable shapes.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInnerDim: matrix multiplication with incompatible inner dimensions or non 2-D operands.
	ErrInnerDim = errors.New("incompatible matmul operands")

	// ErrNotScalar: a single-element tensor was required.
	ErrNotScalar = errors.New("tensor is not a scalar")

	// ErrIndexRank: coordinate has the wrong number of axes.
	ErrIndexRank = errors.New("index rank mismatch")

	// ErrIndexRange: coordinate lies outside the shape.
	ErrIndexRange = errors.New("index out of range")

	// ErrArity: a kernel was applied to the wrong number of operands.
	ErrArity = errors.New("operation arity mismatch")

	// ErrAlreadyAttached: parent/operation linkage was set twice on one node.
	ErrAlreadyAttached = errors.New("tensor already attached to graph")

	// ErrCorruptGraph: a parent does not list a child that claims it.
	ErrCorruptGraph = errors.New("computational graph is inconsistent")

	// ErrReleased: a handle refers to a node that has been reclaimed.
	ErrReleased = errors.New("tensor has been released")

	// ErrForeignGraph: operands belong to different graphs.
	ErrForeignGraph = errors.New("tensors belong to different graphs")
)
