package autodiff

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/autodiff/ops"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// Node-level construction. Every helper returns the new node's id; on error
// no node is left behind except the caller's operands.

func (g *Graph[T]) unary(k ops.UnaryKernel[T], x NodeID, ownership Ownership) (NodeID, error) {
	out, err := k.Forward(g.nodes[x].value)
	if err != nil {
		return noNode, err
	}

	id := g.alloc(out, ownership)
	if err := g.attach(id, []NodeID{x}, unaryOp[T]{kernel: k}); err != nil {
		g.reclaim(id)
		return noNode, err
	}
	return id, nil
}

func (g *Graph[T]) binary(k ops.BinaryKernel[T], a, b NodeID, ownership Ownership) (NodeID, error) {
	out, err := k.Forward(g.nodes[a].value, g.nodes[b].value)
	if err != nil {
		return noNode, err
	}

	id := g.alloc(out, ownership)
	if err := g.attach(id, []NodeID{a, b}, binaryOp[T]{kernel: k}); err != nil {
		g.reclaim(id)
		return noNode, err
	}
	return id, nil
}

// elementwise applies a shape-matching kernel, broadcasting a [1]-shaped
// operand to the other operand's shape first.
func (g *Graph[T]) elementwise(k ops.BinaryKernel[T], a, b NodeID, ownership Ownership) (NodeID, error) {
	as, bs := g.nodes[a].value.Shape(), g.nodes[b].value.Shape()

	var err error
	switch {
	case as.Equal(bs):
	case as.IsScalar():
		a, err = g.unary(ops.NewBroadcastOp[T](bs), a, OwnedIntermediate)
	case bs.IsScalar():
		b, err = g.unary(ops.NewBroadcastOp[T](as), b, OwnedIntermediate)
	default:
		return noNode, errors.Wrapf(tensor.ErrShapeMismatch, "%s: %v vs %v", k.Name(), as, bs)
	}
	if err != nil {
		return noNode, err
	}

	id, err := g.binary(k, a, b, ownership)
	if err != nil {
		g.discard(a)
		g.discard(b)
		return noNode, err
	}
	return id, nil
}

// discard reclaims an OwnedIntermediate node nothing refers to.
func (g *Graph[T]) discard(id NodeID) {
	n := g.nodes[id]
	if n.live && n.ownership == OwnedIntermediate && n.refs == 0 {
		g.reclaim(id)
	}
}

func (g *Graph[T]) add(a, b NodeID, ownership Ownership) (NodeID, error) {
	return g.elementwise(ops.NewAddOp[T](), a, b, ownership)
}

func (g *Graph[T]) mul(a, b NodeID, ownership Ownership) (NodeID, error) {
	return g.elementwise(ops.NewMulOp[T](), a, b, ownership)
}

// neg computes x · (-1).
func (g *Graph[T]) neg(x NodeID, ownership Ownership) (NodeID, error) {
	c := g.constant(T(-1))
	id, err := g.mul(x, c, ownership)
	if err != nil {
		g.discard(c)
		return noNode, err
	}
	return id, nil
}

// sub computes a + (-1 · b).
func (g *Graph[T]) sub(a, b NodeID, ownership Ownership) (NodeID, error) {
	nb, err := g.neg(b, OwnedIntermediate)
	if err != nil {
		return noNode, err
	}
	id, err := g.add(a, nb, ownership)
	if err != nil {
		g.discard(nb)
		return noNode, err
	}
	return id, nil
}

// div computes a · b^-1.
func (g *Graph[T]) div(a, b NodeID, ownership Ownership) (NodeID, error) {
	inv, err := g.unary(ops.NewPowOp[T](-1), b, OwnedIntermediate)
	if err != nil {
		return noNode, err
	}
	id, err := g.mul(a, inv, ownership)
	if err != nil {
		g.discard(inv)
		return noNode, err
	}
	return id, nil
}

func (g *Graph[T]) matmul(a, b NodeID, ownership Ownership) (NodeID, error) {
	return g.binary(ops.NewMatMulOp[T](), a, b, ownership)
}

type combinator[T tensor.Numeric] func(g *Graph[T], a, b NodeID, ownership Ownership) (NodeID, error)

func flip[T tensor.Numeric](fn combinator[T]) combinator[T] {
	return func(g *Graph[T], a, b NodeID, ownership Ownership) (NodeID, error) {
		return fn(g, b, a, ownership)
	}
}

func (t Tensor[T]) combine(other Tensor[T], fn combinator[T]) Tensor[T] {
	g := t.graph()
	g.mustLookup(t)
	g.mustLookup(other)

	id, err := fn(g, t.id, other.id, UserHeld)
	if err != nil {
		panic(err)
	}
	return g.handle(id)
}

func (t Tensor[T]) combineScalar(s T, fn combinator[T]) Tensor[T] {
	g := t.graph()
	g.mustLookup(t)

	c := g.constant(s)
	id, err := fn(g, t.id, c, UserHeld)
	if err != nil {
		g.discard(c)
		panic(err)
	}
	return g.handle(id)
}

func (t Tensor[T]) apply(k ops.UnaryKernel[T]) Tensor[T] {
	g := t.graph()
	g.mustLookup(t)

	id, err := g.unary(k, t.id, UserHeld)
	if err != nil {
		panic(err)
	}
	return g.handle(id)
}

// Add returns t + other. A [1]-shaped operand is broadcast to the other's
// shape; otherwise shapes must match (ErrShapeMismatch).
func (t Tensor[T]) Add(other Tensor[T]) Tensor[T] {
	return t.combine(other, (*Graph[T]).add)
}

// Sub returns t - other, computed as t + (-1 · other).
func (t Tensor[T]) Sub(other Tensor[T]) Tensor[T] {
	return t.combine(other, (*Graph[T]).sub)
}

// Mul returns the element-wise product t * other.
func (t Tensor[T]) Mul(other Tensor[T]) Tensor[T] {
	return t.combine(other, (*Graph[T]).mul)
}

// Div returns t / other, computed as t · other^-1.
func (t Tensor[T]) Div(other Tensor[T]) Tensor[T] {
	return t.combine(other, (*Graph[T]).div)
}

// AddScalar returns t + s.
func (t Tensor[T]) AddScalar(s T) Tensor[T] {
	return t.combineScalar(s, (*Graph[T]).add)
}

// SubScalar returns t - s.
func (t Tensor[T]) SubScalar(s T) Tensor[T] {
	return t.combineScalar(s, (*Graph[T]).sub)
}

// MulScalar returns t · s.
func (t Tensor[T]) MulScalar(s T) Tensor[T] {
	return t.combineScalar(s, (*Graph[T]).mul)
}

// DivScalar returns t / s.
func (t Tensor[T]) DivScalar(s T) Tensor[T] {
	return t.combineScalar(s, (*Graph[T]).div)
}

// RSub returns s - t.
func (t Tensor[T]) RSub(s T) Tensor[T] {
	return t.combineScalar(s, flip[T]((*Graph[T]).sub))
}

// RDiv returns s / t.
func (t Tensor[T]) RDiv(s T) Tensor[T] {
	return t.combineScalar(s, flip[T]((*Graph[T]).div))
}

// Neg returns -t, computed as t · (-1).
func (t Tensor[T]) Neg() Tensor[T] {
	g := t.graph()
	g.mustLookup(t)

	id, err := g.neg(t.id, UserHeld)
	if err != nil {
		panic(err)
	}
	return g.handle(id)
}

// Pow returns t raised element-wise to p.
func (t Tensor[T]) Pow(p float64) Tensor[T] {
	return t.apply(ops.NewPowOp[T](p))
}

// Exp returns e^t element-wise.
func (t Tensor[T]) Exp() Tensor[T] {
	return t.apply(ops.NewExpOp[T](math.E))
}

// ExpBase returns base^t element-wise.
func (t Tensor[T]) ExpBase(base float64) Tensor[T] {
	return t.apply(ops.NewExpOp[T](base))
}

// Log returns the natural logarithm of t element-wise.
func (t Tensor[T]) Log() Tensor[T] {
	return t.apply(ops.NewLogOp[T](math.E))
}

// LogBase returns the base-b logarithm of t element-wise.
func (t Tensor[T]) LogBase(base float64) Tensor[T] {
	return t.apply(ops.NewLogOp[T](base))
}

// Sum reduces t to a [1]-shaped tensor holding the total of all entries.
func (t Tensor[T]) Sum() Tensor[T] {
	return t.apply(ops.NewSumOp[T]())
}

// Index returns the [1]-shaped tensor holding t at the given coordinate.
// Panics with ErrIndexRank or ErrIndexRange on a bad coordinate.
func (t Tensor[T]) Index(indices ...int) Tensor[T] {
	return t.apply(ops.NewSubscriptOp[T](indices...))
}

// MatMul returns the matrix product t @ other. Both operands must be 2-D
// with matching inner dimension (ErrInnerDim).
func (t Tensor[T]) MatMul(other Tensor[T]) Tensor[T] {
	return t.combine(other, (*Graph[T]).matmul)
}

// Broadcast replicates a single-element tensor across shape.
// Panics with ErrNotScalar if t has more than one element.
func (t Tensor[T]) Broadcast(shape tensor.Shape) Tensor[T] {
	return t.apply(ops.NewBroadcastOp[T](shape))
}
