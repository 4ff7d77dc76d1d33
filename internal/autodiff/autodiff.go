// Package autodiff implements sparse reverse-mode automatic differentiation
// over dense tensors.
//
// Architecture:
//   - Graph: an arena of nodes addressed by NodeID, each tagged Leaf,
//     UserHeld or OwnedIntermediate to decide who reclaims it
//   - Tensor: a generation-checked handle to a node, with the operator surface
//   - Operations execute eagerly and record their parents and kernel
//   - Engine: composes per-edge local Jacobians into the Jacobian of any node
//     with respect to any ancestor, visiting only structurally non-zero entries
//
// Usage:
//
//	g := autodiff.NewGraph[float64]()
//	a, _ := g.FromNested([][]float64{{1, 2}, {3, 4}})
//	b, _ := g.FromNested([][]float64{{5, 6}, {7, 8}})
//	out := a.Mul(a).Add(b)
//
//	_ = out.Sum().Backprop(true, a)
//	fmt.Println(a.Grad()) // [[2, 4], [6, 8]]
//
// Derivative tensors have shape concat(node.shape, target.shape). The
// derivative of a [2,2] tensor with respect to a [2,2] tensor is [2,2,2,2];
// with squeezing, unit axes are removed.
//
// Contract violations on the operator surface (mismatched shapes, released
// handles) panic with an error wrapping one of the tensor package sentinels.
package autodiff

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/tensor"
)

// Tensor is a handle to a node of a Graph.
//
// Handles are small values and may be copied freely. A handle becomes stale
// once its node is reclaimed; every method on a stale handle panics with
// ErrReleased.
type Tensor[T tensor.Numeric] struct {
	g   *Graph[T]
	id  NodeID
	gen uint32
}

func (t Tensor[T]) graph() *Graph[T] {
	if t.g == nil {
		panic(errors.Wrap(tensor.ErrReleased, "zero tensor handle"))
	}
	return t.g
}

func (t Tensor[T]) node() *node[T] {
	return t.graph().mustLookup(t)
}

// Graph returns the graph the tensor belongs to.
func (t Tensor[T]) Graph() *Graph[T] {
	return t.g
}

// ID returns the arena slot of the tensor.
func (t Tensor[T]) ID() NodeID {
	return t.id
}

// IsReleased reports whether the handle's node has been reclaimed.
func (t Tensor[T]) IsReleased() bool {
	if t.g == nil {
		return true
	}
	_, err := t.g.lookup(t)
	return err != nil
}

// Value returns a copy of the tensor's values.
func (t Tensor[T]) Value() *tensor.Dense[T] {
	return t.node().value.Clone()
}

// Shape returns the tensor's shape.
func (t Tensor[T]) Shape() tensor.Shape {
	return t.node().value.Shape().Clone()
}

// Dim returns the number of axes.
func (t Tensor[T]) Dim() int {
	return t.node().value.Dim()
}

// IsScalar reports whether the tensor has shape [1].
func (t Tensor[T]) IsScalar() bool {
	return t.node().value.IsScalar()
}

// Item returns the single element of a one-element tensor.
// Panics with ErrNotScalar otherwise.
func (t Tensor[T]) Item() T {
	return t.node().value.Item()
}

// At returns the element at the given coordinate.
func (t Tensor[T]) At(indices ...int) T {
	return t.node().value.At(indices...)
}

// Grad returns the gradient stored by the last Backprop that targeted t,
// or nil.
func (t Tensor[T]) Grad() *tensor.Dense[T] {
	return t.node().grad
}

// Ownership returns the node's ownership tag.
func (t Tensor[T]) Ownership() Ownership {
	return t.node().ownership
}

// State returns the node's lifecycle state.
func (t Tensor[T]) State() State {
	return t.node().state
}

// Op returns the name of the operation that produced t, or "" for leaves.
func (t Tensor[T]) Op() string {
	n := t.node()
	if n.op == nil {
		return ""
	}
	return n.op.name()
}

// Parents returns handles to the live parents of t, in operand order.
// Parents that have been released are omitted.
func (t Tensor[T]) Parents() []Tensor[T] {
	return t.g.handles(t.node().parents)
}

// Children returns handles to the live children of t.
func (t Tensor[T]) Children() []Tensor[T] {
	return t.g.handles(t.node().children)
}

func (g *Graph[T]) handles(ids []NodeID) []Tensor[T] {
	out := make([]Tensor[T], 0, len(ids))
	for _, id := range ids {
		if id == noNode || !g.nodes[id].live {
			continue
		}
		out = append(out, g.handle(id))
	}
	return out
}

// Release detaches t from its graph. See Graph.Release.
func (t Tensor[T]) Release() {
	t.graph().Release(t)
}

// String renders the tensor's values.
func (t Tensor[T]) String() string {
	if t.IsReleased() {
		return "Tensor(released)"
	}
	return t.node().value.String()
}

// Format renders the tensor's values in nested-bracket form.
func (t Tensor[T]) Format() string {
	return tensor.Format(t.node().value)
}

// GoString identifies the handle for debugging.
func (t Tensor[T]) GoString() string {
	return fmt.Sprintf("autodiff.Tensor{id: %d, gen: %d}", t.id, t.gen)
}
