// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides sparse reverse-mode automatic differentiation.
//
// Tensors live in a Graph. Every operation on a Tensor executes immediately
// and records how its result was derived; Backprop then composes the local
// Jacobians along every path to each requested target.
//
// Example:
//
//	import (
//	    "github.com/born-ml/sparsegrad/autodiff"
//	)
//
//	func main() {
//	    g := autodiff.NewGraph[float64]()
//	    w, _ := g.FromNested([][]float64{{1, 2, 3}})
//	    x, _ := g.FromNested([][]float64{{4}, {5}, {6}})
//
//	    y := w.MatMul(x) // [[32]]
//	    _ = y.Backprop(true, w, x)
//
//	    fmt.Println(w.Grad()) // [4, 5, 6]
//	    fmt.Println(x.Grad()) // [1, 2, 3]
//	}
package autodiff

import (
	"github.com/born-ml/sparsegrad/internal/autodiff"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// Graph is an arena holding every tensor of one computation.
type Graph[T tensor.Numeric] = autodiff.Graph[T]

// Tensor is a handle to a node of a Graph.
type Tensor[T tensor.Numeric] = autodiff.Tensor[T]

// Engine computes global derivatives over one Graph.
type Engine[T tensor.Numeric] = autodiff.Engine[T]

// NodeID addresses a slot in a Graph's arena.
type NodeID = autodiff.NodeID

// Ownership decides who is responsible for reclaiming a node.
type Ownership = autodiff.Ownership

// Ownership tags.
const (
	Leaf              = autodiff.Leaf
	UserHeld          = autodiff.UserHeld
	OwnedIntermediate = autodiff.OwnedIntermediate
)

// State is the lifecycle position of a node.
type State = autodiff.State

// Node states.
const (
	StateLeaf     = autodiff.StateLeaf
	StateAttached = autodiff.StateAttached
	StateDetached = autodiff.StateDetached
)

// Option configures a Graph.
type Option = autodiff.Option

// WithLogger sets the logger used for graph and engine events.
var WithLogger = autodiff.WithLogger

// NewGraph creates an empty graph.
//
// Example:
//
//	g := autodiff.NewGraph[float64](autodiff.WithLogger(slog.Default()))
func NewGraph[T tensor.Numeric](opts ...Option) *Graph[T] {
	return autodiff.NewGraph[T](opts...)
}

// NewEngine creates an engine with empty caches.
func NewEngine[T tensor.Numeric](g *Graph[T]) *Engine[T] {
	return autodiff.NewEngine(g)
}
