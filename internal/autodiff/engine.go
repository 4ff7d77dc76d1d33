package autodiff

import (
	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/logutil"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// Engine computes global derivatives over one Graph.
//
// An Engine owns every cache used while differentiating: the index-space
// cache, the local Jacobians of each visited node, and the global
// derivatives of each visited node with respect to the current target.
// It assumes the graph is not mutated while it is in use; create a new
// Engine per differentiation run.
type Engine[T tensor.Numeric] struct {
	g     *Graph[T]
	space *index.Space

	jacobians map[NodeID][]*tensor.Dense[T]
	partials  map[NodeID]*tensor.Dense[T]
	target    NodeID
}

// NewEngine creates an engine with empty caches.
func NewEngine[T tensor.Numeric](g *Graph[T]) *Engine[T] {
	return &Engine[T]{
		g:         g,
		space:     index.NewSpace(),
		jacobians: make(map[NodeID][]*tensor.Dense[T]),
		partials:  make(map[NodeID]*tensor.Dense[T]),
		target:    noNode,
	}
}

// Space returns the index-space cache owned by the engine.
func (e *Engine[T]) Space() *index.Space {
	return e.space
}

// Grad returns the derivative of node with respect to target, a tensor of
// shape concat(node.shape, target.shape) whose non-zero set lists exactly
// its non-zero entries. If target is not an ancestor of node the result is
// the [1]-shaped zero tensor with an empty non-zero set.
func (e *Engine[T]) Grad(node, target Tensor[T]) (*tensor.Dense[T], error) {
	if _, err := e.g.lookup(node); err != nil {
		return nil, err
	}
	if _, err := e.g.lookup(target); err != nil {
		return nil, err
	}

	if e.target != target.id {
		clear(e.partials)
		e.target = target.id
	}
	return e.grad(node.id).Clone(), nil
}

func (e *Engine[T]) grad(id NodeID) *tensor.Dense[T] {
	if d, ok := e.partials[id]; ok {
		return d
	}

	n := e.g.nodes[id]
	var d *tensor.Dense[T]
	switch {
	case id == e.target:
		d = tensor.Identity[T](n.value.Shape(), e.space)
	case n.op == nil:
		d = tensor.Scalar[T](0)
	default:
		d = e.accumulate(id, n)
	}

	e.partials[id] = d
	return d
}

// accumulate chains the local Jacobians of n with the derivatives of its
// parents.
func (e *Engine[T]) accumulate(id NodeID, n *node[T]) *tensor.Dense[T] {
	targetShape := e.g.nodes[e.target].value.Shape()
	nodeShape := n.value.Shape()
	rank := len(nodeShape)

	out := tensor.Zeros[T](nodeShape.Concat(targetShape))
	local := e.localJacobians(id, n)

	visited := 0
	for i, p := range n.parents {
		if p == noNode {
			continue
		}
		upstream := e.grad(p)
		if upstream.NumNonZero() == 0 {
			continue
		}

		parentShape := e.g.nodes[p].value.Shape()
		groups := group(upstream, parentShape)
		parentStrides := index.Strides(parentShape)

		for _, nIdx := range local[i].NonZero() {
			prefix, suffix := nIdx[:rank], nIdx[rank:]
			entries := groups[index.Offset(suffix, parentStrides)]
			if len(entries) == 0 {
				continue
			}

			w := local[i].At(nIdx...)
			for _, entry := range entries {
				coord := index.Concat(prefix, entry.target)
				out.AddAt(w*entry.value, coord...)
				out.MarkNonZero(coord)
				visited++
			}
		}
	}

	pruned := out.Prune()
	logutil.Trace(e.g.logger, "accumulate", "node", id, "op", n.op.name(), "products", visited,
		"nonzero", out.NumNonZero(), "pruned", pruned)
	return out
}

func (e *Engine[T]) localJacobians(id NodeID, n *node[T]) []*tensor.Dense[T] {
	if local, ok := e.jacobians[id]; ok {
		return local
	}
	local := n.op.jacobians(n.inputs, e.space)
	e.jacobians[id] = local
	return local
}

type groupEntry[T tensor.Numeric] struct {
	target []int
	value  T
}

// group indexes the non-zero entries of a parent-wrt-target derivative by
// the flat offset of their parent-axes prefix.
func group[T tensor.Numeric](upstream *tensor.Dense[T], parentShape tensor.Shape) map[int][]groupEntry[T] {
	rank := len(parentShape)
	strides := index.Strides(parentShape)

	groups := make(map[int][]groupEntry[T])
	for _, idx := range upstream.NonZero() {
		key := index.Offset(idx[:rank], strides)
		groups[key] = append(groups[key], groupEntry[T]{
			target: idx[rank:],
			value:  upstream.At(idx...),
		})
	}
	return groups
}
