package autodiff

import (
	"log/slog"

	"github.com/emirpasic/gods/v2/sets/hashset"
	"github.com/emirpasic/gods/v2/stacks/arraystack"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/born-ml/sparsegrad/internal/autodiff/ops"
	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/logutil"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

// NodeID addresses a slot in a Graph's arena. Slots are recycled, so a NodeID
// alone does not identify a node across reclamation; Tensor handles pair it
// with a generation counter.
type NodeID int

const noNode NodeID = -1

// Ownership decides who is responsible for reclaiming a node.
type Ownership int

const (
	// Leaf nodes are declared by the caller and have no operation.
	Leaf Ownership = iota
	// UserHeld nodes are operation results handed back to the caller.
	UserHeld
	// OwnedIntermediate nodes exist only to realize a sub-expression
	// (constants, implicit broadcasts, negations). They are reclaimed as soon
	// as nothing downstream refers to them.
	OwnedIntermediate
)

// String returns the ownership tag name.
func (o Ownership) String() string {
	switch o {
	case Leaf:
		return "leaf"
	case UserHeld:
		return "user-held"
	case OwnedIntermediate:
		return "owned-intermediate"
	default:
		return "unknown"
	}
}

// State is the lifecycle position of a node: Leaf → Attached → Detached.
type State int

const (
	// StateLeaf: no operation and no parents yet.
	StateLeaf State = iota
	// StateAttached: parents and operation recorded, exactly once.
	StateAttached
	// StateDetached: links cleared; terminal.
	StateDetached
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLeaf:
		return "leaf"
	case StateAttached:
		return "attached"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// operation is the closed set of kernel adapters a node can carry.
// The adapter fixes the arity, so a kernel is never invoked with the wrong
// number of operands.
type operation[T tensor.Numeric] interface {
	name() string
	arity() int
	jacobians(inputs []*tensor.Dense[T], space *index.Space) []*tensor.Dense[T]
}

type unaryOp[T tensor.Numeric] struct {
	kernel ops.UnaryKernel[T]
}

func (u unaryOp[T]) name() string { return u.kernel.Name() }
func (u unaryOp[T]) arity() int   { return 1 }

func (u unaryOp[T]) jacobians(inputs []*tensor.Dense[T], space *index.Space) []*tensor.Dense[T] {
	return []*tensor.Dense[T]{u.kernel.Backward(inputs[0], space)}
}

type binaryOp[T tensor.Numeric] struct {
	kernel ops.BinaryKernel[T]
}

func (b binaryOp[T]) name() string { return b.kernel.Name() }
func (b binaryOp[T]) arity() int   { return 2 }

func (b binaryOp[T]) jacobians(inputs []*tensor.Dense[T], space *index.Space) []*tensor.Dense[T] {
	da, db := b.kernel.Backward(inputs[0], inputs[1], space)
	return []*tensor.Dense[T]{da, db}
}

// node is one arena slot.
type node[T tensor.Numeric] struct {
	value *tensor.Dense[T]

	// parents and children may hold noNode after detachment.
	parents  []NodeID
	children []NodeID

	// inputs are the operand values op was applied to, kept so local
	// Jacobians stay computable after a parent is reclaimed.
	inputs []*tensor.Dense[T]
	op     operation[T]

	ownership Ownership
	state     State
	refs      int // live child links pointing at this node
	grad      *tensor.Dense[T]

	gen  uint32
	live bool
}

// Graph is an arena holding every tensor of one computation.
//
// Tensors are created through the graph (FromSlice, Scalar, ...) and through
// operations on existing tensors; each operation executes eagerly and records
// its result's parents. A Graph is not safe for concurrent use.
type Graph[T tensor.Numeric] struct {
	id     uuid.UUID
	nodes  []*node[T]
	free   *arraystack.Stack[NodeID]
	live   int
	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for graph and engine events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewGraph creates an empty graph.
func NewGraph[T tensor.Numeric](opts ...Option) *Graph[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	return &Graph[T]{
		id:     id,
		free:   arraystack.New[NodeID](),
		logger: o.logger.With("graph", id.String()),
	}
}

// ID returns the graph's identity, as attached to its log records.
func (g *Graph[T]) ID() uuid.UUID {
	return g.id
}

// Len returns the number of live nodes.
func (g *Graph[T]) Len() int {
	return g.live
}

// Leaf adds a copy of d to the graph as a caller-declared leaf tensor.
func (g *Graph[T]) Leaf(d *tensor.Dense[T]) Tensor[T] {
	return g.handle(g.alloc(d.Clone(), Leaf))
}

// FromSlice adds a leaf tensor built from flat row-major data and a shape.
func (g *Graph[T]) FromSlice(data []T, shape tensor.Shape) (Tensor[T], error) {
	d, err := tensor.FromSlice(data, shape)
	if err != nil {
		return Tensor[T]{}, err
	}
	return g.handle(g.alloc(d, Leaf)), nil
}

// FromFlat adds a 1-D leaf tensor of shape [len(data)].
func (g *Graph[T]) FromFlat(data []T) (Tensor[T], error) {
	return g.FromSlice(data, tensor.Shape{len(data)})
}

// FromNested adds a leaf tensor built from nested slices, inferring its shape.
func (g *Graph[T]) FromNested(nested any) (Tensor[T], error) {
	d, err := tensor.FromNested[T](nested)
	if err != nil {
		return Tensor[T]{}, err
	}
	return g.handle(g.alloc(d, Leaf)), nil
}

// Scalar adds a leaf tensor of shape [1].
func (g *Graph[T]) Scalar(value T) Tensor[T] {
	return g.handle(g.alloc(tensor.Scalar(value), Leaf))
}

// constant adds a [1]-shaped leaf that is reclaimed with its consumer.
func (g *Graph[T]) constant(value T) NodeID {
	return g.alloc(tensor.Scalar(value), OwnedIntermediate)
}

func (g *Graph[T]) alloc(value *tensor.Dense[T], ownership Ownership) NodeID {
	n := &node[T]{
		value:     value,
		ownership: ownership,
		state:     StateLeaf,
		live:      true,
	}

	g.live++
	if id, ok := g.free.Pop(); ok {
		n.gen = g.nodes[id].gen + 1
		g.nodes[id] = n
		return id
	}

	g.nodes = append(g.nodes, n)
	return NodeID(len(g.nodes) - 1)
}

func (g *Graph[T]) handle(id NodeID) Tensor[T] {
	return Tensor[T]{g: g, id: id, gen: g.nodes[id].gen}
}

// lookup resolves a handle to its live node.
func (g *Graph[T]) lookup(t Tensor[T]) (*node[T], error) {
	if t.g == nil {
		return nil, errors.Wrap(tensor.ErrReleased, "zero tensor handle")
	}
	if t.g != g {
		return nil, errors.Wrapf(tensor.ErrForeignGraph, "tensor of graph %s used in graph %s", t.g.id, g.id)
	}
	if int(t.id) < 0 || int(t.id) >= len(g.nodes) {
		return nil, errors.Wrapf(tensor.ErrReleased, "node %d", t.id)
	}
	n := g.nodes[t.id]
	if !n.live || n.gen != t.gen {
		return nil, errors.Wrapf(tensor.ErrReleased, "node %d generation %d", t.id, t.gen)
	}
	return n, nil
}

func (g *Graph[T]) mustLookup(t Tensor[T]) *node[T] {
	n, err := g.lookup(t)
	if err != nil {
		panic(err)
	}
	return n
}

// attach records parents and op on id and registers id as a child of each
// parent. It may run once per node.
func (g *Graph[T]) attach(id NodeID, parents []NodeID, op operation[T]) error {
	n := g.nodes[id]
	if n.state != StateLeaf || n.op != nil {
		return errors.Wrapf(tensor.ErrAlreadyAttached, "node %d (%s)", id, n.state)
	}
	if len(parents) != op.arity() {
		return errors.Wrapf(tensor.ErrArity, "%s takes %d operands, got %d", op.name(), op.arity(), len(parents))
	}

	n.inputs = make([]*tensor.Dense[T], len(parents))
	for i, p := range parents {
		pn := g.nodes[p]
		pn.children = append(pn.children, id)
		pn.refs++
		n.inputs[i] = pn.value
	}

	n.parents = append([]NodeID(nil), parents...)
	n.op = op
	n.state = StateAttached

	logutil.Trace(g.logger, "attach", "node", id, "op", op.name(), "parents", parents, "ownership", n.ownership)
	return nil
}

// detach removes id from the graph. Parent links are dropped and
// OwnedIntermediate parents left without referrers are reclaimed.
// OwnedIntermediate children are reclaimed; other children keep their value
// and lose the link to id. Detaching twice is a no-op.
func (g *Graph[T]) detach(id NodeID) int {
	n := g.nodes[id]
	if n.state == StateDetached {
		return 0
	}
	n.state = StateDetached

	reclaimed := 0
	for i, p := range n.parents {
		if p == noNode {
			continue
		}
		n.parents[i] = noNode

		pn := g.nodes[p]
		if !unlink(pn.children, id) {
			panic(errors.Wrapf(tensor.ErrCorruptGraph, "node %d missing from children of parent %d", id, p))
		}
		pn.refs--

		if pn.live && pn.ownership == OwnedIntermediate && pn.refs == 0 {
			reclaimed += g.reclaim(p)
		}
	}
	n.parents = nil

	children := n.children
	n.children = nil
	n.refs = 0
	for _, c := range children {
		if c == noNode {
			continue
		}
		cn := g.nodes[c]
		for j, p := range cn.parents {
			if p == id {
				cn.parents[j] = noNode
			}
		}
		if cn.live && cn.ownership == OwnedIntermediate {
			reclaimed += g.reclaim(c)
		}
	}

	return reclaimed
}

// reclaim detaches id and returns its slot to the free list.
func (g *Graph[T]) reclaim(id NodeID) int {
	n := g.nodes[id]
	if !n.live {
		return 0
	}
	n.live = false

	reclaimed := 1 + g.detach(id)

	n.value = nil
	n.inputs = nil
	n.grad = nil
	n.op = nil
	g.free.Push(id)
	g.live--
	return reclaimed
}

// unlink replaces the first occurrence of id in links with noNode.
func unlink(links []NodeID, id NodeID) bool {
	for i, l := range links {
		if l == id {
			links[i] = noNode
			return true
		}
	}
	return false
}

// Release detaches t from the graph and reclaims it along with every
// OwnedIntermediate node that only existed to serve it. Tensors the caller
// may still hold (leaves and user-held results) are never reclaimed as a side
// effect; they lose their link to t instead.
//
// Using t after Release panics with ErrReleased.
func (g *Graph[T]) Release(t Tensor[T]) {
	g.mustLookup(t)
	reclaimed := g.reclaim(t.id)
	g.logger.Debug("release", "node", t.id, "reclaimed", reclaimed, "live", g.live)
}

// Sweep reclaims every non-leaf node that is not an ancestor of one of roots
// (roots themselves are kept). It is the arena-wide counterpart of Release,
// for dropping sub-expressions the caller never captured.
func (g *Graph[T]) Sweep(roots ...Tensor[T]) int {
	keep := hashset.New[NodeID]()
	stack := arraystack.New[NodeID]()
	for _, r := range roots {
		g.mustLookup(r)
		stack.Push(r.id)
	}
	for !stack.Empty() {
		id, _ := stack.Pop()
		if keep.Contains(id) {
			continue
		}
		keep.Add(id)
		for _, p := range g.nodes[id].parents {
			if p != noNode {
				stack.Push(p)
			}
		}
	}

	reclaimed := 0
	for i, n := range g.nodes {
		id := NodeID(i)
		if !n.live || keep.Contains(id) {
			continue
		}
		if n.ownership == Leaf {
			continue
		}
		reclaimed += g.reclaim(id)
	}

	g.logger.Debug("sweep", "roots", len(roots), "reclaimed", reclaimed, "live", g.live)
	return reclaimed
}
