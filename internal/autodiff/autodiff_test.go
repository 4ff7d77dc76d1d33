package autodiff_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/sparsegrad/internal/autodiff"
	"github.com/born-ml/sparsegrad/internal/autodiff/ops"
	"github.com/born-ml/sparsegrad/internal/index"
	"github.com/born-ml/sparsegrad/internal/tensor"
)

func leaf(t *testing.T, g *autodiff.Graph[float64], data []float64, shape ...int) autodiff.Tensor[float64] {
	t.Helper()
	x, err := g.FromSlice(data, tensor.Shape(shape))
	require.NoError(t, err)
	return x
}

// assertPanicsIs checks that fn panics with an error wrapping target.
func assertPanicsIs(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic wrapping %v", target)
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.True(t, errors.Is(err, target), "got %v, want %v", err, target)
	}()
	fn()
}

// assertSparse checks that the non-zero set lists exactly the non-zero entries.
func assertSparse(t *testing.T, d *tensor.Dense[float64]) {
	t.Helper()
	index.Each(d.Shape(), func(idx []int) {
		if d.IsNonZero(idx...) {
			assert.NotZero(t, d.At(idx...), "recorded coordinate %v holds zero", idx)
		} else {
			assert.Zero(t, d.At(idx...), "unrecorded coordinate %v holds a value", idx)
		}
	})
}

// compose contracts outer (node wrt mid) with inner (mid wrt target) densely.
func compose(outer, inner *tensor.Dense[float64], nodeShape, midShape, targetShape tensor.Shape) *tensor.Dense[float64] {
	out := tensor.Zeros[float64](nodeShape.Concat(targetShape))
	index.Each(nodeShape, func(n []int) {
		index.Each(targetShape, func(tgt []int) {
			var sum float64
			index.Each(midShape, func(m []int) {
				sum += outer.At(index.Concat(n, m)...) * inner.At(index.Concat(m, tgt)...)
			})
			out.Set(sum, index.Concat(n, tgt)...)
		})
	})
	return out
}

// TestGrad_Identity tests that a tensor differentiated by itself is the identity.
func TestGrad_Identity(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	x := leaf(t, g, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	d, err := autodiff.NewEngine(g).Grad(x, x)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 3, 2, 3}, d.Shape())
	assert.Equal(t, 6, d.NumNonZero())
	assert.Equal(t, 1.0, d.At(1, 2, 1, 2))
	assert.Equal(t, 0.0, d.At(0, 1, 1, 0))
	assertSparse(t, d)
}

// TestGrad_NoPath tests that unrelated tensors have a zero derivative.
func TestGrad_NoPath(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	a := leaf(t, g, []float64{1, 2}, 2)
	b := leaf(t, g, []float64{3, 4}, 2)
	e := autodiff.NewEngine(g)

	d, err := e.Grad(a, b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1}, d.Shape())
	assert.Equal(t, 0, d.NumNonZero())
	assert.Equal(t, 0.0, d.Item())

	y := a.Mul(a)
	d, err = e.Grad(y, b)
	require.NoError(t, err)
	assert.Equal(t, 0, d.NumNonZero())
}

// TestGrad_ChainRule compares the engine with a dense composition of local Jacobians.
func TestGrad_ChainRule(t *testing.T) {
	space := index.NewSpace()

	t.Run("add then mul", func(t *testing.T) {
		g := autodiff.NewGraph[float64]()
		x := leaf(t, g, []float64{1, -2, 3}, 3)
		c := leaf(t, g, []float64{4, 5, 6}, 3)
		w := leaf(t, g, []float64{0.5, 0, -1}, 3)

		mid := x.Add(c)
		node := mid.Mul(w)

		_, inner := ops.NewAddOp[float64]().Backward(c.Value(), x.Value(), space)
		outer, _ := ops.NewMulOp[float64]().Backward(mid.Value(), w.Value(), space)
		want := compose(outer, inner, node.Shape(), mid.Shape(), x.Shape())

		got, err := autodiff.NewEngine(g).Grad(node, x)
		require.NoError(t, err)
		assert.Equal(t, want.Shape(), got.Shape())
		assert.True(t, floats.EqualApprox(want.Data(), got.Data(), 1e-12), "got %v want %v", got.Data(), want.Data())
		// w[1] == 0 cancels the middle entry.
		assert.Equal(t, 2, got.NumNonZero())
		assertSparse(t, got)
	})

	t.Run("mul then matmul", func(t *testing.T) {
		g := autodiff.NewGraph[float64]()
		x := leaf(t, g, []float64{1, 2, 3, 4}, 2, 2)
		m := leaf(t, g, []float64{-1, 0.5, 2, 1}, 2, 2)
		w := leaf(t, g, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

		mid := x.Mul(m)
		node := mid.MatMul(w)

		inner, _ := ops.NewMulOp[float64]().Backward(x.Value(), m.Value(), space)
		outer, _ := ops.NewMatMulOp[float64]().Backward(mid.Value(), w.Value(), space)
		want := compose(outer, inner, node.Shape(), mid.Shape(), x.Shape())

		got, err := autodiff.NewEngine(g).Grad(node, x)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{2, 3, 2, 2}, got.Shape())
		assert.True(t, floats.EqualApprox(want.Data(), got.Data(), 1e-12), "got %v want %v", got.Data(), want.Data())
		assertSparse(t, got)
	})
}

// TestGrad_Cancellation tests that entries cancelling to zero leave the non-zero set.
func TestGrad_Cancellation(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	x := leaf(t, g, []float64{1, 2}, 2)
	y := x.Sub(x)

	d, err := autodiff.NewEngine(g).Grad(y, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, d.Shape())
	assert.Equal(t, 0, d.NumNonZero())
	assertSparse(t, d)
}

// TestBackprop_Scenario1 tests out = a*a + b differentiated by a.
func TestBackprop_Scenario1(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	a, err := g.FromNested([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	b, err := g.FromNested([][]float64{{5, 6}, {7, 8}})
	require.NoError(t, err)

	out := a.Mul(a).Add(b)
	assert.Equal(t, []float64{6, 10, 16, 24}, out.Value().Data())

	require.NoError(t, out.Backprop(true, a))
	grad := a.Grad()
	require.NotNil(t, grad)
	assert.Equal(t, tensor.Shape{2, 2, 2, 2}, grad.Shape())
	assert.Equal(t, 4, grad.NumNonZero())
	assert.Equal(t, 2.0, grad.At(0, 0, 0, 0))
	assert.Equal(t, 6.0, grad.At(1, 0, 1, 0))
	assert.Equal(t, 8.0, grad.At(1, 1, 1, 1))
	assertSparse(t, grad)

	require.NoError(t, out.Sum().Backprop(true, a))
	grad = a.Grad()
	assert.Equal(t, tensor.Shape{2, 2}, grad.Shape())
	assert.Equal(t, []float64{2, 4, 6, 8}, grad.Data())
	assert.Equal(t, "[[2, 4], [6, 8]]", tensor.Format(grad))
}

// TestBackprop_Scenario2 tests the gradients of a vector product.
func TestBackprop_Scenario2(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	w := leaf(t, g, []float64{1, 2, 3}, 1, 3)
	x := leaf(t, g, []float64{4, 5, 6}, 3, 1)

	y := w.MatMul(x)
	assert.Equal(t, 32.0, y.Item())

	require.NoError(t, y.Backprop(true, w, x))
	assert.Equal(t, tensor.Shape{3}, w.Grad().Shape())
	assert.Equal(t, []float64{4, 5, 6}, w.Grad().Data())
	assert.Equal(t, tensor.Shape{3}, x.Grad().Shape())
	assert.Equal(t, []float64{1, 2, 3}, x.Grad().Data())

	require.NoError(t, y.Backprop(false, w))
	assert.Equal(t, tensor.Shape{1, 1, 1, 3}, w.Grad().Shape())
}

// TestBackprop_Scenario3 tests the gradient of a sum.
func TestBackprop_Scenario3(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	v, err := g.FromFlat([]float64{2, 3, 4})
	require.NoError(t, err)

	s := v.Sum()
	assert.Equal(t, 9.0, s.Item())
	require.Len(t, s.Parents(), 1)

	require.NoError(t, s.Backprop(true, s.Parents()[0]))
	assert.Equal(t, []float64{1, 1, 1}, v.Grad().Data())

	require.NoError(t, s.Backprop(false, v))
	assert.Equal(t, tensor.Shape{1, 3}, v.Grad().Shape())
}

// TestBackprop_Scenario4 tests explicit broadcasting of a one-element tensor.
func TestBackprop_Scenario4(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	c, err := g.FromNested([][]float64{{5}})
	require.NoError(t, err)
	m := leaf(t, g, []float64{1, 2, 3, 4}, 2, 2)

	out := c.Broadcast(tensor.Shape{2, 2}).Add(m)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float64{6, 7, 8, 9}, out.Value().Data())

	require.NoError(t, out.Backprop(true, c))
	assert.Equal(t, tensor.Shape{2, 2}, c.Grad().Shape())
	assert.Equal(t, []float64{1, 1, 1, 1}, c.Grad().Data())

	// [1,1] is not auto-broadcast; only [1] is.
	assertPanicsIs(t, tensor.ErrShapeMismatch, func() { c.Add(m) })
	assertPanicsIs(t, tensor.ErrShapeMismatch, func() { m.Add(leaf(t, g, []float64{1, 2, 3}, 3)) })
	assertPanicsIs(t, tensor.ErrNotScalar, func() { m.Broadcast(tensor.Shape{4, 4}) })
}

// TestOperators tests values and gradients of the derived operators.
func TestOperators(t *testing.T) {
	tests := []struct {
		name  string
		x     []float64
		fn    func(x autodiff.Tensor[float64]) autodiff.Tensor[float64]
		value []float64
		grad  []float64
	}{
		{"neg", []float64{1, -2}, autodiff.Tensor[float64].Neg, []float64{-1, 2}, []float64{-1, -1}},
		{"add scalar", []float64{1, 2}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.AddScalar(3) }, []float64{4, 5}, []float64{1, 1}},
		{"sub scalar", []float64{1, 2}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.SubScalar(3) }, []float64{-2, -1}, []float64{1, 1}},
		{"mul scalar", []float64{1, 2}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.MulScalar(2) }, []float64{2, 4}, []float64{2, 2}},
		{"div scalar", []float64{2, 4}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.DivScalar(2) }, []float64{1, 2}, []float64{0.5, 0.5}},
		{"rsub", []float64{1, 2}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.RSub(10) }, []float64{9, 8}, []float64{-1, -1}},
		{"rdiv", []float64{2, 4}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.RDiv(1) }, []float64{0.5, 0.25}, []float64{-0.25, -0.0625}},
		{"pow", []float64{3, -1}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.Pow(2) }, []float64{9, 1}, []float64{6, -2}},
		{"exp", []float64{0, 1}, autodiff.Tensor[float64].Exp, []float64{1, math.E}, []float64{1, math.E}},
		{"log", []float64{1, 4}, autodiff.Tensor[float64].Log, []float64{0, math.Log(4)}, []float64{1, 0.25}},
		{"exp base 2", []float64{3}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.ExpBase(2) }, []float64{8}, []float64{8 * math.Ln2}},
		{"log base 10", []float64{100}, func(x autodiff.Tensor[float64]) autodiff.Tensor[float64] { return x.LogBase(10) }, []float64{2}, []float64{1 / (100 * math.Ln10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := autodiff.NewGraph[float64]()
			x := leaf(t, g, tt.x, len(tt.x))

			y := tt.fn(x)
			assert.True(t, floats.EqualApprox(tt.value, y.Value().Data(), 1e-12), "value %v", y.Value().Data())

			require.NoError(t, y.Sum().Backprop(true, x))
			assert.True(t, floats.EqualApprox(tt.grad, x.Grad().Data(), 1e-12), "grad %v", x.Grad().Data())
		})
	}
}

// TestOperators_Binary tests Sub and Div gradients with respect to both operands.
func TestOperators_Binary(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	a := leaf(t, g, []float64{6, 8}, 2)
	b := leaf(t, g, []float64{2, 4}, 2)

	diff := a.Sub(b)
	assert.Equal(t, []float64{4, 4}, diff.Value().Data())
	require.NoError(t, diff.Sum().Backprop(true, a, b))
	assert.Equal(t, []float64{1, 1}, a.Grad().Data())
	assert.Equal(t, []float64{-1, -1}, b.Grad().Data())

	quot := a.Div(b)
	assert.Equal(t, []float64{3, 2}, quot.Value().Data())
	require.NoError(t, quot.Sum().Backprop(true, a, b))
	assert.True(t, floats.EqualApprox([]float64{0.5, 0.25}, a.Grad().Data(), 1e-12))
	assert.True(t, floats.EqualApprox([]float64{-1.5, -0.5}, b.Grad().Data(), 1e-12))
}

// TestIndex tests subscripting and its one-hot gradient.
func TestIndex(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	x := leaf(t, g, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	y := x.Index(1, 2)
	assert.Equal(t, 6.0, y.Item())

	require.NoError(t, y.Backprop(true, x))
	assert.Equal(t, tensor.Shape{2, 3}, x.Grad().Shape())
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 1}, x.Grad().Data())
	if diff := cmp.Diff([][]int{{1, 2}}, x.Grad().NonZero()); diff != "" {
		t.Errorf("non-zero set mismatch (-want +got):\n%s", diff)
	}

	assertPanicsIs(t, tensor.ErrIndexRange, func() { x.Index(2, 0) })
	assertPanicsIs(t, tensor.ErrIndexRank, func() { x.Index(1) })
}

// TestShapeErrors tests that contract violations panic with their sentinel.
func TestShapeErrors(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	a := leaf(t, g, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := leaf(t, g, []float64{1, 2, 3, 4, 5, 6}, 3, 2)
	before := g.Len()

	assertPanicsIs(t, tensor.ErrShapeMismatch, func() { a.Add(b) })
	assertPanicsIs(t, tensor.ErrShapeMismatch, func() { a.Sub(b) })
	assertPanicsIs(t, tensor.ErrShapeMismatch, func() { a.Div(b) })
	assertPanicsIs(t, tensor.ErrInnerDim, func() { a.MatMul(a) })
	assertPanicsIs(t, tensor.ErrNotScalar, func() { a.Item() })

	// Failed operations leave no intermediates behind.
	assert.Equal(t, before, g.Len())

	_, err := g.FromSlice([]float64{1, 2, 3}, tensor.Shape{2, 2})
	assert.True(t, errors.Is(err, tensor.ErrInvalidShape))

	other := autodiff.NewGraph[float64]()
	c := leaf(t, other, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	assertPanicsIs(t, tensor.ErrForeignGraph, func() { a.Add(c) })
	assert.True(t, errors.Is(c.Backprop(true, a), tensor.ErrForeignGraph))
}

// TestScalarOperands tests automatic broadcasting of [1]-shaped operands.
func TestScalarOperands(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	x := leaf(t, g, []float64{1, 2, 3}, 3)
	s := g.Scalar(2)

	y := x.Mul(s)
	assert.Equal(t, []float64{2, 4, 6}, y.Value().Data())
	z := s.Sub(x)
	assert.Equal(t, []float64{1, 0, -1}, z.Value().Data())

	require.NoError(t, y.Sum().Backprop(true, s, x))
	assert.Equal(t, tensor.Shape{1}, s.Grad().Shape())
	assert.Equal(t, 6.0, s.Grad().Item())
	assert.Equal(t, []float64{2, 2, 2}, x.Grad().Data())
}

// TestBackprop_ReplacesGradient tests that a second Backprop discards the first result.
func TestBackprop_ReplacesGradient(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	x := leaf(t, g, []float64{1, 2}, 2)

	require.NoError(t, x.MulScalar(3).Sum().Backprop(true, x))
	assert.Equal(t, []float64{3, 3}, x.Grad().Data())

	require.NoError(t, x.Sum().Backprop(true, x))
	assert.Equal(t, []float64{1, 1}, x.Grad().Data())

	x.ZeroGrad()
	assert.Nil(t, x.Grad())
}

// TestIntegerGraph tests differentiation over an integer element type.
func TestIntegerGraph(t *testing.T) {
	g := autodiff.NewGraph[int]()
	a, err := g.FromFlat([]int{1, 2})
	require.NoError(t, err)
	b, err := g.FromFlat([]int{3, 4})
	require.NoError(t, err)

	y := a.Mul(b).Sum()
	assert.Equal(t, 11, y.Item())

	require.NoError(t, y.Backprop(true, a, b))
	assert.Equal(t, []int{3, 4}, a.Grad().Data())
	assert.Equal(t, []int{1, 2}, b.Grad().Data())
}

// TestRelease_PublicSurface tests handle staleness after release.
func TestRelease_PublicSurface(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	a := leaf(t, g, []float64{1, 2}, 2)
	b := leaf(t, g, []float64{3, 4}, 2)

	y := a.Sub(b)
	assert.Equal(t, 6, g.Len())
	assert.Equal(t, autodiff.UserHeld, y.Ownership())
	assert.Equal(t, autodiff.StateAttached, y.State())
	assert.Equal(t, "add", y.Op())

	y.Release()
	assert.Equal(t, 2, g.Len())
	assert.True(t, y.IsReleased())
	assert.Empty(t, a.Children())
	assert.Empty(t, b.Children())
	assertPanicsIs(t, tensor.ErrReleased, func() { y.Value() })
	assertPanicsIs(t, tensor.ErrReleased, func() { y.Release() })

	// The freed slot is reused without reviving the stale handle.
	z := g.Scalar(1)
	assert.False(t, z.IsReleased())
	assert.True(t, y.IsReleased())
	assert.Equal(t, "Tensor(released)", y.String())

	var zero autodiff.Tensor[float64]
	assert.True(t, zero.IsReleased())
	assertPanicsIs(t, tensor.ErrReleased, func() { zero.Shape() })
}

// TestRelease_ParentKeepsChild tests that releasing a leaf keeps its user-held children.
func TestRelease_ParentKeepsChild(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	a := leaf(t, g, []float64{1, 2}, 2)
	b := leaf(t, g, []float64{3, 4}, 2)
	y := a.Mul(b)

	a.Release()
	assert.False(t, y.IsReleased())
	assert.Equal(t, []float64{3, 8}, y.Value().Data())
	require.Len(t, y.Parents(), 1)
	assert.Equal(t, b.ID(), y.Parents()[0].ID())

	require.NoError(t, y.Sum().Backprop(true, b))
	assert.Equal(t, []float64{1, 2}, b.Grad().Data())
}

// TestRelease_OwnedChildren tests that releasing a tensor reclaims the intermediates it feeds.
func TestRelease_OwnedChildren(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	a := leaf(t, g, []float64{1, 2}, 2)
	b := leaf(t, g, []float64{3, 4}, 2)
	s := a.Sub(b) // a, b, -1, broadcast, negation, s

	require.Equal(t, 6, g.Len())
	b.Release()

	assert.Equal(t, 2, g.Len())
	assert.False(t, s.IsReleased())
	assert.Equal(t, []float64{-2, -2}, s.Value().Data())
	require.Len(t, s.Parents(), 1)
	assert.Equal(t, a.ID(), s.Parents()[0].ID())
}

// TestSweep tests that Sweep reclaims everything outside the roots' ancestry.
func TestSweep(t *testing.T) {
	g := autodiff.NewGraph[float64]()
	a := leaf(t, g, []float64{1, 2}, 2)
	b := leaf(t, g, []float64{3, 4}, 2)

	keep := a.Mul(b)
	tmp := a.Add(b)
	tmp2 := tmp.MulScalar(2)
	require.Equal(t, 7, g.Len())

	assert.Equal(t, 4, g.Sweep(keep))
	assert.Equal(t, 3, g.Len())
	assert.True(t, tmp.IsReleased())
	assert.True(t, tmp2.IsReleased())
	assert.False(t, keep.IsReleased())
	assert.False(t, a.IsReleased())

	root := keep.Sum()
	assert.Equal(t, 0, g.Sweep(root))
	assert.Equal(t, 4, g.Len())
}
