package tensor

import (
	"fmt"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/born-ml/sparsegrad/internal/index"
)

// Dense is a dense, row-major tensor with element type T.
//
// Besides its values, a Dense carries an ordered set of "structurally non-zero"
// coordinates. Value tensors leave the set empty; local and global derivative
// tensors use it to list the only entries the differentiation engine visits.
// Every coordinate outside the set reads as zero.
//
// Example:
//
//	d, _ := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	v := d.At(1, 0) // 3
type Dense[T Numeric] struct {
	data    []T
	shape   Shape
	strides []int

	// flat offset -> coordinate, in insertion order
	nonZero *orderedmap.OrderedMap[int, []int]
}

func newDense[T Numeric](shape Shape) *Dense[T] {
	return &Dense[T]{
		data:    make([]T, shape.NumElements()),
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
	}
}

// Shape returns the tensor's shape. The returned slice must not be modified.
func (d *Dense[T]) Shape() Shape {
	return d.shape
}

// Dim returns the number of axes.
func (d *Dense[T]) Dim() int {
	return len(d.shape)
}

// DType returns the tensor's data type.
func (d *Dense[T]) DType() DataType {
	return inferDataType[T]()
}

// NumElements returns the total number of elements.
func (d *Dense[T]) NumElements() int {
	return len(d.data)
}

// IsScalar reports whether the shape is exactly [1].
func (d *Dense[T]) IsScalar() bool {
	return d.shape.IsScalar()
}

// Data returns the flat row-major storage.
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (d *Dense[T]) Data() []T {
	return d.data
}

// Item returns the value of a single-element tensor.
// Panics with ErrNotScalar otherwise.
func (d *Dense[T]) Item() T {
	if len(d.data) != 1 {
		panic(errors.Wrapf(ErrNotScalar, "Item() on shape %v", d.shape))
	}
	return d.data[0]
}

// Offset validates idx against the shape and returns its flat offset.
func (d *Dense[T]) Offset(idx []int) (int, error) {
	if len(idx) != len(d.shape) {
		return 0, errors.Wrapf(ErrIndexRank, "expected %d indices, got %d", len(d.shape), len(idx))
	}
	for i, v := range idx {
		if v < 0 || v >= d.shape[i] {
			return 0, errors.Wrapf(ErrIndexRange, "index %d out of bounds for dimension %d (size %d)", v, i, d.shape[i])
		}
	}
	return index.Offset(idx, d.strides), nil
}

func (d *Dense[T]) mustOffset(idx []int) int {
	off, err := d.Offset(idx)
	if err != nil {
		panic(err)
	}
	return off
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
//
// Example:
//
//	value := d.At(1, 2) // Row 1, column 2
func (d *Dense[T]) At(indices ...int) T {
	return d.data[d.mustOffset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (d *Dense[T]) Set(value T, indices ...int) {
	d.data[d.mustOffset(indices)] = value
}

// AddAt accumulates value into the element at the given indices.
func (d *Dense[T]) AddAt(value T, indices ...int) {
	d.data[d.mustOffset(indices)] += value
}

// SetNonZero stores value at idx and records idx as structurally non-zero.
// A zero value is neither stored nor recorded.
func (d *Dense[T]) SetNonZero(value T, indices ...int) {
	if value == 0 {
		return
	}
	d.Set(value, indices...)
	d.MarkNonZero(indices)
}

// MarkNonZero records idx as structurally non-zero. Recording the same
// coordinate twice is a no-op.
func (d *Dense[T]) MarkNonZero(idx []int) {
	off := d.mustOffset(idx)
	if d.nonZero == nil {
		d.nonZero = orderedmap.New[int, []int]()
	}
	if _, ok := d.nonZero.Get(off); ok {
		return
	}
	c := make([]int, len(idx))
	copy(c, idx)
	d.nonZero.Set(off, c)
}

// IsNonZero reports whether idx is in the non-zero set.
func (d *Dense[T]) IsNonZero(indices ...int) bool {
	if d.nonZero == nil {
		return false
	}
	off, err := d.Offset(indices)
	if err != nil {
		return false
	}
	_, ok := d.nonZero.Get(off)
	return ok
}

// NumNonZero returns the size of the non-zero set.
func (d *Dense[T]) NumNonZero() int {
	if d.nonZero == nil {
		return 0
	}
	return d.nonZero.Len()
}

// NonZero returns the non-zero coordinates in insertion order.
// The coordinates are shared with the tensor and must not be modified.
func (d *Dense[T]) NonZero() [][]int {
	if d.nonZero == nil {
		return nil
	}
	out := make([][]int, 0, d.nonZero.Len())
	for pair := d.nonZero.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Prune drops coordinates whose stored value is zero from the non-zero set.
// Accumulation can cancel entries out; after Prune the set lists exactly the
// coordinates holding a non-zero value among those previously recorded.
func (d *Dense[T]) Prune() int {
	if d.nonZero == nil {
		return 0
	}
	var dead []int
	for pair := d.nonZero.Oldest(); pair != nil; pair = pair.Next() {
		if d.data[pair.Key] == 0 {
			dead = append(dead, pair.Key)
		}
	}
	for _, off := range dead {
		d.nonZero.Delete(off)
	}
	return len(dead)
}

// Squeeze returns a copy with every unit-length axis removed.
// Non-zero coordinates are carried over with the same axes removed.
func (d *Dense[T]) Squeeze() *Dense[T] {
	shape := d.shape.Squeeze()
	out := &Dense[T]{
		data:    append([]T(nil), d.data...),
		shape:   shape,
		strides: shape.ComputeStrides(),
	}

	if d.NumNonZero() == 0 {
		return out
	}

	keep := make([]int, 0, len(d.shape))
	for axis, dim := range d.shape {
		if dim != 1 {
			keep = append(keep, axis)
		}
	}
	for _, idx := range d.NonZero() {
		c := make([]int, 0, len(shape))
		for _, axis := range keep {
			c = append(c, idx[axis])
		}
		if len(c) == 0 {
			c = append(c, 0)
		}
		out.MarkNonZero(c)
	}
	return out
}

// Clone creates a deep copy of the tensor, including its non-zero set.
func (d *Dense[T]) Clone() *Dense[T] {
	out := newDense[T](d.shape)
	copy(out.data, d.data)
	for _, idx := range d.NonZero() {
		out.MarkNonZero(idx)
	}
	return out
}

// String returns a human-readable representation of the tensor.
func (d *Dense[T]) String() string {
	return fmt.Sprintf("Tensor[%s]%v %s", d.DType(), d.shape, Format(d))
}
