package tensor

import (
	"reflect"

	"github.com/pkg/errors"
)

// FromNested creates a tensor from arbitrarily nested slices or arrays, e.g.
// [][]float64{{1, 2}, {3, 4}}. The shape is inferred from the nesting depth and
// extents; ragged input is rejected with ErrInvalidShape.
//
// Leaf values must be numeric and are converted to T.
func FromNested[T Numeric](nested any) (*Dense[T], error) {
	v := reflect.ValueOf(nested)
	shape, err := nestedShape(v)
	if err != nil {
		return nil, err
	}

	data := make([]T, 0, shape.NumElements())
	if err := flattenNested(v, shape, &data); err != nil {
		return nil, err
	}
	return FromSlice(data, shape)
}

func nestedShape(v reflect.Value) (Shape, error) {
	var shape Shape
	for v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if v.Len() == 0 {
			return nil, errors.Wrapf(ErrInvalidShape, "empty nesting at depth %d", len(shape))
		}
		shape = append(shape, v.Len())
		v = v.Index(0)
		for v.Kind() == reflect.Interface {
			v = v.Elem()
		}
	}
	if len(shape) == 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "expected a slice, got %s", v.Kind())
	}
	return shape, nil
}

func flattenNested[T Numeric](v reflect.Value, shape Shape, out *[]T) error {
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}

	if len(shape) == 0 {
		switch {
		case v.CanInt():
			*out = append(*out, T(v.Int()))
		case v.CanUint():
			*out = append(*out, T(v.Uint()))
		case v.CanFloat():
			*out = append(*out, T(v.Float()))
		default:
			return errors.Wrapf(ErrInvalidShape, "non-numeric leaf of kind %s", v.Kind())
		}
		return nil
	}

	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return errors.Wrapf(ErrInvalidShape, "ragged nesting: expected %d more axes", len(shape))
	}
	if v.Len() != shape[0] {
		return errors.Wrapf(ErrInvalidShape, "ragged nesting: extent %d, expected %d", v.Len(), shape[0])
	}
	for i := 0; i < v.Len(); i++ {
		if err := flattenNested(v.Index(i), shape[1:], out); err != nil {
			return err
		}
	}
	return nil
}
