// Package tensor provides dense, row-major numeric tensors used both as values
// in the computational graph and as sparse-tracked derivative tensors.
package tensor

// Numeric is a constraint for supported tensor element types.
// It uses Go generics to ensure compile-time type safety.
type Numeric interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Int DataType = iota
	Int32
	Int64
	Float32
	Float64
)

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Int:
		return "int"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the data type is a floating-point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T Numeric]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case int:
		return Int
	case int32:
		return Int32
	case int64:
		return Int64
	case float32:
		return Float32
	case float64:
		return Float64
	}

	// Named types fall back to their kind.
	half := 0.5
	if T(half) == 0 {
		return Int64
	}
	return Float64
}
