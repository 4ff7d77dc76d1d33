package tensor

import (
	"strconv"
	"strings"
)

// Format renders the tensor values in nested-bracket form, e.g. [[1, 2], [3, 4]].
func Format[T Numeric](d *Dense[T]) string {
	var sb strings.Builder
	formatAxis(&sb, d, 0, 0)
	return sb.String()
}

func formatAxis[T Numeric](sb *strings.Builder, d *Dense[T], axis, offset int) {
	sb.WriteByte('[')
	for i := 0; i < d.shape[axis]; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		off := offset + i*d.strides[axis]
		if axis == len(d.shape)-1 {
			sb.WriteString(FormatValue(d.data[off]))
			continue
		}
		formatAxis(sb, d, axis+1, off)
	}
	sb.WriteByte(']')
}

// FormatValue renders a single element in its shortest exact form.
func FormatValue[T Numeric](v T) string {
	switch x := any(v).(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}

	f := float64(v)
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
