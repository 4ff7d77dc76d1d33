// Package index provides coordinate-space helpers shared by tensors, kernels
// and the differentiation engine.
//
// A coordinate is a []int with one entry per axis. Shapes are []int of
// positive extents. All enumeration is row-major: the last axis varies fastest.
package index

import (
	"strconv"
	"strings"
)

// Space enumerates the full coordinate set of a shape and memoizes the result.
//
// A Space is owned by whoever creates it (normally one differentiation run)
// and is not safe for concurrent use. The slices it returns are shared between
// callers and must be treated as read-only.
type Space struct {
	cache map[string][][]int
	hits  int
}

// NewSpace creates an empty coordinate cache.
func NewSpace() *Space {
	return &Space{cache: make(map[string][][]int)}
}

// Enumerate returns every coordinate inside shape, in row-major order.
// An empty shape has no coordinates.
func (s *Space) Enumerate(shape []int) [][]int {
	key := Key(shape)
	if idxs, ok := s.cache[key]; ok {
		s.hits++
		return idxs
	}

	idxs := enumerate(shape)
	s.cache[key] = idxs
	return idxs
}

// Len returns the number of distinct shapes cached so far.
func (s *Space) Len() int {
	return len(s.cache)
}

// Hits returns how many Enumerate calls were served from the cache.
func (s *Space) Hits() int {
	return s.hits
}

func enumerate(shape []int) [][]int {
	if len(shape) == 0 {
		return nil
	}

	total := 1
	for _, d := range shape {
		total *= d
	}
	if total <= 0 {
		return nil
	}

	idxs := make([][]int, 0, total)
	Each(shape, func(idx []int) {
		c := make([]int, len(idx))
		copy(c, idx)
		idxs = append(idxs, c)
	})
	return idxs
}

// Each calls fn for every coordinate inside shape, in row-major order.
// The slice passed to fn is reused between calls; copy it to retain it.
func Each(shape []int, fn func(idx []int)) {
	if len(shape) == 0 {
		return
	}
	for _, d := range shape {
		if d <= 0 {
			return
		}
	}

	idx := make([]int, len(shape))
	for {
		fn(idx)

		axis := len(shape) - 1
		for axis >= 0 {
			idx[axis]++
			if idx[axis] < shape[axis] {
				break
			}
			idx[axis] = 0
			axis--
		}
		if axis < 0 {
			return
		}
	}
}

// Concat returns a new slice holding a followed by b.
// It is used both for shapes and for coordinates.
func Concat(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Strides computes row-major strides for shape.
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	if len(shape) == 0 {
		return strides
	}

	strides[len(shape)-1] = 1
	for i := len(shape) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * shape[i+1]
	}
	return strides
}

// Offset converts a coordinate into a flat row-major offset using strides.
// Only the first len(strides) entries of idx are used.
func Offset(idx, strides []int) int {
	off := 0
	for i, s := range strides {
		off += idx[i] * s
	}
	return off
}

// Key renders a shape or coordinate as a stable map key, e.g. "2x3x4".
func Key(shape []int) string {
	var sb strings.Builder
	for i, d := range shape {
		if i > 0 {
			sb.WriteByte('x')
		}
		sb.WriteString(strconv.Itoa(d))
	}
	return sb.String()
}
