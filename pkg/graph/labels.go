package graph

import "math"

// edgeLabels stores one relation type index per CSR edge.
type edgeLabels interface {
	At(i int) int
	Len() int
	Width() int
}

type packedLabels[T uint8 | uint16 | uint32 | uint64] []T

func (p packedLabels[T]) At(i int) int { return int(p[i]) }
func (p packedLabels[T]) Len() int     { return len(p) }

func (p packedLabels[T]) Width() int {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 8
	case uint16:
		return 16
	case uint32:
		return 32
	}
	return 64
}

func pack[T uint8 | uint16 | uint32 | uint64](values []int) packedLabels[T] {
	out := make(packedLabels[T], len(values))
	for i, v := range values {
		out[i] = T(v)
	}
	return out
}

// newEdgeLabels packs values into the narrowest unsigned width able to hold
// numTypes distinct relation type indices.
func newEdgeLabels(values []int, numTypes int) edgeLabels {
	switch {
	case numTypes <= math.MaxUint8+1:
		return pack[uint8](values)
	case numTypes <= math.MaxUint16+1:
		return pack[uint16](values)
	case uint64(numTypes) <= math.MaxUint32+1:
		return pack[uint32](values)
	}
	return pack[uint64](values)
}
