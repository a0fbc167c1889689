// Package xmath contains small generic numeric helpers.
package xmath

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

func Clamp[T Number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// AlignDown rounds v down to a multiple of alignment (alignment must be positive).
func AlignDown[T constraints.Integer](v, alignment T) T {
	return v / alignment * alignment
}

// AlignUp rounds v up to a multiple of alignment (alignment must be positive).
func AlignUp[T constraints.Integer](v, alignment T) T {
	return (v + alignment - 1) / alignment * alignment
}

// ScaleLargeValue computes value*multiplier/divisor without overflowing
// intermediate products for the ranges used with microsecond timestamps.
func ScaleLargeValue(value, multiplier, divisor int64) int64 {
	if divisor >= multiplier && divisor%multiplier == 0 {
		return value / (divisor / multiplier)
	}
	if divisor < multiplier && multiplier%divisor == 0 {
		return value * (multiplier / divisor)
	}
	q, r := value/divisor, value%divisor
	return q*multiplier + r*multiplier/divisor
}
