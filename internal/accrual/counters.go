package accrual

import (
	"fmt"
	"math"
	"math/bits"
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("add %d + %d: %w", a, b, ErrOverflow)
	}
	return sum, nil
}

// Sub returns a-b or ErrOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("sub %d - %d: %w", a, b, ErrOverflow)
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("mul %d * %d: %w", a, b, ErrOverflow)
	}
	return lo, nil
}

// SaturatingAdd clamps at math.MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// SaturatingSub clamps at zero.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
