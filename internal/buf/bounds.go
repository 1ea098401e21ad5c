// Package buf holds overflow-checked size arithmetic and bounds-checked slicing for
// offsets expressed as uint64.
package buf

import "math/bits"

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow.
func AddOverflowSafe(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow.
func MulOverflowSafe(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// DivCeil returns n/d rounded up. It does not overflow for any n.
func DivCeil(n, d uint64) uint64 {
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
// ok is false when the result does not fit in a uint64.
//
//	AlignUp(1, 4096)    = 4096
//	AlignUp(4096, 4096) = 4096
//	AlignUp(4097, 4096) = 8192
func AlignUp(n, align uint64) (uint64, bool) {
	mask := align - 1
	sum, ok := AddOverflowSafe(n, mask)
	if !ok {
		return 0, false
	}
	return sum &^ mask, true
}

// AlignDown rounds n down to a multiple of align, which must be a power of two.
func AlignDown(n, align uint64) uint64 {
	return n &^ (align - 1)
}

// Slice returns the sub-slice [off:off+n] with its capacity clipped to n, if it fits
// within len(b).
func Slice(b []byte, off, n uint64) ([]byte, bool) {
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > uint64(len(b)) {
		return nil, false
	}
	return b[off:end:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n uint64) bool {
	_, ok := Slice(b, off, n)
	return ok
}
