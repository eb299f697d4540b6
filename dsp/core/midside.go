package core

import "math"

// invSqrt2 keeps the mid/side transform energy-preserving, so that
// encode followed by decode is the identity.
var invSqrt2 = 1.0 / math.Sqrt2

// MidSideEncode converts a left/right sample pair to mid/side:
// mid = (l+r)/sqrt2, side = (l-r)/sqrt2.
func MidSideEncode(left, right float64) (mid, side float64) {
	return (left + right) * invSqrt2, (left - right) * invSqrt2
}

// MidSideDecode converts a mid/side sample pair back to left/right.
func MidSideDecode(mid, side float64) (left, right float64) {
	return (mid + side) * invSqrt2, (mid - side) * invSqrt2
}

// MidSideEncodeBlock encodes left/right blocks in place.
// Both slices must have the same length.
func MidSideEncodeBlock(left, right []float64) {
	if len(left) == 0 {
		return
	}

	_ = right[len(left)-1]
	for i := range left {
		left[i], right[i] = MidSideEncode(left[i], right[i])
	}
}

// MidSideDecodeBlock decodes mid/side blocks in place.
// Both slices must have the same length.
func MidSideDecodeBlock(mid, side []float64) {
	if len(mid) == 0 {
		return
	}

	_ = side[len(mid)-1]
	for i := range mid {
		mid[i], side[i] = MidSideDecode(mid[i], side[i])
	}
}
