package testutil

import (
	"math"
	"testing"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
)

// RequireNear fails t if got differs from want by more than eps.
func RequireNear(t *testing.T, label string, got, want, eps float64) {
	t.Helper()

	if diff := math.Abs(got - want); diff > eps {
		t.Fatalf("%s: got %v, want %v (diff %v > eps %v)", label, got, want, diff, eps)
	}
}

// RequireSliceNear fails t if got and want differ in length or if any
// element pair exceeds eps (absolute tolerance).
func RequireSliceNear(t *testing.T, got, want []float64, eps float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if diff := math.Abs(got[i] - want[i]); diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()

	for i, v := range data {
		if !core.IsFinite(v) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// MaxAbsDiff returns the maximum absolute difference between two
// equal-length slices.
func MaxAbsDiff(a, b []float64) float64 {
	maxDiff := 0.0

	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > maxDiff {
			maxDiff = d
		}
	}

	return maxDiff
}
