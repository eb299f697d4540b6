package testutil

import (
	"math"
	"testing"
)

func TestSine(t *testing.T) {
	s := Sine(1000, 48000, 1.0, 48)
	if len(s) != 48 {
		t.Fatalf("len = %d, want 48", len(s))
	}

	if math.Abs(s[0]) > 1e-15 {
		t.Fatalf("s[0] = %v, want 0", s[0])
	}

	for i, v := range s {
		if v < -1 || v > 1 {
			t.Fatalf("s[%d] = %v out of range", i, v)
		}
	}
}

func TestStereoSinePhase(t *testing.T) {
	l, r := StereoSine(440, 48000, 1.0, 0, 128)
	if MaxAbsDiff(l, r) > 1e-15 {
		t.Fatal("in-phase stereo channels differ")
	}

	l, r = StereoSine(440, 48000, 1.0, math.Pi, 128)
	for i := range l {
		if math.Abs(l[i]+r[i]) > 1e-12 {
			t.Fatalf("anti-phase channels do not cancel at index %d", i)
		}
	}
}

func TestNoiseDeterministic(t *testing.T) {
	a := Noise(42, 1.0, 64)
	b := Noise(42, 1.0, 64)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("noise not deterministic at index %d", i)
		}
	}

	c := Noise(43, 1.0, 64)
	if MaxAbsDiff(a, c) == 0 {
		t.Fatal("different seeds produced identical noise")
	}
}

func TestImpulse(t *testing.T) {
	imp := Impulse(8, 3)

	for i, v := range imp {
		want := 0.0
		if i == 3 {
			want = 1
		}

		if v != want {
			t.Fatalf("imp[%d] = %v, want %v", i, v, want)
		}
	}

	for i, v := range Impulse(4, 10) {
		if v != 0 {
			t.Fatalf("imp[%d] = %v, want all zeros for out-of-bounds pos", i, v)
		}
	}
}

func TestDCAndSilence(t *testing.T) {
	for i, v := range DC(0.5, 4) {
		if v != 0.5 {
			t.Fatalf("DC[%d] = %v, want 0.5", i, v)
		}
	}

	for i, v := range Silence(4) {
		if v != 0 {
			t.Fatalf("Silence[%d] = %v, want 0", i, v)
		}
	}
}
