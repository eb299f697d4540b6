package signal

import (
	"math"
	"testing"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
)

func TestSine(t *testing.T) {
	g := NewGenerator([]core.ProcessorOption{core.WithSampleRate(48000)})

	out, err := g.Sine(1000, 0.5, 48000)
	if err != nil {
		t.Fatal(err)
	}

	if len(out) != 48000 {
		t.Fatalf("len = %d, want 48000", len(out))
	}

	var peak float64
	for _, v := range out {
		peak = max(peak, math.Abs(v))
	}

	if math.Abs(peak-0.5) > 1e-6 {
		t.Errorf("peak = %v, want 0.5", peak)
	}

	// Quarter period of 1 kHz at 48 kHz is 12 samples.
	if math.Abs(out[12]-0.5) > 1e-9 {
		t.Errorf("quarter-period sample = %v, want 0.5", out[12])
	}
}

func TestSineErrors(t *testing.T) {
	g := NewGenerator([]core.ProcessorOption{core.WithSampleRate(48000)})

	if _, err := g.Sine(1000, 0.5, 0); err == nil {
		t.Error("expected error for zero samples")
	}
}

func TestWhiteNoiseDeterministic(t *testing.T) {
	opts := []core.ProcessorOption{core.WithSampleRate(48000)}

	a, err := NewGenerator(opts, WithSeed(7)).WhiteNoise(0.8, 1000)
	if err != nil {
		t.Fatal(err)
	}

	b, err := NewGenerator(opts, WithSeed(7)).WhiteNoise(0.8, 1000)
	if err != nil {
		t.Fatal(err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at sample %d", i)
		}

		if math.Abs(a[i]) > 0.8 {
			t.Fatalf("sample %v exceeds amplitude bound", a[i])
		}
	}

	if _, err := NewGenerator(opts).WhiteNoise(-1, 10); err == nil {
		t.Error("expected error for negative amplitude")
	}
}

func TestBurstGating(t *testing.T) {
	g := NewGenerator([]core.ProcessorOption{core.WithSampleRate(48000)})

	out, err := g.Burst(1000, 1.0, 100, 400)
	if err != nil {
		t.Fatal(err)
	}

	for i := 100; i < 200; i++ {
		if out[i] != 0 {
			t.Fatalf("gated sample %d = %v, want 0", i, out[i])
		}
	}

	var on float64
	for i := range 100 {
		on = max(on, math.Abs(out[i]))
	}

	if on < 0.9 {
		t.Errorf("on-phase peak = %v, want near 1", on)
	}

	if _, err := g.Burst(1000, 1, 0, 100); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestNormalize(t *testing.T) {
	out, err := Normalize([]float64{0.1, -0.4, 0.2}, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{0.25, -1.0, 0.5}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}

	zero, err := Normalize([]float64{0, 0}, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	if zero[0] != 0 || zero[1] != 0 {
		t.Error("all-zero input should normalize to zeros")
	}

	if _, err := Normalize(nil, 1.0); err == nil {
		t.Error("expected error for empty input")
	}

	if _, err := Normalize([]float64{1}, -1); err == nil {
		t.Error("expected error for negative target peak")
	}
}
