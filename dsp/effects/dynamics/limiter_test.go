package dynamics

import (
	"math"
	"testing"

	"github.com/jaywtf82/cno-voidline-sub002/internal/testutil"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()

	l, err := NewLimiter(testSampleRate)
	if err != nil {
		t.Fatalf("NewLimiter: %v", err)
	}

	return l
}

func TestLimiterValidation(t *testing.T) {
	if _, err := NewLimiter(0); err == nil {
		t.Error("expected error for zero sample rate")
	}

	l := newTestLimiter(t)

	if err := l.SetCeiling(-30); err == nil {
		t.Error("expected error for ceiling below -24 dB")
	}

	if err := l.SetCeiling(1); err == nil {
		t.Error("expected error for ceiling above 0 dB")
	}

	if err := l.SetAttack(0.01); err == nil {
		t.Error("expected error for attack below range")
	}

	if err := l.SetRelease(10000); err == nil {
		t.Error("expected error for release above range")
	}

	if err := l.SetKnee(-1); err == nil {
		t.Error("expected error for negative knee")
	}

	if err := l.SetKnee(30); err == nil {
		t.Error("expected error for knee above 24 dB")
	}

	if err := l.SetLookahead(math.NaN()); err == nil {
		t.Error("expected error for NaN lookahead")
	}
}

func TestLimiterLookaheadClamp(t *testing.T) {
	l := newTestLimiter(t)

	if err := l.SetLookahead(50); err != nil {
		t.Fatalf("SetLookahead: %v", err)
	}

	if got := l.Lookahead(); got != 10 {
		t.Errorf("Lookahead() = %v, want clamp to 10", got)
	}

	if err := l.SetLookahead(-3); err != nil {
		t.Fatalf("SetLookahead: %v", err)
	}

	if got := l.Lookahead(); got != 0 {
		t.Errorf("Lookahead() = %v, want clamp to 0", got)
	}

	if got := l.LatencySamples(); got != 0 {
		t.Errorf("LatencySamples() = %d, want 0", got)
	}
}

// burstSignal is noise under a gating envelope that alternates loud
// overdriven passages with silence, a worst case for limiter pumping.
func burstSignal(length int) []float64 {
	sig := testutil.Noise(7, 2.0, length)
	for i := range sig {
		if (i/480)%3 == 0 {
			sig[i] = 0
		}
	}

	return sig
}

func TestLimiterCeilingInvariant(t *testing.T) {
	sig := burstSignal(9600)

	for _, ceiling := range []float64{-1, -6, -12} {
		for _, attack := range []float64{0.1, 1, 10} {
			for _, release := range []float64{50, 500} {
				for _, lookahead := range []float64{0, 1, 5, 10} {
					l := newTestLimiter(t)

					if err := l.SetCeiling(ceiling); err != nil {
						t.Fatal(err)
					}

					if err := l.SetAttack(attack); err != nil {
						t.Fatal(err)
					}

					if err := l.SetRelease(release); err != nil {
						t.Fatal(err)
					}

					if err := l.SetLookahead(lookahead); err != nil {
						t.Fatal(err)
					}

					limit := math.Pow(10, (ceiling+0.1)/20)

					for i, x := range sig {
						out := l.ProcessSample(x)
						if math.Abs(out) > limit {
							t.Fatalf("ceiling=%v attack=%v release=%v lookahead=%v: sample %d is %v, limit %v",
								ceiling, attack, release, lookahead, i, out, limit)
						}
					}
				}
			}
		}
	}
}

func TestLimiterTransparentBelowCeiling(t *testing.T) {
	l := newTestLimiter(t)

	if err := l.SetCeiling(-1); err != nil {
		t.Fatal(err)
	}

	if err := l.SetLookahead(5); err != nil {
		t.Fatal(err)
	}

	latency := l.LatencySamples()
	if latency != int(math.Ceil(5*0.001*testSampleRate)) {
		t.Fatalf("LatencySamples() = %d", latency)
	}

	in := testutil.Sine(440, testSampleRate, 0.1, 4800)
	out := make([]float64, len(in))

	for i, x := range in {
		out[i] = l.ProcessSample(x)
	}

	// Quiet signal passes at unity gain, shifted by the lookahead delay.
	for i := latency; i < len(out); i++ {
		if math.Abs(out[i]-in[i-latency]) > 1e-12 {
			t.Fatalf("sample %d: out %v, want delayed input %v", i, out[i], in[i-latency])
		}
	}

	if gr := l.GainReductionDB(); gr != 0 {
		t.Errorf("GainReductionDB() = %v, want 0", gr)
	}
}

func TestLimiterSoftKneeCurve(t *testing.T) {
	// Steady-state gain reduction against level, relative to a -6 dB
	// ceiling with a 4 dB knee: zero below the knee, (o + w/2)^2 / 2w
	// inside it, the full overshoot beyond. The endpoints meet the
	// outer segments, so the curve has no corner at the ceiling.
	cases := []struct {
		knee     float64
		offsetDB float64
		wantGR   float64
	}{
		{4, -4, 0},
		{4, -2, 0},
		{4, -1, 0.125},
		{4, 0, 0.5},
		{4, 1, 1.125},
		{4, 2, 2},
		{4, 4, 4},
		{0, -0.5, 0},
		{0, 0.5, 0.5},
	}

	for _, tc := range cases {
		l := newTestLimiter(t)

		if err := l.SetCeiling(-6); err != nil {
			t.Fatal(err)
		}

		if err := l.SetKnee(tc.knee); err != nil {
			t.Fatal(err)
		}

		if err := l.SetAttack(0.1); err != nil {
			t.Fatal(err)
		}

		if err := l.SetLookahead(0); err != nil {
			t.Fatal(err)
		}

		level := math.Pow(10, (-6+tc.offsetDB)/20)
		for range 4800 {
			l.ProcessSample(level)
		}

		if got := l.GainReductionDB(); math.Abs(got-tc.wantGR) > 1e-6 {
			t.Errorf("knee=%v offset=%v dB: GainReductionDB() = %v, want %v",
				tc.knee, tc.offsetDB, got, tc.wantGR)
		}
	}
}

func TestLimiterCeilingHoldsWithWideKnee(t *testing.T) {
	l := newTestLimiter(t)

	if err := l.SetCeiling(-3); err != nil {
		t.Fatal(err)
	}

	if err := l.SetKnee(24); err != nil {
		t.Fatal(err)
	}

	limit := math.Pow(10, (-3+0.1)/20)

	for i, x := range burstSignal(9600) {
		out := l.ProcessSample(x)
		if math.Abs(out) > limit {
			t.Fatalf("sample %d is %v, limit %v", i, out, limit)
		}
	}
}

func TestLimiterGainReductionReleases(t *testing.T) {
	l := newTestLimiter(t)

	if err := l.SetCeiling(-6); err != nil {
		t.Fatal(err)
	}

	if err := l.SetRelease(50); err != nil {
		t.Fatal(err)
	}

	for range 4800 {
		l.ProcessSample(1.0)
	}

	working := l.GainReductionDB()
	if working < 5 {
		t.Fatalf("GainReductionDB() = %v during overdrive, want about 6", working)
	}

	for range 48000 {
		l.ProcessSample(0)
	}

	if gr := l.GainReductionDB(); gr > 0.05 {
		t.Errorf("GainReductionDB() = %v after 1 s silence, want near 0", gr)
	}

	m := l.Metrics()
	if m.MaxReductionDB < 5 {
		t.Errorf("MaxReductionDB = %v, want about 6", m.MaxReductionDB)
	}
}

func TestLimiterReset(t *testing.T) {
	l := newTestLimiter(t)

	for range 2400 {
		l.ProcessSample(1.5)
	}

	l.Reset()

	if gr := l.GainReductionDB(); gr != 0 {
		t.Errorf("GainReductionDB() after Reset = %v, want 0", gr)
	}

	m := l.Metrics()
	if m.MaxReductionDB != 0 {
		t.Errorf("MaxReductionDB after Reset = %v, want 0", m.MaxReductionDB)
	}

	// First output after reset comes from a cleared delay line.
	if out := l.ProcessSample(0.5); out != 0 {
		t.Errorf("first output after Reset = %v, want 0 from empty delay", out)
	}
}
