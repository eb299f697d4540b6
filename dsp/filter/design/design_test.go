package design

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/biquad"
)

// sectionResponse evaluates H(e^jw) of a single normalized section.
func sectionResponse(c biquad.Coefficients, freq, sampleRate float64) complex128 {
	w := 2 * math.Pi * freq / sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1

	num := complex(c.B0, 0) + complex(c.B1, 0)*z1 + complex(c.B2, 0)*z2
	den := complex(1, 0) + complex(c.A1, 0)*z1 + complex(c.A2, 0)*z2

	return num / den
}

// cascadeMagnitudeDB evaluates the cascade magnitude response in dB.
func cascadeMagnitudeDB(secs []biquad.Coefficients, freq, sampleRate float64) float64 {
	h := complex(1, 0)
	for _, c := range secs {
		h *= sectionResponse(c, freq, sampleRate)
	}

	return 20 * math.Log10(cmplx.Abs(h))
}

func magnitudeDB(c biquad.Coefficients, freq, sampleRate float64) float64 {
	return cascadeMagnitudeDB([]biquad.Coefficients{c}, freq, sampleRate)
}

func TestLowpassResponse(t *testing.T) {
	sr := 48000.0
	c := Lowpass(1000, defaultQ, sr)

	if db := magnitudeDB(c, 10, sr); math.Abs(db) > 0.01 {
		t.Errorf("lowpass passband at 10 Hz: %v dB", db)
	}

	if db := magnitudeDB(c, 1000, sr); math.Abs(db+3.01) > 0.1 {
		t.Errorf("lowpass cutoff: %v dB, want -3.01", db)
	}

	if db := magnitudeDB(c, 16000, sr); db > -40 {
		t.Errorf("lowpass stopband at 16 kHz: %v dB", db)
	}
}

func TestHighpassResponse(t *testing.T) {
	sr := 48000.0
	c := Highpass(1000, defaultQ, sr)

	if db := magnitudeDB(c, 20000, sr); math.Abs(db) > 0.05 {
		t.Errorf("highpass passband at 20 kHz: %v dB", db)
	}

	if db := magnitudeDB(c, 1000, sr); math.Abs(db+3.01) > 0.1 {
		t.Errorf("highpass cutoff: %v dB, want -3.01", db)
	}

	if db := magnitudeDB(c, 30, sr); db > -50 {
		t.Errorf("highpass stopband at 30 Hz: %v dB", db)
	}
}

func TestPeakGainAtCenter(t *testing.T) {
	sr := 48000.0

	for _, gain := range []float64{-12, -6, 0, 6, 12} {
		c := Peak(2000, gain, 1.0, sr)
		if db := magnitudeDB(c, 2000, sr); math.Abs(db-gain) > 0.01 {
			t.Errorf("peak %v dB at center: got %v dB", gain, db)
		}
	}
}

func TestShelfGains(t *testing.T) {
	sr := 48000.0

	ls := LowShelf(200, 6, defaultQ, sr)
	if db := magnitudeDB(ls, 10, sr); math.Abs(db-6) > 0.1 {
		t.Errorf("low shelf DC gain: %v dB, want 6", db)
	}

	if db := magnitudeDB(ls, 20000, sr); math.Abs(db) > 0.1 {
		t.Errorf("low shelf HF gain: %v dB, want 0", db)
	}

	hs := HighShelf(5000, -6, defaultQ, sr)
	if db := magnitudeDB(hs, 10, sr); math.Abs(db) > 0.1 {
		t.Errorf("high shelf DC gain: %v dB, want 0", db)
	}

	if db := magnitudeDB(hs, 23000, sr); math.Abs(db+6) > 0.1 {
		t.Errorf("high shelf HF gain: %v dB, want -6", db)
	}
}

func TestNotchAndAllpass(t *testing.T) {
	sr := 48000.0

	n := Notch(1000, 5, sr)
	if db := magnitudeDB(n, 1000, sr); db > -40 {
		t.Errorf("notch center rejection: %v dB", db)
	}

	ap := Allpass(1000, defaultQ, sr)
	for _, f := range []float64{100, 1000, 10000} {
		if db := magnitudeDB(ap, f, sr); math.Abs(db) > 0.01 {
			t.Errorf("allpass magnitude at %v Hz: %v dB", f, db)
		}
	}
}

func TestInvalidParametersYieldZero(t *testing.T) {
	zero := biquad.Coefficients{}

	tests := []struct {
		name string
		got  biquad.Coefficients
	}{
		{"negative freq", Lowpass(-1, 1, 48000)},
		{"zero freq", Highpass(0, 1, 48000)},
		{"at nyquist", Lowpass(24000, 1, 48000)},
		{"above nyquist", Peak(30000, 3, 1, 48000)},
		{"zero sample rate", LowShelf(100, 3, 1, 0)},
		{"nan freq", Highpass(math.NaN(), 1, 48000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != zero {
				t.Errorf("got %+v, want zero coefficients", tt.got)
			}
		})
	}
}

func TestNonPositiveQFallsBack(t *testing.T) {
	want := Lowpass(1000, defaultQ, 48000)

	for _, q := range []float64{0, -1, math.NaN()} {
		if got := Lowpass(1000, q, 48000); got != want {
			t.Errorf("q=%v: got %+v, want default-Q design", q, got)
		}
	}
}

func TestFilterStabilityImpulse(t *testing.T) {
	// Impulse responses must stay bounded and decay for any valid design.
	sr := 48000.0

	designs := map[string]biquad.Coefficients{
		"lowpass":   Lowpass(100, 10, sr),
		"highpass":  Highpass(18000, 8, sr),
		"peak":      Peak(1000, 18, 0.5, sr),
		"lowshelf":  LowShelf(50, 12, 2, sr),
		"highshelf": HighShelf(12000, -18, 2, sr),
		"bandpass":  Bandpass(4000, 20, sr),
	}

	for name, c := range designs {
		t.Run(name, func(t *testing.T) {
			s := biquad.NewSection(c)

			var tail float64

			for i := 0; i < 10000; i++ {
				x := 0.0
				if i == 0 {
					x = 1
				}

				y := s.ProcessSample(x)
				if math.IsNaN(y) || math.Abs(y) > 100 {
					t.Fatalf("divergent output %v at sample %d", y, i)
				}

				if i >= 9000 {
					tail = math.Max(tail, math.Abs(y))
				}
			}

			if tail > 1e-3 {
				t.Errorf("impulse response not decaying: tail max %v", tail)
			}
		})
	}
}

func TestButterworthCascade(t *testing.T) {
	sr := 48000.0

	for _, order := range []int{1, 2, 3, 4, 5, 8} {
		lp := ButterworthLP(1000, order, sr)
		if want := (order + 1) / 2; len(lp) != want {
			t.Fatalf("order %d: %d sections, want %d", order, len(lp), want)
		}

		if db := cascadeMagnitudeDB(lp, 1000, sr); math.Abs(db+3.01) > 0.1 {
			t.Errorf("order %d cutoff: %v dB, want -3.01", order, db)
		}

		// Stopband slope: 6 dB/octave per order.
		oct := cascadeMagnitudeDB(lp, 4000, sr) - cascadeMagnitudeDB(lp, 8000, sr)
		if want := 6.02 * float64(order); math.Abs(oct-want) > 1.0 {
			t.Errorf("order %d slope: %v dB/octave, want %v", order, oct, want)
		}
	}

	if ButterworthLP(1000, 0, sr) != nil || ButterworthHP(1000, -2, sr) != nil {
		t.Error("non-positive order must return nil")
	}
}

func TestLinkwitzRileySummation(t *testing.T) {
	sr := 48000.0
	freq := 1500.0

	for _, order := range []int{2, 4, 6, 8} {
		lp := LinkwitzRileyLP(freq, order, sr)

		var hp []biquad.Coefficients
		if LinkwitzRileyNeedsHPInvert(order) {
			hp = LinkwitzRileyHPInverted(freq, order, sr)
		} else {
			hp = LinkwitzRileyHP(freq, order, sr)
		}

		if lp == nil || hp == nil {
			t.Fatalf("order %d: nil cascade", order)
		}

		// Each side is -6.02 dB at the crossover.
		if db := cascadeMagnitudeDB(lp, freq, sr); math.Abs(db+6.02) > 0.1 {
			t.Errorf("LR%d LP at crossover: %v dB, want -6.02", order, db)
		}

		// LP + HP must be allpass: check the complex sum across the band.
		for _, f := range []float64{100, 750, 1500, 3000, 12000} {
			h := complex(0, 0)

			hlp := complex(1, 0)
			for _, c := range lp {
				hlp *= sectionResponse(c, f, sr)
			}

			hhp := complex(1, 0)
			for _, c := range hp {
				hhp *= sectionResponse(c, f, sr)
			}

			h = hlp + hhp
			if db := 20 * math.Log10(cmplx.Abs(h)); math.Abs(db) > 0.1 {
				t.Errorf("LR%d sum at %v Hz: %v dB, want 0", order, f, db)
			}
		}
	}

	if LinkwitzRileyLP(1500, 3, sr) != nil {
		t.Error("odd order must return nil")
	}
}

func TestKWeighting48k(t *testing.T) {
	// Published ITU-R BS.1770-4 coefficient table for 48 kHz.
	pre := KWeightingPre(48000)

	wantPre := biquad.Coefficients{
		B0: 1.53512485958697,
		B1: -2.69169618940638,
		B2: 1.19839281085285,
		A1: -1.69065929318241,
		A2: 0.73248077421585,
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"pre.B0", pre.B0, wantPre.B0},
		{"pre.B1", pre.B1, wantPre.B1},
		{"pre.B2", pre.B2, wantPre.B2},
		{"pre.A1", pre.A1, wantPre.A1},
		{"pre.A2", pre.A2, wantPre.A2},
	}

	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-6 {
			t.Errorf("%s = %.14f, want %.14f", c.name, c.got, c.want)
		}
	}

	rlb := KWeightingRLB(48000)

	// The RLB numerator matches the published table row exactly: the
	// standard leaves b = [1, -2, 1] unnormalized.
	if rlb.B0 != 1 || rlb.B1 != -2 || rlb.B2 != 1 {
		t.Errorf("RLB numerator: b=[%v %v %v], want [1 -2 1]", rlb.B0, rlb.B1, rlb.B2)
	}

	if math.Abs(rlb.A1 - -1.99004745483398) > 1e-4 {
		t.Errorf("rlb.A1 = %v, want ≈ -1.99004745483398", rlb.A1)
	}

	if math.Abs(rlb.A2-0.99007225036621) > 1e-4 {
		t.Errorf("rlb.A2 = %v, want ≈ 0.99007225036621", rlb.A2)
	}
}

func TestKWeightingResponseShape(t *testing.T) {
	sr := 48000.0
	chain := KWeighting(sr)

	// Response relative to 1 kHz: ≈ 0 dB at 1 kHz (by construction close),
	// ≈ +4 dB at 10 kHz, strongly attenuated at 20 Hz.
	mag := func(f float64) float64 {
		db := cascadeMagnitudeDB([]biquad.Coefficients{
			chain.Section(0).Coefficients,
			chain.Section(1).Coefficients,
		}, f, sr)

		return db
	}

	ref := mag(1000)
	if math.Abs(ref) > 0.15 {
		t.Errorf("K-weighting at 1 kHz: %v dB, want ≈ 0", ref)
	}

	if hf := mag(10000) - ref; math.Abs(hf-4.0) > 0.5 {
		t.Errorf("K-weighting at 10 kHz: %+v dB relative, want ≈ +4", hf)
	}

	if lf := mag(20) - ref; lf > -18 {
		t.Errorf("K-weighting at 20 Hz: %+v dB relative, want below -18", lf)
	}
}

func TestKWeightingInvalidSampleRate(t *testing.T) {
	zero := biquad.Coefficients{}
	if KWeightingPre(0) != zero || KWeightingRLB(-48000) != zero {
		t.Error("invalid sample rate must yield zero coefficients")
	}
}
