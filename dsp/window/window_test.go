package window

import (
	"math"
	"testing"
)

func TestGenerateInvalidLength(t *testing.T) {
	if Generate(TypeHann, 0) != nil || Generate(TypeHann, -4) != nil {
		t.Error("non-positive length must return nil")
	}
}

func TestSymmetricWindows(t *testing.T) {
	types := []Type{TypeHann, TypeHamming, TypeBlackman, TypeBlackmanHarris, TypeKaiser, TypeTukey}

	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			w := Generate(typ, 65, WithAlpha(0.5))
			if len(w) != 65 {
				t.Fatalf("length %d", len(w))
			}

			for i := range w {
				if w[i] < 0 || w[i] > 1+1e-12 {
					t.Fatalf("coefficient %d out of [0,1]: %v", i, w[i])
				}

				j := len(w) - 1 - i
				if math.Abs(w[i]-w[j]) > 1e-12 {
					t.Fatalf("asymmetry at %d: %v vs %v", i, w[i], w[j])
				}
			}

			// Symmetric windows peak at the center.
			if math.Abs(w[32]-1) > 1e-9 && typ != TypeHamming && typ != TypeBlackmanHarris {
				t.Errorf("center value %v, want 1", w[32])
			}
		})
	}
}

func TestHannEndpoints(t *testing.T) {
	w := Generate(TypeHann, 32)
	if w[0] != 0 || math.Abs(w[len(w)-1]) > 1e-12 {
		t.Errorf("symmetric Hann endpoints: %v, %v", w[0], w[len(w)-1])
	}

	p := Generate(TypeHann, 32, WithPeriodic())
	if p[0] != 0 {
		t.Errorf("periodic Hann start: %v", p[0])
	}

	// Periodic form omits the final zero sample.
	if p[len(p)-1] == 0 {
		t.Error("periodic Hann must not end at zero")
	}
}

func TestRectangular(t *testing.T) {
	w := Generate(TypeRectangular, 16)
	for i, v := range w {
		if v != 1 {
			t.Fatalf("rectangular[%d] = %v", i, v)
		}
	}
}

func TestTukeyDegenerateCases(t *testing.T) {
	// alpha=0 degenerates to rectangular.
	w := Generate(TypeTukey, 33, WithAlpha(0))
	for i, v := range w {
		if v != 1 {
			t.Fatalf("tukey(0)[%d] = %v, want 1", i, v)
		}
	}

	// alpha=1 degenerates to Hann.
	tk := Generate(TypeTukey, 33, WithAlpha(1))
	hn := Generate(TypeHann, 33)

	for i := range tk {
		if math.Abs(tk[i]-hn[i]) > 1e-9 {
			t.Fatalf("tukey(1)[%d] = %v, hann = %v", i, tk[i], hn[i])
		}
	}
}

func TestKaiserValidation(t *testing.T) {
	if _, err := Kaiser(0, 5); err == nil {
		t.Error("expected size validation error")
	}

	if _, err := Kaiser(64, -1); err == nil {
		t.Error("expected beta validation error")
	}

	w, err := Kaiser(64, 9)
	if err != nil || len(w) != 64 {
		t.Fatalf("Kaiser(64, 9): %v, len %d", err, len(w))
	}

	// Higher beta concentrates energy: edges drop.
	low, _ := Kaiser(64, 2)
	if w[0] >= low[0] {
		t.Errorf("beta=9 edge %v not below beta=2 edge %v", w[0], low[0])
	}
}

func TestTukeyValidation(t *testing.T) {
	if _, err := Tukey(64, 1.5); err == nil {
		t.Error("expected alpha validation error")
	}

	if _, err := Tukey(64, 0.5); err != nil {
		t.Errorf("valid Tukey: %v", err)
	}
}

func TestCoherentGain(t *testing.T) {
	if g := CoherentGain(nil); g != 0 {
		t.Errorf("empty: %v", g)
	}

	if g := CoherentGain(Generate(TypeRectangular, 10)); g != 1 {
		t.Errorf("rectangular: %v", g)
	}

	// Hann coherent gain approaches 0.5 for long windows.
	if g := CoherentGain(Generate(TypeHann, 4096, WithPeriodic())); math.Abs(g-0.5) > 1e-3 {
		t.Errorf("hann: %v, want 0.5", g)
	}
}

func TestApplyCoefficientsInPlace(t *testing.T) {
	samples := []float64{1, 2, 3, 4}
	coeffs := []float64{0.5, 0.5, 0.5, 0.5}

	if err := ApplyCoefficientsInPlace(samples, coeffs); err != nil {
		t.Fatal(err)
	}

	want := []float64{0.5, 1, 1.5, 2}
	for i := range samples {
		if samples[i] != want[i] {
			t.Fatalf("samples[%d] = %v, want %v", i, samples[i], want[i])
		}
	}

	if err := ApplyCoefficientsInPlace(samples, coeffs[:2]); err == nil {
		t.Error("expected length mismatch error")
	}
}
