package design

import (
	"math"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/biquad"
)

// ITU-R BS.1770-4 K-weighting analog prototype constants. These are the
// standardized values that reproduce the published 48 kHz coefficient
// tables exactly when run through the bilinear formulas below. Do not
// substitute generic shelf formulas with a nominal 1.5 kHz / 4 dB / 0.707 Q
// parameterization: the resulting response deviates from the standard.
const (
	kPreFilterFreq = 1681.974450955533
	kPreFilterGain = 3.999843853973347
	kPreFilterQ    = 0.7071752369554196

	// Exponent relating the band gain to the shelf gain in the
	// standard's prototype transfer function.
	kPreFilterVBExp = 0.4996667741545416

	kRLBFreq = 38.13547087602444
	kRLBQ    = 0.5003270373238773
)

// KWeightingPre designs the BS.1770-4 pre-filter: a high-frequency shelf
// modelling the acoustic effect of the head.
func KWeightingPre(sampleRate float64) biquad.Coefficients {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return biquad.Coefficients{}
	}

	k := math.Tan(math.Pi * kPreFilterFreq / sampleRate)
	vh := math.Pow(10, kPreFilterGain/20)
	vb := math.Pow(vh, kPreFilterVBExp)

	a0 := 1 + k/kPreFilterQ + k*k

	return biquad.Coefficients{
		B0: (vh + vb*k/kPreFilterQ + k*k) / a0,
		B1: 2 * (k*k - vh) / a0,
		B2: (vh - vb*k/kPreFilterQ + k*k) / a0,
		A1: 2 * (k*k - 1) / a0,
		A2: (1 - k/kPreFilterQ + k*k) / a0,
	}
}

// KWeightingRLB designs the BS.1770-4 RLB weighting curve: a second-order
// highpass removing low-frequency content before loudness summation.
func KWeightingRLB(sampleRate float64) biquad.Coefficients {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return biquad.Coefficients{}
	}

	k := math.Tan(math.Pi * kRLBFreq / sampleRate)

	a0 := 1 + k/kRLBQ + k*k

	// The standard publishes the numerator unnormalized: b = {1, -2, 1}
	// with only the denominator divided through by a0. Keeping that
	// convention reproduces the 48 kHz table row bit for bit, including
	// its slight above-unity high-frequency gain.
	return biquad.Coefficients{
		B0: 1,
		B1: -2,
		B2: 1,
		A1: 2 * (k*k - 1) / a0,
		A2: (1 - k/kRLBQ + k*k) / a0,
	}
}

// KWeighting returns the full BS.1770-4 K-weighting chain: pre-filter shelf
// followed by the RLB highpass.
func KWeighting(sampleRate float64) *biquad.Chain {
	return biquad.NewChain([]biquad.Coefficients{
		KWeightingPre(sampleRate),
		KWeightingRLB(sampleRate),
	})
}
