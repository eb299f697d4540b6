// Package window provides precomputed window function tables for
// spectral analysis framing.
package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeBlackmanHarris
	TypeKaiser
	TypeTukey
)

// String returns a human-readable name for the window type.
func (t Type) String() string {
	switch t {
	case TypeRectangular:
		return "Rectangular"
	case TypeHann:
		return "Hann"
	case TypeHamming:
		return "Hamming"
	case TypeBlackman:
		return "Blackman"
	case TypeBlackmanHarris:
		return "BlackmanHarris"
	case TypeKaiser:
		return "Kaiser"
	case TypeTukey:
		return "Tukey"
	default:
		return "Unknown"
	}
}

// Option configures window generation.
type Option func(*config)

type config struct {
	alpha    float64
	periodic bool
}

func defaultConfig() config {
	return config{alpha: 1}
}

// WithAlpha configures the alpha/beta parameter for parametric windows
// (Kaiser beta, Tukey taper fraction). Negative values are ignored.
func WithAlpha(v float64) Option {
	return func(c *config) {
		if v >= 0 {
			c.alpha = v
		}
	}
}

// WithPeriodic configures periodic form (FFT framing) instead of the
// symmetric form used for filter design.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// Generate returns window coefficients of the given length.
// Returns nil for non-positive lengths.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	out := make([]float64, length)

	denom := float64(length - 1)
	if cfg.periodic {
		denom = float64(length)
	}

	if denom == 0 {
		out[0] = 1
		return out
	}

	for i := range out {
		x := float64(i) / denom
		out[i] = eval(t, x, cfg)
	}

	return out
}

func eval(t Type, x float64, cfg config) float64 {
	switch t {
	case TypeHann:
		return 0.5 - 0.5*math.Cos(2*math.Pi*x)
	case TypeHamming:
		return 0.54 - 0.46*math.Cos(2*math.Pi*x)
	case TypeBlackman:
		return 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
	case TypeBlackmanHarris:
		return 0.35875 -
			0.48829*math.Cos(2*math.Pi*x) +
			0.14128*math.Cos(4*math.Pi*x) -
			0.01168*math.Cos(6*math.Pi*x)
	case TypeKaiser:
		r := 2*x - 1

		arg := 1 - r*r
		if arg < 0 {
			arg = 0
		}

		return besselI0(cfg.alpha*math.Sqrt(arg)) / besselI0(cfg.alpha)
	case TypeTukey:
		alpha := cfg.alpha
		if alpha > 1 {
			alpha = 1
		}

		if alpha <= 0 {
			return 1
		}

		if x < alpha/2 {
			return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
		}

		if x > 1-alpha/2 {
			return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
		}

		return 1
	default:
		return 1
	}
}

// besselI0 is the zeroth-order modified Bessel function of the first kind,
// evaluated by series expansion. Used for the Kaiser window.
func besselI0(x float64) float64 {
	sum := 1.0

	term := 1.0
	for k := 1; k <= 25; k++ {
		term *= (x * x) / (4 * float64(k) * float64(k))

		sum += term
		if term < 1e-12 {
			break
		}
	}

	return sum
}

// CoherentGain returns the mean of the window coefficients. Dividing a
// spectrum by fftSize*CoherentGain normalizes a windowed sine to its
// amplitude.
func CoherentGain(coeffs []float64) float64 {
	if len(coeffs) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}

	return sum / float64(len(coeffs))
}

// ApplyCoefficientsInPlace multiplies samples with coefficients in place.
func ApplyCoefficientsInPlace(samples, coeffs []float64) error {
	if len(samples) != len(coeffs) {
		return errMismatchedLength
	}

	vecmath.MulBlockInPlace(samples, coeffs)

	return nil
}
