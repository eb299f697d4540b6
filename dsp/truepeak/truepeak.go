// Package truepeak estimates inter-sample peaks by 4x oversampled
// interpolation per ITU-R BS.1770.
package truepeak

import (
	"fmt"
	"math"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
)

const (
	// Oversample is the interpolation factor used for inter-sample
	// peak reconstruction.
	Oversample = 4

	tapsPerPhase = 12
	totalTaps    = Oversample * tapsPerPhase

	defaultDecayDBPerSec = 6.0

	minDB = -120.0
)

// Polyphase interpolation filter for 4x oversampling: windowed sinc with
// Kaiser window (beta=5), lowpass at the input Nyquist, split into one
// branch per output phase and normalized to unity DC gain per branch.
var polyphaseCoeffs [Oversample][tapsPerPhase]float64

func init() {
	const beta = 5.0

	center := float64(totalTaps-1) / 2.0

	for phase := range Oversample {
		for tap := range tapsPerPhase {
			count := tap*Oversample + phase
			n := float64(count) - center

			var sinc float64
			if math.Abs(n) < 1e-10 {
				sinc = 1.0
			} else {
				arg := math.Pi * n / Oversample
				sinc = math.Sin(arg) / arg
			}

			alpha := n / center
			if math.Abs(alpha) <= 1 {
				win := besselI0(beta*math.Sqrt(1-alpha*alpha)) / besselI0(beta)
				polyphaseCoeffs[phase][tap] = sinc * win * Oversample
			}
		}
	}

	for phase := range Oversample {
		var sum float64
		for tap := range tapsPerPhase {
			sum += polyphaseCoeffs[phase][tap]
		}

		for tap := range tapsPerPhase {
			polyphaseCoeffs[phase][tap] /= sum
		}
	}
}

// besselI0 is the zeroth-order modified Bessel function of the first kind.
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

// Detector tracks the oversampled true peak of a single channel with
// peak hold and exponential decay.
type Detector struct {
	sampleRate     float64
	decayDBPerSec  float64
	decayPerSample float64

	history [tapsPerPhase]float64

	held      float64
	maxTrue   float64
	maxSample float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithDecay sets the peak-hold decay rate in dB per second.
// Non-positive values are ignored.
func WithDecay(dbPerSecond float64) Option {
	return func(d *Detector) {
		if dbPerSecond > 0 {
			d.decayDBPerSec = dbPerSecond
		}
	}
}

// New creates a true-peak detector for the given sample rate.
func New(sampleRate float64, opts ...Option) (*Detector, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("true peak sample rate must be positive and finite: %f", sampleRate)
	}

	d := &Detector{
		sampleRate:    sampleRate,
		decayDBPerSec: defaultDecayDBPerSec,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	d.decayPerSample = core.DBToLinear(-d.decayDBPerSec / sampleRate)

	return d, nil
}

// ProcessSample consumes one sample and returns the oversampled peak
// magnitude of the interpolated segment it completes.
func (d *Detector) ProcessSample(x float64) float64 {
	abs := math.Abs(x)
	if abs > d.maxSample {
		d.maxSample = abs
	}

	copy(d.history[0:], d.history[1:])
	d.history[tapsPerPhase-1] = x

	var framePeak float64

	for phase := range Oversample {
		var v float64
		for tap := range tapsPerPhase {
			v += d.history[tap] * polyphaseCoeffs[phase][tap]
		}

		if v < 0 {
			v = -v
		}

		if v > framePeak {
			framePeak = v
		}
	}

	if framePeak > d.maxTrue {
		d.maxTrue = framePeak
	}

	d.held *= d.decayPerSample
	if framePeak > d.held {
		d.held = framePeak
	}

	return framePeak
}

// ProcessBlock consumes a block of samples and returns the oversampled
// peak magnitude across the whole block.
func (d *Detector) ProcessBlock(buf []float64) float64 {
	var peak float64

	for _, x := range buf {
		if p := d.ProcessSample(x); p > peak {
			peak = p
		}
	}

	return peak
}

// Held returns the current decaying held peak (linear).
func (d *Detector) Held() float64 { return d.held }

// HeldDB returns the current decaying held peak in dBTP.
func (d *Detector) HeldDB() float64 { return toDB(d.held) }

// TruePeak returns the maximum oversampled peak since Reset (linear).
func (d *Detector) TruePeak() float64 { return d.maxTrue }

// TruePeakDB returns the maximum oversampled peak since Reset in dBTP.
func (d *Detector) TruePeakDB() float64 { return toDB(d.maxTrue) }

// SamplePeak returns the maximum raw sample magnitude since Reset (linear).
func (d *Detector) SamplePeak() float64 { return d.maxSample }

// SamplePeakDB returns the maximum raw sample magnitude since Reset in dBFS.
func (d *Detector) SamplePeakDB() float64 { return toDB(d.maxSample) }

// SampleRate returns the configured sample rate in Hz.
func (d *Detector) SampleRate() float64 { return d.sampleRate }

// Decay returns the peak-hold decay rate in dB per second.
func (d *Detector) Decay() float64 { return d.decayDBPerSec }

// Reset clears interpolator history and all peak state.
func (d *Detector) Reset() {
	d.history = [tapsPerPhase]float64{}
	d.held = 0
	d.maxTrue = 0
	d.maxSample = 0
}

func toDB(linear float64) float64 {
	if linear <= 0 {
		return minDB
	}

	db := 20 * math.Log10(linear)
	if db < minDB {
		return minDB
	}

	return db
}
