// Package levels provides per-block stereo level metering: sample peak
// with hold and exponential decay, sliding RMS, and a windowed stereo
// correlation meter.
package levels

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
)

const (
	defaultWindowMs      = 300.0
	defaultDecayDBPerSec = 12.0

	minWindowMs = 10.0
	maxWindowMs = 5000.0
)

// Snapshot is one meter reading.
type Snapshot struct {
	PeakL float64 // held sample peak, linear
	PeakR float64
	RMSL  float64 // windowed RMS, linear
	RMSR  float64
	// Correlation is the windowed stereo phase correlation in [-1, 1]:
	// +1 for mono-compatible material, -1 for anti-phase. Silence reads
	// +1 since it poses no phase risk.
	Correlation float64
}

// Option configures a [Meter] at construction.
type Option func(*Meter)

// WithWindow sets the RMS/correlation window in milliseconds
// (10..5000, default 300).
func WithWindow(ms float64) Option {
	return func(m *Meter) { m.windowMs = ms }
}

// WithPeakDecay sets the peak-hold release rate in dB per second
// (default 12).
func WithPeakDecay(dbPerSec float64) Option {
	return func(m *Meter) { m.decayDBPerSec = dbPerSec }
}

// Meter measures stereo levels over a sliding window. Not safe for
// concurrent use.
type Meter struct {
	sampleRate    float64
	windowMs      float64
	decayDBPerSec float64

	decayPerSample float64
	window         int

	sqL   []float64
	sqR   []float64
	cross []float64
	idx   int
	fill  int

	sumL  float64
	sumR  float64
	sumLR float64

	heldL float64
	heldR float64
}

// New creates a stereo level meter.
func New(sampleRate float64, opts ...Option) (*Meter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("levels: sample rate must be positive, got %v", sampleRate)
	}

	m := &Meter{
		sampleRate:    sampleRate,
		windowMs:      defaultWindowMs,
		decayDBPerSec: defaultDecayDBPerSec,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.windowMs < minWindowMs || m.windowMs > maxWindowMs {
		return nil, fmt.Errorf("levels: window must be in [%v, %v] ms, got %v",
			minWindowMs, maxWindowMs, m.windowMs)
	}

	if m.decayDBPerSec <= 0 {
		return nil, fmt.Errorf("levels: peak decay must be positive, got %v", m.decayDBPerSec)
	}

	m.window = max(int(math.Round(m.windowMs*0.001*sampleRate)), 1)
	m.sqL = make([]float64, m.window)
	m.sqR = make([]float64, m.window)
	m.cross = make([]float64, m.window)
	m.decayPerSample = core.DBToLinear(-m.decayDBPerSec / sampleRate)

	return m, nil
}

// ProcessBlock consumes one stereo block. Both slices must have the
// same length.
func (m *Meter) ProcessBlock(left, right []float64) error {
	if len(left) != len(right) {
		return fmt.Errorf("levels: channel length mismatch: %d vs %d", len(left), len(right))
	}

	for i := range left {
		l, r := left[i], right[i]

		oldL := m.sqL[m.idx]
		oldR := m.sqR[m.idx]
		oldC := m.cross[m.idx]

		sqL := l * l
		sqR := r * r
		lr := l * r

		m.sqL[m.idx] = sqL
		m.sqR[m.idx] = sqR
		m.cross[m.idx] = lr

		m.sumL += sqL - oldL
		m.sumR += sqR - oldR
		m.sumLR += lr - oldC

		m.idx++
		if m.idx >= m.window {
			m.idx = 0
		}

		if m.fill < m.window {
			m.fill++
		}
	}

	// Block peak against the decaying hold.
	decay := math.Pow(m.decayPerSample, float64(len(left)))
	m.heldL *= decay
	m.heldR *= decay

	if p := vecmath.MaxAbs(left); p > m.heldL {
		m.heldL = p
	}

	if p := vecmath.MaxAbs(right); p > m.heldR {
		m.heldR = p
	}

	return nil
}

// Snapshot returns the current meter reading.
func (m *Meter) Snapshot() Snapshot {
	s := Snapshot{
		PeakL:       m.heldL,
		PeakR:       m.heldR,
		Correlation: 1,
	}

	if m.fill == 0 {
		return s
	}

	n := float64(m.fill)

	msL := m.sumL / n
	msR := m.sumR / n

	if msL > 0 {
		s.RMSL = math.Sqrt(msL)
	}

	if msR > 0 {
		s.RMSR = math.Sqrt(msR)
	}

	const eps = 1e-12

	denom := math.Sqrt(m.sumL * m.sumR)
	if denom > eps {
		c := m.sumLR / denom
		if c > 1 {
			c = 1
		}

		if c < -1 {
			c = -1
		}

		s.Correlation = c
	}

	return s
}

// Reset clears all meter state.
func (m *Meter) Reset() {
	core.Zero(m.sqL)
	core.Zero(m.sqR)
	core.Zero(m.cross)

	m.idx = 0
	m.fill = 0
	m.sumL = 0
	m.sumR = 0
	m.sumLR = 0
	m.heldL = 0
	m.heldR = 0
}
