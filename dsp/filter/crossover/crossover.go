// Package crossover provides Linkwitz-Riley crossover networks for
// splitting a signal into complementary frequency bands.
package crossover

import (
	"fmt"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/biquad"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/design"
)

// Crossover is a two-way Linkwitz-Riley crossover network that splits
// an input signal into complementary lowpass and highpass outputs.
//
// The lowpass and highpass outputs sum to an allpass-filtered version
// of the input (flat magnitude response). Polarity correction for
// orders ≡ 2 mod 4 (LR2, LR6, ...) is handled automatically.
type Crossover struct {
	lp    *biquad.Chain
	hp    *biquad.Chain
	freq  float64
	order int
	sr    float64
}

// New creates a two-way Linkwitz-Riley crossover at the given frequency
// and order. The order must be a positive even integer (2, 4, 6, 8, ...).
func New(freq float64, order int, sampleRate float64) (*Crossover, error) {
	if order <= 0 || order%2 != 0 {
		return nil, fmt.Errorf("crossover: order must be a positive even integer, got %d", order)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("crossover: sample rate must be positive, got %v", sampleRate)
	}

	if freq <= 0 || freq >= sampleRate/2 {
		return nil, fmt.Errorf("crossover: frequency must be in (0, %v), got %v", sampleRate/2, freq)
	}

	lpCoeffs := design.LinkwitzRileyLP(freq, order, sampleRate)

	var hpCoeffs []biquad.Coefficients
	if design.LinkwitzRileyNeedsHPInvert(order) {
		hpCoeffs = design.LinkwitzRileyHPInverted(freq, order, sampleRate)
	} else {
		hpCoeffs = design.LinkwitzRileyHP(freq, order, sampleRate)
	}

	if lpCoeffs == nil || hpCoeffs == nil {
		return nil, fmt.Errorf("crossover: failed to design LR%d at %.1f Hz", order, freq)
	}

	return &Crossover{
		lp:    biquad.NewChain(lpCoeffs),
		hp:    biquad.NewChain(hpCoeffs),
		freq:  freq,
		order: order,
		sr:    sampleRate,
	}, nil
}

// ProcessSample filters one input sample and returns the lowpass and
// highpass outputs. Their sum is allpass (flat magnitude response).
func (c *Crossover) ProcessSample(x float64) (lo, hi float64) {
	return c.lp.ProcessSample(x), c.hp.ProcessSample(x)
}

// ProcessBlock filters a block of input samples, writing the lowpass
// output to lo and the highpass output to hi. All three slices must
// have the same length. Zero-alloc.
func (c *Crossover) ProcessBlock(input, lo, hi []float64) {
	n := len(input)
	if n == 0 {
		return
	}

	_ = lo[n-1]
	_ = hi[n-1]
	copy(lo, input)
	copy(hi, input)
	c.lp.ProcessBlock(lo)
	c.hp.ProcessBlock(hi)
}

// Freq returns the crossover frequency in Hz.
func (c *Crossover) Freq() float64 { return c.freq }

// Order returns the Linkwitz-Riley order (always even).
func (c *Crossover) Order() int { return c.order }

// SampleRate returns the sample rate in Hz.
func (c *Crossover) SampleRate() float64 { return c.sr }

// Reset clears the internal filter states of both LP and HP chains.
func (c *Crossover) Reset() {
	c.lp.Reset()
	c.hp.Reset()
}

// MultiBand is a multi-way crossover network built from cascaded two-way
// Linkwitz-Riley crossovers. It splits an input signal into N+1 frequency
// bands for N crossover frequencies, ordered from lowest to highest.
//
// The cascade topology passes each stage's highpass output as the next
// stage's input. For a two-band network the summed reconstruction is
// exactly allpass; for three or more bands the error is negligible when
// crossovers are spaced at least an octave apart.
type MultiBand struct {
	stages []*Crossover
	bands  int

	// Scratch buffers sized at construction so the block path does
	// not allocate.
	remainder []float64
	hi        []float64
}

// NewMultiBand creates a multi-way crossover from the given crossover
// frequencies and order. Frequencies must be strictly ascending and all
// within (0, sampleRate/2). maxBlock is the largest block length that
// ProcessBlockInto will be called with.
func NewMultiBand(freqs []float64, order int, sampleRate float64, maxBlock int) (*MultiBand, error) {
	if len(freqs) == 0 {
		return nil, fmt.Errorf("crossover: at least one frequency is required")
	}

	if maxBlock <= 0 {
		return nil, fmt.Errorf("crossover: max block size must be > 0, got %d", maxBlock)
	}

	for i := 1; i < len(freqs); i++ {
		if freqs[i] <= freqs[i-1] {
			return nil, fmt.Errorf("crossover: frequencies must be strictly ascending, got %.1f after %.1f",
				freqs[i], freqs[i-1])
		}
	}

	stages := make([]*Crossover, len(freqs))

	for i, f := range freqs {
		xo, err := New(f, order, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("crossover: stage %d: %w", i, err)
		}

		stages[i] = xo
	}

	return &MultiBand{
		stages:    stages,
		bands:     len(freqs) + 1,
		remainder: make([]float64, maxBlock),
		hi:        make([]float64, maxBlock),
	}, nil
}

// NumBands returns the number of output bands.
func (m *MultiBand) NumBands() int { return m.bands }

// Stages returns the underlying two-way crossover stages.
func (m *MultiBand) Stages() []*Crossover { return m.stages }

// ProcessSampleInto filters one input sample into per-band outputs.
// out must have NumBands() elements. Zero-alloc.
func (m *MultiBand) ProcessSampleInto(out []float64, x float64) {
	remainder := x
	for i, stage := range m.stages {
		lo, hi := stage.ProcessSample(remainder)
		out[i] = lo
		remainder = hi
	}

	out[m.bands-1] = remainder
}

// ProcessBlockInto filters a block of input samples into per-band output
// blocks. out must have NumBands() elements, each at least len(input)
// long; len(input) must not exceed the configured max block. Zero-alloc.
func (m *MultiBand) ProcessBlockInto(out [][]float64, input []float64) error {
	n := len(input)
	if n == 0 {
		return nil
	}

	if n > len(m.remainder) {
		return fmt.Errorf("crossover: block of %d exceeds max block %d", n, len(m.remainder))
	}

	if len(out) != m.bands {
		return fmt.Errorf("crossover: %d output bands required, got %d", m.bands, len(out))
	}

	remainder := m.remainder[:n]
	hi := m.hi[:n]
	copy(remainder, input)

	for i, stage := range m.stages {
		stage.ProcessBlock(remainder, out[i][:n], hi)
		copy(remainder, hi)
	}

	copy(out[m.bands-1][:n], remainder)

	return nil
}

// Reset clears all internal filter states.
func (m *MultiBand) Reset() {
	for _, s := range m.stages {
		s.Reset()
	}
}
