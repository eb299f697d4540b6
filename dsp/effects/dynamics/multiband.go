package dynamics

import (
	"fmt"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/crossover"
)

const (
	minMultibandBands = 2
	maxMultibandBands = 6

	defaultMultibandOrder = 4
)

// BandMetrics holds metering for one frequency band, aggregated across
// stereo channels.
type BandMetrics struct {
	GainReductionDB    float64 // compressor reduction since last metrics reset
	LimiterReductionDB float64 // limiter reduction since last metrics reset, 0 when disabled
}

// bandChain is the per-channel processing chain: a crossover splitter
// feeding one compressor (and optionally one limiter) per band.
type bandChain struct {
	xo       *crossover.MultiBand
	comps    []*Compressor
	limiters []*Limiter
	bands    []float64
}

func newBandChain(freqs []float64, order int, sampleRate float64) (*bandChain, error) {
	xo, err := crossover.NewMultiBand(freqs, order, sampleRate, 1)
	if err != nil {
		return nil, err
	}

	n := xo.NumBands()

	comps := make([]*Compressor, n)
	for i := range comps {
		c, err := NewCompressor(sampleRate)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", i, err)
		}

		comps[i] = c
	}

	return &bandChain{
		xo:    xo,
		comps: comps,
		bands: make([]float64, n),
	}, nil
}

func (bc *bandChain) processSample(x float64) float64 {
	bc.xo.ProcessSampleInto(bc.bands, x)

	sum := 0.0

	for i, b := range bc.bands {
		v := bc.comps[i].ProcessSample(b)
		if bc.limiters != nil {
			v = bc.limiters[i].ProcessSample(v)
		}

		sum += v
	}

	return sum
}

func (bc *bandChain) reset() {
	bc.xo.Reset()

	for _, c := range bc.comps {
		c.Reset()
	}

	for _, l := range bc.limiters {
		l.Reset()
	}
}

// MultibandProcessor is a stereo multiband dynamics processor. The signal
// is split into 2..6 bands with Linkwitz-Riley crossovers, each band runs
// through its own soft-knee compressor and optionally a lookahead limiter,
// and the bands are summed back. Band parameters are stereo-linked.
//
// With mid/side mode enabled the two chains process the encoded mid and
// side signals instead of left and right, so band dynamics can tighten
// the center image independently of the stereo width.
type MultibandProcessor struct {
	sampleRate float64
	freqs      []float64
	order      int
	midSide    bool

	chains [2]*bandChain

	limitersOn      bool
	limiterCeiling  float64
	limiterLookMs   float64
	limiterAttack   float64
	limiterReleaseM float64
}

// NewMultibandProcessor creates a stereo multiband processor with
// len(freqs)+1 bands. Frequencies must be strictly ascending within
// (0, sampleRate/2); the band count must land in [2, 6]. A non-positive
// order selects the default LR4.
func NewMultibandProcessor(freqs []float64, order int, sampleRate float64) (*MultibandProcessor, error) {
	if order <= 0 {
		order = defaultMultibandOrder
	}

	bands := len(freqs) + 1
	if bands < minMultibandBands || bands > maxMultibandBands {
		return nil, fmt.Errorf("multiband: band count must be in [%d, %d], got %d",
			minMultibandBands, maxMultibandBands, bands)
	}

	m := &MultibandProcessor{
		sampleRate:      sampleRate,
		freqs:           append([]float64(nil), freqs...),
		order:           order,
		limiterCeiling:  defaultLimiterCeilingDB,
		limiterLookMs:   defaultLimiterLookaheadMs,
		limiterAttack:   defaultLimiterAttackMs,
		limiterReleaseM: defaultLimiterReleaseMs,
	}

	for ch := range m.chains {
		chain, err := newBandChain(freqs, order, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("multiband: %w", err)
		}

		m.chains[ch] = chain
	}

	return m, nil
}

// NumBands returns the number of frequency bands.
func (m *MultibandProcessor) NumBands() int { return len(m.freqs) + 1 }

// CrossoverFreqs returns a copy of the crossover frequencies in Hz.
func (m *MultibandProcessor) CrossoverFreqs() []float64 {
	return append([]float64(nil), m.freqs...)
}

// CrossoverOrder returns the Linkwitz-Riley order.
func (m *MultibandProcessor) CrossoverOrder() int { return m.order }

// SampleRate returns the sample rate in Hz.
func (m *MultibandProcessor) SampleRate() float64 { return m.sampleRate }

// SetMidSide switches the two chains between left/right and mid/side
// operation. Switching clears processing state.
func (m *MultibandProcessor) SetMidSide(enable bool) {
	if m.midSide == enable {
		return
	}

	m.midSide = enable
	m.Reset()
}

// MidSide reports whether mid/side operation is enabled.
func (m *MultibandProcessor) MidSide() bool { return m.midSide }

// SetLimitersEnabled adds or removes a lookahead limiter behind every
// band compressor. All bands share the same lookahead so band alignment
// is preserved. Enabling rebuilds limiter state.
func (m *MultibandProcessor) SetLimitersEnabled(enable bool) error {
	if !enable {
		for _, chain := range m.chains {
			chain.limiters = nil
		}

		m.limitersOn = false

		return nil
	}

	for _, chain := range m.chains {
		limiters := make([]*Limiter, len(chain.comps))

		for i := range limiters {
			l, err := NewLimiter(m.sampleRate)
			if err != nil {
				return fmt.Errorf("multiband: band %d limiter: %w", i, err)
			}

			if err := l.SetCeiling(m.limiterCeiling); err != nil {
				return err
			}

			if err := l.SetLookahead(m.limiterLookMs); err != nil {
				return err
			}

			if err := l.SetAttack(m.limiterAttack); err != nil {
				return err
			}

			if err := l.SetRelease(m.limiterReleaseM); err != nil {
				return err
			}

			limiters[i] = l
		}

		chain.limiters = limiters
	}

	m.limitersOn = true

	return nil
}

// LimitersEnabled reports whether per-band limiting is active.
func (m *MultibandProcessor) LimitersEnabled() bool { return m.limitersOn }

// SetLimiterCeiling sets the shared band-limiter ceiling in dB.
func (m *MultibandProcessor) SetLimiterCeiling(dB float64) error {
	if dB < minLimiterCeilingDB || dB > maxLimiterCeilingDB || !core.IsFinite(dB) {
		return fmt.Errorf("multiband: limiter ceiling must be in [%f, %f]: %f",
			minLimiterCeilingDB, maxLimiterCeilingDB, dB)
	}

	m.limiterCeiling = dB

	for _, chain := range m.chains {
		for _, l := range chain.limiters {
			if err := l.SetCeiling(dB); err != nil {
				return err
			}
		}
	}

	return nil
}

// SetLimiterLookahead sets the shared band-limiter lookahead in
// milliseconds (clamped to [0, 10]). Rebuilds limiter delay state.
func (m *MultibandProcessor) SetLimiterLookahead(ms float64) error {
	if !core.IsFinite(ms) {
		return fmt.Errorf("multiband: limiter lookahead must be finite: %f", ms)
	}

	m.limiterLookMs = ms

	for _, chain := range m.chains {
		for _, l := range chain.limiters {
			if err := l.SetLookahead(ms); err != nil {
				return err
			}
		}
	}

	return nil
}

// band setter plumbing, stereo-linked

func (m *MultibandProcessor) eachBand(band int, apply func(*Compressor) error) error {
	if band < 0 || band >= m.NumBands() {
		return fmt.Errorf("multiband: band index out of range [0, %d): %d", m.NumBands(), band)
	}

	for _, chain := range m.chains {
		if err := apply(chain.comps[band]); err != nil {
			return err
		}
	}

	return nil
}

// SetBandThreshold sets one band's compressor threshold in dB.
func (m *MultibandProcessor) SetBandThreshold(band int, dB float64) error {
	return m.eachBand(band, func(c *Compressor) error { return c.SetThreshold(dB) })
}

// SetBandRatio sets one band's compression ratio.
func (m *MultibandProcessor) SetBandRatio(band int, ratio float64) error {
	return m.eachBand(band, func(c *Compressor) error { return c.SetRatio(ratio) })
}

// SetBandKnee sets one band's knee width in dB.
func (m *MultibandProcessor) SetBandKnee(band int, kneeDB float64) error {
	return m.eachBand(band, func(c *Compressor) error { return c.SetKnee(kneeDB) })
}

// SetBandAttack sets one band's attack time in milliseconds.
func (m *MultibandProcessor) SetBandAttack(band int, ms float64) error {
	return m.eachBand(band, func(c *Compressor) error { return c.SetAttack(ms) })
}

// SetBandRelease sets one band's release time in milliseconds.
func (m *MultibandProcessor) SetBandRelease(band int, ms float64) error {
	return m.eachBand(band, func(c *Compressor) error { return c.SetRelease(ms) })
}

// SetBandMakeupGain sets one band's manual makeup gain in dB.
func (m *MultibandProcessor) SetBandMakeupGain(band int, dB float64) error {
	return m.eachBand(band, func(c *Compressor) error { return c.SetMakeupGain(dB) })
}

// SetBandAutoMakeup toggles one band's automatic makeup gain.
func (m *MultibandProcessor) SetBandAutoMakeup(band int, enable bool) error {
	return m.eachBand(band, func(c *Compressor) error { return c.SetAutoMakeup(enable) })
}

// SetAllBandsThreshold sets every band's threshold in dB.
func (m *MultibandProcessor) SetAllBandsThreshold(dB float64) error {
	for band := range m.NumBands() {
		if err := m.SetBandThreshold(band, dB); err != nil {
			return err
		}
	}

	return nil
}

// SetAllBandsRatio sets every band's compression ratio.
func (m *MultibandProcessor) SetAllBandsRatio(ratio float64) error {
	for band := range m.NumBands() {
		if err := m.SetBandRatio(band, ratio); err != nil {
			return err
		}
	}

	return nil
}

// Band returns the left/mid chain's compressor for the given band, for
// read access to its parameters.
func (m *MultibandProcessor) Band(band int) (*Compressor, error) {
	if band < 0 || band >= m.NumBands() {
		return nil, fmt.Errorf("multiband: band index out of range [0, %d): %d", m.NumBands(), band)
	}

	return m.chains[0].comps[band], nil
}

// ProcessFrame processes one stereo frame and returns the processed pair.
func (m *MultibandProcessor) ProcessFrame(left, right float64) (outL, outR float64) {
	a, b := left, right
	if m.midSide {
		a, b = core.MidSideEncode(left, right)
	}

	a = m.chains[0].processSample(a)
	b = m.chains[1].processSample(b)

	if m.midSide {
		return core.MidSideDecode(a, b)
	}

	return a, b
}

// ProcessBlock processes stereo blocks in place. Both slices must have
// the same length.
func (m *MultibandProcessor) ProcessBlock(left, right []float64) error {
	if len(left) != len(right) {
		return fmt.Errorf("multiband: channel length mismatch: %d vs %d", len(left), len(right))
	}

	for i := range left {
		left[i], right[i] = m.ProcessFrame(left[i], right[i])
	}

	return nil
}

// LatencySamples returns the processing delay introduced by the band
// limiters, zero when limiting is disabled.
func (m *MultibandProcessor) LatencySamples() int {
	if !m.limitersOn || len(m.chains[0].limiters) == 0 {
		return 0
	}

	return m.chains[0].limiters[0].LatencySamples()
}

// Metrics returns per-band metering, with reductions aggregated as the
// maximum across the two chains.
func (m *MultibandProcessor) Metrics() []BandMetrics {
	out := make([]BandMetrics, m.NumBands())

	for band := range out {
		for _, chain := range m.chains {
			cm := chain.comps[band].Metrics()

			compDB := gainToReductionDB(cm.GainReduction)
			if compDB > out[band].GainReductionDB {
				out[band].GainReductionDB = compDB
			}

			if chain.limiters != nil {
				lm := chain.limiters[band].Metrics()
				if lm.MaxReductionDB > out[band].LimiterReductionDB {
					out[band].LimiterReductionDB = lm.MaxReductionDB
				}
			}
		}
	}

	return out
}

// ResetMetrics clears metering on every band without touching audio state.
func (m *MultibandProcessor) ResetMetrics() {
	for _, chain := range m.chains {
		for _, c := range chain.comps {
			c.ResetMetrics()
		}
	}
}

// Reset clears all crossover, compressor, and limiter state.
func (m *MultibandProcessor) Reset() {
	for _, chain := range m.chains {
		chain.reset()
	}
}

// gainToReductionDB converts a linear gain factor (0, 1] to positive
// reduction dB.
func gainToReductionDB(gain float64) float64 {
	if gain <= 0 || gain >= 1 {
		return 0
	}

	return -mathLog2(gain) / log2Of10Div20
}
