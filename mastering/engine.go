package mastering

import (
	"fmt"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/effects/dynamics"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/spectrum"
	"github.com/jaywtf82/cno-voidline-sub002/measure/levels"
	"github.com/jaywtf82/cno-voidline-sub002/measure/loudness"
)

const (
	defaultBlockSize = 128

	defaultLoudnessIntervalMs = 100.0
	defaultLevelsIntervalMs   = 50.0
	defaultLimiterIntervalMs  = 50.0
	defaultSpectrumFrameRate  = 30.0

	minLookaheadMs = 1.0
	maxLookaheadMs = 10.0
)

type engineConfig struct {
	blockSize          int
	fftSize            int
	spectrumFrameRate  float64
	loudnessIntervalMs float64
	levelsIntervalMs   float64
	limiterIntervalMs  float64
	crossoverFreqs     []float64
}

// Option configures an [Engine] at construction.
type Option func(*engineConfig)

// WithBlockSize sets the fixed block length ProcessBlock expects
// (default 128).
func WithBlockSize(n int) Option {
	return func(c *engineConfig) { c.blockSize = n }
}

// WithFFTSize sets the spectrum analyzer FFT size (power of two,
// 512..8192).
func WithFFTSize(n int) Option {
	return func(c *engineConfig) { c.fftSize = n }
}

// WithSpectrumFrameRate caps spectrum emission in frames per second
// (default 30). Zero disables throttling.
func WithSpectrumFrameRate(fps float64) Option {
	return func(c *engineConfig) { c.spectrumFrameRate = fps }
}

// WithLoudnessInterval sets the loudness message cadence in
// milliseconds (default 100).
func WithLoudnessInterval(ms float64) Option {
	return func(c *engineConfig) { c.loudnessIntervalMs = ms }
}

// WithLevelsInterval sets the levels message cadence in milliseconds
// (default 50).
func WithLevelsInterval(ms float64) Option {
	return func(c *engineConfig) { c.levelsIntervalMs = ms }
}

// WithLimiterInterval sets the limiter message cadence in milliseconds
// (default 50).
func WithLimiterInterval(ms float64) Option {
	return func(c *engineConfig) { c.limiterIntervalMs = ms }
}

// WithMultiband enables the multiband compressor with the given
// ascending crossover frequencies (fourth-order Linkwitz-Riley).
func WithMultiband(freqs ...float64) Option {
	return func(c *engineConfig) { c.crossoverFreqs = freqs }
}

// Engine is the composed stereo mastering core. Not safe for
// concurrent use; all reconfiguration happens between ProcessBlock
// calls.
type Engine struct {
	sampleRate float64
	blockSize  int
	sink       Sink

	loud     *loudness.Meter
	analyzer *spectrum.Analyzer
	meter    *levels.Meter
	limiters [2]*dynamics.Limiter
	mb       *dynamics.MultibandProcessor

	mid      []float64
	loudBufs [2][]float64

	loudEvery int
	lvlEvery  int
	limEvery  int
	sinceLoud int
	sinceLvl  int
	sinceLim  int
}

// New creates a stereo mastering engine publishing to sink.
func New(sampleRate float64, sink Sink, opts ...Option) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("mastering: sample rate must be positive, got %v", sampleRate)
	}

	if sink == nil {
		return nil, fmt.Errorf("mastering: sink must not be nil")
	}

	cfg := engineConfig{
		blockSize:          defaultBlockSize,
		spectrumFrameRate:  defaultSpectrumFrameRate,
		loudnessIntervalMs: defaultLoudnessIntervalMs,
		levelsIntervalMs:   defaultLevelsIntervalMs,
		limiterIntervalMs:  defaultLimiterIntervalMs,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.blockSize <= 0 {
		return nil, fmt.Errorf("mastering: block size must be positive, got %d", cfg.blockSize)
	}

	if cfg.loudnessIntervalMs <= 0 || cfg.levelsIntervalMs <= 0 || cfg.limiterIntervalMs <= 0 {
		return nil, fmt.Errorf("mastering: message intervals must be positive")
	}

	loud, err := loudness.NewMeter(
		loudness.WithSampleRate(sampleRate),
		loudness.WithChannels(2),
	)
	if err != nil {
		return nil, err
	}

	specOpts := []spectrum.Option{spectrum.WithMaxFrameRate(cfg.spectrumFrameRate)}
	if cfg.fftSize != 0 {
		specOpts = append(specOpts, spectrum.WithFFTSize(cfg.fftSize))
	}

	analyzer, err := spectrum.New(sampleRate, specOpts...)
	if err != nil {
		return nil, err
	}

	meter, err := levels.New(sampleRate)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		sampleRate: sampleRate,
		blockSize:  cfg.blockSize,
		sink:       sink,
		loud:       loud,
		analyzer:   analyzer,
		meter:      meter,
		mid:        make([]float64, cfg.blockSize),
		loudEvery:  intervalSamples(cfg.loudnessIntervalMs, sampleRate),
		lvlEvery:   intervalSamples(cfg.levelsIntervalMs, sampleRate),
		limEvery:   intervalSamples(cfg.limiterIntervalMs, sampleRate),
	}

	for i := range e.limiters {
		lim, err := dynamics.NewLimiter(sampleRate)
		if err != nil {
			return nil, err
		}

		e.limiters[i] = lim
	}

	if len(cfg.crossoverFreqs) > 0 {
		mb, err := dynamics.NewMultibandProcessor(cfg.crossoverFreqs, 0, sampleRate)
		if err != nil {
			return nil, err
		}

		e.mb = mb
	}

	return e, nil
}

func intervalSamples(ms, sampleRate float64) int {
	return max(int(ms*0.001*sampleRate), 1)
}

// SampleRate returns the engine sample rate.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// BlockSize returns the fixed block length.
func (e *Engine) BlockSize() int { return e.blockSize }

// Multiband returns the multiband processor, or nil when disabled.
func (e *Engine) Multiband() *dynamics.MultibandProcessor { return e.mb }

// LatencySamples returns the total processing latency of the audio
// path.
func (e *Engine) LatencySamples() int {
	n := e.limiters[0].LatencySamples()
	if e.mb != nil {
		n += e.mb.LatencySamples()
	}

	return n
}

// SetLookahead sets the output limiter lookahead, clamped to 1..10 ms.
func (e *Engine) SetLookahead(ms float64) error {
	ms = core.Clamp(ms, minLookaheadMs, maxLookaheadMs)

	for _, lim := range e.limiters {
		if err := lim.SetLookahead(ms); err != nil {
			return err
		}
	}

	return nil
}

// SetFFTSize reconfigures the spectrum analyzer. The size must be a
// power of two in 512..8192.
func (e *Engine) SetFFTSize(n int) error {
	return e.analyzer.SetFFTSize(n)
}

// UpdateLimiter applies a validated limiter parameter set to both
// channels.
func (e *Engine) UpdateLimiter(ceilingDB, attackMs, releaseMs float64) error {
	for _, lim := range e.limiters {
		if err := lim.SetCeiling(ceilingDB); err != nil {
			return err
		}

		if err := lim.SetAttack(attackMs); err != nil {
			return err
		}

		if err := lim.SetRelease(releaseMs); err != nil {
			return err
		}
	}

	return nil
}

// ProcessBlock meters in, runs the dynamics chain, and writes the
// result to out. Both must hold two channels of exactly BlockSize
// samples. in and out may alias.
func (e *Engine) ProcessBlock(in, out [][]float64) error {
	if len(in) != 2 || len(out) != 2 {
		return fmt.Errorf("mastering: expected 2 channels, got %d in / %d out", len(in), len(out))
	}

	for c := range 2 {
		if len(in[c]) != e.blockSize || len(out[c]) != e.blockSize {
			return fmt.Errorf("mastering: block length must be %d, got %d in / %d out",
				e.blockSize, len(in[c]), len(out[c]))
		}
	}

	if err := e.meter.ProcessBlock(in[0], in[1]); err != nil {
		return err
	}

	e.loudBufs[0] = in[0]
	e.loudBufs[1] = in[1]

	if err := e.loud.ProcessBlock(e.loudBufs[:]); err != nil {
		return err
	}

	for i := range e.mid {
		e.mid[i] = 0.5 * (in[0][i] + in[1][i])
	}

	frame := e.analyzer.ProcessBlock(e.mid)

	for c := range 2 {
		if &out[c][0] != &in[c][0] {
			copy(out[c], in[c])
		}
	}

	if e.mb != nil {
		if err := e.mb.ProcessBlock(out[0], out[1]); err != nil {
			return err
		}
	}

	for c := range 2 {
		e.limiters[c].ProcessInPlace(out[c])
	}

	e.emit(frame)

	return nil
}

func (e *Engine) emit(frame *spectrum.Frame) {
	if frame != nil {
		e.sink.Publish(SpectrumMessage{
			MagnitudesDB: frame.MagnitudesDB,
			FreqStep:     frame.FreqStep,
			FFTSize:      frame.FFTSize,
			SampleRate:   frame.SampleRate,
		})
	}

	e.sinceLoud += e.blockSize
	e.sinceLvl += e.blockSize
	e.sinceLim += e.blockSize

	if e.sinceLoud >= e.loudEvery {
		e.sinceLoud = 0
		e.sink.Publish(LoudnessMessage{
			Momentary:  e.loud.Momentary(),
			ShortTerm:  e.loud.ShortTerm(),
			Integrated: e.loud.Integrated(),
			Range:      e.loud.Range(),
			TruePeakDB: e.loud.TruePeakDB(),
		})
	}

	if e.sinceLvl >= e.lvlEvery {
		e.sinceLvl = 0

		s := e.meter.Snapshot()
		e.sink.Publish(LevelsMessage{
			PeakL:       s.PeakL,
			PeakR:       s.PeakR,
			RMSL:        s.RMSL,
			RMSR:        s.RMSR,
			Correlation: s.Correlation,
		})
	}

	if e.sinceLim >= e.limEvery {
		e.sinceLim = 0

		m0 := e.limiters[0].Metrics()
		m1 := e.limiters[1].Metrics()
		e.sink.Publish(LimiterMessage{
			GainReductionDB: max(m0.GainReductionDB, m1.GainReductionDB),
			TruePeakDB:      max(m0.TruePeakDB, m1.TruePeakDB),
		})
	}
}

// Reset clears every meter and processor.
func (e *Engine) Reset() {
	e.loud.Reset()
	e.analyzer.Reset()
	e.meter.Reset()

	for _, lim := range e.limiters {
		lim.Reset()
	}

	if e.mb != nil {
		e.mb.Reset()
	}

	e.sinceLoud = 0
	e.sinceLvl = 0
	e.sinceLim = 0
}
