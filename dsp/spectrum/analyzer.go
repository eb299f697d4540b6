package spectrum

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/biquad"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/design"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/window"
)

// FFT size bounds accepted by the analyzer. Sizes must be powers of two.
const (
	MinFFTSize = 512
	MaxFFTSize = 8192
)

const (
	minDB = -130.0
	eps   = 1e-12
)

// Frame is one emitted spectrum snapshot. MagnitudesDB holds fftSize/2+1
// one-sided bins in dBFS; bin k is centered at k*FreqStep Hz. The slice is
// owned by the receiver and is not written to by subsequent processing.
type Frame struct {
	MagnitudesDB []float64
	FreqStep     float64
	FFTSize      int
	SampleRate   float64
}

// Option configures an [Analyzer] at construction.
type Option func(*Analyzer)

// WithFFTSize sets the FFT size (power of two, 512..8192, default 2048).
func WithFFTSize(n int) Option {
	return func(a *Analyzer) { a.pendingFFTSize = n }
}

// WithOverlap sets the analysis frame overlap fraction (0..0.95, default 0.75).
func WithOverlap(overlap float64) Option {
	return func(a *Analyzer) { a.overlap = overlap }
}

// WithWindow sets the analysis window type (default Blackman-Harris).
func WithWindow(t window.Type) Option {
	return func(a *Analyzer) { a.winType = t }
}

// WithSmoothing sets the per-bin exponential smoothing factor (0..0.99,
// default 0.8). Zero disables smoothing.
func WithSmoothing(alpha float64) Option {
	return func(a *Analyzer) { a.smoothing = alpha }
}

// WithMaxFrameRate caps frame emission at the given rate in frames per
// second (default 30). Zero removes the cap so every hop emits.
func WithMaxFrameRate(fps float64) Option {
	return func(a *Analyzer) { a.maxFrameRate = fps }
}

// WithKWeighting inserts an ITU-R BS.1770-4 K-weighting filter ahead of
// the analysis, so the displayed spectrum tracks perceived loudness.
func WithKWeighting() Option {
	return func(a *Analyzer) { a.useKWeight = true }
}

// Analyzer is a streaming spectrum analyzer. Not safe for concurrent use.
type Analyzer struct {
	sampleRate   float64
	overlap      float64
	smoothing    float64
	maxFrameRate float64
	winType      window.Type
	useKWeight   bool

	pendingFFTSize int

	fftSize int
	hop     int
	win     []float64
	winGain float64
	plan    *algofft.Plan[complex128]
	kWeight *biquad.Chain

	ring         []float64
	writePos     int
	filled       int
	samplesToHop int

	windowed []float64
	input    []complex128
	output   []complex128
	re       []float64
	im       []float64
	mags     []float64

	dbState []float64
	frames  [2]Frame
	active  int

	emitSpacing     int
	samplesToEmit   int
	smoothingPrimed bool
}

// New creates an analyzer for the given sample rate.
func New(sampleRate float64, opts ...Option) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("spectrum: sample rate must be positive, got %v", sampleRate)
	}

	a := &Analyzer{
		sampleRate:     sampleRate,
		overlap:        0.75,
		smoothing:      0.8,
		maxFrameRate:   30,
		winType:        window.TypeBlackmanHarris,
		pendingFFTSize: 2048,
	}

	for _, opt := range opts {
		opt(a)
	}

	if err := validateOverlap(a.overlap); err != nil {
		return nil, err
	}

	if err := validateSmoothing(a.smoothing); err != nil {
		return nil, err
	}

	if a.maxFrameRate < 0 {
		return nil, fmt.Errorf("spectrum: max frame rate must be >= 0, got %v", a.maxFrameRate)
	}

	if err := a.reconfigure(a.pendingFFTSize); err != nil {
		return nil, err
	}

	return a, nil
}

func validFFTSize(n int) bool {
	return n >= MinFFTSize && n <= MaxFFTSize && n&(n-1) == 0
}

func validateOverlap(overlap float64) error {
	if overlap < 0 || overlap > 0.95 {
		return fmt.Errorf("spectrum: overlap must be in [0, 0.95], got %v", overlap)
	}

	return nil
}

func validateSmoothing(alpha float64) error {
	if alpha < 0 || alpha > 0.99 {
		return fmt.Errorf("spectrum: smoothing must be in [0, 0.99], got %v", alpha)
	}

	return nil
}

// reconfigure rebuilds every size-dependent buffer and resets state.
// Never called from the processing path.
func (a *Analyzer) reconfigure(fftSize int) error {
	if !validFFTSize(fftSize) {
		return fmt.Errorf("spectrum: fft size must be a power of two in [%d, %d], got %d",
			MinFFTSize, MaxFFTSize, fftSize)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return fmt.Errorf("spectrum: fft plan: %w", err)
	}

	switch a.winType {
	case window.TypeRectangular, window.TypeHann, window.TypeHamming,
		window.TypeBlackman, window.TypeBlackmanHarris:
	default:
		return fmt.Errorf("spectrum: unsupported window type %v", a.winType)
	}

	win := window.Generate(a.winType, fftSize, window.WithPeriodic())

	gain := window.CoherentGain(win)
	if gain < eps {
		gain = eps
	}

	a.fftSize = fftSize
	a.plan = plan
	a.win = win
	a.winGain = gain

	a.hop = int(math.Round(float64(fftSize) * (1 - a.overlap)))
	if a.hop < 1 {
		a.hop = 1
	}

	if a.maxFrameRate > 0 {
		a.emitSpacing = int(math.Ceil(a.sampleRate / a.maxFrameRate))
	} else {
		a.emitSpacing = 0
	}

	bins := fftSize/2 + 1

	a.ring = core.EnsureLen(a.ring, fftSize)
	a.windowed = core.EnsureLen(a.windowed, fftSize)
	a.input = make([]complex128, fftSize)
	a.output = make([]complex128, fftSize)
	a.re = core.EnsureLen(a.re, bins)
	a.im = core.EnsureLen(a.im, bins)
	a.mags = core.EnsureLen(a.mags, bins)
	a.dbState = core.EnsureLen(a.dbState, bins)

	freqStep := a.sampleRate / float64(fftSize)
	for i := range a.frames {
		a.frames[i] = Frame{
			MagnitudesDB: make([]float64, bins),
			FreqStep:     freqStep,
			FFTSize:      fftSize,
			SampleRate:   a.sampleRate,
		}
	}

	if a.useKWeight {
		a.kWeight = design.KWeighting(a.sampleRate)
		if a.kWeight == nil {
			return fmt.Errorf("spectrum: k-weighting design failed for %v Hz", a.sampleRate)
		}
	}

	a.Reset()

	return nil
}

// SetFFTSize reconfigures the FFT size. The size must be a power of two
// in [MinFFTSize, MaxFFTSize]. All analysis state is reset.
func (a *Analyzer) SetFFTSize(n int) error {
	return a.reconfigure(n)
}

// SetOverlap reconfigures the frame overlap fraction (0..0.95).
// All analysis state is reset.
func (a *Analyzer) SetOverlap(overlap float64) error {
	if err := validateOverlap(overlap); err != nil {
		return err
	}

	a.overlap = overlap

	return a.reconfigure(a.fftSize)
}

// SetWindow reconfigures the analysis window type. All analysis state
// is reset.
func (a *Analyzer) SetWindow(t window.Type) error {
	prev := a.winType
	a.winType = t

	if err := a.reconfigure(a.fftSize); err != nil {
		a.winType = prev
		return err
	}

	return nil
}

// SetSmoothing updates the per-bin smoothing factor (0..0.99) without
// resetting analysis state.
func (a *Analyzer) SetSmoothing(alpha float64) error {
	if err := validateSmoothing(alpha); err != nil {
		return err
	}

	a.smoothing = alpha

	return nil
}

// FFTSize returns the current FFT size.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// Overlap returns the current overlap fraction.
func (a *Analyzer) Overlap() float64 { return a.overlap }

// HopSize returns the number of samples between analysis frames.
func (a *Analyzer) HopSize() int { return a.hop }

// NumBins returns the number of one-sided spectrum bins (fftSize/2+1).
func (a *Analyzer) NumBins() int { return a.fftSize/2 + 1 }

// FreqStep returns the bin spacing in Hz.
func (a *Analyzer) FreqStep() float64 { return a.sampleRate / float64(a.fftSize) }

// ProcessSample consumes one sample. It returns a newly emitted frame, or
// nil when no frame was due. The returned frame remains valid until the
// emission after next.
func (a *Analyzer) ProcessSample(x float64) *Frame {
	if a.kWeight != nil {
		x = a.kWeight.ProcessSample(x)
	}

	a.ring[a.writePos] = x

	a.writePos++
	if a.writePos >= a.fftSize {
		a.writePos = 0
	}

	if a.filled < a.fftSize {
		a.filled++
	}

	a.samplesToHop++
	if a.samplesToEmit > 0 {
		a.samplesToEmit--
	}

	if a.filled < a.fftSize || a.samplesToHop < a.hop {
		return nil
	}

	a.samplesToHop = 0
	a.analyzeFrame()

	if a.samplesToEmit > 0 {
		return nil
	}

	a.samplesToEmit = a.emitSpacing

	return a.emitFrame()
}

// ProcessBlock consumes a block of samples and returns the most recent
// frame emitted while doing so, or nil if none was due.
func (a *Analyzer) ProcessBlock(block []float64) *Frame {
	var latest *Frame

	for _, x := range block {
		if f := a.ProcessSample(x); f != nil {
			latest = f
		}
	}

	return latest
}

// analyzeFrame windows the ring contents, transforms, and folds the
// one-sided magnitude spectrum into the smoothed dB state.
func (a *Analyzer) analyzeFrame() {
	read := a.writePos
	for i := 0; i < a.fftSize; i++ {
		a.windowed[i] = a.ring[read]

		read++
		if read >= a.fftSize {
			read = 0
		}
	}

	if err := window.ApplyCoefficientsInPlace(a.windowed, a.win); err != nil {
		return
	}

	for i, x := range a.windowed {
		a.input[i] = complex(x, 0)
	}

	if err := a.plan.Forward(a.output, a.input); err != nil {
		return
	}

	bins := len(a.mags)
	for k := 0; k < bins; k++ {
		a.re[k] = real(a.output[k])
		a.im[k] = imag(a.output[k])
	}

	vecmath.Magnitude(a.mags, a.re, a.im)

	norm := float64(a.fftSize) * a.winGain
	last := bins - 1

	for k := 0; k < bins; k++ {
		mag := a.mags[k] / norm
		if k > 0 && k < last {
			mag *= 2
		}

		db := 20 * math.Log10(math.Max(eps, mag))
		if db < minDB {
			db = minDB
		}

		if !a.smoothingPrimed {
			a.dbState[k] = db
			continue
		}

		a.dbState[k] = a.smoothing*a.dbState[k] + (1-a.smoothing)*db
	}

	a.smoothingPrimed = true
}

// emitFrame copies the smoothed state into the inactive frame buffer and
// returns it. The two buffers alternate, so the previously returned frame
// stays intact until the next emission completes.
func (a *Analyzer) emitFrame() *Frame {
	a.active = 1 - a.active
	f := &a.frames[a.active]
	copy(f.MagnitudesDB, a.dbState)

	return f
}

// Reset clears the ring, smoothing state, and emission schedule. The
// configuration is kept.
func (a *Analyzer) Reset() {
	core.Zero(a.ring)

	for i := range a.dbState {
		a.dbState[i] = minDB
	}

	for i := range a.frames {
		for k := range a.frames[i].MagnitudesDB {
			a.frames[i].MagnitudesDB[k] = minDB
		}
	}

	a.writePos = 0
	a.filled = 0
	a.samplesToHop = 0
	a.samplesToEmit = 0
	a.smoothingPrimed = false

	if a.kWeight != nil {
		a.kWeight.Reset()
	}
}
