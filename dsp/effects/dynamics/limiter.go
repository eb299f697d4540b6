package dynamics

import (
	"fmt"
	"math"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/delay"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/truepeak"
)

const (
	defaultLimiterCeilingDB   = -1.0
	defaultLimiterLookaheadMs = 5.0
	defaultLimiterAttackMs    = 1.0
	defaultLimiterReleaseMs   = 100.0
	defaultLimiterKneeDB      = 2.0

	minLimiterCeilingDB   = -24.0
	maxLimiterCeilingDB   = 0.0
	minLimiterLookaheadMs = 0.0
	maxLimiterLookaheadMs = 10.0
)

// LimiterMetrics holds metering information for one limiter instance.
type LimiterMetrics struct {
	GainReductionDB float64 // current smoothed gain reduction, >= 0
	MaxReductionDB  float64 // maximum reduction since last reset
	TruePeakDB      float64 // output true peak in dBTP since last reset
}

// Limiter is a lookahead brickwall limiter. The program path is delayed
// by the lookahead span while a sliding-window maximum detects peaks
// ahead of time, so the applied gain never lets the delayed sample
// exceed the ceiling. Gain reduction is smoothed in the dB domain with
// separate attack and release time constants, but the instantaneous
// window constraint is always honored, which makes the ceiling a hard
// guarantee rather than a statistical one. A quadratic soft knee eases
// reduction in below the ceiling; the knee curve stays at or above the
// hard requirement inside the knee, so the ceiling guarantee survives
// any knee width.
type Limiter struct {
	sampleRate  float64
	ceilingDB   float64
	ceilingLin  float64
	lookaheadMs float64
	attackMs    float64
	releaseMs   float64
	kneeDB      float64

	ceilingLog2      float64
	halfKneeLog2     float64
	invKneeWidthLog2 float64
	kneeLowLin       float64

	attackCoeff  float64
	releaseCoeff float64

	line        *delay.Line
	lookSamples int

	// Monotonically decreasing deque over |x| across the lookahead
	// window. Entries index absolute sample positions.
	dqIdx  []int64
	dqVal  []float64
	dqHead int
	dqTail int
	pos    int64

	grDB float64

	tp     *truepeak.Detector
	maxGR  float64
	window int
}

// NewLimiter creates a lookahead limiter with mastering defaults:
// -1 dB ceiling, 5 ms lookahead, 1 ms attack, 100 ms release, 2 dB knee.
func NewLimiter(sampleRate float64) (*Limiter, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, fmt.Errorf("limiter %w", err)
	}

	tp, err := truepeak.New(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("limiter true peak: %w", err)
	}

	l := &Limiter{
		sampleRate:  sampleRate,
		ceilingDB:   defaultLimiterCeilingDB,
		lookaheadMs: defaultLimiterLookaheadMs,
		attackMs:    defaultLimiterAttackMs,
		releaseMs:   defaultLimiterReleaseMs,
		kneeDB:      defaultLimiterKneeDB,
		tp:          tp,
	}

	l.updateGainCurve()
	l.updateTimeConstants()

	if err := l.rebuild(); err != nil {
		return nil, err
	}

	return l, nil
}

// SetCeiling sets the output ceiling in dB (-24..0).
func (l *Limiter) SetCeiling(dB float64) error {
	if dB < minLimiterCeilingDB || dB > maxLimiterCeilingDB || !core.IsFinite(dB) {
		return fmt.Errorf("limiter ceiling must be in [%f, %f]: %f",
			minLimiterCeilingDB, maxLimiterCeilingDB, dB)
	}

	l.ceilingDB = dB
	l.updateGainCurve()

	return nil
}

// SetKnee sets the soft-knee width in dB (0..24). A zero width makes
// the gain curve a hard corner at the ceiling.
func (l *Limiter) SetKnee(dB float64) error {
	if dB < minKneeDB || dB > maxKneeDB || !core.IsFinite(dB) {
		return fmt.Errorf("limiter knee must be in [%f, %f]: %f", minKneeDB, maxKneeDB, dB)
	}

	l.kneeDB = dB
	l.updateGainCurve()

	return nil
}

// SetLookahead sets the lookahead span in milliseconds. Values outside
// [0, 10] are clamped. Changing the lookahead rebuilds the delay line
// and clears limiter state.
func (l *Limiter) SetLookahead(ms float64) error {
	if !core.IsFinite(ms) {
		return fmt.Errorf("limiter lookahead must be finite: %f", ms)
	}

	l.lookaheadMs = core.Clamp(ms, minLimiterLookaheadMs, maxLimiterLookaheadMs)

	return l.rebuild()
}

// SetAttack sets the gain-reduction attack time in milliseconds.
func (l *Limiter) SetAttack(ms float64) error {
	if ms < minAttackMs || ms > maxAttackMs || !core.IsFinite(ms) {
		return fmt.Errorf("limiter attack must be in [%f, %f]: %f", minAttackMs, maxAttackMs, ms)
	}

	l.attackMs = ms
	l.updateTimeConstants()

	return nil
}

// SetRelease sets the gain-reduction release time in milliseconds.
func (l *Limiter) SetRelease(ms float64) error {
	if ms < minReleaseMs || ms > maxReleaseMs || !core.IsFinite(ms) {
		return fmt.Errorf("limiter release must be in [%f, %f]: %f", minReleaseMs, maxReleaseMs, ms)
	}

	l.releaseMs = ms
	l.updateTimeConstants()

	return nil
}

// Ceiling returns the ceiling in dB.
func (l *Limiter) Ceiling() float64 { return l.ceilingDB }

// Lookahead returns the lookahead span in milliseconds.
func (l *Limiter) Lookahead() float64 { return l.lookaheadMs }

// Attack returns the attack time in milliseconds.
func (l *Limiter) Attack() float64 { return l.attackMs }

// Release returns the release time in milliseconds.
func (l *Limiter) Release() float64 { return l.releaseMs }

// Knee returns the soft-knee width in dB.
func (l *Limiter) Knee() float64 { return l.kneeDB }

// SampleRate returns the sample rate in Hz.
func (l *Limiter) SampleRate() float64 { return l.sampleRate }

// LatencySamples returns the program-path delay in samples.
func (l *Limiter) LatencySamples() int { return l.lookSamples }

func (l *Limiter) updateGainCurve() {
	l.ceilingLin = mathPower10(l.ceilingDB / 20)
	l.ceilingLog2 = l.ceilingDB * log2Of10Div20
	l.halfKneeLog2 = l.kneeDB * log2Of10Div20 * 0.5

	if l.kneeDB > 0 {
		l.invKneeWidthLog2 = 1 / (l.kneeDB * log2Of10Div20)
	} else {
		l.invKneeWidthLog2 = 0
	}

	// Reduction starts at the lower knee edge.
	l.kneeLowLin = mathPower2(l.ceilingLog2 - l.halfKneeLog2)
}

func (l *Limiter) updateTimeConstants() {
	l.attackCoeff = 1 - math.Exp(-math.Ln2/(l.attackMs*0.001*l.sampleRate))
	l.releaseCoeff = math.Exp(-math.Ln2 / (l.releaseMs * 0.001 * l.sampleRate))
}

func (l *Limiter) rebuild() error {
	l.lookSamples = int(math.Ceil(l.lookaheadMs * 0.001 * l.sampleRate))

	if l.lookSamples > 0 {
		line, err := delay.New(l.lookSamples)
		if err != nil {
			return fmt.Errorf("limiter delay: %w", err)
		}

		l.line = line
	} else {
		l.line = nil
	}

	// The window spans the delayed sample through the newest input.
	l.window = l.lookSamples + 1
	l.dqIdx = make([]int64, l.window+1)
	l.dqVal = make([]float64, l.window+1)

	l.Reset()

	return nil
}

// Reset clears all delay, window, and gain state. Metrics are reset too.
func (l *Limiter) Reset() {
	if l.line != nil {
		l.line.Reset()
	}

	l.dqHead = 0
	l.dqTail = 0
	l.pos = 0
	l.grDB = 0
	l.maxGR = 0
	l.tp.Reset()
}

// ProcessSample consumes one input sample and returns the delayed,
// gain-limited output. Output magnitude never exceeds the ceiling.
func (l *Limiter) ProcessSample(input float64) float64 {
	a := abs(input)

	// Maintain the monotonic deque: evict dominated tail entries, then
	// expire entries that fell out of the window.
	for l.dqTail > l.dqHead && l.dqVal[(l.dqTail-1)%len(l.dqVal)] <= a {
		l.dqTail--
	}

	slot := l.dqTail % len(l.dqVal)
	l.dqIdx[slot] = l.pos
	l.dqVal[slot] = a
	l.dqTail++

	expire := l.pos - int64(l.window) + 1
	for l.dqHead < l.dqTail && l.dqIdx[l.dqHead%len(l.dqIdx)] < expire {
		l.dqHead++
	}

	windowPeak := l.dqVal[l.dqHead%len(l.dqVal)]
	l.pos++

	// Required reduction so the loudest sample in the window lands at
	// the ceiling, with the quadratic knee blend easing in below it.
	// Inside the knee (o + w/2)^2 / 2w never drops under o, so the
	// instantaneous constraint below still caps the output.
	targetGR := 0.0
	if windowPeak > l.kneeLowLin {
		overshoot := mathLog2(windowPeak) - l.ceilingLog2
		if overshoot > l.halfKneeLog2 {
			targetGR = overshoot / log2Of10Div20
		} else {
			scratch := overshoot + l.halfKneeLog2
			targetGR = scratch * scratch * 0.5 * l.invKneeWidthLog2 / log2Of10Div20
		}
	}

	// Smooth in the dB domain: attack while reduction grows, release
	// while it relaxes.
	if targetGR > l.grDB {
		l.grDB += (targetGR - l.grDB) * l.attackCoeff
	} else {
		l.grDB = core.FlushDenormals(targetGR + (l.grDB-targetGR)*l.releaseCoeff)
	}

	// The instantaneous window constraint overrides smoothing, which is
	// what makes the ceiling a hard limit.
	applied := l.grDB
	if targetGR > applied {
		applied = targetGR
	}

	delayed := input
	if l.line != nil {
		delayed = l.line.WriteRead(input)
	}

	out := delayed * mathPower2(-applied*log2Of10Div20)

	if applied > l.maxGR {
		l.maxGR = applied
	}

	l.tp.ProcessSample(out)

	return out
}

// ProcessInPlace limits buf in place.
func (l *Limiter) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = l.ProcessSample(buf[i])
	}
}

// GainReductionDB returns the current smoothed gain reduction in dB.
func (l *Limiter) GainReductionDB() float64 { return l.grDB }

// Metrics returns the current metering values.
func (l *Limiter) Metrics() LimiterMetrics {
	return LimiterMetrics{
		GainReductionDB: l.grDB,
		MaxReductionDB:  l.maxGR,
		TruePeakDB:      l.tp.TruePeakDB(),
	}
}
