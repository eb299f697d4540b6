package dynamics

import (
	"fmt"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
)

// CompressorMetrics holds metering information for visualization.
type CompressorMetrics struct {
	InputPeak     float64 // maximum input level since last reset
	OutputPeak    float64 // maximum output level since last reset
	GainReduction float64 // minimum gain (maximum reduction) since last reset
}

// Compressor implements a soft-knee compressor with log2-domain gain
// calculation for smooth compression curves. Mono; instantiate per
// channel or per band for wider formats.
type Compressor struct {
	core *gainComputer

	makeupGainDB  float64
	makeupGainLin float64
	autoMakeup    bool

	metrics CompressorMetrics
}

// NewCompressor creates a compressor with mastering defaults:
// -20 dB threshold, 4:1 ratio, 6 dB knee, 10 ms attack, 100 ms release,
// auto makeup enabled.
func NewCompressor(sampleRate float64) (*Compressor, error) {
	core, err := newGainComputer(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("compressor %w", err)
	}

	c := &Compressor{core: core, autoMakeup: true}
	c.updateMakeup()
	c.ResetMetrics()

	return c, nil
}

// SetThreshold sets the compression threshold in dB.
func (c *Compressor) SetThreshold(dB float64) error {
	if !core.IsFinite(dB) {
		return fmt.Errorf("compressor threshold must be finite: %f", dB)
	}

	c.core.thresholdDB = dB
	c.core.recalculate()
	c.updateMakeup()

	return nil
}

// SetRatio sets the compression ratio (1 = none, 100 ≈ limiting).
func (c *Compressor) SetRatio(ratio float64) error {
	if ratio < minRatio || ratio > maxRatio || !core.IsFinite(ratio) {
		return fmt.Errorf("compressor ratio must be in [%f, %f]: %f", minRatio, maxRatio, ratio)
	}

	c.core.ratio = ratio
	c.core.recalculate()
	c.updateMakeup()

	return nil
}

// SetKnee sets the soft-knee width in dB (0 = hard knee).
func (c *Compressor) SetKnee(kneeDB float64) error {
	if kneeDB < minKneeDB || kneeDB > maxKneeDB || !core.IsFinite(kneeDB) {
		return fmt.Errorf("compressor knee must be in [%f, %f]: %f", minKneeDB, maxKneeDB, kneeDB)
	}

	c.core.kneeDB = kneeDB
	c.core.recalculate()

	return nil
}

// SetAttack sets the attack time in milliseconds.
func (c *Compressor) SetAttack(ms float64) error {
	if ms < minAttackMs || ms > maxAttackMs || !core.IsFinite(ms) {
		return fmt.Errorf("compressor attack must be in [%f, %f]: %f", minAttackMs, maxAttackMs, ms)
	}

	c.core.attackMs = ms
	c.core.recalculate()

	return nil
}

// SetRelease sets the release time in milliseconds.
func (c *Compressor) SetRelease(ms float64) error {
	if ms < minReleaseMs || ms > maxReleaseMs || !core.IsFinite(ms) {
		return fmt.Errorf("compressor release must be in [%f, %f]: %f", minReleaseMs, maxReleaseMs, ms)
	}

	c.core.releaseMs = ms
	c.core.recalculate()

	return nil
}

// SetDetectorMode selects peak or RMS detection.
func (c *Compressor) SetDetectorMode(mode DetectorMode) error {
	if mode != DetectorPeak && mode != DetectorRMS {
		return fmt.Errorf("invalid detector mode: %d", mode)
	}

	c.core.mode = mode

	return nil
}

// SetRMSWindow sets the RMS detector window in milliseconds.
func (c *Compressor) SetRMSWindow(ms float64) error {
	if ms < minRMSMs || ms > maxRMSMs || !core.IsFinite(ms) {
		return fmt.Errorf("compressor rms window must be in [%f, %f]: %f", minRMSMs, maxRMSMs, ms)
	}

	c.core.rmsMs = ms
	c.core.recalculate()

	return nil
}

// SetMakeupGain sets manual makeup gain in dB and disables auto makeup.
func (c *Compressor) SetMakeupGain(dB float64) error {
	if !core.IsFinite(dB) {
		return fmt.Errorf("compressor makeup gain must be finite: %f", dB)
	}

	c.makeupGainDB = dB
	c.autoMakeup = false
	c.makeupGainLin = mathPower10(dB / 20)

	return nil
}

// SetAutoMakeup enables or disables automatic makeup gain. When enabled,
// makeup compensates for the reduction at threshold.
func (c *Compressor) SetAutoMakeup(enable bool) error {
	c.autoMakeup = enable
	c.updateMakeup()

	return nil
}

// Threshold returns the current threshold in dB.
func (c *Compressor) Threshold() float64 { return c.core.thresholdDB }

// Ratio returns the current compression ratio.
func (c *Compressor) Ratio() float64 { return c.core.ratio }

// Knee returns the current knee width in dB.
func (c *Compressor) Knee() float64 { return c.core.kneeDB }

// Attack returns the current attack time in milliseconds.
func (c *Compressor) Attack() float64 { return c.core.attackMs }

// Release returns the current release time in milliseconds.
func (c *Compressor) Release() float64 { return c.core.releaseMs }

// MakeupGain returns the current makeup gain in dB.
func (c *Compressor) MakeupGain() float64 { return c.makeupGainDB }

// AutoMakeup reports whether automatic makeup gain is enabled.
func (c *Compressor) AutoMakeup() bool { return c.autoMakeup }

// SampleRate returns the sample rate in Hz.
func (c *Compressor) SampleRate() float64 { return c.core.sampleRate }

// ProcessSample processes one sample through the compressor.
func (c *Compressor) ProcessSample(input float64) float64 {
	inputLevel := abs(input)
	level := c.core.detectorLevel(inputLevel)
	gain := c.core.gainForLevel(level)

	output := input * gain * c.makeupGainLin
	c.updateMetrics(inputLevel, abs(output), gain)

	return output
}

// ProcessInPlace applies compression to buf in place.
func (c *Compressor) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = c.ProcessSample(buf[i])
	}
}

// GainForLevel returns the steady-state gain for an input magnitude,
// for plotting the compression curve.
func (c *Compressor) GainForLevel(level float64) float64 {
	return c.core.gainForLevel(abs(level))
}

// Reset clears detector state and metrics.
func (c *Compressor) Reset() {
	c.core.Reset()
	c.ResetMetrics()
}

// Metrics returns the current metering values.
func (c *Compressor) Metrics() CompressorMetrics { return c.metrics }

// ResetMetrics clears metering state without touching detector state.
func (c *Compressor) ResetMetrics() {
	c.metrics = CompressorMetrics{GainReduction: 1.0}
}

func (c *Compressor) updateMakeup() {
	if c.autoMakeup {
		c.makeupGainDB = -c.core.thresholdDB * (1.0 - 1.0/c.core.ratio)
	}

	c.makeupGainLin = mathPower10(c.makeupGainDB / 20)
}

func (c *Compressor) updateMetrics(inputLevel, outputLevel, gain float64) {
	if inputLevel > c.metrics.InputPeak {
		c.metrics.InputPeak = inputLevel
	}

	if outputLevel > c.metrics.OutputPeak {
		c.metrics.OutputPeak = outputLevel
	}

	if gain < c.metrics.GainReduction {
		c.metrics.GainReduction = gain
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}

	return x
}
