package dynamics

import (
	"fmt"
	"math"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
)

const (
	minRatio     = 1.0
	maxRatio     = 100.0
	minAttackMs  = 0.1
	maxAttackMs  = 1000.0
	minReleaseMs = 1.0
	maxReleaseMs = 5000.0
	minKneeDB    = 0.0
	maxKneeDB    = 24.0
	minRMSMs     = 1.0
	maxRMSMs     = 1000.0

	// log2Of10Div20 converts dB to the log2 domain: log2(10) / 20.
	log2Of10Div20 = 0.166096404744
)

// DetectorMode selects the level detector algorithm.
type DetectorMode int

const (
	// DetectorPeak uses an absolute-value peak follower.
	DetectorPeak DetectorMode = iota
	// DetectorRMS uses a moving RMS detector with ring-buffer state.
	DetectorRMS
)

// gainComputer holds the shared detector, envelope follower, and
// log2-domain soft-knee gain calculation used by the compressor and the
// multiband bands.
type gainComputer struct {
	sampleRate  float64
	mode        DetectorMode
	thresholdDB float64
	ratio       float64
	kneeDB      float64
	attackMs    float64
	releaseMs   float64
	rmsMs       float64

	envelope     float64
	attackCoeff  float64
	releaseCoeff float64

	rmsSquares []float64
	rmsIndex   int
	rmsFilled  int
	rmsSum     float64

	thresholdLog2    float64
	kneeWidthLog2    float64
	invKneeWidthLog2 float64
}

func newGainComputer(sampleRate float64) (*gainComputer, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, err
	}

	g := &gainComputer{
		sampleRate:  sampleRate,
		mode:        DetectorPeak,
		thresholdDB: -20,
		ratio:       4,
		kneeDB:      6,
		attackMs:    10,
		releaseMs:   100,
		rmsMs:       50,
	}

	g.recalculate()

	return g, nil
}

func (g *gainComputer) recalculate() {
	g.attackCoeff = 1 - math.Exp(-math.Ln2/(g.attackMs*0.001*g.sampleRate))
	g.releaseCoeff = math.Exp(-math.Ln2 / (g.releaseMs * 0.001 * g.sampleRate))

	g.thresholdLog2 = g.thresholdDB * log2Of10Div20

	g.kneeWidthLog2 = g.kneeDB * log2Of10Div20
	if g.kneeDB > 0 {
		g.invKneeWidthLog2 = 1 / g.kneeWidthLog2
	} else {
		g.invKneeWidthLog2 = 0
	}

	samples := max(int(math.Round(g.rmsMs*0.001*g.sampleRate)), 1)
	if len(g.rmsSquares) != samples {
		g.rmsSquares = make([]float64, samples)
		g.rmsIndex = 0
		g.rmsFilled = 0
		g.rmsSum = 0
	}
}

// detectorLevel follows the rectified (or RMS) level with separate
// attack and release time constants.
func (g *gainComputer) detectorLevel(source float64) float64 {
	if g.mode == DetectorRMS {
		source = g.updateRMS(source)
	}

	if source > g.envelope {
		g.envelope += (source - g.envelope) * g.attackCoeff
	} else {
		g.envelope = core.FlushDenormals(source + (g.envelope-source)*g.releaseCoeff)
	}

	return g.envelope
}

func (g *gainComputer) updateRMS(source float64) float64 {
	square := source * source

	if g.rmsFilled == len(g.rmsSquares) {
		g.rmsSum -= g.rmsSquares[g.rmsIndex]
	} else {
		g.rmsFilled++
	}

	g.rmsSquares[g.rmsIndex] = square
	g.rmsSum += square

	g.rmsIndex++
	if g.rmsIndex >= len(g.rmsSquares) {
		g.rmsIndex = 0
	}

	mean := g.rmsSum / float64(len(g.rmsSquares))
	if mean <= 0 {
		return 0
	}

	return math.Sqrt(mean)
}

// gainForLevel computes the gain multiplier for a detector level using
// the log2-domain soft-knee formula: a quadratic blend inside the knee,
// the straight ratio line beyond it.
func (g *gainComputer) gainForLevel(level float64) float64 {
	if level <= 0 {
		return 1.0
	}

	overshoot := mathLog2(level) - g.thresholdLog2
	compressionFactor := 1.0 - 1.0/g.ratio

	if g.kneeDB <= 0 {
		if overshoot <= 0 {
			return 1.0
		}

		return mathPower2(-overshoot * compressionFactor)
	}

	halfWidth := g.kneeWidthLog2 * 0.5

	var effectiveOvershoot float64

	switch {
	case overshoot < -halfWidth:
		return 1.0
	case overshoot > halfWidth:
		effectiveOvershoot = overshoot
	default:
		scratch := overshoot + halfWidth
		effectiveOvershoot = scratch * scratch * 0.5 * g.invKneeWidthLog2
	}

	return mathPower2(-effectiveOvershoot * compressionFactor)
}

func (g *gainComputer) Reset() {
	g.envelope = 0
	g.rmsIndex = 0
	g.rmsFilled = 0
	g.rmsSum = 0

	core.Zero(g.rmsSquares)
}

func validateSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("sample rate must be positive and finite: %f", sampleRate)
	}

	return nil
}
