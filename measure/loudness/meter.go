package loudness

import (
	"fmt"
	"math"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/biquad"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/filter/design"
	"github.com/jaywtf82/cno-voidline-sub002/dsp/truepeak"
)

const (
	// Integration window durations in seconds (BS.1770-4).
	momentaryDuration = 0.4
	shortTermDuration = 3.0

	// Gating parameters.
	absThreshold = -70.0
	relThreshold = -10.0
	blockOverlap = 0.75

	// Loudness floor reported for silence and not-ready queries.
	SilenceFloor = -70.0

	// Histogram of gating-block loudness: 0.1 LU bins over [-70, +5).
	histMin      = -70.0
	histMax      = 5.0
	histBinWidth = 0.1
	histBins     = int((histMax - histMin) / histBinWidth)
)

// histBin accumulates the gating blocks whose loudness falls in one
// 0.1 LU interval. The power sum keeps gated means exact rather than
// quantized to the bin center.
type histBin struct {
	count    int64
	powerSum float64
}

// Meter implements BS.1770-4 loudness metering over one to five channels.
// Not safe for concurrent use.
type Meter struct {
	sampleRate float64
	channels   int

	kWeight []*biquad.Chain
	weights []float64

	momWindow    int
	shortWindow  int
	momHistory   [][]float64
	shortHistory [][]float64
	momWriteIdx  int
	shortWrite   int
	momSums      []float64
	shortSums    []float64

	blockStep    int
	sinceStep    int
	totalSamples int64

	hist       []histBin
	histCount  int64
	histPowSum float64

	peaks []*truepeak.Detector
}

// NewMeter creates a loudness meter. Channels 4 and 5 receive the
// BS.1770-4 surround weighting of +1.5 dB.
func NewMeter(opts ...MeterOption) (*Meter, error) {
	cfg := ApplyMeterOptions(opts...)

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("loudness: sample rate must be positive, got %v", cfg.SampleRate)
	}

	if cfg.Channels < 1 || cfg.Channels > 5 {
		return nil, fmt.Errorf("loudness: channels must be in [1, 5], got %d", cfg.Channels)
	}

	m := &Meter{
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}

	m.kWeight = make([]*biquad.Chain, m.channels)
	m.weights = make([]float64, m.channels)
	m.peaks = make([]*truepeak.Detector, m.channels)

	for i := range m.channels {
		m.kWeight[i] = design.KWeighting(m.sampleRate)
		if m.kWeight[i] == nil {
			return nil, fmt.Errorf("loudness: k-weighting design failed for %v Hz", m.sampleRate)
		}

		m.weights[i] = channelWeight(i)

		det, err := truepeak.New(m.sampleRate, truepeak.WithDecay(cfg.TruePeakDecayDBPerSec))
		if err != nil {
			return nil, fmt.Errorf("loudness: true peak detector: %w", err)
		}

		m.peaks[i] = det
	}

	m.momWindow = int(math.Round(momentaryDuration * m.sampleRate))
	m.shortWindow = int(math.Round(shortTermDuration * m.sampleRate))

	m.momHistory = make([][]float64, m.channels)
	m.shortHistory = make([][]float64, m.channels)

	for i := range m.channels {
		m.momHistory[i] = make([]float64, m.momWindow)
		m.shortHistory[i] = make([]float64, m.shortWindow)
	}

	m.momSums = make([]float64, m.channels)
	m.shortSums = make([]float64, m.channels)

	m.blockStep = max(int(math.Round(momentaryDuration*(1-blockOverlap)*m.sampleRate)), 1)
	m.hist = make([]histBin, histBins)

	m.Reset()

	return m, nil
}

// channelWeight returns the BS.1770-4 weighting G_i: unity for the first
// three channels (L, R, C), +1.5 dB (1.41) for surround channels.
func channelWeight(i int) float64 {
	if i >= 3 {
		return 1.41
	}

	return 1.0
}

// SampleRate returns the configured sample rate in Hz.
func (m *Meter) SampleRate() float64 { return m.sampleRate }

// Channels returns the configured channel count.
func (m *Meter) Channels() int { return m.channels }

// Reset clears all measurement state. Idempotent.
func (m *Meter) Reset() {
	for i := range m.channels {
		m.kWeight[i].Reset()
		m.peaks[i].Reset()

		for j := range m.momHistory[i] {
			m.momHistory[i][j] = 0
		}

		for j := range m.shortHistory[i] {
			m.shortHistory[i][j] = 0
		}

		m.momSums[i] = 0
		m.shortSums[i] = 0
	}

	for i := range m.hist {
		m.hist[i] = histBin{}
	}

	m.momWriteIdx = 0
	m.shortWrite = 0
	m.sinceStep = 0
	m.totalSamples = 0
	m.histCount = 0
	m.histPowSum = 0
}

// ProcessFrame consumes one multichannel frame. The frame must hold at
// least Channels samples; extra samples are ignored.
func (m *Meter) ProcessFrame(frame []float64) {
	if len(frame) < m.channels {
		return
	}

	for i := range m.channels {
		x := frame[i]
		m.peaks[i].ProcessSample(x)

		v := m.kWeight[i].ProcessSample(x)
		sq := v * v

		oldMom := m.momHistory[i][m.momWriteIdx]
		m.momHistory[i][m.momWriteIdx] = sq

		m.momSums[i] += sq - oldMom
		if m.momSums[i] < 0 {
			m.momSums[i] = 0
		}

		oldShort := m.shortHistory[i][m.shortWrite]
		m.shortHistory[i][m.shortWrite] = sq

		m.shortSums[i] += sq - oldShort
		if m.shortSums[i] < 0 {
			m.shortSums[i] = 0
		}
	}

	m.momWriteIdx++
	if m.momWriteIdx >= m.momWindow {
		m.momWriteIdx = 0
	}

	m.shortWrite++
	if m.shortWrite >= m.shortWindow {
		m.shortWrite = 0
	}

	m.totalSamples++

	m.sinceStep++
	if m.sinceStep >= m.blockStep && m.totalSamples >= int64(m.momWindow) {
		m.sinceStep = 0
		m.addGatingBlock()
	}
}

// ProcessBlock consumes deinterleaved channel blocks of equal length.
// The slice must hold Channels blocks.
func (m *Meter) ProcessBlock(channels [][]float64) error {
	if len(channels) != m.channels {
		return fmt.Errorf("loudness: %d channel blocks required, got %d", m.channels, len(channels))
	}

	n := len(channels[0])
	for i := 1; i < m.channels; i++ {
		if len(channels[i]) != n {
			return fmt.Errorf("loudness: channel %d length %d, want %d", i, len(channels[i]), n)
		}
	}

	var frame [5]float64

	for j := 0; j < n; j++ {
		for i := range m.channels {
			frame[i] = channels[i][j]
		}

		m.ProcessFrame(frame[:m.channels])
	}

	return nil
}

// addGatingBlock bins the weighted mean-square power of the trailing
// 400 ms into the loudness histogram. Blocks at or below the absolute
// gate fall outside the histogram range and are dropped here, which is
// exactly the absolute gating stage.
func (m *Meter) addGatingBlock() {
	power := m.weightedPower(m.momSums, m.momWindow)

	l := toLUFS(power)
	if l <= absThreshold {
		return
	}

	idx := int((l - histMin) / histBinWidth)
	if idx >= histBins {
		idx = histBins - 1
	}

	m.hist[idx].count++
	m.hist[idx].powerSum += power
	m.histCount++
	m.histPowSum += power
}

func (m *Meter) weightedPower(sums []float64, window int) float64 {
	power := 0.0
	for i := range m.channels {
		power += m.weights[i] * sums[i] / float64(window)
	}

	return power
}

// Momentary returns the loudness of the trailing 400 ms window in LUFS.
func (m *Meter) Momentary() float64 {
	return toLUFS(m.weightedPower(m.momSums, m.momWindow))
}

// ShortTerm returns the loudness of the trailing 3 s window in LUFS.
func (m *Meter) ShortTerm() float64 {
	return toLUFS(m.weightedPower(m.shortSums, m.shortWindow))
}

// Integrated returns the gated integrated loudness in LUFS since the
// last Reset. Both BS.1770-4 gates are applied: the absolute gate at
// -70 LUFS and the relative gate 10 LU below the absolutely gated mean.
// Returns the -70 floor when no block has survived the gates.
func (m *Meter) Integrated() float64 {
	if m.histCount == 0 {
		return SilenceFloor
	}

	gammaRel := toLUFS(m.histPowSum/float64(m.histCount)) + relThreshold

	var (
		power float64
		count int64
	)

	m.scanAbove(gammaRel, func(b *histBin) {
		power += b.powerSum
		count += b.count
	})

	if count == 0 {
		return SilenceFloor
	}

	return toLUFS(power / float64(count))
}

// Range returns the loudness range (LRA) in LU: the spread between the
// 10th and 95th percentiles of gating-block loudness after the absolute
// gate and a relative gate 20 LU below the gated mean. Returns 0 when
// fewer than two blocks survive.
func (m *Meter) Range() float64 {
	if m.histCount == 0 {
		return 0
	}

	gammaRel := toLUFS(m.histPowSum/float64(m.histCount)) - 20

	var count int64

	m.scanAbove(gammaRel, func(b *histBin) {
		count += b.count
	})

	if count < 2 {
		return 0
	}

	lo := m.percentileAbove(gammaRel, count, 0.10)
	hi := m.percentileAbove(gammaRel, count, 0.95)

	lra := hi - lo
	if lra < 0 {
		lra = 0
	}

	return lra
}

// scanAbove visits each non-empty histogram bin whose loudness exceeds
// the threshold, in ascending loudness order.
func (m *Meter) scanAbove(threshold float64, visit func(*histBin)) {
	start := 0
	if threshold > histMin {
		start = int((threshold - histMin) / histBinWidth)
		if start < 0 {
			start = 0
		}
	}

	for i := start; i < histBins; i++ {
		if m.hist[i].count == 0 {
			continue
		}

		if binLoudness(i) <= threshold {
			continue
		}

		visit(&m.hist[i])
	}
}

// percentileAbove returns the loudness of the bin containing the given
// percentile of the total block count above the threshold.
func (m *Meter) percentileAbove(threshold float64, total int64, pct float64) float64 {
	target := int64(math.Ceil(pct * float64(total)))
	if target < 1 {
		target = 1
	}

	var seen int64

	result := SilenceFloor

	m.scanAbove(threshold, func(b *histBin) {
		if seen >= target {
			return
		}

		seen += b.count
		if seen >= target {
			result = toLUFS(b.powerSum / float64(b.count))
		}
	})

	return result
}

// binLoudness returns the representative loudness of histogram bin i
// (the bin center).
func binLoudness(i int) float64 {
	return histMin + (float64(i)+0.5)*histBinWidth
}

// TruePeak returns the maximum inter-sample peak across all channels
// since Reset, in linear amplitude.
func (m *Meter) TruePeak() float64 {
	peak := 0.0

	for _, d := range m.peaks {
		if tp := d.TruePeak(); tp > peak {
			peak = tp
		}
	}

	return peak
}

// TruePeakDB returns TruePeak in dBTP.
func (m *Meter) TruePeakDB() float64 {
	peak := 0.0

	for _, d := range m.peaks {
		if tp := d.TruePeak(); tp > peak {
			peak = tp
		}
	}

	if peak <= 0 {
		return -120
	}

	return core.LinearToDB(peak)
}

// ChannelTruePeaks returns the per-channel maximum inter-sample peaks
// since Reset, in linear amplitude.
func (m *Meter) ChannelTruePeaks() []float64 {
	out := make([]float64, m.channels)
	for i, d := range m.peaks {
		out[i] = d.TruePeak()
	}

	return out
}

// toLUFS converts a weighted mean-square power to loudness units. Zero or
// negative power maps to the silence floor so queries never return NaN.
func toLUFS(meanSquare float64) float64 {
	if meanSquare <= 1e-15 {
		return SilenceFloor
	}

	l := -0.691 + core.LinearPowerToDB(meanSquare)
	if l < SilenceFloor {
		return SilenceFloor
	}

	return l
}
