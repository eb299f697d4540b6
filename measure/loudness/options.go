package loudness

import "github.com/jaywtf82/cno-voidline-sub002/dsp/core"

// MeterConfig defines configuration for the loudness meter.
type MeterConfig struct {
	core.ProcessorConfig

	// TruePeakDecayDBPerSec controls the held true-peak release rate.
	TruePeakDecayDBPerSec float64
}

// MeterOption mutates a MeterConfig.
type MeterOption func(*MeterConfig)

// DefaultMeterConfig returns sensible defaults: 48 kHz stereo with a
// 6 dB/s true-peak hold release.
func DefaultMeterConfig() MeterConfig {
	return MeterConfig{
		ProcessorConfig:       core.DefaultProcessorConfig(),
		TruePeakDecayDBPerSec: 6,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) MeterOption {
	return func(cfg *MeterConfig) {
		cfg.SampleRate = sampleRate
	}
}

// WithChannels sets the number of channels (1 for mono, 2 for stereo,
// up to 5 for surround with BS.1770 channel weighting).
func WithChannels(channels int) MeterOption {
	return func(cfg *MeterConfig) {
		cfg.Channels = channels
	}
}

// WithTruePeakDecay sets the held true-peak release rate in dB per second.
func WithTruePeakDecay(dbPerSec float64) MeterOption {
	return func(cfg *MeterConfig) {
		cfg.TruePeakDecayDBPerSec = dbPerSec
	}
}

// ApplyMeterOptions applies zero or more options to the default config.
func ApplyMeterOptions(opts ...MeterOption) MeterConfig {
	cfg := DefaultMeterConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}
