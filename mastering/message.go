package mastering

import "sync"

// Kind tags a published measurement message.
type Kind string

const (
	KindLoudness Kind = "loudness"
	KindSpectrum Kind = "spectrum"
	KindLimiter  Kind = "limiter"
	KindLevels   Kind = "levels"
)

// Message is a measurement payload published by the engine.
type Message interface {
	Kind() Kind
}

// LoudnessMessage carries BS.1770 loudness readings in LUFS/LU and the
// linear-domain true peak.
type LoudnessMessage struct {
	Momentary  float64
	ShortTerm  float64
	Integrated float64
	Range      float64
	TruePeakDB float64
}

func (LoudnessMessage) Kind() Kind { return KindLoudness }

// SpectrumMessage carries one magnitude spectrum in dBFS. MagnitudesDB
// stays valid until the emission after next; consumers that hold frames
// longer must copy.
type SpectrumMessage struct {
	MagnitudesDB []float64
	FreqStep     float64
	FFTSize      int
	SampleRate   float64
}

func (SpectrumMessage) Kind() Kind { return KindSpectrum }

// LimiterMessage reports the output limiter state.
type LimiterMessage struct {
	GainReductionDB float64
	TruePeakDB      float64
}

func (LimiterMessage) Kind() Kind { return KindLimiter }

// LevelsMessage carries stereo peak, RMS, and phase correlation meters.
type LevelsMessage struct {
	PeakL       float64
	PeakR       float64
	RMSL        float64
	RMSR        float64
	Correlation float64
}

func (LevelsMessage) Kind() Kind { return KindLevels }

// Sink receives messages from the engine. Publish must not block; the
// engine never waits for delivery.
type Sink interface {
	Publish(Message)
}

// LatestSink stores the most recent message per kind. Older messages
// are overwritten, never queued. Safe for concurrent use.
type LatestSink struct {
	mu     sync.Mutex
	latest map[Kind]Message
}

// NewLatestSink creates an empty last-value-wins sink.
func NewLatestSink() *LatestSink {
	return &LatestSink{latest: make(map[Kind]Message)}
}

// Publish stores m, replacing any previous message of the same kind.
func (s *LatestSink) Publish(m Message) {
	s.mu.Lock()
	s.latest[m.Kind()] = m
	s.mu.Unlock()
}

// Latest returns the most recent message of the given kind.
func (s *LatestSink) Latest(k Kind) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.latest[k]

	return m, ok
}
