package spectrum

import (
	"math"
	"testing"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/window"
)

const testSampleRate = 48000.0

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"fft size too small", []Option{WithFFTSize(256)}},
		{"fft size too large", []Option{WithFFTSize(16384)}},
		{"fft size not power of two", []Option{WithFFTSize(1000)}},
		{"negative overlap", []Option{WithOverlap(-0.1)}},
		{"overlap too high", []Option{WithOverlap(0.99)}},
		{"negative smoothing", []Option{WithSmoothing(-0.5)}},
		{"smoothing too high", []Option{WithSmoothing(1)}},
		{"negative frame rate", []Option{WithMaxFrameRate(-1)}},
		{"kaiser window unsupported", []Option{WithWindow(window.TypeKaiser)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(testSampleRate, tt.opts...); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := New(0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestFFTRoundTrip(t *testing.T) {
	for size := MinFFTSize; size <= MaxFFTSize; size *= 2 {
		plan, err := algofft.NewPlan64(size)
		if err != nil {
			t.Fatalf("NewPlan64(%d): %v", size, err)
		}

		in := make([]complex128, size)
		for i := range in {
			in[i] = complex(math.Sin(0.37*float64(i)), 0)
		}

		freq := make([]complex128, size)
		back := make([]complex128, size)

		if err := plan.Forward(freq, in); err != nil {
			t.Fatalf("Forward(%d): %v", size, err)
		}

		if err := plan.Inverse(back, freq); err != nil {
			t.Fatalf("Inverse(%d): %v", size, err)
		}

		for i := range in {
			if d := real(back[i]) - real(in[i]); math.Abs(d) > 1e-9 {
				t.Fatalf("size %d: round-trip error %v at sample %d", size, d, i)
			}
		}
	}
}

func TestSineBinPeak(t *testing.T) {
	const fftSize = 2048

	a, err := New(testSampleRate,
		WithFFTSize(fftSize),
		WithWindow(window.TypeHann),
		WithSmoothing(0),
		WithMaxFrameRate(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Bin-centered frequency so the Hann mainlobe peaks exactly on one bin.
	bin := 43
	freq := float64(bin) * testSampleRate / fftSize
	w := 2 * math.Pi * freq / testSampleRate

	var frame *Frame

	for i := 0; i < fftSize; i++ {
		if f := a.ProcessSample(math.Sin(w * float64(i))); f != nil {
			frame = f
		}
	}

	if frame == nil {
		t.Fatal("no frame emitted after fftSize samples")
	}

	if got := frame.MagnitudesDB[bin]; math.Abs(got) > 0.5 {
		t.Errorf("full-scale sine bin = %.2f dBFS, want 0 within 0.5", got)
	}

	// Energy far from the tone stays near the floor.
	if got := frame.MagnitudesDB[bin+500]; got > -60 {
		t.Errorf("distant bin = %.2f dBFS, want < -60", got)
	}

	if frame.FFTSize != fftSize {
		t.Errorf("frame FFTSize = %d, want %d", frame.FFTSize, fftSize)
	}

	wantStep := testSampleRate / fftSize
	if math.Abs(frame.FreqStep-wantStep) > 1e-9 {
		t.Errorf("frame FreqStep = %v, want %v", frame.FreqStep, wantStep)
	}
}

func TestFrameOwnership(t *testing.T) {
	a, err := New(testSampleRate,
		WithFFTSize(512),
		WithSmoothing(0),
		WithMaxFrameRate(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	signal := make([]float64, 512)
	for i := range signal {
		signal[i] = math.Sin(0.2 * float64(i))
	}

	first := a.ProcessBlock(signal)
	if first == nil {
		t.Fatal("no frame after first block")
	}

	snapshot := append([]float64(nil), first.MagnitudesDB...)

	// One more hop with a very different signal emits into the other buffer.
	hop := make([]float64, a.HopSize())
	for i := range hop {
		hop[i] = math.Sin(2.9 * float64(i))
	}

	second := a.ProcessBlock(hop)
	if second == nil {
		t.Fatal("no frame after second block")
	}

	if second == first {
		t.Fatal("consecutive emissions returned the same buffer")
	}

	for i := range snapshot {
		if first.MagnitudesDB[i] != snapshot[i] {
			t.Fatalf("held frame mutated at bin %d", i)
		}
	}
}

func TestEmissionThrottle(t *testing.T) {
	const fps = 10.0

	a, err := New(testSampleRate,
		WithFFTSize(512),
		WithOverlap(0.75),
		WithMaxFrameRate(fps))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n := int(testSampleRate) // one second
	frames := 0

	for i := 0; i < n; i++ {
		if f := a.ProcessSample(math.Sin(0.13 * float64(i))); f != nil {
			frames++
		}
	}

	// Hop rate is 48000/128 = 375 frames/s unthrottled.
	if frames < 8 || frames > 11 {
		t.Errorf("emitted %d frames in 1 s at %.0f fps cap", frames, fps)
	}
}

func TestUnthrottledEmitsEveryHop(t *testing.T) {
	a, err := New(testSampleRate,
		WithFFTSize(512),
		WithOverlap(0.5),
		WithMaxFrameRate(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frames := 0

	for i := 0; i < 512+4*256; i++ {
		if f := a.ProcessSample(1); f != nil {
			frames++
		}
	}

	if frames != 5 {
		t.Errorf("emitted %d frames, want 5 (fill + 4 hops)", frames)
	}
}

func TestSetFFTSize(t *testing.T) {
	a, err := New(testSampleRate, WithFFTSize(1024))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.SetFFTSize(4096); err != nil {
		t.Fatalf("SetFFTSize: %v", err)
	}

	if got := a.NumBins(); got != 2049 {
		t.Errorf("NumBins() = %d, want 2049", got)
	}

	if err := a.SetFFTSize(777); err == nil {
		t.Error("expected error for non-power-of-two size")
	}

	if got := a.FFTSize(); got != 4096 {
		t.Errorf("failed SetFFTSize changed size to %d", got)
	}
}

func TestResetRequiresRefill(t *testing.T) {
	a, err := New(testSampleRate, WithFFTSize(512), WithMaxFrameRate(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	block := make([]float64, 512)
	for i := range block {
		block[i] = 1
	}

	if f := a.ProcessBlock(block); f == nil {
		t.Fatal("no frame after fill")
	}

	a.Reset()

	if f := a.ProcessBlock(block[:511]); f != nil {
		t.Error("frame emitted before ring refilled after Reset")
	}

	if f := a.ProcessBlock(block[:1]); f == nil {
		t.Error("no frame once ring refilled after Reset")
	}
}

func TestKWeightedAnalyzer(t *testing.T) {
	a, err := New(testSampleRate,
		WithFFTSize(2048),
		WithWindow(window.TypeHann),
		WithSmoothing(0),
		WithMaxFrameRate(0),
		WithKWeighting())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// K-weighting attenuates low frequencies; a 25 Hz tone should read
	// well below 0 dBFS while a 1 kHz tone stays near it.
	measure := func(freq float64) float64 {
		a.Reset()

		w := 2 * math.Pi * freq / testSampleRate

		var frame *Frame

		for i := 0; i < 8192; i++ {
			if f := a.ProcessSample(math.Sin(w * float64(i))); f != nil {
				frame = f
			}
		}

		if frame == nil {
			t.Fatal("no frame emitted")
		}

		bin := int(math.Round(freq / a.FreqStep()))
		peak := frame.MagnitudesDB[bin]

		for _, k := range []int{bin - 1, bin + 1} {
			if k >= 0 && frame.MagnitudesDB[k] > peak {
				peak = frame.MagnitudesDB[k]
			}
		}

		return peak
	}

	low := measure(25)
	mid := measure(1000)

	if mid-low < 6 {
		t.Errorf("k-weighting: 1 kHz reads %.1f dB, 25 Hz reads %.1f dB; want at least 6 dB apart", mid, low)
	}
}
