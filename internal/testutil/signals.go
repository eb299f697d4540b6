// Package testutil provides deterministic test signals and tolerance
// helpers shared by the package tests.
package testutil

import (
	"math"
	"math/rand"
)

// Sine generates a deterministic sine wave starting at phase 0.
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate

	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out
}

// StereoSine generates a deterministic stereo sine pair. The right channel
// is offset by phase radians, so phase 0 yields correlation +1 and phase
// pi yields correlation -1.
func StereoSine(freqHz, sampleRate, amplitude, phase float64, length int) (left, right []float64) {
	left = make([]float64, length)
	right = make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate

	for i := range left {
		left[i] = amplitude * math.Sin(step*float64(i))
		right[i] = amplitude * math.Sin(step*float64(i)+phase)
	}

	return left, right
}

// Noise generates white noise with a fixed seed for reproducibility.
func Noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}

	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}

	return out
}

// Silence returns a zero signal of length n.
func Silence(n int) []float64 {
	return make([]float64, n)
}
