// Package spectrum provides a streaming FFT spectrum analyzer.
//
// The [Analyzer] accumulates samples into a ring buffer of the configured
// FFT size, applies a precomputed window, and on every hop interval runs a
// forward FFT and converts the one-sided magnitude spectrum to dBFS with
// per-bin exponential smoothing. Frame emission is throttled to a maximum
// rate independent of the audio block rate, and emitted frames are
// double-buffered so a consumer can hold a frame while processing continues.
package spectrum
