// Package mastering composes the metering and dynamics units into a
// single block-processing engine: K-weighted loudness measurement,
// spectrum analysis of the mono mix, stereo level metering, an optional
// multiband compressor, and a lookahead output limiter.
//
// The engine consumes fixed-size deinterleaved blocks and publishes
// measurement messages to a Sink on independent cadences. Publishing is
// fire-and-forget; LatestSink gives slow consumers last-value-wins
// storage so the processing path never waits.
package mastering
