// Package loudness implements ITU-R BS.1770-4 / EBU R128 loudness metering.
//
// The [Meter] reports momentary (400 ms) and short-term (3 s) loudness from
// sliding mean-square windows over the K-weighted signal, gated integrated
// loudness and loudness range from a fixed histogram of 400 ms gating blocks
// at 75 % overlap, and per-channel true peak via 4x oversampled inter-sample
// peak detection. Memory use is fixed at construction; program length does
// not grow it.
package loudness
