// Package design provides closed-form biquad coefficient generators.
//
// It covers the RBJ Audio-EQ-Cookbook prototypes (lowpass, highpass,
// bandpass, notch, allpass, peaking and shelving EQ), Butterworth and
// Linkwitz-Riley cascades for crossover networks, and the fixed ITU-R
// BS.1770-4 K-weighting pair used for loudness measurement.
//
// All generators return coefficients normalized by a0. Invalid parameters
// (frequency outside (0, Nyquist), non-finite values) yield zero
// coefficients; a non-positive Q falls back to 1/sqrt(2).
package design
