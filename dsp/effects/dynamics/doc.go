// Package dynamics provides mastering dynamics processors: a soft-knee
// compressor with log2-domain gain computation, a lookahead brickwall
// limiter with a hard ceiling guarantee, and a multiband processor that
// combines Linkwitz-Riley band splitting with per-band compression and
// optional mid/side operation.
//
// All processors are mono per instance and not safe for concurrent use.
// Parameter changes must happen outside the processing callback.
package dynamics
