// Package delay provides fixed-size circular delay lines used for
// lookahead buffers and sliding-window accumulators.
package delay

import (
	"fmt"

	"github.com/jaywtf82/cno-voidline-sub002/dsp/core"
)

// Line is a circular delay line with a single write cursor. Capacity is
// fixed at construction; exactly Len() most-recent samples are retained.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line of fixed size.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay size must be > 0: %d", size)
	}

	return &Line{buffer: make([]float64, size)}, nil
}

// Len returns internal buffer size.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Write writes one sample.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample

	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read reads an integer delay in samples. A delay of 1 returns the most
// recently written sample.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}

	readPos := (d.writePos - delay + size) % size
	if readPos < 0 {
		readPos += size
	}

	return d.buffer[readPos]
}

// WriteRead writes one sample and returns the sample delayed by the full
// line length, in a single cursor pass.
func (d *Line) WriteRead(sample float64) float64 {
	out := d.buffer[d.writePos]
	d.buffer[d.writePos] = sample

	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}

	return out
}

// Reset clears line state.
func (d *Line) Reset() {
	core.Zero(d.buffer)

	d.writePos = 0
}
