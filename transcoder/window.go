// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package transcoder implements the gzip-to-BGZF pipeline: LZ77 token
// replay through a sliding window, cross-block-boundary reference
// resolution, block splitting policies, and single-threaded and
// parallel transcoding drivers.
package transcoder

const windowSize = 32768

// SlidingWindow is a 32KB circular buffer of the most recently produced
// uncompressed bytes, used to materialize LZ77 back-references -
// including the RLE case where length exceeds distance - and to
// resolve references that would otherwise cross a BGZF block boundary.
type SlidingWindow struct {
	buf          [windowSize]byte
	writePos     int
	totalWritten uint64
}

// NewSlidingWindow returns an empty SlidingWindow.
func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{}
}

// PushByte appends a single byte to the window.
func (w *SlidingWindow) PushByte(b byte) {
	w.buf[w.writePos] = b
	w.writePos = (w.writePos + 1) % windowSize
	w.totalWritten++
}

// PushBytes appends a run of bytes to the window.
func (w *SlidingWindow) PushBytes(bs []byte) {
	for _, b := range bs {
		w.PushByte(b)
	}
}

// Get materializes a Copy reference (distance, length) into the bytes
// it represents, reading from already-produced window contents. When
// length exceeds distance the reference is a run-length pattern that
// repeats the most recent `distance` bytes cyclically.
func (w *SlidingWindow) Get(distance, length uint16) []byte {
	return w.AppendTo(make([]byte, 0, length), distance, length)
}

// AppendTo materializes a Copy reference into out, avoiding a fresh
// allocation when the caller is accumulating bytes anyway.
func (w *SlidingWindow) AppendTo(out []byte, distance, length uint16) []byte {
	dist := int(distance)
	base := len(out)
	for i := 0; i < int(length); i++ {
		var b byte
		if i < dist {
			pos := (w.writePos - dist + i + windowSize) % windowSize
			b = w.buf[pos]
		} else {
			// RLE case: length > distance, so this byte repeats one
			// already emitted into out during this same call.
			b = out[base+i-dist]
		}
		out = append(out, b)
	}
	return out
}

// ForEachByte materializes a Copy reference (distance, length) without
// an intermediate allocation, invoking fn once per resulting byte in
// order. When the reference is a pure RLE pattern (length > distance)
// the distance-sized pattern is captured once up front and then
// replayed cyclically.
func (w *SlidingWindow) ForEachByte(distance, length uint16, fn func(byte)) {
	dist := int(distance)
	if int(length) <= dist {
		for i := 0; i < int(length); i++ {
			pos := (w.writePos - dist + i + windowSize) % windowSize
			fn(w.buf[pos])
		}
		return
	}

	pattern := make([]byte, dist)
	for i := 0; i < dist; i++ {
		pos := (w.writePos - dist + i + windowSize) % windowSize
		pattern[i] = w.buf[pos]
	}
	for i := 0; i < int(length); i++ {
		fn(pattern[i%dist])
	}
}

// Available returns the number of valid bytes currently held in the
// window (capped at its capacity).
func (w *SlidingWindow) Available() int {
	if w.totalWritten > windowSize {
		return windowSize
	}
	return int(w.totalWritten)
}

// TotalWritten returns the total number of bytes ever pushed into the
// window, uncapped by its capacity.
func (w *SlidingWindow) TotalWritten() uint64 {
	return w.totalWritten
}

// Clear resets the window to its empty state.
func (w *SlidingWindow) Clear() {
	w.writePos = 0
	w.totalWritten = 0
}
