// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import (
	"encoding/binary"
	"io"
)

// GziEntry maps a BGZF block's starting compressed offset to its
// starting offset in the uncompressed data stream.
type GziEntry struct {
	CompressedOffset   uint64
	UncompressedOffset uint64
}

// GziIndexBuilder accumulates GziEntry records as blocks are written,
// for the GZI random-access index format used alongside a BGZF file.
type GziIndexBuilder struct {
	entries                   []GziEntry
	currentCompressedOffset   uint64
	currentUncompressedOffset uint64
}

// NewGziIndexBuilder returns an empty GziIndexBuilder.
func NewGziIndexBuilder() *GziIndexBuilder {
	return &GziIndexBuilder{}
}

// AddBlock records the start of a new BGZF block of the given
// compressed and uncompressed sizes, then advances the running offsets
// for the next block.
func (b *GziIndexBuilder) AddBlock(compressedSize, uncompressedSize uint64) {
	b.entries = append(b.entries, GziEntry{
		CompressedOffset:   b.currentCompressedOffset,
		UncompressedOffset: b.currentUncompressedOffset,
	})
	b.currentCompressedOffset += compressedSize
	b.currentUncompressedOffset += uncompressedSize
}

// CompressedOffset returns the running compressed offset.
func (b *GziIndexBuilder) CompressedOffset() uint64 { return b.currentCompressedOffset }

// UncompressedOffset returns the running uncompressed offset.
func (b *GziIndexBuilder) UncompressedOffset() uint64 { return b.currentUncompressedOffset }

// Len returns the number of recorded entries.
func (b *GziIndexBuilder) Len() int { return len(b.entries) }

// Entries returns the recorded entries.
func (b *GziIndexBuilder) Entries() []GziEntry { return b.entries }

// WriteTo writes the GZI index: an 8-byte little-endian entry count
// followed by (compressed_offset, uncompressed_offset) uint64 pairs.
func (b *GziIndexBuilder) WriteTo(w io.Writer) (int64, error) {
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(b.entries)))
	n, err := w.Write(countBuf[:])
	total := int64(n)
	if err != nil {
		return total, err
	}
	var entryBuf [16]byte
	for _, e := range b.entries {
		binary.LittleEndian.PutUint64(entryBuf[0:8], e.CompressedOffset)
		binary.LittleEndian.PutUint64(entryBuf[8:16], e.UncompressedOffset)
		n, err := w.Write(entryBuf[:])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Reset clears the builder for reuse.
func (b *GziIndexBuilder) Reset() {
	b.entries = b.entries[:0]
	b.currentCompressedOffset = 0
	b.currentUncompressedOffset = 0
}
