// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bgzf implements the Blocked GZip Format framing layer: block
// size limits, the BC extra-field header, the fixed EOF marker, format
// detection/validation, block writing and the GZI random-access index.
package bgzf

// MaxUncompressedBlockSize is the largest uncompressed payload a single
// BGZF block may carry.
const MaxUncompressedBlockSize = 65536

// DefaultUncompressedBlockSize is the recommended target uncompressed
// size per block, leaving headroom for worst-case expansion so the
// total compressed block still fits within MaxBlockSize.
const DefaultUncompressedBlockSize = 65280

// HeaderSize is the size in bytes of a BGZF block's gzip header
// including the BC extra field (18 bytes).
const HeaderSize = 18

// FooterSize is the size in bytes of a BGZF block's gzip trailer
// (CRC32 + ISIZE).
const FooterSize = 8

// MaxBlockSize is the largest a complete BGZF block (header + deflate
// payload + footer) may be; BSIZE is a 16-bit field recording this
// total size minus one.
const MaxBlockSize = 65536

// EOF is the canonical 28-byte BGZF end-of-file marker: an empty final
// fixed-Huffman deflate block (end-of-block code only) wrapped in BGZF
// framing with CRC32 and ISIZE both zero.
var EOF = [28]byte{
	0x1f, 0x8b, 0x08, 0x04, // gzip magic, method, flags (FEXTRA)
	0x00, 0x00, 0x00, 0x00, // mtime
	0x00, 0xff, // xfl, os
	0x06, 0x00, // xlen = 6
	0x42, 0x43, // subfield ID "BC"
	0x02, 0x00, // subfield length = 2
	0x1b, 0x00, // BSIZE = 27 (28 - 1)
	0x03, 0x00, // empty deflate block
	0x00, 0x00, 0x00, 0x00, // CRC32 = 0
	0x00, 0x00, 0x00, 0x00, // ISIZE = 0
}
