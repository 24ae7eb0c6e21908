// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import (
	"hash/crc32"
	"io"

	"github.com/nh13/rebgzf"
)

// BlockWriter writes pre-encoded DEFLATE payloads wrapped in BGZF
// framing to an underlying io.Writer.
type BlockWriter struct {
	w io.Writer
}

// NewBlockWriter returns a BlockWriter writing to w.
func NewBlockWriter(w io.Writer) *BlockWriter {
	return &BlockWriter{w: w}
}

// WriteBlock writes one BGZF block: header, the already-DEFLATE-encoded
// payload, and a footer computed from the uncompressed bytes that
// payload represents.
func (bw *BlockWriter) WriteBlock(deflateData, uncompressed []byte) error {
	return bw.WriteBlockWithCRC(deflateData, crc32.ChecksumIEEE(uncompressed), uint32(len(uncompressed)))
}

// WriteBlockWithCRC writes one BGZF block using a pre-computed CRC32 and
// uncompressed size, avoiding re-hashing bytes the caller already
// checksummed (the parallel pipeline's encoding workers do this).
func (bw *BlockWriter) WriteBlockWithCRC(deflateData []byte, crc, uncompressedSize uint32) error {
	blockSize := HeaderSize + len(deflateData) + FooterSize
	if blockSize > MaxBlockSize {
		return rebgzf.ErrBlockTooLarge
	}

	if err := bw.writeHeader(blockSize - 1); err != nil {
		return err
	}
	if _, err := bw.w.Write(deflateData); err != nil {
		return wrapIO(err)
	}

	var footer [8]byte
	footer[0] = byte(crc)
	footer[1] = byte(crc >> 8)
	footer[2] = byte(crc >> 16)
	footer[3] = byte(crc >> 24)
	footer[4] = byte(uncompressedSize)
	footer[5] = byte(uncompressedSize >> 8)
	footer[6] = byte(uncompressedSize >> 16)
	footer[7] = byte(uncompressedSize >> 24)
	if _, err := bw.w.Write(footer[:]); err != nil {
		return wrapIO(err)
	}
	return nil
}

func (bw *BlockWriter) writeHeader(bsize int) error {
	header := [18]byte{
		0x1f, 0x8b, // gzip magic
		0x08, // DEFLATE
		0x04, // FEXTRA
		0x00, 0x00, 0x00, 0x00, // mtime
		0x00, // extra flags
		0xff, // OS unknown
		0x06, 0x00, // xlen = 6
		0x42, 0x43, // "BC"
		0x02, 0x00, // subfield length = 2
		byte(bsize & 0xFF),
		byte((bsize >> 8) & 0xFF),
	}
	_, err := bw.w.Write(header[:])
	return wrapIO(err)
}

// WriteEOF writes the fixed 28-byte BGZF end-of-file marker.
func (bw *BlockWriter) WriteEOF() error {
	_, err := bw.w.Write(EOF[:])
	return wrapIO(err)
}

func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	return &rebgzf.Error{Kind: rebgzf.KindBGZF, Msg: "bgzf I/O error", Err: err}
}
