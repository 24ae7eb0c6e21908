// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package verify walks a BGZF stream block by block, decompressing and
// CRC-checking each block's payload, and keeps going past a bad block
// instead of aborting so that one corrupt block doesn't hide the state
// of the rest of the file.
package verify

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"hash/crc32"
	"io"

	"cloudeng.io/errors"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/internal/bgzf"
)

// Report summarizes a verification walk over a BGZF stream.
type Report struct {
	BlockCount            uint64
	TotalUncompressedSize uint64
	// Errs aggregates every block-level failure observed; a clean file
	// leaves Errs.Err() == nil.
	Errs *errors.M
}

// Walk reads BGZF blocks from r until EOF or a structural framing error,
// decompressing each block's payload with the standard DEFLATE reader
// (each BGZF block is a single, self-contained, byte-aligned DEFLATE
// stream) and comparing its CRC32 and size against the block's footer.
// A checksum or size mismatch is recorded in the returned Report and
// does not stop the walk; only a framing error that leaves the stream
// position unrecoverable does.
func Walk(r io.Reader) Report {
	report := Report{Errs: &errors.M{}}

	for {
		var header [bgzf.HeaderSize]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF {
				return report
			}
			report.Errs.Append(rebgzf.ErrUnexpectedEOF)
			return report
		}
		if !bgzf.ValidateHeaderBytes(header[:]) {
			report.Errs.Append(rebgzf.ErrInvalidGzipMagic)
			return report
		}

		bsize := int(binary.LittleEndian.Uint16(header[16:18])) + 1
		bodyLen := bsize - bgzf.HeaderSize - bgzf.FooterSize
		if bodyLen < 0 {
			report.Errs.Append(rebgzf.ErrBlockTooLarge)
			return report
		}

		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(r, body); err != nil {
			report.Errs.Append(rebgzf.ErrUnexpectedEOF)
			return report
		}
		var footer [bgzf.FooterSize]byte
		if _, err := io.ReadFull(r, footer[:]); err != nil {
			report.Errs.Append(rebgzf.ErrUnexpectedEOF)
			return report
		}

		wantCRC := binary.LittleEndian.Uint32(footer[0:4])
		wantSize := binary.LittleEndian.Uint32(footer[4:8])
		report.BlockCount++

		if wantSize == 0 && bsize == len(bgzf.EOF) {
			// The terminal EOF marker; nothing further to decompress.
			return report
		}

		fr := flate.NewReader(bytes.NewReader(body))
		data, err := io.ReadAll(fr)
		fr.Close()
		if err != nil {
			report.Errs.Append(err)
			continue
		}
		if uint32(len(data)) != wantSize {
			report.Errs.Append(rebgzf.ErrSizeMismatch)
		}
		if crc32.ChecksumIEEE(data) != wantCRC {
			report.Errs.Append(rebgzf.ErrCRCMismatch)
		}
		report.TotalUncompressedSize += uint64(len(data))
	}
}
