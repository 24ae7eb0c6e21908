// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import (
	"encoding/binary"
	"io"

	"github.com/nh13/rebgzf"
)

var gzipMagic = [2]byte{0x1f, 0x8b}
var bcSubfieldID = [2]byte{'B', 'C'}

const fextraFlag = 0x04
const minHeaderSize = 18

// Validation is the outcome of a BGZF structural walk: whether the
// input is valid BGZF and, in strict/streaming mode, the block count
// and total uncompressed size observed. BlockCount includes the
// terminal EOF marker when one was seen; HaveEOFBlock lets callers
// that want only data blocks subtract it.
type Validation struct {
	IsValidBGZF           bool
	BlockCount            uint64
	TotalUncompressedSize uint64
	HaveBlockCount        bool
	HaveUncompressedSize  bool
	HaveEOFBlock          bool
}

// IsBGZF performs a quick O(1) check of the first block's header only.
func IsBGZF(r io.Reader) (bool, error) {
	var header [minHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, wrapIO(err)
	}
	return validateHeader(header[:]), nil
}

// ValidateHeaderBytes reports whether an already-read 18-byte BGZF
// header is structurally valid, for callers (such as the passthrough
// fast path) that peeked the header without consuming it from the
// underlying stream.
func ValidateHeaderBytes(header []byte) bool {
	return validateHeader(header)
}

func validateHeader(header []byte) bool {
	if len(header) < minHeaderSize {
		return false
	}
	if header[0] != gzipMagic[0] || header[1] != gzipMagic[1] {
		return false
	}
	if header[2] != 8 {
		return false
	}
	if header[3]&fextraFlag == 0 {
		return false
	}
	xlen := binary.LittleEndian.Uint16(header[10:12])
	if xlen < 6 {
		return false
	}
	if header[12] != bcSubfieldID[0] || header[13] != bcSubfieldID[1] {
		return false
	}
	bcLen := binary.LittleEndian.Uint16(header[14:16])
	return bcLen == 2
}

// Seeker is the subset of io.ReadSeeker that ValidateStrict needs.
type Seeker interface {
	io.Reader
	io.Seeker
}

// ValidateStrict walks every BGZF block header in a seekable input,
// verifying structure and accumulating block count and total
// uncompressed size.
func ValidateStrict(r Seeker) (Validation, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Validation{}, wrapIO(err)
	}
	v, err := walkBlocks(r, func(skip int64) error {
		_, err := r.Seek(skip, io.SeekCurrent)
		return err
	})
	if err == nil {
		if _, serr := r.Seek(0, io.SeekStart); serr != nil {
			return v, wrapIO(serr)
		}
	}
	return v, err
}

// ValidateStreaming walks every BGZF block header in a non-seekable
// input by reading and discarding the intervening bytes instead of
// seeking, for pipes and other streams that don't support Seek.
func ValidateStreaming(r io.Reader) (Validation, error) {
	return walkBlocks(r, func(skip int64) error {
		_, err := io.CopyN(io.Discard, r, skip)
		return err
	})
}

func walkBlocks(r io.Reader, skip func(int64) error) (Validation, error) {
	var blockCount, totalUncompressed uint64
	sawEOFBlock := false

	for {
		var header [minHeaderSize]byte
		_, err := io.ReadFull(r, header[:])
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				if blockCount == 0 {
					return Validation{}, nil
				}
				break
			}
			return Validation{}, wrapIO(err)
		}

		if !validateHeader(header[:]) {
			return Validation{
				BlockCount:            blockCount,
				TotalUncompressedSize: totalUncompressed,
				HaveBlockCount:        true,
				HaveUncompressedSize:  true,
			}, nil
		}

		bsize := uint64(binary.LittleEndian.Uint16(header[16:18]))
		blockSize := bsize + 1
		remaining := int64(blockSize) - minHeaderSize
		if remaining < 0 {
			remaining = 0
		}

		if remaining < FooterSize {
			return Validation{
				BlockCount:            blockCount,
				TotalUncompressedSize: totalUncompressed,
				HaveBlockCount:        true,
				HaveUncompressedSize:  true,
			}, nil
		}

		skipToFooter := remaining - FooterSize
		if skipToFooter > 0 {
			if err := skip(skipToFooter); err != nil {
				return Validation{}, wrapIO(err)
			}
		}

		var footer [FooterSize]byte
		if _, err := io.ReadFull(r, footer[:]); err != nil {
			return Validation{}, eofOrWrap(err)
		}
		isize := binary.LittleEndian.Uint32(footer[4:8])
		totalUncompressed += uint64(isize)
		blockCount++

		if isize == 0 && blockSize == 28 {
			sawEOFBlock = true
			break
		}
	}

	return Validation{
		IsValidBGZF:           true,
		BlockCount:            blockCount,
		TotalUncompressedSize: totalUncompressed,
		HaveBlockCount:        true,
		HaveUncompressedSize:  true,
		HaveEOFBlock:          sawEOFBlock,
	}, nil
}

func eofOrWrap(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return rebgzf.ErrUnexpectedEOF
	}
	return wrapIO(err)
}
