// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package gzip parses gzip (RFC 1952) headers and trailers, the framing
// the transcoder must see through to reach the raw DEFLATE stream inside.
package gzip

import (
	"encoding/binary"
	"io"

	"github.com/nh13/rebgzf"
)

const (
	magic0 = 0x1f
	magic1 = 0x8b

	ftext    = 1 << 0
	fhcrc    = 1 << 1
	fextra   = 1 << 2
	fname    = 1 << 3
	fcomment = 1 << 4
)

// Header is a parsed gzip member header.
type Header struct {
	CompressionMethod byte
	Flags             byte
	Mtime             uint32
	ExtraFlags        byte
	OS                byte
	Extra             []byte
	Filename          string
	HasFilename       bool
	Comment           string
	HasComment        bool
	HeaderCRC         uint16
	HasHeaderCRC      bool
}

// IsText reports the FTEXT flag.
func (h *Header) IsText() bool { return h.Flags&ftext != 0 }

// HasExtra reports the FEXTRA flag.
func (h *Header) HasExtra() bool { return h.Flags&fextra != 0 }

// ParseHeader reads and parses one gzip member header from r.
func ParseHeader(r io.Reader) (*Header, error) {
	var buf [10]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, eofOrWrap(err)
	}

	if buf[0] != magic0 || buf[1] != magic1 {
		return nil, rebgzf.ErrInvalidGzipMagic
	}

	method := buf[2]
	if method != 8 {
		return nil, rebgzf.ErrUnsupportedMethod
	}

	h := &Header{
		CompressionMethod: method,
		Flags:             buf[3],
		Mtime:             binary.LittleEndian.Uint32(buf[4:8]),
		ExtraFlags:        buf[8],
		OS:                buf[9],
	}

	if h.Flags&fextra != 0 {
		var xlenBuf [2]byte
		if _, err := io.ReadFull(r, xlenBuf[:]); err != nil {
			return nil, eofOrWrap(err)
		}
		xlen := binary.LittleEndian.Uint16(xlenBuf[:])
		h.Extra = make([]byte, xlen)
		if _, err := io.ReadFull(r, h.Extra); err != nil {
			return nil, eofOrWrap(err)
		}
	}

	if h.Flags&fname != 0 {
		s, err := readNullTerminated(r)
		if err != nil {
			return nil, err
		}
		h.Filename, h.HasFilename = s, true
	}

	if h.Flags&fcomment != 0 {
		s, err := readNullTerminated(r)
		if err != nil {
			return nil, err
		}
		h.Comment, h.HasComment = s, true
	}

	if h.Flags&fhcrc != 0 {
		var crcBuf [2]byte
		if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
			return nil, eofOrWrap(err)
		}
		h.HeaderCRC, h.HasHeaderCRC = binary.LittleEndian.Uint16(crcBuf[:]), true
	}

	return h, nil
}

// Trailer is the 8-byte gzip member trailer: CRC32 and ISIZE (mod 2^32).
type Trailer struct {
	CRC32 uint32
	ISize uint32
}

// ParseTrailer reads the 8-byte gzip trailer from r.
func ParseTrailer(r io.Reader) (*Trailer, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, eofOrWrap(err)
	}
	return &Trailer{
		CRC32: binary.LittleEndian.Uint32(buf[0:4]),
		ISize: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

func readNullTerminated(r io.Reader) (string, error) {
	var out []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", eofOrWrap(err)
		}
		if b[0] == 0 {
			break
		}
		out = append(out, b[0])
	}
	return string(out), nil
}

func eofOrWrap(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return rebgzf.ErrUnexpectedEOF
	}
	return &rebgzf.Error{Kind: rebgzf.KindGzip, Msg: "gzip I/O error", Err: err}
}
