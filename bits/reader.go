// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bits provides LSB-first bit-level reading and writing for
// DEFLATE streams.
package bits

import (
	"errors"
	"io"

	"github.com/nh13/rebgzf"
)

// Reader reads individual bits and byte-aligned values from an underlying
// io.Reader, LSB first within each byte, which is the bit order DEFLATE
// uses. It buffers up to 64 bits at a time so that single-bit Huffman
// decoding doesn't pay a syscall per bit.
type Reader struct {
	rd        io.Reader
	buf       uint64
	nbits     uint8
	bytesRead uint64
	scratch   [8]byte
}

// NewReader returns a Reader that reads from rd.
func NewReader(rd io.Reader) *Reader {
	return &Reader{rd: rd}
}

// fill ensures at least n bits (n <= 57) are available in the buffer,
// bulk-refilling up to 8 bytes at a time before falling back to a
// byte-by-byte read for the remainder or to detect EOF precisely.
func (r *Reader) fill(n uint8) error {
	if r.nbits >= n {
		return nil
	}
	if r.nbits <= 56 {
		toRead := int((64 - r.nbits) / 8)
		nr, err := r.rd.Read(r.scratch[:toRead])
		for i := 0; i < nr; i++ {
			r.buf |= uint64(r.scratch[i]) << r.nbits
			r.nbits += 8
		}
		r.bytesRead += uint64(nr)
		if nr > 0 && r.nbits >= n {
			return nil
		}
		if err != nil && err != io.EOF {
			return wrapIO(err)
		}
	}
	var one [1]byte
	for r.nbits < n {
		if _, err := io.ReadFull(r.rd, one[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return rebgzf.ErrUnexpectedEOF
			}
			return wrapIO(err)
		}
		r.buf |= uint64(one[0]) << r.nbits
		r.nbits += 8
		r.bytesRead++
	}
	return nil
}

func wrapIO(err error) error {
	return &rebgzf.Error{Kind: rebgzf.KindOther, Msg: "bit reader I/O error", Err: err}
}

// ReadBits reads n (1-32) bits in LSB-first order, the standard DEFLATE
// bit order.
func (r *Reader) ReadBits(n uint8) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if err := r.fill(n); err != nil {
		return 0, err
	}
	mask := uint64(1)<<n - 1
	v := uint32(r.buf & mask)
	r.buf >>= n
	r.nbits -= n
	return v, nil
}

// PeekBits returns the next n bits without consuming them, for table-based
// Huffman decoding where the lookup width is fixed but the actual code
// length is only known after the lookup.
func (r *Reader) PeekBits(n uint8) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if err := r.fill(n); err != nil {
		return 0, err
	}
	mask := uint64(1)<<n - 1
	return uint32(r.buf & mask), nil
}

// ConsumeBits discards n bits previously inspected with PeekBits.
func (r *Reader) ConsumeBits(n uint8) {
	r.buf >>= n
	r.nbits -= n
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (bool, error) {
	v, err := r.ReadBits(1)
	return v != 0, err
}

// AlignToByte discards any bits remaining in the current byte.
func (r *Reader) AlignToByte() {
	discard := r.nbits % 8
	if discard > 0 {
		r.buf >>= discard
		r.nbits -= discard
	}
}

// ReadByte reads a single byte-aligned byte, implementing io.ByteReader
// after aligning to the next byte boundary.
func (r *Reader) ReadByte() (byte, error) {
	r.AlignToByte()
	v, err := r.ReadBits(8)
	return byte(v), err
}

// ReadUint16LE reads a byte-aligned little-endian uint16.
func (r *Reader) ReadUint16LE() (uint16, error) {
	r.AlignToByte()
	lo, err := r.ReadBits(8)
	if err != nil {
		return 0, err
	}
	hi, err := r.ReadBits(8)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// ReadUint32LE reads a byte-aligned little-endian uint32.
func (r *Reader) ReadUint32LE() (uint32, error) {
	r.AlignToByte()
	var v uint32
	for shift := uint(0); shift < 32; shift += 8 {
		b, err := r.ReadBits(8)
		if err != nil {
			return 0, err
		}
		v |= b << shift
	}
	return v, nil
}

// ReadBytes fills buf with byte-aligned bytes.
func (r *Reader) ReadBytes(buf []byte) error {
	r.AlignToByte()
	for i := range buf {
		v, err := r.ReadBits(8)
		if err != nil {
			return err
		}
		buf[i] = byte(v)
	}
	return nil
}

// BytesRead returns the number of whole bytes consumed from the
// underlying reader so far (approximate while mid-byte).
func (r *Reader) BytesRead() uint64 {
	return r.bytesRead
}

// BitsAvailable reports how many bits are currently buffered without
// reading more from the underlying reader.
func (r *Reader) BitsAvailable() uint8 {
	return r.nbits
}

// Source surrenders the underlying reader. Bits still buffered in the
// accumulator are not pushed back; callers that need them should drain
// through Read first.
func (r *Reader) Source() io.Reader {
	return r.rd
}

// Read implements io.Reader over the byte-aligned remainder of the
// stream, so a Reader positioned after a finished DEFLATE stream can be
// handed to byte-oriented parsers (gzip member chaining uses this to
// probe for a following member's header).
func (r *Reader) Read(p []byte) (int, error) {
	r.AlignToByte()
	n := 0
	for n < len(p) {
		v, err := r.ReadBits(8)
		if err != nil {
			if n > 0 {
				return n, nil
			}
			if errors.Is(err, rebgzf.ErrUnexpectedEOF) {
				return 0, io.EOF
			}
			return 0, err
		}
		p[n] = byte(v)
		n++
	}
	return n, nil
}
