// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package huffman implements canonical Huffman code construction, a
// table-based decoder and a length-limited encoder for DEFLATE's
// 288/30/19-symbol alphabets.
package huffman

import (
	"fmt"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/bits"
	"github.com/nh13/rebgzf/deflate"
)

// lookupBits is the width of the primary lookup table; codes no longer
// than this decode in a single table probe. 10 bits covers nearly all
// codes in practice while the table still fits comfortably in cache.
const lookupBits = 10
const lookupSize = 1 << lookupBits

// lookupEntry packs a decoded symbol and its code length into one
// uint16: low 11 bits symbol, high 5 bits length (0 = invalid entry).
type lookupEntry uint16

const symbolMask lookupEntry = 0x07FF
const lengthShift = 11

func newLookupEntry(symbol uint16, length uint8) lookupEntry {
	return lookupEntry(symbol) | lookupEntry(length)<<lengthShift
}

func (e lookupEntry) symbol() uint16 { return uint16(e & symbolMask) }
func (e lookupEntry) length() uint8  { return uint8(e >> lengthShift) }
func (e lookupEntry) valid() bool    { l := e.length(); return l > 0 && l <= lookupBits }

// Decoder is a canonical Huffman decoder built from per-symbol code
// lengths. It decodes most codes via a single lookupBits-wide table probe
// and falls back to a bit-by-bit walk for longer codes.
type Decoder struct {
	lookup []lookupEntry
	// firstCode[l] and firstIndex[l] locate the canonical codes of
	// length l within symbols for the bit-by-bit fallback decode.
	firstCode  [16]uint32
	firstIndex [16]int
	symbols    []uint16
	maxBits    uint8
}

// FromCodeLengths builds a canonical Huffman decoder from a per-symbol
// code-length table, as used for dynamic Huffman blocks and for the
// fixed tables below.
func FromCodeLengths(lengths []uint8) (*Decoder, error) {
	if len(lengths) == 0 {
		return nil, rebgzf.ErrHuffmanIncomplete
	}
	var maxBits uint8
	for _, l := range lengths {
		if l > maxBits {
			maxBits = l
		}
	}
	if maxBits > 15 {
		return nil, wrapCodeLen(maxBits)
	}
	if maxBits == 0 {
		return &Decoder{lookup: make([]lookupEntry, lookupSize)}, nil
	}

	var blCount [16]uint32
	for _, l := range lengths {
		if l > 0 {
			blCount[l]++
		}
	}

	// Reject an over-subscribed table before building anything from it:
	// more codes at some length than the code space can hold would
	// alias distinct symbols onto the same bit pattern.
	space := uint32(1)
	for n := uint8(1); n <= maxBits; n++ {
		space <<= 1
		if blCount[n] > space {
			return nil, rebgzf.ErrHuffmanOversubscribed
		}
		space -= blCount[n]
	}

	var nextCode [16]uint32
	var code uint32
	for n := uint8(1); n <= maxBits; n++ {
		code = (code + blCount[n-1]) << 1
		nextCode[n] = code
	}

	lookup := make([]lookupEntry, lookupSize)
	type symLen struct {
		sym  uint16
		len  uint8
		code uint32
	}
	symbolsWithLen := make([]symLen, 0, len(lengths))

	current := nextCode
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		c := current[l]
		current[l]++
		symbolsWithLen = append(symbolsWithLen, symLen{uint16(sym), l, c})

		if l <= lookupBits {
			reversed := bits.ReverseBits(c, l)
			fillCount := 1 << (lookupBits - l)
			for suffix := 0; suffix < fillCount; suffix++ {
				idx := int(reversed) | (suffix << l)
				lookup[idx] = newLookupEntry(uint16(sym), l)
			}
		}
	}

	// Stable sort by (length, symbol) for the fallback path; insertion
	// sort is fine here since alphabets are at most 288 symbols and this
	// runs once per block.
	for i := 1; i < len(symbolsWithLen); i++ {
		for j := i; j > 0; j-- {
			a, b := symbolsWithLen[j-1], symbolsWithLen[j]
			if a.len < b.len || (a.len == b.len && a.sym <= b.sym) {
				break
			}
			symbolsWithLen[j-1], symbolsWithLen[j] = symbolsWithLen[j], symbolsWithLen[j-1]
		}
	}

	sortedSymbols := make([]uint16, len(symbolsWithLen))
	for i, sl := range symbolsWithLen {
		sortedSymbols[i] = sl.sym
	}

	d := &Decoder{
		lookup:  lookup,
		symbols: sortedSymbols,
		maxBits: maxBits,
	}
	symbolIdx := 0
	for n := 1; n <= 15; n++ {
		d.firstCode[n] = nextCode[n]
		d.firstIndex[n] = symbolIdx
		symbolIdx += int(blCount[n])
	}
	return d, nil
}

// FixedLiteralLength returns the decoder for DEFLATE's fixed Huffman
// literal/length alphabet.
func FixedLiteralLength() *Decoder {
	d, err := FromCodeLengths(deflate.FixedLiteralLengths())
	if err != nil {
		panic(err) // the fixed table is a compile-time constant, always valid
	}
	return d
}

// FixedDistance returns the decoder for DEFLATE's fixed Huffman distance
// alphabet.
func FixedDistance() *Decoder {
	d, err := FromCodeLengths(deflate.FixedDistanceLengths())
	if err != nil {
		panic(err)
	}
	return d
}

// Decode reads the next symbol from r using this decoder's code table.
func (d *Decoder) Decode(r *bits.Reader) (uint16, error) {
	if d.maxBits == 0 {
		return 0, rebgzf.ErrHuffmanIncomplete
	}
	if peek, err := r.PeekBits(lookupBits); err == nil {
		entry := d.lookup[peek]
		if entry.valid() {
			r.ConsumeBits(entry.length())
			return entry.symbol(), nil
		}
	}
	return d.decodeSlow(r)
}

func (d *Decoder) decodeSlow(r *bits.Reader) (uint16, error) {
	var code uint32
	for length := uint8(1); length <= d.maxBits; length++ {
		bit, err := r.ReadBits(1)
		if err != nil {
			return 0, err
		}
		code = (code << 1) | bit

		firstCode, firstIdx := d.firstCode[length], d.firstIndex[length]
		var count int
		if length < 15 {
			count = d.firstIndex[length+1] - firstIdx
		} else {
			count = len(d.symbols) - firstIdx
		}
		if count > 0 && code >= firstCode && code < firstCode+uint32(count) {
			return d.symbols[firstIdx+int(code-firstCode)], nil
		}
	}
	return 0, wrapInvalidSymbol(code)
}

// Empty reports whether this decoder has no symbols (HuffmanIncomplete
// would be returned by Decode).
func (d *Decoder) Empty() bool {
	return len(d.symbols) == 0
}

func wrapCodeLen(n uint8) error {
	return &rebgzf.Error{
		Kind: rebgzf.KindDeflate,
		Msg:  fmt.Sprintf("code length %d exceeds 15 bits", n),
		Err:  rebgzf.ErrInvalidCodeLength,
	}
}

func wrapInvalidSymbol(code uint32) error {
	return &rebgzf.Error{
		Kind: rebgzf.KindDeflate,
		Msg:  fmt.Sprintf("no symbol for Huffman code %#x", code),
		Err:  rebgzf.ErrInvalidHuffmanSym,
	}
}
