// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package huffman

import (
	"github.com/nh13/rebgzf/bits"
	"github.com/nh13/rebgzf/deflate"
)

// Encoder re-encodes LZ77 token streams as DEFLATE blocks, either with
// the fixed Huffman tables (fast, levels 1-3) or with freshly computed
// length-limited dynamic tables (levels 4-9).
type Encoder struct {
	useFixed bool

	fixedLitCodes  []CodeEntry
	fixedDistCodes []CodeEntry
}

// NewEncoder returns an Encoder. useFixed selects BTYPE=1 (fixed) output;
// otherwise each call to Encode computes a fresh dynamic (BTYPE=2) table
// from the token stream's own symbol frequencies.
func NewEncoder(useFixed bool) *Encoder {
	return &Encoder{
		useFixed:       useFixed,
		fixedLitCodes:  BuildCodesFromLengths(deflate.FixedLiteralLengths()),
		fixedDistCodes: BuildCodesFromLengths(deflate.FixedDistanceLengths()),
	}
}

// Encode writes tokens as a single DEFLATE block, marking it final if
// isFinal is set, and returns the encoded bytes.
func (e *Encoder) Encode(tokens []deflate.LZ77Token, isFinal bool) []byte {
	w := bits.NewWriter(len(tokens) * 2)
	w.WriteBit(isFinal)
	if e.useFixed {
		w.WriteBits(1, 2) // BTYPE = 01
		e.encodeWithCodes(w, tokens, e.fixedLitCodes, e.fixedDistCodes)
	} else {
		e.encodeDynamic(w, tokens)
	}
	return w.Finish()
}

func (e *Encoder) encodeWithCodes(w *bits.Writer, tokens []deflate.LZ77Token, lit, dist []CodeEntry) {
	for _, t := range tokens {
		switch t.Kind {
		case deflate.Literal:
			c := lit[t.Byte]
			w.WriteBitsReversed(c.Code, c.Length)
		case deflate.Copy:
			if lenCode, extraVal, extraBits, ok := deflate.EncodeLength(t.Length); ok {
				c := lit[lenCode]
				w.WriteBitsReversed(c.Code, c.Length)
				if extraBits > 0 {
					w.WriteBits(uint32(extraVal), extraBits)
				}
			}
			if distCode, extraVal, extraBits, ok := deflate.EncodeDistance(t.Distance); ok {
				c := dist[distCode]
				w.WriteBitsReversed(c.Code, c.Length)
				if extraBits > 0 {
					w.WriteBits(uint32(extraVal), extraBits)
				}
			}
		case deflate.EndOfBlock:
			// written unconditionally below
		}
	}
	eob := lit[256]
	w.WriteBitsReversed(eob.Code, eob.Length)
}

// encodeDynamic builds fresh literal/length and distance frequency
// tables from tokens, computes length-limited canonical codes (capped at
// 15 bits), RLE-encodes the concatenated length vector through the
// 19-symbol code-length alphabet (capped at 7 bits), and writes the
// BTYPE=2 header followed by the token stream.
func (e *Encoder) encodeDynamic(w *bits.Writer, tokens []deflate.LZ77Token) {
	litFreq := make([]uint32, 286)
	distFreq := make([]uint32, 30)
	litFreq[256] = 1 // EOB must always be codeable
	haveCopy := false
	for _, t := range tokens {
		switch t.Kind {
		case deflate.Literal:
			litFreq[t.Byte]++
		case deflate.Copy:
			if code, _, _, ok := deflate.EncodeLength(t.Length); ok {
				litFreq[code]++
			}
			if code, _, _, ok := deflate.EncodeDistance(t.Distance); ok {
				distFreq[code]++
				haveCopy = true
			}
		}
	}
	if !haveCopy {
		distFreq[0] = 1 // at least one distance code must exist
	}

	// EOB is codeable because its frequency was forced above; the same
	// holds for distance symbol 0 when the stream has no copies.
	litLengths := BuildLengthLimited(litFreq, 15)
	distLengths := BuildLengthLimited(distFreq, 15)

	hlit := lastNonZero(litLengths, 257) + 1
	hdist := lastNonZero(distLengths, 1) + 1

	combined := make([]uint8, 0, hlit+hdist)
	combined = append(combined, litLengths[:hlit]...)
	combined = append(combined, distLengths[:hdist]...)

	clSymbols, clExtra := runLengthEncode(combined)
	clFreq := make([]uint32, 19)
	for _, s := range clSymbols {
		clFreq[s]++
	}
	clLengths := BuildLengthLimited(clFreq, 7)

	hclen := lastOrderedNonZero(clLengths) + 1
	if hclen < 4 {
		hclen = 4
	}

	w.WriteBits(2, 2) // BTYPE = 10
	w.WriteBits(uint32(hlit-257), 5)
	w.WriteBits(uint32(hdist-1), 5)
	w.WriteBits(uint32(hclen-4), 4)
	for i := 0; i < hclen; i++ {
		w.WriteBits(uint32(clLengths[deflate.CodeLengthOrder[i]]), 3)
	}

	clCodes := BuildCodesFromLengths(clLengths)
	extraIdx := 0
	for _, sym := range clSymbols {
		c := clCodes[sym]
		w.WriteBitsReversed(c.Code, c.Length)
		switch sym {
		case 16:
			w.WriteBits(uint32(clExtra[extraIdx]), 2)
			extraIdx++
		case 17:
			w.WriteBits(uint32(clExtra[extraIdx]), 3)
			extraIdx++
		case 18:
			w.WriteBits(uint32(clExtra[extraIdx]), 7)
			extraIdx++
		}
	}

	litCodes := BuildCodesFromLengths(litLengths)
	distCodes := BuildCodesFromLengths(distLengths)
	e.encodeWithCodes(w, tokens, litCodes, distCodes)
}

// runLengthEncode applies the DEFLATE code-length RLE scheme (symbols
// 0-15 literal, 16 repeat-previous, 17/18 zero-runs) to a concatenated
// literal+distance length vector, returning the symbol stream and the
// extra-bits values for symbols 16-18 in order.
func runLengthEncode(lengths []uint8) (symbols []uint16, extras []uint16) {
	i := 0
	for i < len(lengths) {
		l := lengths[i]
		total := 1
		for i+total < len(lengths) && lengths[i+total] == l {
			total++
		}
		remaining := total
		if l == 0 {
			for remaining > 0 {
				switch {
				case remaining >= 11:
					n := remaining
					if n > 138 {
						n = 138
					}
					symbols = append(symbols, 18)
					extras = append(extras, uint16(n-11))
					remaining -= n
				case remaining >= 3:
					n := remaining
					if n > 10 {
						n = 10
					}
					symbols = append(symbols, 17)
					extras = append(extras, uint16(n-3))
					remaining -= n
				default:
					symbols = append(symbols, 0)
					remaining--
				}
			}
		} else {
			symbols = append(symbols, uint16(l))
			remaining--
			for remaining > 0 {
				if remaining >= 3 {
					n := remaining
					if n > 6 {
						n = 6
					}
					symbols = append(symbols, 16)
					extras = append(extras, uint16(n-3))
					remaining -= n
				} else {
					symbols = append(symbols, uint16(l))
					remaining--
				}
			}
		}
		i += total
	}
	return symbols, extras
}

func lastNonZero(lengths []uint8, min int) int {
	last := min - 1
	for i, l := range lengths {
		if l != 0 && i > last {
			last = i
		}
	}
	if last < min-1 {
		last = min - 1
	}
	return last
}

func lastOrderedNonZero(lengths []uint8) int {
	last := 3
	for i, sym := range deflate.CodeLengthOrder {
		if lengths[sym] != 0 && i > last {
			last = i
		}
	}
	return last
}
