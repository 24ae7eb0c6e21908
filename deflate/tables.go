// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package deflate holds the LZ77 token representation and the RFC 1951
// constant tables shared by the DEFLATE parsing and re-encoding layers:
// token sequences are the intermediate representation the transcoder
// re-chunks across BGZF block boundaries.
package deflate

// LengthEntry holds the base length and extra-bit count for one length
// code (257-285).
type LengthEntry struct {
	Base  uint16
	Extra uint8
}

// LengthTable maps length code (code-257) to base length and extra bits,
// per RFC 1951 section 3.2.5.
var LengthTable = [29]LengthEntry{
	{3, 0}, {4, 0}, {5, 0}, {6, 0}, {7, 0}, {8, 0}, {9, 0}, {10, 0},
	{11, 1}, {13, 1}, {15, 1}, {17, 1},
	{19, 2}, {23, 2}, {27, 2}, {31, 2},
	{35, 3}, {43, 3}, {51, 3}, {59, 3},
	{67, 4}, {83, 4}, {99, 4}, {115, 4},
	{131, 5}, {163, 5}, {195, 5}, {227, 5},
	{258, 0}, // 285, special case: no extra bits
}

// DistanceEntry holds the base distance and extra-bit count for one
// distance code.
type DistanceEntry struct {
	Base  uint16
	Extra uint8
}

// DistanceTable maps distance code (0-29) to base distance and extra bits.
var DistanceTable = [30]DistanceEntry{
	{1, 0}, {2, 0}, {3, 0}, {4, 0},
	{5, 1}, {7, 1},
	{9, 2}, {13, 2},
	{17, 3}, {25, 3},
	{33, 4}, {49, 4},
	{65, 5}, {97, 5},
	{129, 6}, {193, 6},
	{257, 7}, {385, 7},
	{513, 8}, {769, 8},
	{1025, 9}, {1537, 9},
	{2049, 10}, {3073, 10},
	{4097, 11}, {6145, 11},
	{8193, 12}, {12289, 12},
	{16385, 13}, {24577, 13},
}

// CodeLengthOrder is the transmission order of the code-length alphabet's
// own 3-bit lengths in a dynamic Huffman block header.
var CodeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// DecodeLength converts a length code (257-285) and its extra bits into
// the match length it represents. ok is false for an out-of-range code.
func DecodeLength(code uint16, extra uint32) (length uint16, ok bool) {
	if code < 257 || code > 285 {
		return 0, false
	}
	e := LengthTable[code-257]
	return e.Base + uint16(extra), true
}

// DecodeDistance converts a distance code (0-29) and its extra bits into
// the back-reference distance it represents.
func DecodeDistance(code uint16, extra uint32) (distance uint16, ok bool) {
	if code > 29 {
		return 0, false
	}
	e := DistanceTable[code]
	return e.Base + uint16(extra), true
}

// EncodeLength finds the length code, extra value and extra bit count for
// a match length in 3..=258.
func EncodeLength(length uint16) (code, extraValue uint16, extraBits uint8, ok bool) {
	if length < 3 || length > 258 {
		return 0, 0, 0, false
	}
	if length == 258 {
		return 285, 0, 0, true
	}
	for i, e := range LengthTable {
		maxLen := e.Base
		if e.Extra > 0 {
			maxLen = e.Base + (1<<e.Extra - 1)
		}
		if length >= e.Base && length <= maxLen {
			return uint16(i) + 257, length - e.Base, e.Extra, true
		}
	}
	return 0, 0, 0, false
}

// EncodeDistance finds the distance code, extra value and extra bit count
// for a back-reference distance in 1..=32768.
func EncodeDistance(distance uint16) (code, extraValue uint16, extraBits uint8, ok bool) {
	if distance < 1 {
		return 0, 0, 0, false
	}
	for i, e := range DistanceTable {
		maxDist := e.Base
		if e.Extra > 0 {
			maxDist = e.Base + (1<<e.Extra - 1)
		}
		if distance >= e.Base && distance <= maxDist {
			return uint16(i), distance - e.Base, e.Extra, true
		}
	}
	return 0, 0, 0, false
}

// FixedLiteralLengths returns the fixed Huffman literal/length code
// lengths from RFC 1951 section 3.2.6.
func FixedLiteralLengths() []uint8 {
	lengths := make([]uint8, 288)
	for i := 0; i <= 143; i++ {
		lengths[i] = 8
	}
	for i := 144; i <= 255; i++ {
		lengths[i] = 9
	}
	for i := 256; i <= 279; i++ {
		lengths[i] = 7
	}
	for i := 280; i <= 287; i++ {
		lengths[i] = 8
	}
	return lengths
}

// FixedDistanceLengths returns the fixed Huffman distance code lengths,
// all 5 bits.
func FixedDistanceLengths() []uint8 {
	lengths := make([]uint8, 32)
	for i := range lengths {
		lengths[i] = 5
	}
	return lengths
}
