// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package deflate

// TokenKind discriminates the three shapes an LZ77Token can take.
type TokenKind uint8

const (
	Literal TokenKind = iota
	Copy
	EndOfBlock
)

// LZ77Token is a single token in a DEFLATE block's decompressed token
// stream: a literal byte, a back-reference copy, or the block terminator.
type LZ77Token struct {
	Kind     TokenKind
	Byte     byte
	Length   uint16
	Distance uint16
}

// NewLiteral returns a Literal token for b.
func NewLiteral(b byte) LZ77Token { return LZ77Token{Kind: Literal, Byte: b} }

// NewCopy returns a Copy token referencing length bytes at distance back.
func NewCopy(length, distance uint16) LZ77Token {
	return LZ77Token{Kind: Copy, Length: length, Distance: distance}
}

// NewEndOfBlock returns the EndOfBlock sentinel token.
func NewEndOfBlock() LZ77Token { return LZ77Token{Kind: EndOfBlock} }

// UncompressedSize returns how many decompressed bytes this token
// represents: 1 for a literal, Length for a copy, 0 for EndOfBlock.
func (t LZ77Token) UncompressedSize() int {
	switch t.Kind {
	case Literal:
		return 1
	case Copy:
		return int(t.Length)
	default:
		return 0
	}
}

// CodeLengths carries the per-symbol code lengths of a dynamic Huffman
// block, needed to re-encode an equivalent block after re-chunking.
type CodeLengths struct {
	Literal  []uint8 // up to 286 symbols
	Distance []uint8 // up to 30 symbols
}

// LZ77Block is one parsed DEFLATE block together with the metadata needed
// to reconstruct an equivalent block (its final-block flag, block type,
// and, for dynamic blocks, the original code lengths).
type LZ77Block struct {
	Tokens      []LZ77Token
	IsFinal     bool
	BlockType   uint8 // 0=stored, 1=fixed, 2=dynamic
	CodeLengths *CodeLengths
}

// UncompressedSize returns the total decompressed size of the block.
func (b *LZ77Block) UncompressedSize() int {
	n := 0
	for _, t := range b.Tokens {
		n += t.UncompressedSize()
	}
	return n
}
