// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package inflate parses RFC 1951 DEFLATE bitstreams into LZ77 token
// blocks, without materializing the decompressed bytes.
package inflate

import (
	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/bits"
	"github.com/nh13/rebgzf/deflate"
	"github.com/nh13/rebgzf/huffman"
)

// Parser walks a DEFLATE bitstream and yields LZ77Blocks, one per
// BFINAL/BTYPE header it encounters, stopping once the final block has
// been parsed.
type Parser struct {
	bits     *bits.Reader
	finished bool
}

// NewParser returns a Parser reading from the bit-level reader r.
func NewParser(r *bits.Reader) *Parser {
	return &Parser{bits: r}
}

// ParseBlock parses the next DEFLATE block. It returns (nil, nil) once
// the final block has already been consumed.
func (p *Parser) ParseBlock() (*deflate.LZ77Block, error) {
	if p.finished {
		return nil, nil
	}

	isFinal, err := p.bits.ReadBit()
	if err != nil {
		return nil, err
	}
	btype, err := p.bits.ReadBits(2)
	if err != nil {
		return nil, err
	}

	var block *deflate.LZ77Block
	switch btype {
	case 0:
		block, err = p.parseStoredBlock(isFinal)
	case 1:
		block, err = p.parseFixedBlock(isFinal)
	case 2:
		block, err = p.parseDynamicBlock(isFinal)
	default:
		return nil, rebgzf.ErrInvalidBlockType
	}
	if err != nil {
		return nil, err
	}
	if isFinal {
		p.finished = true
	}
	return block, nil
}

func (p *Parser) parseStoredBlock(isFinal bool) (*deflate.LZ77Block, error) {
	p.bits.AlignToByte()
	length, err := p.bits.ReadUint16LE()
	if err != nil {
		return nil, err
	}
	nlen, err := p.bits.ReadUint16LE()
	if err != nil {
		return nil, err
	}
	if length != ^nlen {
		return nil, rebgzf.ErrStoredLengthMismatch
	}

	tokens := make([]deflate.LZ77Token, 0, int(length)+1)
	for i := uint16(0); i < length; i++ {
		b, err := p.bits.ReadBits(8)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, deflate.NewLiteral(byte(b)))
	}
	tokens = append(tokens, deflate.NewEndOfBlock())
	return &deflate.LZ77Block{Tokens: tokens, IsFinal: isFinal, BlockType: 0}, nil
}

func (p *Parser) parseFixedBlock(isFinal bool) (*deflate.LZ77Block, error) {
	litDecoder := huffman.FixedLiteralLength()
	distDecoder := huffman.FixedDistance()
	tokens, err := p.decodeSymbols(litDecoder, distDecoder)
	if err != nil {
		return nil, err
	}
	return &deflate.LZ77Block{Tokens: tokens, IsFinal: isFinal, BlockType: 1}, nil
}

func (p *Parser) parseDynamicBlock(isFinal bool) (*deflate.LZ77Block, error) {
	hlitBits, err := p.bits.ReadBits(5)
	if err != nil {
		return nil, err
	}
	hlit := int(hlitBits) + 257
	hdistBits, err := p.bits.ReadBits(5)
	if err != nil {
		return nil, err
	}
	hdist := int(hdistBits) + 1
	hclenBits, err := p.bits.ReadBits(4)
	if err != nil {
		return nil, err
	}
	hclen := int(hclenBits) + 4

	var codeLengthLengths [19]uint8
	for i := 0; i < hclen; i++ {
		v, err := p.bits.ReadBits(3)
		if err != nil {
			return nil, err
		}
		codeLengthLengths[deflate.CodeLengthOrder[i]] = uint8(v)
	}

	codeLengthDecoder, err := huffman.FromCodeLengths(codeLengthLengths[:])
	if err != nil {
		return nil, err
	}

	total := hlit + hdist
	allLengths := make([]uint8, 0, total)
	for len(allLengths) < total {
		sym, err := codeLengthDecoder.Decode(p.bits)
		if err != nil {
			return nil, err
		}
		switch {
		case sym <= 15:
			allLengths = append(allLengths, uint8(sym))
		case sym == 16:
			repeatBits, err := p.bits.ReadBits(2)
			if err != nil {
				return nil, err
			}
			repeat := int(repeatBits) + 3
			if len(allLengths) == 0 {
				return nil, rebgzf.ErrHuffmanIncomplete
			}
			prev := allLengths[len(allLengths)-1]
			for i := 0; i < repeat; i++ {
				allLengths = append(allLengths, prev)
			}
		case sym == 17:
			repeatBits, err := p.bits.ReadBits(3)
			if err != nil {
				return nil, err
			}
			repeat := int(repeatBits) + 3
			for i := 0; i < repeat; i++ {
				allLengths = append(allLengths, 0)
			}
		case sym == 18:
			repeatBits, err := p.bits.ReadBits(7)
			if err != nil {
				return nil, err
			}
			repeat := int(repeatBits) + 11
			for i := 0; i < repeat; i++ {
				allLengths = append(allLengths, 0)
			}
		default:
			return nil, rebgzf.ErrInvalidHuffmanSym
		}
	}

	literalLengths := append([]uint8(nil), allLengths[:hlit]...)
	distanceLengths := append([]uint8(nil), allLengths[hlit:]...)

	litDecoder, err := huffman.FromCodeLengths(literalLengths)
	if err != nil {
		return nil, err
	}
	var distDecoder *huffman.Decoder
	allZero := true
	for _, l := range distanceLengths {
		if l != 0 {
			allZero = false
			break
		}
	}
	if !allZero {
		distDecoder, err = huffman.FromCodeLengths(distanceLengths)
		if err != nil {
			return nil, err
		}
	}

	tokens, err := p.decodeSymbols(litDecoder, distDecoder)
	if err != nil {
		return nil, err
	}

	return &deflate.LZ77Block{
		Tokens:    tokens,
		IsFinal:   isFinal,
		BlockType: 2,
		CodeLengths: &deflate.CodeLengths{
			Literal:  literalLengths,
			Distance: distanceLengths,
		},
	}, nil
}

func (p *Parser) decodeSymbols(litDecoder, distDecoder *huffman.Decoder) ([]deflate.LZ77Token, error) {
	tokens := make([]deflate.LZ77Token, 0, 1024)
	for {
		sym, err := litDecoder.Decode(p.bits)
		if err != nil {
			return nil, err
		}
		switch {
		case sym <= 255:
			tokens = append(tokens, deflate.NewLiteral(byte(sym)))
		case sym == 256:
			tokens = append(tokens, deflate.NewEndOfBlock())
			return tokens, nil
		case sym <= 285:
			idx := sym - 257
			e := deflate.LengthTable[idx]
			var extra uint32
			if e.Extra > 0 {
				extra, err = p.bits.ReadBits(e.Extra)
				if err != nil {
					return nil, err
				}
			}
			length := e.Base + uint16(extra)

			if distDecoder == nil {
				return nil, rebgzf.ErrInvalidDistanceCode
			}
			distSym, err := distDecoder.Decode(p.bits)
			if err != nil {
				return nil, err
			}
			if distSym > 29 {
				return nil, rebgzf.ErrInvalidDistanceCode
			}
			de := deflate.DistanceTable[distSym]
			var distExtra uint32
			if de.Extra > 0 {
				distExtra, err = p.bits.ReadBits(de.Extra)
				if err != nil {
					return nil, err
				}
			}
			distance := de.Base + uint16(distExtra)
			tokens = append(tokens, deflate.NewCopy(length, distance))
		default:
			return nil, rebgzf.ErrInvalidLengthCode
		}
	}
}

// BytesRead returns the number of bytes consumed from the underlying
// bit-level reader so far.
func (p *Parser) BytesRead() uint64 {
	return p.bits.BytesRead()
}

// IsFinished reports whether the final DEFLATE block has been parsed.
func (p *Parser) IsFinished() bool {
	return p.finished
}

// BitReader returns the underlying bit-level reader, for reading the
// gzip trailer that follows the compressed data.
func (p *Parser) BitReader() *bits.Reader {
	return p.bits
}
