// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transcoder

import (
	"bufio"
	"errors"
	"io"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/bits"
	"github.com/nh13/rebgzf/deflate"
	"github.com/nh13/rebgzf/huffman"
	"github.com/nh13/rebgzf/inflate"
	"github.com/nh13/rebgzf/internal/bgzf"
	igzip "github.com/nh13/rebgzf/internal/gzip"
)

// SingleThreadedTranscoder transcodes gzip to BGZF on the calling
// goroutine, re-chunking the parsed DEFLATE token stream into BGZF
// blocks and re-encoding each one.
type SingleThreadedTranscoder struct {
	config rebgzf.TranscodeConfig
}

// NewSingleThreadedTranscoder returns a SingleThreadedTranscoder using
// config.
func NewSingleThreadedTranscoder(config rebgzf.TranscodeConfig) *SingleThreadedTranscoder {
	return &SingleThreadedTranscoder{config: config}
}

// Transcode implements rebgzf.Transcoder.
func (t *SingleThreadedTranscoder) Transcode(input io.Reader, output io.Writer) (rebgzf.TranscodeStats, error) {
	remaining, stats, copied, err := tryPassthrough(t.config, input, output)
	if err != nil {
		return rebgzf.TranscodeStats{}, err
	}
	if copied {
		return stats, nil
	}

	bufIn := bufio.NewReaderSize(remaining, t.config.BufferSize)
	bufOut := bufio.NewWriterSize(output, t.config.BufferSize)

	if _, err := igzip.ParseHeader(bufIn); err != nil {
		return rebgzf.TranscodeStats{}, err
	}

	bitReader := bits.NewReader(bufIn)
	resolver := NewBoundaryResolver()
	encoder := huffman.NewEncoder(t.config.UseFixedHuffman())
	bgzfWriter := bgzf.NewBlockWriter(bufOut)
	splitter := newSplitter(t.config)
	smart := t.config.UseSmartBoundaries()

	var indexBuilder *bgzf.GziIndexBuilder
	if t.config.BuildIndex {
		indexBuilder = bgzf.NewGziIndexBuilder()
	}

	pendingTokens := make([]deflate.LZ77Token, 0, 8192)
	pendingSize := 0
	blockStart := uint64(0)

	blockSize, hardCeiling := blockLimits(t.config.BlockSize)

	emit := func() error {
		if len(pendingTokens) == 0 {
			return nil
		}
		if err := t.emitBlock(resolver, encoder, bgzfWriter, indexBuilder, pendingTokens, blockStart, &stats); err != nil {
			return err
		}
		blockStart = resolver.Position()
		pendingTokens = pendingTokens[:0]
		pendingSize = 0
		splitter.Reset()
		return nil
	}

	for {
		parser := inflate.NewParser(bitReader)

		for {
			block, err := parser.ParseBlock()
			if err != nil {
				return rebgzf.TranscodeStats{}, err
			}
			if block == nil {
				break
			}

			for _, tok := range block.Tokens {
				if tok.Kind == deflate.EndOfBlock {
					continue
				}
				tokenSize := tok.UncompressedSize()

				if !smart {
					if pendingSize+tokenSize > blockSize && len(pendingTokens) > 0 {
						if err := emit(); err != nil {
							return rebgzf.TranscodeStats{}, err
						}
					}
					pendingTokens = append(pendingTokens, tok)
					pendingSize += tokenSize
					splitter.ProcessToken(tok)
					continue
				}

				pendingTokens = append(pendingTokens, tok)
				pendingSize += tokenSize
				splitter.ProcessToken(tok)

				if pendingSize >= hardCeiling || (pendingSize >= blockSize && splitter.IsGoodSplitPoint()) {
					if err := emit(); err != nil {
						return rebgzf.TranscodeStats{}, err
					}
				}
			}

			stats.InputBytes = parser.BytesRead()
		}

		if _, err := igzip.ParseTrailer(bitReader); err != nil {
			return rebgzf.TranscodeStats{}, err
		}
		if _, err := igzip.ParseHeader(bitReader); err != nil {
			if errors.Is(err, rebgzf.ErrUnexpectedEOF) {
				break
			}
			return rebgzf.TranscodeStats{}, err
		}
		// Another gzip member follows; loop to parse it with a fresh
		// Parser over the same bit reader.
	}

	// Pick up the trailer and header-probe bytes consumed after the
	// last block's tokens were counted.
	stats.InputBytes = bitReader.BytesRead()

	if err := emit(); err != nil {
		return rebgzf.TranscodeStats{}, err
	}

	if err := bgzfWriter.WriteEOF(); err != nil {
		return rebgzf.TranscodeStats{}, err
	}
	stats.OutputBytes += uint64(len(bgzf.EOF))

	resolved, _ := resolver.Stats()
	stats.BoundaryRefsResolved = resolved

	if indexBuilder != nil {
		stats.IndexEntries = toIndexEntries(indexBuilder)
	}

	if err := bufOut.Flush(); err != nil {
		return rebgzf.TranscodeStats{}, wrapIO(err)
	}

	return stats, nil
}

func (t *SingleThreadedTranscoder) emitBlock(
	resolver *BoundaryResolver,
	encoder *huffman.Encoder,
	bgzfWriter *bgzf.BlockWriter,
	indexBuilder *bgzf.GziIndexBuilder,
	tokens []deflate.LZ77Token,
	blockStart uint64,
	stats *rebgzf.TranscodeStats,
) error {
	resolved, err := resolver.ResolveBlock(blockStart, tokens)
	if err != nil {
		return err
	}
	uncompressed := collectUncompressed(resolved)
	deflateData := encoder.Encode(resolved, true)

	if err := bgzfWriter.WriteBlock(deflateData, uncompressed); err != nil {
		return err
	}

	blockBytes := uint64(bgzf.HeaderSize + len(deflateData) + bgzf.FooterSize)
	if indexBuilder != nil {
		indexBuilder.AddBlock(blockBytes, uint64(len(uncompressed)))
	}

	stats.BlocksWritten++
	stats.OutputBytes += blockBytes
	return nil
}

// blockLimits clamps a configured target block size into the BGZF
// range and derives the smart-splitting hard ceiling. The ceiling
// allows 10% slack past the target while waiting for a good split
// point, but since the emit check runs after a token is appended, a
// block can overshoot the ceiling by one maximum-length copy; the cap
// keeps that worst case within the 64KB uncompressed block limit.
func blockLimits(configured int) (blockSize, hardCeiling int) {
	blockSize = configured
	if blockSize <= 0 || blockSize > bgzf.MaxUncompressedBlockSize {
		blockSize = bgzf.MaxUncompressedBlockSize
	}
	hardCeiling = blockSize + blockSize/10
	if hardCeiling > bgzf.MaxUncompressedBlockSize-maxCopyLength {
		hardCeiling = bgzf.MaxUncompressedBlockSize - maxCopyLength
	}
	return blockSize, hardCeiling
}

// maxCopyLength is DEFLATE's longest back-reference copy.
const maxCopyLength = 258

// newSplitter chooses the block splitter matching config's format
// profile: FASTQ record-boundary awareness for ProfileFastq, plain
// size-driven splitting otherwise.
func newSplitter(config rebgzf.TranscodeConfig) BlockSplitter {
	if config.Format == rebgzf.ProfileFastq {
		return NewFastqSplitter()
	}
	return NewDefaultSplitter()
}

func toIndexEntries(b *bgzf.GziIndexBuilder) []rebgzf.IndexEntry {
	src := b.Entries()
	entries := make([]rebgzf.IndexEntry, len(src))
	for i, e := range src {
		entries[i] = rebgzf.IndexEntry{
			CompressedOffset:   e.CompressedOffset,
			UncompressedOffset: e.UncompressedOffset,
		}
	}
	return entries
}

// collectUncompressed replays a resolved token stream through a fresh
// SlidingWindow to recover the literal bytes it represents, needed to
// checksum the block for its BGZF footer.
func collectUncompressed(tokens []deflate.LZ77Token) []byte {
	var result []byte
	window := NewSlidingWindow()

	for _, tok := range tokens {
		switch tok.Kind {
		case deflate.Literal:
			result = append(result, tok.Byte)
			window.PushByte(tok.Byte)
		case deflate.Copy:
			start := len(result)
			result = window.AppendTo(result, tok.Distance, tok.Length)
			window.PushBytes(result[start:])
		case deflate.EndOfBlock:
		}
	}

	return result
}

func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	return &rebgzf.Error{Kind: rebgzf.KindOther, Msg: "transcoder I/O error", Err: err}
}
