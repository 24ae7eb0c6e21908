// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package rebgzf transcodes plain gzip streams into BGZF (Blocked
// GZip Format), the block-indexable variant used throughout genomics
// tooling, without needing to fully decompress and recompress the
// underlying data: it parses the existing DEFLATE token stream,
// re-chunks it into BGZF-sized blocks, resolves any LZ77 back
// references that would otherwise cross a new block boundary, and
// re-encodes each block's tokens into a fresh DEFLATE block.
package rebgzf

import (
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// CompressionLevel selects the Huffman strategy used when re-encoding
// each BGZF block.
//
//   - Levels 1-3 use the fixed Huffman tables (fastest, larger output).
//   - Levels 4-6 compute a fresh dynamic Huffman table per block.
//   - Levels 7-9 additionally enable smart boundary splitting.
type CompressionLevel uint8

const (
	Level1 CompressionLevel = 1
	Level2 CompressionLevel = 2
	Level3 CompressionLevel = 3
	Level4 CompressionLevel = 4
	Level5 CompressionLevel = 5
	Level6 CompressionLevel = 6
	Level7 CompressionLevel = 7
	Level8 CompressionLevel = 8
	Level9 CompressionLevel = 9
)

// LevelFromInt clamps an arbitrary integer level into the valid
// CompressionLevel range.
func LevelFromInt(level int) CompressionLevel {
	switch {
	case level <= 1:
		return Level1
	case level >= 9:
		return Level9
	default:
		return CompressionLevel(level)
	}
}

// UseFixedHuffman reports whether this level re-encodes with the fixed
// Huffman tables rather than computing a dynamic table per block.
func (l CompressionLevel) UseFixedHuffman() bool {
	return l == Level1 || l == Level2 || l == Level3
}

// UseSmartBoundaries reports whether this level enables record-aware
// block splitting rather than pure size-based splitting.
func (l CompressionLevel) UseSmartBoundaries() bool {
	return l == Level7 || l == Level8 || l == Level9
}

// FormatProfile selects input-aware tuning of the splitting strategy.
type FormatProfile uint8

const (
	// ProfileDefault disables record-aware splitting.
	ProfileDefault FormatProfile = iota
	// ProfileFastq aligns block boundaries to FASTQ record boundaries.
	ProfileFastq
	// ProfileAuto resolves to ProfileFastq or ProfileDefault based on
	// the input file's name.
	ProfileAuto
)

// DetectFromPath infers a FormatProfile from a file name's extension.
func DetectFromPath(path string) FormatProfile {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".fastq.gz") || strings.HasSuffix(name, ".fq.gz") {
		return ProfileFastq
	}
	return ProfileDefault
}

// Resolve turns ProfileAuto into a concrete profile using path, leaving
// any other profile unchanged.
func (f FormatProfile) Resolve(path string) FormatProfile {
	if f != ProfileAuto {
		return f
	}
	if path == "" {
		return ProfileDefault
	}
	return DetectFromPath(path)
}

// TranscodeConfig controls how a Transcoder re-chunks and re-encodes
// its input.
type TranscodeConfig struct {
	// BlockSize is the target uncompressed payload size per BGZF
	// block; it is clamped to MaxUncompressedBlockSize.
	BlockSize int
	// CompressionLevel selects the Huffman re-encoding strategy.
	CompressionLevel CompressionLevel
	// Format selects input-aware splitting tuning.
	Format FormatProfile
	// NumThreads is the worker count for ParallelTranscoder; 0 means
	// auto-detect from runtime.NumCPU, 1 forces single-threaded.
	NumThreads int
	// BufferSize sizes the buffered reader/writer wrapping the raw
	// I/O streams.
	BufferSize int
	// StrictBGZFCheck validates every block header of an
	// already-BGZF input rather than just the first.
	StrictBGZFCheck bool
	// ForceTranscode skips the BGZF passthrough detection entirely.
	ForceTranscode bool
	// BuildIndex, when true, populates TranscodeStats.IndexEntries with
	// one (compressed offset, uncompressed offset) pair per data block
	// written, suitable for writing out as a GZI random-access index.
	BuildIndex bool
}

// defaultBlockSize is BGZF's recommended uncompressed block size,
// leaving headroom for worst-case DEFLATE expansion.
const defaultBlockSize = 65280

const maxThreads = 32

// TranscodeOption mutates a TranscodeConfig under construction.
type TranscodeOption func(*TranscodeConfig)

// WithBlockSize overrides the target uncompressed block size.
func WithBlockSize(size int) TranscodeOption {
	return func(c *TranscodeConfig) { c.BlockSize = size }
}

// WithCompressionLevel overrides the compression level.
func WithCompressionLevel(level CompressionLevel) TranscodeOption {
	return func(c *TranscodeConfig) { c.CompressionLevel = level }
}

// WithFormatProfile overrides the format profile.
func WithFormatProfile(profile FormatProfile) TranscodeOption {
	return func(c *TranscodeConfig) { c.Format = profile }
}

// WithNumThreads overrides the worker count used by ParallelTranscoder.
func WithNumThreads(n int) TranscodeOption {
	return func(c *TranscodeConfig) { c.NumThreads = n }
}

// WithBufferSize overrides the I/O buffer size.
func WithBufferSize(n int) TranscodeOption {
	return func(c *TranscodeConfig) { c.BufferSize = n }
}

// WithStrictBGZFCheck enables thorough validation of already-BGZF
// input before passthrough.
func WithStrictBGZFCheck(strict bool) TranscodeOption {
	return func(c *TranscodeConfig) { c.StrictBGZFCheck = strict }
}

// WithForceTranscode skips BGZF passthrough detection entirely.
func WithForceTranscode(force bool) TranscodeOption {
	return func(c *TranscodeConfig) { c.ForceTranscode = force }
}

// WithBuildIndex enables population of TranscodeStats.IndexEntries.
func WithBuildIndex(build bool) TranscodeOption {
	return func(c *TranscodeConfig) { c.BuildIndex = build }
}

// NewTranscodeConfig returns a TranscodeConfig with the package
// defaults, then applies opts in order.
func NewTranscodeConfig(opts ...TranscodeOption) TranscodeConfig {
	c := TranscodeConfig{
		BlockSize:        defaultBlockSize,
		CompressionLevel: Level1,
		Format:           ProfileDefault,
		NumThreads:       0,
		BufferSize:       128 * 1024,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// UseFixedHuffman reports whether c's compression level re-encodes
// with fixed Huffman tables.
func (c TranscodeConfig) UseFixedHuffman() bool {
	return c.CompressionLevel.UseFixedHuffman()
}

// UseSmartBoundaries reports whether c should align block boundaries
// to logical record boundaries rather than splitting on size alone.
func (c TranscodeConfig) UseSmartBoundaries() bool {
	return c.CompressionLevel.UseSmartBoundaries() || c.Format == ProfileFastq
}

// EffectiveThreads resolves NumThreads=0 to the host's CPU count,
// clamped to a sane maximum worker count.
func (c TranscodeConfig) EffectiveThreads() int {
	n := c.NumThreads
	if n == 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		return 1
	}
	if n > maxThreads {
		return maxThreads
	}
	return n
}

// IndexEntry is one GZI random-access index record: the byte offset of
// a BGZF block's start in the compressed stream paired with the byte
// offset of its first uncompressed byte in the decompressed stream.
type IndexEntry struct {
	CompressedOffset   uint64
	UncompressedOffset uint64
}

// TranscodeStats reports the outcome of one Transcode call.
type TranscodeStats struct {
	InputBytes           uint64
	OutputBytes          uint64
	BlocksWritten        uint64
	BoundaryRefsResolved uint64
	// CopiedDirectly is true when the input was already valid BGZF and
	// was streamed through unchanged instead of being re-encoded.
	CopiedDirectly bool
	// IndexEntries holds one entry per data block written, populated
	// only when TranscodeConfig.BuildIndex is set.
	IndexEntries []IndexEntry
}

// Transcoder converts a gzip stream into BGZF on Transcode.
type Transcoder interface {
	Transcode(input io.Reader, output io.Writer) (TranscodeStats, error)
}
