// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transcoder

import "github.com/nh13/rebgzf/deflate"

// BlockSplitter decides where BGZF block boundaries should fall.
// Implementations can improve compression and downstream tooling by
// aligning block boundaries with logical record boundaries, such as
// FASTQ records, rather than cutting purely on accumulated size.
type BlockSplitter interface {
	// ProcessToken updates internal state as a token is appended to
	// the block currently being assembled.
	ProcessToken(token deflate.LZ77Token)

	// IsGoodSplitPoint reports whether the position immediately after
	// the last processed token is an acceptable place to end a block.
	IsGoodSplitPoint() bool

	// BytesSinceLastGoodSplit returns how many uncompressed bytes have
	// accumulated since the last good split point, so callers can
	// decide whether to backtrack to it.
	BytesSinceLastGoodSplit() int

	// Reset prepares the splitter for a new block.
	Reset()
}

// DefaultSplitter treats every position as an acceptable split point,
// preserving plain size-based block splitting.
type DefaultSplitter struct{}

// NewDefaultSplitter returns a DefaultSplitter.
func NewDefaultSplitter() *DefaultSplitter { return &DefaultSplitter{} }

func (*DefaultSplitter) ProcessToken(deflate.LZ77Token) {}
func (*DefaultSplitter) IsGoodSplitPoint() bool         { return true }
func (*DefaultSplitter) BytesSinceLastGoodSplit() int   { return 0 }
func (*DefaultSplitter) Reset()                         {}

// FastqSplitter identifies FASTQ record boundaries at the LZ77 token
// level. A FASTQ record is four lines - header, sequence, a '+'
// separator, and quality scores - so every fourth newline ends a
// record. Copy tokens are treated conservatively: since the splitter
// never sees the bytes a Copy token represents, any Copy is assumed to
// leave the stream mid-record.
type FastqSplitter struct {
	newlineCount        uint8
	bytesSinceRecordEnd int
	atRecordBoundary    bool
}

// NewFastqSplitter returns a FastqSplitter ready for the start of a
// file, which is itself a valid record boundary.
func NewFastqSplitter() *FastqSplitter {
	return &FastqSplitter{atRecordBoundary: true}
}

func (s *FastqSplitter) ProcessToken(token deflate.LZ77Token) {
	switch token.Kind {
	case deflate.Literal:
		s.bytesSinceRecordEnd++
		if token.Byte == '\n' {
			s.newlineCount = (s.newlineCount + 1) % 4
			if s.newlineCount == 0 {
				s.atRecordBoundary = true
				s.bytesSinceRecordEnd = 0
			} else {
				s.atRecordBoundary = false
			}
		} else {
			s.atRecordBoundary = false
		}

	case deflate.Copy:
		s.bytesSinceRecordEnd += int(token.Length)
		s.atRecordBoundary = false

	case deflate.EndOfBlock:
	}
}

func (s *FastqSplitter) IsGoodSplitPoint() bool       { return s.atRecordBoundary }
func (s *FastqSplitter) BytesSinceLastGoodSplit() int { return s.bytesSinceRecordEnd }

func (s *FastqSplitter) Reset() {
	// newlineCount is not reset: record boundaries span blocks.
	s.bytesSinceRecordEnd = 0
}

// FastqByteSplitter identifies FASTQ record boundaries from the actual
// uncompressed bytes, once Copy tokens have been resolved by a
// BoundaryResolver. It is strictly more accurate than FastqSplitter
// since it never has to guess about the contents of a Copy reference.
type FastqByteSplitter struct {
	newlineCount        uint8
	bytesSinceRecordEnd int
	atRecordBoundary    bool
}

// NewFastqByteSplitter returns a FastqByteSplitter ready for the start
// of a file.
func NewFastqByteSplitter() *FastqByteSplitter {
	return &FastqByteSplitter{atRecordBoundary: true}
}

// ProcessBytes updates splitter state from a run of resolved
// uncompressed bytes.
func (s *FastqByteSplitter) ProcessBytes(bs []byte) {
	for _, b := range bs {
		s.bytesSinceRecordEnd++
		if b == '\n' {
			s.newlineCount = (s.newlineCount + 1) % 4
			if s.newlineCount == 0 {
				s.atRecordBoundary = true
				s.bytesSinceRecordEnd = 0
			} else {
				s.atRecordBoundary = false
			}
		} else {
			s.atRecordBoundary = false
		}
	}
}

func (s *FastqByteSplitter) IsGoodSplitPoint() bool       { return s.atRecordBoundary }
func (s *FastqByteSplitter) BytesSinceLastGoodSplit() int { return s.bytesSinceRecordEnd }

func (s *FastqByteSplitter) Reset() {
	s.bytesSinceRecordEnd = 0
}
