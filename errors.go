// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rebgzf

import "fmt"

// Kind classifies the errors this package can return, grouped the way
// the transcoder's failure modes are grouped: I/O, gzip framing, DEFLATE
// parsing, BGZF framing, checksums, premature EOF, and internal
// (worker/channel) invariants.
type Kind int

const (
	// KindOther covers errors that don't fit any of the other kinds,
	// including wrapped I/O errors from the underlying reader/writer.
	KindOther Kind = iota
	KindGzip
	KindDeflate
	KindBGZF
	KindChecksum
	KindEOF
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindGzip:
		return "gzip"
	case KindDeflate:
		return "deflate"
	case KindBGZF:
		return "bgzf"
	case KindChecksum:
		return "checksum"
	case KindEOF:
		return "eof"
	case KindInternal:
		return "internal"
	default:
		return "other"
	}
}

// Error is the error type returned by this module's parsing, encoding and
// transcoding operations. It carries a Kind so callers can use errors.Is
// against the package-level sentinel errors below without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rebgzf: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("rebgzf: %s", e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, &rebgzf.Error{Kind: k}) style matching on
// kind alone: a bare target with no message or cause matches any error
// of the same Kind. The named sentinels below carry messages, so they
// only match by identity (directly or through an Unwrap chain).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err != nil || t.Msg != "" {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors usable with errors.Is, either returned directly or
// wrapped as the cause of an Error carrying positional detail.
var (
	ErrUnexpectedEOF         = &Error{Kind: KindEOF, Msg: "unexpected end of input"}
	ErrInvalidGzipMagic      = &Error{Kind: KindGzip, Msg: "invalid gzip magic"}
	ErrUnsupportedMethod     = &Error{Kind: KindGzip, Msg: "unsupported compression method"}
	ErrInvalidBlockType      = &Error{Kind: KindDeflate, Msg: "invalid deflate block type"}
	ErrStoredLengthMismatch  = &Error{Kind: KindDeflate, Msg: "stored block LEN/NLEN mismatch"}
	ErrHuffmanIncomplete     = &Error{Kind: KindDeflate, Msg: "incomplete Huffman table"}
	ErrHuffmanOversubscribed = &Error{Kind: KindDeflate, Msg: "over-subscribed Huffman table"}
	ErrInvalidHuffmanSym     = &Error{Kind: KindDeflate, Msg: "invalid Huffman symbol"}
	ErrInvalidLengthCode     = &Error{Kind: KindDeflate, Msg: "invalid length code"}
	ErrInvalidDistanceCode   = &Error{Kind: KindDeflate, Msg: "invalid distance code"}
	ErrInvalidCodeLength     = &Error{Kind: KindDeflate, Msg: "code length exceeds 15 bits"}
	ErrBlockTooLarge         = &Error{Kind: KindBGZF, Msg: "block exceeds the BGZF size limit"}
	ErrCRCMismatch           = &Error{Kind: KindChecksum, Msg: "CRC32 mismatch"}
	ErrSizeMismatch          = &Error{Kind: KindChecksum, Msg: "uncompressed size mismatch"}
	ErrInternal              = &Error{Kind: KindInternal, Msg: "internal error"}
)
