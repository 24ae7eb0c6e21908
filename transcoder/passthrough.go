// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transcoder

import (
	"bufio"
	"bytes"
	"io"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/internal/bgzf"
)

// tryPassthrough implements the BGZF passthrough fast path: if input is
// already valid BGZF, it is copied to output unchanged instead of being
// parsed and re-encoded. This is a deliberate optimisation chosen before
// any transcoding work begins, not an error-recovery mechanism, so any
// detection failure simply falls through to normal transcoding.
//
// It returns the reader subsequent transcoding should continue from.
// When detection consumes bytes from input that turn out not to form
// valid BGZF, those bytes are replayed ahead of the original reader so
// no data is lost.
func tryPassthrough(config rebgzf.TranscodeConfig, input io.Reader, output io.Writer) (io.Reader, rebgzf.TranscodeStats, bool, error) {
	if config.ForceTranscode {
		return input, rebgzf.TranscodeStats{}, false, nil
	}
	if config.StrictBGZFCheck {
		return tryStrictPassthrough(input, output)
	}
	return tryQuickPassthrough(input, output)
}

// tryQuickPassthrough peeks the first block's 18-byte header only.
func tryQuickPassthrough(input io.Reader, output io.Writer) (io.Reader, rebgzf.TranscodeStats, bool, error) {
	br := bufio.NewReaderSize(input, 18)
	header, err := br.Peek(18)
	if err != nil {
		// Fewer than 18 bytes total: never valid BGZF. Nothing was
		// consumed from br's point of view, so hand it back as-is.
		return br, rebgzf.TranscodeStats{}, false, nil
	}
	if !bgzf.ValidateHeaderBytes(header) {
		return br, rebgzf.TranscodeStats{}, false, nil
	}

	n, err := io.Copy(output, br)
	if err != nil {
		return nil, rebgzf.TranscodeStats{}, false, wrapIO(err)
	}
	return nil, rebgzf.TranscodeStats{
		InputBytes:     uint64(n),
		OutputBytes:    uint64(n),
		CopiedDirectly: true,
	}, true, nil
}

// tryStrictPassthrough walks every block header before committing to
// passthrough, at the cost of buffering everything it reads until the
// walk either validates the whole stream or hits a structural mismatch.
func tryStrictPassthrough(input io.Reader, output io.Writer) (io.Reader, rebgzf.TranscodeStats, bool, error) {
	var captured bytes.Buffer
	tee := io.TeeReader(input, &captured)
	v, err := bgzf.ValidateStreaming(tee)
	if err != nil || !v.IsValidBGZF {
		remaining := io.MultiReader(bytes.NewReader(captured.Bytes()), input)
		return remaining, rebgzf.TranscodeStats{}, false, nil
	}

	n, err := output.Write(captured.Bytes())
	if err != nil {
		return nil, rebgzf.TranscodeStats{}, false, wrapIO(err)
	}
	// BlocksWritten counts data blocks only, matching the re-encode
	// paths and the GZI convention; the walk counts the terminal EOF
	// marker too, so take it back off.
	blocks := v.BlockCount
	if v.HaveEOFBlock {
		blocks--
	}
	return nil, rebgzf.TranscodeStats{
		InputBytes:     uint64(n),
		OutputBytes:    uint64(n),
		BlocksWritten:  blocks,
		CopiedDirectly: true,
	}, true, nil
}
