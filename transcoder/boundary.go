// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transcoder

import (
	"fmt"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/deflate"
)

// BoundaryResolver resolves LZ77 back-references that would cross a
// BGZF block boundary. Only references pointing into a prior block
// need resolving to literals; references that stay within the current
// block can remain as Copy tokens.
type BoundaryResolver struct {
	window        *SlidingWindow
	position      uint64
	refsResolved  uint64
	refsPreserved uint64
}

// NewBoundaryResolver returns a BoundaryResolver with an empty window.
func NewBoundaryResolver() *BoundaryResolver {
	return &BoundaryResolver{window: NewSlidingWindow()}
}

// ResolveBlock processes the tokens of one BGZF block, starting at
// uncompressed offset blockStart, and returns an equivalent token
// stream with any cross-boundary Copy references materialized to
// Literal tokens. EndOfBlock tokens are dropped; callers append their
// own terminator. A Copy whose distance reaches back past the start of
// the uncompressed stream is a corrupt input and fails.
func (r *BoundaryResolver) ResolveBlock(blockStart uint64, tokens []deflate.LZ77Token) ([]deflate.LZ77Token, error) {
	output := make([]deflate.LZ77Token, 0, len(tokens))

	for _, tok := range tokens {
		switch tok.Kind {
		case deflate.Literal:
			r.window.PushByte(tok.Byte)
			r.position++
			output = append(output, deflate.NewLiteral(tok.Byte))

		case deflate.Copy:
			if uint64(tok.Distance) > r.position {
				return nil, &rebgzf.Error{
					Kind: rebgzf.KindDeflate,
					Msg:  fmt.Sprintf("back-reference distance %d exceeds %d bytes of history", tok.Distance, r.position),
					Err:  rebgzf.ErrInvalidDistanceCode,
				}
			}
			refStart := r.position - uint64(tok.Distance)

			if refStart < blockStart {
				resolved := r.window.Get(tok.Distance, tok.Length)
				for _, b := range resolved {
					r.window.PushByte(b)
					output = append(output, deflate.NewLiteral(b))
				}
				r.position += uint64(tok.Length)
				r.refsResolved++
			} else {
				resolved := r.window.Get(tok.Distance, tok.Length)
				for _, b := range resolved {
					r.window.PushByte(b)
				}
				r.position += uint64(tok.Length)
				output = append(output, deflate.NewCopy(tok.Length, tok.Distance))
				r.refsPreserved++
			}

		case deflate.EndOfBlock:
			// Dropped: the caller supplies its own terminator.
		}
	}

	return output, nil
}

// Position returns the current offset in the uncompressed stream.
func (r *BoundaryResolver) Position() uint64 { return r.position }

// Stats returns the number of references resolved to literals and the
// number preserved as Copy tokens, in that order.
func (r *BoundaryResolver) Stats() (resolved, preserved uint64) {
	return r.refsResolved, r.refsPreserved
}

// Reset clears the resolver back to its initial empty state.
func (r *BoundaryResolver) Reset() {
	r.window.Clear()
	r.position = 0
	r.refsResolved = 0
	r.refsPreserved = 0
}
