// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transcoder

import (
	"bufio"
	"bytes"
	"container/heap"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/bits"
	"github.com/nh13/rebgzf/deflate"
	"github.com/nh13/rebgzf/huffman"
	"github.com/nh13/rebgzf/inflate"
	"github.com/nh13/rebgzf/internal/bgzf"
	igzip "github.com/nh13/rebgzf/internal/gzip"
)

// encodingJob is one BGZF block's worth of boundary-resolved tokens,
// ready for a worker to re-encode.
type encodingJob struct {
	blockID          uint64
	tokens           []deflate.LZ77Token
	uncompressedSize uint32
}

// encodedBlock is a worker's fully framed BGZF block, ready to write,
// or the error that prevented framing it.
type encodedBlock struct {
	blockID          uint64
	data             []byte
	uncompressedSize uint32
	err              error
}

// blockHeap orders encodedBlocks by blockID so results arriving out of
// order from the worker pool can be reassembled into the original
// block sequence before being written.
type blockHeap []encodedBlock

func (h blockHeap) Len() int            { return len(h) }
func (h blockHeap) Less(i, j int) bool  { return h[i].blockID < h[j].blockID }
func (h blockHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *blockHeap) Push(x interface{}) { *h = append(*h, x.(encodedBlock)) }
func (h *blockHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ParallelTranscoder transcodes gzip to BGZF using a producer/worker
// pool/consumer pipeline: one goroutine parses DEFLATE and resolves
// block boundaries, a pool of worker goroutines re-encode each block
// concurrently, and a reassembly goroutine writes completed blocks to
// the output in their original order.
type ParallelTranscoder struct {
	config rebgzf.TranscodeConfig
}

// NewParallelTranscoder returns a ParallelTranscoder using config.
func NewParallelTranscoder(config rebgzf.TranscodeConfig) *ParallelTranscoder {
	return &ParallelTranscoder{config: config}
}

// Transcode implements rebgzf.Transcoder. With a single effective
// worker it delegates to SingleThreadedTranscoder, since the pipeline
// machinery only pays for itself with real concurrency.
func (t *ParallelTranscoder) Transcode(input io.Reader, output io.Writer) (rebgzf.TranscodeStats, error) {
	remaining, stats, copied, err := tryPassthrough(t.config, input, output)
	if err != nil {
		return rebgzf.TranscodeStats{}, err
	}
	if copied {
		return stats, nil
	}
	input = remaining

	numThreads := t.config.EffectiveThreads()
	if numThreads == 1 {
		cfg := t.config
		cfg.ForceTranscode = true // passthrough already attempted above
		single := NewSingleThreadedTranscoder(cfg)
		return single.Transcode(input, output)
	}
	return t.transcodeParallel(input, output, numThreads)
}

func (t *ParallelTranscoder) transcodeParallel(input io.Reader, output io.Writer, numThreads int) (rebgzf.TranscodeStats, error) {
	channelCapacity := numThreads * 4
	jobs := make(chan encodingJob, channelCapacity)
	results := make(chan encodedBlock, channelCapacity)

	useFixedHuffman := t.config.UseFixedHuffman()
	var indexBuilder *bgzf.GziIndexBuilder
	if t.config.BuildIndex {
		indexBuilder = bgzf.NewGziIndexBuilder()
	}

	var g errgroup.Group
	var workersDone sync.WaitGroup
	workersDone.Add(numThreads)

	for i := 0; i < numThreads; i++ {
		g.Go(func() (err error) {
			defer workersDone.Done()
			defer func() {
				// A panicking worker must not take the whole process
				// down, and must keep draining jobs so the dispatching
				// goroutine never blocks on a full channel.
				if p := recover(); p != nil {
					err = &rebgzf.Error{
						Kind: rebgzf.KindInternal,
						Msg:  fmt.Sprintf("encoding worker panic: %v", p),
						Err:  rebgzf.ErrInternal,
					}
					for range jobs {
					}
				}
			}()
			encoder := huffman.NewEncoder(useFixedHuffman)
			for job := range jobs {
				results <- encodeJob(encoder, job)
			}
			return nil
		})
	}

	g.Go(func() error {
		workersDone.Wait()
		close(results)
		return nil
	})

	var parseStats rebgzf.TranscodeStats
	g.Go(func() error {
		defer close(jobs)
		s, err := t.parseAndDispatch(input, jobs)
		parseStats = s
		return err
	})

	var outputBytes, blocksWritten uint64
	bufOut := bufio.NewWriterSize(output, t.config.BufferSize)
	g.Go(func() error {
		var err error
		outputBytes, blocksWritten, err = reassembleAndWrite(results, bufOut, indexBuilder)
		return err
	})

	if err := g.Wait(); err != nil {
		return rebgzf.TranscodeStats{}, err
	}

	stats := parseStats
	stats.OutputBytes = outputBytes
	stats.BlocksWritten = blocksWritten

	if _, err := bufOut.Write(bgzf.EOF[:]); err != nil {
		return rebgzf.TranscodeStats{}, wrapIO(err)
	}
	stats.OutputBytes += uint64(len(bgzf.EOF))

	if indexBuilder != nil {
		stats.IndexEntries = toIndexEntries(indexBuilder)
	}

	if err := bufOut.Flush(); err != nil {
		return rebgzf.TranscodeStats{}, wrapIO(err)
	}

	return stats, nil
}

// parseAndDispatch parses the DEFLATE token stream of every gzip
// member in input, chunks tokens into BGZF-sized blocks, resolves
// cross-block boundary references, and sends each block as a job for
// the worker pool. It follows gzip member chaining: after a member's
// final DEFLATE block and trailer, it probes for another concatenated
// gzip header and, if found, continues parsing the next member.
func (t *ParallelTranscoder) parseAndDispatch(input io.Reader, jobs chan<- encodingJob) (rebgzf.TranscodeStats, error) {
	bufIn := bufio.NewReaderSize(input, t.config.BufferSize)

	if _, err := igzip.ParseHeader(bufIn); err != nil {
		return rebgzf.TranscodeStats{}, err
	}

	bitReader := bits.NewReader(bufIn)
	resolver := NewBoundaryResolver()
	splitter := newSplitter(t.config)
	smart := t.config.UseSmartBoundaries()

	pendingTokens := make([]deflate.LZ77Token, 0, 8192)
	pendingSize := 0
	blockStart := uint64(0)
	var nextBlockID uint64
	var stats rebgzf.TranscodeStats

	blockSize, hardCeiling := blockLimits(t.config.BlockSize)

	dispatch := func() error {
		if len(pendingTokens) == 0 {
			return nil
		}
		resolved, err := resolver.ResolveBlock(blockStart, pendingTokens)
		if err != nil {
			return err
		}
		jobs <- encodingJob{
			blockID:          nextBlockID,
			tokens:           resolved,
			uncompressedSize: uint32(resolver.Position() - blockStart),
		}
		nextBlockID++

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
						if err := dispatch(); err != nil {
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
					if err := dispatch(); err != nil {
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

	if err := dispatch(); err != nil {
		return rebgzf.TranscodeStats{}, err
	}

	resolvedCount, _ := resolver.Stats()
	stats.BoundaryRefsResolved = resolvedCount
	return stats, nil
}

// encodeJob re-encodes one job's resolved tokens into a fully framed
// BGZF block, computing the block's CRC32 from its own tokens so the
// checksum work is spread across the worker pool rather than done
// serially on the dispatching goroutine.
func encodeJob(encoder *huffman.Encoder, job encodingJob) encodedBlock {
	uncompressed := collectUncompressed(job.tokens)
	crc := crc32.ChecksumIEEE(uncompressed)
	deflateData := encoder.Encode(job.tokens, true)

	var buf bytes.Buffer
	w := bgzf.NewBlockWriter(&buf)
	if err := w.WriteBlockWithCRC(deflateData, crc, job.uncompressedSize); err != nil {
		return encodedBlock{blockID: job.blockID, err: err}
	}

	return encodedBlock{blockID: job.blockID, data: buf.Bytes(), uncompressedSize: job.uncompressedSize}
}

// reassembleAndWrite drains results, buffering blocks that arrive out
// of order in a min-heap keyed by blockID, and writes them to w in
// strict sequence as each next-expected block becomes available. When
// indexBuilder is non-nil, it records one GZI entry per block in the
// same write order, matching the single-threaded pipeline's index. On
// any failure it keeps draining results until the channel closes so
// that workers blocked on a full channel can always finish.
func reassembleAndWrite(results <-chan encodedBlock, w io.Writer, indexBuilder *bgzf.GziIndexBuilder) (outputBytes, blocksWritten uint64, err error) {
	pending := &blockHeap{}
	heap.Init(pending)
	var nextWriteID uint64

	flushReady := func() error {
		for pending.Len() > 0 && (*pending)[0].blockID == nextWriteID {
			block := heap.Pop(pending).(encodedBlock)
			if block.err != nil {
				return block.err
			}
			if _, werr := w.Write(block.data); werr != nil {
				return wrapIO(werr)
			}
			if indexBuilder != nil {
				indexBuilder.AddBlock(uint64(len(block.data)), uint64(block.uncompressedSize))
			}
			outputBytes += uint64(len(block.data))
			blocksWritten++
			nextWriteID++
		}
		return nil
	}

	for block := range results {
		heap.Push(pending, block)
		if err = flushReady(); err != nil {
			for range results {
			}
			return outputBytes, blocksWritten, err
		}
	}
	return outputBytes, blocksWritten, flushReady()
}
