// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transcoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"hash/crc32"
	"io"
	"math/rand"
	"testing"

	kflate "github.com/klauspost/compress/flate"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/internal/bgzf"
)

// gunzip decompresses a BGZF or plain gzip stream using the standard
// library, the same decoder every downstream bioinformatics tool uses
// to read BGZF output, giving an independent check that re-chunking
// and re-encoding produced a bit-valid result.
func gunzip(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	r.Multistream(true)
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("gzip read: %v", err)
	}
	return out
}

// makeKlauspostGzip builds a gzip member using klauspost/compress's
// flate implementation rather than the standard library's, so parser
// round-trip tests exercise the DEFLATE parser against a second,
// independent encoder's bitstream shape (differing block-splitting and
// Huffman-table choices from compress/flate).
func makeKlauspostGzip(t *testing.T, data []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0x1f, 0x8b, 0x08, 0x00, 0, 0, 0, 0, 0, 0xff})
	fw, err := kflate.NewWriter(&buf, level)
	if err != nil {
		t.Fatalf("klauspost flate.NewWriter: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}
	var trailer [8]byte
	crc := crc32.ChecksumIEEE(data)
	trailer[0], trailer[1], trailer[2], trailer[3] = byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24)
	isize := uint32(len(data))
	trailer[4], trailer[5], trailer[6], trailer[7] = byte(isize), byte(isize>>8), byte(isize>>16), byte(isize>>24)
	buf.Write(trailer[:])
	return buf.Bytes()
}

func mixedPattern(n int) []byte {
	rng := rand.New(rand.NewSource(42))
	out := make([]byte, 0, n)
	for len(out) < n {
		if rng.Intn(3) == 0 {
			out = append(out, byte(rng.Intn(256)))
		} else {
			run := bytes.Repeat([]byte{byte('a' + rng.Intn(4))}, 1+rng.Intn(40))
			out = append(out, run...)
		}
	}
	return out[:n]
}

func fastqData(records int) []byte {
	var buf bytes.Buffer
	for i := 0; i < records; i++ {
		fmt.Fprintf(&buf, "@read%d\n", i)
		buf.WriteString("ACGTACGTACGTACGTACGT\n")
		buf.WriteString("+\n")
		buf.WriteString("IIIIIIIIIIIIIIIIIIII\n")
	}
	return buf.Bytes()
}

func transcodersUnderTest(cfg rebgzf.TranscodeConfig) map[string]rebgzf.Transcoder {
	return map[string]rebgzf.Transcoder{
		"single":   NewSingleThreadedTranscoder(cfg),
		"parallel": NewParallelTranscoder(cfg),
	}
}

// TestRoundTripScenarios exercises the core end-to-end scenarios
// across compression levels and thread counts, covering the three
// regimes (fixed, dynamic, smart boundary) that differ in encoding
// strategy.
func TestRoundTripScenarios(t *testing.T) {
	scenarios := map[string][]byte{
		"empty":            {},
		"hello-world":      []byte("Hello, World!"),
		"block-boundary":   bytes.Repeat([]byte("0123456789"), 6000),               // 60000 bytes
		"split-boundary":   append(bytes.Repeat([]byte("0123456789"), 6528), '!'), // 65281 bytes
		"cross-block-refs": mixedPattern(60000),
		"small-random":     randomBytes(5000),
	}
	levels := []rebgzf.CompressionLevel{rebgzf.Level1, rebgzf.Level4, rebgzf.Level7, rebgzf.Level9}

	for name, data := range scenarios {
		data := data
		for _, level := range levels {
			for threads := 1; threads <= 3; threads += 2 {
				name := fmt.Sprintf("%s/level%d/threads%d", name, level, threads)
				t.Run(name, func(t *testing.T) {
					gzData := makeGzip(t, data)
					cfg := rebgzf.NewTranscodeConfig(
						rebgzf.WithCompressionLevel(level),
						rebgzf.WithNumThreads(threads),
					)
					tr := NewParallelTranscoder(cfg)
					var out bytes.Buffer
					stats, err := tr.Transcode(bytes.NewReader(gzData), &out)
					if err != nil {
						t.Fatalf("Transcode: %v", err)
					}
					got := gunzip(t, out.Bytes())
					if !bytes.Equal(got, data) {
						t.Fatalf("round-trip mismatch: got %d bytes, want %d bytes", len(got), len(data))
					}
					if stats.OutputBytes == 0 {
						t.Fatal("zero OutputBytes reported")
					}
				})
			}
		}
	}
}

// TestRoundTripConcatenatedMembers covers scenario 6: concatenated
// gzip members must transcode into a BGZF stream whose decompression
// is the concatenation of the original payloads, through both
// pipelines' gzip member chaining.
func TestRoundTripConcatenatedMembers(t *testing.T) {
	parts := [][]byte{
		[]byte("first member payload\n"),
		bytes.Repeat([]byte("second member, repeated. "), 500),
		[]byte("third"),
	}
	var gzData bytes.Buffer
	for _, p := range parts {
		gzData.Write(makeGzip(t, p))
	}
	want := bytes.Join(parts, nil)

	for name, tr := range transcodersUnderTest(rebgzf.NewTranscodeConfig(rebgzf.WithNumThreads(2))) {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := tr.Transcode(bytes.NewReader(gzData.Bytes()), &out)
			if err != nil {
				t.Fatalf("Transcode: %v", err)
			}
			got := gunzip(t, out.Bytes())
			if !bytes.Equal(got, want) {
				t.Fatalf("concatenated round-trip mismatch: got %q, want %q", got, want)
			}
		})
	}
}

// TestRoundTripSingleVsParallel checks the universal property that
// differing only in NumThreads produces the same decompressed result.
func TestRoundTripSingleVsParallel(t *testing.T) {
	data := mixedPattern(120000)
	gzData := makeGzip(t, data)

	single := NewSingleThreadedTranscoder(rebgzf.NewTranscodeConfig(rebgzf.WithCompressionLevel(rebgzf.Level6)))
	parallel := NewParallelTranscoder(rebgzf.NewTranscodeConfig(rebgzf.WithCompressionLevel(rebgzf.Level6), rebgzf.WithNumThreads(4)))

	var outSingle, outParallel bytes.Buffer
	if _, err := single.Transcode(bytes.NewReader(gzData), &outSingle); err != nil {
		t.Fatalf("single: %v", err)
	}
	if _, err := parallel.Transcode(bytes.NewReader(gzData), &outParallel); err != nil {
		t.Fatalf("parallel: %v", err)
	}

	gotSingle := gunzip(t, outSingle.Bytes())
	gotParallel := gunzip(t, outParallel.Bytes())
	if !bytes.Equal(gotSingle, data) || !bytes.Equal(gotParallel, data) {
		t.Fatal("single/parallel output does not round-trip to original data")
	}
	if !bytes.Equal(gotSingle, gotParallel) {
		t.Fatal("single and parallel pipelines disagree on decompressed bytes")
	}
}

// TestRoundTripBoundaryRefsResolved checks that cross-block back
// references are actually exercised and counted for an input designed
// to force them.
func TestRoundTripBoundaryRefsResolved(t *testing.T) {
	data := mixedPattern(60000)
	gzData := makeGzip(t, data)

	cfg := rebgzf.NewTranscodeConfig(rebgzf.WithBlockSize(8192))
	tr := NewSingleThreadedTranscoder(cfg)
	var out bytes.Buffer
	stats, err := tr.Transcode(bytes.NewReader(gzData), &out)
	if err != nil {
		t.Fatal(err)
	}
	if stats.BoundaryRefsResolved == 0 {
		t.Fatal("expected BoundaryRefsResolved > 0 for a small block size over mixed-pattern input")
	}
	got := gunzip(t, out.Bytes())
	if !bytes.Equal(got, data) {
		t.Fatal("round-trip mismatch with resolved boundary references")
	}
}

// TestRoundTripFastqProfile exercises the FASTQ splitter with a small
// block size so record-aligned splitting actually engages, verifying
// the output still round-trips to the exact original bytes.
func TestRoundTripFastqProfile(t *testing.T) {
	data := fastqData(2000)
	gzData := makeGzip(t, data)

	cfg := rebgzf.NewTranscodeConfig(
		rebgzf.WithFormatProfile(rebgzf.ProfileFastq),
		rebgzf.WithCompressionLevel(rebgzf.Level8),
		rebgzf.WithBlockSize(4096),
	)
	for name, tr := range transcodersUnderTest(cfg) {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := tr.Transcode(bytes.NewReader(gzData), &out)
			if err != nil {
				t.Fatal(err)
			}
			got := gunzip(t, out.Bytes())
			if !bytes.Equal(got, data) {
				t.Fatal("FASTQ-profile round-trip mismatch")
			}
		})
	}
}

// TestRoundTripBuildIndex verifies the GZI index populated in
// TranscodeStats is well-formed: strictly increasing offsets starting
// at (0, 0), one entry per data block actually written.
func TestRoundTripBuildIndex(t *testing.T) {
	data := bytes.Repeat([]byte("indexable content, "), 10000)
	gzData := makeGzip(t, data)

	cfg := rebgzf.NewTranscodeConfig(rebgzf.WithBlockSize(4096), rebgzf.WithBuildIndex(true))
	tr := NewSingleThreadedTranscoder(cfg)
	var out bytes.Buffer
	stats, err := tr.Transcode(bytes.NewReader(gzData), &out)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.IndexEntries) == 0 {
		t.Fatal("expected IndexEntries to be populated")
	}
	if uint64(len(stats.IndexEntries)) != stats.BlocksWritten {
		t.Fatalf("IndexEntries count = %d, want %d (BlocksWritten)", len(stats.IndexEntries), stats.BlocksWritten)
	}
	first := stats.IndexEntries[0]
	if first.CompressedOffset != 0 || first.UncompressedOffset != 0 {
		t.Fatalf("first index entry = %+v, want (0, 0)", first)
	}
	for i := 1; i < len(stats.IndexEntries); i++ {
		prev, cur := stats.IndexEntries[i-1], stats.IndexEntries[i]
		if cur.CompressedOffset <= prev.CompressedOffset || cur.UncompressedOffset <= prev.UncompressedOffset {
			t.Fatalf("index entries not strictly increasing at %d: %+v -> %+v", i, prev, cur)
		}
	}
}

// TestRoundTripPassthrough checks that already-valid BGZF input is
// streamed through unchanged rather than re-encoded.
func TestRoundTripPassthrough(t *testing.T) {
	data := []byte("already bgzf")
	gzData := makeGzip(t, data)

	cfg := rebgzf.NewTranscodeConfig()
	pre := NewSingleThreadedTranscoder(cfg)
	var bgzfBuf bytes.Buffer
	if _, err := pre.Transcode(bytes.NewReader(gzData), &bgzfBuf); err != nil {
		t.Fatal(err)
	}

	stats, err := pre.Transcode(bytes.NewReader(bgzfBuf.Bytes()), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.CopiedDirectly {
		t.Fatal("expected CopiedDirectly on already-valid BGZF input")
	}
	if stats.OutputBytes != uint64(bgzfBuf.Len()) {
		t.Fatalf("OutputBytes = %d, want %d (passthrough byte count)", stats.OutputBytes, bgzfBuf.Len())
	}
}

// TestRoundTripKlauspostEncodedInput parses gzip members produced by a
// second, independent DEFLATE encoder so the parser's correctness
// isn't just validated against compress/flate's own block shapes.
func TestRoundTripKlauspostEncodedInput(t *testing.T) {
	data := mixedPattern(40000)
	for _, level := range []int{1, 6, 9} {
		gzData := makeKlauspostGzip(t, data, level)
		tr := NewSingleThreadedTranscoder(rebgzf.NewTranscodeConfig())
		var out bytes.Buffer
		if _, err := tr.Transcode(bytes.NewReader(gzData), &out); err != nil {
			t.Fatalf("level %d: Transcode: %v", level, err)
		}
		got := gunzip(t, out.Bytes())
		if !bytes.Equal(got, data) {
			t.Fatalf("level %d: klauspost-encoded round-trip mismatch", level)
		}
	}
}

// TestStrictAndQuickDetectAfterTranscode checks that output from this
// pipeline is recognized as valid BGZF by both the quick and the
// walking detectors.
func TestStrictAndQuickDetectAfterTranscode(t *testing.T) {
	data := mixedPattern(60000)
	gzData := makeGzip(t, data)

	tr := NewSingleThreadedTranscoder(rebgzf.NewTranscodeConfig(rebgzf.WithBlockSize(8192)))
	var out bytes.Buffer
	if _, err := tr.Transcode(bytes.NewReader(gzData), &out); err != nil {
		t.Fatal(err)
	}

	ok, err := bgzf.IsBGZF(bytes.NewReader(out.Bytes()))
	if err != nil || !ok {
		t.Fatalf("IsBGZF = %v, %v, want true, nil", ok, err)
	}

	v, err := bgzf.ValidateStreaming(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("ValidateStreaming: %v", err)
	}
	if !v.IsValidBGZF {
		t.Fatal("ValidateStreaming reported invalid BGZF for transcoder output")
	}
	if v.TotalUncompressedSize != uint64(len(data)) {
		t.Fatalf("TotalUncompressedSize = %d, want %d", v.TotalUncompressedSize, len(data))
	}
}

func randomBytes(n int) []byte {
	rng := rand.New(rand.NewSource(7))
	out := make([]byte, n)
	rng.Read(out)
	return out
}
