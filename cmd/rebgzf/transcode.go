// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/schollz/progressbar/v2"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/transcoder"
)

type transcodeFlags struct {
	CommonFlags
	Threads     int    `subcmd:"threads,0,'worker count, 0 auto-detects from the host CPU count'"`
	Level       int    `subcmd:"level,1,'compression level 1-9; 7-9 enable smart boundary splitting'"`
	BlockSize   int    `subcmd:"block-size,0,'target uncompressed block size in bytes, 0 uses the BGZF default'"`
	Format      string `subcmd:"format,auto,'block-splitting profile: auto, default or fastq'"`
	Force       bool   `subcmd:"force,false,'skip BGZF passthrough detection and always re-encode'"`
	StrictCheck bool   `subcmd:"strict-check,false,'validate every block header of already-BGZF input before passthrough'"`
	Progress    bool   `subcmd:"progress,false,'display a progress bar on stderr'"`
	Index       string `subcmd:"index,,'write a GZI random-access index to this path'"`
	Output      string `subcmd:"output,,'output file, omit for stdout'"`
}

func parseFormat(name string) (rebgzf.FormatProfile, error) {
	switch name {
	case "", "auto":
		return rebgzf.ProfileAuto, nil
	case "default":
		return rebgzf.ProfileDefault, nil
	case "fastq":
		return rebgzf.ProfileFastq, nil
	default:
		return 0, fmt.Errorf("unknown format profile %q, want auto, default or fastq", name)
	}
}

// countingReader reports bytes read through it to a progress bar,
// driven from input bytes consumed since the pipelines don't expose
// per-block completion events.
type countingReader struct {
	r   io.Reader
	bar *progressbar.ProgressBar
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.bar != nil {
		c.bar.Add(n)
	}
	return n, err
}

func runTranscode(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*transcodeFlags)

	format, err := parseFormat(cl.Format)
	if err != nil {
		return err
	}

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	format = format.Resolve(args[0])

	var out io.Writer = os.Stdout
	if cl.Output != "" {
		f, err := os.Create(cl.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	var reader io.Reader = in
	if cl.Progress {
		info, err := in.Stat()
		if err != nil {
			return err
		}
		bar := progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetBytes64(info.Size()),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(true))
		bar.RenderBlank()
		reader = &countingReader{r: in, bar: bar}
		defer fmt.Fprintln(os.Stderr)
	}

	opts := []rebgzf.TranscodeOption{
		rebgzf.WithCompressionLevel(rebgzf.LevelFromInt(cl.Level)),
		rebgzf.WithFormatProfile(format),
		rebgzf.WithNumThreads(cl.Threads),
		rebgzf.WithForceTranscode(cl.Force),
		rebgzf.WithStrictBGZFCheck(cl.StrictCheck),
		rebgzf.WithBuildIndex(cl.Index != ""),
	}
	if cl.BlockSize > 0 {
		opts = append(opts, rebgzf.WithBlockSize(cl.BlockSize))
	}
	config := rebgzf.NewTranscodeConfig(opts...)

	if cl.Verbose {
		log.Printf("rebgzf: transcoding %s (level=%d threads=%d format=%v)",
			args[0], cl.Level, config.EffectiveThreads(), format)
	}

	tc := transcoder.NewParallelTranscoder(config)
	stats, err := tc.Transcode(reader, out)
	if err != nil {
		return err
	}

	if cl.Verbose {
		log.Printf("rebgzf: wrote %d blocks, %d input bytes, %d output bytes, "+
			"%d boundary refs resolved, copied-directly=%v",
			stats.BlocksWritten, stats.InputBytes, stats.OutputBytes,
			stats.BoundaryRefsResolved, stats.CopiedDirectly)
	}

	if cl.Index != "" {
		if err := writeGziIndex(cl.Index, stats.IndexEntries); err != nil {
			return err
		}
	}

	return nil
}
