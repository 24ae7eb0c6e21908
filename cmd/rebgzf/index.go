// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/binary"
	"os"

	"github.com/nh13/rebgzf"
)

// writeGziIndex writes entries in the GZI random-access index format: an
// 8-byte little-endian entry count followed by (compressed_offset,
// uncompressed_offset) uint64 pairs, matching internal/bgzf.GziIndexBuilder.
func writeGziIndex(path string, entries []rebgzf.IndexEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(entries)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}

	var entryBuf [16]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint64(entryBuf[0:8], e.CompressedOffset)
		binary.LittleEndian.PutUint64(entryBuf[8:16], e.UncompressedOffset)
		if _, err := w.Write(entryBuf[:]); err != nil {
			return err
		}
	}

	return w.Flush()
}
