// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transcoder

import (
	"errors"
	"testing"

	"github.com/nh13/rebgzf"
	"github.com/nh13/rebgzf/deflate"
)

func TestResolverLiteralsOnly(t *testing.T) {
	r := NewBoundaryResolver()

	tokens := []deflate.LZ77Token{deflate.NewLiteral('H'), deflate.NewLiteral('i')}
	resolved, err := r.ResolveBlock(0, tokens)
	if err != nil {
		t.Fatal(err)
	}

	if len(resolved) != 2 || resolved[0].Byte != 'H' || resolved[1].Byte != 'i' {
		t.Fatalf("resolved = %+v", resolved)
	}
	if r.Position() != 2 {
		t.Fatalf("Position() = %d, want 2", r.Position())
	}
}

func TestResolverCopyWithinBlock(t *testing.T) {
	r := NewBoundaryResolver()

	tokens := []deflate.LZ77Token{
		deflate.NewLiteral('A'),
		deflate.NewLiteral('B'),
		deflate.NewCopy(2, 2), // Copy "AB"
	}
	resolved, err := r.ResolveBlock(0, tokens)
	if err != nil {
		t.Fatal(err)
	}

	if len(resolved) != 3 || resolved[2].Kind != deflate.Copy {
		t.Fatalf("resolved = %+v", resolved)
	}
	rv, pv := r.Stats()
	if rv != 0 || pv != 1 {
		t.Fatalf("stats = %d, %d, want 0, 1", rv, pv)
	}
}

func TestResolverCopyCrossesBoundary(t *testing.T) {
	r := NewBoundaryResolver()

	tokens1 := []deflate.LZ77Token{
		deflate.NewLiteral('A'),
		deflate.NewLiteral('B'),
		deflate.NewLiteral('C'),
		deflate.NewLiteral('D'),
	}
	if _, err := r.ResolveBlock(0, tokens1); err != nil {
		t.Fatal(err)
	}
	if r.Position() != 4 {
		t.Fatalf("Position() = %d, want 4", r.Position())
	}

	tokens2 := []deflate.LZ77Token{
		deflate.NewLiteral('E'),
		deflate.NewCopy(2, 5), // refs "AB" in block 1
	}
	resolved, err := r.ResolveBlock(4, tokens2)
	if err != nil {
		t.Fatal(err)
	}

	if len(resolved) != 3 {
		t.Fatalf("len(resolved) = %d, want 3", len(resolved))
	}
	if resolved[0].Byte != 'E' || resolved[1].Byte != 'A' || resolved[2].Byte != 'B' {
		t.Fatalf("resolved = %+v", resolved)
	}
	rv, pv := r.Stats()
	if rv != 1 || pv != 0 {
		t.Fatalf("stats = %d, %d, want 1, 0", rv, pv)
	}
}

func TestResolverMixedCopies(t *testing.T) {
	r := NewBoundaryResolver()

	tokens1 := []deflate.LZ77Token{
		deflate.NewLiteral('A'),
		deflate.NewLiteral('B'),
		deflate.NewLiteral('C'),
		deflate.NewLiteral('D'),
	}
	if _, err := r.ResolveBlock(0, tokens1); err != nil {
		t.Fatal(err)
	}

	tokens2 := []deflate.LZ77Token{
		deflate.NewLiteral('E'),
		deflate.NewCopy(2, 5), // refs block 1 -> resolve
		deflate.NewCopy(2, 1), // refs within block 2 -> preserve
	}
	resolved, err := r.ResolveBlock(4, tokens2)
	if err != nil {
		t.Fatal(err)
	}

	if len(resolved) != 4 {
		t.Fatalf("len(resolved) = %d, want 4", len(resolved))
	}
	if resolved[0].Byte != 'E' || resolved[1].Byte != 'A' || resolved[2].Byte != 'B' {
		t.Fatalf("resolved = %+v", resolved)
	}
	if resolved[3].Kind != deflate.Copy || resolved[3].Length != 2 || resolved[3].Distance != 1 {
		t.Fatalf("resolved[3] = %+v", resolved[3])
	}
}

func TestResolverDistanceExceedsHistory(t *testing.T) {
	r := NewBoundaryResolver()

	tokens := []deflate.LZ77Token{
		deflate.NewLiteral('A'),
		deflate.NewCopy(3, 2), // only one byte of history exists
	}
	if _, err := r.ResolveBlock(0, tokens); !errors.Is(err, rebgzf.ErrInvalidDistanceCode) {
		t.Fatalf("err = %v, want ErrInvalidDistanceCode", err)
	}
}

func TestResolverReset(t *testing.T) {
	r := NewBoundaryResolver()
	if _, err := r.ResolveBlock(0, []deflate.LZ77Token{deflate.NewLiteral('A')}); err != nil {
		t.Fatal(err)
	}
	r.Reset()
	if r.Position() != 0 {
		t.Fatalf("Position() after Reset = %d, want 0", r.Position())
	}
	rv, pv := r.Stats()
	if rv != 0 || pv != 0 {
		t.Fatalf("stats after Reset = %d, %d, want 0, 0", rv, pv)
	}
}
