// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package transcoder

import "testing"

func TestWindowBasic(t *testing.T) {
	w := NewSlidingWindow()
	w.PushBytes([]byte("ABCD"))

	got := w.Get(4, 4)
	if string(got) != "ABCD" {
		t.Fatalf("Get(4,4) = %q, want %q", got, "ABCD")
	}
}

func TestWindowRLE(t *testing.T) {
	w := NewSlidingWindow()
	w.PushByte('A')

	got := w.Get(1, 5)
	if string(got) != "AAAAA" {
		t.Fatalf("Get(1,5) = %q, want %q", got, "AAAAA")
	}
}

func TestWindowRLEPattern(t *testing.T) {
	w := NewSlidingWindow()
	w.PushBytes([]byte("AB"))

	got := w.Get(2, 6)
	if string(got) != "ABABAB" {
		t.Fatalf("Get(2,6) = %q, want %q", got, "ABABAB")
	}
}

func TestWindowWrap(t *testing.T) {
	w := NewSlidingWindow()
	for i := 0; i < windowSize+10; i++ {
		w.PushByte(byte(i % 256))
	}
	if w.Available() != windowSize {
		t.Fatalf("Available() = %d, want %d", w.Available(), windowSize)
	}
	if w.TotalWritten() != uint64(windowSize+10) {
		t.Fatalf("TotalWritten() = %d, want %d", w.TotalWritten(), windowSize+10)
	}

	// Last byte pushed was (windowSize+9) % 256; distance 1 should
	// return exactly that value.
	want := byte((windowSize + 9) % 256)
	got := w.Get(1, 1)
	if got[0] != want {
		t.Fatalf("Get(1,1) after wrap = %v, want %v", got[0], want)
	}
}

func TestForEachByteMatchesGet(t *testing.T) {
	w := NewSlidingWindow()
	w.PushBytes([]byte("ABCDE"))

	var got []byte
	w.ForEachByte(3, 7, func(b byte) { got = append(got, b) })

	want := w.Get(3, 7)
	// recompute Get after ForEachByte mutated nothing (window unchanged)
	if string(got) != string(want) {
		t.Fatalf("ForEachByte = %q, Get = %q", got, want)
	}
}
