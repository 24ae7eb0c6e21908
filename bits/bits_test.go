// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bits

import (
	"bytes"
	"testing"
)

func TestReadBits(t *testing.T) {
	data := []byte{0xD3, 0xAA}
	r := NewReader(bytes.NewReader(data))

	if got, err := r.ReadBits(3); err != nil || got != 0b011 {
		t.Fatalf("ReadBits(3) = %v, %v, want 0b011, nil", got, err)
	}
	if got, err := r.ReadBits(5); err != nil || got != 0b11010 {
		t.Fatalf("ReadBits(5) = %v, %v, want 0b11010, nil", got, err)
	}
	if got, err := r.ReadBits(8); err != nil || got != 0xAA {
		t.Fatalf("ReadBits(8) = %v, %v, want 0xAA, nil", got, err)
	}
}

func TestReadBit(t *testing.T) {
	data := []byte{0b10110001}
	r := NewReader(bytes.NewReader(data))
	want := []bool{true, false, false, false, true, true, false, true}
	for i, w := range want {
		got, err := r.ReadBit()
		if err != nil || got != w {
			t.Fatalf("bit %d = %v, %v, want %v, nil", i, got, err, w)
		}
	}
}

func TestAlignToByte(t *testing.T) {
	data := []byte{0xFF, 0xAB}
	r := NewReader(bytes.NewReader(data))
	r.ReadBits(3)
	r.AlignToByte()
	if got, err := r.ReadBits(8); err != nil || got != 0xAB {
		t.Fatalf("ReadBits(8) after align = %v, %v, want 0xAB, nil", got, err)
	}
}

func TestReadUint16LE(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x34, 0x12}))
	got, err := r.ReadUint16LE()
	if err != nil || got != 0x1234 {
		t.Fatalf("ReadUint16LE() = %v, %v, want 0x1234, nil", got, err)
	}
}

func TestReadUint32LE(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x78, 0x56, 0x34, 0x12}))
	got, err := r.ReadUint32LE()
	if err != nil || got != 0x12345678 {
		t.Fatalf("ReadUint32LE() = %v, %v, want 0x12345678, nil", got, err)
	}
}

func TestCrossByteBoundary(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFF, 0x00}))
	got, err := r.ReadBits(12)
	if err != nil || got != 0x0FF {
		t.Fatalf("ReadBits(12) = %v, %v, want 0x0FF, nil", got, err)
	}
}

func TestPeekThenConsume(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xD3, 0xAA}))
	peeked, err := r.PeekBits(3)
	if err != nil || peeked != 0b011 {
		t.Fatalf("PeekBits(3) = %v, %v, want 0b011, nil", peeked, err)
	}
	r.ConsumeBits(3)
	if got, err := r.ReadBits(5); err != nil || got != 0b11010 {
		t.Fatalf("ReadBits(5) after peek+consume = %v, %v, want 0b11010, nil", got, err)
	}
}

func TestUnexpectedEOF(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01}))
	r.ReadBits(8)
	if _, err := r.ReadBits(8); err == nil {
		t.Fatal("expected error reading past end of stream")
	}
}

func TestWriteBits(t *testing.T) {
	w := NewWriter(0)
	w.WriteBits(0b011, 3)
	w.WriteBits(0b11010, 5)
	got := w.Finish()
	if !bytes.Equal(got, []byte{0xD3}) {
		t.Fatalf("Finish() = %x, want d3", got)
	}
}

func TestWriteCrossByte(t *testing.T) {
	w := NewWriter(0)
	w.WriteBits(0xFFF, 12)
	got := w.Finish()
	if !bytes.Equal(got, []byte{0xFF, 0x0F}) {
		t.Fatalf("Finish() = %x, want ff0f", got)
	}
}

func TestWriteUint16LE(t *testing.T) {
	w := NewWriter(0)
	w.WriteUint16LE(0x1234)
	got := w.Finish()
	if !bytes.Equal(got, []byte{0x34, 0x12}) {
		t.Fatalf("Finish() = %x, want 3412", got)
	}
}

func TestReverseBits(t *testing.T) {
	cases := []struct {
		v, n, want uint32
	}{
		{0b1100, 4, 0b0011},
		{0b10101, 5, 0b10101},
		{0b11110000, 8, 0b00001111},
	}
	for _, c := range cases {
		if got := ReverseBits(c.v, uint8(c.n)); got != c.want {
			t.Errorf("ReverseBits(%b, %d) = %b, want %b", c.v, c.n, got, c.want)
		}
	}
}

func TestWriteBitsReversed(t *testing.T) {
	w := NewWriter(0)
	w.WriteBitsReversed(0b1100, 4)
	w.WriteBits(0, 4)
	got := w.Finish()
	if got[0]&0x0F != 0b0011 {
		t.Fatalf("got[0]&0x0f = %b, want 0011", got[0]&0x0F)
	}
}

func TestRoundTrip(t *testing.T) {
	w := NewWriter(0)
	values := []struct {
		v uint32
		n uint8
	}{
		{1, 1}, {0, 1}, {5, 3}, {1000, 10}, {0x3FFFF, 18}, {7, 3},
	}
	for _, tc := range values {
		w.WriteBits(tc.v, tc.n)
	}
	data := w.Finish()
	r := NewReader(bytes.NewReader(data))
	for _, tc := range values {
		got, err := r.ReadBits(tc.n)
		if err != nil {
			t.Fatalf("ReadBits(%d): %v", tc.n, err)
		}
		if got != tc.v {
			t.Errorf("ReadBits(%d) = %v, want %v", tc.n, got, tc.v)
		}
	}
}
