// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package huffman

import "container/heap"

// freqSymbol pairs a symbol index with its frequency, used while building
// and redistributing length-limited code lengths.
type freqSymbol struct {
	symbol int
	freq   uint32
}

// node is a leaf or internal node of the Huffman tree built while
// assigning length-limited code lengths.
type node struct {
	freq     uint64
	symbol   int // -1 for internal nodes
	left     *node
	right    *node
	order    int // insertion order, for stable tie-breaking
}

// nodeHeap is a min-heap over node.freq, breaking ties by insertion
// order so that the resulting tree shape is deterministic.
type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].order < h[j].order
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BuildLengthLimited computes canonical-ready code lengths for the given
// per-symbol frequencies, using a standard bottom-up Huffman build
// followed by a greedy redistribution pass if the resulting depth
// exceeds limit bits. Symbols with zero frequency get length 0 (absent
// from the code). This is an accepted approximation of package-merge,
// not an exact optimum, but it always satisfies the Kraft inequality.
func BuildLengthLimited(freqs []uint32, limit uint8) []uint8 {
	lengths := make([]uint8, len(freqs))

	var active []freqSymbol
	for sym, f := range freqs {
		if f > 0 {
			active = append(active, freqSymbol{sym, f})
		}
	}
	if len(active) == 0 {
		return lengths
	}
	if len(active) == 1 {
		lengths[active[0].symbol] = 1
		return lengths
	}

	h := make(nodeHeap, 0, len(active))
	order := 0
	for _, a := range active {
		h = append(h, &node{freq: uint64(a.freq), symbol: a.symbol, order: order})
		order++
	}
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(*node)
		b := heap.Pop(&h).(*node)
		parent := &node{freq: a.freq + b.freq, symbol: -1, left: a, right: b, order: order}
		order++
		heap.Push(&h, parent)
	}
	root := heap.Pop(&h).(*node)

	var walk func(n *node, depth int)
	maxDepth := 0
	walk = func(n *node, depth int) {
		if n.symbol >= 0 {
			lengths[n.symbol] = uint8(depth)
			if depth > maxDepth {
				maxDepth = depth
			}
			return
		}
		d := depth + 1
		if n.left != nil {
			walk(n.left, d)
		}
		if n.right != nil {
			walk(n.right, d)
		}
	}
	if root.symbol >= 0 {
		// Not reached: with two or more active symbols the root is
		// always an internal node (the single-symbol case returns above).
		lengths[root.symbol] = 1
	} else {
		walk(root, 0)
	}

	if maxDepth > int(limit) {
		redistribute(lengths, active, limit)
	}
	return lengths
}

// redistribute applies the greedy fix-up for length-limited Huffman:
// clamp every over-deep code to the limit, then repeatedly split the
// deepest code shallower than the limit into two one level down, with
// the freed sibling slot absorbing one clamped code, until the Kraft
// sum fits again. Final lengths are re-assigned to symbols in
// descending frequency order (ties broken by ascending symbol index)
// so that more frequent symbols keep shorter codes.
func redistribute(lengths []uint8, active []freqSymbol, limit uint8) {
	var count [32]int
	for _, a := range active {
		l := lengths[a.symbol]
		if l > limit {
			l = limit
		}
		count[l]++
	}

	// Splitting a code at depth d into two children at d+1, with one
	// clamped code moving into the freed sibling slot, shrinks the
	// Kraft sum by exactly one limit-depth leaf per round, so the loop
	// runs until the clamped histogram fits the code space again.
	for kraftSurplus(count[:], int(limit)) > 0 {
		d := int(limit) - 1
		for count[d] == 0 {
			d--
		}
		count[d]--
		count[d+1] += 2
		count[limit]--
	}

	// Re-assign lengths to symbols in descending frequency order, using
	// the fixed-up count[] histogram: the count[length] most frequent
	// remaining symbols get that length, shortest lengths first.
	sorted := make([]int, len(active))
	for i, a := range active {
		sorted[i] = a.symbol
	}
	// Sort descending by frequency, ties ascending by symbol index.
	freqOf := make(map[int]uint32, len(active))
	for _, a := range active {
		freqOf[a.symbol] = a.freq
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0; j-- {
			a, b := sorted[j-1], sorted[j]
			if freqOf[a] > freqOf[b] || (freqOf[a] == freqOf[b] && a <= b) {
				break
			}
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	pos := 0
	for l := 1; l <= int(limit); l++ {
		for i := 0; i < count[l] && pos < len(sorted); i++ {
			lengths[sorted[pos]] = uint8(l)
			pos++
		}
	}
}

// kraftSurplus measures how far a code-length histogram oversubscribes
// the limit-bit code space, in units of limit-depth leaves; zero or
// negative means a valid prefix code exists for it.
func kraftSurplus(count []int, limit int) int {
	total := 0
	for l := 1; l <= limit; l++ {
		total += count[l] << (limit - l)
	}
	return total - 1<<limit
}

// BuildCodesFromLengths assigns canonical Huffman codes (MSB-first
// numeric value, as RFC 1951 describes them) from a per-symbol
// code-length table. It is shared by the fixed-table construction and
// the dynamic encoder.
func BuildCodesFromLengths(lengths []uint8) []CodeEntry {
	var maxBits uint8
	for _, l := range lengths {
		if l > maxBits {
			maxBits = l
		}
	}
	codes := make([]CodeEntry, len(lengths))
	if maxBits == 0 {
		return codes
	}
	blCount := make([]uint32, maxBits+1)
	for _, l := range lengths {
		if l > 0 {
			blCount[l]++
		}
	}
	nextCode := make([]uint32, maxBits+1)
	var code uint32
	for n := uint8(1); n <= maxBits; n++ {
		code = (code + blCount[n-1]) << 1
		nextCode[n] = code
	}
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		codes[sym] = CodeEntry{Code: nextCode[l], Length: l}
		nextCode[l]++
	}
	return codes
}

// CodeEntry is a canonical Huffman code: its MSB-first numeric value and
// bit length.
type CodeEntry struct {
	Code   uint32
	Length uint8
}
