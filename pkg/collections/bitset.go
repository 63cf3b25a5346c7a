// Package collections provides small generic containers used on the hot path
// of a benchmark run.
package collections

import (
	"math/bits"
)

// ============================================================================
// Bitset - fixed-size boolean set
// ============================================================================

// Bitset is a fixed-size set of indices in [0, Size()).
// It is not safe for concurrent use.
type Bitset struct {
	words []uint64
	size  int
}

// NewBitset creates a bitset that holds indices [0, size).
func NewBitset(size int) *Bitset {
	if size < 0 {
		size = 0
	}
	return &Bitset{
		words: make([]uint64, (size+63)/64),
		size:  size,
	}
}

// Set sets the bit at index i. Out-of-range indices are ignored.
func (b *Bitset) Set(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.words[i/64] |= 1 << (i % 64)
}

// TestAndSet sets the bit at index i and returns its previous value.
func (b *Bitset) TestAndSet(i int) bool {
	was := b.Test(i)
	b.Set(i)
	return was
}

// Test returns true if the bit at index i is set.
func (b *Bitset) Test(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	return b.words[i/64]&(1<<(i%64)) != 0
}

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	count := 0
	for _, word := range b.words {
		count += bits.OnesCount64(word)
	}
	return count
}

// Size returns the number of addressable bits.
func (b *Bitset) Size() int {
	return b.size
}

// Full reports whether every bit is set.
func (b *Bitset) Full() bool {
	return b.Count() == b.size
}

// Missing returns the indices whose bit is not set, in ascending order.
func (b *Bitset) Missing() []int {
	var out []int
	for i := 0; i < b.size; i++ {
		if !b.Test(i) {
			out = append(out, i)
		}
	}
	return out
}

