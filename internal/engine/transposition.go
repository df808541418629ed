package engine

import (
	"math/bits"

	"github.com/pbnjay/memory"
)

// Bound is a packed search result: the score shifted left by one with the
// low bit set for a lower bound and clear for an upper bound.
type Bound uint8

// LowerBound packs a score the true value is known to be at least.
func LowerBound(score int) Bound {
	return Bound(uint8(int8(score)<<1) | 1)
}

// UpperBound packs a score the true value is known to be at most.
func UpperBound(score int) Bound {
	return Bound(uint8(int8(score) << 1))
}

// Score returns the signed score.
func (b Bound) Score() int {
	return int(int8(b) >> 1)
}

// IsLower returns true for a lower bound.
func (b Bound) IsLower() bool {
	return b&1 == 1
}

// Table size limits, as log2 of the requested entry count.
const (
	// MinTableLog2 is the smallest size at which the 32-bit partial key and
	// the slot index together still identify a 49-bit position key.
	MinTableLog2     = 17
	MaxTableLog2     = 30
	DefaultTableLog2 = 23
)

type ttEntry struct {
	key   uint32 // low bits of the position key
	bound Bound
	used  bool
}

// entryBytes is the in-memory size of a ttEntry.
const entryBytes = 8

// TableStats counts table traffic since the last Clear.
type TableStats struct {
	Probes uint64
	Hits   uint64
	Stores uint64
}

// TranspositionTable caches search bounds by position key. It is owned by a
// single Solver and is not safe for concurrent use.
type TranspositionTable struct {
	entries []ttEntry
	size    uint64

	probes uint64
	hits   uint64
	stores uint64
}

// NewTranspositionTable creates a table with NextPrime(2^log2) slots. log2
// is clamped to [MinTableLog2, MaxTableLog2].
func NewTranspositionTable(log2 int) *TranspositionTable {
	log2 = min(max(log2, MinTableLog2), MaxTableLog2)
	size := NextPrime(1 << log2)
	return &TranspositionTable{
		entries: make([]ttEntry, size),
		size:    size,
	}
}

// Put stores a bound, replacing whatever occupied the slot.
func (tt *TranspositionTable) Put(key uint64, b Bound) {
	tt.stores++
	tt.entries[key%tt.size] = ttEntry{key: uint32(key), bound: b, used: true}
}

// Get returns the bound stored for key. A slot holding a different key is a miss.
func (tt *TranspositionTable) Get(key uint64) (Bound, bool) {
	tt.probes++
	e := tt.entries[key%tt.size]
	if !e.used || e.key != uint32(key) {
		return 0, false
	}
	tt.hits++
	return e.bound, true
}

// Clear empties the table and resets its counters.
func (tt *TranspositionTable) Clear() {
	clear(tt.entries)
	tt.probes, tt.hits, tt.stores = 0, 0, 0
}

// Size returns the number of slots.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

// Stats returns the traffic counters.
func (tt *TranspositionTable) Stats() TableStats {
	return TableStats{Probes: tt.probes, Hits: tt.hits, Stores: tt.stores}
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// NextPrime returns the smallest prime >= n.
func NextPrime(n uint64) uint64 {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n++
	}
	for !isPrime(n) {
		n += 2
	}
	return n
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// Log2ForMemory returns the largest table size exponent whose table fits in
// fraction of physical memory, clamped like NewTranspositionTable. If the
// amount of memory can't be determined, DefaultTableLog2 is returned.
func Log2ForMemory(fraction float64) int {
	total := memory.TotalMemory()
	if total == 0 || fraction <= 0 {
		return DefaultTableLog2
	}
	budget := uint64(float64(total) * fraction / entryBytes)
	if budget == 0 {
		return MinTableLog2
	}
	// NextPrime(2^n) is slightly above 2^n, so stay one step below the budget.
	log2 := bits.Len64(budget) - 2
	return min(max(log2, MinTableLog2), MaxTableLog2)
}
