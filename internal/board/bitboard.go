package board

import (
	"math/bits"
	"strings"
)

// Bitboard holds one bit per cell of the 7x6 grid, plus a guard bit on top of
// every column that keeps carries from spilling into the next column.
// Bit index = col*(Height+1) + row:
//
//	.  .  .  .  .  .  .
//	5 12 19 26 33 40 47
//	4 11 18 25 32 39 46
//	3 10 17 24 31 38 45
//	2  9 16 23 30 37 44
//	1  8 15 22 29 36 43
//	0  7 14 21 28 35 42
type Bitboard uint64

// Board dimensions.
const (
	Width  = 7
	Height = 6
	Area   = Width * Height
)

// Score bounds. A player winning with their w-th stone scores Area/2+1-w, so
// the fastest possible win (a 4th stone) scores MaxScore.
const (
	MinScore = -Area/2 + 3
	MaxScore = (Area+1)/2 - 3
)

// Masks
const (
	// BottomMask has the lowest cell of every column set.
	BottomMask Bitboard = 0x0000040810204081
	// BoardMask covers the 42 playable cells, guard row excluded.
	BoardMask Bitboard = BottomMask * ((1 << Height) - 1)
)

// ColumnOrder lists columns center first; central columns take part in more
// alignments, so exploring them first gives earlier cutoffs.
var ColumnOrder = [Width]int{3, 2, 4, 1, 5, 0, 6}

// BottomMaskCol returns the lowest cell of a column.
func BottomMaskCol(col int) Bitboard {
	return 1 << (col * (Height + 1))
}

// TopMaskCol returns the highest playable cell of a column.
func TopMaskCol(col int) Bitboard {
	return 1 << (Height - 1 + col*(Height+1))
}

// ColumnMask returns the playable cells of a column.
func ColumnMask(col int) Bitboard {
	return ((1 << Height) - 1) << (col * (Height + 1))
}

// PopCount returns the number of set bits.
func (b Bitboard) PopCount() int {
	return bits.OnesCount64(uint64(b))
}

// MoreThanOne returns true if at least two bits are set.
func (b Bitboard) MoreThanOne() bool {
	return b&(b-1) != 0
}

// String renders the bitboard top row first, guard row excluded.
func (b Bitboard) String() string {
	var sb strings.Builder
	for row := Height - 1; row >= 0; row-- {
		for col := 0; col < Width; col++ {
			if b&(1<<(col*(Height+1)+row)) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// winningCells returns the empty cells that would complete an alignment of
// four for the stones in pos. Floating cells (not yet playable) are included.
func winningCells(pos, mask Bitboard) Bitboard {
	const h = Height

	// vertical
	r := (pos << 1) & (pos << 2) & (pos << 3)

	// horizontal
	p := (pos << (h + 1)) & (pos << (2 * (h + 1)))
	r |= p & (pos << (3 * (h + 1)))
	r |= p & (pos >> (h + 1))
	p = (pos >> (h + 1)) & (pos >> (2 * (h + 1)))
	r |= p & (pos << (h + 1))
	r |= p & (pos >> (3 * (h + 1)))

	// diagonal 1
	p = (pos << h) & (pos << (2 * h))
	r |= p & (pos << (3 * h))
	r |= p & (pos >> h)
	p = (pos >> h) & (pos >> (2 * h))
	r |= p & (pos << h)
	r |= p & (pos >> (3 * h))

	// diagonal 2
	p = (pos << (h + 2)) & (pos << (2 * (h + 2)))
	r |= p & (pos << (3 * (h + 2)))
	r |= p & (pos >> (h + 2))
	p = (pos >> (h + 2)) & (pos >> (2 * (h + 2)))
	r |= p & (pos << (h + 2))
	r |= p & (pos >> (3 * (h + 2)))

	return r & (BoardMask ^ mask)
}

// HasAlignment returns true if the stones in pos already contain four in a row.
func HasAlignment(pos Bitboard) bool {
	// horizontal
	m := pos & (pos >> (Height + 1))
	if m&(m>>(2*(Height+1))) != 0 {
		return true
	}
	// diagonal 1
	m = pos & (pos >> Height)
	if m&(m>>(2*Height)) != 0 {
		return true
	}
	// diagonal 2
	m = pos & (pos >> (Height + 2))
	if m&(m>>(2*(Height+2))) != 0 {
		return true
	}
	// vertical
	m = pos & (pos >> 1)
	return m&(m>>2) != 0
}
