package board

import (
	"errors"
	"fmt"
	"strings"

	"lukechampine.com/frand"
)

// ErrInvalidNotation is returned for move strings that are not 1-based column digits.
var ErrInvalidNotation = errors.New("invalid move notation")

// ParseMoves reads a move sequence written as 1-based column digits, the
// notation of the published benchmark sets ("4453" plays columns 3, 3, 4, 2).
// Unlike FromMoves it also rejects a sequence that goes on after a win.
func ParseMoves(s string) (Position, error) {
	pos := NewPosition()
	for i, c := range s {
		if c < '1' || c > '0'+Width {
			return Position{}, fmt.Errorf("%w: %q at index %d", ErrInvalidNotation, c, i)
		}
		col := int(c - '1')
		if !pos.CanPlay(col) {
			return Position{}, fmt.Errorf("move %d: %w: column %d", i+1, ErrInvalidMove, col+1)
		}
		if pos.IsWinningMove(col) && i < len(s)-1 {
			return Position{}, fmt.Errorf("move %d: %w", i+1, ErrGameOver)
		}
		pos.play(col)
	}
	return pos, nil
}

// ParseColumns converts 1-based digits into 0-based columns without playing them.
func ParseColumns(s string) ([]int, error) {
	cols := make([]int, 0, len(s))
	for i, c := range s {
		if c < '1' || c > '0'+Width {
			return nil, fmt.Errorf("%w: %q at index %d", ErrInvalidNotation, c, i)
		}
		cols = append(cols, int(c-'1'))
	}
	return cols, nil
}

// FormatMoves writes 0-based columns in 1-based digit notation.
func FormatMoves(cols []int) string {
	var sb strings.Builder
	for _, col := range cols {
		sb.WriteByte(byte('1' + col))
	}
	return sb.String()
}

// RandomMoves returns up to n random 0-based columns forming a legal game in
// which nobody has aligned four yet. It stops early when every playable
// column would end the game.
func RandomMoves(n int) []int {
	pos := NewPosition()
	cols := make([]int, 0, n)
	for len(cols) < n {
		var candidates [Width]int
		count := 0
		for col := 0; col < Width; col++ {
			if pos.CanPlay(col) && !pos.IsWinningMove(col) {
				candidates[count] = col
				count++
			}
		}
		if count == 0 {
			break
		}
		col := candidates[frand.Intn(count)]
		pos.play(col)
		cols = append(cols, col)
	}
	return cols
}
