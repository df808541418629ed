package board

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidMove is returned when a stone is played in a full or
	// nonexistent column.
	ErrInvalidMove = errors.New("invalid move")
	// ErrGameOver is returned when a move sequence continues after one side
	// has already aligned four stones.
	ErrGameOver = errors.New("game already decided")
)

// Position is a Connect Four board state. It is a small value type; copies
// are independent.
type Position struct {
	current Bitboard // stones of the side to move
	mask    Bitboard // all stones
	moves   int
}

// NewPosition returns the empty board.
func NewPosition() Position {
	return Position{}
}

// FromMoves plays 0-based columns from the empty board.
func FromMoves(cols []int) (Position, error) {
	pos := NewPosition()
	for i, col := range cols {
		if err := pos.Play(col); err != nil {
			return Position{}, fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	return pos, nil
}

// Moves returns the number of stones played so far.
func (p Position) Moves() int {
	return p.moves
}

// RemainingMoves returns the number of empty cells.
func (p Position) RemainingMoves() int {
	return Area - p.moves
}

// Bitboards returns the stones of the side to move and of both sides.
func (p Position) Bitboards() (current, mask Bitboard) {
	return p.current, p.mask
}

// CanPlay returns true if col exists and is not full.
func (p Position) CanPlay(col int) bool {
	return col >= 0 && col < Width && p.mask&TopMaskCol(col) == 0
}

// Play drops a stone for the side to move into col.
func (p *Position) Play(col int) error {
	if !p.CanPlay(col) {
		return fmt.Errorf("%w: column %d", ErrInvalidMove, col)
	}
	p.play(col)
	return nil
}

func (p *Position) play(col int) {
	p.current ^= p.mask
	p.mask |= p.mask + BottomMaskCol(col)
	p.moves++
}

// Played returns the position after col is played, leaving p untouched.
// Playing a full column is a programming error and panics.
func (p Position) Played(col int) Position {
	if !p.CanPlay(col) {
		panic(fmt.Errorf("%w: column %d", ErrInvalidMove, col))
	}
	p.play(col)
	return p
}

// Key returns a unique key for the position: current+mask sets exactly one
// extra bit above the stones of each column and keeps ownership below it.
func (p Position) Key() uint64 {
	return uint64(p.current + p.mask)
}

// Key3 returns a base-3 key shared by a position and its mirror image. Each
// column contributes one trit per stone (1 = side to move, 2 = opponent)
// followed by a 0 separator. Keys are unique only while the trit count fits
// in 64 bits, i.e. up to 33 stones; the opening book stays far below that.
func (p Position) Key3() uint64 {
	var forward uint64
	for col := 0; col < Width; col++ {
		forward = p.partialKey3(forward, col)
	}
	var reverse uint64
	for col := Width - 1; col >= 0; col-- {
		reverse = p.partialKey3(reverse, col)
	}
	if forward < reverse {
		return forward / 3
	}
	return reverse / 3
}

func (p Position) partialKey3(key uint64, col int) uint64 {
	for cell := BottomMaskCol(col); cell&p.mask != 0; cell <<= 1 {
		key *= 3
		if cell&p.current != 0 {
			key++
		} else {
			key += 2
		}
	}
	return key * 3
}

// PossibleMoves returns the lowest empty cell of every non-full column.
func (p Position) PossibleMoves() Bitboard {
	return (p.mask + BottomMask) & BoardMask
}

// WinningMoves returns the empty cells that complete four for the side to move.
func (p Position) WinningMoves() Bitboard {
	return winningCells(p.current, p.mask)
}

// OpponentWinningMoves returns the empty cells that complete four for the opponent.
func (p Position) OpponentWinningMoves() Bitboard {
	return winningCells(p.current^p.mask, p.mask)
}

// CanWinNext returns true if the side to move has an immediately winning move.
func (p Position) CanWinNext() bool {
	return p.WinningMoves()&p.PossibleMoves() != 0
}

// PossibleNonLosingMoves returns the playable cells that do not let the
// opponent win on the next move. An empty result means every move loses.
func (p Position) PossibleNonLosingMoves() Bitboard {
	possible := p.PossibleMoves()
	opponentWins := p.OpponentWinningMoves()
	if forced := possible & opponentWins; forced != 0 {
		if forced.MoreThanOne() {
			// two threats, only one can be blocked
			return 0
		}
		possible = forced
	}
	// never play directly below an opponent winning cell
	return possible &^ (opponentWins >> 1)
}

// IsWinningMove returns true if playing col aligns four for the side to move.
func (p Position) IsWinningMove(col int) bool {
	return p.WinningMoves()&p.PossibleMoves()&ColumnMask(col) != 0
}

// IsForcedMove returns true if the opponent threatens to win in col on their
// next move, so not playing col loses immediately.
func (p Position) IsForcedMove(col int) bool {
	return p.OpponentWinningMoves()&p.PossibleMoves()&ColumnMask(col) != 0
}

// ScoreMove counts the winning cells the side to move would own after
// playing move. Only used to order moves.
func (p Position) ScoreMove(move Bitboard) int {
	return winningCells(p.current|move, p.mask).PopCount()
}

// IsDecided returns true if either side already has four in a row.
func (p Position) IsDecided() bool {
	return HasAlignment(p.current) || HasAlignment(p.current^p.mask)
}

// Mirror returns the position reflected left to right.
func (p Position) Mirror() Position {
	const colBits = 1<<(Height+1) - 1
	m := Position{moves: p.moves}
	for col := 0; col < Width; col++ {
		from := col * (Height + 1)
		to := (Width - 1 - col) * (Height + 1)
		m.current |= (p.current >> from & colBits) << to
		m.mask |= (p.mask >> from & colBits) << to
	}
	return m
}

// String renders the board top row first. X moved first, O second.
func (p Position) String() string {
	first := p.current
	if p.moves%2 == 1 {
		first = p.current ^ p.mask
	}
	var sb strings.Builder
	for row := Height - 1; row >= 0; row-- {
		sb.WriteByte('|')
		for col := 0; col < Width; col++ {
			cell := Bitboard(1) << (col*(Height+1) + row)
			switch {
			case p.mask&cell == 0:
				sb.WriteByte('.')
			case first&cell != 0:
				sb.WriteByte('X')
			default:
				sb.WriteByte('O')
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString("+")
	sb.WriteString(strings.Repeat("-", Width))
	sb.WriteString("+\n ")
	for col := 1; col <= Width; col++ {
		sb.WriteByte(byte('0' + col))
	}
	sb.WriteByte('\n')
	return sb.String()
}
