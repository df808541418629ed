package engine

import (
	"context"

	"github.com/hailam/fourplay/internal/board"
)

// Prober answers exact scores for positions it knows, such as an opening book.
type Prober interface {
	Probe(pos board.Position) (int, bool)
}

// MoveResult is the analysis of one column. Score is only meaningful when
// Legal is set and is given from the point of view of the side to move.
type MoveResult struct {
	Column  int
	Legal   bool
	Score   int
	Winning bool // playing the column aligns four
	Losing  bool // the opponent can win right after it
	Forced  bool // the opponent threatens to win in this column
}

// Solver computes exact game-theoretic scores. A Solver owns its
// transposition table and must not be shared between goroutines; the prober
// is only read and may be shared.
type Solver struct {
	tt    *TranspositionTable
	book  Prober
	nodes uint64
}

// NewSolver creates a solver. book may be nil.
func NewSolver(tt *TranspositionTable, book Prober) *Solver {
	return &Solver{tt: tt, book: book}
}

// Reset clears the transposition table and the node counter.
func (s *Solver) Reset() {
	s.tt.Clear()
	s.nodes = 0
}

// Nodes returns the number of positions explored since the last Reset.
func (s *Solver) Nodes() uint64 {
	return s.nodes
}

// Table returns the solver's transposition table.
func (s *Solver) Table() *TranspositionTable {
	return s.tt
}

// Solve returns the score of pos. With weak set only the sign is exact.
func (s *Solver) Solve(pos board.Position, weak bool) int {
	score, _ := s.SolveContext(context.Background(), pos, weak)
	return score
}

// SolveContext is Solve with cancellation checked between null-window searches.
func (s *Solver) SolveContext(ctx context.Context, pos board.Position, weak bool) (int, error) {
	rem := pos.RemainingMoves()
	if pos.CanWinNext() {
		return (rem + 1) / 2, nil
	}

	low, high := -rem/2, (rem+1)/2
	if weak {
		low, high = -1, 1
	}
	for low < high {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		// probe close to zero first, draws and short results are cheaper
		m := low + (high-low)/2
		if m <= 0 && low/2 < m {
			m = low / 2
		} else if m >= 0 && high/2 > m {
			m = high / 2
		}
		if r := s.negamax(pos, m, m+1); r <= m {
			high = r
		} else {
			low = r
		}
	}
	return low, nil
}

// Analyze scores every column of pos from the side to move's point of view.
func (s *Solver) Analyze(pos board.Position, weak bool) [board.Width]MoveResult {
	results, _ := s.AnalyzeContext(context.Background(), pos, weak)
	return results
}

// AnalyzeContext is Analyze with cancellation.
func (s *Solver) AnalyzeContext(ctx context.Context, pos board.Position, weak bool) ([board.Width]MoveResult, error) {
	var results [board.Width]MoveResult
	rem := pos.RemainingMoves()
	for col := range board.Width {
		r := MoveResult{Column: col}
		if pos.CanPlay(col) {
			r.Legal = true
			r.Forced = pos.IsForcedMove(col)
			if pos.IsWinningMove(col) {
				r.Winning = true
				r.Score = (rem + 1) / 2
			} else {
				child := pos.Played(col)
				r.Losing = child.CanWinNext()
				score, err := s.SolveContext(ctx, child, weak)
				if err != nil {
					return results, err
				}
				r.Score = -score
			}
		}
		results[col] = r
	}
	return results, nil
}

// negamax is a fail-soft alpha-beta search. The side to move must not have
// an immediate win; callers only reach positions through non-losing moves.
func (s *Solver) negamax(pos board.Position, alpha, beta int) int {
	s.nodes++

	next := pos.PossibleNonLosingMoves()
	rem := pos.RemainingMoves()
	if next == 0 {
		return -rem / 2
	}
	if rem <= 2 {
		return 0
	}

	// the opponent cannot win with their next stone
	if lowest := -(rem - 2) / 2; alpha < lowest {
		alpha = lowest
		if alpha >= beta {
			return alpha
		}
	}

	// nor can we win with our next one
	highest := (rem - 1) / 2
	key := pos.Key()
	if b, ok := s.tt.Get(key); ok {
		if b.IsLower() {
			if score := b.Score(); alpha < score {
				alpha = score
				if alpha >= beta {
					return alpha
				}
			}
		} else {
			highest = b.Score()
		}
	}
	if beta > highest {
		beta = highest
		if alpha >= beta {
			return beta
		}
	}

	if s.book != nil {
		if score, ok := s.book.Probe(pos); ok {
			return score
		}
	}

	var moves board.MoveSorter
	sorted := pos.Moves() <= board.Area/3
	for _, col := range board.ColumnOrder {
		move := next & board.ColumnMask(col)
		if move == 0 {
			continue
		}
		score := 0
		if sorted {
			score = pos.ScoreMove(move)
		}
		moves.Add(col, score)
	}

	for i := range moves.Len() {
		score := -s.negamax(pos.Played(moves.Column(i)), -beta, -alpha)
		if score >= beta {
			s.tt.Put(key, LowerBound(score))
			return score
		}
		if score > alpha {
			alpha = score
		}
	}

	s.tt.Put(key, UpperBound(alpha))
	return alpha
}
