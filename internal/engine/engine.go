package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/hailam/fourplay/internal/board"
)

// SearchInfo describes the last solve or analyze call.
type SearchInfo struct {
	Moves        int // stones on the board
	Score        int // best score, from the side to move
	Weak         bool
	Nodes        uint64
	Elapsed      time.Duration
	TableHitRate float64 // percent
}

// Engine wraps a Solver for callers that hold move lists rather than
// positions. It is not safe for concurrent use.
type Engine struct {
	solver *Solver
	tt     *TranspositionTable
	last   SearchInfo

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates an engine with a table of NextPrime(2^log2) slots.
// book may be nil.
func NewEngine(log2 int, book Prober) *Engine {
	tt := NewTranspositionTable(log2)
	return &Engine{
		solver: NewSolver(tt, book),
		tt:     tt,
	}
}

// Solve plays 0-based columns from the empty board and solves the result.
func (e *Engine) Solve(cols []int, weak bool) (int, error) {
	pos, err := positionFromColumns(cols)
	if err != nil {
		return 0, err
	}
	return e.SolvePosition(context.Background(), pos, weak)
}

// Analyze plays 0-based columns from the empty board and scores every column.
func (e *Engine) Analyze(cols []int, weak bool) ([board.Width]MoveResult, error) {
	pos, err := positionFromColumns(cols)
	if err != nil {
		return [board.Width]MoveResult{}, err
	}
	return e.AnalyzePosition(context.Background(), pos, weak)
}

// SolvePosition solves pos. The node count reported is for this call only.
func (e *Engine) SolvePosition(ctx context.Context, pos board.Position, weak bool) (int, error) {
	start := time.Now()
	before := e.solver.Nodes()
	score, err := e.solver.SolveContext(ctx, pos, weak)
	if err != nil {
		return 0, err
	}
	e.report(SearchInfo{
		Moves:   pos.Moves(),
		Score:   score,
		Weak:    weak,
		Nodes:   e.solver.Nodes() - before,
		Elapsed: time.Since(start),
	})
	return score, nil
}

// AnalyzePosition scores every column of pos.
func (e *Engine) AnalyzePosition(ctx context.Context, pos board.Position, weak bool) ([board.Width]MoveResult, error) {
	start := time.Now()
	before := e.solver.Nodes()
	results, err := e.solver.AnalyzeContext(ctx, pos, weak)
	if err != nil {
		return results, err
	}
	info := SearchInfo{
		Moves:   pos.Moves(),
		Weak:    weak,
		Nodes:   e.solver.Nodes() - before,
		Elapsed: time.Since(start),
	}
	if best := BestMoves(results); len(best) > 0 {
		info.Score = results[best[0]].Score
	}
	e.report(info)
	return results, nil
}

func (e *Engine) report(info SearchInfo) {
	info.TableHitRate = e.tt.HitRate()
	e.last = info
	log.Debug().
		Int("moves", info.Moves).
		Int("score", info.Score).
		Uint64("nodes", info.Nodes).
		Dur("elapsed", info.Elapsed).
		Float64("hit-rate", info.TableHitRate).
		Msg("search-done")
	if e.OnInfo != nil {
		e.OnInfo(info)
	}
}

// LastInfo returns statistics for the most recent completed call.
func (e *Engine) LastInfo() SearchInfo {
	return e.last
}

// TableStats returns the transposition table counters.
func (e *Engine) TableStats() TableStats {
	return e.tt.Stats()
}

// TableSize returns the number of transposition table slots.
func (e *Engine) TableSize() uint64 {
	return e.tt.Size()
}

// Clear empties the transposition table and resets counters.
func (e *Engine) Clear() {
	e.solver.Reset()
	e.last = SearchInfo{}
}

// positionFromColumns plays cols and rejects sequences that go on after a win.
func positionFromColumns(cols []int) (board.Position, error) {
	pos := board.NewPosition()
	for i, col := range cols {
		if pos.IsDecided() {
			return board.Position{}, fmt.Errorf("move %d: %w", i+1, board.ErrGameOver)
		}
		if err := pos.Play(col); err != nil {
			return board.Position{}, fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	if pos.IsDecided() {
		return board.Position{}, board.ErrGameOver
	}
	return pos, nil
}

// BestMoves returns the legal columns sharing the highest score.
func BestMoves(results [board.Width]MoveResult) []int {
	legal := lo.Filter(results[:], func(r MoveResult, _ int) bool {
		return r.Legal
	})
	if len(legal) == 0 {
		return nil
	}
	best := lo.MaxBy(legal, func(a, b MoveResult) bool {
		return a.Score > b.Score
	})
	return lo.FilterMap(legal, func(r MoveResult, _ int) (int, bool) {
		return r.Column, r.Score == best.Score
	})
}

// DescribeScore renders a score for people. Exact scores name the stone the
// winner completes four with.
func DescribeScore(score int, weak bool) string {
	switch {
	case score == 0:
		return "draw"
	case weak && score > 0:
		return "win"
	case weak:
		return "loss"
	case score > 0:
		return fmt.Sprintf("win with own stone %d", board.Area/2+1-score)
	default:
		return fmt.Sprintf("loss to opponent stone %d", board.Area/2+1+score)
	}
}
