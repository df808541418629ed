package book

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/fourplay/internal/board"
	"github.com/hailam/fourplay/internal/engine"
)

// Checkpoint persists solved scores so an interrupted build can resume.
// Implementations must be safe for concurrent use.
type Checkpoint interface {
	Lookup(key3 uint64) (int, bool, error)
	Save(key3 uint64, score int) error
}

// Progress is reported after every solved position.
type Progress struct {
	Done   int
	Total  int
	Cached int // answered by the checkpoint
}

// Builder generates an opening book by solving every distinct position
// reachable from Root with at most Depth moves on the board.
type Builder struct {
	Root      board.Position // the empty board unless set
	Depth     int
	Log2      int
	Workers   int // defaults to GOMAXPROCS
	TableLog2 int // transposition table size of each worker

	Checkpoint Checkpoint
	OnProgress func(Progress)
}

// MinLog2 returns the smallest table size at which the 16-bit partial key
// and the slot index identify every Key3 up to depth moves without false hits.
func MinLog2(depth int) int {
	// Key3 has one trit per stone plus Width-1 separators.
	var keys uint64 = 1
	for range depth + board.Width - 1 {
		if keys > math.MaxUint64/3 {
			return MaxLog2
		}
		keys *= 3
	}
	for log2 := 1; log2 < MaxLog2; log2++ {
		if engine.NextPrime(1<<log2)<<16 >= keys {
			return log2
		}
	}
	return MaxLog2
}

// Positions returns the distinct positions (mirror images merged) with at
// most Depth moves that the book should hold: nobody has won, the side to
// move has no immediate win and at least one move that does not lose at once.
func (b *Builder) Positions() []board.Position {
	var out []board.Position
	seen := make(map[uint64]struct{})
	frontier := []board.Position{b.Root}
	for depth := b.Root.Moves(); depth <= b.Depth && len(frontier) > 0; depth++ {
		var next []board.Position
		for _, pos := range frontier {
			key := pos.Key3()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if !pos.CanWinNext() && pos.PossibleNonLosingMoves() != 0 {
				out = append(out, pos)
			}
			for col := range board.Width {
				if pos.CanPlay(col) && !pos.IsWinningMove(col) {
					next = append(next, pos.Played(col))
				}
			}
		}
		frontier = next
	}
	return out
}

// Build solves every position and returns the filled table.
func (b *Builder) Build(ctx context.Context) (*Table, error) {
	if b.Root.IsDecided() {
		return nil, fmt.Errorf("book root: %w", board.ErrGameOver)
	}
	if need := MinLog2(b.Depth); b.Log2 < need {
		// partial keys may collide for positions outside the book
		log.Warn().Int("log2", b.Log2).Int("depth", b.Depth).Int("need", need).Msg("book-log2-small")
	}
	table, err := NewTable(b.Depth, b.Log2)
	if err != nil {
		return nil, err
	}
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	positions := b.Positions()
	log.Info().
		Int("depth", b.Depth).
		Int("positions", len(positions)).
		Int("workers", workers).
		Uint64("slots", table.b.size).
		Msg("book-build-start")

	var (
		mu       sync.Mutex
		progress = Progress{Total: len(positions)}
		start    = time.Now()
	)
	record := func(key uint64, score int, cached bool) {
		mu.Lock()
		defer mu.Unlock()
		table.Put(key, score)
		progress.Done++
		if cached {
			progress.Cached++
		}
		if b.OnProgress != nil {
			b.OnProgress(progress)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan board.Position, workers*2)
	for range workers {
		g.Go(func() error {
			solver := engine.NewSolver(engine.NewTranspositionTable(b.TableLog2), nil)
			for pos := range jobs {
				key := pos.Key3()
				if b.Checkpoint != nil {
					score, ok, err := b.Checkpoint.Lookup(key)
					if err != nil {
						return err
					}
					if ok {
						record(key, score, true)
						continue
					}
				}
				score, err := solver.SolveContext(ctx, pos, false)
				if err != nil {
					return err
				}
				if b.Checkpoint != nil {
					if err := b.Checkpoint.Save(key, score); err != nil {
						return err
					}
				}
				record(key, score, false)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(jobs)
		for _, pos := range positions {
			select {
			case jobs <- pos:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Int("solved", progress.Done-progress.Cached).
		Int("cached", progress.Cached).
		Dur("elapsed", time.Since(start)).
		Msg("book-build-done")
	return table, nil
}
