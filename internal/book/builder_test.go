package book

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/matryer/is"

	"github.com/hailam/fourplay/internal/board"
	"github.com/hailam/fourplay/internal/engine"
)

type memCheckpoint struct {
	mu     sync.Mutex
	scores map[uint64]int
	saves  int
}

func newMemCheckpoint() *memCheckpoint {
	return &memCheckpoint{scores: make(map[uint64]int)}
}

func (c *memCheckpoint) Lookup(key3 uint64) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	score, ok := c.scores[key3]
	return score, ok, nil
}

func (c *memCheckpoint) Save(key3 uint64, score int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scores[key3] = score
	c.saves++
	return nil
}

// endgameRoot returns a random position with enough moves played that its
// subtree solves in milliseconds.
func endgameRoot(t *testing.T) board.Position {
	t.Helper()
	for {
		pos := mustPosition(t, board.RandomMoves(28)...)
		if pos.Moves() == 28 {
			return pos
		}
	}
}

func TestMinLog2(t *testing.T) {
	is := is.New(t)
	is.Equal(MinLog2(0), 1)
	is.Equal(MinLog2(8), 7)
	is.Equal(MinLog2(12), 13)
	is.Equal(MinLog2(14), 16)
	is.Equal(MinLog2(board.Area), MaxLog2)
}

func TestBuilderPositions(t *testing.T) {
	is := is.New(t)

	cases := map[int]int{
		0: 1,  // the empty board
		1: 5,  // plus columns 0/6, 1/5, 2/4 and 3
		2: 30, // plus 49 two-stone boards, of which only 3-3 is symmetric
	}
	for depth, want := range cases {
		b := Builder{Depth: depth}
		is.Equal(len(b.Positions()), want)
	}

	root := mustPosition(t, 3, 3)
	b := Builder{Root: root, Depth: 1}
	is.Equal(len(b.Positions()), 0)
}

func TestBuilderPositionsAreSearchable(t *testing.T) {
	is := is.New(t)
	root := endgameRoot(t)
	b := Builder{Root: root, Depth: root.Moves() + 3}
	seen := make(map[uint64]bool)
	for _, pos := range b.Positions() {
		is.True(pos.Moves() >= root.Moves())
		is.True(pos.Moves() <= b.Depth)
		is.True(!pos.CanWinNext())
		is.True(pos.PossibleNonLosingMoves() != 0)
		is.True(!seen[pos.Key3()])
		seen[pos.Key3()] = true
	}
}

func TestBuildMatchesSolver(t *testing.T) {
	is := is.New(t)
	root := endgameRoot(t)
	checkpoint := newMemCheckpoint()

	var last Progress
	b := Builder{
		Root:       root,
		Depth:      root.Moves() + 2,
		Log2:       16,
		Workers:    3,
		TableLog2:  engine.MinTableLog2,
		Checkpoint: checkpoint,
		OnProgress: func(p Progress) { last = p },
	}
	table, err := b.Build(context.Background())
	is.NoErr(err)
	is.Equal(last.Done, last.Total)
	is.Equal(last.Cached, 0)
	is.Equal(checkpoint.saves, last.Total)

	bk := table.Book()
	positions := b.Positions()
	slots := make(map[uint64]int)
	for _, pos := range positions {
		slots[pos.Key3()%bk.Size()]++
	}
	is.Equal(bk.Entries(), len(slots))

	plain := engine.NewSolver(engine.NewTranspositionTable(engine.MinTableLog2), nil)
	for _, pos := range positions {
		want := plain.Solve(pos, false)
		score, ok := bk.Probe(pos)
		if !ok {
			// evicted by another position sharing the slot
			is.True(slots[pos.Key3()%bk.Size()] > 1)
			continue
		}
		is.Equal(score, want)
	}

	withBook := engine.NewSolver(engine.NewTranspositionTable(engine.MinTableLog2), bk)
	plain.Reset()
	is.Equal(withBook.Solve(root, false), plain.Solve(root, false))
	is.Equal(withBook.Analyze(root, false), plain.Analyze(root, false))

	// a second build is answered from the checkpoint
	table2, err := b.Build(context.Background())
	is.NoErr(err)
	is.Equal(last.Cached, last.Total)
	is.Equal(table2.Book().Entries(), bk.Entries())
}

func TestBuildCanceled(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := Builder{Depth: 4, Log2: 10, Workers: 2, TableLog2: engine.MinTableLog2}
	_, err := b.Build(ctx)
	is.True(errors.Is(err, context.Canceled))
}

func TestBuildRejectsDecidedRoot(t *testing.T) {
	is := is.New(t)
	b := Builder{Root: mustPosition(t, 0, 1, 0, 1, 0, 1, 0), Depth: 10, Log2: 10}
	_, err := b.Build(context.Background())
	is.True(errors.Is(err, board.ErrGameOver))
}
