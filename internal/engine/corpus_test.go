package engine

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/hailam/fourplay/internal/board"
)

type corpusLine struct {
	moves string
	score int
}

// readCorpus loads a testdata file of "<moves> <score>" lines in 1-based
// column notation. Blank lines and # comments are skipped.
func readCorpus(t *testing.T, name string) []corpusLine {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []corpusLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) != 2 {
			t.Fatalf("%s: malformed line %q", name, scanner.Text())
		}
		score, err := strconv.Atoi(fields[1])
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		lines = append(lines, corpusLine{moves: fields[0], score: score})
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return lines
}

// checkCorpus solves every line with one solver, so later lines start from
// the table the earlier ones filled.
func checkCorpus(t *testing.T, name string, log2 int) {
	is := is.New(t)
	lines := readCorpus(t, name)
	is.True(len(lines) > 0)

	s := NewSolver(NewTranspositionTable(log2), nil)
	for _, line := range lines {
		pos, err := board.ParseMoves(line.moves)
		is.NoErr(err)
		is.True(!pos.IsDecided())

		if got := s.Solve(pos, false); got != line.score {
			t.Errorf("%s: %s scored %d, want %d", name, line.moves, got, line.score)
		}
		if got := s.Solve(pos, true); sign(got) != sign(line.score) {
			t.Errorf("%s: %s weak score %d, want sign of %d", name, line.moves, got, line.score)
		}
	}
	t.Logf("%s: %d positions, %d nodes", name, len(lines), s.Nodes())
}

func TestCorpusEnd(t *testing.T) {
	checkCorpus(t, "end.txt", MinTableLog2)
}

func TestCorpusMiddle(t *testing.T) {
	if testing.Short() {
		t.Skip("midgame corpus skipped in short mode")
	}
	checkCorpus(t, "middle.txt", 20)
}

func TestCorpusBegin(t *testing.T) {
	if !slowTests() {
		t.Skip("set FOURPLAY_SLOW_TESTS to solve the opening corpus")
	}
	checkCorpus(t, "begin.txt", DefaultTableLog2)
}

func TestCorpusEndMatchesReference(t *testing.T) {
	is := is.New(t)
	for _, line := range readCorpus(t, "end.txt") {
		pos, err := board.ParseMoves(line.moves)
		is.NoErr(err)
		if pos.Moves() < 32 {
			continue
		}
		is.Equal(reference(pos, -board.Area, board.Area), line.score)
	}
}
