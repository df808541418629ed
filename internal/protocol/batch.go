// Package protocol drives an engine from text: a batch format that reads one
// position per line, and an interactive shell.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hailam/fourplay/internal/board"
	"github.com/hailam/fourplay/internal/engine"
)

// Summary totals a batch run.
type Summary struct {
	Positions  int
	Invalid    int
	TimedOut   int
	Mismatches int // results that differ from the expected score on the line
	Nodes      uint64
	Elapsed    time.Duration
}

// Runner solves positions read line by line. Each line holds a move string
// in 1-based column digits and optionally the expected score:
//
//	4453 -1
//
// Solve mode prints "<moves> <score> <nodes> <microseconds>". Analyze mode
// prints the moves followed by one score per column, "-" for full columns.
type Runner struct {
	Engine  *engine.Engine
	Weak    bool
	Analyze bool
	Timeout time.Duration // per position, 0 = none

	Out io.Writer
	Err io.Writer
}

// Run processes every line of in. It only stops early when ctx ends or a
// write fails; bad lines are reported on Err and skipped.
func (r *Runner) Run(ctx context.Context, in io.Reader) (Summary, error) {
	var sum Summary
	start := time.Now()
	scanner := bufio.NewScanner(in)

	for n := 1; scanner.Scan(); n++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		moves := fields[0]
		pos, err := board.ParseMoves(moves)
		if err != nil {
			sum.Invalid++
			fmt.Fprintf(r.Err, "Line %d: Invalid move %q: %v\n", n, moves, err)
			continue
		}
		if pos.IsDecided() {
			sum.Invalid++
			fmt.Fprintf(r.Err, "Line %d: Invalid move %q: %v\n", n, moves, board.ErrGameOver)
			continue
		}

		score, err := r.solveLine(ctx, moves, pos)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			sum.TimedOut++
			fmt.Fprintf(r.Err, "Line %d: timed out after %v\n", n, r.Timeout)
			continue
		}
		if err != nil {
			return sum, err
		}
		sum.Positions++
		sum.Nodes += r.Engine.LastInfo().Nodes

		if len(fields) > 1 && !r.Analyze {
			want, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintf(r.Err, "Line %d: bad expected score %q\n", n, fields[1])
			} else if !matches(score, want, r.Weak) {
				sum.Mismatches++
				log.Warn().Int("line", n).Str("moves", moves).Int("got", score).Int("want", want).Msg("score-mismatch")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, err
	}

	sum.Elapsed = time.Since(start)
	log.Debug().
		Int("positions", sum.Positions).
		Int("invalid", sum.Invalid).
		Int("mismatches", sum.Mismatches).
		Uint64("nodes", sum.Nodes).
		Dur("elapsed", sum.Elapsed).
		Msg("batch-done")
	return sum, nil
}

// solveLine runs one position and writes its output line.
func (r *Runner) solveLine(ctx context.Context, moves string, pos board.Position) (int, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	if r.Analyze {
		results, err := r.Engine.AnalyzePosition(ctx, pos, r.Weak)
		if err != nil {
			return 0, err
		}
		_, err = fmt.Fprintf(r.Out, "%s %s\n", moves, FormatScores(results))
		return 0, err
	}

	score, err := r.Engine.SolvePosition(ctx, pos, r.Weak)
	if err != nil {
		return 0, err
	}
	info := r.Engine.LastInfo()
	_, err = fmt.Fprintf(r.Out, "%s %d %d %d\n", moves, score, info.Nodes, info.Elapsed.Microseconds())
	return score, err
}

// FormatScores joins the column scores, "-" standing for full columns.
func FormatScores(results [board.Width]engine.MoveResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		if r.Legal {
			parts[i] = strconv.Itoa(r.Score)
		} else {
			parts[i] = "-"
		}
	}
	return strings.Join(parts, " ")
}

// matches compares a result with an expected exact score; weak results
// only need the same sign.
func matches(got, want int, weak bool) bool {
	if !weak {
		return got == want
	}
	switch {
	case want > 0:
		return got > 0
	case want < 0:
		return got < 0
	}
	return got == 0
}
