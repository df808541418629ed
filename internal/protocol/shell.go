package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/hailam/fourplay/internal/board"
	"github.com/hailam/fourplay/internal/book"
	"github.com/hailam/fourplay/internal/engine"
)

// ErrUnknownCommand is returned by Execute for commands the shell lacks.
var ErrUnknownCommand = errors.New("unknown command")

const helpText = `commands:
  new                 clear the board
  play <digits>       play 1-based columns, e.g. play 4453
  undo [n]            take back n moves (default 1)
  show                print the board
  solve [weak]        score the position
  analyze [weak]      score every column
  random <n>          set up a random game of n moves
  stats               table and book statistics
  help                this text
  quit                leave the shell`

// Shell is an interactive session around one game.
type Shell struct {
	eng   *engine.Engine
	book  *book.Book
	out   io.Writer
	moves []int
	pos   board.Position
}

// NewShell creates a shell writing to out. bk may be nil.
func NewShell(eng *engine.Engine, bk *book.Book, out io.Writer) *Shell {
	return &Shell{eng: eng, book: bk, out: out}
}

// Position returns the current board.
func (s *Shell) Position() board.Position {
	return s.pos
}

// Execute runs one command line. quit is set when the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) (quit bool, err error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		s.println(helpText)
	case "new":
		s.setMoves(nil)
		s.show()
	case "play":
		if len(args) != 1 {
			return false, errors.New("usage: play <digits>")
		}
		return false, s.play(args[0])
	case "undo":
		return false, s.undo(args)
	case "show":
		s.show()
	case "solve":
		return false, s.solve(ctx, isWeak(args))
	case "analyze":
		return false, s.analyze(ctx, isWeak(args))
	case "random":
		if len(args) != 1 {
			return false, errors.New("usage: random <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n > board.Area {
			return false, fmt.Errorf("random: bad move count %q", args[0])
		}
		s.setMoves(board.RandomMoves(n))
		s.show()
	case "stats":
		s.stats()
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	return false, nil
}

func isWeak(args []string) bool {
	return lo.Contains(args, "weak")
}

func (s *Shell) setMoves(moves []int) {
	pos, err := board.FromMoves(moves)
	if err != nil {
		// moves always come from a validated sequence
		panic(err)
	}
	s.moves = moves
	s.pos = pos
}

func (s *Shell) play(digits string) error {
	seq := board.FormatMoves(s.moves) + digits
	if s.pos.IsDecided() {
		return board.ErrGameOver
	}
	if _, err := board.ParseMoves(seq); err != nil {
		return err
	}
	moves, err := board.ParseColumns(seq)
	if err != nil {
		return err
	}
	s.setMoves(moves)
	s.show()
	return nil
}

func (s *Shell) undo(args []string) error {
	n := 1
	if len(args) > 0 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n < 0 {
			return fmt.Errorf("undo: bad move count %q", args[0])
		}
	}
	n = min(n, len(s.moves))
	s.setMoves(s.moves[:len(s.moves)-n])
	s.show()
	return nil
}

func (s *Shell) show() {
	s.println(s.pos.String())
	s.printf("moves: %s\n", board.FormatMoves(s.moves))
	switch {
	case s.pos.IsDecided():
		s.printf("%s has won\n", player(s.pos.Moves()-1))
	case s.pos.Moves() == board.Area:
		s.println("draw")
	default:
		s.printf("%s to move\n", player(s.pos.Moves()))
	}
}

func player(moves int) string {
	if moves%2 == 0 {
		return "X"
	}
	return "O"
}

func (s *Shell) solve(ctx context.Context, weak bool) error {
	if s.pos.IsDecided() {
		return board.ErrGameOver
	}
	score, err := s.eng.SolvePosition(ctx, s.pos, weak)
	if err != nil {
		return err
	}
	info := s.eng.LastInfo()
	s.printf("score %d: %s for %s (%d nodes, %v)\n",
		score, engine.DescribeScore(score, weak), player(s.pos.Moves()), info.Nodes, info.Elapsed)
	return nil
}

func (s *Shell) analyze(ctx context.Context, weak bool) error {
	if s.pos.IsDecided() {
		return board.ErrGameOver
	}
	results, err := s.eng.AnalyzePosition(ctx, s.pos, weak)
	if err != nil {
		return err
	}
	s.println(" " + strings.Join(lo.Map(results[:], func(r engine.MoveResult, _ int) string {
		return fmt.Sprintf("%4d", r.Column+1)
	}), ""))
	s.println(" " + strings.Join(lo.Map(results[:], func(r engine.MoveResult, _ int) string {
		if !r.Legal {
			return "   -"
		}
		return fmt.Sprintf("%4d", r.Score)
	}), ""))

	best := lo.Map(engine.BestMoves(results), func(col int, _ int) string {
		return strconv.Itoa(col + 1)
	})
	if len(best) > 0 {
		s.printf("best: %s\n", strings.Join(best, ", "))
	}
	s.printf("%d nodes, %v\n", s.eng.LastInfo().Nodes, s.eng.LastInfo().Elapsed)
	return nil
}

func (s *Shell) stats() {
	st := s.eng.TableStats()
	s.printf("table: %d slots, %d probes, %d hits, %d stores\n", s.eng.TableSize(), st.Probes, st.Hits, st.Stores)
	if s.book == nil {
		s.println("book: none")
		return
	}
	s.printf("book: depth %d, %d/%d slots filled, digest %s\n",
		s.book.Depth(), s.book.Entries(), s.book.Size(), s.book.Digest())
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) println(msg string) {
	io.WriteString(s.out, msg)
	io.WriteString(s.out, "\n")
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// Loop reads commands from the terminal until quit, EOF or an interrupt on
// an empty line.
func (s *Shell) Loop(ctx context.Context) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[33mfourplay>\033[0m ",
		HistoryFile:     filepath.Join(os.TempDir(), "fourplay.history"),
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("new"),
			readline.PcItem("play"),
			readline.PcItem("undo"),
			readline.PcItem("show"),
			readline.PcItem("solve", readline.PcItem("weak")),
			readline.PcItem("analyze", readline.PcItem("weak")),
			readline.PcItem("random"),
			readline.PcItem("stats"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return err
	}
	defer l.Close()
	s.out = l.Stdout()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		quit, err := s.Execute(ctx, strings.TrimSpace(line))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.printf("error: %v\n", err)
			continue
		}
		if quit {
			break
		}
	}
	log.Debug().Msg("shell-exit")
	return nil
}
