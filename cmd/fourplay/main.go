package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/hailam/fourplay/internal/book"
	"github.com/hailam/fourplay/internal/config"
	"github.com/hailam/fourplay/internal/engine"
	"github.com/hailam/fourplay/internal/protocol"
)

func main() {
	cfg, err := config.LoadSolver(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := setupLogging(cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// before profiling, so a fatal exit cannot leave a truncated profile
	bk, err := loadBook(cfg.BookPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.BookPath).Msg("book-load-failed")
	}
	var prober engine.Prober
	if bk != nil {
		prober = bk
	}

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", cfg.CPUProfile).Msg("cpu-profile-enabled")
	}

	eng := engine.NewEngine(cfg.TableSize(), prober)
	log.Debug().Int("table-log2", cfg.TableSize()).Uint64("slots", eng.TableSize()).Msg("engine-ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Shell {
		if err := protocol.NewShell(eng, bk, os.Stdout).Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("shell")
		}
		return
	}

	var in io.Reader = os.Stdin
	if len(cfg.Args) > 0 {
		in = strings.NewReader(strings.Join(cfg.Args, "\n"))
	}
	runner := &protocol.Runner{
		Engine:  eng,
		Weak:    cfg.Weak,
		Analyze: cfg.Analyze,
		Timeout: cfg.Timeout,
		Out:     os.Stdout,
		Err:     os.Stderr,
	}
	sum, err := runner.Run(ctx, in)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("batch")
	}
	log.Info().
		Int("positions", sum.Positions).
		Int("invalid", sum.Invalid).
		Int("timed-out", sum.TimedOut).
		Int("mismatches", sum.Mismatches).
		Uint64("nodes", sum.Nodes).
		Uint64("table-hits", eng.TableStats().Hits).
		Msg("summary")
}

func setupLogging(l config.Logging) error {
	level, err := l.ZerologLevel()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Debug().Msg("debug-logging-on")
	return nil
}

// loadBook returns a nil book when the file does not exist; the solver then
// works from the empty table.
func loadBook(path string) (*book.Book, error) {
	bk, err := book.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("book-not-found")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("path", path).
		Int("depth", bk.Depth()).
		Int("entries", bk.Entries()).
		Str("digest", bk.Digest()).
		Msg("book-loaded")
	return bk, nil
}
