package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/hailam/fourplay/internal/board"
	"github.com/hailam/fourplay/internal/book"
	"github.com/hailam/fourplay/internal/config"
	"github.com/hailam/fourplay/internal/storage"
)

// progressEvery limits progress logging to one line per this many positions.
const progressEvery = 1000

func main() {
	cfg, err := config.LoadBookBuilder(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level, err := cfg.ZerologLevel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("book-build-failed")
	}
}

func run(cfg *config.BookBuilder) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if prev, err := store.LoadBuildInfo(); err != nil {
		return err
	} else if prev != nil {
		log.Info().
			Int("depth", prev.Depth).
			Str("digest", prev.Digest).
			Time("built-at", prev.BuiltAt).
			Msg("previous-build")
	}

	b := &book.Builder{
		Root:      board.NewPosition(),
		Depth:     cfg.Depth,
		Log2:      cfg.Log2,
		Workers:   cfg.Workers,
		TableLog2: cfg.TableLog2,
		OnProgress: func(p book.Progress) {
			if p.Done%progressEvery == 0 || p.Done == p.Total {
				log.Info().Int("done", p.Done).Int("total", p.Total).Int("cached", p.Cached).Msg("book-progress")
			}
		},
	}
	if !cfg.Fresh {
		cp := store.Checkpoint(storage.SolvedNamespace())
		if n, err := cp.Count(); err == nil {
			log.Info().Int("scores", n).Msg("checkpoint-found")
		}
		b.Checkpoint = cp
	}

	start := time.Now()
	table, err := b.Build(ctx)
	if err != nil {
		return err
	}
	bk := table.Book()
	if err := bk.Save(cfg.Out); err != nil {
		return err
	}

	info := &storage.BuildInfo{
		Depth:     cfg.Depth,
		Log2:      cfg.Log2,
		Positions: bk.Entries(),
		Digest:    bk.Digest(),
		Path:      cfg.Out,
		Elapsed:   time.Since(start),
	}
	if err := store.SaveBuildInfo(info); err != nil {
		return err
	}
	log.Info().Str("path", cfg.Out).Int("entries", bk.Entries()).Msg("book-saved")
	fmt.Println(bk.Digest())
	return nil
}
