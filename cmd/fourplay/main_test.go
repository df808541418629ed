package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/hailam/fourplay/internal/board"
	"github.com/hailam/fourplay/internal/book"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func TestLoadBookMissingFile(t *testing.T) {
	is := is.New(t)
	bk, err := loadBook(filepath.Join(t.TempDir(), "missing.book"))
	is.NoErr(err)
	is.True(bk == nil)
}

func TestLoadBookMalformed(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "bad.book")
	is.NoErr(os.WriteFile(path, []byte{9, 9, 9}, 0644))

	bk, err := loadBook(path)
	is.True(errors.Is(err, book.ErrFormat))
	is.True(bk == nil)
}

func TestLoadBook(t *testing.T) {
	is := is.New(t)
	table, err := book.NewTable(2, 8)
	is.NoErr(err)
	pos := board.NewPosition().Played(3)
	table.Put(pos.Key3(), -1)
	path := filepath.Join(t.TempDir(), "7x6.book")
	is.NoErr(table.Book().Save(path))

	bk, err := loadBook(path)
	is.NoErr(err)
	is.Equal(bk.Depth(), 2)
	score, ok := bk.Probe(pos)
	is.True(ok)
	is.Equal(score, -1)
}
