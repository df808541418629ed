package book

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/hailam/fourplay/internal/board"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func mustPosition(t *testing.T, cols ...int) board.Position {
	t.Helper()
	pos, err := board.FromMoves(cols)
	if err != nil {
		t.Fatalf("FromMoves(%v): %v", cols, err)
	}
	return pos
}

func encoded(t *testing.T, b *Book) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestTableRoundTrip(t *testing.T) {
	is := is.New(t)

	table, err := NewTable(4, 10)
	is.NoErr(err)

	positions := map[string]board.Position{
		"empty": board.NewPosition(),
		"3":     mustPosition(t, 3),
		"2 4":   mustPosition(t, 2, 4),
		"0 0 1": mustPosition(t, 0, 0, 1),
	}
	scores := map[string]int{"empty": 1, "3": -1, "2 4": board.MaxScore, "0 0 1": board.MinScore}
	for name, pos := range positions {
		table.Put(pos.Key3(), scores[name])
	}
	built := table.Book()
	is.Equal(built.Entries(), 4)

	data := encoded(t, built)
	is.Equal(len(data), headerSize+int(built.Size())*3)
	is.Equal(data[:headerSize], []byte{board.Width, board.Height, 4, 2, 1, 10})

	loaded, err := LoadReader(bytes.NewReader(data))
	is.NoErr(err)
	is.Equal(loaded.Depth(), 4)
	is.Equal(loaded.Size(), uint64(1031))
	is.Equal(loaded.Digest(), built.Digest())
	for name, pos := range positions {
		score, ok := loaded.Probe(pos)
		is.True(ok)
		is.Equal(score, scores[name])
	}

	_, ok := loaded.Probe(mustPosition(t, 1, 1))
	is.True(!ok)
}

func TestLoadFile(t *testing.T) {
	is := is.New(t)

	table, err := NewTable(2, 8)
	is.NoErr(err)
	table.Put(mustPosition(t, 3, 3).Key3(), 2)

	path := filepath.Join(t.TempDir(), "7x6.book")
	is.NoErr(table.Book().Save(path))

	b, err := Load(path)
	is.NoErr(err)
	score, ok := b.Probe(mustPosition(t, 3, 3))
	is.True(ok)
	is.Equal(score, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.book"))
	is.True(errors.Is(err, os.ErrNotExist))
}

func TestLoadRejectsMalformed(t *testing.T) {
	table, err := NewTable(3, 4)
	if err != nil {
		t.Fatal(err)
	}
	good := encoded(t, table.Book())

	cases := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func([]byte) []byte { return nil }},
		{"short header", func(b []byte) []byte { return b[:3] }},
		{"width", func(b []byte) []byte { b[0] = 8; return b }},
		{"height", func(b []byte) []byte { b[1] = 7; return b }},
		{"depth", func(b []byte) []byte { b[2] = board.Area + 1; return b }},
		{"key size", func(b []byte) []byte { b[3] = 4; return b }},
		{"value size", func(b []byte) []byte { b[4] = 2; return b }},
		{"log2 zero", func(b []byte) []byte { b[5] = 0; return b }},
		{"log2 large", func(b []byte) []byte { b[5] = MaxLog2 + 1; return b }},
		{"truncated keys", func(b []byte) []byte { return b[:headerSize+5] }},
		{"truncated values", func(b []byte) []byte { return b[:len(b)-1] }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			data := tc.mutate(bytes.Clone(good))
			b, err := LoadReader(bytes.NewReader(data))
			is.True(errors.Is(err, ErrFormat))
			is.True(b == nil)
		})
	}
}

func TestProbeDepth(t *testing.T) {
	is := is.New(t)

	table, err := NewTable(2, 8)
	is.NoErr(err)
	deep := mustPosition(t, 3, 3, 3)
	table.Put(deep.Key3(), 5)

	_, ok := table.Book().Probe(deep)
	is.True(!ok)
}

func TestProbeMirror(t *testing.T) {
	is := is.New(t)

	table, err := NewTable(4, 8)
	is.NoErr(err)
	pos := mustPosition(t, 0, 1, 1)
	table.Put(pos.Key3(), -4)

	score, ok := table.Book().Probe(pos.Mirror())
	is.True(ok)
	is.Equal(score, -4)
}

func TestNilBook(t *testing.T) {
	is := is.New(t)

	var b *Book
	_, ok := b.Probe(board.NewPosition())
	is.True(!ok)
	is.Equal(b.Depth(), -1)
	is.Equal(b.Size(), uint64(0))
	is.Equal(b.Entries(), 0)
	is.Equal(b.Digest(), "")
}

func TestNewTableRange(t *testing.T) {
	is := is.New(t)

	_, err := NewTable(-1, 8)
	is.True(err != nil)
	_, err = NewTable(board.Area+1, 8)
	is.True(err != nil)
	_, err = NewTable(8, 0)
	is.True(err != nil)
	_, err = NewTable(8, MaxLog2+1)
	is.True(err != nil)
}
