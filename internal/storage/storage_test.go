package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckpointSaveLookup(t *testing.T) {
	is := is.New(t)
	s := openStore(t)
	cp := s.Checkpoint(SolvedNamespace())

	_, ok, err := cp.Lookup(42)
	is.NoErr(err)
	is.True(!ok)

	is.NoErr(cp.Save(42, -18))
	is.NoErr(cp.Save(7, 18))
	is.NoErr(cp.Save(1<<40, 0))

	score, ok, err := cp.Lookup(42)
	is.NoErr(err)
	is.True(ok)
	is.Equal(score, -18)

	score, ok, err = cp.Lookup(1 << 40)
	is.NoErr(err)
	is.True(ok)
	is.Equal(score, 0)

	n, err := cp.Count()
	is.NoErr(err)
	is.Equal(n, 3)
}

func TestCheckpointNamespaces(t *testing.T) {
	is := is.New(t)
	s := openStore(t)
	a := s.Checkpoint("a/")
	b := s.Checkpoint("b/")

	is.NoErr(a.Save(1, 5))
	_, ok, err := b.Lookup(1)
	is.NoErr(err)
	is.True(!ok)

	n, err := b.Count()
	is.NoErr(err)
	is.Equal(n, 0)
}

func TestCheckpointRange(t *testing.T) {
	is := is.New(t)
	s := openStore(t)
	cp := s.Checkpoint(SolvedNamespace())
	want := map[uint64]int{3: 1, 300: -2, 70000: 9}
	for k, v := range want {
		is.NoErr(cp.Save(k, v))
	}

	var keys []uint64
	got := make(map[uint64]int)
	is.NoErr(cp.Range(func(key3 uint64, score int) error {
		keys = append(keys, key3)
		got[key3] = score
		return nil
	}))
	is.Equal(got, want)
	is.Equal(keys, []uint64{3, 300, 70000})

	stop := errors.New("stop")
	calls := 0
	err := cp.Range(func(uint64, int) error {
		calls++
		return stop
	})
	is.True(errors.Is(err, stop))
	is.Equal(calls, 1)
}

func TestCheckpointRejectsBadValues(t *testing.T) {
	is := is.New(t)
	s := openStore(t)
	cp := s.Checkpoint(SolvedNamespace())
	is.NoErr(cp.Save(5, 2))
	is.NoErr(s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cp.key(9), nil)
	}))

	_, ok, err := cp.Lookup(9)
	is.True(err != nil)
	is.True(!ok)

	score, ok, err := cp.Lookup(5)
	is.NoErr(err)
	is.True(ok)
	is.Equal(score, 2)

	var seen []uint64
	err = cp.Range(func(key3 uint64, _ int) error {
		seen = append(seen, key3)
		return nil
	})
	is.True(err != nil)
	is.Equal(seen, []uint64{5})
}

func TestCheckpointPersists(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	s, err := Open(dir)
	is.NoErr(err)
	is.NoErr(s.Checkpoint(SolvedNamespace()).Save(11, 4))
	is.NoErr(s.Close())

	s, err = Open(dir)
	is.NoErr(err)
	defer s.Close()
	score, ok, err := s.Checkpoint(SolvedNamespace()).Lookup(11)
	is.NoErr(err)
	is.True(ok)
	is.Equal(score, 4)
}

func TestBuildInfo(t *testing.T) {
	is := is.New(t)
	s := openStore(t)

	info, err := s.LoadBuildInfo()
	is.NoErr(err)
	is.True(info == nil)

	is.NoErr(s.SaveBuildInfo(&BuildInfo{Depth: 8, Log2: 20, Positions: 1234, Digest: "00ff"}))
	info, err = s.LoadBuildInfo()
	is.NoErr(err)
	is.Equal(info.Depth, 8)
	is.Equal(info.Positions, 1234)
	is.Equal(info.Digest, "00ff")
	is.True(!info.BuiltAt.IsZero())
}

func TestSolvedNamespace(t *testing.T) {
	is := is.New(t)
	is.Equal(SolvedNamespace(), "solved/7x6/")
}

func TestDataPaths(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG layout only")
	}
	is := is.New(t)
	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", base)

	dataDir, err := DataDir()
	is.NoErr(err)
	is.Equal(dataDir, filepath.Join(base, "fourplay"))

	dbDir, err := DatabaseDir()
	is.NoErr(err)
	_, err = os.Stat(dbDir)
	is.NoErr(err)

	bookPath, err := DefaultBookPath()
	is.NoErr(err)
	is.Equal(bookPath, filepath.Join(base, "fourplay", "7x6.book"))
}

func TestDataHomeFallsBackToHome(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG layout only")
	}
	is := is.New(t)
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)

	dir, err := dataHome()
	is.NoErr(err)
	is.Equal(dir, filepath.Join(home, ".local", "share"))
}
