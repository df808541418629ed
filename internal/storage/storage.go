package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/fourplay/internal/board"
	"github.com/hailam/fourplay/internal/book"
)

// Storage keys
const (
	keyBuildInfo = "build_info"
	solvedPrefix = "solved/"
)

// BuildInfo describes the last opening book generated with this database.
type BuildInfo struct {
	Depth     int           `json:"depth"`
	Log2      int           `json:"log2"`
	Positions int           `json:"positions"`
	Digest    string        `json:"digest"`
	Path      string        `json:"path"`
	Elapsed   time.Duration `json:"elapsed"`
	BuiltAt   time.Time     `json:"built_at"`
}

// Store wraps BadgerDB for persistent storage.
type Store struct {
	db *badger.DB
}

// Open opens or creates the database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = badgerLogger{log.Logger.Level(zerolog.WarnLevel)}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveBuildInfo records the last book build.
func (s *Store) SaveBuildInfo(info *BuildInfo) error {
	info.BuiltAt = time.Now()

	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyBuildInfo), data)
	})
}

// LoadBuildInfo returns the last book build, or nil if none was recorded.
func (s *Store) LoadBuildInfo() (*BuildInfo, error) {
	var info *BuildInfo

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyBuildInfo))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			info = &BuildInfo{}
			return json.Unmarshal(val, info)
		})
	})

	return info, err
}

// SolvedNamespace is the checkpoint namespace for exact scores on the
// standard board. Scores do not depend on book parameters, so every build
// shares it.
func SolvedNamespace() string {
	return fmt.Sprintf("%s%dx%d/", solvedPrefix, board.Width, board.Height)
}

// Checkpoint returns a view of the scores stored under namespace ns.
func (s *Store) Checkpoint(ns string) *Checkpoint {
	return &Checkpoint{db: s.db, prefix: []byte(ns)}
}

var _ book.Checkpoint = (*Checkpoint)(nil)

// Checkpoint stores Key3 → score pairs under a key prefix. It is safe for
// concurrent use.
type Checkpoint struct {
	db     *badger.DB
	prefix []byte
}

func (c *Checkpoint) key(key3 uint64) []byte {
	k := make([]byte, len(c.prefix), len(c.prefix)+8)
	copy(k, c.prefix)
	return binary.BigEndian.AppendUint64(k, key3)
}

// Lookup returns the stored score for key3.
func (c *Checkpoint) Lookup(key3 uint64) (int, bool, error) {
	var (
		score int
		found bool
	)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(key3))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			score, err = decodeScore(key3, val)
			found = err == nil
			return err
		})
	})
	return score, found, err
}

// Save stores the score for key3.
func (c *Checkpoint) Save(key3 uint64, score int) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.key(key3), []byte{byte(int8(score))})
	})
}

func decodeScore(key3 uint64, val []byte) (int, error) {
	if len(val) != 1 {
		return 0, fmt.Errorf("checkpoint value for %d has %d bytes", key3, len(val))
	}
	return int(int8(val[0])), nil
}

// Range calls fn for every stored pair in key order. Iteration stops at the
// first error fn returns.
func (c *Checkpoint) Range(fn func(key3 uint64, score int) error) error {
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key3 := binary.BigEndian.Uint64(item.Key()[len(c.prefix):])
			err := item.Value(func(val []byte) error {
				score, err := decodeScore(key3, val)
				if err != nil {
					return err
				}
				return fn(key3, score)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored pairs.
func (c *Checkpoint) Count() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// badgerLogger routes badger's log output to zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error().Msgf(format, args...)
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn().Msgf(format, args...)
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Info().Msgf(format, args...)
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug().Msgf(format, args...)
}
