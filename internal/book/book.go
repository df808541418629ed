package book

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/hailam/fourplay/internal/board"
	"github.com/hailam/fourplay/internal/engine"
)

// ErrFormat is returned when a book file does not match the board or the
// expected layout.
var ErrFormat = errors.New("malformed opening book")

// Book file layout: a 6-byte header (width, height, depth, key size, value
// size, log2), then size little-endian 16-bit partial keys, then size value
// bytes. size is engine.NextPrime(1 << log2).
const (
	headerSize = 6
	keySize    = 2
	valueSize  = 1
	MaxLog2    = 27
)

// valueOffset maps MinScore to 1; a zero value marks an empty slot.
const valueOffset = 1 - board.MinScore

// Book is an immutable table of exact scores for early positions. Positions
// are keyed by Key3, so mirror images share an entry. A Book may be shared
// by any number of solvers.
type Book struct {
	depth  int
	log2   int
	size   uint64
	keys   []uint16
	values []uint8
	digest uint64
}

// Load reads a book file.
func Load(filename string) (*Book, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadReader(file)
}

// LoadReader reads a book from r. The digest covers every byte read.
func LoadReader(r io.Reader) (*Book, error) {
	h := xxhash.New()
	r = io.TeeReader(r, h)

	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	width, height, depth := int(header[0]), int(header[1]), int(header[2])
	switch {
	case width != board.Width || height != board.Height:
		return nil, fmt.Errorf("%w: board is %dx%d, want %dx%d", ErrFormat, width, height, board.Width, board.Height)
	case depth > board.Area:
		return nil, fmt.Errorf("%w: depth %d", ErrFormat, depth)
	case header[3] != keySize:
		return nil, fmt.Errorf("%w: key size %d", ErrFormat, header[3])
	case header[4] != valueSize:
		return nil, fmt.Errorf("%w: value size %d", ErrFormat, header[4])
	case header[5] < 1 || header[5] > MaxLog2:
		return nil, fmt.Errorf("%w: log2 %d", ErrFormat, header[5])
	}

	b := newBook(depth, int(header[5]))
	raw := make([]byte, b.size*keySize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: keys: %v", ErrFormat, err)
	}
	for i := range b.keys {
		b.keys[i] = binary.LittleEndian.Uint16(raw[i*keySize:])
	}
	if _, err := io.ReadFull(r, b.values); err != nil {
		return nil, fmt.Errorf("%w: values: %v", ErrFormat, err)
	}
	b.digest = h.Sum64()
	return b, nil
}

func newBook(depth, log2 int) *Book {
	size := engine.NextPrime(1 << log2)
	return &Book{
		depth:  depth,
		log2:   log2,
		size:   size,
		keys:   make([]uint16, size),
		values: make([]uint8, size),
	}
}

// Probe returns the exact score of pos if the book holds it. Positions
// deeper than the book always miss. A nil Book never hits.
func (b *Book) Probe(pos board.Position) (int, bool) {
	if b == nil || pos.Moves() > b.depth {
		return 0, false
	}
	key := pos.Key3()
	i := key % b.size
	if b.values[i] == 0 || b.keys[i] != uint16(key) {
		return 0, false
	}
	return int(b.values[i]) - valueOffset, true
}

// Depth returns the largest move count covered.
func (b *Book) Depth() int {
	if b == nil {
		return -1
	}
	return b.depth
}

// Size returns the number of slots.
func (b *Book) Size() uint64 {
	if b == nil {
		return 0
	}
	return b.size
}

// Entries returns the number of filled slots.
func (b *Book) Entries() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, v := range b.values {
		if v != 0 {
			n++
		}
	}
	return n
}

// Digest returns the xxhash of the encoded book in hex.
func (b *Book) Digest() string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("%016x", b.digest)
}

// WriteTo writes the book in the format LoadReader reads.
func (b *Book) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.encode())
	return int64(n), err
}

// Save writes the book to a file.
func (b *Book) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if _, err := b.WriteTo(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (b *Book) encode() []byte {
	buf := make([]byte, 0, headerSize+int(b.size)*(keySize+valueSize))
	buf = append(buf, board.Width, board.Height, byte(b.depth), keySize, valueSize, byte(b.log2))
	for _, k := range b.keys {
		buf = binary.LittleEndian.AppendUint16(buf, k)
	}
	return append(buf, b.values...)
}

// Table is the writable form of a Book, filled by a Builder.
type Table struct {
	b *Book
}

// NewTable creates an empty table covering positions with at most depth
// moves, with engine.NextPrime(1 << log2) slots.
func NewTable(depth, log2 int) (*Table, error) {
	if depth < 0 || depth > board.Area {
		return nil, fmt.Errorf("book depth %d out of range [0, %d]", depth, board.Area)
	}
	if log2 < 1 || log2 > MaxLog2 {
		return nil, fmt.Errorf("book log2 %d out of range [1, %d]", log2, MaxLog2)
	}
	return &Table{b: newBook(depth, log2)}, nil
}

// Put records the exact score of the position with the given Key3. A later
// key landing in the same slot replaces it.
func (t *Table) Put(key3 uint64, score int) {
	i := key3 % t.b.size
	t.b.keys[i] = uint16(key3)
	t.b.values[i] = uint8(score + valueOffset)
}

// Book returns the table as a Book. The table must not be modified afterwards.
func (t *Table) Book() *Book {
	t.b.digest = xxhash.Sum64(t.b.encode())
	return t.b
}

// WriteTo writes the table in book format.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	return t.b.WriteTo(w)
}
