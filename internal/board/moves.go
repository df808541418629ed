package board

type sortEntry struct {
	col   int
	score int
}

// MoveSorter keeps up to Width columns ordered by descending score. Equal
// scores keep insertion order, so adding columns in ColumnOrder breaks ties
// toward the center.
type MoveSorter struct {
	entries [Width]sortEntry
	size    int
}

// Add inserts a column with its ordering score.
func (s *MoveSorter) Add(col, score int) {
	pos := s.size
	s.size++
	for ; pos > 0 && s.entries[pos-1].score < score; pos-- {
		s.entries[pos] = s.entries[pos-1]
	}
	s.entries[pos] = sortEntry{col: col, score: score}
}

// Len returns the number of columns added.
func (s *MoveSorter) Len() int {
	return s.size
}

// Column returns the i-th best column.
func (s *MoveSorter) Column(i int) int {
	return s.entries[i].col
}

// Reset empties the sorter.
func (s *MoveSorter) Reset() {
	s.size = 0
}
