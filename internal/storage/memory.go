package storage

import (
	"sync"
)

// MemoryStore implements Table as a bounded in-memory list.
// Updates replace the backing slice via UpsertByKey, so a slice returned by
// List is never mutated afterwards.
type MemoryStore struct {
	mu      sync.RWMutex
	rows    []Row
	maxRows int
	seq     int64
}

// NewMemoryStore creates a store holding at most maxRows rows.
// maxRows <= 0 means unbounded.
func NewMemoryStore(maxRows int) *MemoryStore {
	return &MemoryStore{maxRows: maxRows}
}

// Insert appends a row, evicting the oldest when the bound is reached.
func (s *MemoryStore) Insert(row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	row.Seq = s.seq

	rows := s.rows
	if s.maxRows > 0 && len(rows) >= s.maxRows {
		rows = rows[len(rows)-s.maxRows+1:]
	}
	next := make([]Row, len(rows), len(rows)+1)
	copy(next, rows)
	s.rows = append(next, row)
	return nil
}

// Update merges u into the row with key. A missing key is a no-op.
func (s *MemoryStore) Update(key string, u RowUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if IndexOfKey(s.rows, key) < 0 {
		return false, nil
	}
	s.rows = UpsertByKey(s.rows, key, u)
	return true, nil
}

// GetByKey returns a copy of the row or nil.
func (s *MemoryStore) GetByKey(key string) (*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := IndexOfKey(s.rows, key)
	if i < 0 {
		return nil, nil
	}
	row := s.rows[i]
	return &row, nil
}

// List returns the rows in insertion order.
func (s *MemoryStore) List() ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func (s *MemoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
