// Package store holds the working set of purchase records that every view
// reads from. All mutation goes through Create, Update, Delete and ReplaceAll.
package store

import (
	"errors"
	"fmt"
	"sync"

	"gestao/internal/core"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("duplicate record id")
)

// Store is safe for concurrent use. Records are kept in creation order.
type Store struct {
	mu      sync.RWMutex
	records []core.PurchaseRecord
	index   map[string]int
}

func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Create appends rec to the working set.
func (s *Store) Create(rec core.PurchaseRecord) error {
	if rec.ID == "" {
		return core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[rec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// Update replaces the record with the same id, keeping its position.
func (s *Store) Update(rec core.PurchaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[rec.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	s.records[i] = rec
	return nil
}

// Delete removes the record with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.reindex()
	return nil
}

// ReplaceAll swaps the whole working set. The previous set is kept when recs
// contains duplicate ids.
func (s *Store) ReplaceAll(recs []core.PurchaseRecord) error {
	index := make(map[string]int, len(recs))
	for i, r := range recs {
		if _, exists := index[r.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		index[r.ID] = i
	}
	cp := append([]core.PurchaseRecord(nil), recs...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cp
	s.index = index
	return nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (core.PurchaseRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return core.PurchaseRecord{}, false
	}
	return s.records[i], true
}

// List returns a copy of the working set.
func (s *Store) List() []core.PurchaseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.PurchaseRecord(nil), s.records...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Summary aggregates the current working set.
func (s *Store) Summary() core.Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Aggregate(s.records)
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}
