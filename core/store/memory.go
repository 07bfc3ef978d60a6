package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/kilianp07/ambudispatch/core/model"
)

// MemoryStore keeps rows in process. Ids are sequential per table.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[Table]map[string]Record
	nextID map[Table]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: map[Table]map[string]Record{}, nextID: map[Table]int{}}
}

// Seed inserts rows as-is, keeping their ids. Rows without an id get one.
func (s *MemoryStore) Seed(t Table, rows ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		rec := copyRecord(r)
		id := toString(rec[FieldID])
		if id == "" {
			id = s.allocID(t)
		} else if n, err := strconv.Atoi(id); err == nil && n > s.nextID[t] {
			s.nextID[t] = n
		}
		rec[FieldID] = id
		s.table(t)[id] = rec
	}
}

func (s *MemoryStore) Fetch(_ context.Context, t Table) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.tables[t]
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, copyRecord(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return model.CompareIDs(toString(out[i][FieldID]), toString(out[j][FieldID])) < 0
	})
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, t Table, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := copyRecord(fields)
	id := s.allocID(t)
	rec[FieldID] = id
	s.table(t)[id] = rec
	return copyRecord(rec), nil
}

func (s *MemoryStore) Update(_ context.Context, t Table, id string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.table(t)[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", t, id, ErrRecordNotFound)
	}
	for k, v := range fields {
		if k == FieldID {
			continue
		}
		rec[k] = v
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) table(t Table) map[string]Record {
	m, ok := s.tables[t]
	if !ok {
		m = map[string]Record{}
		s.tables[t] = m
	}
	return m
}

func (s *MemoryStore) allocID(t Table) string {
	s.nextID[t]++
	return strconv.Itoa(s.nextID[t])
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
