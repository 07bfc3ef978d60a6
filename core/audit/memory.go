package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []LogRecord
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, rec LogRecord) error {
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q LogQuery) ([]LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []LogRecord
	for _, r := range s.recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return limit(res, q.Limit), nil
}

func (s *MemoryStore) Close() error { return nil }
