package device

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	logs    []SpamEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[fingerprint]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Update(_ context.Context, fingerprint string, fn UpdateFunc) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, found := s.records[fingerprint]
	next, entry, write := fn(cur, found)
	if !write {
		return cur, nil
	}
	next.Fingerprint = fingerprint
	s.records[fingerprint] = next
	if entry != nil {
		e := *entry
		e.Fingerprint = fingerprint
		s.logs = append(s.logs, e)
	}
	return next, nil
}

// Logs returns a copy of every spam entry written so far.
func (s *MemoryStore) Logs() []SpamEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpamEntry(nil), s.logs...)
}
