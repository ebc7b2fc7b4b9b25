package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		state, err := classify(entry.record, fingerprint)
		return state, entry.record, err
	}
	record := Record{Fingerprint: fingerprint, CreatedAt: now.UTC()}
	s.entries[key] = memoryEntry{record: record, expiresAt: now.Add(ttl)}
	return StateNew, record, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key string, record Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Completed = true
	start := record.CreatedAt
	if start.IsZero() {
		start = time.Now()
	}
	s.entries[key] = memoryEntry{record: record, expiresAt: start.Add(ttl)}
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.record.Fingerprint == fingerprint && !entry.record.Completed {
		delete(s.entries, key)
	}
	return nil
}
