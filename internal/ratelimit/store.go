package ratelimit

import (
	"strings"
	"sync"
)

// RecordStore is the injectable backing store for admission records.
// Keys are "clientKey:category" composites built with recordKey.
//
// Implementations do not need to make read-modify-write atomic; the
// engine serializes updates per client. Swapping in a shared store
// (Redis) therefore gives approximate enforcement across instances, a
// documented limitation for multi-instance deployments.
type RecordStore interface {
	// Get returns the record for key, or nil when absent.
	Get(key string) (*Record, error)
	Set(key string, rec *Record) error
	Delete(key string) error
	// ForEach visits every record until fn returns false. Records passed
	// to fn are copies; mutating them has no effect on the store.
	ForEach(fn func(key string, rec Record) bool) error
}

const keySep = ":"

func recordKey(clientKey, category string) string {
	return clientKey + keySep + category
}

// splitRecordKey returns the clientKey and category halves of a
// composite key. Client keys are fixed-length hex, so the first
// separator is unambiguous.
func splitRecordKey(key string) (clientKey, category string) {
	if i := strings.Index(key, keySep); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

// MemoryStore is the default in-process RecordStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Set(key string, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = *rec
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

func (s *MemoryStore) ForEach(fn func(key string, rec Record) bool) error {
	// Snapshot under the read lock so fn can call back into the store
	// (eviction deletes) without deadlocking.
	s.mu.RLock()
	snapshot := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			break
		}
	}
	return nil
}
