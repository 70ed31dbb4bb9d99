// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

// Package ebcache implements the client-side cache the UI reads: a
// normalized object store keyed "<TypeName>:<id>", the experience fragment
// codec over it, the mini list-query cache, the unsynced-changes ledger and
// the unsaved-entries projection, plus a SQLite snapshot persistor.
package ebcache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Key builds a normalized record key.
func Key(typename, id string) string {
	return typename + ":" + id
}

// SplitKey returns the typename and id halves of a record key.
func SplitKey(key string) (typename, id string) {
	typename, id, _ = strings.Cut(key, ":")
	return typename, id
}

// Store is the normalized object store: one denormalized record per entity
// key. Writes and batched deletes notify invalidation hooks so dependent
// cached queries re-render; deletes are atomic with respect to readers.
type Store struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
	hooks   []func(keys []string)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]json.RawMessage)}
}

// OnInvalidate registers a hook invoked with the keys of every write or
// delete batch. Hooks run outside the store lock.
func (s *Store) OnInvalidate(fn func(keys []string)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Read returns the raw record for (typename, id), or false if absent.
func (s *Store) Read(typename, id string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.records[Key(typename, id)]
	return raw, ok
}

// ReadInto unmarshals the record for (typename, id) into out. It returns
// false without touching out when the record is absent.
func (s *Store) ReadInto(typename, id string, out any) (bool, error) {
	raw, ok := s.Read(typename, id)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode record %s: %w", Key(typename, id), err)
	}
	return true, nil
}

// Write serializes record under (typename, id), replacing any previous
// version, and invalidates dependents.
func (s *Store) Write(typename, id string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", Key(typename, id), err)
	}
	s.WriteRaw(Key(typename, id), raw)
	return nil
}

// WriteRaw stores an already-serialized record.
func (s *Store) WriteRaw(key string, raw json.RawMessage) {
	s.mu.Lock()
	s.records[key] = raw
	hooks := s.hooks
	s.mu.Unlock()
	for _, fn := range hooks {
		fn([]string{key})
	}
}

// Delete removes every listed key in one pass. No reader observes a partial
// delete set.
func (s *Store) Delete(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.mu.Lock()
	for _, key := range keys {
		delete(s.records, key)
	}
	hooks := s.hooks
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(keys)
	}
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Keys returns all record keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// snapshot copies all records for the persistor.
func (s *Store) snapshot() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.records))
	for k, v := range s.records {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// restore replaces the store contents wholesale.
func (s *Store) restore(records map[string]json.RawMessage) {
	s.mu.Lock()
	s.records = make(map[string]json.RawMessage, len(records))
	for k, v := range records {
		s.records[k] = append(json.RawMessage(nil), v...)
	}
	s.mu.Unlock()
}
