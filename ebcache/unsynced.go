// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebcache

import (
	"sort"
	"sync"

	"github.com/callmiy/ebnis-fe/ebnis"
)

// Ledger is the unsynced-changes side table, keyed by experience id. There
// is no partial-merge operation: reconcilers compute the complete next
// ledger entry and replace it, because pruning must reason about still-
// failing and newly-introduced changes at once. Presence of an id is the
// "needs sync" predicate, so an entry that becomes empty is removed, never
// written back empty.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*ebnis.UnsyncedModifiedExperience
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*ebnis.UnsyncedModifiedExperience)}
}

// Get returns a deep copy of the ledger entry for experienceID, or nil.
// Callers prune the copy and write it back; the stored entry is never
// mutated through the returned value.
func (l *Ledger) Get(experienceID string) *ebnis.UnsyncedModifiedExperience {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[experienceID].Clone()
}

// Write replaces the ledger entry for experienceID. Writing an empty entry
// is a caller bug; Remove is the operation for that state.
func (l *Ledger) Write(experienceID string, entry *ebnis.UnsyncedModifiedExperience) {
	if entry == nil {
		return
	}
	l.mu.Lock()
	l.entries[experienceID] = entry.Clone()
	l.mu.Unlock()
}

// Remove drops the ledger entry for experienceID.
func (l *Ledger) Remove(experienceID string) {
	l.mu.Lock()
	delete(l.entries, experienceID)
	l.mu.Unlock()
}

// Has reports whether experienceID has pending local edits.
func (l *Ledger) Has(experienceID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[experienceID]
	return ok
}

// IDs returns the experience ids with pending edits, sorted.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	l.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// snapshot copies all entries for the persistor.
func (l *Ledger) snapshot() map[string]*ebnis.UnsyncedModifiedExperience {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]*ebnis.UnsyncedModifiedExperience, len(l.entries))
	for id, entry := range l.entries {
		out[id] = entry.Clone()
	}
	return out
}

// restore replaces the ledger contents wholesale.
func (l *Ledger) restore(entries map[string]*ebnis.UnsyncedModifiedExperience) {
	l.mu.Lock()
	l.entries = make(map[string]*ebnis.UnsyncedModifiedExperience, len(entries))
	for id, entry := range entries {
		if !entry.IsEmpty() {
			l.entries[id] = entry.Clone()
		}
	}
	l.mu.Unlock()
}
