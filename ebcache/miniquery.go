// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebcache

import (
	"sort"
	"sync"

	"github.com/callmiy/ebnis-fe/ebnis"
)

// MiniQuery caches the "get experiences" list query: experience summaries
// in display order. The reconcilers keep it in sync through replace-by-id
// and float-to-top maps instead of a full re-fetch.
type MiniQuery struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*ebnis.Experience
}

// NewMiniQuery returns an empty list cache.
func NewMiniQuery() *MiniQuery {
	return &MiniQuery{byID: make(map[string]*ebnis.Experience)}
}

// Insert appends an experience to the list, replacing in place when the id
// is already present.
func (q *MiniQuery) Insert(exp *ebnis.Experience) {
	if exp == nil || exp.ID == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[exp.ID]; !ok {
		q.order = append(q.order, exp.ID)
	}
	q.byID[exp.ID] = exp
}

// Replace substitutes list positions keyed by their current (possibly
// offline) id with replacement experiences that may carry a new server id.
// An unknown key appends instead of dropping the replacement.
func (q *MiniQuery) Replace(byOldID map[string]*ebnis.Experience) {
	if len(byOldID) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, oldID := range sortedKeys(byOldID) {
		exp := byOldID[oldID]
		if exp == nil || exp.ID == "" {
			continue
		}
		replaced := false
		for i, id := range q.order {
			if id == oldID {
				q.order[i] = exp.ID
				replaced = true
				break
			}
		}
		delete(q.byID, oldID)
		if !replaced {
			q.order = append(q.order, exp.ID)
		}
		q.byID[exp.ID] = exp
	}
}

// FloatToTop moves every listed experience to the head of the list,
// substituting the replacement summary. Experiences not yet listed are
// inserted at the head.
func (q *MiniQuery) FloatToTop(byID map[string]*ebnis.Experience) {
	if len(byID) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range sortedKeys(byID) {
		exp := byID[id]
		if exp == nil {
			continue
		}
		order := make([]string, 0, len(q.order)+1)
		order = append(order, id)
		for _, existing := range q.order {
			if existing != id {
				order = append(order, existing)
			}
		}
		q.order = order
		q.byID[id] = exp
	}
}

// Remove drops the listed ids.
func (q *MiniQuery) Remove(ids ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(q.byID, id)
	}
	order := q.order[:0]
	for _, id := range q.order {
		if !drop[id] {
			order = append(order, id)
		}
	}
	q.order = order
}

// Get returns the cached summary for id, or nil.
func (q *MiniQuery) Get(id string) *ebnis.Experience {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.byID[id]
}

// List returns the summaries in display order.
func (q *MiniQuery) List() []*ebnis.Experience {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*ebnis.Experience, 0, len(q.order))
	for _, id := range q.order {
		if exp, ok := q.byID[id]; ok {
			out = append(out, exp)
		}
	}
	return out
}

func sortedKeys(m map[string]*ebnis.Experience) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
