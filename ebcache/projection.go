// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebcache

import (
	"sync"

	"github.com/callmiy/ebnis-fe/ebnis"
)

// Projection is the derived unsaved-entries count per experience, read by
// UI badges and the upload-retry trigger. Reconcilers always recompute and
// replace the whole list: entries can move between saved and unsaved inside
// one batched response, and per-experience deltas would risk stale counts.
type Projection struct {
	mu   sync.Mutex
	rows []ebnis.SavedAndUnsavedExperience
}

// NewProjection returns an empty projection.
func NewProjection() *Projection {
	return &Projection{}
}

// Write replaces the projection list wholesale.
func (p *Projection) Write(rows []ebnis.SavedAndUnsavedExperience) {
	p.mu.Lock()
	p.rows = append(p.rows[:0:0], rows...)
	p.mu.Unlock()
}

// Rows returns a copy of the projection list.
func (p *Projection) Rows() []ebnis.SavedAndUnsavedExperience {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ebnis.SavedAndUnsavedExperience(nil), p.rows...)
}

// Get returns the row for id and whether it exists.
func (p *Projection) Get(id string) (ebnis.SavedAndUnsavedExperience, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range p.rows {
		if row.ID == id {
			return row, true
		}
	}
	return ebnis.SavedAndUnsavedExperience{}, false
}

// IncrementUnsavedCount bumps the count for id when a new offline entry is
// recorded against it. A row not yet listed seeds at 0 for an offline
// experience (its entries only count once the experience itself saves) and
// at 1 for a server-known one.
func (p *Projection) IncrementUnsavedCount(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.rows {
		if p.rows[i].ID == id {
			p.rows[i].UnsavedEntriesCount++
			return
		}
	}
	count := 1
	if ebnis.IsOfflineID(id) {
		count = 0
	}
	p.rows = append(p.rows, ebnis.NewSavedAndUnsavedExperience(id, count))
}

// DeleteIDs drops the rows for every listed experience id.
func (p *Projection) DeleteIDs(ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	p.mu.Lock()
	rows := p.rows[:0]
	for _, row := range p.rows {
		if !drop[row.ID] {
			rows = append(rows, row)
		}
	}
	p.rows = rows
	p.mu.Unlock()
}

// TotalUnsaved sums the counts across all rows.
func (p *Projection) TotalUnsaved() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, row := range p.rows {
		total += row.UnsavedEntriesCount
	}
	return total
}
