// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebcache

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/callmiy/ebnis-fe/ebnis"
)

// DeletedRefs pairs each cache-key deletion with the cached operations that
// referenced the deleted record: the client-side mutation that created it
// and the queries that select it. Both lists hold (operationName, recordKey)
// pairs.
type DeletedRefs struct {
	Mutations [][2]string
	Queries   [][2]string
}

// Cache bundles the normalized store with the auxiliary caches the
// reconcilers rewrite: the mini list query, the unsynced ledger, the
// unsaved projection and the per-record operation results.
type Cache struct {
	Store      *Store
	Mini       *MiniQuery
	Unsynced   *Ledger
	Projection *Projection

	opMu   sync.Mutex
	ops    map[string]json.RawMessage // "<opName>:<recordKey>" -> cached result
	logger *slog.Logger
}

// New builds an empty cache. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		Store:      NewStore(),
		Mini:       NewMiniQuery(),
		Unsynced:   NewLedger(),
		Projection: NewProjection(),
		ops:        make(map[string]json.RawMessage),
		logger:     logger,
	}
}

func opKey(opName, recordKey string) string {
	return opName + ":" + recordKey
}

// WriteOperation caches an operation result scoped to one record key, e.g.
// the getExperience result for "Experience:1".
func (c *Cache) WriteOperation(opName, recordKey string, result json.RawMessage) {
	c.opMu.Lock()
	c.ops[opKey(opName, recordKey)] = append(json.RawMessage(nil), result...)
	c.opMu.Unlock()
}

// ReadOperation returns the cached result for (opName, recordKey).
func (c *Cache) ReadOperation(opName, recordKey string) (json.RawMessage, bool) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	raw, ok := c.ops[opKey(opName, recordKey)]
	return raw, ok
}

// RemoveOperationsByPrefix drops every cached operation whose key starts
// with one of the prefixes. Used to shed one-shot boot queries.
func (c *Cache) RemoveOperationsByPrefix(prefixes ...string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	for key := range c.ops {
		for _, prefix := range prefixes {
			if strings.HasPrefix(key, prefix) {
				delete(c.ops, key)
				break
			}
		}
	}
}

// DeleteCacheKeys removes the listed records in one atomic batch, drops
// projection rows for deleted projection keys, evicts the replaced entries
// from the mini list, and invalidates every cached operation named in refs.
func (c *Cache) DeleteCacheKeys(keys []string, refs DeletedRefs) {
	if len(keys) == 0 {
		return
	}

	var projectionIDs []string
	var miniIDs []string
	for _, key := range keys {
		typename, id := SplitKey(key)
		switch typename {
		case ebnis.SavedAndUnsavedTypename:
			projectionIDs = append(projectionIDs, id)
		case ebnis.ExperienceTypename:
			miniIDs = append(miniIDs, id)
		}
	}

	c.Store.Delete(keys)
	if len(projectionIDs) > 0 {
		c.Projection.DeleteIDs(projectionIDs)
	}
	// Callers re-key replaced experiences in the mini list before deleting
	// the old records, so an id still listed here belongs to an experience
	// that is gone outright, not renamed.
	for _, id := range miniIDs {
		if c.Mini.Get(id) != nil {
			c.Mini.Remove(id)
		}
	}

	c.opMu.Lock()
	for _, pair := range refs.Mutations {
		delete(c.ops, opKey(pair[0], pair[1]))
	}
	for _, pair := range refs.Queries {
		delete(c.ops, opKey(pair[0], pair[1]))
	}
	c.opMu.Unlock()

	c.logger.Debug("deleted cache keys", "count", len(keys),
		"mutationRefs", len(refs.Mutations), "queryRefs", len(refs.Queries))
}

// ReadExperienceFragment reassembles the full aggregate for id.
func (c *Cache) ReadExperienceFragment(id string) (*ebnis.Experience, error) {
	return c.Store.ReadExperienceFragment(id)
}

// WriteExperienceFragment normalizes exp into the store.
func (c *Cache) WriteExperienceFragment(exp *ebnis.Experience) error {
	return c.Store.WriteExperienceFragment(exp)
}

// ReplaceExperiencesInMiniQuery rewrites list positions keyed by their
// pre-reconciliation ids.
func (c *Cache) ReplaceExperiencesInMiniQuery(byOldID map[string]*ebnis.Experience) {
	c.Mini.Replace(byOldID)
}

// FloatExperiencesToTop moves the listed experiences to the head of the
// mini list.
func (c *Cache) FloatExperiencesToTop(byID map[string]*ebnis.Experience) {
	c.Mini.FloatToTop(byID)
}

// GetUnsynced returns a copy of the ledger entry for experienceID, or nil.
func (c *Cache) GetUnsynced(experienceID string) *ebnis.UnsyncedModifiedExperience {
	return c.Unsynced.Get(experienceID)
}

// WriteUnsynced replaces the ledger entry for experienceID.
func (c *Cache) WriteUnsynced(experienceID string, entry *ebnis.UnsyncedModifiedExperience) {
	c.Unsynced.Write(experienceID, entry)
}

// RemoveUnsynced drops the ledger entry for experienceID.
func (c *Cache) RemoveUnsynced(experienceID string) {
	c.Unsynced.Remove(experienceID)
}

// WriteSavedAndUnsavedList replaces the unsaved projection wholesale.
func (c *Cache) WriteSavedAndUnsavedList(rows []ebnis.SavedAndUnsavedExperience) {
	c.Projection.Write(rows)
}

// HydrateExperiences writes the full fragment of every experience in a
// fetched connection and lists each summary in the mini query. Used once at
// boot to pre-fetch the experiences the sidebar links to.
func (c *Cache) HydrateExperiences(experiences []*ebnis.Experience) error {
	for _, exp := range experiences {
		if exp == nil {
			continue
		}
		if err := c.Store.WriteExperienceFragment(exp); err != nil {
			return err
		}
		c.Mini.Insert(exp)
	}
	return nil
}
