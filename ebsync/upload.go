// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"log/slog"
	"sort"

	"github.com/callmiy/ebnis-fe/ebcache"
	"github.com/callmiy/ebnis-fe/ebnis"
)

// UploadReconciler merges the outcome of an offline-data upload batch back
// into the cache. One call handles both kinds of item: experiences created
// offline (whose own identity may have just changed) and server-known
// experiences that had offline entries pending.
type UploadReconciler struct {
	cache  CacheWriter
	logger *slog.Logger
}

// NewUploadReconciler builds a reconciler over the given cache. A nil
// logger falls back to slog.Default().
func NewUploadReconciler(cache CacheWriter, logger *slog.Logger) *UploadReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadReconciler{cache: cache, logger: logger}
}

// UpdateCache reconciles the two sync-item maps and returns the number of
// entries still pending upload after the pass. With both maps empty nothing
// is touched and 0 is returned.
func (r *UploadReconciler) UpdateCache(unsavedMap, savedMap SyncItemMap) (int, error) {
	if len(unsavedMap) == 0 && len(savedMap) == 0 {
		return 0, nil
	}

	state := &reconcileState{
		replacements: map[string]*ebnis.Experience{},
	}

	for _, id := range sortedIDs(unsavedMap) {
		contribution, err := r.reconcileUnsaved(id, unsavedMap[id], state)
		if err != nil {
			return 0, err
		}
		state.outstanding += contribution
	}
	for _, id := range sortedIDs(savedMap) {
		contribution, err := r.reconcileSaved(id, savedMap[id], state)
		if err != nil {
			return 0, err
		}
		state.outstanding += contribution
	}

	// Re-key the list positions before deleting the superseded records:
	// the delete pass evicts any experience still listed under a deleted
	// key, and a replaced one must keep its position under the new id.
	if len(state.replacements) > 0 {
		r.cache.ReplaceExperiencesInMiniQuery(state.replacements)
	}
	if len(state.deleteKeys) > 0 {
		r.cache.DeleteCacheKeys(state.deleteKeys, state.deleteRefs)
	}
	r.cache.WriteSavedAndUnsavedList(state.rows)

	return state.outstanding, nil
}

// reconcileState accumulates the batch-wide side effects so that deletes,
// the mini-query replacement and the projection rewrite each happen in a
// single call after the per-item loop.
type reconcileState struct {
	outstanding  int
	deleteKeys   []string
	deleteRefs   ebcache.DeletedRefs
	replacements map[string]*ebnis.Experience
	rows         []ebnis.SavedAndUnsavedExperience
}

// reconcileUnsaved handles one offline-created experience. oldID is the
// offline id the item was keyed by before upload.
func (r *UploadReconciler) reconcileUnsaved(oldID string, item *ExperienceSyncItem, state *reconcileState) (int, error) {
	saved := item.NewlySavedExperience
	if saved == nil || saved.ID == "" {
		// The experience itself never saved, so every entry under it is
		// still offline regardless of any per-entry outcome.
		contribution := len(item.UnsavedEntries)
		state.rows = append(state.rows,
			ebnis.NewSavedAndUnsavedExperience(oldID, contribution))
		return contribution, nil
	}

	merged := saved.Clone()
	if merged.Entries == nil {
		merged.Entries = &ebnis.EntryConnection{}
	}
	merged.Entries.Edges = append(merged.Entries.Edges,
		pendingEdges(item.UnsavedEntries, item.EntriesErrors)...)

	contribution := len(item.EntriesErrors)
	if contribution > 0 {
		merged.HasUnsaved = ebnis.HasUnsavedTrue
	}

	if err := r.cache.WriteExperienceFragment(merged); err != nil {
		return 0, err
	}
	state.replacements[oldID] = merged

	oldKey := ebcache.Key(ebnis.ExperienceTypename, oldID)
	state.deleteKeys = append(state.deleteKeys, oldKey)
	state.deleteRefs.Mutations = append(state.deleteRefs.Mutations,
		[2]string{ebnis.MutationCreateUnsavedExperience, oldKey})
	state.deleteRefs.Queries = append(state.deleteRefs.Queries,
		[2]string{ebnis.QueryGetExperience, oldKey})

	for _, def := range item.Experience.DataDefinitions {
		state.deleteKeys = append(state.deleteKeys,
			ebcache.Key(ebnis.FieldDefTypename, def.ID))
	}

	for _, entry := range item.UnsavedEntries {
		if _, failed := item.EntriesErrors[entry.ID]; failed {
			continue
		}
		entryKey := ebcache.Key(ebnis.EntryTypename, entry.ID)
		state.deleteKeys = append(state.deleteKeys, entryKey)
		state.deleteRefs.Mutations = append(state.deleteRefs.Mutations,
			[2]string{ebnis.MutationCreateUnsavedEntry, entryKey})
	}

	if contribution == 0 {
		state.deleteKeys = append(state.deleteKeys,
			ebcache.Key(ebnis.SavedAndUnsavedTypename, oldID))
	} else {
		state.rows = append(state.rows,
			ebnis.NewSavedAndUnsavedExperience(merged.ID, contribution))
	}
	return contribution, nil
}

// reconcileSaved handles one server-known experience whose offline entries
// were submitted.
func (r *UploadReconciler) reconcileSaved(id string, item *ExperienceSyncItem, state *reconcileState) (int, error) {
	if len(item.NewlySavedEntries) == 0 && len(item.EntriesErrors) == 0 {
		// No outcome for this experience at all: the whole upload attempt
		// failed before producing per-entry results. Its offline entries
		// stay pending and the cache stays as it is.
		contribution := len(item.UnsavedEntries)
		if contribution > 0 {
			state.rows = append(state.rows,
				ebnis.NewSavedAndUnsavedExperience(id, contribution))
		}
		return contribution, nil
	}

	merged := item.Experience.Clone()
	byClientID := make(map[string]*ebnis.Entry, len(item.NewlySavedEntries))
	for _, entry := range item.NewlySavedEntries {
		if entry.ClientID != "" {
			byClientID[entry.ClientID] = entry
		}
	}

	if merged.Entries != nil {
		for _, edge := range merged.Entries.Edges {
			if edge.Node == nil {
				continue
			}
			savedEntry, ok := byClientID[edge.Node.ClientID]
			if !ok {
				continue
			}
			node := savedEntry.Clone()
			node.ClientID = edge.Node.ClientID
			edge.Node = node
		}
	}

	contribution := len(item.EntriesErrors)
	if contribution == 0 {
		merged.HasUnsaved = ebnis.HasUnsavedNone
	}

	if err := r.cache.WriteExperienceFragment(merged); err != nil {
		return 0, err
	}
	state.replacements[id] = merged

	for _, entry := range item.NewlySavedEntries {
		if entry.ClientID == "" {
			continue
		}
		entryKey := ebcache.Key(ebnis.EntryTypename, entry.ClientID)
		state.deleteKeys = append(state.deleteKeys, entryKey)
		state.deleteRefs.Mutations = append(state.deleteRefs.Mutations,
			[2]string{ebnis.MutationCreateUnsavedEntry, entryKey})
	}

	if contribution == 0 {
		state.deleteKeys = append(state.deleteKeys,
			ebcache.Key(ebnis.SavedAndUnsavedTypename, id))
	} else {
		state.rows = append(state.rows,
			ebnis.NewSavedAndUnsavedExperience(id, contribution))
	}
	return contribution, nil
}

// pendingEdges builds one placeholder edge per unsaved entry that failed to
// save, preserving the entries' relative order. The node carries only the
// offline id; the full entry record is still in the store under that id.
func pendingEdges(unsaved []*ebnis.Entry, errors map[string]string) []*ebnis.EntryEdge {
	var edges []*ebnis.EntryEdge
	for _, entry := range unsaved {
		if _, failed := errors[entry.ID]; !failed {
			continue
		}
		edges = append(edges, &ebnis.EntryEdge{
			Cursor: "",
			Node:   &ebnis.Entry{ID: entry.ID},
		})
	}
	return edges
}

func sortedIDs(m SyncItemMap) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
