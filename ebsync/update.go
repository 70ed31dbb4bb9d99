// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"log/slog"

	"github.com/callmiy/ebnis-fe/ebnis"
)

// UpdateReconciler folds the outcome of a batched experience-update
// mutation into the cache: it merges accepted sections into the stored
// aggregates, prunes the unsynced ledger, and floats the touched
// experiences to the top of the mini list query.
type UpdateReconciler struct {
	cache  CacheWriter
	logger *slog.Logger
}

// NewUpdateReconciler builds a reconciler over the given cache. A nil
// logger falls back to slog.Default().
func NewUpdateReconciler(cache CacheWriter, logger *slog.Logger) *UpdateReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateReconciler{cache: cache, logger: logger}
}

// ApplyResult runs the reconciliation pass. It is deliberately total over
// the result shape: unrecognized variants, whole-batch failures and
// experiences missing from the store are skipped, never errors. onDone, if
// non-nil, runs exactly once after a some-success batch has been fully
// processed.
func (r *UpdateReconciler) ApplyResult(result ebnis.UpdateExperiencesResult, onDone func()) {
	someSuccess, ok := result.(*ebnis.UpdateExperiencesSomeSuccess)
	if !ok {
		return
	}

	floated := map[string]*ebnis.Experience{}
	for _, item := range someSuccess.Experiences {
		success, ok := item.(*ebnis.UpdateExperienceSomeSuccess)
		if !ok {
			continue
		}
		if merged := r.applyExperienceUpdate(&success.Experience); merged != nil {
			floated[merged.ID] = merged
		}
	}

	if len(floated) > 0 {
		r.cache.FloatExperiencesToTop(floated)
	}
	if onDone != nil {
		onDone()
	}
}

// applyExperienceUpdate merges one experience's accepted sections and
// rewrites its ledger entry. It returns the merged aggregate, or nil when
// the experience is not in the store.
func (r *UpdateReconciler) applyExperienceUpdate(update *ebnis.UpdatedExperience) *ebnis.Experience {
	stored, err := r.cache.ReadExperienceFragment(update.ExperienceID)
	if err != nil {
		r.logger.Warn("skipping update for unreadable experience",
			"experience_id", update.ExperienceID, "error", err)
		return nil
	}
	if stored == nil {
		// Evicted between submit and response. Nothing to merge into.
		return nil
	}

	merged := stored.Clone()
	if update.UpdatedAt != "" {
		merged.UpdatedAt = update.UpdatedAt
	}

	unsynced := r.cache.GetUnsynced(update.ExperienceID)
	hadLedger := unsynced != nil
	if unsynced == nil {
		unsynced = &ebnis.UnsyncedModifiedExperience{}
	}
	ledgerChanged := false

	if applyOwnFields(merged, unsynced, update.OwnFields) {
		ledgerChanged = true
	}
	if r.applyDefinitions(merged, unsynced, update.UpdatedDefinitions) {
		ledgerChanged = true
	}
	if applyNewEntries(merged, unsynced, update.NewEntries) {
		ledgerChanged = true
	}
	if applyUpdatedEntries(merged, unsynced, update.UpdatedEntries) {
		ledgerChanged = true
	}

	if unsynced.IsEmpty() {
		merged.HasUnsaved = ebnis.HasUnsavedNone
		if hadLedger {
			r.cache.RemoveUnsynced(update.ExperienceID)
		}
	} else if ledgerChanged {
		r.cache.WriteUnsynced(update.ExperienceID, unsynced)
	}

	if err := r.cache.WriteExperienceFragment(merged); err != nil {
		r.logger.Warn("failed to write merged experience",
			"experience_id", update.ExperienceID, "error", err)
		return nil
	}
	return merged
}

// applyOwnFields merges an accepted title/description edit. An errors
// variant leaves both the aggregate and the ledger's ownFields set pending.
func applyOwnFields(merged *ebnis.Experience, unsynced *ebnis.UnsyncedModifiedExperience, result ebnis.OwnFieldsResult) bool {
	success, ok := result.(*ebnis.ExperienceOwnFieldsSuccess)
	if !ok {
		return false
	}
	if success.Data.Title != nil {
		merged.Title = *success.Data.Title
	}
	if success.Data.Description != nil {
		merged.Description = *success.Data.Description
	}
	if len(unsynced.OwnFields) == 0 {
		return false
	}
	delete(unsynced.OwnFields, "title")
	delete(unsynced.OwnFields, "description")
	if len(unsynced.OwnFields) == 0 {
		unsynced.OwnFields = nil
	}
	return true
}

// applyDefinitions overwrites each accepted definition, aligned by id.
// Positional alignment is a fallback for responses carrying no ids at all.
func (r *UpdateReconciler) applyDefinitions(merged *ebnis.Experience, unsynced *ebnis.UnsyncedModifiedExperience, results []ebnis.DefinitionResult) bool {
	if len(results) == 0 {
		return false
	}

	byID := make(map[string]*ebnis.DataDefinition, len(merged.DataDefinitions))
	for _, def := range merged.DataDefinitions {
		byID[def.ID] = def
	}

	positional := true
	anySuccess := false
	for _, result := range results {
		success, ok := result.(*ebnis.DefinitionSuccess)
		if !ok {
			continue
		}
		anySuccess = true
		if success.Definition.ID != "" {
			positional = false
			break
		}
	}
	if !anySuccess {
		return false
	}
	if positional {
		r.logger.Warn("definition results carry no ids, aligning by position",
			"experience_id", merged.ID)
	}

	changed := false
	for i, result := range results {
		success, ok := result.(*ebnis.DefinitionSuccess)
		if !ok {
			continue
		}
		var target *ebnis.DataDefinition
		if positional {
			if i < len(merged.DataDefinitions) {
				target = merged.DataDefinitions[i]
			}
		} else {
			target = byID[success.Definition.ID]
		}
		if target == nil {
			continue
		}
		if success.Definition.Name != "" {
			target.Name = success.Definition.Name
		}
		if success.Definition.Type != "" {
			target.Type = success.Definition.Type
		}
		if unsynced.Definitions != nil {
			if _, pending := unsynced.Definitions[target.ID]; pending {
				delete(unsynced.Definitions, target.ID)
				changed = true
			}
			if len(unsynced.Definitions) == 0 {
				unsynced.Definitions = nil
			}
		}
	}
	return changed
}

// applyNewEntries splices the server identity of each accepted
// offline-created entry into the entries connection, keyed by clientId. An
// accepted entry with no placeholder edge is prepended as a fresh edge. The
// ledger's newEntries flag clears only when every item succeeded.
func applyNewEntries(merged *ebnis.Experience, unsynced *ebnis.UnsyncedModifiedExperience, results []ebnis.CreateEntryResult) bool {
	if len(results) == 0 {
		return false
	}
	if merged.Entries == nil {
		merged.Entries = &ebnis.EntryConnection{}
	}

	allSucceeded := true
	for _, result := range results {
		success, ok := result.(*ebnis.CreateEntrySuccess)
		if !ok {
			allSucceeded = false
			continue
		}
		entry := success.Entry.Clone()
		replaced := false
		for _, edge := range merged.Entries.Edges {
			if edge.Node != nil && entryMatchesClient(edge.Node, entry) {
				entry.ClientID = success.Entry.ClientID
				edge.Node = entry
				replaced = true
				break
			}
		}
		if !replaced {
			merged.Entries.Edges = append(
				[]*ebnis.EntryEdge{{Node: entry}}, merged.Entries.Edges...)
		}
	}

	if allSucceeded && unsynced.NewEntries {
		unsynced.NewEntries = false
		return true
	}
	return false
}

// entryMatchesClient reports whether a stored edge node is the offline
// placeholder for a newly-saved entry. The placeholder may have been stored
// under its offline id before a clientId was ever set on it.
func entryMatchesClient(node, saved *ebnis.Entry) bool {
	if saved.ClientID == "" {
		return false
	}
	return node.ClientID == saved.ClientID || node.ID == saved.ClientID
}

// applyUpdatedEntries overwrites each accepted data object of each
// successfully-updated entry and clears its id from the ledger's
// modified-entries set. A whole-entry error variant leaves the entry's
// ledger sub-map untouched.
func applyUpdatedEntries(merged *ebnis.Experience, unsynced *ebnis.UnsyncedModifiedExperience, results []ebnis.UpdateEntryResult) bool {
	if len(results) == 0 || merged.Entries == nil {
		return false
	}

	changed := false
	for _, result := range results {
		success, ok := result.(*ebnis.UpdateEntrySomeSuccess)
		if !ok {
			continue
		}
		var target *ebnis.Entry
		for _, edge := range merged.Entries.Edges {
			if edge.Node != nil && edge.Node.ID == success.Entry.EntryID {
				target = edge.Node
				break
			}
		}
		if target == nil {
			continue
		}
		if success.Entry.UpdatedAt != "" {
			target.UpdatedAt = success.Entry.UpdatedAt
		}

		pending := unsynced.ModifiedEntries[success.Entry.EntryID]
		for _, objResult := range success.Entry.DataObjects {
			objSuccess, ok := objResult.(*ebnis.DataObjectSuccess)
			if !ok {
				continue
			}
			for i, obj := range target.DataObjects {
				if obj.ID == objSuccess.DataObject.ID {
					target.DataObjects[i] = objSuccess.DataObject.Clone()
					break
				}
			}
			if pending != nil {
				if _, ok := pending[objSuccess.DataObject.ID]; ok {
					delete(pending, objSuccess.DataObject.ID)
					changed = true
				}
			}
		}
		if pending != nil && len(pending) == 0 {
			delete(unsynced.ModifiedEntries, success.Entry.EntryID)
			changed = true
		}
	}
	if len(unsynced.ModifiedEntries) == 0 {
		unsynced.ModifiedEntries = nil
	}
	return changed
}
