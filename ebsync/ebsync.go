// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

// Package ebsync reconciles batched server mutation results into the local
// cache. The two reconcilers — one for uploading offline-created data, one
// for edits to server-known experiences — classify per-item outcomes, merge
// survivors into the normalized store, rewrite the unsynced ledger and the
// unsaved projection, and report how much work is still pending.
package ebsync

import (
	"github.com/callmiy/ebnis-fe/ebcache"
	"github.com/callmiy/ebnis-fe/ebnis"
)

// CacheWriter is the slice of the cache the reconcilers drive. It is
// satisfied by *ebcache.Cache; tests substitute a recording fake.
type CacheWriter interface {
	ReadExperienceFragment(id string) (*ebnis.Experience, error)
	WriteExperienceFragment(exp *ebnis.Experience) error
	ReplaceExperiencesInMiniQuery(byOldID map[string]*ebnis.Experience)
	FloatExperiencesToTop(byID map[string]*ebnis.Experience)
	DeleteCacheKeys(keys []string, refs ebcache.DeletedRefs)
	GetUnsynced(experienceID string) *ebnis.UnsyncedModifiedExperience
	WriteUnsynced(experienceID string, entry *ebnis.UnsyncedModifiedExperience)
	RemoveUnsynced(experienceID string)
	WriteSavedAndUnsavedList(rows []ebnis.SavedAndUnsavedExperience)
}

var _ CacheWriter = (*ebcache.Cache)(nil)

// ExperienceSyncItem is one experience's pre-upload state joined with the
// server outcome for it. The upload flow builds one item per experience
// before the call and MergeUploadResponse fills in the Newly* fields and
// EntriesErrors afterwards.
type ExperienceSyncItem struct {
	// Experience is the cached aggregate as it was submitted.
	Experience *ebnis.Experience

	// UnsavedEntries are the entries that still needed upload when the
	// batch was submitted.
	UnsavedEntries []*ebnis.Entry

	// SavedEntries are entries already confirmed before this pass. Always
	// empty for an offline-created experience.
	SavedEntries []*ebnis.Entry

	// EntriesErrors maps the id (offline experiences) or client id (saved
	// experiences) of each entry that failed to save to its error text.
	// The map deduplicates: one key per failing entry.
	EntriesErrors map[string]string

	// NewlySavedEntries are the entries the server accepted in this pass,
	// carrying their server-assigned ids.
	NewlySavedEntries []*ebnis.Entry

	// NewlySavedExperience is set when an offline-created experience was
	// itself accepted, carrying its server-assigned id.
	NewlySavedExperience *ebnis.Experience
}

// SyncItemMap keys sync items by their pre-upload correlation id: the
// offline experience id for unsaved experiences, the server id for saved
// ones.
type SyncItemMap = map[string]*ExperienceSyncItem
