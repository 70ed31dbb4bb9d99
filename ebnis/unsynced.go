// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebnis

// KeySet is a set of field names or ids, stored map-style the way the
// ledger records them.
type KeySet map[string]bool

// UnsyncedModifiedExperience is the ledger entry for one experience: which
// of its own fields, definitions and entries carry local edits the server
// has not yet confirmed. An experience id is present in the ledger iff at
// least one of these classes is non-empty.
type UnsyncedModifiedExperience struct {
	// OwnFields tracks locally edited experience fields (title, description).
	OwnFields KeySet `json:"ownFields,omitempty"`

	// Definitions maps a data definition id to the set of its edited fields.
	Definitions map[string]KeySet `json:"definitions,omitempty"`

	// NewEntries is set while at least one offline-created entry awaits sync.
	NewEntries bool `json:"newEntries,omitempty"`

	// ModifiedEntries maps an entry id to the ids of its edited data
	// objects.
	ModifiedEntries map[string]KeySet `json:"modifiedEntries,omitempty"`
}

// IsEmpty reports whether every tracked change class has been cleared. An
// empty entry must be removed from the ledger, never written back.
func (u *UnsyncedModifiedExperience) IsEmpty() bool {
	if u == nil {
		return true
	}
	return len(u.OwnFields) == 0 &&
		len(u.Definitions) == 0 &&
		!u.NewEntries &&
		len(u.ModifiedEntries) == 0
}

// Clone returns a deep copy so reconciliation can prune a snapshot without
// mutating the stored entry.
func (u *UnsyncedModifiedExperience) Clone() *UnsyncedModifiedExperience {
	if u == nil {
		return nil
	}
	out := &UnsyncedModifiedExperience{NewEntries: u.NewEntries}
	if u.OwnFields != nil {
		out.OwnFields = make(KeySet, len(u.OwnFields))
		for k, v := range u.OwnFields {
			out.OwnFields[k] = v
		}
	}
	if u.Definitions != nil {
		out.Definitions = make(map[string]KeySet, len(u.Definitions))
		for id, fields := range u.Definitions {
			fs := make(KeySet, len(fields))
			for k, v := range fields {
				fs[k] = v
			}
			out.Definitions[id] = fs
		}
	}
	if u.ModifiedEntries != nil {
		out.ModifiedEntries = make(map[string]KeySet, len(u.ModifiedEntries))
		for id, defs := range u.ModifiedEntries {
			ds := make(KeySet, len(defs))
			for k, v := range defs {
				ds[k] = v
			}
			out.ModifiedEntries[id] = ds
		}
	}
	return out
}

// SavedAndUnsavedExperience is one row of the unsaved projection: how many
// entries of the experience are not yet confirmed saved. A fully synced
// experience has no row at all.
type SavedAndUnsavedExperience struct {
	ID                  string `json:"id"`
	UnsavedEntriesCount int    `json:"unsavedEntriesCount"`
	Typename            string `json:"__typename"`
}

// NewSavedAndUnsavedExperience builds a projection row with the canonical
// typename set.
func NewSavedAndUnsavedExperience(id string, count int) SavedAndUnsavedExperience {
	return SavedAndUnsavedExperience{
		ID:                  id,
		UnsavedEntriesCount: count,
		Typename:            SavedAndUnsavedTypename,
	}
}
