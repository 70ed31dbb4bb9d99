// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/callmiy/ebnis-fe/ebnis"
)

func strPtr(s string) *string { return &s }

func TestApplyResultIgnoresAllFail(t *testing.T) {
	cache := newFakeCache()
	r := NewUpdateReconciler(cache, nil)

	done := 0
	r.ApplyResult(&ebnis.UpdateExperiencesAllFail{Error: "unauthorized"}, func() { done++ })

	require.Zero(t, done)
	require.Empty(t, cache.writtenFragments)
	require.Empty(t, cache.floated)
}

func TestApplyResultSkipsFailedAndUnknownItems(t *testing.T) {
	cache := newFakeCache()
	r := NewUpdateReconciler(cache, nil)

	done := 0
	r.ApplyResult(&ebnis.UpdateExperiencesSomeSuccess{
		Experiences: []ebnis.UpdateExperienceResult{
			&ebnis.UpdateExperienceErrors{Errors: json.RawMessage(`{"error":"x"}`)},
			&ebnis.UnknownResult{Typename: "SomethingNew"},
		},
	}, func() { done++ })

	// Nothing mergeable, but the pass still completes.
	require.Equal(t, 1, done)
	require.Empty(t, cache.writtenFragments)
	require.Empty(t, cache.floated)
}

func TestApplyResultSkipsEvictedExperience(t *testing.T) {
	cache := newFakeCache()
	r := NewUpdateReconciler(cache, nil)

	r.ApplyResult(&ebnis.UpdateExperiencesSomeSuccess{
		Experiences: []ebnis.UpdateExperienceResult{
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "gone",
					OwnFields: &ebnis.ExperienceOwnFieldsSuccess{
						Data: ebnis.ExperienceOwnFields{Title: strPtr("t")},
					},
				},
			},
		},
	}, nil)

	require.Empty(t, cache.writtenFragments)
	require.Empty(t, cache.floated)
}

// One batch touching four experiences, each exercising a different section.
func TestApplyResultMergesBatch(t *testing.T) {
	cache := newFakeCache()

	// No ledger entry at all for this one.
	cache.fragments["1"] = &ebnis.Experience{ID: "1", Title: "old one"}

	cache.fragments["2"] = &ebnis.Experience{ID: "2", Title: "old two"}
	cache.unsynced["2"] = &ebnis.UnsyncedModifiedExperience{
		OwnFields: ebnis.KeySet{"title": true},
	}

	cache.fragments["3"] = &ebnis.Experience{
		ID: "3",
		DataDefinitions: []*ebnis.DataDefinition{
			{ID: "3d1", Name: "field a", Type: ebnis.Integer},
		},
	}
	cache.unsynced["3"] = &ebnis.UnsyncedModifiedExperience{
		Definitions: map[string]ebnis.KeySet{"3d1": {"name": true}},
	}

	cache.fragments["4"] = &ebnis.Experience{
		ID: "4",
		Entries: &ebnis.EntryConnection{
			Edges: []*ebnis.EntryEdge{
				{Node: &ebnis.Entry{
					ID: "4e1",
					DataObjects: []*ebnis.DataObject{
						{ID: "4o1", Data: json.RawMessage(`"old"`)},
						{ID: "4o2", Data: json.RawMessage(`"old"`)},
					},
				}},
			},
		},
	}
	cache.unsynced["4"] = &ebnis.UnsyncedModifiedExperience{
		NewEntries: true,
		ModifiedEntries: map[string]ebnis.KeySet{
			"4e1": {"4o1": true, "4o2": true},
		},
	}

	r := NewUpdateReconciler(cache, nil)
	done := 0
	r.ApplyResult(&ebnis.UpdateExperiencesSomeSuccess{
		Experiences: []ebnis.UpdateExperienceResult{
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "1",
					OwnFields: &ebnis.ExperienceOwnFieldsSuccess{
						Data: ebnis.ExperienceOwnFields{Title: strPtr("new one")},
					},
				},
			},
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "2",
					OwnFields: &ebnis.ExperienceOwnFieldsSuccess{
						Data: ebnis.ExperienceOwnFields{Title: strPtr("new two")},
					},
				},
			},
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "3",
					UpdatedDefinitions: []ebnis.DefinitionResult{
						&ebnis.DefinitionSuccess{
							Definition: ebnis.DataDefinition{ID: "3d1", Name: "field b"},
						},
					},
				},
			},
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "4",
					UpdatedAt:    "2025-02-01T00:00:00Z",
					NewEntries: []ebnis.CreateEntryResult{
						&ebnis.CreateEntrySuccess{
							Entry: ebnis.Entry{ID: "4enc1", ClientID: "c-new1"},
						},
						&ebnis.CreateEntrySuccess{
							Entry: ebnis.Entry{ID: "4enc2", ClientID: "c-new2"},
						},
					},
					UpdatedEntries: []ebnis.UpdateEntryResult{
						&ebnis.UpdateEntrySomeSuccess{
							Entry: ebnis.UpdatedEntry{
								EntryID: "4e1",
								DataObjects: []ebnis.DataObjectResult{
									&ebnis.DataObjectSuccess{
										DataObject: ebnis.DataObject{
											ID:   "4o1",
											Data: json.RawMessage(`"new"`),
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}, func() { done++ })

	require.Equal(t, 1, done)
	require.Len(t, cache.writtenFragments, 4)

	// 1: no ledger entry existed, so nothing to remove, but the aggregate
	// is still marked fully synced.
	one := cache.fragments["1"]
	require.Equal(t, "new one", one.Title)
	require.Equal(t, ebnis.HasUnsavedNone, one.HasUnsaved)

	// 2 and 3 had ledger entries that are now empty.
	require.Equal(t, []string{"2", "3"}, cache.unsyncedRemoves)
	require.Equal(t, "new two", cache.fragments["2"].Title)
	require.Equal(t, ebnis.HasUnsavedNone, cache.fragments["2"].HasUnsaved)
	require.Equal(t, "field b", cache.fragments["3"].DataDefinitions[0].Name)
	require.Equal(t, ebnis.HasUnsavedNone, cache.fragments["3"].HasUnsaved)

	// 4: the two accepted entries had no placeholder edge, so each is
	// prepended in turn; only one of two data objects was confirmed, so the
	// ledger survives with the remainder.
	four := cache.fragments["4"]
	require.Equal(t, "2025-02-01T00:00:00Z", four.UpdatedAt)
	require.Equal(t, ebnis.HasUnsavedOmitted, four.HasUnsaved)
	ids := make([]string, 0, len(four.Entries.Edges))
	for _, edge := range four.Entries.Edges {
		ids = append(ids, edge.Node.ID)
	}
	require.Equal(t, []string{"4enc2", "4enc1", "4e1"}, ids)
	require.Equal(t, json.RawMessage(`"new"`), four.Entries.Edges[2].Node.DataObjects[0].Data)
	require.Equal(t, json.RawMessage(`"old"`), four.Entries.Edges[2].Node.DataObjects[1].Data)

	require.Equal(t, &ebnis.UnsyncedModifiedExperience{
		ModifiedEntries: map[string]ebnis.KeySet{"4e1": {"4o2": true}},
	}, cache.unsyncedWrites["4"])

	// All four merged aggregates float to the top in a single call.
	require.Len(t, cache.floated, 1)
	require.Len(t, cache.floated[0], 4)
	for _, id := range []string{"1", "2", "3", "4"} {
		require.Contains(t, cache.floated[0], id)
	}
}

func TestNewEntriesReplacePlaceholderByClientID(t *testing.T) {
	cache := newFakeCache()
	offlineID := ebnis.NewOfflineID()
	cache.fragments["9"] = &ebnis.Experience{
		ID: "9",
		Entries: &ebnis.EntryConnection{
			Edges: []*ebnis.EntryEdge{
				// Placeholder stored under its offline id before a clientId
				// was ever set on it.
				{Node: &ebnis.Entry{ID: offlineID}},
			},
		},
	}
	cache.unsynced["9"] = &ebnis.UnsyncedModifiedExperience{NewEntries: true}

	r := NewUpdateReconciler(cache, nil)
	r.ApplyResult(&ebnis.UpdateExperiencesSomeSuccess{
		Experiences: []ebnis.UpdateExperienceResult{
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "9",
					NewEntries: []ebnis.CreateEntryResult{
						&ebnis.CreateEntrySuccess{
							Entry: ebnis.Entry{ID: "9s", ClientID: offlineID},
						},
					},
				},
			},
		},
	}, nil)

	nine := cache.fragments["9"]
	require.Len(t, nine.Entries.Edges, 1)
	require.Equal(t, "9s", nine.Entries.Edges[0].Node.ID)
	require.Equal(t, offlineID, nine.Entries.Edges[0].Node.ClientID)

	// The flag cleared and no other edits were pending.
	require.Equal(t, ebnis.HasUnsavedNone, nine.HasUnsaved)
	require.Equal(t, []string{"9"}, cache.unsyncedRemoves)
}

func TestNewEntriesFlagSurvivesPartialFailure(t *testing.T) {
	cache := newFakeCache()
	cache.fragments["9"] = &ebnis.Experience{
		ID:      "9",
		Entries: &ebnis.EntryConnection{Edges: []*ebnis.EntryEdge{}},
	}
	cache.unsynced["9"] = &ebnis.UnsyncedModifiedExperience{NewEntries: true}

	r := NewUpdateReconciler(cache, nil)
	r.ApplyResult(&ebnis.UpdateExperiencesSomeSuccess{
		Experiences: []ebnis.UpdateExperienceResult{
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "9",
					NewEntries: []ebnis.CreateEntryResult{
						&ebnis.CreateEntrySuccess{
							Entry: ebnis.Entry{ID: "9s", ClientID: "9-c1"},
						},
						&ebnis.CreateEntryErrors{Errors: json.RawMessage(`{"error":"x"}`)},
					},
				},
			},
		},
	}, nil)

	// The accepted entry still lands in the connection, but some entries
	// remain unsaved so the flag stays and the ledger is untouched.
	nine := cache.fragments["9"]
	require.Len(t, nine.Entries.Edges, 1)
	require.Equal(t, ebnis.HasUnsavedOmitted, nine.HasUnsaved)
	require.Empty(t, cache.unsyncedRemoves)
	require.Empty(t, cache.unsyncedWrites)
}

func TestDefinitionsAlignByPositionWithoutIDs(t *testing.T) {
	cache := newFakeCache()
	cache.fragments["3"] = &ebnis.Experience{
		ID: "3",
		DataDefinitions: []*ebnis.DataDefinition{
			{ID: "3d1", Name: "first"},
			{ID: "3d2", Name: "second"},
		},
	}
	cache.unsynced["3"] = &ebnis.UnsyncedModifiedExperience{
		Definitions: map[string]ebnis.KeySet{"3d2": {"name": true}},
	}

	r := NewUpdateReconciler(cache, nil)
	r.ApplyResult(&ebnis.UpdateExperiencesSomeSuccess{
		Experiences: []ebnis.UpdateExperienceResult{
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "3",
					UpdatedDefinitions: []ebnis.DefinitionResult{
						&ebnis.DefinitionErrors{Errors: json.RawMessage(`{"name":"taken"}`)},
						&ebnis.DefinitionSuccess{
							Definition: ebnis.DataDefinition{Name: "second renamed"},
						},
					},
				},
			},
		},
	}, nil)

	three := cache.fragments["3"]
	require.Equal(t, "first", three.DataDefinitions[0].Name)
	require.Equal(t, "second renamed", three.DataDefinitions[1].Name)
	require.Equal(t, []string{"3"}, cache.unsyncedRemoves)
}

func TestUpdatedEntryErrorLeavesLedgerPending(t *testing.T) {
	cache := newFakeCache()
	cache.fragments["5"] = &ebnis.Experience{
		ID: "5",
		Entries: &ebnis.EntryConnection{
			Edges: []*ebnis.EntryEdge{
				{Node: &ebnis.Entry{
					ID:          "5e1",
					DataObjects: []*ebnis.DataObject{{ID: "5o1", Data: json.RawMessage(`"old"`)}},
				}},
			},
		},
	}
	cache.unsynced["5"] = &ebnis.UnsyncedModifiedExperience{
		ModifiedEntries: map[string]ebnis.KeySet{"5e1": {"5o1": true}},
	}

	r := NewUpdateReconciler(cache, nil)
	r.ApplyResult(&ebnis.UpdateExperiencesSomeSuccess{
		Experiences: []ebnis.UpdateExperienceResult{
			&ebnis.UpdateExperienceSomeSuccess{
				Experience: ebnis.UpdatedExperience{
					ExperienceID: "5",
					UpdatedEntries: []ebnis.UpdateEntryResult{
						&ebnis.UpdateEntryErrors{Errors: json.RawMessage(`{"error":"x"}`)},
					},
				},
			},
		},
	}, nil)

	require.Equal(t, json.RawMessage(`"old"`),
		cache.fragments["5"].Entries.Edges[0].Node.DataObjects[0].Data)
	require.Empty(t, cache.unsyncedRemoves)
	require.Empty(t, cache.unsyncedWrites)
	require.Equal(t, ebnis.HasUnsavedOmitted, cache.fragments["5"].HasUnsaved)
}
