// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/callmiy/ebnis-fe/ebcache"
	"github.com/callmiy/ebnis-fe/ebnis"
)

func newSyncerWithTransport(t *testing.T, rt roundTripFunc) (*Syncer, *ebcache.Cache) {
	t.Helper()
	cache := ebcache.New(nil)
	client := NewClient("http://api.test", staticToken(signedToken(t, time.Hour)), nil)
	if rt != nil {
		client.HTTP = &http.Client{Transport: rt}
	}
	return NewSyncer(cache, client, nil), cache
}

func TestCollectPendingPartitions(t *testing.T) {
	syncer, cache := newSyncerWithTransport(t, nil)

	offlineExpID := ebnis.NewOfflineID()
	offlineEntryID := ebnis.NewOfflineID()
	require.NoError(t, cache.HydrateExperiences([]*ebnis.Experience{
		{
			ID:    offlineExpID,
			Title: "offline experience",
			Entries: &ebnis.EntryConnection{
				Edges: []*ebnis.EntryEdge{{Node: &ebnis.Entry{ID: ebnis.NewOfflineID()}}},
			},
		},
		{
			ID: "exp1",
			Entries: &ebnis.EntryConnection{
				Edges: []*ebnis.EntryEdge{
					{Node: &ebnis.Entry{ID: "server-1"}},
					{Node: &ebnis.Entry{ID: offlineEntryID, ExperienceID: "exp1"}},
				},
			},
		},
		{
			ID: "exp2",
			Entries: &ebnis.EntryConnection{
				Edges: []*ebnis.EntryEdge{{Node: &ebnis.Entry{ID: "server-2"}}},
			},
		},
	}))

	unsavedMap, savedMap := syncer.CollectPending()

	require.Len(t, unsavedMap, 1)
	require.Contains(t, unsavedMap, offlineExpID)
	require.Len(t, unsavedMap[offlineExpID].UnsavedEntries, 1)

	// exp2 is fully synced and does not appear.
	require.Len(t, savedMap, 1)
	require.Contains(t, savedMap, "exp1")
	require.Len(t, savedMap["exp1"].UnsavedEntries, 1)
	require.Equal(t, offlineEntryID, savedMap["exp1"].UnsavedEntries[0].ID)
}

func TestCollectPendingSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	persistor, err := ebcache.NewPersistor(db)
	require.NoError(t, err)

	offlineExpID := ebnis.NewOfflineID()
	before := ebcache.New(nil)
	require.NoError(t, before.HydrateExperiences([]*ebnis.Experience{
		{
			ID:    offlineExpID,
			Title: "recorded offline",
			Entries: &ebnis.EntryConnection{
				Edges: []*ebnis.EntryEdge{
					{Node: &ebnis.Entry{ID: ebnis.NewOfflineID(), ExperienceID: offlineExpID}},
				},
			},
		},
	}))
	before.Projection.IncrementUnsavedCount(offlineExpID)
	require.NoError(t, persistor.Persist(ctx, before))

	// A fresh process restores the snapshot and must still find the
	// offline experience when the next sync pass collects.
	after := ebcache.New(nil)
	restored, err := persistor.Restore(ctx, after)
	require.NoError(t, err)
	require.True(t, restored)

	syncer := NewSyncer(after, nil, nil)
	unsavedMap, savedMap := syncer.CollectPending()
	require.Len(t, unsavedMap, 1)
	require.Contains(t, unsavedMap, offlineExpID)
	require.Len(t, unsavedMap[offlineExpID].UnsavedEntries, 1)
	require.Empty(t, savedMap)
}

func TestUploadOnceNothingPending(t *testing.T) {
	syncer, cache := newSyncerWithTransport(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected with nothing pending")
		return nil, nil
	})
	require.NoError(t, cache.HydrateExperiences([]*ebnis.Experience{
		{ID: "exp1", Entries: &ebnis.EntryConnection{
			Edges: []*ebnis.EntryEdge{{Node: &ebnis.Entry{ID: "server-1"}}},
		}},
	}))

	outstanding, err := syncer.UploadOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, outstanding)
}

func TestUploadOnceSavesOfflineExperience(t *testing.T) {
	offlineExpID := ebnis.NewOfflineID()
	offlineEntryID := ebnis.NewOfflineID()

	respBody := fmt.Sprintf(`{
		"saveOfflineExperiences": [{
			"experience": {
				"id": "srv-1",
				"clientId": %q,
				"title": "offline experience",
				"entries": {
					"edges": [
						{"node": {"id": "srv-e1", "clientId": %q}}
					]
				}
			}
		}]
	}`, offlineExpID, offlineEntryID)

	syncer, cache := newSyncerWithTransport(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/sync/upload", req.URL.Path)
		return jsonResponse(http.StatusOK, respBody), nil
	})

	require.NoError(t, cache.HydrateExperiences([]*ebnis.Experience{
		{
			ID:    offlineExpID,
			Title: "offline experience",
			Entries: &ebnis.EntryConnection{
				Edges: []*ebnis.EntryEdge{
					{Node: &ebnis.Entry{ID: offlineEntryID, ExperienceID: offlineExpID}},
				},
			},
		},
	}))

	outstanding, err := syncer.UploadOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, outstanding)

	// The list position now carries the server identity.
	listed := cache.Mini.List()
	require.Len(t, listed, 1)
	require.Equal(t, "srv-1", listed[0].ID)
	require.Nil(t, cache.Mini.Get(offlineExpID))

	merged, err := cache.ReadExperienceFragment("srv-1")
	require.NoError(t, err)
	require.NotNil(t, merged)
	require.Equal(t, "srv-e1", merged.Entries.Edges[0].Node.ID)

	// The offline records are gone and nothing counts as unsaved anymore.
	old, err := cache.ReadExperienceFragment(offlineExpID)
	require.NoError(t, err)
	require.Nil(t, old)
	require.Equal(t, 0, cache.Projection.TotalUnsaved())
}

func TestUploadOnceSurfacesTransportError(t *testing.T) {
	syncer, cache := newSyncerWithTransport(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `boom`), nil
	})
	require.NoError(t, cache.HydrateExperiences([]*ebnis.Experience{
		{ID: ebnis.NewOfflineID(), Title: "t"},
	}))

	_, err := syncer.UploadOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "upload pass failed")
}

func TestBuildUpdateRequest(t *testing.T) {
	syncer, cache := newSyncerWithTransport(t, nil)

	offlineEntryID := ebnis.NewOfflineID()
	require.NoError(t, cache.HydrateExperiences([]*ebnis.Experience{
		{
			ID:          "exp1",
			Title:       "edited title",
			Description: "untouched",
			DataDefinitions: []*ebnis.DataDefinition{
				{ID: "d1", Name: "renamed", Type: ebnis.Integer},
				{ID: "d2", Name: "untouched", Type: ebnis.Date},
			},
			Entries: &ebnis.EntryConnection{
				Edges: []*ebnis.EntryEdge{
					{Node: &ebnis.Entry{
						ID:           offlineEntryID,
						ExperienceID: "exp1",
					}},
					{Node: &ebnis.Entry{
						ID: "e1",
						DataObjects: []*ebnis.DataObject{
							{ID: "o1", DefinitionID: "d1", Data: json.RawMessage(`"5"`)},
							{ID: "o2", DefinitionID: "d2", Data: json.RawMessage(`"x"`)},
						},
					}},
				},
			},
		},
	}))
	cache.Unsynced.Write("exp1", &ebnis.UnsyncedModifiedExperience{
		OwnFields:   ebnis.KeySet{"title": true},
		Definitions: map[string]ebnis.KeySet{"d1": {"name": true}},
		NewEntries:  true,
		ModifiedEntries: map[string]ebnis.KeySet{
			"e1": {"o1": true},
		},
	})

	// Offline experiences never appear in the update request.
	cache.Unsynced.Write(ebnis.NewOfflineID(), &ebnis.UnsyncedModifiedExperience{
		OwnFields: ebnis.KeySet{"title": true},
	})

	req := syncer.BuildUpdateRequest()
	require.Len(t, req.Input, 1)
	input := req.Input[0]
	require.Equal(t, "exp1", input.ExperienceID)

	// Only the edited own field rides along.
	require.NotNil(t, input.OwnFields)
	require.Equal(t, "edited title", *input.OwnFields.Title)
	require.Nil(t, input.OwnFields.Description)

	require.Equal(t, []ebnis.UpdateDefinitionInput{
		{ID: "d1", Name: "renamed", Type: ebnis.Integer},
	}, input.UpdateDefinitions)

	require.Len(t, input.AddEntries, 1)
	require.Equal(t, offlineEntryID, input.AddEntries[0].ClientID)

	require.Len(t, input.UpdateEntries, 1)
	require.Equal(t, "e1", input.UpdateEntries[0].EntryID)
	require.Equal(t, []ebnis.UpdateDataObjectInput{
		{ID: "o1", Data: json.RawMessage(`"5"`)},
	}, input.UpdateEntries[0].DataObjects)
}

func TestUpdateOnceNothingPending(t *testing.T) {
	syncer, _ := newSyncerWithTransport(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected with an empty ledger")
		return nil, nil
	})

	require.NoError(t, syncer.UpdateOnce(context.Background(), func() {
		t.Fatal("onDone must not run without a response")
	}))
}

func TestUpdateOnceAppliesResult(t *testing.T) {
	respBody := `{
		"__typename": "UpdateExperiencesSomeSuccess",
		"experiences": [{
			"__typename": "UpdateExperienceSomeSuccess",
			"experience": {
				"experienceId": "exp1",
				"ownFields": {
					"__typename": "ExperienceOwnFieldsSuccess",
					"data": {"title": "server title"}
				}
			}
		}]
	}`

	syncer, cache := newSyncerWithTransport(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "/sync/update-experiences", req.URL.Path)
		return jsonResponse(http.StatusOK, respBody), nil
	})

	require.NoError(t, cache.HydrateExperiences([]*ebnis.Experience{
		{ID: "exp1", Title: "local title"},
	}))
	cache.Unsynced.Write("exp1", &ebnis.UnsyncedModifiedExperience{
		OwnFields: ebnis.KeySet{"title": true},
	})

	done := 0
	require.NoError(t, syncer.UpdateOnce(context.Background(), func() { done++ }))
	require.Equal(t, 1, done)

	merged, err := cache.ReadExperienceFragment("exp1")
	require.NoError(t, err)
	require.Equal(t, "server title", merged.Title)
	require.Equal(t, ebnis.HasUnsavedNone, merged.HasUnsaved)
	require.False(t, cache.Unsynced.Has("exp1"))
}
