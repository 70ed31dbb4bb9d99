// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/callmiy/ebnis-fe/ebcache"
	"github.com/callmiy/ebnis-fe/ebnis"
)

// Syncer runs whole sync passes over a cache: it decides what is pending,
// submits it, and hands the response to the reconcilers. It is the function
// the background scheduler retries.
type Syncer struct {
	cache  *ebcache.Cache
	client *Client
	logger *slog.Logger

	upload *UploadReconciler
	update *UpdateReconciler
}

// NewSyncer wires a syncer over the given cache and transport. A nil
// logger falls back to slog.Default().
func NewSyncer(cache *ebcache.Cache, client *Client, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		cache:  cache,
		client: client,
		logger: logger,
		upload: NewUploadReconciler(cache, logger),
		update: NewUpdateReconciler(cache, logger),
	}
}

// CollectPending partitions the cached experiences into the two sync-item
// maps: offline-created experiences, and server-known experiences that have
// offline entries. Experiences with neither are left out.
func (s *Syncer) CollectPending() (unsavedMap, savedMap SyncItemMap) {
	unsavedMap = SyncItemMap{}
	savedMap = SyncItemMap{}

	for _, summary := range s.cache.Mini.List() {
		exp, err := s.cache.ReadExperienceFragment(summary.ID)
		if err != nil {
			s.logger.Warn("skipping unreadable experience",
				"experience_id", summary.ID, "error", err)
			continue
		}
		if exp == nil {
			exp = summary
		}
		if ebnis.IsOfflineID(exp.ID) {
			unsavedMap[exp.ID] = NewUnsavedItem(exp)
			continue
		}
		item := NewSavedItem(exp)
		if len(item.UnsavedEntries) > 0 {
			savedMap[exp.ID] = item
		}
	}
	return unsavedMap, savedMap
}

// UploadOnce runs one full upload pass and returns the number of entries
// still pending afterwards. With nothing pending it is a no-op returning 0.
func (s *Syncer) UploadOnce(ctx context.Context) (int, error) {
	unsavedMap, savedMap := s.CollectPending()
	if len(unsavedMap) == 0 && len(savedMap) == 0 {
		return 0, nil
	}

	req := BuildUploadRequest(unsavedMap, savedMap)
	resp, err := s.client.UploadOffline(ctx, &req)
	if err != nil {
		return 0, fmt.Errorf("upload pass failed: %w", err)
	}

	MergeUploadResponse(unsavedMap, savedMap, resp)
	return s.upload.UpdateCache(unsavedMap, savedMap)
}

// UpdateOnce submits every pending ledger edit and reconciles the outcome.
// onDone, if non-nil, runs once after a some-success response is applied.
func (s *Syncer) UpdateOnce(ctx context.Context, onDone func()) error {
	req := s.BuildUpdateRequest()
	if len(req.Input) == 0 {
		return nil
	}

	result, err := s.client.UpdateExperiences(ctx, &req)
	if err != nil {
		return fmt.Errorf("update pass failed: %w", err)
	}
	s.update.ApplyResult(result, onDone)
	return nil
}

// BuildUpdateRequest converts every ledger entry into the update-mutation
// input for its experience, reading the current cached values of the fields
// the ledger marks pending.
func (s *Syncer) BuildUpdateRequest() ebnis.UpdateExperiencesRequest {
	var req ebnis.UpdateExperiencesRequest

	ids := s.cache.Unsynced.IDs()
	sort.Strings(ids)
	for _, id := range ids {
		if ebnis.IsOfflineID(id) {
			// The experience itself has not saved yet; its edits ride along
			// with the upload pass instead.
			continue
		}
		unsynced := s.cache.Unsynced.Get(id)
		if unsynced == nil || unsynced.IsEmpty() {
			continue
		}
		exp, err := s.cache.ReadExperienceFragment(id)
		if err != nil || exp == nil {
			s.logger.Warn("ledger names an experience missing from the store",
				"experience_id", id, "error", err)
			continue
		}
		input := buildUpdateInput(exp, unsynced)
		if input != nil {
			req.Input = append(req.Input, *input)
		}
	}
	return req
}

func buildUpdateInput(exp *ebnis.Experience, unsynced *ebnis.UnsyncedModifiedExperience) *ebnis.UpdateExperienceInput {
	input := &ebnis.UpdateExperienceInput{ExperienceID: exp.ID}

	if len(unsynced.OwnFields) > 0 {
		ownFields := &ebnis.OwnFieldsInput{}
		if unsynced.OwnFields["title"] {
			title := exp.Title
			ownFields.Title = &title
		}
		if unsynced.OwnFields["description"] {
			description := exp.Description
			ownFields.Description = &description
		}
		input.OwnFields = ownFields
	}

	if len(unsynced.Definitions) > 0 {
		for _, def := range exp.DataDefinitions {
			if _, pending := unsynced.Definitions[def.ID]; !pending {
				continue
			}
			input.UpdateDefinitions = append(input.UpdateDefinitions, ebnis.UpdateDefinitionInput{
				ID:   def.ID,
				Name: def.Name,
				Type: def.Type,
			})
		}
	}

	if unsynced.NewEntries && exp.Entries != nil {
		for _, edge := range exp.Entries.Edges {
			if edge.Node != nil && ebnis.IsOfflineID(edge.Node.ID) {
				input.AddEntries = append(input.AddEntries, entryToInput(edge.Node))
			}
		}
	}

	if len(unsynced.ModifiedEntries) > 0 && exp.Entries != nil {
		entryIDs := make([]string, 0, len(unsynced.ModifiedEntries))
		for entryID := range unsynced.ModifiedEntries {
			entryIDs = append(entryIDs, entryID)
		}
		sort.Strings(entryIDs)
		for _, entryID := range entryIDs {
			objectIDs := unsynced.ModifiedEntries[entryID]
			entry := findEntry(exp, entryID)
			if entry == nil {
				continue
			}
			entryInput := ebnis.UpdateEntryInput{EntryID: entryID}
			for _, obj := range entry.DataObjects {
				if !objectIDs[obj.ID] {
					continue
				}
				entryInput.DataObjects = append(entryInput.DataObjects, ebnis.UpdateDataObjectInput{
					ID:   obj.ID,
					Data: obj.Data,
				})
			}
			if len(entryInput.DataObjects) > 0 {
				input.UpdateEntries = append(input.UpdateEntries, entryInput)
			}
		}
	}

	if input.OwnFields == nil && len(input.UpdateDefinitions) == 0 &&
		len(input.AddEntries) == 0 && len(input.UpdateEntries) == 0 {
		return nil
	}
	return input
}

func findEntry(exp *ebnis.Experience, entryID string) *ebnis.Entry {
	if exp.Entries == nil {
		return nil
	}
	for _, edge := range exp.Entries.Edges {
		if edge.Node != nil && edge.Node.ID == entryID {
			return edge.Node
		}
	}
	return nil
}
