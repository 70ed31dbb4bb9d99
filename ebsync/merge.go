// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"github.com/callmiy/ebnis-fe/ebnis"
)

// NewUnsavedItem starts a sync item for an experience that was itself
// created offline. Every entry under it is by definition unsaved.
func NewUnsavedItem(exp *ebnis.Experience) *ExperienceSyncItem {
	item := &ExperienceSyncItem{
		Experience:    exp,
		EntriesErrors: map[string]string{},
	}
	if exp.Entries != nil {
		for _, edge := range exp.Entries.Edges {
			if edge.Node != nil {
				item.UnsavedEntries = append(item.UnsavedEntries, edge.Node)
			}
		}
	}
	return item
}

// NewSavedItem starts a sync item for a server-known experience,
// partitioning its entries into saved and still-offline.
func NewSavedItem(exp *ebnis.Experience) *ExperienceSyncItem {
	item := &ExperienceSyncItem{
		Experience:    exp,
		EntriesErrors: map[string]string{},
	}
	if exp.Entries != nil {
		for _, edge := range exp.Entries.Edges {
			if edge.Node == nil {
				continue
			}
			if ebnis.IsOfflineID(edge.Node.ID) {
				item.UnsavedEntries = append(item.UnsavedEntries, edge.Node)
			} else {
				item.SavedEntries = append(item.SavedEntries, edge.Node)
			}
		}
	}
	return item
}

// BuildUploadRequest converts the two sync-item maps into the batched
// upload call body. Offline experiences are serialized whole; saved
// experiences contribute only their unsaved entries. Items are emitted in
// sorted key order so a response can be correlated positionally when it
// carries no client ids.
func BuildUploadRequest(unsavedMap, savedMap SyncItemMap) ebnis.UploadRequest {
	var req ebnis.UploadRequest

	for _, id := range sortedIDs(unsavedMap) {
		item := unsavedMap[id]
		exp := item.Experience
		input := ebnis.CreateExperienceInput{
			ClientID:    exp.ID,
			Title:       exp.Title,
			Description: exp.Description,
			InsertedAt:  exp.InsertedAt,
			UpdatedAt:   exp.UpdatedAt,
		}
		for _, def := range exp.DataDefinitions {
			input.DataDefinitions = append(input.DataDefinitions, ebnis.DataDefinitionInput{
				ClientID: def.ID,
				Name:     def.Name,
				Type:     def.Type,
			})
		}
		for _, entry := range item.UnsavedEntries {
			input.Entries = append(input.Entries, entryToInput(entry))
		}
		req.Input = append(req.Input, input)
	}

	for _, id := range sortedIDs(savedMap) {
		item := savedMap[id]
		if len(item.UnsavedEntries) == 0 {
			continue
		}
		group := ebnis.CreateEntriesInput{ExperienceID: id}
		for _, entry := range item.UnsavedEntries {
			group.Entries = append(group.Entries, entryToInput(entry))
		}
		req.CreateEntries = append(req.CreateEntries, group)
	}

	return req
}

// entryToInput serializes one offline entry for upload. The entry's offline
// id doubles as the upload clientId so the server's reply can be matched
// back to it.
func entryToInput(entry *ebnis.Entry) ebnis.CreateEntryInput {
	clientID := entry.ClientID
	if clientID == "" {
		clientID = entry.ID
	}
	input := ebnis.CreateEntryInput{
		ClientID:     clientID,
		ExperienceID: entry.ExperienceID,
		InsertedAt:   entry.InsertedAt,
		UpdatedAt:    entry.UpdatedAt,
	}
	for _, obj := range entry.DataObjects {
		input.DataObjects = append(input.DataObjects, ebnis.DataObjectInput{
			ClientID:     obj.ID,
			DefinitionID: obj.DefinitionID,
			Data:         obj.Data,
		})
	}
	return input
}

// MergeUploadResponse folds the server's reply into the sync items that
// produced the request, filling in NewlySavedExperience, NewlySavedEntries
// and EntriesErrors. Items the response never mentions are left untouched,
// which the reconciler treats as a wholesale failure for that item.
func MergeUploadResponse(unsavedMap, savedMap SyncItemMap, resp *ebnis.UploadResponse) {
	if resp == nil {
		return
	}

	requestOrder := sortedIDs(unsavedMap)
	for i, result := range resp.SaveOfflineExperiences {
		if result == nil {
			continue
		}
		item := correlateOffline(unsavedMap, requestOrder, i, result)
		if item == nil {
			continue
		}
		if result.Experience != nil {
			item.NewlySavedExperience = result.Experience
			collectNewlySavedEntries(item)
		}
		for _, entryErr := range result.EntriesErrors {
			if entryErr.ClientID != "" {
				item.EntriesErrors[entryErr.ClientID] = string(entryErr.Errors)
			}
		}
	}

	for _, result := range resp.CreateEntries {
		if result == nil {
			continue
		}
		item := savedMap[result.ExperienceID]
		if item == nil {
			continue
		}
		item.NewlySavedEntries = append(item.NewlySavedEntries, result.Entries...)
		for _, entryErr := range result.Errors {
			if entryErr.ClientID != "" {
				item.EntriesErrors[entryErr.ClientID] = string(entryErr.Errors)
			}
		}
	}
}

// correlateOffline finds the sync item an offline-experience result belongs
// to: by the returned experience's clientId when present, by the error's
// clientId or index otherwise.
func correlateOffline(unsavedMap SyncItemMap, requestOrder []string, position int, result *ebnis.OfflineExperienceResult) *ExperienceSyncItem {
	if result.Experience != nil && result.Experience.ClientID != "" {
		if item, ok := unsavedMap[result.Experience.ClientID]; ok {
			return item
		}
	}
	if result.ExperienceErrors != nil {
		if item, ok := unsavedMap[result.ExperienceErrors.ClientID]; ok {
			return item
		}
		if idx := result.ExperienceErrors.Index; idx >= 0 && idx < len(requestOrder) {
			return unsavedMap[requestOrder[idx]]
		}
	}
	if position < len(requestOrder) {
		return unsavedMap[requestOrder[position]]
	}
	return nil
}

// collectNewlySavedEntries derives the per-entry successes of an offline
// experience from the saved aggregate's entry connection: any returned node
// whose clientId matches a submitted unsaved entry was accepted.
func collectNewlySavedEntries(item *ExperienceSyncItem) {
	saved := item.NewlySavedExperience
	if saved == nil || saved.Entries == nil {
		return
	}
	submitted := make(map[string]bool, len(item.UnsavedEntries))
	for _, entry := range item.UnsavedEntries {
		submitted[entry.ID] = true
		if entry.ClientID != "" {
			submitted[entry.ClientID] = true
		}
	}
	for _, edge := range saved.Entries.Edges {
		if edge.Node != nil && submitted[edge.Node.ClientID] {
			item.NewlySavedEntries = append(item.NewlySavedEntries, edge.Node)
		}
	}
}
