// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebnis

import "encoding/json"

// Wire shapes of the batched "update experiences" call. Each input mirrors
// one experience's pending ledger state: own-field edits, definition edits,
// offline-created entries and edited data objects.

// UpdateExperienceInput is the per-experience body of an update batch.
type UpdateExperienceInput struct {
	ExperienceID      string                  `json:"experienceId"`
	OwnFields         *OwnFieldsInput         `json:"ownFields,omitempty"`
	UpdateDefinitions []UpdateDefinitionInput `json:"updateDefinitions,omitempty"`
	AddEntries        []CreateEntryInput      `json:"addEntries,omitempty"`
	UpdateEntries     []UpdateEntryInput      `json:"updateEntries,omitempty"`
}

// OwnFieldsInput carries edited title/description values. Nil means the
// field was not edited.
type OwnFieldsInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateDefinitionInput carries the edited fields of one data definition.
type UpdateDefinitionInput struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	Type DataType `json:"type,omitempty"`
}

// UpdateEntryInput carries the edited data objects of one entry.
type UpdateEntryInput struct {
	EntryID     string                  `json:"entryId"`
	DataObjects []UpdateDataObjectInput `json:"dataObjects"`
}

// UpdateDataObjectInput carries one edited field value.
type UpdateDataObjectInput struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt string          `json:"updatedAt,omitempty"`
}

// UpdateExperiencesRequest is the batched update call body.
type UpdateExperiencesRequest struct {
	Input []UpdateExperienceInput `json:"input"`
}
