// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebnis

import "encoding/json"

// Wire shapes of the batched "save offline experiences" call. The call has
// two halves: offline-created experiences are uploaded whole, and offline
// entries of already-saved experiences are uploaded per experience.

// CreateExperienceInput is the upload form of an offline-created experience.
type CreateExperienceInput struct {
	ClientID        string                `json:"clientId,omitempty"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	DataDefinitions []DataDefinitionInput `json:"dataDefinitions"`
	Entries         []CreateEntryInput    `json:"entries,omitempty"`
	InsertedAt      string                `json:"insertedAt,omitempty"`
	UpdatedAt       string                `json:"updatedAt,omitempty"`
}

// DataDefinitionInput is the upload form of a field definition.
type DataDefinitionInput struct {
	ClientID string   `json:"clientId,omitempty"`
	Name     string   `json:"name"`
	Type     DataType `json:"type"`
}

// CreateEntryInput is the upload form of an offline-created entry.
type CreateEntryInput struct {
	ClientID     string            `json:"clientId,omitempty"`
	ExperienceID string            `json:"experienceId,omitempty"`
	DataObjects  []DataObjectInput `json:"dataObjects"`
	InsertedAt   string            `json:"insertedAt,omitempty"`
	UpdatedAt    string            `json:"updatedAt,omitempty"`
}

// DataObjectInput is the upload form of a single field value.
type DataObjectInput struct {
	ClientID     string          `json:"clientId,omitempty"`
	DefinitionID string          `json:"definitionId"`
	Data         json.RawMessage `json:"data"`
}

// UploadRequest is the batched upload call body.
type UploadRequest struct {
	// Experiences created offline, uploaded whole with their entries.
	Input []CreateExperienceInput `json:"input,omitempty"`

	// Entries created offline against already-saved experiences, grouped by
	// experience id.
	CreateEntries []CreateEntriesInput `json:"createEntries,omitempty"`
}

// CreateEntriesInput groups offline entries of one saved experience.
type CreateEntriesInput struct {
	ExperienceID string             `json:"experienceId"`
	Entries      []CreateEntryInput `json:"entries"`
}

// UploadResponse is the server reply to an UploadRequest.
type UploadResponse struct {
	SaveOfflineExperiences []*OfflineExperienceResult `json:"saveOfflineExperiences,omitempty"`
	CreateEntries          []*CreateEntriesResult     `json:"createEntries,omitempty"`
}

// OfflineExperienceResult is the per-experience outcome of uploading an
// offline-created experience. Exactly one of Experience/ExperienceErrors is
// set; EntriesErrors lists the child entries that failed even though the
// experience itself saved.
type OfflineExperienceResult struct {
	Experience       *Experience            `json:"experience,omitempty"`
	ExperienceErrors *OfflineExperienceError `json:"experienceErrors,omitempty"`
	EntriesErrors    []CreateEntriesError   `json:"entriesErrors,omitempty"`
}

// OfflineExperienceError describes why an offline experience failed to save.
// ClientID may be empty, in which case Index identifies the failing input.
type OfflineExperienceError struct {
	ClientID string          `json:"clientId,omitempty"`
	Index    int             `json:"index"`
	Errors   json.RawMessage `json:"errors,omitempty"`
}

// CreateEntriesResult is the outcome of uploading the offline entries of one
// saved experience.
type CreateEntriesResult struct {
	ExperienceID string               `json:"experienceId"`
	Entries      []*Entry             `json:"entries,omitempty"`
	Errors       []CreateEntriesError `json:"errors,omitempty"`
}

// CreateEntriesError identifies one entry that failed to save, keyed by the
// client id the entry was uploaded under.
type CreateEntriesError struct {
	ExperienceID string          `json:"experienceId,omitempty"`
	ClientID     string          `json:"clientId"`
	Errors       json.RawMessage `json:"errors,omitempty"`
}
