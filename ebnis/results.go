// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebnis

import (
	"encoding/json"
	"fmt"
)

// Server outcomes arrive as tagged unions discriminated by __typename. Each
// union is modeled as a closed interface so reconcilers switch exhaustively
// over the variants; anything the client does not recognize decodes into
// *UnknownResult, which every reconciler treats as a deliberate no-op. The
// reconcilers must stay total over schema drift instead of crashing the UI.

// Wire discriminators.
const (
	TypenameUpdateExperiencesAllFail     = "UpdateExperiencesAllFail"
	TypenameUpdateExperiencesSomeSuccess = "UpdateExperiencesSomeSuccess"
	TypenameUpdateExperienceSomeSuccess  = "UpdateExperienceSomeSuccess"
	TypenameUpdateExperienceErrors       = "UpdateExperienceErrors"
	TypenameOwnFieldsSuccess             = "ExperienceOwnFieldsSuccess"
	TypenameOwnFieldsErrors              = "UpdateExperienceOwnFieldsErrors"
	TypenameDefinitionSuccess            = "DefinitionSuccess"
	TypenameDefinitionErrors             = "DefinitionErrors"
	TypenameCreateEntrySuccess           = "CreateEntrySuccess"
	TypenameCreateEntryErrors            = "CreateEntryErrors"
	TypenameUpdateEntrySomeSuccess       = "UpdateEntrySomeSuccess"
	TypenameUpdateEntryErrors            = "UpdateEntryErrors"
	TypenameDataObjectSuccess            = "DataObjectSuccess"
	TypenameDataObjectErrors             = "DataObjectErrors"
)

// UpdateExperiencesResult is the top-level outcome of the batched
// "update experiences" mutation.
type UpdateExperiencesResult interface{ updateExperiencesResult() }

// UpdateExperiencesAllFail means the whole batch was rejected with no
// per-item detail.
type UpdateExperiencesAllFail struct {
	Error string `json:"error,omitempty"`
}

// UpdateExperiencesSomeSuccess carries one tagged outcome per submitted
// experience.
type UpdateExperiencesSomeSuccess struct {
	Experiences []UpdateExperienceResult
}

// UpdateExperienceResult is the per-experience outcome inside a
// some-success batch.
type UpdateExperienceResult interface{ updateExperienceResult() }

// UpdateExperienceErrors is an opaque per-experience failure; its content is
// surfaced by the error-display layer, not consumed here.
type UpdateExperienceErrors struct {
	Errors json.RawMessage `json:"errors,omitempty"`
}

// UpdateExperienceSomeSuccess carries the per-section outcomes for one
// experience.
type UpdateExperienceSomeSuccess struct {
	Experience UpdatedExperience `json:"experience"`
}

// UpdatedExperience groups the optional per-section outcomes of one
// experience update.
type UpdatedExperience struct {
	ExperienceID       string
	UpdatedAt          string
	OwnFields          OwnFieldsResult
	UpdatedDefinitions []DefinitionResult
	NewEntries         []CreateEntryResult
	UpdatedEntries     []UpdateEntryResult
}

// OwnFieldsResult is the outcome for the experience's own title/description
// edit.
type OwnFieldsResult interface{ ownFieldsResult() }

// ExperienceOwnFieldsSuccess carries the accepted subset of own fields.
type ExperienceOwnFieldsSuccess struct {
	Data ExperienceOwnFields `json:"data"`
}

// ExperienceOwnFields is the subset of title/description the server
// confirmed. Nil pointers mean the field was not part of the edit.
type ExperienceOwnFields struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// OwnFieldsErrors is an opaque own-fields failure.
type OwnFieldsErrors struct {
	Errors json.RawMessage `json:"errors,omitempty"`
}

// DefinitionResult is the outcome for one updated data definition.
type DefinitionResult interface{ definitionResult() }

// DefinitionSuccess carries the server's view of the updated definition.
type DefinitionSuccess struct {
	Definition DataDefinition `json:"definition"`
}

// DefinitionErrors is an opaque definition failure. ID is extracted from the
// error payload when present so id-keyed alignment can still skip the right
// slot.
type DefinitionErrors struct {
	ID     string          `json:"-"`
	Errors json.RawMessage `json:"errors,omitempty"`
}

// CreateEntryResult is the outcome for one offline-created entry upload.
type CreateEntryResult interface{ createEntryResult() }

// CreateEntrySuccess carries the server-assigned entry; Entry.ClientID
// correlates it with the offline placeholder.
type CreateEntrySuccess struct {
	Entry Entry `json:"entry"`
}

// CreateEntryErrors is an opaque entry creation failure.
type CreateEntryErrors struct {
	Errors json.RawMessage `json:"errors,omitempty"`
}

// UpdateEntryResult is the outcome for one edited entry.
type UpdateEntryResult interface{ updateEntryResult() }

// UpdateEntrySomeSuccess carries per-data-object outcomes for one entry.
type UpdateEntrySomeSuccess struct {
	Entry UpdatedEntry `json:"entry"`
}

// UpdatedEntry identifies the edited entry and its per-data-object results.
type UpdatedEntry struct {
	EntryID     string
	UpdatedAt   string
	DataObjects []DataObjectResult
}

// UpdateEntryErrors is a whole-entry failure; none of its data objects were
// applied.
type UpdateEntryErrors struct {
	Errors json.RawMessage `json:"errors,omitempty"`
}

// DataObjectResult is the outcome for one data object of an edited entry.
type DataObjectResult interface{ dataObjectResult() }

// DataObjectSuccess carries the confirmed data object.
type DataObjectSuccess struct {
	DataObject DataObject `json:"dataObject"`
}

// DataObjectErrors is an opaque data object failure.
type DataObjectErrors struct {
	Errors json.RawMessage `json:"errors,omitempty"`
}

// UnknownResult is the decode target for any discriminator this client does
// not recognize. It satisfies every union so schema drift degrades to a
// skipped item instead of a decode error.
type UnknownResult struct {
	Typename string
	Raw      json.RawMessage
}

func (*UpdateExperiencesAllFail) updateExperiencesResult()     {}
func (*UpdateExperiencesSomeSuccess) updateExperiencesResult() {}
func (*UnknownResult) updateExperiencesResult()                {}

func (*UpdateExperienceSomeSuccess) updateExperienceResult() {}
func (*UpdateExperienceErrors) updateExperienceResult()      {}
func (*UnknownResult) updateExperienceResult()               {}

func (*ExperienceOwnFieldsSuccess) ownFieldsResult() {}
func (*OwnFieldsErrors) ownFieldsResult()            {}
func (*UnknownResult) ownFieldsResult()              {}

func (*DefinitionSuccess) definitionResult() {}
func (*DefinitionErrors) definitionResult()  {}
func (*UnknownResult) definitionResult()     {}

func (*CreateEntrySuccess) createEntryResult() {}
func (*CreateEntryErrors) createEntryResult()  {}
func (*UnknownResult) createEntryResult()      {}

func (*UpdateEntrySomeSuccess) updateEntryResult() {}
func (*UpdateEntryErrors) updateEntryResult()      {}
func (*UnknownResult) updateEntryResult()          {}

func (*DataObjectSuccess) dataObjectResult() {}
func (*DataObjectErrors) dataObjectResult()  {}
func (*UnknownResult) dataObjectResult()     {}

type typenameProbe struct {
	Typename string `json:"__typename"`
}

func probeTypename(data []byte) (string, error) {
	var p typenameProbe
	if err := json.Unmarshal(data, &p); err != nil {
		return "", err
	}
	return p.Typename, nil
}

// UnmarshalUpdateExperiencesResult decodes the top-level update mutation
// outcome.
func UnmarshalUpdateExperiencesResult(data []byte) (UpdateExperiencesResult, error) {
	tn, err := probeTypename(data)
	if err != nil {
		return nil, fmt.Errorf("failed to probe update result typename: %w", err)
	}
	switch tn {
	case TypenameUpdateExperiencesAllFail:
		var v UpdateExperiencesAllFail
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode all-fail result: %w", err)
		}
		return &v, nil
	case TypenameUpdateExperiencesSomeSuccess:
		var raw struct {
			Experiences []json.RawMessage `json:"experiences"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode some-success result: %w", err)
		}
		out := &UpdateExperiencesSomeSuccess{}
		for _, item := range raw.Experiences {
			res, err := unmarshalUpdateExperienceResult(item)
			if err != nil {
				return nil, err
			}
			out.Experiences = append(out.Experiences, res)
		}
		return out, nil
	default:
		return &UnknownResult{Typename: tn, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func unmarshalUpdateExperienceResult(data []byte) (UpdateExperienceResult, error) {
	tn, err := probeTypename(data)
	if err != nil {
		return nil, fmt.Errorf("failed to probe experience result typename: %w", err)
	}
	switch tn {
	case TypenameUpdateExperienceSomeSuccess:
		var raw struct {
			Experience json.RawMessage `json:"experience"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode experience some-success: %w", err)
		}
		exp, err := unmarshalUpdatedExperience(raw.Experience)
		if err != nil {
			return nil, err
		}
		return &UpdateExperienceSomeSuccess{Experience: *exp}, nil
	case TypenameUpdateExperienceErrors:
		var v UpdateExperienceErrors
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode experience errors: %w", err)
		}
		return &v, nil
	default:
		return &UnknownResult{Typename: tn, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func unmarshalUpdatedExperience(data []byte) (*UpdatedExperience, error) {
	if len(data) == 0 {
		return &UpdatedExperience{}, nil
	}
	var raw struct {
		ExperienceID       string            `json:"experienceId"`
		UpdatedAt          string            `json:"updatedAt"`
		OwnFields          json.RawMessage   `json:"ownFields"`
		UpdatedDefinitions []json.RawMessage `json:"updatedDefinitions"`
		NewEntries         []json.RawMessage `json:"newEntries"`
		UpdatedEntries     []json.RawMessage `json:"updatedEntries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode updated experience: %w", err)
	}
	out := &UpdatedExperience{ExperienceID: raw.ExperienceID, UpdatedAt: raw.UpdatedAt}
	if len(raw.OwnFields) > 0 && string(raw.OwnFields) != "null" {
		of, err := unmarshalOwnFieldsResult(raw.OwnFields)
		if err != nil {
			return nil, err
		}
		out.OwnFields = of
	}
	for _, item := range raw.UpdatedDefinitions {
		dr, err := unmarshalDefinitionResult(item)
		if err != nil {
			return nil, err
		}
		out.UpdatedDefinitions = append(out.UpdatedDefinitions, dr)
	}
	for _, item := range raw.NewEntries {
		ce, err := unmarshalCreateEntryResult(item)
		if err != nil {
			return nil, err
		}
		out.NewEntries = append(out.NewEntries, ce)
	}
	for _, item := range raw.UpdatedEntries {
		ue, err := unmarshalUpdateEntryResult(item)
		if err != nil {
			return nil, err
		}
		out.UpdatedEntries = append(out.UpdatedEntries, ue)
	}
	return out, nil
}

func unmarshalOwnFieldsResult(data []byte) (OwnFieldsResult, error) {
	tn, err := probeTypename(data)
	if err != nil {
		return nil, fmt.Errorf("failed to probe own-fields typename: %w", err)
	}
	switch tn {
	case TypenameOwnFieldsSuccess:
		var v ExperienceOwnFieldsSuccess
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode own-fields success: %w", err)
		}
		return &v, nil
	case TypenameOwnFieldsErrors:
		var v OwnFieldsErrors
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode own-fields errors: %w", err)
		}
		return &v, nil
	default:
		return &UnknownResult{Typename: tn, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func unmarshalDefinitionResult(data []byte) (DefinitionResult, error) {
	tn, err := probeTypename(data)
	if err != nil {
		return nil, fmt.Errorf("failed to probe definition typename: %w", err)
	}
	switch tn {
	case TypenameDefinitionSuccess:
		var v DefinitionSuccess
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode definition success: %w", err)
		}
		return &v, nil
	case TypenameDefinitionErrors:
		var v DefinitionErrors
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode definition errors: %w", err)
		}
		var meta struct {
			Errors struct {
				ID string `json:"id"`
			} `json:"errors"`
		}
		if err := json.Unmarshal(data, &meta); err == nil {
			v.ID = meta.Errors.ID
		}
		return &v, nil
	default:
		return &UnknownResult{Typename: tn, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func unmarshalCreateEntryResult(data []byte) (CreateEntryResult, error) {
	tn, err := probeTypename(data)
	if err != nil {
		return nil, fmt.Errorf("failed to probe create-entry typename: %w", err)
	}
	switch tn {
	case TypenameCreateEntrySuccess:
		var v CreateEntrySuccess
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode create-entry success: %w", err)
		}
		return &v, nil
	case TypenameCreateEntryErrors:
		var v CreateEntryErrors
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode create-entry errors: %w", err)
		}
		return &v, nil
	default:
		return &UnknownResult{Typename: tn, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func unmarshalUpdateEntryResult(data []byte) (UpdateEntryResult, error) {
	tn, err := probeTypename(data)
	if err != nil {
		return nil, fmt.Errorf("failed to probe update-entry typename: %w", err)
	}
	switch tn {
	case TypenameUpdateEntrySomeSuccess:
		var raw struct {
			Entry struct {
				EntryID     string            `json:"entryId"`
				UpdatedAt   string            `json:"updatedAt"`
				DataObjects []json.RawMessage `json:"dataObjects"`
			} `json:"entry"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode update-entry success: %w", err)
		}
		out := UpdatedEntry{EntryID: raw.Entry.EntryID, UpdatedAt: raw.Entry.UpdatedAt}
		for _, item := range raw.Entry.DataObjects {
			dr, err := unmarshalDataObjectResult(item)
			if err != nil {
				return nil, err
			}
			out.DataObjects = append(out.DataObjects, dr)
		}
		return &UpdateEntrySomeSuccess{Entry: out}, nil
	// The server has emitted both spellings at different schema versions.
	case TypenameUpdateEntryErrors, "UpdateEntryError":
		var v UpdateEntryErrors
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode update-entry errors: %w", err)
		}
		return &v, nil
	default:
		return &UnknownResult{Typename: tn, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func unmarshalDataObjectResult(data []byte) (DataObjectResult, error) {
	tn, err := probeTypename(data)
	if err != nil {
		return nil, fmt.Errorf("failed to probe data-object typename: %w", err)
	}
	switch tn {
	case TypenameDataObjectSuccess:
		var v DataObjectSuccess
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode data-object success: %w", err)
		}
		return &v, nil
	case TypenameDataObjectErrors:
		var v DataObjectErrors
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode data-object errors: %w", err)
		}
		return &v, nil
	default:
		return &UnknownResult{Typename: tn, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
