// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

// Package ebnis defines the journaling domain model shared by the cache and
// sync layers: Experience aggregates with user-defined field schemas, the
// entries recorded against them, and the wire shapes of the batched server
// mutations that reconcile offline-created data.
package ebnis

import (
	"encoding/json"
	"fmt"
)

// DataType enumerates the value shapes a data definition can take.
type DataType string

const (
	SingleLineText DataType = "SINGLE_LINE_TEXT"
	MultiLineText  DataType = "MULTI_LINE_TEXT"
	Date           DataType = "DATE"
	Datetime       DataType = "DATETIME"
	Integer        DataType = "INTEGER"
	Decimal        DataType = "DECIMAL"
)

// HasUnsaved is the tri-state sync marker carried by an experience record.
// Omitted means the flag was never written for this snapshot, None is the
// explicit JSON null meaning fully synced, True means at least one child
// entity still awaits server confirmation.
type HasUnsaved int8

const (
	HasUnsavedOmitted HasUnsaved = iota
	HasUnsavedNone
	HasUnsavedTrue
)

// IsZero lets the omitzero JSON tag drop the field when it was never set.
func (h HasUnsaved) IsZero() bool { return h == HasUnsavedOmitted }

func (h HasUnsaved) MarshalJSON() ([]byte, error) {
	switch h {
	case HasUnsavedTrue:
		return []byte("true"), nil
	default:
		return []byte("null"), nil
	}
}

func (h *HasUnsaved) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null", "false":
		*h = HasUnsavedNone
	case "true":
		*h = HasUnsavedTrue
	default:
		return fmt.Errorf("invalid hasUnsaved value: %s", data)
	}
	return nil
}

// Experience is the aggregate root: a user-defined record type with its
// field schema and a paginated connection of logged entries. ID is either a
// server-assigned id or an offline id (see IsOfflineID); ClientID correlates
// an offline-created experience with its eventual server identity.
type Experience struct {
	ID              string            `json:"id"`
	ClientID        string            `json:"clientId,omitempty"`
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"description,omitempty"`
	HasUnsaved      HasUnsaved        `json:"hasUnsaved,omitzero"`
	DataDefinitions []*DataDefinition `json:"dataDefinitions,omitempty"`
	Entries         *EntryConnection  `json:"entries,omitempty"`
	InsertedAt      string            `json:"insertedAt,omitempty"`
	UpdatedAt       string            `json:"updatedAt,omitempty"`
}

// DataDefinition is one field of an experience's schema. DataDefinitions
// keep a stable order in the aggregate; that order is the canonical
// alignment when a definition-update result carries no id.
type DataDefinition struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Type     DataType `json:"type,omitempty"`
	ClientID string   `json:"clientId,omitempty"`
}

// EntryConnection is the paginated entry list of an experience.
type EntryConnection struct {
	PageInfo *PageInfo    `json:"pageInfo,omitempty"`
	Edges    []*EntryEdge `json:"edges,omitempty"`
}

// PageInfo carries the pagination flags of an entry connection.
type PageInfo struct {
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// EntryEdge wraps an entry node with its pagination cursor.
type EntryEdge struct {
	Cursor string `json:"cursor"`
	Node   *Entry `json:"node,omitempty"`
}

// Entry is a single journal record conforming to its experience's schema.
// ClientID is set iff the entry was created offline.
type Entry struct {
	ID           string        `json:"id"`
	ClientID     string        `json:"clientId,omitempty"`
	ExperienceID string        `json:"experienceId,omitempty"`
	DataObjects  []*DataObject `json:"dataObjects,omitempty"`
	InsertedAt   string        `json:"insertedAt,omitempty"`
	UpdatedAt    string        `json:"updatedAt,omitempty"`
}

// DataObject is one field value of an entry, back-referencing the data
// definition it satisfies. Data is an opaque serialized scalar whose shape
// depends on the definition's type.
type DataObject struct {
	ID           string          `json:"id"`
	DefinitionID string          `json:"definitionId,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Clone returns a deep copy. Reconcilers merge into copies so that a cached
// snapshot is never mutated in place.
func (e *Experience) Clone() *Experience {
	if e == nil {
		return nil
	}
	out := *e
	if e.DataDefinitions != nil {
		out.DataDefinitions = make([]*DataDefinition, len(e.DataDefinitions))
		for i, d := range e.DataDefinitions {
			out.DataDefinitions[i] = d.Clone()
		}
	}
	out.Entries = e.Entries.Clone()
	return &out
}

// Clone returns a deep copy.
func (d *DataDefinition) Clone() *DataDefinition {
	if d == nil {
		return nil
	}
	out := *d
	return &out
}

// Clone returns a deep copy.
func (c *EntryConnection) Clone() *EntryConnection {
	if c == nil {
		return nil
	}
	out := *c
	if c.PageInfo != nil {
		pi := *c.PageInfo
		out.PageInfo = &pi
	}
	if c.Edges != nil {
		out.Edges = make([]*EntryEdge, len(c.Edges))
		for i, edge := range c.Edges {
			out.Edges[i] = edge.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy.
func (ee *EntryEdge) Clone() *EntryEdge {
	if ee == nil {
		return nil
	}
	out := *ee
	out.Node = ee.Node.Clone()
	return &out
}

// Clone returns a deep copy.
func (en *Entry) Clone() *Entry {
	if en == nil {
		return nil
	}
	out := *en
	if en.DataObjects != nil {
		out.DataObjects = make([]*DataObject, len(en.DataObjects))
		for i, do := range en.DataObjects {
			out.DataObjects[i] = do.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy.
func (do *DataObject) Clone() *DataObject {
	if do == nil {
		return nil
	}
	out := *do
	if do.Data != nil {
		out.Data = append(json.RawMessage(nil), do.Data...)
	}
	return &out
}
