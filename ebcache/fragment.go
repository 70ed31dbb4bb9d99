// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebcache

import (
	"fmt"

	"github.com/callmiy/ebnis-fe/ebnis"
)

// The fragment codec (de)normalizes the Experience aggregate. A stored
// experience record keeps its own fields inline and references its data
// definitions and entries by key, so a child entity has exactly one cached
// copy no matter how many aggregates mention it.

type experienceRecord struct {
	ID              string            `json:"id"`
	ClientID        string            `json:"clientId,omitempty"`
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"description,omitempty"`
	HasUnsaved      ebnis.HasUnsaved  `json:"hasUnsaved,omitzero"`
	InsertedAt      string            `json:"insertedAt,omitempty"`
	UpdatedAt       string            `json:"updatedAt,omitempty"`
	DataDefinitions []string          `json:"dataDefinitions,omitempty"`
	Entries         *connectionRecord `json:"entries,omitempty"`
}

type connectionRecord struct {
	PageInfo *ebnis.PageInfo `json:"pageInfo,omitempty"`
	Edges    []edgeRecord    `json:"edges"`
}

type edgeRecord struct {
	Cursor string `json:"cursor"`
	Node   string `json:"node,omitempty"`
}

// WriteExperienceFragment normalizes exp into the store: one record per data
// definition, one per entry, and the experience record referencing them. A
// bare placeholder node (id only, e.g. a synthetic pending edge) keeps its
// reference without clobbering the full entry record already cached under
// that id.
func (s *Store) WriteExperienceFragment(exp *ebnis.Experience) error {
	if exp == nil || exp.ID == "" {
		return fmt.Errorf("cannot write experience fragment without an id")
	}

	rec := experienceRecord{
		ID:          exp.ID,
		ClientID:    exp.ClientID,
		Title:       exp.Title,
		Description: exp.Description,
		HasUnsaved:  exp.HasUnsaved,
		InsertedAt:  exp.InsertedAt,
		UpdatedAt:   exp.UpdatedAt,
	}

	for _, def := range exp.DataDefinitions {
		if def == nil || def.ID == "" {
			continue
		}
		if err := s.Write(ebnis.FieldDefTypename, def.ID, def); err != nil {
			return err
		}
		rec.DataDefinitions = append(rec.DataDefinitions, Key(ebnis.FieldDefTypename, def.ID))
	}

	if exp.Entries != nil {
		conn := &connectionRecord{PageInfo: exp.Entries.PageInfo, Edges: []edgeRecord{}}
		for _, edge := range exp.Entries.Edges {
			if edge == nil || edge.Node == nil || edge.Node.ID == "" {
				continue
			}
			node := edge.Node
			if !isPlaceholderEntry(node) {
				if err := s.Write(ebnis.EntryTypename, node.ID, node); err != nil {
					return err
				}
			}
			conn.Edges = append(conn.Edges, edgeRecord{
				Cursor: edge.Cursor,
				Node:   Key(ebnis.EntryTypename, node.ID),
			})
		}
		rec.Entries = conn
	}

	return s.Write(ebnis.ExperienceTypename, exp.ID, rec)
}

// isPlaceholderEntry reports whether node carries nothing beyond its id.
func isPlaceholderEntry(node *ebnis.Entry) bool {
	return node.ClientID == "" &&
		node.ExperienceID == "" &&
		len(node.DataObjects) == 0 &&
		node.InsertedAt == "" &&
		node.UpdatedAt == ""
}

// ReadExperienceFragment reassembles the full aggregate for id, or nil when
// the experience record is absent. Dangling child references resolve to
// id-only placeholders so an evicted entry never crashes a read.
func (s *Store) ReadExperienceFragment(id string) (*ebnis.Experience, error) {
	var rec experienceRecord
	ok, err := s.ReadInto(ebnis.ExperienceTypename, id, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	exp := &ebnis.Experience{
		ID:          rec.ID,
		ClientID:    rec.ClientID,
		Title:       rec.Title,
		Description: rec.Description,
		HasUnsaved:  rec.HasUnsaved,
		InsertedAt:  rec.InsertedAt,
		UpdatedAt:   rec.UpdatedAt,
	}

	for _, key := range rec.DataDefinitions {
		_, defID := SplitKey(key)
		def := &ebnis.DataDefinition{ID: defID}
		if _, err := s.ReadInto(ebnis.FieldDefTypename, defID, def); err != nil {
			return nil, err
		}
		exp.DataDefinitions = append(exp.DataDefinitions, def)
	}

	if rec.Entries != nil {
		conn := &ebnis.EntryConnection{PageInfo: rec.Entries.PageInfo, Edges: []*ebnis.EntryEdge{}}
		for _, edge := range rec.Entries.Edges {
			_, entryID := SplitKey(edge.Node)
			node := &ebnis.Entry{ID: entryID}
			if _, err := s.ReadInto(ebnis.EntryTypename, entryID, node); err != nil {
				return nil, err
			}
			conn.Edges = append(conn.Edges, &ebnis.EntryEdge{Cursor: edge.Cursor, Node: node})
		}
		exp.Entries = conn
	}

	return exp, nil
}

// EntryToEdge wraps a freshly created entry in a cursor-less edge for
// insertion into an experience's connection.
func EntryToEdge(entry *ebnis.Entry) *ebnis.EntryEdge {
	return &ebnis.EntryEdge{Cursor: "", Node: entry}
}

// PrependExperienceEntry inserts a new entry at the head of the
// experience's connection and rewrites the aggregate. It returns the merged
// aggregate, or nil when the experience is not cached.
func (s *Store) PrependExperienceEntry(experienceID string, entry *ebnis.Entry) (*ebnis.Experience, error) {
	exp, err := s.ReadExperienceFragment(experienceID)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, nil
	}
	merged := exp.Clone()
	if merged.Entries == nil {
		merged.Entries = &ebnis.EntryConnection{}
	}
	merged.Entries.Edges = append([]*ebnis.EntryEdge{EntryToEdge(entry)}, merged.Entries.Edges...)
	if err := s.WriteExperienceFragment(merged); err != nil {
		return nil, err
	}
	return merged, nil
}
