// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebnis

// Cache typenames used to build normalized record keys ("<TypeName>:<id>").
// Data definitions keep the legacy "FieldDef" typename their cache records
// were first written under.
const (
	ExperienceTypename      = "Experience"
	FieldDefTypename        = "FieldDef"
	EntryTypename           = "Entry"
	EntryEdgeTypename       = "EntryEdge"
	DataObjectTypename      = "DataObject"
	SavedAndUnsavedTypename = "SavedAndUnsavedExperiences"
)

// Names of the client-side mutations whose cached results reference records
// created offline. Deleting such a record must also invalidate these.
const (
	MutationCreateUnsavedExperience = "createUnsavedExperience"
	MutationCreateUnsavedEntry      = "createUnsavedEntry"
)

// Names of cached queries that select individual experiences.
const (
	QueryGetExperience = "getExperience"
)
