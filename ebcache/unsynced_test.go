// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/callmiy/ebnis-fe/ebnis"
)

func TestLedgerGetReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.Write("exp1", &ebnis.UnsyncedModifiedExperience{
		OwnFields: ebnis.KeySet{"title": true},
	})

	got := l.Get("exp1")
	require.NotNil(t, got)

	// Pruning the copy must not change the stored entry.
	delete(got.OwnFields, "title")
	require.True(t, l.Get("exp1").OwnFields["title"])

	require.Nil(t, l.Get("missing"))
}

func TestLedgerWriteReplacesWholesale(t *testing.T) {
	l := NewLedger()
	l.Write("exp1", &ebnis.UnsyncedModifiedExperience{
		OwnFields:  ebnis.KeySet{"title": true},
		NewEntries: true,
	})
	l.Write("exp1", &ebnis.UnsyncedModifiedExperience{
		Definitions: map[string]ebnis.KeySet{"d1": {"name": true}},
	})

	got := l.Get("exp1")
	require.Empty(t, got.OwnFields)
	require.False(t, got.NewEntries)
	require.True(t, got.Definitions["d1"]["name"])

	// Nil writes are ignored; Remove is the deletion operation.
	l.Write("exp1", nil)
	require.True(t, l.Has("exp1"))

	l.Remove("exp1")
	require.False(t, l.Has("exp1"))
}

func TestLedgerIDsSorted(t *testing.T) {
	l := NewLedger()
	l.Write("b", &ebnis.UnsyncedModifiedExperience{NewEntries: true})
	l.Write("a", &ebnis.UnsyncedModifiedExperience{NewEntries: true})
	require.Equal(t, []string{"a", "b"}, l.IDs())
}

func TestProjectionIncrementSeedsByIDKind(t *testing.T) {
	p := NewProjection()

	// A server-known experience's first offline entry counts immediately.
	p.IncrementUnsavedCount("exp1")
	row, ok := p.Get("exp1")
	require.True(t, ok)
	require.Equal(t, 1, row.UnsavedEntriesCount)

	// An offline experience seeds at 0: its entries only count once the
	// experience itself saves.
	offlineID := ebnis.NewOfflineID()
	p.IncrementUnsavedCount(offlineID)
	row, ok = p.Get(offlineID)
	require.True(t, ok)
	require.Equal(t, 0, row.UnsavedEntriesCount)

	p.IncrementUnsavedCount("exp1")
	require.Equal(t, 2, p.TotalUnsaved())
}

func TestProjectionWriteAndDelete(t *testing.T) {
	p := NewProjection()
	p.Write([]ebnis.SavedAndUnsavedExperience{
		ebnis.NewSavedAndUnsavedExperience("exp1", 2),
		ebnis.NewSavedAndUnsavedExperience("exp2", 1),
	})
	require.Equal(t, 3, p.TotalUnsaved())

	p.DeleteIDs([]string{"exp1"})
	require.Equal(t, 1, p.TotalUnsaved())
	_, ok := p.Get("exp1")
	require.False(t, ok)

	// A wholesale write replaces everything, including an empty list.
	p.Write(nil)
	require.Empty(t, p.Rows())
	require.Equal(t, 0, p.TotalUnsaved())
}
