/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTagMultiset_AddReportsOnlyZeroToOneTransitions(t *testing.T) {
	t.Parallel()

	m := newTagMultiset()

	added := m.add([]string{"csharp", "csharp", "native"})
	require.ElementsMatch(t, []string{"csharp", "native"}, added)
	require.Equal(t, 2, m.count("csharp"))
	require.Equal(t, 1, m.count("native"))

	added = m.add([]string{"csharp"})
	require.Empty(t, added)
	require.Equal(t, 3, m.count("csharp"))
}

func TestTagMultiset_RemoveReportsOnlyOneToZeroTransitions(t *testing.T) {
	t.Parallel()

	m := newTagMultiset()
	m.add([]string{"csharp", "csharp", "native"})

	removed := m.remove([]string{"csharp"})
	require.Empty(t, removed)
	require.Equal(t, 1, m.count("csharp"))

	removed = m.remove([]string{"csharp", "native"})
	require.ElementsMatch(t, []string{"csharp", "native"}, removed)
	require.Equal(t, 0, m.count("csharp"))
	require.Equal(t, 0, m.count("native"))
}

func TestTagMultiset_RemoveUnknownTagIsNoop(t *testing.T) {
	t.Parallel()

	m := newTagMultiset()
	removed := m.remove([]string{"never-added"})
	require.Empty(t, removed)
}

func TestTagMultiset_ExactMultiplicityNoCaseFolding(t *testing.T) {
	t.Parallel()

	m := newTagMultiset()
	m.add([]string{"CSharp"})
	require.Equal(t, 0, m.count("csharp"))
	require.Equal(t, 1, m.count("CSharp"))
}

func TestTagMultiset_Snapshot(t *testing.T) {
	t.Parallel()

	m := newTagMultiset()
	m.add([]string{"a", "b", "a"})
	require.ElementsMatch(t, []string{"a", "b"}, m.snapshot())
}
