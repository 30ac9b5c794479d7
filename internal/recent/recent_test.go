package recent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDs_MissingFileIsEmpty(t *testing.T) {
	l := NewList(t.TempDir())

	ids, err := l.IDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRecord_MostRecentFirst(t *testing.T) {
	l := NewList(t.TempDir())

	require.NoError(t, l.Record("a"))
	require.NoError(t, l.Record("b"))
	require.NoError(t, l.Record("c"))

	ids, err := l.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestRecord_DedupesAndPromotes(t *testing.T) {
	l := NewList(t.TempDir())

	for _, id := range []string{"a", "b", "c", "a"} {
		require.NoError(t, l.Record(id))
	}

	ids, err := l.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ids)
}

func TestRecord_Bounded(t *testing.T) {
	l := NewList(t.TempDir())

	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		require.NoError(t, l.Record(id))
	}

	ids, err := l.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"g", "f", "e", "d", "c"}, ids)
}

func TestRecord_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewList(dir).Record("a"))
	require.NoError(t, NewList(dir).Record("b"))

	ids, err := NewList(dir).IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)
}
