package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeAppStateShallowMerges(t *testing.T) {
	s := New()
	s.MergeAppState(map[string]any{"a": 1})
	got := s.MergeAppState(map[string]any{"b": 2})
	assert.Equal(t, 1, got["a"])
	assert.Equal(t, 2, got["b"])
}

func TestUpdateThreadAtomRejectsWrongNamespace(t *testing.T) {
	s := New()
	err := s.UpdateThreadAtom("app-state/foo", "bar")
	assert.Error(t, err)

	err = s.UpdateThreadAtom("thread-atom/foo", "bar")
	require.NoError(t, err)
	assert.Equal(t, "bar", s.ThreadAtoms()["thread-atom/foo"])
}

func TestClearResetsAllCells(t *testing.T) {
	s := New()
	s.MergeAppState(map[string]any{"a": 1})
	s.SetContext(map[string]any{"b": 2})
	require.NoError(t, s.UpdateThreadAtom("thread-atom/x", 3))
	s.SetRTCWSURL("ws://localhost")

	s.Clear()

	assert.Empty(t, s.AppState())
	assert.Empty(t, s.Context())
	assert.Empty(t, s.ThreadAtoms())
	_, ok := s.RTCWSURL()
	assert.False(t, ok)
}
