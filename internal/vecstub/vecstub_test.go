package vecstub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchReturnsEmptyResultShape(t *testing.T) {
	out, err := Search(map[string]any{"query": "anything"})
	require.NoError(t, err)

	m, ok := out.(map[string]any)
	require.True(t, ok)
	results, ok := m["results"].([]any)
	require.True(t, ok)
	assert.Empty(t, results)
}

func TestSearchIgnoresNilPayload(t *testing.T) {
	out, err := Search(nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
}
