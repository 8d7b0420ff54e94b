package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/readr/types"
)

func TestExtractJSON_Plain(t *testing.T) {
	data, err := ExtractJSON(`{"themes": {"Revenge": {"importance": 9}}}`)
	require.NoError(t, err)
	assert.Contains(t, data, "themes")
}

func TestExtractJSON_SurroundingProse(t *testing.T) {
	raw := `Sure! Here is the analysis you asked for:
{"characters": {"Ahab": {"importance": 10}}}
Hope this helps.`
	data, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Contains(t, data, "characters")
}

func TestExtractJSON_CodeFence(t *testing.T) {
	raw := "```json\n{\"symbols\": {\"The Sea\": {\"significance\": 8}}}\n```"
	data, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Contains(t, data, "symbols")
}

func TestExtractJSON_Malformed(t *testing.T) {
	_, err := ExtractJSON("Sure! {not valid json")
	require.Error(t, err)
	assert.Equal(t, types.ErrMalformedOutput, types.GetErrorCode(err))
}
