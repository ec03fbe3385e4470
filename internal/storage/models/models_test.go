package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b FieldValue
		want bool
	}{
		{"same text", TextValue("A"), TextValue("A"), true},
		{"different text", TextValue("A"), TextValue("AA"), false},
		{"list order ignored", ListValue("x", "y"), ListValue("y", "x"), true},
		{"list duplicates ignored", ListValue("x", "x", "y"), ListValue("y", "x"), true},
		{"list differs", ListValue("x"), ListValue("x", "y"), false},
		{"blank items ignored", ListValue("a", ""), ListValue("a"), true},
		{"only blank items", ListValue(" "), ListValue(), true},
		{"text vs list", TextValue(""), ListValue(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestFieldValueEmpty(t *testing.T) {
	assert.True(t, TextValue("  ").Empty())
	assert.True(t, ListValue().Empty())
	assert.True(t, ListValue("", " ").Empty())
	assert.False(t, ListValue("a").Empty())
	assert.False(t, TextValue("a").Empty())
}

func TestChangeJSONShape(t *testing.T) {
	change := Change{
		Field:      "resources",
		OldValue:   ListValue(),
		NewValue:   ListValue("GPT-4 System Card"),
		ChangeType: ChangeAdded,
	}

	data, err := json.Marshal(change)
	require.NoError(t, err)
	assert.JSONEq(t, `{"field":"resources","oldValue":[],"newValue":["GPT-4 System Card"],"changeType":"added"}`, string(data))

	var decoded Change
	require.NoError(t, json.Unmarshal([]byte(`{"field":"rating","oldValue":"A","newValue":"AA","changeType":"modified"}`), &decoded))
	assert.Equal(t, TextValue("A"), decoded.OldValue)
	assert.Equal(t, TextValue("AA"), decoded.NewValue)
	assert.Equal(t, ChangeModified, decoded.ChangeType)
}

func TestSnapshotJSONShape(t *testing.T) {
	snap := ModelEvaluationSnapshot{
		Model:    "GPT-4o",
		Provider: "OpenAI",
		Type:     "multimodal",
		Sections: []SectionResult{{
			SectionID: "model-data",
			Resources: []Resource{{ID: "model-data-snippet-1", Title: "hidden", URL: "https://example.com", Snippet: "trained on"}},
			SubsectionChecks: []SubsectionCheck{
				{Name: "Training Dataset", Score: 1, Explanation: "trained on"},
			},
		}},
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	section := raw["sections"].([]any)[0].(map[string]any)
	snippet := section["sectionSnippets"].([]any)[0].(map[string]any)
	assert.Equal(t, "model-data-snippet-1", snippet["snippetId"])
	assert.NotContains(t, snippet, "title")
	assert.Equal(t, "gpt-4o", snap.ModelID())

	result, ok := snap.Section("model-data")
	require.True(t, ok)
	check, ok := result.Check("Training Dataset")
	require.True(t, ok)
	assert.True(t, check.Present())
}
