package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GPT-4o", "gpt-4o"},
		{"Llama 4 Maverick", "llama-4-maverick"},
		{"Gemini 2.5 Pro", "gemini-2.5-pro"},
		{"CBRN (Chemical)", "cbrn-chemical"},
		{"  Phi-3 Mini 128K ", "phi-3-mini-128k"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestDefault(t *testing.T) {
	models := Default()
	require.Len(t, models, 48)
	assert.Equal(t, Model{Name: "Gemini 3 Pro", Provider: "Google", Type: "multimodal"}, models[0])

	ids := make(map[string]bool)
	for _, m := range models {
		assert.False(t, ids[m.ID()], "duplicate id %s", m.ID())
		ids[m.ID()] = true
	}
}

func TestParseRejectsIncompleteModels(t *testing.T) {
	_, err := Parse([]byte(`[{"name":"X","provider":""}]`))
	assert.ErrorContains(t, err, "no provider")

	_, err = Parse([]byte(`[{"provider":"Y"}]`))
	assert.ErrorContains(t, err, "no name")

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}
