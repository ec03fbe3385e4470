package rubric

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	r := Default()

	require.Len(t, r.Sections, 8)
	assert.Equal(t, "proposed-new-framework", r.ID)

	var weights float64
	for _, s := range r.Sections {
		weights += s.Weight
		assert.NotEmpty(t, s.Subsections, s.ID)
	}
	assert.InDelta(t, 100, weights, weightTolerance)

	details, ok := r.Section("model-details")
	require.True(t, ok)
	assert.Len(t, details.SubsectionNames(), 9)
	assert.Equal(t, "Model overview", details.SubsectionNames()[0])
	assert.InDelta(t, 15, details.MaxTotal(), 1e-9)

	critical, ok := r.Section("critical-risk")
	require.True(t, ok)
	assert.InDelta(t, 20, critical.Weight, 1e-9)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "valid",
			doc: `{"id":"r","name":"R","version":"1","sections":[
				{"id":"a","name":"A","weight":60,"subsections":[{"id":"a1","name":"A1","score":2}]},
				{"id":"b","name":"B","weight":40,"subsections":[]}]}`,
		},
		{
			name:    "weights off",
			doc:     `{"id":"r","sections":[{"id":"a","name":"A","weight":90,"subsections":[]}]}`,
			wantErr: "sum to 90",
		},
		{
			name:    "no sections",
			doc:     `{"id":"r","sections":[]}`,
			wantErr: "no sections",
		},
		{
			name: "duplicate section",
			doc: `{"id":"r","sections":[
				{"id":"a","name":"A","weight":50,"subsections":[]},
				{"id":"a","name":"A again","weight":50,"subsections":[]}]}`,
			wantErr: "duplicate section",
		},
		{
			name: "duplicate subsection name",
			doc: `{"id":"r","sections":[{"id":"a","name":"A","weight":100,"subsections":[
				{"id":"x","name":"Inputs","score":1},{"id":"y","name":"Inputs","score":1}]}]}`,
			wantErr: "duplicate subsection",
		},
		{
			name: "negative score",
			doc: `{"id":"r","sections":[{"id":"a","name":"A","weight":100,"subsections":[
				{"id":"x","name":"Inputs","score":-1}]}]}`,
			wantErr: "negative score",
		},
		{
			name:    "malformed json",
			doc:     `{"id":`,
			wantErr: "failed to parse rubric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.doc))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, r.Sections, 2)
		})
	}
}

func TestMaxTotalEmptySection(t *testing.T) {
	assert.Zero(t, Section{ID: "empty"}.MaxTotal())
	assert.Empty(t, Section{ID: "empty"}.SubsectionNames())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubric.json")
	require.NoError(t, os.WriteFile(path, defaultRubric, 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), r)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
