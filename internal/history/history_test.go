package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transparency-atlas/backend/internal/storage/models"
)

func card() *models.ModelCard {
	return &models.ModelCard{
		Rating:      "A",
		Description: "Flagship multimodal model",
		License:     "Proprietary",
		Limitations: []string{"Knowledge cutoff", "May refuse certain requests"},
		Performance: []models.PerformanceEntry{{Metric: "MMLU", Value: "85.0%"}},
		Resources:   []models.CardResource{{Title: "System Card", URL: "https://a.example"}},
	}
}

func entry(date string, c *models.ModelCard) Entry {
	return Entry{ModelID: "gpt-4o", Version: "1.0", Date: date, Summary: "update", Card: c}
}

func TestDiffModifiedRating(t *testing.T) {
	prev := entry("2024-10-01", card())
	cur := entry("2024-12-15", card())
	cur.Card.Rating = "AA"

	changes := Diff(&prev, cur)

	require.Len(t, changes, 1)
	assert.Equal(t, models.Change{
		Field:      "rating",
		OldValue:   models.TextValue("A"),
		NewValue:   models.TextValue("AA"),
		ChangeType: models.ChangeModified,
	}, changes[0])
}

func TestDiffIdenticalEntries(t *testing.T) {
	prev := entry("2024-10-01", card())
	cur := entry("2024-12-15", card())
	assert.Empty(t, Diff(&prev, cur))
}

func TestDiffListsAsSets(t *testing.T) {
	prev := entry("2024-10-01", card())
	cur := entry("2024-12-15", card())
	cur.Card.Limitations = []string{"May refuse certain requests", "Knowledge cutoff"}

	assert.Empty(t, Diff(&prev, cur))
}

func TestDiffIgnoresBlankListItems(t *testing.T) {
	prev := entry("2024-10-01", card())
	cur := entry("2024-12-15", card())
	cur.Card.Limitations = append(cur.Card.Limitations, "", "  ")

	assert.Empty(t, Diff(&prev, cur))
}

func TestDiffNilPredecessor(t *testing.T) {
	cur := entry("2024-10-01", card())
	changes := Diff(nil, cur)

	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
		assert.Equal(t, models.ChangeAdded, c.ChangeType, c.Field)
		assert.True(t, c.OldValue.Empty())
	}
	assert.Equal(t, []string{"rating", "description", "license", "limitations", "performance", "resources"}, fields)
}

func TestDiffAddedAndRemoved(t *testing.T) {
	prev := entry("2024-10-01", card())
	cur := entry("2024-12-15", card())
	cur.Card.License = ""
	cur.Card.Tags = []string{"multimodal"}
	cur.Card.Performance = append(cur.Card.Performance, models.PerformanceEntry{Metric: "GPQA", Value: "53.6%", Dataset: "diamond"})

	changes := Diff(&prev, cur)
	byField := map[string]models.Change{}
	for _, c := range changes {
		byField[c.Field] = c
	}

	require.Len(t, changes, 3)
	assert.Equal(t, models.ChangeRemoved, byField["license"].ChangeType)
	assert.Equal(t, "Proprietary", byField["license"].OldValue.String())
	assert.Equal(t, models.ChangeAdded, byField["tags"].ChangeType)
	assert.Equal(t, models.ChangeModified, byField["performance"].ChangeType)
	assert.Equal(t, []string{"MMLU: 85.0%", "GPQA: 53.6% (diamond)"}, byField["performance"].NewValue.Items)
}

func TestDiffMissingCards(t *testing.T) {
	prev := entry("2024-10-01", nil)
	cur := entry("2024-12-15", nil)
	assert.Empty(t, Diff(&prev, cur))
}

func TestSort(t *testing.T) {
	entries := []Entry{
		entry("2024-12-15", nil),
		entry("2024-03-15T10:00:00Z", nil),
		entry("2024-10-01", nil),
	}
	Sort(entries)

	assert.Equal(t, "2024-03-15T10:00:00Z", entries[0].Date)
	assert.Equal(t, "2024-10-01", entries[1].Date)
	assert.Equal(t, "2024-12-15", entries[2].Date)
}

func TestBuildRecomputesChanges(t *testing.T) {
	later := entry("2024-12-15", card())
	later.Card.Rating = "AA"
	first := entry("2024-10-01", card())

	chain := Build([]Entry{later, first})

	require.Len(t, chain, 2)
	assert.Equal(t, "2024-10-01", chain[0].Date)
	assert.Len(t, chain[0].Changes, 6)
	require.Len(t, chain[1].Changes, 1)
	assert.Equal(t, "rating", chain[1].Changes[0].Field)
}

func TestBuildKeepsRecordedChangesWithoutCard(t *testing.T) {
	recorded := []models.Change{{Field: "model_card", NewValue: models.TextValue("Initial model card created"), ChangeType: models.ChangeAdded}}
	imported := entry("2024-10-01", nil)
	imported.Changes = recorded

	chain := Build([]Entry{imported})
	assert.Equal(t, recorded, chain[0].Changes)
}

func TestAppendOutOfOrder(t *testing.T) {
	v1 := entry("2024-01-01", card())
	v3 := entry("2024-12-01", card())
	v3.Card.Rating = "AAA"
	chain := Build([]Entry{v1, v3})
	require.Equal(t, models.TextValue("A"), chain[1].Changes[0].OldValue)

	v2 := entry("2024-06-01", card())
	v2.Card.Rating = "AA"
	chain = Append(chain, v2)

	require.Len(t, chain, 3)
	assert.Equal(t, "2024-06-01", chain[1].Date)
	assert.Equal(t, models.TextValue("AA"), chain[1].Changes[0].NewValue)
	assert.Equal(t, models.TextValue("AA"), chain[2].Changes[0].OldValue)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(entry("2024-10-01", nil)))
	assert.Error(t, Validate(entry("yesterday", nil)))

	e := entry("2024-10-01", nil)
	e.ModelID = ""
	assert.Error(t, Validate(e))
}

func TestMetricDeltas(t *testing.T) {
	prev := &models.FrameworkMetrics{DocumentationQuality: 70, Transparency: 55, SafetyMeasures: 65, PerformanceScore: 85, OverallScore: 69}
	cur := &models.FrameworkMetrics{DocumentationQuality: 75, Transparency: 60, SafetyMeasures: 70, PerformanceScore: 86, OverallScore: 73}

	deltas := MetricDeltas(prev, cur)
	require.Len(t, deltas, 5)
	assert.Equal(t, "documentationQuality", deltas[0].Metric)
	assert.Equal(t, 70.0, *deltas[0].Previous)
	assert.Equal(t, 75.0, deltas[0].Current)
	assert.Equal(t, 5.0, *deltas[0].Delta)

	first := MetricDeltas(nil, cur)
	assert.Nil(t, first[4].Previous)
	assert.Equal(t, 73.0, first[4].Current)

	assert.Nil(t, MetricDeltas(prev, nil))
}

func TestTimeline(t *testing.T) {
	a := entry("2024-10-01", nil)
	a.FrameworkMetrics = &models.FrameworkMetrics{OverallScore: 69}
	b := entry("2024-12-15", nil)
	b.FrameworkMetrics = &models.FrameworkMetrics{OverallScore: 73}

	timeline := Timeline([]Entry{a, b})
	require.Len(t, timeline, 2)
	assert.Nil(t, timeline[0].MetricDeltas[4].Previous)
	assert.Equal(t, 4.0, *timeline[1].MetricDeltas[4].Delta)
}
