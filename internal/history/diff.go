// Package history maintains per-model version chains: field-level change
// sets between chronologically adjacent model cards and the framework metric
// movement between entries.
package history

import (
	"fmt"

	"github.com/transparency-atlas/backend/internal/storage/models"
)

type Entry = models.VersionHistoryEntry

type trackedField struct {
	name  string
	value func(*models.ModelCard) models.FieldValue
}

// tracked lists the card fields that produce Change records, in the order
// changes are emitted.
var tracked = []trackedField{
	{"rating", func(c *models.ModelCard) models.FieldValue { return models.TextValue(c.Rating) }},
	{"description", func(c *models.ModelCard) models.FieldValue { return models.TextValue(c.Description) }},
	{"version", func(c *models.ModelCard) models.FieldValue { return models.TextValue(c.Version) }},
	{"license", func(c *models.ModelCard) models.FieldValue { return models.TextValue(c.License) }},
	{"architecture", func(c *models.ModelCard) models.FieldValue { return models.TextValue(c.Architecture) }},
	{"parameters", func(c *models.ModelCard) models.FieldValue { return models.TextValue(c.Parameters) }},
	{"trainingData", func(c *models.ModelCard) models.FieldValue { return models.TextValue(c.TrainingData) }},
	{"useCases", func(c *models.ModelCard) models.FieldValue { return models.ListValue(c.UseCases...) }},
	{"limitations", func(c *models.ModelCard) models.FieldValue { return models.ListValue(c.Limitations...) }},
	{"performance", performanceValue},
	{"resources", resourcesValue},
	{"tags", func(c *models.ModelCard) models.FieldValue { return models.ListValue(c.Tags...) }},
	{"citations", func(c *models.ModelCard) models.FieldValue { return models.ListValue(c.Citations...) }},
}

// TrackedFields returns the names of the fields Diff compares.
func TrackedFields() []string {
	names := make([]string, len(tracked))
	for i, f := range tracked {
		names[i] = f.name
	}
	return names
}

func performanceValue(c *models.ModelCard) models.FieldValue {
	items := make([]string, len(c.Performance))
	for i, p := range c.Performance {
		items[i] = fmt.Sprintf("%s: %s", p.Metric, p.Value)
		if p.Dataset != "" {
			items[i] += fmt.Sprintf(" (%s)", p.Dataset)
		}
	}
	return models.ListValue(items...)
}

func resourcesValue(c *models.ModelCard) models.FieldValue {
	items := make([]string, len(c.Resources))
	for i, r := range c.Resources {
		items[i] = r.Title
	}
	return models.ListValue(items...)
}

// Diff compares the tracked fields of two entries. A nil previous means
// current is the first entry for its model, so every populated field is
// added. Unchanged fields produce no Change. Callers must pass entries in
// date order.
func Diff(previous *Entry, current Entry) []models.Change {
	var prevCard, curCard *models.ModelCard
	if previous != nil {
		prevCard = previous.Card
	}
	curCard = current.Card
	if prevCard == nil {
		prevCard = &models.ModelCard{}
	}
	if curCard == nil {
		curCard = &models.ModelCard{}
	}

	changes := []models.Change{}
	for _, f := range tracked {
		oldValue, newValue := f.value(prevCard), f.value(curCard)

		var kind models.ChangeType
		switch {
		case oldValue.Empty() && newValue.Empty():
			continue
		case oldValue.Empty():
			kind = models.ChangeAdded
		case newValue.Empty():
			kind = models.ChangeRemoved
		case !oldValue.Equal(newValue):
			kind = models.ChangeModified
		default:
			continue
		}

		changes = append(changes, models.Change{
			Field:      f.name,
			OldValue:   oldValue,
			NewValue:   newValue,
			ChangeType: kind,
		})
	}
	return changes
}
