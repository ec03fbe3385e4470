package history

import "github.com/transparency-atlas/backend/internal/storage/models"

// MetricDelta is the movement of one framework metric between two entries.
// Previous is nil when the earlier entry had no metrics.
type MetricDelta struct {
	Metric   string   `json:"metric"`
	Previous *float64 `json:"previous,omitempty"`
	Current  float64  `json:"current"`
	Delta    *float64 `json:"delta,omitempty"`
}

// MetricDeltas pairs previous and current values per metric. It returns nil
// when current has no metrics.
func MetricDeltas(previous, current *models.FrameworkMetrics) []MetricDelta {
	if current == nil {
		return nil
	}

	cur := metricValues(current)
	var prev []float64
	if previous != nil {
		prev = metricValues(previous)
	}

	deltas := make([]MetricDelta, len(metricNames))
	for i, name := range metricNames {
		deltas[i] = MetricDelta{Metric: name, Current: cur[i]}
		if prev != nil {
			p := prev[i]
			d := cur[i] - p
			deltas[i].Previous = &p
			deltas[i].Delta = &d
		}
	}
	return deltas
}

var metricNames = []string{
	"documentationQuality",
	"transparency",
	"safetyMeasures",
	"performanceScore",
	"overallScore",
}

func metricValues(m *models.FrameworkMetrics) []float64 {
	return []float64{
		m.DocumentationQuality,
		m.Transparency,
		m.SafetyMeasures,
		m.PerformanceScore,
		m.OverallScore,
	}
}

type TimelineEntry struct {
	Entry
	MetricDeltas []MetricDelta `json:"metricDeltas,omitempty"`
}

// Timeline pairs each entry of a sorted chain with its metric deltas.
func Timeline(chain []Entry) []TimelineEntry {
	out := make([]TimelineEntry, len(chain))
	for i, e := range chain {
		var previous *models.FrameworkMetrics
		if i > 0 {
			previous = chain[i-1].FrameworkMetrics
		}
		out[i] = TimelineEntry{Entry: e, MetricDeltas: MetricDeltas(previous, e.FrameworkMetrics)}
	}
	return out
}
