// Package scoring rolls boolean subsection checks up into section and overall
// percentages. Every function here is pure.
package scoring

import (
	"math"

	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/internal/storage/models"
)

const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// SubsectionScore is maxScore when the check is present and zero otherwise.
func SubsectionScore(check models.SubsectionCheck, maxScore float64) float64 {
	if check.Present() {
		return maxScore
	}
	return 0
}

// SectionScore sums the points earned in section. Checks are matched by
// subsection name; checks for names the rubric no longer has are ignored.
func SectionScore(section rubric.Section, snapshot models.ModelEvaluationSnapshot) float64 {
	result, ok := snapshot.Section(section.ID)
	if !ok {
		return 0
	}

	var score float64
	for _, sub := range section.Subsections {
		if check, ok := result.Check(sub.Name); ok {
			score += SubsectionScore(check, sub.MaxScore)
		}
	}
	return score
}

// SectionPercentage is SectionScore over the section's maximum, in [0,100].
func SectionPercentage(section rubric.Section, snapshot models.ModelEvaluationSnapshot) float64 {
	total := section.MaxTotal()
	if total <= 0 {
		return 0
	}
	pct := SectionScore(section, snapshot) / total * 100
	return math.Max(0, math.Min(100, pct))
}

// OverallScore weights each section percentage by its rubric weight. Weights
// are trusted to sum to 100.
func OverallScore(r *rubric.Rubric, snapshot models.ModelEvaluationSnapshot) float64 {
	var overall float64
	for _, section := range r.Sections {
		overall += SectionPercentage(section, snapshot) * section.Weight / 100
	}
	return overall
}

// Band buckets a percentage the way the results table colours it.
func Band(percentage float64) string {
	switch {
	case percentage >= 80:
		return BandHigh
	case percentage >= 50:
		return BandMedium
	default:
		return BandLow
	}
}
