// Package evaluation summarizes a set of model evaluations: how many models
// land in each score band and how well each rubric section is covered
// across the catalog.
package evaluation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/internal/scoring"
	"github.com/transparency-atlas/backend/internal/storage/models"
	"github.com/transparency-atlas/backend/pkg/logger"
)

type SectionCoverage struct {
	SectionID         string  `json:"sectionId"`
	Name              string  `json:"name"`
	AvgPercentage     float64 `json:"avgPercentage"`
	EmptyEvidence     int     `json:"emptyEvidence"`
	MentionedCriteria int     `json:"mentionedCriteria"`
	TotalCriteria     int     `json:"totalCriteria"`
}

type RunSummary struct {
	TotalModels      int               `json:"totalModels"`
	HighCount        int               `json:"highCount"`
	MediumCount      int               `json:"mediumCount"`
	LowCount         int               `json:"lowCount"`
	HighPercentage   float64           `json:"highPercentage"`
	MediumPercentage float64           `json:"mediumPercentage"`
	LowPercentage    float64           `json:"lowPercentage"`
	AvgOverallScore  float64           `json:"avgOverallScore"`
	Sections         []SectionCoverage `json:"sections"`
}

// Summarize scores every snapshot against r. EmptyEvidence counts sections
// whose search returned nothing, which is also what a degraded section looks
// like.
func Summarize(r *rubric.Rubric, snapshots []models.ModelEvaluationSnapshot) *RunSummary {
	summary := &RunSummary{
		TotalModels: len(snapshots),
		Sections:    make([]SectionCoverage, len(r.Sections)),
	}
	for i, s := range r.Sections {
		summary.Sections[i] = SectionCoverage{SectionID: s.ID, Name: s.Name}
	}

	var totalOverall float64
	for _, snapshot := range snapshots {
		overall := scoring.OverallScore(r, snapshot)
		totalOverall += overall

		switch scoring.Band(overall) {
		case scoring.BandHigh:
			summary.HighCount++
		case scoring.BandMedium:
			summary.MediumCount++
		default:
			summary.LowCount++
		}

		for i, section := range r.Sections {
			coverage := &summary.Sections[i]
			coverage.AvgPercentage += scoring.SectionPercentage(section, snapshot)
			coverage.TotalCriteria += len(section.Subsections)

			result, ok := snapshot.Section(section.ID)
			if !ok || len(result.Resources) == 0 {
				coverage.EmptyEvidence++
			}
			if !ok {
				continue
			}
			for _, sub := range section.Subsections {
				if check, found := result.Check(sub.Name); found && check.Present() {
					coverage.MentionedCriteria++
				}
			}
		}
	}

	if summary.TotalModels > 0 {
		n := float64(summary.TotalModels)
		summary.AvgOverallScore = totalOverall / n
		summary.HighPercentage = float64(summary.HighCount) / n * 100
		summary.MediumPercentage = float64(summary.MediumCount) / n * 100
		summary.LowPercentage = float64(summary.LowCount) / n * 100
		for i := range summary.Sections {
			summary.Sections[i].AvgPercentage /= n
		}
	}

	logger.Debug("Evaluation summary computed",
		zap.Int("models", summary.TotalModels),
		zap.Int("high", summary.HighCount),
		zap.Int("medium", summary.MediumCount),
		zap.Int("low", summary.LowCount),
	)

	return summary
}

func GenerateReport(summary *RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
Evaluation Summary
==================

Total Models: %d
Average Overall Score: %.1f%%

Bands:
- High (>= 80%%): %d (%.1f%%)
- Medium (>= 50%%): %d (%.1f%%)
- Low: %d (%.1f%%)

Sections:
`,
		summary.TotalModels,
		summary.AvgOverallScore,
		summary.HighCount, summary.HighPercentage,
		summary.MediumCount, summary.MediumPercentage,
		summary.LowCount, summary.LowPercentage,
	)

	for _, s := range summary.Sections {
		fmt.Fprintf(&b, "- %s: %.1f%% avg, %d/%d criteria mentioned, %d without evidence\n",
			s.Name, s.AvgPercentage, s.MentionedCriteria, s.TotalCriteria, s.EmptyEvidence)
	}
	return b.String()
}
