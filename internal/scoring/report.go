package scoring

import (
	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/internal/storage/models"
)

type SectionReport struct {
	SectionID  string  `json:"sectionId"`
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"maxScore"`
	Percentage float64 `json:"percentage"`
	Band       string  `json:"band"`
}

type Report struct {
	Model        string          `json:"model"`
	ModelID      string          `json:"modelId"`
	Provider     string          `json:"provider"`
	RubricID     string          `json:"rubricId"`
	Sections     []SectionReport `json:"sections"`
	OverallScore float64         `json:"overallScore"`
	Band         string          `json:"band"`
}

// BuildReport evaluates snapshot against every section of r, in rubric order.
func BuildReport(r *rubric.Rubric, snapshot models.ModelEvaluationSnapshot) Report {
	report := Report{
		Model:    snapshot.Model,
		ModelID:  snapshot.ModelID(),
		Provider: snapshot.Provider,
		RubricID: r.ID,
		Sections: make([]SectionReport, 0, len(r.Sections)),
	}

	for _, section := range r.Sections {
		pct := SectionPercentage(section, snapshot)
		report.Sections = append(report.Sections, SectionReport{
			SectionID:  section.ID,
			Name:       section.Name,
			Weight:     section.Weight,
			Score:      SectionScore(section, snapshot),
			MaxScore:   section.MaxTotal(),
			Percentage: pct,
			Band:       Band(pct),
		})
	}

	report.OverallScore = OverallScore(r, snapshot)
	report.Band = Band(report.OverallScore)
	return report
}
