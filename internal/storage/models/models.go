package models

import (
	"time"

	"github.com/transparency-atlas/backend/internal/catalog"
)

// NotMentioned is the explanation carried by every subsection check that
// scored 0, whether the evidence was absent or the classifier failed.
const NotMentioned = "did not mention this idea"

// Mentioned is used when a subsection scored 1 but no quote was returned.
const Mentioned = "mentioned"

// Resource is one piece of external evidence for one section of one model.
// Title feeds the classifier corpus but is not part of the snapshot format.
type Resource struct {
	ID      string `json:"snippetId"`
	Title   string `json:"-"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SubsectionCheck is a strict boolean verdict: Score is 0 or 1.
type SubsectionCheck struct {
	Name        string `json:"name"`
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

func (c SubsectionCheck) Present() bool {
	return c.Score == 1
}

type SectionResult struct {
	SectionID        string            `json:"sectionId"`
	Resources        []Resource        `json:"sectionSnippets"`
	SubsectionChecks []SubsectionCheck `json:"subsectionChecks"`
}

// Check returns the verdict recorded for a subsection name.
func (r SectionResult) Check(name string) (SubsectionCheck, bool) {
	for _, c := range r.SubsectionChecks {
		if c.Name == name {
			return c, true
		}
	}
	return SubsectionCheck{}, false
}

// ModelEvaluationSnapshot is one full pipeline pass over one model. Snapshots
// are never updated; a later run produces a new one with a later CapturedAt.
type ModelEvaluationSnapshot struct {
	Model      string          `json:"model"`
	Provider   string          `json:"provider"`
	Type       string          `json:"type"`
	CapturedAt time.Time       `json:"capturedAt"`
	Sections   []SectionResult `json:"sections"`
}

func (s ModelEvaluationSnapshot) ModelID() string {
	return catalog.Slug(s.Model)
}

func (s ModelEvaluationSnapshot) Section(id string) (SectionResult, bool) {
	for _, r := range s.Sections {
		if r.SectionID == id {
			return r, true
		}
	}
	return SectionResult{}, false
}

// StoredSnapshot is a snapshot as archived by the store.
type StoredSnapshot struct {
	ID       string
	ModelID  string
	Snapshot ModelEvaluationSnapshot
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

type Change struct {
	Field      string     `json:"field"`
	OldValue   FieldValue `json:"oldValue"`
	NewValue   FieldValue `json:"newValue"`
	ChangeType ChangeType `json:"changeType"`
}

// FrameworkMetrics are produced by an external rating pass; every score is
// in [0,100].
type FrameworkMetrics struct {
	DocumentationQuality float64 `json:"documentationQuality"`
	Transparency         float64 `json:"transparency"`
	SafetyMeasures       float64 `json:"safetyMeasures"`
	PerformanceScore     float64 `json:"performanceScore"`
	OverallScore         float64 `json:"overallScore"`
}

type PerformanceEntry struct {
	Metric  string `json:"metric"`
	Value   string `json:"value"`
	Dataset string `json:"dataset"`
}

type CardResource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// ModelCard is the documented state of a model at one point in time. Its
// fields are the ones the version history tracks.
type ModelCard struct {
	Rating       string             `json:"rating,omitempty"`
	Description  string             `json:"description,omitempty"`
	Version      string             `json:"version,omitempty"`
	License      string             `json:"license,omitempty"`
	Architecture string             `json:"architecture,omitempty"`
	Parameters   string             `json:"parameters,omitempty"`
	TrainingData string             `json:"trainingData,omitempty"`
	UseCases     []string           `json:"useCases,omitempty"`
	Limitations  []string           `json:"limitations,omitempty"`
	Performance  []PerformanceEntry `json:"performance,omitempty"`
	Resources    []CardResource     `json:"resources,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	Citations    []string           `json:"citations,omitempty"`
}

// VersionHistoryEntry is one point in a model's change log. Changes are
// relative to the chronologically previous entry for the same model.
type VersionHistoryEntry struct {
	ModelID          string            `json:"modelId"`
	Version          string            `json:"version"`
	Date             string            `json:"date"`
	Summary          string            `json:"summary"`
	ChangedBy        string            `json:"changedBy,omitempty"`
	Card             *ModelCard        `json:"card,omitempty"`
	Changes          []Change          `json:"changes"`
	FrameworkMetrics *FrameworkMetrics `json:"frameworkMetrics,omitempty"`
}
