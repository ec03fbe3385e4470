// Package classifier decides, for every subsection of a section, whether the
// union of collected resources evidences it. One collaborator call covers the
// whole section, and the result always has exactly one verdict per requested
// subsection.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/llm"
	"github.com/transparency-atlas/backend/internal/metrics"
	"github.com/transparency-atlas/backend/internal/runlog"
	"github.com/transparency-atlas/backend/internal/storage/models"
	"github.com/transparency-atlas/backend/pkg/logger"
)

const systemPrompt = "You are a helpful assistant that analyzes aggregated text from multiple sources and returns JSON responses only."

// logPreview bounds the prompt and response text copied into the run log.
const logPreview = 500

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Verdict is the classification of one subsection. Score is 0 or 1.
type Verdict struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

var notMentioned = Verdict{Score: 0, Explanation: models.NotMentioned}

// ClassificationError describes a failed or unparseable classification. It is
// logged, never returned: the caller gets an all-zero verdict map instead.
type ClassificationError struct {
	Section string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("failed to classify section %q: %v", e.Section, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// DefaultTemperature is used when Options.Temperature is nil.
const DefaultTemperature float32 = 0.1

type Options struct {
	Recorder runlog.Recorder
	// Temperature of the classification call; nil means DefaultTemperature.
	Temperature *float32
	// Model is only used for the run log.
	Model string
}

type Classifier struct {
	completer   Completer
	recorder    runlog.Recorder
	temperature float32
	model       string
}

func New(completer Completer, opts Options) *Classifier {
	if opts.Recorder == nil {
		opts.Recorder = runlog.Discard{}
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	return &Classifier{
		completer:   completer,
		recorder:    opts.Recorder,
		temperature: temperature,
		model:       opts.Model,
	}
}

// Classify returns a verdict for every name in names and nothing else. With no
// resources there is nothing to evidence a subsection, so the collaborator is
// not called and every verdict is zero.
func (c *Classifier) Classify(ctx context.Context, resources []models.Resource, names []string, modelName, sectionName string) map[string]Verdict {
	if len(names) == 0 {
		return map[string]Verdict{}
	}
	if len(resources) == 0 {
		metrics.ClassificationRequests.WithLabelValues("skipped").Inc()
		logger.Info("No resources to classify",
			zap.String("model", modelName),
			zap.String("section", sectionName),
		)
		return backfill(names, nil)
	}

	parsed, err := c.request(ctx, resources, names, modelName, sectionName)
	if err != nil {
		metrics.ClassificationRequests.WithLabelValues("degraded").Inc()
		logger.Warn("Classification degraded to not mentioned",
			zap.String("model", modelName),
			zap.Error(&ClassificationError{Section: sectionName, Err: err}),
		)
	} else {
		metrics.ClassificationRequests.WithLabelValues("success").Inc()
	}

	return backfill(names, parsed)
}

func (c *Classifier) request(ctx context.Context, resources []models.Resource, names []string, modelName, sectionName string) (map[string]Verdict, error) {
	prompt := BuildPrompt(resources, names, modelName, sectionName)

	c.recorder.Record(runlog.ServiceClassification, runlog.KindRequest, map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": runlog.Truncate(systemPrompt, logPreview)},
			{"role": "user", "content": runlog.Truncate(prompt, logPreview)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     c.temperature,
		"promptLength":    len(prompt),
		"resourcesCount":  len(resources),
	})

	start := time.Now()
	resp, err := c.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Temperature:  &c.temperature,
		JSONMode:     true,
	})
	metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	if err != nil {
		c.recorder.Record(runlog.ServiceClassification, runlog.KindResponse, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	c.recorder.Record(runlog.ServiceClassification, runlog.KindResponse, map[string]any{
		"model":           resp.Model,
		"usage":           resp.Usage,
		"responseLength":  len(resp.Content),
		"responsePreview": runlog.Truncate(resp.Content, logPreview),
	})

	return parseVerdicts(resp.Content)
}

// BuildPrompt aggregates every resource into one corpus and asks for a
// verdict per subsection against the whole corpus.
func BuildPrompt(resources []models.Resource, names []string, modelName, sectionName string) string {
	var corpus strings.Builder
	for i, r := range resources {
		if i > 0 {
			corpus.WriteString("---\n\n")
		}
		fmt.Fprintf(&corpus, "Resource %d:\nTitle: %s\nURL: %s\nContent:\n%s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}

	var list strings.Builder
	for i, name := range names {
		fmt.Fprintf(&list, "%d. %s\n", i+1, name)
	}

	var format strings.Builder
	format.WriteString("{\n")
	for i, name := range names {
		if i == 2 {
			format.WriteString("  ...\n")
			break
		}
		fmt.Fprintf(&format, "  %q: {\n    \"score\": 0 or 1,\n    \"explanation\": \"quote or '%s'\"\n  },\n", name, models.NotMentioned)
	}
	format.WriteString("}")

	return fmt.Sprintf(`You are analyzing model card documentation for %s, specifically the %q section.
You have been provided with multiple resources (documentation, articles, model cards, etc.) that contain information about this model.
Analyze ALL resources together as an aggregate to determine if each subsection is mentioned or discussed across any of these resources.
Subsections to check:
%s
Aggregated Resources:
%s
For each subsection, return:
- score: 1 if it is mentioned or discussed in ANY of the provided resources, or 0 if it is not mentioned in any resource.
- explanation: If score is 1, provide a direct quote (30 words or less) from the resources that mentions this subsection.
If score is 0, use exactly: %q

Respond ONLY with a JSON object in this exact format:
%s
Do not include any other text, only the JSON object.`,
		modelName, sectionName, list.String(), corpus.String(), models.NotMentioned, format.String())
}

// backfill applies the coverage guarantee: the result has exactly the keys in
// names. parsed may be nil when the call or the parse failed.
func backfill(names []string, parsed map[string]Verdict) map[string]Verdict {
	out := make(map[string]Verdict, len(names))
	for _, name := range names {
		if v, ok := parsed[name]; ok {
			out[name] = v
			continue
		}
		out[name] = notMentioned
	}
	return out
}

// Checks orders verdicts by names for storage in a SectionResult.
func Checks(names []string, verdicts map[string]Verdict) []models.SubsectionCheck {
	checks := make([]models.SubsectionCheck, 0, len(names))
	for _, name := range names {
		v, ok := verdicts[name]
		if !ok {
			v = notMentioned
		}
		checks = append(checks, models.SubsectionCheck{Name: name, Score: v.Score, Explanation: v.Explanation})
	}
	return checks
}
