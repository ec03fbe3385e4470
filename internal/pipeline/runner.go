// Package pipeline runs a scrape: every model, every rubric section, strictly
// one after another. Each section is collected, classified and assembled into
// a SectionResult before the next begins.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/catalog"
	"github.com/transparency-atlas/backend/internal/classifier"
	"github.com/transparency-atlas/backend/internal/collector"
	"github.com/transparency-atlas/backend/internal/metrics"
	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/internal/scoring"
	"github.com/transparency-atlas/backend/internal/storage/models"
	"github.com/transparency-atlas/backend/internal/throttle"
	"github.com/transparency-atlas/backend/pkg/logger"
)

type Collector interface {
	Collect(ctx context.Context, model catalog.Model, section rubric.Section) ([]models.Resource, error)
}

type Classifier interface {
	Classify(ctx context.Context, resources []models.Resource, names []string, modelName, sectionName string) map[string]classifier.Verdict
}

// SnapshotSink receives every finished snapshot. Sink failures are logged and
// do not stop the run.
type SnapshotSink interface {
	SaveSnapshot(snapshot models.ModelEvaluationSnapshot) (string, error)
}

type Options struct {
	Scheduler throttle.Scheduler
	// DegradeOnCollectionError turns a failed section search into an empty
	// section instead of aborting the run.
	DegradeOnCollectionError bool
	Sink                     SnapshotSink
	Now                      func() time.Time
}

type Runner struct {
	rubric     *rubric.Rubric
	collector  Collector
	classifier Classifier
	scheduler  throttle.Scheduler
	degrade    bool
	sink       SnapshotSink
	now        func() time.Time
}

func NewRunner(r *rubric.Rubric, coll Collector, cls Classifier, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		rubric:     r,
		collector:  coll,
		classifier: cls,
		scheduler:  opts.Scheduler,
		degrade:    opts.DegradeOnCollectionError,
		sink:       opts.Sink,
		now:        opts.Now,
	}
}

// Run evaluates every model in order. On a fatal error it returns the
// snapshots finished so far together with the error.
func (r *Runner) Run(ctx context.Context, list []catalog.Model) ([]models.ModelEvaluationSnapshot, error) {
	runID := uuid.New().String()
	logger.Info("Starting scrape run",
		zap.String("run_id", runID),
		zap.String("rubric", r.rubric.ID),
		zap.Int("models", len(list)),
		zap.Int("sections", len(r.rubric.Sections)),
	)

	start := time.Now()
	snapshots := make([]models.ModelEvaluationSnapshot, 0, len(list))
	for i, model := range list {
		snapshot, err := r.EvaluateModel(ctx, model)
		if err != nil {
			logger.Error("Scrape run aborted",
				zap.String("run_id", runID),
				zap.String("model", model.Name),
				zap.Error(err),
			)
			return snapshots, err
		}
		snapshots = append(snapshots, snapshot)

		if i < len(list)-1 {
			if err := r.scheduler.AfterModel(ctx); err != nil {
				return snapshots, err
			}
		}
	}

	logger.Info("Scrape run completed",
		zap.String("run_id", runID),
		zap.Int("models", len(snapshots)),
		zap.Duration("duration", time.Since(start)),
	)
	return snapshots, nil
}

// EvaluateModel produces one snapshot with a SectionResult for every rubric
// section, in rubric order.
func (r *Runner) EvaluateModel(ctx context.Context, model catalog.Model) (models.ModelEvaluationSnapshot, error) {
	logger.Info("Evaluating model", zap.String("model", model.Name), zap.String("provider", model.Provider))

	snapshot := models.ModelEvaluationSnapshot{
		Model:      model.Name,
		Provider:   model.Provider,
		Type:       model.Type,
		CapturedAt: r.now().UTC(),
		Sections:   make([]models.SectionResult, 0, len(r.rubric.Sections)),
	}

	for _, section := range r.rubric.Sections {
		result, err := r.evaluateSection(ctx, model, section)
		if err != nil {
			return snapshot, err
		}
		snapshot.Sections = append(snapshot.Sections, result)

		if err := r.scheduler.AfterSection(ctx); err != nil {
			return snapshot, err
		}
	}

	metrics.ModelsProcessed.Inc()
	logger.Info("Model evaluated",
		zap.String("model", model.Name),
		zap.Float64("score", scoring.OverallScore(r.rubric, snapshot)),
	)

	if r.sink != nil {
		if id, err := r.sink.SaveSnapshot(snapshot); err != nil {
			logger.Warn("Failed to persist snapshot", zap.String("model", model.Name), zap.Error(err))
		} else {
			logger.Debug("Snapshot persisted", zap.String("id", id))
		}
	}

	return snapshot, nil
}

func (r *Runner) evaluateSection(ctx context.Context, model catalog.Model, section rubric.Section) (models.SectionResult, error) {
	status := "ok"
	resources, err := r.collector.Collect(ctx, model, section)
	if err != nil {
		var collErr *collector.CollectionError
		if !r.degrade || !errors.As(err, &collErr) {
			metrics.SectionsProcessed.WithLabelValues("failed").Inc()
			return models.SectionResult{}, fmt.Errorf("failed to evaluate section %s: %w", section.ID, err)
		}
		logger.Warn("Section degraded to empty evidence",
			zap.String("model", model.Name),
			zap.String("section", section.ID),
			zap.Error(err),
		)
		status = "degraded"
		resources = []models.Resource{}
	}

	names := section.SubsectionNames()
	verdicts := r.classifier.Classify(ctx, resources, names, model.Name, section.Name)

	result := models.SectionResult{
		SectionID:        section.ID,
		Resources:        resources,
		SubsectionChecks: classifier.Checks(names, verdicts),
	}
	if result.Resources == nil {
		result.Resources = []models.Resource{}
	}

	metrics.SectionsProcessed.WithLabelValues(status).Inc()
	metrics.SectionPercentage.WithLabelValues(section.ID).Observe(
		scoring.SectionPercentage(section, models.ModelEvaluationSnapshot{Sections: []models.SectionResult{result}}),
	)
	logger.Info("Section evaluated",
		zap.String("model", model.Name),
		zap.String("section", section.ID),
		zap.Int("resources", len(resources)),
		zap.String("status", status),
	)

	return result, nil
}
