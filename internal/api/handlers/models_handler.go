package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/evaluation"
	"github.com/transparency-atlas/backend/internal/rubric"
	"github.com/transparency-atlas/backend/internal/scoring"
	"github.com/transparency-atlas/backend/internal/storage/models"
	"github.com/transparency-atlas/backend/internal/storage/sqlite"
	"github.com/transparency-atlas/backend/pkg/logger"
)

type SnapshotStore interface {
	LatestSnapshot(modelID string) (*models.StoredSnapshot, error)
	LatestSnapshots() ([]models.StoredSnapshot, error)
}

type ModelsHandler struct {
	store  SnapshotStore
	rubric *rubric.Rubric
}

func NewModelsHandler(store SnapshotStore, r *rubric.Rubric) *ModelsHandler {
	return &ModelsHandler{
		store:  store,
		rubric: r,
	}
}

type ModelSummary struct {
	ModelID      string    `json:"modelId"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	Type         string    `json:"type"`
	CapturedAt   time.Time `json:"capturedAt"`
	OverallScore float64   `json:"overallScore"`
	Band         string    `json:"band"`
}

func (h *ModelsHandler) ListModels(c *fiber.Ctx) error {
	snapshots, err := h.store.LatestSnapshots()
	if err != nil {
		logger.Error("Failed to list snapshots", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list models",
		})
	}

	summaries := make([]ModelSummary, 0, len(snapshots))
	for _, s := range snapshots {
		overall := scoring.OverallScore(h.rubric, s.Snapshot)
		summaries = append(summaries, ModelSummary{
			ModelID:      s.ModelID,
			Model:        s.Snapshot.Model,
			Provider:     s.Snapshot.Provider,
			Type:         s.Snapshot.Type,
			CapturedAt:   s.Snapshot.CapturedAt,
			OverallScore: overall,
			Band:         scoring.Band(overall),
		})
	}

	return c.JSON(fiber.Map{
		"models": summaries,
		"count":  len(summaries),
	})
}

func (h *ModelsHandler) GetScores(c *fiber.Ctx) error {
	modelID := c.Params("id")

	stored, err := h.store.LatestSnapshot(modelID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No evaluation found for model",
		})
	}
	if err != nil {
		logger.Error("Failed to get snapshot", zap.String("model_id", modelID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get scores",
		})
	}

	return c.JSON(fiber.Map{
		"snapshotId": stored.ID,
		"capturedAt": stored.Snapshot.CapturedAt,
		"report":     scoring.BuildReport(h.rubric, stored.Snapshot),
	})
}

// GetSummary aggregates the latest snapshot of every model.
func (h *ModelsHandler) GetSummary(c *fiber.Ctx) error {
	stored, err := h.store.LatestSnapshots()
	if err != nil {
		logger.Error("Failed to list snapshots", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build summary",
		})
	}

	snapshots := make([]models.ModelEvaluationSnapshot, len(stored))
	for i, s := range stored {
		snapshots[i] = s.Snapshot
	}
	return c.JSON(evaluation.Summarize(h.rubric, snapshots))
}

func (h *ModelsHandler) GetRubric(c *fiber.Ctx) error {
	return c.JSON(h.rubric)
}
