package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/history"
	"github.com/transparency-atlas/backend/internal/storage/models"
	"github.com/transparency-atlas/backend/pkg/logger"
)

type HistoryStore interface {
	History(modelID string) ([]models.VersionHistoryEntry, error)
	AppendHistory(entry models.VersionHistoryEntry) ([]models.VersionHistoryEntry, error)
}

type HistoryHandler struct {
	store HistoryStore
}

func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	modelID := c.Params("id")

	chain, err := h.store.History(modelID)
	if err != nil {
		logger.Error("Failed to get history", zap.String("model_id", modelID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get history",
		})
	}

	return c.JSON(fiber.Map{
		"modelId": modelID,
		"entries": history.Timeline(chain),
	})
}

// AppendEntry stores a new entry. Changes are always computed server side;
// any supplied in the body are ignored when the entry carries a card.
func (h *HistoryHandler) AppendEntry(c *fiber.Ctx) error {
	modelID := c.Params("id")

	var entry models.VersionHistoryEntry
	if err := c.BodyParser(&entry); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if entry.ModelID == "" {
		entry.ModelID = modelID
	}
	if entry.ModelID != modelID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "modelId does not match the path",
		})
	}
	if err := history.Validate(entry); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	chain, err := h.store.AppendHistory(entry)
	if err != nil {
		logger.Error("Failed to append history", zap.String("model_id", modelID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to append history",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"modelId": modelID,
		"entries": history.Timeline(chain),
	})
}
