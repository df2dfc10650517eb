package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vidstash/api/internal/model"
	"github.com/vidstash/api/internal/service"
	"github.com/vidstash/api/pkg/response"
)

type HistoryHandler struct {
	history *service.HistoryService
}

func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List handles GET /api/history
// @Summary      Get download history
// @Description  Terminal outcomes, newest first, with totals
// @Tags         History
// @Produce      json
// @Success      200 {object} model.HistoryResponse
// @Router       /api/history [get]
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	entries, completed, failed := h.history.Snapshot()
	return response.OK(c, model.HistoryResponse{
		Entries:        entries,
		TotalCompleted: completed,
		TotalFailed:    failed,
	})
}

// Retry handles POST /api/history/:id/retry
// @Summary      Retry failed download
// @Description  Resubmit a failed entry as a brand-new queued job
// @Tags         History
// @Produce      json
// @Param        id path string true "History entry ID"
// @Success      200 {object} model.RetryResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/history/{id}/retry [post]
func (h *HistoryHandler) Retry(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Entry ID is required", nil)
	}

	jobID, length, err := h.history.Retry(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrEntryNotFound) {
			return response.NotFound(c, "History entry not found")
		}
		if errors.Is(err, service.ErrNotRetryable) {
			return response.ValidationError(c, "Only failed downloads can be retried", nil)
		}
		if errors.Is(err, service.ErrDuplicateJob) {
			return response.DuplicateJob(c, "Resource is already queued or downloading")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.RetryResponse{
		OK:          true,
		JobID:       jobID,
		QueueLength: length,
	})
}

// RetryAll handles POST /api/history/retry-all
// @Summary      Retry all failed downloads
// @Description  Resubmit every failed entry, tolerating partial failure
// @Tags         History
// @Produce      json
// @Success      200 {object} model.RetryAllResponse
// @Router       /api/history/retry-all [post]
func (h *HistoryHandler) RetryAll(c *fiber.Ctx) error {
	retried, total := h.history.RetryAll(c.Context())
	return response.OK(c, model.RetryAllResponse{
		Retried: retried,
		Total:   total,
	})
}

// Remove handles DELETE /api/history/:id
// @Summary      Remove history entry
// @Tags         History
// @Produce      json
// @Param        id path string true "History entry ID"
// @Success      200 {object} map[string]bool
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/history/{id} [delete]
func (h *HistoryHandler) Remove(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Entry ID is required", nil)
	}

	if err := h.history.Remove(c.Context(), id); err != nil {
		if errors.Is(err, service.ErrEntryNotFound) {
			return response.NotFound(c, "History entry not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"ok": true})
}

// Clear handles DELETE /api/history
// @Summary      Clear history
// @Tags         History
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/history [delete]
func (h *HistoryHandler) Clear(c *fiber.Ctx) error {
	cleared := h.history.Clear(c.Context())
	return response.OK(c, fiber.Map{"ok": true, "cleared": cleared})
}

// ClearFailed handles DELETE /api/history/failed
// @Summary      Clear failed history entries
// @Tags         History
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/history/failed [delete]
func (h *HistoryHandler) ClearFailed(c *fiber.Ctx) error {
	cleared := h.history.ClearFailed(c.Context())
	return response.OK(c, fiber.Map{"ok": true, "cleared": cleared})
}
