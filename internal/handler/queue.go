package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vidstash/api/internal/model"
	"github.com/vidstash/api/internal/service"
	"github.com/vidstash/api/pkg/response"
)

type QueueHandler struct {
	queue     *service.QueueService
	validator *validator.Validate
}

func NewQueueHandler(queue *service.QueueService, v *validator.Validate) *QueueHandler {
	return &QueueHandler{
		queue:     queue,
		validator: v,
	}
}

// Enqueue handles POST /api/queue/jobs
// @Summary      Enqueue fetch job
// @Description  Admit a new retrieval job at the tail of the queue
// @Tags         Queue
// @Accept       json
// @Produce      json
// @Param        request body model.EnqueueRequest true "Job to enqueue"
// @Success      202 {object} model.EnqueueResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/queue/jobs [post]
func (h *QueueHandler) Enqueue(c *fiber.Ctx) error {
	var req model.EnqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job := &model.Job{
		ResourceID: req.ResourceID,
		SourceURL:  req.SourceURL,
		Rendition:  req.Rendition,
		Display:    req.Display,
	}

	length, err := h.queue.Enqueue(c.Context(), job)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateJob) {
			return response.DuplicateJob(c, "Resource is already queued or downloading")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.EnqueueResponse{
		OK:          true,
		JobID:       job.ID,
		QueueLength: length,
		CreatedAt:   job.CreatedAt,
	})
}

// State handles GET /api/queue
// @Summary      Get queue state
// @Description  Full job list plus the processing flag
// @Tags         Queue
// @Produce      json
// @Success      200 {object} model.QueueStateResponse
// @Router       /api/queue [get]
func (h *QueueHandler) State(c *fiber.Ctx) error {
	jobs, processing := h.queue.Snapshot()
	return response.OK(c, model.QueueStateResponse{
		Jobs:         jobs,
		IsProcessing: processing,
	})
}

// Remove handles DELETE /api/queue/jobs/:id
// @Summary      Remove queued job
// @Description  Remove a job by id; in-flight jobs cannot be removed
// @Tags         Queue
// @Produce      json
// @Param        id path string true "Job ID"
// @Success      200 {object} map[string]bool
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/queue/jobs/{id} [delete]
func (h *QueueHandler) Remove(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.queue.Remove(c.Context(), id); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobActive) {
			return response.JobActive(c, "Cannot remove a job that is downloading")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"ok": true})
}

// ClearFinished handles POST /api/queue/clear-finished
// @Summary      Clear finished jobs
// @Description  Sweep completed and failed jobs out of the queue
// @Tags         Queue
// @Produce      json
// @Success      200 {object} model.ClearFinishedResponse
// @Router       /api/queue/clear-finished [post]
func (h *QueueHandler) ClearFinished(c *fiber.Ctx) error {
	cleared, length := h.queue.ClearFinished(c.Context())
	return response.OK(c, model.ClearFinishedResponse{
		OK:          true,
		Cleared:     cleared,
		QueueLength: length,
	})
}
