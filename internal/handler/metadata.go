package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vidstash/api/internal/cache"
	"github.com/vidstash/api/internal/client"
	"github.com/vidstash/api/internal/model"
	"github.com/vidstash/api/pkg/response"
)

type MetadataHandler struct {
	cache        *cache.MetadataCache
	resolver     client.MetadataResolver
	awaitTimeout time.Duration
	validator    *validator.Validate
}

func NewMetadataHandler(mc *cache.MetadataCache, resolver client.MetadataResolver, awaitTimeout time.Duration, v *validator.Validate) *MetadataHandler {
	if awaitTimeout <= 0 {
		awaitTimeout = cache.DefaultAwaitTimeout
	}
	return &MetadataHandler{
		cache:        mc,
		resolver:     resolver,
		awaitTimeout: awaitTimeout,
		validator:    v,
	}
}

// Get handles GET /api/metadata/:resourceId
// @Summary      Lookup cached metadata
// @Description  Returns cached metadata, or null on a miss. Never blocks.
// @Tags         Metadata
// @Produce      json
// @Param        resourceId path string true "Resource ID"
// @Success      200 {object} model.ResourceMetadata
// @Router       /api/metadata/{resourceId} [get]
func (h *MetadataHandler) Get(c *fiber.Ctx) error {
	resourceID := c.Params("resourceId")
	if resourceID == "" {
		return response.ValidationError(c, "Resource ID is required", nil)
	}
	return response.OK(c, h.cache.Lookup(resourceID))
}

// Await handles GET /api/metadata/:resourceId/await
// @Summary      Lookup metadata, waiting for an in-flight fetch
// @Description  Like lookup, but coalesces onto an in-flight prefetch; may delay up to wait_ms (default 10s)
// @Tags         Metadata
// @Produce      json
// @Param        resourceId path string true "Resource ID"
// @Param        wait_ms query int false "Maximum wait in milliseconds"
// @Success      200 {object} model.ResourceMetadata
// @Router       /api/metadata/{resourceId}/await [get]
func (h *MetadataHandler) Await(c *fiber.Ctx) error {
	resourceID := c.Params("resourceId")
	if resourceID == "" {
		return response.ValidationError(c, "Resource ID is required", nil)
	}

	maxWait := h.awaitTimeout
	if ms := c.QueryInt("wait_ms"); ms > 0 {
		maxWait = time.Duration(ms) * time.Millisecond
		if maxWait > h.awaitTimeout {
			maxWait = h.awaitTimeout
		}
	}

	return response.OK(c, h.cache.LookupAwait(c.Context(), resourceID, maxWait))
}

// Prefetch handles POST /api/metadata/prefetch
// @Summary      Prefetch metadata
// @Description  Fire-and-forget cache warm-up; concurrent calls for the same resource coalesce
// @Tags         Metadata
// @Accept       json
// @Produce      json
// @Param        request body model.PrefetchRequest true "Resource to prefetch"
// @Success      202 {object} model.PrefetchResponse
// @Failure      400 {object} response.ErrorResponse
// @Router       /api/metadata/prefetch [post]
func (h *MetadataHandler) Prefetch(c *fiber.Ctx) error {
	var req model.PrefetchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	// Outlives the request: the resolver runs after this handler returns
	h.cache.Prefetch(context.Background(), req.ResourceID, h.resolver.Resolve)

	return response.Accepted(c, model.PrefetchResponse{Acknowledged: true})
}
