package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/vidstash/api/internal/service"
	"github.com/vidstash/api/pkg/response"
)

type SettingsHandler struct {
	settings *service.SettingsService
}

func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get handles GET /api/settings
// @Summary      Get UI settings
// @Tags         Settings
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/settings [get]
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	blob, err := h.settings.Get(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(blob)
}

// Put handles PUT /api/settings
// @Summary      Replace UI settings
// @Description  Stores the settings blob verbatim; the core never interprets it
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]bool
// @Failure      400 {object} response.ErrorResponse
// @Router       /api/settings [put]
func (h *SettingsHandler) Put(c *fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return response.ValidationError(c, "Settings must be valid JSON", nil)
	}

	if err := h.settings.Set(c.Context(), body); err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"ok": true})
}
