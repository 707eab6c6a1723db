package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/internal/transfer"
)

type SettingsHandler struct {
	s service.SettingsService
}

func NewSettingsHandler(service service.SettingsService) *SettingsHandler {
	return &SettingsHandler{s: service}
}

func (h *SettingsHandler) GetSettingsInfo(c *fiber.Ctx) error {
	settings, err := h.s.Get(c.Context(), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(settings)
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var req transfer.SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}

	settings, err := h.s.Update(c.Context(), GetUserID(c), req.LongPostEnabled, req.PreferOwnKeys)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(settings)
}
