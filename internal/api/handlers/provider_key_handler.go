package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/internal/transfer"
)

type ProviderKeyHandler struct {
	s service.ProviderKeyService
}

func NewProviderKeyHandler(service service.ProviderKeyService) *ProviderKeyHandler {
	return &ProviderKeyHandler{s: service}
}

func (h *ProviderKeyHandler) SaveKey(c *fiber.Ctx) error {
	var req transfer.ProviderKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}

	if err := h.s.Save(c.Context(), GetUserID(c), req.Provider, req.APIKey); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *ProviderKeyHandler) ListKeys(c *fiber.Ctx) error {
	keys, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	if keys == nil {
		keys = []*models.ProviderKey{}
	}
	return c.JSON(keys)
}

func (h *ProviderKeyHandler) RemoveKey(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), GetUserID(c), int64(c.QueryInt("id", 0))); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
