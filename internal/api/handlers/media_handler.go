package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/service"
)

type MediaHandler struct {
	s service.MediaService
}

func NewMediaHandler(s service.MediaService) *MediaHandler {
	return &MediaHandler{s: s}
}

func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, apperr.Validation("files", "unable to parse form"))
	}

	urls, err := h.s.Upload(c.Context(), GetUserID(c), form.File["files"])
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"mediaUrls": urls})
}
