package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/internal/transfer"
)

type GenerationHandler struct {
	s service.GenerationService
}

func NewGenerationHandler(s service.GenerationService) *GenerationHandler {
	return &GenerationHandler{s: s}
}

func (h *GenerationHandler) Generate(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, err)
	}

	var req transfer.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}

	resp, err := h.s.Generate(c.Context(), cl, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

func (h *GenerationHandler) Strategy(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, err)
	}

	var req transfer.StrategyRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}

	resp, err := h.s.GenerateStrategy(c.Context(), cl, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}
