package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/internal/transfer"
)

type ScheduleHandler struct {
	s       service.ScheduleService
	credits service.CreditService
}

func NewScheduleHandler(s service.ScheduleService, credits service.CreditService) *ScheduleHandler {
	return &ScheduleHandler{s: s, credits: credits}
}

func (h *ScheduleHandler) Create(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return writeError(c, err)
	}
	scope, err := h.credits.ResolveScope(c.Context(), cl.UserID, cl.TeamID)
	if err != nil {
		return writeError(c, err)
	}

	var req transfer.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}

	items := req.Thread
	if len(items) == 0 {
		items = []string{req.Content}
	}

	result, err := h.s.Create(c.Context(), service.ScheduleInput{
		UserID:       cl.UserID,
		Scope:        scope,
		AccountID:    req.AccountID,
		Items:        items,
		ScheduledFor: req.ScheduledFor,
		Timezone:     req.Timezone,
		MediaURLs:    req.MediaURLs,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *ScheduleHandler) List(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	if posts == nil {
		posts = []*models.ScheduledPost{}
	}
	return c.JSON(posts)
}

func (h *ScheduleHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return writeError(c, apperr.Validation("id", "must be a positive integer"))
	}

	post, err := h.s.Get(c.Context(), GetUserID(c), int64(id))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(post)
}

func (h *ScheduleHandler) Cancel(c *fiber.Ctx) error {
	var req transfer.CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	if req.ScheduledID <= 0 {
		return writeError(c, apperr.Validation("scheduledId", "is required"))
	}

	if err := h.s.Cancel(c.Context(), GetUserID(c), req.ScheduledID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"cancelled": true, "scheduledId": req.ScheduledID})
}

func (h *ScheduleHandler) History(c *fiber.Ctx) error {
	rows, err := h.s.History(c.Context(), GetUserID(c), c.QueryInt("limit", service.DefaultHistory))
	if err != nil {
		return writeError(c, err)
	}
	if rows == nil {
		rows = []*models.PostingHistory{}
	}
	return c.JSON(rows)
}
