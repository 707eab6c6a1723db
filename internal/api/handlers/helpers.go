package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/internal/transfer"
	"go.uber.org/zap"
)

const TeamHeader = "X-Team-ID"

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := c.Locals("user_id").(int64)
	return userID
}

// caller reads the authenticated user and the optional team header.
func caller(c *fiber.Ctx) (service.Caller, error) {
	cl := service.Caller{UserID: GetUserID(c)}
	raw := strings.TrimSpace(c.Get(TeamHeader))
	if raw == "" {
		return cl, nil
	}
	teamID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || teamID <= 0 {
		return cl, apperr.Validation(TeamHeader, "must be a positive integer")
	}
	cl.TeamID = teamID
	return cl, nil
}

// writeError is the single place the error taxonomy becomes HTTP.
func writeError(c *fiber.Ctx, err error) error {
	var (
		validation   *apperr.ValidationError
		insufficient *apperr.InsufficientCreditsError
		allAuth      *apperr.AllProvidersUnauthorizedError
		critical     *apperr.QualityGateCriticalError
	)

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validation.Error(), "field": validation.Field})
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusPaymentRequired).JSON(transfer.InsufficientCreditsResponse{
			Error:     "insufficient credits",
			Required:  models.Credits(insufficient.Required),
			Available: models.Credits(insufficient.Available),
			Source:    insufficient.ScopeType,
		})
	case errors.Is(err, apperr.ErrNotTeamMember):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, apperr.ErrNoProvidersConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &allAuth):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": allAuth.Error()})
	case errors.As(err, &critical):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": critical.Error(), "reasons": critical.Reasons})
	}

	zap.L().Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int64("user_id", GetUserID(c)),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func badJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unable to parse json"})
}
