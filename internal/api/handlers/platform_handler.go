package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/threadcraft/configs"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const verifierCookie = "x_oauth_verifier"

type PlatformHandler struct {
	ps  service.PlatformService
	cfg config.Config
}

func NewPlatformHandler(ps service.PlatformService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{ps: ps, cfg: cfg}
}

// AddSocialAccount starts the X connect flow. The caller's session token
// travels as the OAuth state, as the browser leaves our origin.
func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" {
		state = c.Cookies(h.cfg.CookieName)
	}
	if _, err := utils.ValidateToken(h.cfg.SecretKey, state); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	verifier := oauth2.GenerateVerifier()
	c.Cookie(&fiber.Cookie{
		Name:     verifierCookie,
		Value:    verifier,
		HTTPOnly: true,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
	})
	return c.Redirect(h.ps.AuthURL(state, verifier))
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	claims, err := utils.ValidateToken(h.cfg.SecretKey, c.Query("state"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	if _, err := h.ps.Connect(c.Context(), userID, c.Query("code"), c.Cookies(verifierCookie)); err != nil {
		zap.L().Warn("x connect callback", zap.Int64("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}
	c.ClearCookie(verifierCookie)

	return c.Redirect(h.cfg.FrontendURL+"/dashboard/accounts", fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	accounts, err := h.ps.List(c.Context(), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(accounts)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	if err := h.ps.Remove(c.Context(), GetUserID(c), int64(c.QueryInt("id", 0))); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
