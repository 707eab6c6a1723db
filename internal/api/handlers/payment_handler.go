package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/internal/transfer"
	"go.uber.org/zap"
)

const webhookSecretHeader = "X-Webhook-Secret"

type PaymentHandler struct {
	s      service.SubscriptionService
	secret string
}

// NewPaymentHandler checks webhookSecret against the X-Webhook-Secret
// header when it is set.
func NewPaymentHandler(service service.SubscriptionService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{s: service, secret: webhookSecret}
}

func (h *PaymentHandler) PaymentWebhook(c *fiber.Ctx) error {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(c.Get(webhookSecretHeader)), []byte(h.secret)) != 1 {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var event transfer.SubscriptionEvent
	if err := c.BodyParser(&event); err != nil {
		zap.L().Warn("payment webhook body", zap.Error(err))
		return badJSON(c)
	}

	if err := h.s.HandleSubscription(c.Context(), &event); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
