package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/service"
	"github.com/maheshrc27/threadcraft/internal/transfer"
)

type CreditHandler struct {
	s service.CreditService
}

func NewCreditHandler(s service.CreditService) *CreditHandler {
	return &CreditHandler{s: s}
}

func (h *CreditHandler) scope(c *fiber.Ctx) (models.CreditScope, error) {
	cl, err := caller(c)
	if err != nil {
		return models.CreditScope{}, err
	}
	return h.s.ResolveScope(c.Context(), cl.UserID, cl.TeamID)
}

func (h *CreditHandler) Balance(c *fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return writeError(c, err)
	}

	balance, err := h.s.Balance(c.Context(), scope)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(transfer.BalanceResponse{Balance: balance, Source: scope.Type})
}

func (h *CreditHandler) History(c *fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return writeError(c, err)
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", service.DefaultHistoryLimit)
	if limit <= 0 {
		limit = service.DefaultHistoryLimit
	}
	if limit > service.MaxHistoryLimit {
		limit = service.MaxHistoryLimit
	}

	txs, total, err := h.s.History(c.Context(), scope, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	if txs == nil {
		txs = []*models.CreditTransaction{}
	}
	return c.JSON(transfer.HistoryResponse{Transactions: txs, Page: page, Limit: limit, Total: total})
}

func (h *CreditHandler) Refund(c *fiber.Ctx) error {
	scope, err := h.scope(c)
	if err != nil {
		return writeError(c, err)
	}

	var req transfer.RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}

	balance, err := h.s.ManualRefund(c.Context(), scope, GetUserID(c), req.Amount, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(transfer.BalanceResponse{Balance: balance, Source: scope.Type})
}
