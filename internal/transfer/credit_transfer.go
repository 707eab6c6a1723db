package transfer

import "github.com/maheshrc27/threadcraft/internal/models"

type BalanceResponse struct {
	Balance models.Credits `json:"balance"`
	Source  string         `json:"source"`
}

type HistoryResponse struct {
	Transactions []*models.CreditTransaction `json:"transactions"`
	Page         int                         `json:"page"`
	Limit        int                         `json:"limit"`
	Total        int                         `json:"total"`
}

type RefundRequest struct {
	Amount models.Credits `json:"amount"`
	Reason string         `json:"reason"`
}

type InsufficientCreditsResponse struct {
	Error     string         `json:"error"`
	Required  models.Credits `json:"required"`
	Available models.Credits `json:"available"`
	Source    string         `json:"source"`
}
