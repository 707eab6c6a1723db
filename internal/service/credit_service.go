package service

import (
	"context"
	"errors"
	"strings"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/metrics"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"go.uber.org/zap"
)

const (
	// ThreadItemRate is charged per generated thread item.
	ThreadItemRate models.Credits = 120
	// LongPostRate replaces ThreadItemRate for single posts when the caller
	// has long posts enabled.
	LongPostRate models.Credits = 200

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	maxReasonRunes = 200
)

type CreditService interface {
	ResolveScope(ctx context.Context, userID, teamID int64) (models.CreditScope, error)
	Balance(ctx context.Context, scope models.CreditScope) (models.Credits, error)
	Deduct(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (models.Credits, error)
	Refund(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (models.Credits, error)
	RefundOnce(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (bool, error)
	History(ctx context.Context, scope models.CreditScope, page, limit int) ([]*models.CreditTransaction, int, error)
	ManualRefund(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, reason string) (models.Credits, error)
	// Grant adds purchased or plan credits once per reference.
	Grant(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, referenceID string) (bool, error)
}

type creditService struct {
	cr repository.CreditRepository
	tr repository.TeamRepository
}

func NewCreditService(cr repository.CreditRepository, tr repository.TeamRepository) CreditService {
	return &creditService{cr: cr, tr: tr}
}

// ResolveScope picks the team balance when teamID is set and the caller
// belongs to the team, otherwise the caller's own balance.
func (s *creditService) ResolveScope(ctx context.Context, userID, teamID int64) (models.CreditScope, error) {
	if teamID <= 0 {
		return models.PersonalScope(userID), nil
	}

	member, err := s.tr.IsMember(ctx, teamID, userID)
	if err != nil {
		return models.CreditScope{}, err
	}
	if !member {
		return models.CreditScope{}, apperr.ErrNotTeamMember
	}
	return models.TeamScope(teamID), nil
}

func (s *creditService) Balance(ctx context.Context, scope models.CreditScope) (models.Credits, error) {
	return s.cr.GetBalance(ctx, scope)
}

func (s *creditService) Deduct(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (models.Credits, error) {
	if amount <= 0 {
		return 0, apperr.Validation("amount", "must be positive")
	}
	return s.apply(ctx, repository.LedgerEntry{Scope: scope, UserID: userID, Amount: -amount, Operation: operation, ReferenceID: referenceID})
}

func (s *creditService) Refund(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (models.Credits, error) {
	if amount <= 0 {
		return 0, apperr.Validation("amount", "must be positive")
	}
	return s.apply(ctx, repository.LedgerEntry{Scope: scope, UserID: userID, Amount: amount, Operation: operation, ReferenceID: referenceID})
}

// RefundOnce refunds amount unless the reference already carries a refund.
// It reports whether a refund was written.
func (s *creditService) RefundOnce(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, operation, referenceID string) (bool, error) {
	if amount <= 0 {
		return false, nil
	}
	already, err := s.cr.SumByReference(ctx, scope, referenceID)
	if err != nil {
		return false, err
	}
	if already > 0 {
		return false, nil
	}
	if _, err := s.Refund(ctx, scope, userID, amount, operation, referenceID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *creditService) Grant(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, referenceID string) (bool, error) {
	if amount <= 0 {
		return false, nil
	}
	already, err := s.cr.SumByReference(ctx, scope, referenceID)
	if err != nil {
		return false, err
	}
	if already > 0 {
		return false, nil
	}
	if _, err := s.apply(ctx, repository.LedgerEntry{Scope: scope, UserID: userID, Amount: amount, Operation: models.OpGrant, ReferenceID: referenceID}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *creditService) History(ctx context.Context, scope models.CreditScope, page, limit int) ([]*models.CreditTransaction, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.cr.ListTransactions(ctx, scope, limit, (page-1)*limit)
}

// ManualRefund returns credits to a scope, capped at what the scope has
// actually spent.
func (s *creditService) ManualRefund(ctx context.Context, scope models.CreditScope, userID int64, amount models.Credits, reason string) (models.Credits, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return 0, apperr.Validation("reason", "is required")
	}
	if amount <= 0 {
		return 0, apperr.Validation("amount", "must be positive")
	}

	spent, err := s.cr.NetSpend(ctx, scope)
	if err != nil {
		return 0, err
	}
	if amount > spent {
		return 0, apperr.Validation("amount", "exceeds net spend of "+spent.String())
	}

	if r := []rune(reason); len(r) > maxReasonRunes {
		reason = string(r[:maxReasonRunes])
	}
	return s.Refund(ctx, scope, userID, amount, models.OpManualRefund, "manual: "+reason)
}

func (s *creditService) apply(ctx context.Context, entry repository.LedgerEntry) (models.Credits, error) {
	balance, err := s.cr.Apply(ctx, entry)
	if err != nil {
		var insufficient *apperr.InsufficientCreditsError
		if !errors.As(err, &insufficient) {
			zap.L().Error("ledger write failed",
				zap.String("scope", entry.Scope.String()),
				zap.String("operation", entry.Operation),
				zap.Error(err))
		}
		return balance, err
	}

	metrics.CreditOperations.WithLabelValues(entry.Operation).Inc()
	zap.L().Info("ledger entry",
		zap.String("scope", entry.Scope.String()),
		zap.String("operation", entry.Operation),
		zap.Stringer("amount", entry.Amount),
		zap.Stringer("balance", balance),
		zap.String("reference_id", entry.ReferenceID))
	return balance, nil
}
