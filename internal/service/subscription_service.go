package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/cache"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/transfer"
	"go.uber.org/zap"
)

const EventSubscriptionPaid = "subscription.paid"

// PlanCredits is what each paid billing period grants to the personal
// balance.
var PlanCredits = map[string]models.Credits{
	provider.TierStarter:    10000,
	provider.TierPro:        30000,
	provider.TierEnterprise: 100000,
}

type SubscriptionService interface {
	HandleSubscription(ctx context.Context, payload *transfer.SubscriptionEvent) error
}

type subscriptionService struct {
	u       repository.UserRepository
	s       repository.SubscriptionRepository
	credits CreditService
	tiers   cache.TierCache
}

func NewSubscriptionService(u repository.UserRepository, s repository.SubscriptionRepository, credits CreditService, tiers cache.TierCache) SubscriptionService {
	return &subscriptionService{u: u, s: s, credits: credits, tiers: tiers}
}

func (s *subscriptionService) HandleSubscription(ctx context.Context, payload *transfer.SubscriptionEvent) error {
	if payload.EventType != EventSubscriptionPaid {
		zap.L().Debug("ignoring subscription event", zap.String("event", payload.EventType))
		return nil
	}

	obj := payload.Object
	email := strings.TrimSpace(strings.ToLower(obj.Customer.Email))
	if email == "" {
		return apperr.Validation("customer.email", "is required")
	}

	userID, err := s.u.Upsert(ctx, &models.User{Email: email})
	if err != nil {
		return err
	}

	tier := provider.NormalizeTier(obj.Product.Name)
	status := obj.Status
	if status == "" {
		status = models.SubscriptionStatusActive
	}
	sub := &models.Subscription{
		UserID:              userID,
		Plan:                tier,
		Status:              status,
		SubscriptionEndDate: sql.NullTime{Time: obj.CurrentPeriodEndDate, Valid: !obj.CurrentPeriodEndDate.IsZero()},
	}
	if err := s.s.Upsert(ctx, sub); err != nil {
		return err
	}
	s.tiers.Invalidate(ctx, userID)

	amount := PlanCredits[tier]
	if amount == 0 || status != models.SubscriptionStatusActive {
		return nil
	}

	ref := "subscription:" + obj.ID + ":" + obj.CurrentPeriodEndDate.UTC().Format("2006-01-02")
	granted, err := s.credits.Grant(ctx, models.PersonalScope(userID), userID, amount, ref)
	if err != nil {
		return err
	}
	if granted {
		zap.L().Info("plan credits granted",
			zap.Int64("user_id", userID),
			zap.String("tier", tier),
			zap.Stringer("amount", amount))
	}
	return nil
}
