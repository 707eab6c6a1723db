package service

import (
	"context"
	"time"

	"github.com/maheshrc27/threadcraft/internal/cache"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"go.uber.org/zap"
)

type PlanService interface {
	Tier(ctx context.Context, userID int64) string
}

type planService struct {
	sr    repository.SubscriptionRepository
	cache cache.TierCache
	now   func() time.Time
}

func NewPlanService(sr repository.SubscriptionRepository, c cache.TierCache) PlanService {
	return &planService{sr: sr, cache: c, now: time.Now}
}

// Tier resolves the caller's plan tier. Lookup failures resolve to unknown,
// which routes like free, and are not cached.
func (s *planService) Tier(ctx context.Context, userID int64) string {
	if tier, ok := s.cache.Get(ctx, userID); ok {
		return tier
	}

	sub, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		zap.L().Warn("plan lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return provider.TierUnknown
	}

	tier := provider.TierFree
	if sub.Active(s.now()) {
		tier = provider.NormalizeTier(sub.Plan)
	}
	s.cache.Set(ctx, userID, tier)
	return tier
}
