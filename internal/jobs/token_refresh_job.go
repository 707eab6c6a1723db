package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	refreshWindow    = 30 * time.Minute
	concurrencyLimit = 10
)

// TokenRefreshJob refreshes X tokens that lapse within the next half hour so
// publishing rarely has to refresh inline.
type TokenRefreshJob struct {
	sr     repository.SocialAccountRepository
	tokens service.XTokenService
	now    func() time.Time
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, tokens service.XTokenService) *TokenRefreshJob {
	return &TokenRefreshJob{sr: sr, tokens: tokens, now: time.Now}
}

// RefreshTokens returns the number of accounts refreshed.
func (c *TokenRefreshJob) RefreshTokens(ctx context.Context) int {
	accounts, err := c.sr.ListExpiring(ctx, models.PlatformX, c.now().Add(refreshWindow))
	if err != nil {
		zap.L().Error("list expiring accounts", zap.Error(err))
		return 0
	}

	var refreshed atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(concurrencyLimit)

	for _, acc := range accounts {
		g.Go(func() error {
			if _, err := c.tokens.Refresh(ctx, acc); err != nil {
				zap.L().Warn("unable to refresh x token", zap.Int64("account_id", acc.ID), zap.Error(err))
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if len(accounts) > 0 {
		zap.L().Info("token refresh finished", zap.Int("due", len(accounts)), zap.Int32("refreshed", refreshed.Load()))
	}
	return int(refreshed.Load())
}
