package job

import (
	"context"
	"time"

	"github.com/maheshrc27/threadcraft/internal/metrics"
	"github.com/maheshrc27/threadcraft/internal/models"
	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/service"
	"go.uber.org/zap"
)

const (
	staleAfter   = time.Hour
	staleMessage = "worker lost"
)

// ExpiryJob expires pending posts that are far past their time and fails
// posts whose worker stopped reporting.
type ExpiryJob struct {
	posts   repository.ScheduledPostRepository
	credits service.CreditService
	grace   time.Duration
	now     func() time.Time
}

func NewExpiryJob(posts repository.ScheduledPostRepository, credits service.CreditService, grace time.Duration) *ExpiryJob {
	return &ExpiryJob{posts: posts, credits: credits, grace: grace, now: time.Now}
}

type SweepResult struct {
	Expired  int
	Refunded int
	Stale    int64
}

func (j *ExpiryJob) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	now := j.now()

	ids, err := j.posts.ExpireOverdue(ctx, now.Add(-j.grace))
	if err != nil {
		zap.L().Error("expire overdue posts", zap.Error(err))
	}
	res.Expired = len(ids)

	for _, id := range ids {
		metrics.ScheduledPosts.WithLabelValues(models.PostStatusExpired).Inc()

		post, err := j.posts.GetByID(ctx, id)
		if err != nil || post == nil {
			continue
		}
		refunded, err := j.credits.RefundOnce(ctx, post.Scope(), post.UserID, post.CreditsSpent, models.OpPublishRefund, service.PostReference(id))
		if err != nil {
			zap.L().Error("refund expired post", zap.Int64("scheduled_post_id", id), zap.Error(err))
			continue
		}
		if refunded {
			res.Refunded++
		}
	}

	res.Stale, err = j.posts.FailStale(ctx, now.Add(-staleAfter), staleMessage)
	if err != nil {
		zap.L().Error("fail stale posts", zap.Error(err))
	}
	if res.Stale > 0 {
		metrics.ScheduledPosts.WithLabelValues(models.PostStatusFailed).Add(float64(res.Stale))
	}

	if res.Expired > 0 || res.Stale > 0 {
		zap.L().Info("scheduled post sweep",
			zap.Int("expired", res.Expired),
			zap.Int("refunded", res.Refunded),
			zap.Int64("stale", res.Stale))
	}
	return res
}
