package queue

import (
	"context"
	"time"

	"github.com/maheshrc27/threadcraft/internal/repository"
	"github.com/maheshrc27/threadcraft/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reconcileParallelism = 8

// Reconcile re-enqueues every pending post. Job keys are deterministic, so
// posts whose job survived in the broker are left alone. It returns how many
// posts were handed to the queue.
func Reconcile(ctx context.Context, posts repository.ScheduledPostRepository, enqueuer service.JobEnqueuer, now time.Time) (int, error) {
	pending, err := posts.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileParallelism)
	for _, p := range pending {
		p := p
		g.Go(func() error {
			delay := p.ScheduledFor.Sub(now)
			if delay < 0 {
				delay = 0
			}
			if err := enqueuer.EnqueuePublish(gctx, p.ID, delay); err != nil {
				zap.L().Error("re-enqueue pending post", zap.Int64("scheduled_post_id", p.ID), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	zap.L().Info("reconciled pending posts", zap.Int("count", len(pending)))
	return len(pending), nil
}
