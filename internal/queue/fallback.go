package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/threadcraft/internal/metrics"
	"go.uber.org/zap"
)

// FallbackQueue sends jobs to the primary broker while it is healthy and to
// a no-op otherwise, so scheduling never fails because the broker is down.
type FallbackQueue struct {
	primary  DelayedJobQueue
	fallback DelayedJobQueue
	healthy  atomic.Bool
}

func NewFallbackQueue(primary DelayedJobQueue, healthy bool) *FallbackQueue {
	q := &FallbackQueue{primary: primary, fallback: NewNoopQueue()}
	q.setHealthy(healthy)
	return q
}

func (q *FallbackQueue) Healthy() bool { return q.healthy.Load() }

func (q *FallbackQueue) Backend() string {
	if q.Healthy() {
		return q.primary.Backend()
	}
	return q.fallback.Backend()
}

func (q *FallbackQueue) Enqueue(ctx context.Context, key string, payload []byte, delay time.Duration) error {
	if !q.Healthy() {
		return q.fallback.Enqueue(ctx, key, payload, delay)
	}
	if err := q.primary.Enqueue(ctx, key, payload, delay); err != nil {
		zap.L().Error("enqueue failed, marking broker down", zap.String("key", key), zap.Error(err))
		q.setHealthy(false)
		return q.fallback.Enqueue(ctx, key, payload, delay)
	}
	return nil
}

func (q *FallbackQueue) Cancel(ctx context.Context, key string) error {
	if !q.Healthy() {
		return q.fallback.Cancel(ctx, key)
	}
	return q.primary.Cancel(ctx, key)
}

// Monitor pings the broker every interval and flips the health flag until
// ctx is done. onRecover runs each time the broker comes back.
func (q *FallbackQueue) Monitor(ctx context.Context, ping func(ctx context.Context) error, interval time.Duration, onRecover func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := ping(ctx)
		was := q.Healthy()
		q.setHealthy(err == nil)

		switch {
		case err != nil && was:
			zap.L().Error("job broker unreachable", zap.Error(err))
		case err == nil && !was:
			zap.L().Info("job broker reachable again")
			if onRecover != nil {
				onRecover(ctx)
			}
		}
	}
}

func (q *FallbackQueue) setHealthy(v bool) {
	q.healthy.Store(v)
	if v {
		metrics.QueueBrokerUp.Set(1)
	} else {
		metrics.QueueBrokerUp.Set(0)
	}
}
