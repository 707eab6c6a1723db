package queue

import (
	"context"
	"time"

	"github.com/maheshrc27/threadcraft/internal/metrics"
	"go.uber.org/zap"
)

// noopQueue records what it was asked to do and drops it. Startup
// reconciliation re-enqueues the dropped posts once a broker is back.
type noopQueue struct{}

func NewNoopQueue() DelayedJobQueue {
	return noopQueue{}
}

func (noopQueue) Backend() string { return "noop" }

func (q noopQueue) Enqueue(ctx context.Context, key string, payload []byte, delay time.Duration) error {
	metrics.QueueEnqueue.WithLabelValues(q.Backend(), "dropped").Inc()
	zap.L().Warn("job broker unavailable, job not queued",
		zap.String("key", key),
		zap.Duration("delay", delay))
	return nil
}

func (noopQueue) Cancel(ctx context.Context, key string) error {
	zap.L().Warn("job broker unavailable, nothing to cancel", zap.String("key", key))
	return nil
}
