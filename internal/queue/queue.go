// Package queue delivers scheduled posts to the publisher at their target
// time. The broker sits behind DelayedJobQueue so asynq, an in-memory queue
// and a logging no-op are interchangeable.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/retry"
)

const TaskTypeSchedulePost = "schedule:post"

// DelayedJobQueue runs a keyed job once its delay has passed. Enqueueing a
// key that is still queued is a no-op.
type DelayedJobQueue interface {
	Enqueue(ctx context.Context, key string, payload []byte, delay time.Duration) error
	Cancel(ctx context.Context, key string) error
	Backend() string
}

// SchedulePostPayload is the whole job body: the post is re-read when the
// job fires.
type SchedulePostPayload struct {
	ScheduledTweetID int64 `json:"scheduledTweetId"`
}

func JobKey(scheduledPostID int64) string {
	return "scheduled:" + strconv.FormatInt(scheduledPostID, 10)
}

func DecodePayload(b []byte) (SchedulePostPayload, error) {
	var p SchedulePostPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	if p.ScheduledTweetID <= 0 {
		return p, errors.New("payload has no scheduledTweetId")
	}
	return p, nil
}

// JobPolicy is the queue-level retry policy for publish jobs. Rate-limit
// errors wait at least as long as the platform asked.
func JobPolicy(maxRetry int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxRetry + 1,
		Backoff:     retry.Exponential(30*time.Second, 30*time.Minute),
	}
}

// RetryDelay is the wait before attempt n+1 after err.
func RetryDelay(p retry.Policy, n int, err error) time.Duration {
	d := p.Delay(n + 1)
	var limited *apperr.RateLimitedError
	if errors.As(err, &limited) && limited.RetryAfter > d {
		d = limited.RetryAfter
	}
	return d
}

// Scheduler adapts a DelayedJobQueue to the scheduling service.
type Scheduler struct {
	q DelayedJobQueue
}

func NewScheduler(q DelayedJobQueue) *Scheduler {
	return &Scheduler{q: q}
}

func (s *Scheduler) EnqueuePublish(ctx context.Context, scheduledPostID int64, delay time.Duration) error {
	payload, err := json.Marshal(SchedulePostPayload{ScheduledTweetID: scheduledPostID})
	if err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}
	return s.q.Enqueue(ctx, JobKey(scheduledPostID), payload, delay)
}

func (s *Scheduler) CancelPublish(ctx context.Context, scheduledPostID int64) error {
	return s.q.Cancel(ctx, JobKey(scheduledPostID))
}
