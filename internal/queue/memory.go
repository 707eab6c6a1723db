package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadcraft/internal/metrics"
	"github.com/maheshrc27/threadcraft/internal/retry"
	"go.uber.org/zap"
)

type memoryJob struct {
	key      string
	payload  []byte
	due      time.Time
	attempts int
}

// MemoryQueue keeps jobs in process. It loses everything on restart and is
// meant for tests and single-process development.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   map[string]*memoryJob
	policy retry.Policy
	now    func() time.Time
}

func NewMemoryQueue(policy retry.Policy) *MemoryQueue {
	return &MemoryQueue{jobs: map[string]*memoryJob{}, policy: policy, now: time.Now}
}

func (q *MemoryQueue) Backend() string { return "memory" }

func (q *MemoryQueue) Enqueue(ctx context.Context, key string, payload []byte, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[key]; ok {
		metrics.QueueEnqueue.WithLabelValues(q.Backend(), "duplicate").Inc()
		return nil
	}
	q.jobs[key] = &memoryJob{key: key, payload: payload, due: q.now().Add(delay)}
	metrics.QueueEnqueue.WithLabelValues(q.Backend(), "ok").Inc()
	return nil
}

func (q *MemoryQueue) Cancel(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, key)
	return nil
}

// Len is the number of queued jobs, due or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// RunDue hands every job due at now to handle, oldest first. A failed job is
// rescheduled under the retry policy unless it wrapped asynq.SkipRetry or
// ran out of attempts. It returns how many jobs ran.
func (q *MemoryQueue) RunDue(ctx context.Context, now time.Time, handle func(ctx context.Context, payload []byte) error) int {
	q.mu.Lock()
	var due []*memoryJob
	for _, j := range q.jobs {
		if !j.due.After(now) {
			due = append(due, j)
		}
	}
	for _, j := range due {
		delete(q.jobs, j.key)
	}
	q.mu.Unlock()

	sort.Slice(due, func(a, b int) bool { return due[a].due.Before(due[b].due) })

	for _, j := range due {
		err := handle(ctx, j.payload)
		if err == nil {
			continue
		}

		j.attempts++
		if errors.Is(err, asynq.SkipRetry) || j.attempts >= q.policy.Attempts() {
			zap.L().Error("memory job failed permanently", zap.String("key", j.key), zap.Error(err))
			continue
		}

		j.due = now.Add(RetryDelay(q.policy, j.attempts-1, err))
		q.mu.Lock()
		if _, taken := q.jobs[j.key]; !taken {
			q.jobs[j.key] = j
		}
		q.mu.Unlock()
	}
	return len(due)
}

// Run polls for due jobs every interval until ctx is done.
func (q *MemoryQueue) Run(ctx context.Context, interval time.Duration, handle func(ctx context.Context, payload []byte) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.RunDue(ctx, q.now(), handle)
		}
	}
}
