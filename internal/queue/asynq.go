package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/threadcraft/internal/metrics"
	"go.uber.org/zap"
)

const defaultQueue = "default"

// taskClient and taskInspector are the parts of asynq.Client and
// asynq.Inspector the queue uses.
type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

type asynqQueue struct {
	client    taskClient
	inspector taskInspector
	maxRetry  int
}

// NewAsynqQueue enqueues onto Redis through asynq. The key becomes the task
// id, which makes re-enqueueing a queued post harmless.
func NewAsynqQueue(client *asynq.Client, inspector *asynq.Inspector, maxRetry int) DelayedJobQueue {
	return &asynqQueue{client: client, inspector: inspector, maxRetry: maxRetry}
}

func (q *asynqQueue) Backend() string { return "asynq" }

func (q *asynqQueue) Enqueue(ctx context.Context, key string, payload []byte, delay time.Duration) error {
	info, err := q.enqueue(ctx, key, payload, delay)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		free, cerr := q.clearFinished(key)
		if cerr != nil {
			metrics.QueueEnqueue.WithLabelValues(q.Backend(), "error").Inc()
			return cerr
		}
		if free {
			info, err = q.enqueue(ctx, key, payload, delay)
		}
	}
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		metrics.QueueEnqueue.WithLabelValues(q.Backend(), "duplicate").Inc()
		zap.L().Debug("task already queued", zap.String("key", key))
		return nil
	}
	if err != nil {
		metrics.QueueEnqueue.WithLabelValues(q.Backend(), "error").Inc()
		return err
	}

	metrics.QueueEnqueue.WithLabelValues(q.Backend(), "ok").Inc()
	zap.L().Info("task scheduled",
		zap.String("key", key),
		zap.String("task_id", info.ID),
		zap.Duration("delay", delay))
	return nil
}

func (q *asynqQueue) enqueue(ctx context.Context, key string, payload []byte, delay time.Duration) (*asynq.TaskInfo, error) {
	return q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeSchedulePost, payload),
		asynq.TaskID(key),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(q.maxRetry),
		asynq.Queue(defaultQueue))
}

// clearFinished deletes the task holding key when asynq has archived or
// completed it, since such a task will never run again. It reports whether
// the id is now free.
func (q *asynqQueue) clearFinished(key string) (bool, error) {
	info, err := q.inspector.GetTaskInfo(defaultQueue, key)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false, nil
	}
	zap.L().Warn("replacing finished task", zap.String("key", key), zap.String("state", info.State.String()))
	if err := q.inspector.DeleteTask(defaultQueue, key); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, err
	}
	return true, nil
}

func (q *asynqQueue) Cancel(ctx context.Context, key string) error {
	err := q.inspector.DeleteTask(defaultQueue, key)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		return err
	}
	return nil
}

// NewServer builds the asynq worker server for publish jobs.
func NewServer(opt asynq.RedisConnOpt, concurrency, maxRetry int) *asynq.Server {
	policy := JobPolicy(maxRetry)
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{defaultQueue: 1},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return RetryDelay(policy, n, err)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			zap.L().Error("asynq task failed",
				zap.String("task_type", task.Type()),
				zap.Int("retried", retried),
				zap.Error(err))
		}),
	})
}
