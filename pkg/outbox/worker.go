package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// HandlerFunc processes one task payload. Returning an error reschedules
// the task with backoff until its retry budget is exhausted.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Worker polls the repository for due tasks and runs registered handlers.
// Multiple workers (in one or many processes) may poll the same repository;
// ClaimDue guarantees each task runs on at most one of them at a time.
type Worker struct {
	repo         Repository
	id           uuid.UUID
	handlers     map[string]HandlerFunc
	handlersMu   sync.RWMutex
	pollInterval time.Duration
	batchSize    int
	lockTTL      time.Duration
	backoffBase  time.Duration
	log          *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPollInterval sets how often the worker polls for due tasks.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithBatchSize sets how many tasks are claimed per poll.
func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithLockTTL sets how long a claimed task stays locked before another
// worker may reclaim it.
func WithLockTTL(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lockTTL = d
		}
	}
}

// WithBackoffBase sets the base for exponential retry backoff:
// retry n waits base * 2^n.
func WithBackoffBase(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.backoffBase = d
		}
	}
}

// WithWorkerLogger sets the logger for the Worker.
func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWorker creates a new outbox worker.
func NewWorker(repo Repository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	w := &Worker{
		repo:         repo,
		id:           uuid.New(),
		handlers:     make(map[string]HandlerFunc),
		pollInterval: time.Second,
		batchSize:    10,
		lockTTL:      time.Minute,
		backoffBase:  5 * time.Second,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Register binds a handler to a task name, replacing any previous binding.
func (w *Worker) Register(taskName string, handler HandlerFunc) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.handlers[taskName] = handler
}

// Run polls until the context is cancelled. It always returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce claims and processes a single batch of due tasks. Exposed for
// tests and for callers driving the worker on their own schedule.
func (w *Worker) RunOnce(ctx context.Context) {
	tasks, err := w.repo.ClaimDue(ctx, w.id, w.batchSize, w.lockTTL)
	if err != nil {
		w.log.LogAttrs(ctx, slog.LevelError, "Failed to claim due tasks",
			logger.Component("outbox"),
			logger.Error(err),
		)
		return
	}

	for _, task := range tasks {
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	w.handlersMu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.handlersMu.RUnlock()

	if !ok {
		// A task nothing handles would otherwise be reclaimed forever.
		w.failTask(ctx, task, fmt.Sprintf("no handler registered for task %q", task.TaskName))
		return
	}

	err := w.invoke(ctx, handler, task.Payload)
	if err == nil {
		if err := w.repo.MarkCompleted(ctx, task.ID); err != nil {
			w.log.LogAttrs(ctx, slog.LevelError, "Failed to mark task completed",
				logger.Component("outbox"),
				slog.String("task_id", task.ID.String()),
				logger.Error(err),
			)
		}
		return
	}

	if task.RetryCount >= task.MaxRetries {
		w.failTask(ctx, task, err.Error())
		return
	}

	retryAt := time.Now().Add(w.backoffBase * (1 << task.RetryCount))
	if rErr := w.repo.Reschedule(ctx, task.ID, err.Error(), retryAt); rErr != nil {
		w.log.LogAttrs(ctx, slog.LevelError, "Failed to reschedule task",
			logger.Component("outbox"),
			slog.String("task_id", task.ID.String()),
			logger.Error(rErr),
		)
		return
	}

	w.log.LogAttrs(ctx, slog.LevelWarn, "Task failed, scheduled for retry",
		logger.Component("outbox"),
		slog.String("task_name", task.TaskName),
		slog.String("task_id", task.ID.String()),
		logger.RetryCount(int(task.RetryCount)+1),
		logger.Error(err),
	)
}

// invoke runs a handler with panic isolation: a panicking handler is a
// failed attempt, not a dead worker.
func (w *Worker) invoke(ctx context.Context, handler HandlerFunc, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("outbox: handler panicked: %v", r)
		}
	}()
	return handler(ctx, payload)
}

func (w *Worker) failTask(ctx context.Context, task Task, msg string) {
	if err := w.repo.MarkFailed(ctx, task.ID, msg); err != nil {
		w.log.LogAttrs(ctx, slog.LevelError, "Failed to mark task failed",
			logger.Component("outbox"),
			slog.String("task_id", task.ID.String()),
			logger.Error(err),
		)
		return
	}
	w.log.LogAttrs(ctx, slog.LevelError, "Task failed permanently",
		logger.Component("outbox"),
		slog.String("task_name", task.TaskName),
		slog.String("task_id", task.ID.String()),
		slog.String("task_error", msg),
	)
}
