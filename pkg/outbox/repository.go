package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRepositoryNil = errors.New("outbox: repository is nil")
	ErrPayloadNil    = errors.New("outbox: payload is nil")
	ErrTaskNotFound  = errors.New("outbox: task not found")
)

// Repository persists tasks and hands them out to workers.
//
// ClaimDue is the contended operation: multiple worker processes poll the
// same table, and the repository must guarantee a task is claimed by at
// most one worker at a time (row-level locking in Postgres, mutex in the
// memory implementation).
type Repository interface {
	// CreateTask stores a new pending task.
	CreateTask(ctx context.Context, task *Task) error

	// ClaimDue atomically claims up to limit due pending tasks for the
	// worker, marking them processing and locked until lockTTL elapses.
	ClaimDue(ctx context.Context, workerID uuid.UUID, limit int, lockTTL time.Duration) ([]Task, error)

	// MarkCompleted finishes a task successfully.
	MarkCompleted(ctx context.Context, taskID uuid.UUID) error

	// Reschedule returns a failed task to pending with the attempt error
	// recorded, to run again no earlier than retryAt.
	Reschedule(ctx context.Context, taskID uuid.UUID, taskErr string, retryAt time.Time) error

	// MarkFailed records a terminal failure after retries are exhausted.
	MarkFailed(ctx context.Context, taskID uuid.UUID, taskErr string) error
}
