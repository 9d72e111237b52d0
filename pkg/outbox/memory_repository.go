package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory implementation of the Repository
// interface. Suitable for development and testing.
type MemoryRepository struct {
	tasks map[uuid.UUID]*Task
	mu    sync.Mutex
}

// NewMemoryRepository creates a new in-memory task repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[uuid.UUID]*Task),
	}
}

func (r *MemoryRepository) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *MemoryRepository) ClaimDue(ctx context.Context, workerID uuid.UUID, limit int, lockTTL time.Duration) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	var due []*Task
	for _, t := range r.tasks {
		expired := t.Status == TaskStatusProcessing && t.LockedUntil != nil && t.LockedUntil.Before(now)
		if (t.Status == TaskStatusPending || expired) && !t.ScheduledAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]Task, 0, len(due))
	until := now.Add(lockTTL)
	for _, t := range due {
		t.Status = TaskStatusProcessing
		t.LockedUntil = &until
		t.LockedBy = &workerID
		claimed = append(claimed, *t)
	}
	return claimed, nil
}

func (r *MemoryRepository) MarkCompleted(ctx context.Context, taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.ProcessedAt = &now
	t.LockedUntil = nil
	t.LockedBy = nil
	return nil
}

func (r *MemoryRepository) Reschedule(ctx context.Context, taskID uuid.UUID, taskErr string, retryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	t.Status = TaskStatusPending
	t.RetryCount++
	t.ScheduledAt = retryAt
	t.Error = &taskErr
	t.LockedUntil = nil
	t.LockedBy = nil
	return nil
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, taskID uuid.UUID, taskErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	now := time.Now()
	t.Status = TaskStatusFailed
	t.ProcessedAt = &now
	t.Error = &taskErr
	t.LockedUntil = nil
	t.LockedBy = nil
	return nil
}

// Get returns a copy of a task by ID. Test helper.
func (r *MemoryRepository) Get(taskID uuid.UUID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}
