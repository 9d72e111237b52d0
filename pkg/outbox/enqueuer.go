package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer adds tasks to the outbox.
type Enqueuer struct {
	repo Repository
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(repo Repository) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	return &Enqueuer{repo: repo}, nil
}

// EnqueueOption configures a single enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	delay      time.Duration
	maxRetries int8
}

// WithDelay schedules the task to run no earlier than now+delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithMaxRetries overrides the retry budget for the task.
func WithMaxRetries(n int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// Enqueue stores a named task with a JSON-encoded payload.
func (e *Enqueuer) Enqueue(ctx context.Context, taskName string, payload any, opts ...EnqueueOption) (*Task, error) {
	if payload == nil {
		return nil, ErrPayloadNil
	}

	options := &enqueueOptions{maxRetries: DefaultMaxRetries}
	for _, opt := range opts {
		opt(options)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("outbox: failed to marshal payload of type %T: %w", payload, err)
	}

	now := time.Now()
	task := &Task{
		ID:          uuid.New(),
		TaskName:    taskName,
		Payload:     body,
		Status:      TaskStatusPending,
		MaxRetries:  options.maxRetries,
		ScheduledAt: now.Add(options.delay),
		CreatedAt:   now,
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("outbox: failed to create task %q: %w", taskName, err)
	}
	return task, nil
}
