package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository is a PostgreSQL implementation of the Repository interface.
// Claiming uses FOR UPDATE SKIP LOCKED so concurrent workers never block
// each other or double-claim a task.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a Postgres-backed task repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO outbox_tasks (id, task_name, payload, status, retry_count, max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		task.ID, task.TaskName, task.Payload, task.Status,
		task.RetryCount, task.MaxRetries, task.ScheduledAt, task.CreatedAt,
	)
	return err
}

func (r *PgRepository) ClaimDue(ctx context.Context, workerID uuid.UUID, limit int, lockTTL time.Duration) ([]Task, error) {
	now := time.Now()
	rows, err := r.pool.Query(ctx, `
		UPDATE outbox_tasks
		SET status = $1, locked_until = $2, locked_by = $3
		WHERE id IN (
			SELECT id FROM outbox_tasks
			WHERE scheduled_at <= $4
			  AND (status = $5 OR (status = $1 AND locked_until < $4))
			ORDER BY scheduled_at
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, task_name, payload, status, retry_count, max_retries,
		          scheduled_at, locked_until, locked_by, processed_at, error, created_at`,
		TaskStatusProcessing, now.Add(lockTTL), workerID, now, TaskStatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Task, error) {
		var t Task
		err := row.Scan(&t.ID, &t.TaskName, &t.Payload, &t.Status, &t.RetryCount, &t.MaxRetries,
			&t.ScheduledAt, &t.LockedUntil, &t.LockedBy, &t.ProcessedAt, &t.Error, &t.CreatedAt)
		return t, err
	})
}

func (r *PgRepository) MarkCompleted(ctx context.Context, taskID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_tasks
		SET status = $1, processed_at = now(), locked_until = NULL, locked_by = NULL
		WHERE id = $2`,
		TaskStatusCompleted, taskID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *PgRepository) Reschedule(ctx context.Context, taskID uuid.UUID, taskErr string, retryAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_tasks
		SET status = $1, retry_count = retry_count + 1, scheduled_at = $2,
		    error = $3, locked_until = NULL, locked_by = NULL
		WHERE id = $4`,
		TaskStatusPending, retryAt, taskErr, taskID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *PgRepository) MarkFailed(ctx context.Context, taskID uuid.UUID, taskErr string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_tasks
		SET status = $1, processed_at = now(), error = $2, locked_until = NULL, locked_by = NULL
		WHERE id = $3`,
		TaskStatusFailed, taskErr, taskID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}
