package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/outbox"
)

type testPayload struct {
	Value string `json:"value"`
}

func TestWorker_RunOnce(t *testing.T) {
	t.Parallel()

	t.Run("successful handler completes the task", func(t *testing.T) {
		t.Parallel()

		repo := outbox.NewMemoryRepository()
		enqueuer, err := outbox.NewEnqueuer(repo)
		require.NoError(t, err)
		worker, err := outbox.NewWorker(repo)
		require.NoError(t, err)

		var got atomic.Value
		worker.Register("test.task", func(ctx context.Context, payload json.RawMessage) error {
			var p testPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return err
			}
			got.Store(p.Value)
			return nil
		})

		task, err := enqueuer.Enqueue(context.Background(), "test.task", testPayload{Value: "hello"})
		require.NoError(t, err)

		worker.RunOnce(context.Background())

		assert.Equal(t, "hello", got.Load())
		stored, ok := repo.Get(task.ID)
		require.True(t, ok)
		assert.Equal(t, outbox.TaskStatusCompleted, stored.Status)
		assert.NotNil(t, stored.ProcessedAt)
	})

	t.Run("failing handler reschedules with backoff", func(t *testing.T) {
		t.Parallel()

		repo := outbox.NewMemoryRepository()
		enqueuer, err := outbox.NewEnqueuer(repo)
		require.NoError(t, err)
		worker, err := outbox.NewWorker(repo, outbox.WithBackoffBase(time.Minute))
		require.NoError(t, err)

		worker.Register("test.task", func(ctx context.Context, payload json.RawMessage) error {
			return errors.New("provider down")
		})

		task, err := enqueuer.Enqueue(context.Background(), "test.task", testPayload{})
		require.NoError(t, err)

		worker.RunOnce(context.Background())

		stored, ok := repo.Get(task.ID)
		require.True(t, ok)
		assert.Equal(t, outbox.TaskStatusPending, stored.Status)
		assert.Equal(t, int8(1), stored.RetryCount)
		require.NotNil(t, stored.Error)
		assert.Contains(t, *stored.Error, "provider down")
		// First retry waits one backoff base.
		assert.WithinDuration(t, time.Now().Add(time.Minute), stored.ScheduledAt, 5*time.Second)
	})

	t.Run("retry budget exhaustion fails the task", func(t *testing.T) {
		t.Parallel()

		repo := outbox.NewMemoryRepository()
		enqueuer, err := outbox.NewEnqueuer(repo)
		require.NoError(t, err)
		worker, err := outbox.NewWorker(repo, outbox.WithBackoffBase(time.Millisecond))
		require.NoError(t, err)

		var attempts atomic.Int32
		worker.Register("test.task", func(ctx context.Context, payload json.RawMessage) error {
			attempts.Add(1)
			return errors.New("always fails")
		})

		task, err := enqueuer.Enqueue(context.Background(), "test.task", testPayload{}, outbox.WithMaxRetries(2))
		require.NoError(t, err)

		// Initial attempt plus two retries.
		for i := 0; i < 5; i++ {
			time.Sleep(10 * time.Millisecond)
			worker.RunOnce(context.Background())
		}

		stored, ok := repo.Get(task.ID)
		require.True(t, ok)
		assert.Equal(t, outbox.TaskStatusFailed, stored.Status)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("panicking handler counts as a failed attempt", func(t *testing.T) {
		t.Parallel()

		repo := outbox.NewMemoryRepository()
		enqueuer, err := outbox.NewEnqueuer(repo)
		require.NoError(t, err)
		worker, err := outbox.NewWorker(repo, outbox.WithBackoffBase(time.Minute))
		require.NoError(t, err)

		worker.Register("test.task", func(ctx context.Context, payload json.RawMessage) error {
			panic("boom")
		})

		task, err := enqueuer.Enqueue(context.Background(), "test.task", testPayload{})
		require.NoError(t, err)

		worker.RunOnce(context.Background())

		stored, ok := repo.Get(task.ID)
		require.True(t, ok)
		assert.Equal(t, outbox.TaskStatusPending, stored.Status)
		require.NotNil(t, stored.Error)
		assert.Contains(t, *stored.Error, "panicked")
	})

	t.Run("task without a handler fails immediately", func(t *testing.T) {
		t.Parallel()

		repo := outbox.NewMemoryRepository()
		enqueuer, err := outbox.NewEnqueuer(repo)
		require.NoError(t, err)
		worker, err := outbox.NewWorker(repo)
		require.NoError(t, err)

		task, err := enqueuer.Enqueue(context.Background(), "unknown.task", testPayload{})
		require.NoError(t, err)

		worker.RunOnce(context.Background())

		stored, ok := repo.Get(task.ID)
		require.True(t, ok)
		assert.Equal(t, outbox.TaskStatusFailed, stored.Status)
	})

	t.Run("delayed task is not claimed early", func(t *testing.T) {
		t.Parallel()

		repo := outbox.NewMemoryRepository()
		enqueuer, err := outbox.NewEnqueuer(repo)
		require.NoError(t, err)
		worker, err := outbox.NewWorker(repo)
		require.NoError(t, err)

		var attempts atomic.Int32
		worker.Register("test.task", func(ctx context.Context, payload json.RawMessage) error {
			attempts.Add(1)
			return nil
		})

		_, err = enqueuer.Enqueue(context.Background(), "test.task", testPayload{}, outbox.WithDelay(time.Hour))
		require.NoError(t, err)

		worker.RunOnce(context.Background())
		assert.Zero(t, attempts.Load())
	})
}

func TestWorker_Run(t *testing.T) {
	t.Parallel()

	repo := outbox.NewMemoryRepository()
	enqueuer, err := outbox.NewEnqueuer(repo)
	require.NoError(t, err)
	worker, err := outbox.NewWorker(repo, outbox.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	done := make(chan struct{})
	worker.Register("test.task", func(ctx context.Context, payload json.RawMessage) error {
		close(done)
		return nil
	})

	_, err = enqueuer.Enqueue(context.Background(), "test.task", testPayload{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- worker.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task was not processed")
	}

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestNewWorker_RequiresRepository(t *testing.T) {
	t.Parallel()

	_, err := outbox.NewWorker(nil)
	assert.ErrorIs(t, err, outbox.ErrRepositoryNil)
}
