// Package outbox provides a repository-backed task queue with at-least-once
// execution and exponential retry backoff.
//
// An Enqueuer stores named tasks with JSON payloads; a Worker polls for due
// tasks, claims them with a lock TTL, and runs registered handlers. The
// Postgres repository claims with FOR UPDATE SKIP LOCKED, so any number of
// workers across processes can poll the same table without double-running
// a task.
//
// Basic usage:
//
//	repo := outbox.NewPgRepository(pool)
//	enqueuer, _ := outbox.NewEnqueuer(repo)
//	worker, _ := outbox.NewWorker(repo)
//
//	worker.Register("email.send", func(ctx context.Context, payload json.RawMessage) error {
//		var task sendEmailTask
//		if err := json.Unmarshal(payload, &task); err != nil {
//			return err
//		}
//		return sender.SendEmail(ctx, task.Params)
//	})
//
//	go worker.Run(ctx)
//	enqueuer.Enqueue(ctx, "email.send", sendEmailTask{...})
//
// A failing handler is retried with backoff (base * 2^retry) until the
// task's retry budget runs out, then the task is marked failed with its
// last error preserved for inspection.
package outbox
