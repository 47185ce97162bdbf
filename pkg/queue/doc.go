// Package queue provides a durable, at-least-once job queue with retries,
// backoff, leases and bounded worker concurrency.
//
// Lifecycle hooks and other producers enqueue jobs instead of doing slow or
// unreliable work inline; workers claim jobs, execute registered handlers
// and report outcomes. A claimed job is invisible to other claimants for a
// lease; if the worker never reports (crash, network partition), the lease
// expires and the job becomes claimable again, so work is never silently
// lost across process restarts.
//
// # Job lifecycle
//
//	pending ──claim──▶ running ──success──▶ completed
//	   ▲                  │
//	   │                  ├─retryable error, attempts < max─▶ retrying ──claim──▶ running ...
//	   │                  ├─retryable error, attempts = max─▶ failed
//	   │                  └─fatal error──────────────────────▶ failed
//	   └─(replay of a failed job)
//
// pending and retrying jobs can be cancelled; running jobs cannot be
// interrupted, cancellation only prevents future attempts. Failed jobs are
// never dropped: they stay durable for inspection and manual replay until
// the retention window purges them.
//
// # Delivery semantics
//
// Delivery is at-least-once and per-queue ordering is not guaranteed.
// Handlers must be idempotent; when a job's effect is a lifecycle
// transition request, the entity's optimistic-concurrency check already
// provides the idempotence barrier. Side effects that must happen in order
// belong in the entity's state graph (each transition enqueues the next
// job), not in queue FIFO assumptions.
//
// # Usage
//
//	storage := queue.NewMemoryStorage()
//	defer storage.Close()
//
//	enq, _ := queue.NewEnqueuer(storage)
//	jobID, _ := enq.Enqueue(ctx, ConfirmationEmail{OrderID: id},
//	    queue.WithQueue("send-order-confirmation"),
//	    queue.WithMaxAttempts(3),
//	    queue.WithBackoffSchedule(time.Second, 5*time.Second),
//	)
//
//	worker, _ := queue.NewWorker(storage,
//	    queue.WithQueues("send-order-confirmation"),
//	    queue.WithQueueConcurrency("send-order-confirmation", 4),
//	)
//	_ = worker.RegisterHandler(queue.NewJobHandler(sendConfirmation))
//	_ = worker.Start(ctx)
//
// Handlers report three outcomes: nil (success), a plain error (retryable,
// backoff policy applies) or an error wrapped with Fatal (the job fails
// immediately). A transition request rejected by a business-rule guard is
// the canonical fatal case: retrying cannot change the guard's decision
// without new information.
//
// Storage backends: MemoryStorage (tests, local development), RedisStorage
// (multi-process deployments) and the Postgres storage in pkg/pg.
package queue
