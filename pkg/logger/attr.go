package logger

import (
	"log/slog"
	"time"
)

// Error records a single error under the key "error". Nil errors produce
// an empty attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// EntityType records the lifecycle entity type under the key "entity_type".
func EntityType(t string) slog.Attr {
	return slog.String("entity_type", t)
}

// EntityID records the lifecycle entity id under the key "entity_id".
func EntityID(id string) slog.Attr {
	return slog.String("entity_id", id)
}

// State records a lifecycle state under the key "state".
func State(s string) slog.Attr {
	return slog.String("state", s)
}

// Event records a transition event under the key "event".
func Event(e string) slog.Attr {
	return slog.String("event", e)
}

// Queue records a job queue name under the key "queue".
func Queue(name string) slog.Attr {
	return slog.String("queue", name)
}

// JobID records a job identifier under the key "job_id".
func JobID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("job_id", id)
}

// WorkerID records a worker identifier under the key "worker_id".
func WorkerID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("worker_id", id)
}

// Attempt records a job attempt number under the key "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Alert marks a record for operator attention, e.g. a job that exhausted
// its retries or a hook enqueue that was lost.
func Alert() slog.Attr {
	return slog.Bool("alert", true)
}
