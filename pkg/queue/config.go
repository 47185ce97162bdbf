package queue

import "time"

// Config holds the queue settings supplied at startup, typically loaded
// from the environment via the config package. Worker settings are applied
// with WithConfig; MaxAttempts feeds NewEnqueuer via WithDefaultMaxAttempts
// and Retention feeds the storage backends via their retention options.
type Config struct {
	PollInterval  time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	LeaseDuration time.Duration `env:"QUEUE_LEASE_DURATION" envDefault:"5m"`
	Concurrency   int           `env:"QUEUE_CONCURRENCY" envDefault:"10"`
	MaxAttempts   int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	Retention     time.Duration `env:"QUEUE_RETENTION" envDefault:"168h"`
}
