package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/storekit/storekit/pkg/queue"
)

func TestConstantBackoff(t *testing.T) {
	t.Parallel()

	s := queue.ConstantBackoff(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		assert.Equal(t, 5*time.Second, s.Delay(attempt))
	}
}

func TestLinearBackoff(t *testing.T) {
	t.Parallel()

	s := queue.LinearBackoff(time.Second, 4*time.Second)

	assert.Equal(t, 1*time.Second, s.Delay(1))
	assert.Equal(t, 2*time.Second, s.Delay(2))
	assert.Equal(t, 3*time.Second, s.Delay(3))
	assert.Equal(t, 4*time.Second, s.Delay(4))
	assert.Equal(t, 4*time.Second, s.Delay(10), "capped at max")
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	s := queue.ExponentialBackoff(time.Second, time.Minute)

	assert.Equal(t, 1*time.Second, s.Delay(1))
	assert.Equal(t, 2*time.Second, s.Delay(2))
	assert.Equal(t, 4*time.Second, s.Delay(3))
	assert.Equal(t, 8*time.Second, s.Delay(4))
	assert.Equal(t, time.Minute, s.Delay(20), "capped at max")
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	t.Parallel()

	s := queue.ExponentialBackoffWithJitter(time.Second, time.Minute)

	for attempt := 1; attempt <= 8; attempt++ {
		ceiling := time.Duration(1<<uint(attempt-1)) * time.Second
		if ceiling > time.Minute {
			ceiling = time.Minute
		}
		for range 50 {
			d := s.Delay(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, ceiling)
		}
	}
}

func TestJobNextDelay(t *testing.T) {
	t.Parallel()

	t.Run("explicit schedule wins over strategy", func(t *testing.T) {
		t.Parallel()

		job := &queue.Job{Backoff: []time.Duration{time.Second, 5 * time.Second}}
		fallback := queue.ConstantBackoff(time.Hour)

		assert.Equal(t, time.Second, job.NextDelay(1, fallback))
		assert.Equal(t, 5*time.Second, job.NextDelay(2, fallback))
		assert.Equal(t, 5*time.Second, job.NextDelay(7, fallback), "last entry repeats")
	})

	t.Run("falls back to strategy", func(t *testing.T) {
		t.Parallel()

		job := &queue.Job{}
		assert.Equal(t, time.Hour, job.NextDelay(3, queue.ConstantBackoff(time.Hour)))
	})

	t.Run("nil strategy uses the default", func(t *testing.T) {
		t.Parallel()

		job := &queue.Job{}
		d := job.NextDelay(1, nil)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	})
}
