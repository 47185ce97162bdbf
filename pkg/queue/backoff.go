package queue

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt. Strategies are
// stateless and safe for concurrent use.
type Strategy interface {
	// Delay returns how long to wait before the next attempt, given that
	// attempt executions have already failed (1-indexed).
	Delay(attempt int) time.Duration
}

// StrategyFunc adapts a plain function to the Strategy interface.
type StrategyFunc func(attempt int) time.Duration

func (f StrategyFunc) Delay(attempt int) time.Duration { return f(attempt) }

// ConstantBackoff waits the same interval regardless of attempt number.
func ConstantBackoff(interval time.Duration) Strategy {
	return StrategyFunc(func(int) time.Duration { return interval })
}

// LinearBackoff waits initial*attempt, capped at max when max > 0.
func LinearBackoff(initial, max time.Duration) Strategy {
	return StrategyFunc(func(attempt int) time.Duration {
		d := initial * time.Duration(attempt)
		if max > 0 && d > max {
			return max
		}
		return d
	})
}

// ExponentialBackoff waits initial*2^(attempt-1), capped at max when max > 0.
func ExponentialBackoff(initial, max time.Duration) Strategy {
	return StrategyFunc(func(attempt int) time.Duration {
		d := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
		if max > 0 && d > max {
			return max
		}
		return d
	})
}

// ExponentialBackoffWithJitter waits a random duration in
// [0, min(initial*2^(attempt-1), max)]. Full jitter spreads retries out and
// prevents a thundering herd when many jobs fail at once.
func ExponentialBackoffWithJitter(initial, max time.Duration) Strategy {
	return StrategyFunc(func(attempt int) time.Duration {
		base := float64(initial) * math.Pow(2, float64(attempt-1))
		if max > 0 && base > float64(max) {
			base = float64(max)
		}
		return time.Duration(rand.Float64() * base)
	})
}

// DefaultStrategy is the retry policy applied when neither the job nor the
// worker configures one: exponential backoff with full jitter, 1s initial,
// 1m cap.
func DefaultStrategy() Strategy {
	return ExponentialBackoffWithJitter(time.Second, time.Minute)
}
