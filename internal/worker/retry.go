package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy spaces out attempts against the Sheets API with exponential
// backoff. Jitter in [0,1] shortens each delay by up to that fraction so
// tasks that failed together do not retry together.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64
}

// Exhausted reports whether attempt (1-based) is past the retry budget.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return r.MaxRetries > 0 && attempt >= r.MaxRetries
}

// NextDelay returns the wait before attempt (1-based), capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	return r.delay(attempt, rand.Float64)
}

func (r RetryPolicy) delay(attempt int, random func() float64) time.Duration {
	attempt = max(attempt, 1)
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && (d > r.MaxDelay || d <= 0) {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}

	if j := min(r.Jitter, 1); j > 0 {
		d -= time.Duration(float64(d) * j * random())
	}
	return d
}
