package http

import (
	"math"
	"math/rand/v2"
	"time"
)

// maxDelay is where Delay saturates instead of overflowing.
const maxDelay = time.Duration(math.MaxInt64)

// Backoff computes the delay before retrying a failed attempt.
//
// Delay(i) is Base * 2^i plus a jitter drawn from [0, Base).
type Backoff struct {
	Base time.Duration

	// Jitter returns a value in [0, max). Nil means uniform random.
	Jitter func(max time.Duration) time.Duration
}

// Delay returns the wait before the attempt following attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := maxDelay
	if attempt < 63 && b.Base <= maxDelay>>uint(attempt) {
		d = b.Base << uint(attempt)
	}

	jitter := b.Jitter
	if jitter == nil {
		jitter = uniformJitter
	}
	j := jitter(b.Base)
	if d > maxDelay-j {
		return maxDelay
	}
	return d + j
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}
