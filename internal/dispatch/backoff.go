package dispatch

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoffDelay doubles base for every attempt already made, capped at max.
// A max of zero or less leaves the delay uncapped.
func backoffDelay(attempts int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempts; i++ {
		if (max > 0 && delay >= max) || delay > math.MaxInt64/2 {
			break
		}
		delay *= 2
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// withJitter adds up to 10% of d.
func withJitter(d time.Duration) time.Duration {
	window := int64(d / 10)
	if window <= 0 {
		return d
	}
	return d + time.Duration(rand.Int64N(window))
}
