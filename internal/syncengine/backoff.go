package syncengine

import (
	"math/rand"
	"time"
)

// Backoff computes the delay before the next retry of a request currently
// at retryCount prior attempts: delay(n) = min(base*2^n, max) + jitter,
// where jitter is drawn uniformly from [0, 0.1*min(base*2^n, max)], both
// ends inclusive.
func Backoff(retryCount int, base, max time.Duration) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	// Cap the shift so base*2^n can't overflow int64 before the max clamp;
	// max_retries is small (default 3) so this only guards pathological config.
	shift := retryCount
	if shift > 32 {
		shift = 32
	}
	delay := base * time.Duration(int64(1)<<uint(shift))
	if delay <= 0 || delay > max {
		delay = max
	}

	jitterBound := int64(float64(delay) * 0.1)
	if jitterBound <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(jitterBound+1))
}
