package connsup

import (
	"math/rand"
	"time"
)

// minJitter and maxJitter bound the per-attempt jitter window spec §4.2
// specifies: U[100ms, 1000ms).
const (
	minJitter = 100 * time.Millisecond
	jitterSpan = 900 * time.Millisecond
	maxDelay   = 1000 * time.Millisecond
)

// Backoff computes the retry delay for the given attempt number, per spec
// §4.2: delay = min(1000ms, attempt x U[100ms, 1000ms)), attempt starting at
// 1. Scenario S5 requires attempt=1 to land in [100ms, 1000ms] and any
// attempt to stay within [0ms, 1000ms].
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	jitter := minJitter + time.Duration(rand.Int63n(int64(jitterSpan)))
	delay := time.Duration(attempt) * jitter
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// normalizeAttempt maps the bus client's reconnect-try counter to the
// display/backoff attempt number spec §4.2 wants: "The first callback after
// a fresh connection carries reconnect_try = 0 and is normalized to
// attempt = 1 for display."
func normalizeAttempt(reconnectTry int) int {
	if reconnectTry <= 0 {
		return 1
	}
	return reconnectTry + 1
}
