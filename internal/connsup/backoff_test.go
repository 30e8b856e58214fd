package connsup

import (
	"testing"
	"time"
)

// TestBackoffBounds covers spec §8 scenario S5: for attempt in {1, 5, 100}
// the delay lands in [0ms, 1000ms], and specifically for attempt=1 it lands
// in [100ms, 1000ms].
func TestBackoffBounds(t *testing.T) {
	for _, attempt := range []int{1, 5, 100} {
		for i := 0; i < 50; i++ {
			d := Backoff(attempt)
			if d < 0 || d > maxDelay {
				t.Fatalf("attempt=%d: delay %v out of [0, %v]", attempt, d, maxDelay)
			}
			if attempt == 1 && (d < minJitter || d > maxDelay) {
				t.Fatalf("attempt=1: delay %v out of [%v, %v]", d, minJitter, maxDelay)
			}
		}
	}
}

func TestBackoffClampsNonPositiveAttempt(t *testing.T) {
	d := Backoff(0)
	if d < minJitter || d > maxDelay {
		t.Fatalf("attempt=0 should behave like attempt=1, got %v", d)
	}
}

func TestNormalizeAttempt(t *testing.T) {
	cases := map[int]int{0: 1, -1: 1, 1: 2, 5: 6}
	for in, want := range cases {
		if got := normalizeAttempt(in); got != want {
			t.Fatalf("normalizeAttempt(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestBackoffNeverBlocksLongerThanOneSecond(t *testing.T) {
	start := time.Now()
	Backoff(1000)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Backoff should be a pure computation, took %v", elapsed)
	}
}
