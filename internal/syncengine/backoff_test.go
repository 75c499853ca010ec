package syncengine

import (
	"testing"
	"time"
)

func TestBackoffCapsAtMax(t *testing.T) {
	base := 1000 * time.Millisecond
	max := 60_000 * time.Millisecond

	cases := []struct {
		retryCount  int
		wantAtLeast time.Duration
		wantAtMost  time.Duration
	}{
		{0, 1000 * time.Millisecond, 1100 * time.Millisecond},
		{5, 32_000 * time.Millisecond, 35_200 * time.Millisecond},
		{10, max, max + max/10},
		{20, max, max + max/10},
	}

	for _, c := range cases {
		for i := 0; i < 20; i++ {
			d := Backoff(c.retryCount, base, max)
			if d < c.wantAtLeast || d > c.wantAtMost {
				t.Fatalf("retryCount=%d: delay %s out of range [%s, %s]", c.retryCount, d, c.wantAtLeast, c.wantAtMost)
			}
		}
	}
}

func TestBackoffJitterNeverNegative(t *testing.T) {
	for i := 0; i < 100; i++ {
		if d := Backoff(2, time.Millisecond, time.Hour); d < 0 {
			t.Fatalf("negative backoff: %s", d)
		}
	}
}
