package session

import (
	"testing"
	"time"
)

func TestThrottleLeadingEdge(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	th := NewThrottle(200*time.Millisecond, func() time.Time { return now })

	if !th.Allow() {
		t.Fatal("first call must fire")
	}

	// A burst of ten calls inside 100ms yields no further sends.
	for i := 0; i < 10; i++ {
		now = now.Add(10 * time.Millisecond)
		if th.Allow() {
			t.Fatalf("call at +%v fired inside the window", now.Sub(base))
		}
	}

	// The window closes exactly one interval after the last fire.
	now = base.Add(200 * time.Millisecond)
	if !th.Allow() {
		t.Error("call at the window boundary must fire")
	}
	if th.Allow() {
		t.Error("second call at the same instant must be dropped")
	}
}

func TestThrottleReopensAfterIdle(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	th := NewThrottle(200*time.Millisecond, func() time.Time { return now })

	if !th.Allow() {
		t.Fatal("first call must fire")
	}
	now = base.Add(time.Hour)
	if !th.Allow() {
		t.Error("call after a long idle stretch must fire")
	}
}
