package authapi

import (
	"testing"
	"time"
)

func TestEvaluateWindowThrottle(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	failures := []time.Time{
		now.Add(-1 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-6 * time.Minute),
	}

	blocked, retry := evaluateWindowThrottle(now, failures, 2, 5*time.Minute)
	if !blocked {
		t.Fatalf("expected window throttle to block")
	}
	if retry != 3*time.Minute {
		t.Fatalf("expected retry=3m, got %v", retry)
	}

	blocked, retry = evaluateWindowThrottle(now, failures, 3, 5*time.Minute)
	if blocked || retry != 0 {
		t.Fatalf("expected window throttle to allow, retry=%v", retry)
	}
}

func TestLoginThrottle_FailCheckReset(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	th := newLoginThrottle(2, time.Minute)

	th.Fail("10.0.0.1", now)
	if blocked, _ := th.Check("10.0.0.1", now); blocked {
		t.Fatalf("one failure should not block")
	}

	th.Fail("10.0.0.1", now.Add(10*time.Second))
	blocked, retry := th.Check("10.0.0.1", now.Add(20*time.Second))
	if !blocked || retry != 40*time.Second {
		t.Fatalf("expected block for 40s, got blocked=%v retry=%v", blocked, retry)
	}

	if blocked, _ := th.Check("10.0.0.2", now); blocked {
		t.Fatalf("other keys are independent")
	}
	if blocked, _ := th.Check("10.0.0.1", now.Add(2*time.Minute)); blocked {
		t.Fatalf("window should have expired")
	}

	th.Fail("10.0.0.1", now)
	th.Fail("10.0.0.1", now)
	th.Reset("10.0.0.1")
	if blocked, _ := th.Check("10.0.0.1", now); blocked {
		t.Fatalf("reset should clear failures")
	}
}

func TestLoginThrottle_Disabled(t *testing.T) {
	th := newLoginThrottle(0, time.Minute)
	now := time.Now()
	for range 10 {
		th.Fail("k", now)
	}
	if blocked, _ := th.Check("k", now); blocked {
		t.Fatalf("max<=0 disables throttling")
	}
}
