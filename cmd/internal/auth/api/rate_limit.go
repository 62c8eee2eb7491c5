package authapi

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
)

// loginThrottle counts failed logins per key (client IP) in a sliding window.
// It is process-local; the socket layer is single-process too.
type loginThrottle struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	failures map[string][]time.Time
}

func newLoginThrottle(max int, window time.Duration) *loginThrottle {
	return &loginThrottle{
		max:      max,
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

// Check reports whether key is blocked at now and for how long.
func (t *loginThrottle) Check(key string, now time.Time) (bool, time.Duration) {
	if t == nil || t.max <= 0 || key == "" {
		return false, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures[key] = prune(t.failures[key], now.Add(-t.window))
	if len(t.failures[key]) == 0 {
		delete(t.failures, key)
	}
	return evaluateWindowThrottle(now, t.failures[key], t.max, t.window)
}

// Fail records a failed attempt for key.
func (t *loginThrottle) Fail(key string, now time.Time) {
	if t == nil || t.max <= 0 || key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	f := append(prune(t.failures[key], now.Add(-t.window)), now)
	if len(f) > t.max {
		f = f[len(f)-t.max:]
	}
	t.failures[key] = f
}

// Reset forgets key after a successful login.
func (t *loginThrottle) Reset(key string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.failures, key)
	t.mu.Unlock()
}

func prune(ts []time.Time, cut time.Time) []time.Time {
	return slices.DeleteFunc(ts, func(at time.Time) bool { return at.Before(cut) })
}

// evaluateWindowThrottle blocks once max failures fall inside window; the block
// lifts when the oldest of them leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	var (
		count  int
		oldest time.Time
	)
	for _, at := range failures {
		if at.Before(cut) {
			continue
		}
		if count == 0 || at.Before(oldest) {
			oldest = at
		}
		count++
	}
	if count < max {
		return false, 0
	}
	retry := oldest.Add(window).Sub(now)
	if retry <= 0 {
		return false, 0
	}
	return true, retry
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
