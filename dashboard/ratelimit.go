package dashboard

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter bounds claim generations per client over a sliding minute
// and the number of live streams a client may hold open. A zero limit
// disables that check.
type RateLimiter struct {
	mu           sync.Mutex
	perMinute    int
	maxStreams   int
	windows      map[string][]time.Time
	streamCounts map[string]int
	now          func() time.Time
}

func NewRateLimiter(perMinute, maxStreams int, clock func() time.Time) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{
		perMinute:    perMinute,
		maxStreams:   maxStreams,
		windows:      make(map[string][]time.Time),
		streamCounts: make(map[string]int),
		now:          clock,
	}
}

// Allow records a generation for client and reports whether it fits in the
// window. When it does not, retryAfter is the whole seconds until it would.
func (rl *RateLimiter) Allow(client string) (ok bool, retryAfter int) {
	if rl == nil || rl.perMinute <= 0 {
		return true, 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-time.Minute)

	valid := rl.windows[client][:0]
	for _, ts := range rl.windows[client] {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.perMinute {
		rl.windows[client] = valid
		retryAfter = int(valid[0].Add(time.Minute).Sub(now) / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	rl.windows[client] = append(valid, now)
	return true, 0
}

func (rl *RateLimiter) AcquireStream(client string) bool {
	if rl == nil || rl.maxStreams <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	count := rl.streamCounts[client]
	if count >= rl.maxStreams {
		return false
	}
	rl.streamCounts[client] = count + 1
	return true
}

func (rl *RateLimiter) ReleaseStream(client string) {
	if rl == nil || rl.maxStreams <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if count := rl.streamCounts[client]; count > 1 {
		rl.streamCounts[client] = count - 1
	} else {
		delete(rl.streamCounts, client)
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
}
