package api

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a sliding-window per-IP request limiter. The book
// serializes all commands anyway; this only shields the process from a
// single chatty client.
type RateLimiter struct {
	mu      sync.Mutex
	seen    map[string][]time.Time
	limit   int
	window  time.Duration
	stopCh  chan struct{}
	stopped sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		seen:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		stopCh: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from ip fits in the current window,
// recording it if so.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := prune(rl.seen[ip], time.Now().Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.seen[ip] = recent
		return false
	}
	rl.seen[ip] = append(recent, time.Now())
	return true
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	valid := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops IPs with no requests inside the window.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for ip, stamps := range rl.seen {
		if recent := prune(stamps, cutoff); len(recent) == 0 {
			delete(rl.seen, ip)
		} else {
			rl.seen[ip] = recent
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopped.Do(func() { close(rl.stopCh) })
}

// Middleware enforces the limit per client IP, honoring proxy headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Forwarded-For")
		if ip == "" {
			ip = r.Header.Get("X-Real-IP")
		}
		if ip == "" {
			ip = r.RemoteAddr
		}

		if !rl.Allow(ip) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
