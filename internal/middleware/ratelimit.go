package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	appErrors "whatsrelay/internal/errors"
	"whatsrelay/internal/httputil"
	"whatsrelay/internal/privacy"
	"whatsrelay/internal/service"
	"whatsrelay/internal/tracing"
)

// RateLimiter is a per-client sliding window limiter.
type RateLimiter struct {
	mu          sync.RWMutex
	requests    map[string][]time.Time
	limit       int
	window      time.Duration
	lastCleanup time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests:    make(map[string][]time.Time),
		limit:       limit,
		window:      window,
		lastCleanup: time.Now(),
	}
}

// Allow records a request from key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) > rl.window {
		rl.cleanupLocked(cutoff)
		rl.lastCleanup = now
	}

	recent := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}
	rl.requests[key] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanupLocked(cutoff time.Time) {
	for key, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.requests, key)
		}
	}
}

// RateLimit rejects requests over the limit with 429. A nil limiter disables
// limiting.
func RateLimit(rl *RateLimiter, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := httputil.GetClientIP(r)
			if rl.Allow(clientIP) {
				next.ServeHTTP(w, r)
				return
			}

			logger.WithFields(logrus.Fields{
				service.LogFieldRemoteIP: privacy.MaskPhoneNumber(clientIP),
				service.LogFieldURL:      r.URL.Path,
			}).Warn("Rate limit exceeded")

			err := appErrors.NewRateLimitError(rl.limit, rl.window.String())
			appErrors.WriteHTTPError(w, err, tracing.GetRequestID(r.Context()))
		})
	}
}
