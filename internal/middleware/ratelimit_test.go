package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BurstTraffic(t *testing.T) {
	rl := NewRateLimiter(10, 100*time.Millisecond)

	allowed, limited := 0, 0
	for i := 0; i < 20; i++ {
		if rl.Allow("127.0.0.1") {
			allowed++
		} else {
			limited++
		}
	}

	assert.Equal(t, 10, allowed)
	assert.Equal(t, 10, limited)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(5, 100*time.Millisecond)
	ip := "192.168.1.1"

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow(ip), "request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow(ip), "6th request should be denied")

	time.Sleep(110 * time.Millisecond)

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow(ip), "request %d after reset should be allowed", i+1)
	}
}

func TestRateLimiter_MultipleIPs(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	for _, ip := range []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"} {
		assert.True(t, rl.Allow(ip))
		assert.True(t, rl.Allow(ip))
		assert.False(t, rl.Allow(ip))
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)

	var wg sync.WaitGroup
	var allowed, denied atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := fmt.Sprintf("192.168.1.%d", id%10)
			for j := 0; j < 20; j++ {
				if rl.Allow(ip) {
					allowed.Add(1)
				} else {
					denied.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(100), allowed.Load(), "10 IPs x limit 10")
	assert.Equal(t, int32(900), denied.Load())
}

func TestRateLimiter_CleanupOldEntries(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond)

	for i := 0; i < 100; i++ {
		rl.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	rl.mu.RLock()
	assert.Len(t, rl.requests, 100)
	rl.mu.RUnlock()

	time.Sleep(60 * time.Millisecond)
	rl.Allow("10.0.0.200")

	rl.mu.RLock()
	assert.Len(t, rl.requests, 1, "expired clients are evicted")
	rl.mu.RUnlock()
}

func TestRateLimit_Middleware(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := RateLimit(NewRateLimiter(1, time.Minute), logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMIT")
}

func TestRateLimit_NilLimiterDisables(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := RateLimit(nil, logrus.New())(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
