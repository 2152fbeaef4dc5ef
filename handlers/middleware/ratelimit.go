package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// rateLimitEntry represents a rate limiter for a specific key
type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware limits API requests per client ip. Requests consume as
// many tokens as their call cost.
type RateLimitMiddleware struct {
	limit        uint
	burst        uint
	proxyCount   uint
	rateLimiters map[string]*rateLimitEntry
	mutex        sync.Mutex
	cleanupTimer *time.Timer
	stopped      bool
}

// NewRateLimitMiddleware creates a rate limiter allowing limit requests per
// second and ip. A zero limit disables rate limiting.
func NewRateLimitMiddleware(limit uint, burst uint, proxyCount uint) *RateLimitMiddleware {
	if burst == 0 {
		burst = 10
	}

	middleware := &RateLimitMiddleware{
		limit:        limit,
		burst:        burst,
		proxyCount:   proxyCount,
		rateLimiters: make(map[string]*rateLimitEntry),
	}

	if limit > 0 {
		middleware.mutex.Lock()
		middleware.startCleanupTimer()
		middleware.mutex.Unlock()
	}

	return middleware
}

// startCleanupTimer starts a timer to clean up old rate limiters. Must be
// called with the mutex held.
func (m *RateLimitMiddleware) startCleanupTimer() {
	m.cleanupTimer = time.AfterFunc(5*time.Minute, func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()

		if m.stopped {
			return
		}
		m.cleanupOldLimiters()
		m.startCleanupTimer()
	})
}

// Stop ends the cleanup loop.
func (m *RateLimitMiddleware) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.stopped = true
	if m.cleanupTimer != nil {
		m.cleanupTimer.Stop()
	}
}

// cleanupOldLimiters removes rate limiters that haven't been used recently.
// Must be called with the mutex held.
func (m *RateLimitMiddleware) cleanupOldLimiters() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for key, entry := range m.rateLimiters {
		if entry.lastSeen.Before(cutoff) {
			delete(m.rateLimiters, key)
		}
	}
}

// getRateLimiter gets or creates a rate limiter for a specific key
func (m *RateLimitMiddleware) getRateLimiter(key string) *rate.Limiter {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.rateLimiters[key]
	if !exists {
		entry = &rateLimitEntry{
			limiter:  rate.NewLimiter(rate.Limit(m.limit), int(m.burst)),
			lastSeen: time.Now(),
		}
		m.rateLimiters[key] = entry
	} else {
		entry.lastSeen = time.Now()
	}

	return entry.limiter
}

// Middleware applies rate limiting to API requests
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limit == 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := GetClientIP(r, m.proxyCount)
		rateLimitKey := fmt.Sprintf("ip:%s", clientIP)
		limiter := m.getRateLimiter(rateLimitKey)

		if !limiter.AllowN(time.Now(), GetCallCost(r)) {
			w.Header().Set("X-RateLimit-Limit", strconv.FormatUint(uint64(m.limit), 10))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

			logrus.WithFields(logrus.Fields{
				"client_ip":      clientIP,
				"rate_limit_key": rateLimitKey,
				"rate_limit":     m.limit,
			}).Warn("API rate limit exceeded")

			APIErrorResponse(w, http.StatusTooManyRequests, "ERROR: rate limit exceeded")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatUint(uint64(m.limit), 10))
		remaining := limiter.Tokens()
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(remaining, 'f', 0, 64))

		next.ServeHTTP(w, r)
	})
}
