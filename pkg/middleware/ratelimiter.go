package middleware

import (
	"net/http"
	"sync"
	"time"

	"persona-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures the rate limiter.
type RateLimiterOptions struct {
	// Limit defines requests per second.
	Limit rate.Limit
	// Burst defines the maximum burst size allowed.
	Burst int
	// ExpiryDuration defines how long to keep per-client state.
	ExpiryDuration time.Duration
	// KeyFunc extracts the limiting key from a request.
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimiterOptions returns sensible defaults keyed by client IP.
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          5,
		Burst:          10,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements per-client rate limiting middleware for gin.
type RateLimiter struct {
	mu      sync.Mutex
	options RateLimiterOptions
	clients map[string]*limiterEntry
	logger  *logger.Logger
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(log *logger.Logger, options ...RateLimiterOptions) *RateLimiter {
	opts := DefaultRateLimiterOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	rl := &RateLimiter{
		options: opts,
		clients: make(map[string]*limiterEntry),
		logger:  log,
	}

	go rl.cleanupLoop()
	return rl
}

// Middleware returns the gin handler enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.options.KeyFunc(c)

		rl.mu.Lock()
		entry, exists := rl.clients[key]
		if !exists {
			entry = &limiterEntry{
				limiter: rate.NewLimiter(rl.options.Limit, rl.options.Burst),
			}
			rl.clients[key] = entry
		}
		entry.lastSeen = time.Now()
		rl.mu.Unlock()

		if !entry.limiter.Allow() {
			rl.logger.Warn("rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too many requests, slow down",
				},
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.options.ExpiryDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-rl.options.ExpiryDuration)
		rl.mu.Lock()
		for key, entry := range rl.clients {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}
