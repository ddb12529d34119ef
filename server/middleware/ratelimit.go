package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/swen128/slack-gpt/config"
	"github.com/swen128/slack-gpt/errors"
	"golang.org/x/time/rate"
)

type rateLimiters struct {
	visitors map[string]*rate.Limiter
	mu       sync.RWMutex
}

var limiters = &rateLimiters{
	visitors: make(map[string]*rate.Limiter),
}

func (l *rateLimiters) GetOrCreate(ip string, create func() *rate.Limiter) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.visitors[ip]
	if !exists {
		limiter = create()
		l.visitors[ip] = limiter
	}

	return limiter
}

// RateLimit middleware implements rate limiting per client IP on the
// events endpoint. Slack retries delivery on failure, so the limits
// should stay well above the workspace's expected mention rate.
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.RequestsPerMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if idx := strings.LastIndex(ip, ":"); idx != -1 {
				ip = ip[:idx] // Strip port number if present
			}

			limiter := limiters.GetOrCreate(ip, func() *rate.Limiter {
				return rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.Burst)
			})

			if !limiter.Allow() {
				errResp := errors.NewError(
					errors.RateLimitedError,
					"Rate limit exceeded",
					http.StatusTooManyRequests,
					GetRequestID(r.Context()),
					map[string]interface{}{
						"limit":  int64(cfg.RequestsPerMinute),
						"window": "1m0s",
					},
					nil,
				)

				errors.WriteError(w, errResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ResetRateLimiters resets all rate limiters. Only used for testing.
func ResetRateLimiters() {
	limiters.mu.Lock()
	defer limiters.mu.Unlock()
	limiters.visitors = make(map[string]*rate.Limiter)
}
