package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/humbleclay/humbleclay/config"
	"github.com/humbleclay/humbleclay/errors"
	"github.com/humbleclay/humbleclay/server/metrics"
	"golang.org/x/time/rate"
)

type rateLimiters struct {
	visitors map[string]*rate.Limiter
	mu       sync.Mutex
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

// RateLimit implements per-IP rate limiting using a token bucket per
// visitor. Limits are taken from configuration at construction time.
func RateLimit(cfg config.RateLimitConfig, m *metrics.Metrics) func(http.Handler) http.Handler {
	limiters := &rateLimiters{
		visitors: make(map[string]*rate.Limiter),
	}
	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get IP address from request
			ip := r.RemoteAddr
			if idx := strings.LastIndex(ip, ":"); idx != -1 {
				ip = ip[:idx] // Strip port number if present
			}

			limiter := limiters.GetOrCreate(ip, func() *rate.Limiter {
				return rate.NewLimiter(perSecond, cfg.Burst)
			})

			if !limiter.Allow() {
				if m != nil {
					m.RateLimitHits.WithLabelValues(ip).Inc()
				}

				errResp := errors.NewError(
					errors.RateLimitError,
					"Rate limit exceeded",
					http.StatusTooManyRequests,
					GetRequestID(r.Context()),
					map[string]interface{}{
						"limit":  int64(cfg.RequestsPerMinute),
						"window": time.Minute.String(),
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
