package server

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultRate  = 10.0 // requests per second
	defaultBurst = 20
)

// HTTPRateLimiter applies token-bucket limiting to API requests,
// keyed per client IP and per endpoint
type HTTPRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	config   *RateLimiterConfig
}

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	DefaultRate  float64 // requests per second
	DefaultBurst int
	PerIP        bool
	PerEndpoint  bool
}

// NewHTTPRateLimiter creates a new HTTP rate limiter
func NewHTTPRateLimiter(config *RateLimiterConfig) *HTTPRateLimiter {
	if config == nil {
		config = &RateLimiterConfig{
			DefaultRate:  defaultRate,
			DefaultBurst: defaultBurst,
			PerIP:        true,
			PerEndpoint:  true,
		}
	}
	return &HTTPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
}

// limiterKey derives the bucket key for a request
func (rl *HTTPRateLimiter) limiterKey(r *http.Request) string {
	key := "global"
	if rl.config.PerEndpoint {
		key = r.URL.Path
	}
	if rl.config.PerIP {
		key += ":" + getClientIP(r)
	}
	return key
}

// getClientIP extracts the client IP, honoring common proxy headers
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

func (rl *HTTPRateLimiter) getOrCreateLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rl.config.DefaultRate), rl.config.DefaultBurst)
	rl.limiters[key] = limiter
	return limiter
}

// Allow reports whether the request fits within its bucket
func (rl *HTTPRateLimiter) Allow(r *http.Request) bool {
	return rl.getOrCreateLimiter(rl.limiterKey(r)).Allow()
}

// RateLimitMiddleware rejects requests over the limit with 429
func RateLimitMiddleware(limiter *HTTPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r) {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
