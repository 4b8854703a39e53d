package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vendora/server/internal/apperr"
)

// KeyLimiter keeps a token-bucket limiter per key (typically client IP).
// Idle entries are evicted by a background cleanup goroutine.
type KeyLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	done    chan struct{}
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewKeyLimiter creates a per-key limiter allowing burst requests
// immediately and refilling at perSecond.
func NewKeyLimiter(perSecond float64, burst int) *KeyLimiter {
	kl := &KeyLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		done:    make(chan struct{}),
	}
	go kl.cleanup()
	return kl
}

// Stop terminates the background cleanup goroutine.
func (kl *KeyLimiter) Stop() {
	close(kl.done)
}

// Allow reports whether the key may proceed.
func (kl *KeyLimiter) Allow(key string) bool {
	kl.mu.Lock()
	entry, ok := kl.entries[key]
	if !ok {
		entry = &limiterEntry{lim: rate.NewLimiter(kl.limit, kl.burst)}
		kl.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	kl.mu.Unlock()

	return entry.lim.Allow()
}

func (kl *KeyLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-kl.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-30 * time.Minute)
			kl.mu.Lock()
			for key, entry := range kl.entries {
				if entry.lastSeen.Before(cutoff) {
					delete(kl.entries, key)
				}
			}
			kl.mu.Unlock()
		}
	}
}

// RateLimit rejects requests over the limit for keyFunc's key with the
// standard TooManyRequests envelope.
func RateLimit(limiter *KeyLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"code":    string(apperr.TooManyRequests),
					"message": "Too many requests. Please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKey extracts the client IP for rate limiting. chi's RealIP middleware
// has already folded X-Forwarded-For into RemoteAddr.
func IPKey(r *http.Request) string {
	return "ip:" + r.RemoteAddr
}
