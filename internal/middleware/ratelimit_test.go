package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLimiter_burstThenDeny(t *testing.T) {
	kl := NewKeyLimiter(0.001, 2)
	defer kl.Stop()

	assert.True(t, kl.Allow("ip:10.0.0.1"))
	assert.True(t, kl.Allow("ip:10.0.0.1"))
	assert.False(t, kl.Allow("ip:10.0.0.1"), "burst spent, refill is far too slow")
}

func TestKeyLimiter_keysAreIndependent(t *testing.T) {
	kl := NewKeyLimiter(0.001, 1)
	defer kl.Stop()

	assert.True(t, kl.Allow("ip:10.0.0.1"))
	assert.False(t, kl.Allow("ip:10.0.0.1"))
	assert.True(t, kl.Allow("ip:10.0.0.2"), "a different client keeps its own bucket")
}

func TestRateLimit_middlewareEnvelope(t *testing.T) {
	kl := NewKeyLimiter(0.001, 1)
	defer kl.Stop()

	handler := RateLimit(kl, IPKey)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/send-otp", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOO_MANY_REQUESTS")
}
