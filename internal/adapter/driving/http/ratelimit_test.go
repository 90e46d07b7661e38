package httphandler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func limitedMux(rl *RateLimiter) http.Handler {
	mux := http.NewServeMux()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("POST /api/v1/tenants/{tenant}/posts", rl.Middleware(slog.Default(), ok))
	return mux
}

func post(mux http.Handler, tenant string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/"+tenant+"/posts", strings.NewReader("{}"))
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_RejectsAfterBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(0.5), Burst: 2, CleanupInterval: time.Minute})
	defer rl.Stop()
	mux := limitedMux(rl)

	assert.Equal(t, http.StatusOK, post(mux, "tenant-1").Code)
	assert.Equal(t, http.StatusOK, post(mux, "tenant-1").Code)

	rec := post(mux, "tenant-1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many publish requests, retry later"}`, rec.Body.String())
}

func TestRateLimiter_TenantsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(0.1), Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()
	mux := limitedMux(rl)

	assert.Equal(t, http.StatusOK, post(mux, "tenant-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(mux, "tenant-1").Code)
	assert.Equal(t, http.StatusOK, post(mux, "tenant-2").Code)
	assert.Equal(t, 2, rl.LimiterCount())
}

func TestRateLimiter_CleanupDropsIdleTenants(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(1), Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.limiter("idle")
	rl.cleanup(time.Now().Add(time.Minute))
	assert.Equal(t, 1, rl.LimiterCount(), "entries younger than two intervals are kept")

	rl.cleanup(time.Now().Add(3 * time.Minute))
	assert.Equal(t, 0, rl.LimiterCount())
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestWriteRateLimitResponse_RetryAfterFloor(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRateLimitResponse(rec, rate.Limit(100))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
