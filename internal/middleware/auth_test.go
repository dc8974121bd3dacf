package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authProbe() (http.Handler, *string) {
	var seen string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &seen
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	inner, seen := authProbe()
	h := APIKeyAuth(map[string]string{"secret-key": "user-42"}, false)(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", *seen)
}

func TestAPIKeyAuth_BareKeyFormat(t *testing.T) {
	inner, seen := authProbe()
	h := APIKeyAuth(map[string]string{"secret-key": "user-42"}, false)(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses", nil)
	req.Header.Set("Authorization", "secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", *seen)
}

func TestAPIKeyAuth_WrongKeyAlwaysRejected(t *testing.T) {
	for _, anon := range []bool{true, false} {
		inner, _ := authProbe()
		h := APIKeyAuth(map[string]string{"secret-key": "user-42"}, anon)(inner)

		req := httptest.NewRequest(http.MethodGet, "/v1/analyses", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "allowAnonymous=%v", anon)
	}
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	inner, seen := authProbe()
	h := APIKeyAuth(map[string]string{"secret-key": "user-42"}, true)(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, AnonymousUser, *seen)

	inner2, _ := authProbe()
	strict := APIKeyAuth(map[string]string{"secret-key": "user-42"}, false)(inner2)
	rec2 := httptest.NewRecorder()
	strict.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
}

func TestAPIKeyAuth_SkipsHealthAndMetrics(t *testing.T) {
	inner, _ := authProbe()
	h := APIKeyAuth(map[string]string{"secret-key": "user-42"}, false)(inner)

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRateLimiter_ExhaustsAndKeysIndependently(t *testing.T) {
	rl := NewRateLimiter(2, 1)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	// a different caller has its own bucket
	assert.True(t, rl.Allow("b"))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/analyze", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// probe endpoints bypass the limiter even once it is exhausted
	for _, path := range []string{"/health", "/metrics"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRateLimitMiddleware_KeysOnUserAndAddress(t *testing.T) {
	h := RateLimitMiddleware(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/analyze", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// same anonymous user from a different address is a separate bucket
	other := httptest.NewRequest(http.MethodGet, "/v1/analyze", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	// the first address is still exhausted
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
