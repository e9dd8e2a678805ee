package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

func newMiddlewareHarness(t *testing.T, policy Policy, status int) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewLimiter(policy, NewRedisStore(client), nil, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	return Middleware(limiter, KeyByIP, nil)(handler)
}

func TestMiddlewareEmitsHeadersAndDenies(t *testing.T) {
	handler := newMiddlewareHarness(t, Policy{Name: "general", Limit: 2, Window: time.Minute}, http.StatusOK)

	var res *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/students", nil)
		req.RemoteAddr = "10.0.0.1:4455"
		res = httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
	}
	assert.Equal(t, "2", res.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", res.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, res.Header().Get("X-RateLimit-Reset"))

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.RemoteAddr = "10.0.0.1:4455"
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Contains(t, res.Body.String(), shared.CodeRateLimitExceeded)
	assert.NotEmpty(t, res.Header().Get("Retry-After"))

	// Another address is unaffected.
	req = httptest.NewRequest(http.MethodGet, "/students", nil)
	req.RemoteAddr = "10.0.0.2:4455"
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestMiddlewareFailureOnlyPolicy(t *testing.T) {
	// Failed attempts accumulate toward the ceiling.
	failing := newMiddlewareHarness(t,
		Policy{Name: "login", Limit: 5, Window: 15 * time.Minute, CountSuccess: false},
		http.StatusUnauthorized)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:4455"
		res := httptest.NewRecorder()
		failing.ServeHTTP(res, req)
		require.Equal(t, http.StatusUnauthorized, res.Code, "attempt %d", i+1)
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:4455"
	res := httptest.NewRecorder()
	failing.ServeHTTP(res, req)
	require.Equal(t, http.StatusTooManyRequests, res.Code, "sixth failed attempt is throttled")

	// Successful attempts are refunded and never exhaust the window.
	succeeding := newMiddlewareHarness(t,
		Policy{Name: "login", Limit: 5, Window: 15 * time.Minute, CountSuccess: false},
		http.StatusOK)
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:4455"
		res := httptest.NewRecorder()
		succeeding.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code, "attempt %d", i+1)
	}
}

func TestMiddlewareExemptPath(t *testing.T) {
	handler := newMiddlewareHarness(t,
		Policy{Name: "general", Limit: 1, Window: time.Minute, ExemptPaths: []string{"/healthz"}},
		http.StatusOK)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:4455"
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Empty(t, res.Header().Get("X-RateLimit-Limit"), "exempt paths carry no limit headers")
	}
}

func TestMiddlewareScopesByIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewLimiter(Policy{Name: "general", Limit: 1, Window: time.Minute}, NewRedisStore(client), nil, nil)
	handler := Middleware(limiter, KeyByIdentityOrIP, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(subjectID int64) int {
		req := httptest.NewRequest(http.MethodGet, "/students", nil)
		req.RemoteAddr = "10.0.0.1:4455"
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), &shared.Identity{SubjectID: subjectID}))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res.Code
	}

	// Same address, distinct subjects, distinct budgets.
	require.Equal(t, http.StatusOK, send(7))
	require.Equal(t, http.StatusTooManyRequests, send(7))
	require.Equal(t, http.StatusOK, send(8))
}

func TestStripPort(t *testing.T) {
	cases := map[string]string{
		"10.0.0.1:8080": "10.0.0.1",
		"10.0.0.1":      "10.0.0.1",
		"[::1]:8080":    "[::1]",
	}
	for in, want := range cases {
		if got := stripPort(in); got != want {
			t.Fatalf("stripPort(%q) = %q, want %q", in, got, want)
		}
	}
}
