package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

// KeyFunc derives the scope key for a request.
type KeyFunc func(r *http.Request) string

// KeyByIdentityOrIP scopes by authenticated subject when present, falling
// back to the network address. RealIP middleware must run earlier so
// RemoteAddr reflects the true client behind proxies.
func KeyByIdentityOrIP(r *http.Request) string {
	if id := shared.IdentityFromContext(r.Context()); id != nil {
		return "sub:" + strconv.FormatInt(id.SubjectID, 10)
	}
	return "ip:" + stripPort(r.RemoteAddr)
}

// KeyByIP always scopes by network address, used for the credential policy
// where no identity exists yet.
func KeyByIP(r *http.Request) string {
	return "ip:" + stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		switch addr[i] {
		case ':':
			return addr[:i]
		case ']':
			return addr
		}
	}
	return addr
}

// Middleware enforces the limiter's policy, emitting rate-limit headers on
// every response it touches. When the policy counts only failures, a
// successful response refunds its admission.
func Middleware(l *Limiter, keyFn KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = KeyByIdentityOrIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, exempt := range l.Policy().ExemptPaths {
				if r.URL.Path == exempt {
					next.ServeHTTP(w, r)
					return
				}
			}

			decision := l.Admit(r.Context(), keyFn(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				if logger != nil {
					logger.Warn("rate limit exceeded",
						slog.String("policy", l.Policy().Name),
						slog.String("path", r.URL.Path))
				}
				shared.WriteError(w, logger, shared.ErrRateLimitExceeded(decision.RetryAfter(l.now())))
				return
			}

			if l.Policy().CountSuccess {
				next.ServeHTTP(w, r)
				return
			}
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			if recorder.status < http.StatusBadRequest {
				l.Refund(r.Context(), decision)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
