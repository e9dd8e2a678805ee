// Package csrf implements the double-submit cookie pattern. The server keeps
// no token state: the token lives in a cookie the client script can read, and
// every mutating request must echo it back in a header or body field. A
// cross-origin attacker cannot read the cookie, so it cannot produce the echo.
package csrf

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sekolah-digital/sekolah-api/internal/payload"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

const (
	// CookieName is the token cookie. Deliberately readable by client
	// script; double-submit requires the client to re-attach the value.
	CookieName = "csrf-token"
	// HeaderName is checked first for the echoed token.
	HeaderName = "X-CSRF-Token"
	// BodyField is the JSON body fallback when the header is absent.
	BodyField = "csrf_token"

	tokenBytes = 32
	tokenTTL   = 24 * time.Hour
)

// Manager issues and verifies double-submit tokens.
type Manager struct {
	secure bool
	logger *slog.Logger
}

// NewManager constructs a Manager. secure should follow the production flag
// so local development over plain HTTP still receives the cookie.
func NewManager(secure bool, logger *slog.Logger) *Manager {
	return &Manager{secure: secure, logger: logger}
}

// EnsureToken sets the token cookie when absent. An existing token is reused
// unchanged; there is no mid-session rotation.
func (m *Manager) EnsureToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenTTL.Seconds()),
		HttpOnly: false,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// VerifyRequest checks the echoed token on a mutating request. Methods with
// no side effects always pass.
func (m *Manager) VerifyRequest(r *http.Request) error {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return shared.ErrCSRFTokenMissing()
	}
	candidate := r.Header.Get(HeaderName)
	if candidate == "" {
		candidate = m.tokenFromBody(r)
	}
	if candidate == "" {
		return shared.ErrCSRFTokenMissing()
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(candidate)) != 1 {
		return shared.ErrCSRFTokenInvalid()
	}
	return nil
}

// Issue is the issuance middleware: every response carries the cookie so the
// client has a token before its first mutating call.
func (m *Manager) Issue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := m.EnsureToken(w, r); err != nil && m.logger != nil {
			m.logger.Error("issue csrf token", slog.Any("error", err))
		}
		next.ServeHTTP(w, r)
	})
}

// Verify is the validation middleware for state-changing methods.
func (m *Manager) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.VerifyRequest(r); err != nil {
			if m.logger != nil {
				m.logger.Warn("csrf validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
			}
			shared.WriteError(w, m.logger, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenFromBody reads the body-carried token from a JSON body, restoring the
// body bytes afterwards.
func (m *Manager) tokenFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return ""
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))

	doc, err := payload.DecodeBytes(bytes.TrimSpace(data))
	if err != nil {
		return ""
	}
	token, _ := doc.Lookup(BodyField)
	return token
}
