package authn_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-digital/sekolah-api/internal/authn"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

type stubVerifier struct {
	claims *authn.Claims
	err    error
	calls  int
}

func (s *stubVerifier) Verify(_ context.Context, _ string) (*authn.Claims, error) {
	s.calls++
	return s.claims, s.err
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := shared.IdentityFromContext(r.Context()); id != nil {
			w.Header().Set("X-Subject", id.Email)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAttachesIdentity(t *testing.T) {
	verifier := &stubVerifier{claims: &authn.Claims{SubjectID: 7, Email: "budi@sekolah.id", Role: shared.RoleStudent}}
	handler := authn.NewGate(verifier, nil).Require(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "budi@sekolah.id", res.Header().Get("X-Subject"))
	assert.Equal(t, 1, verifier.calls)
}

func TestRequireRejectsWithoutCredential(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"lowercase bearer", "bearer some-token"},
		{"empty token", "Bearer "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := &stubVerifier{}
			handler := authn.NewGate(verifier, nil).Require(echoIdentity())

			req := httptest.NewRequest(http.MethodGet, "/students", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			require.Equal(t, http.StatusUnauthorized, res.Code)
			assert.Contains(t, res.Body.String(), shared.CodeNoCredential)
			assert.Zero(t, verifier.calls, "the verifier must not run without a well-formed credential")
		})
	}
}

func TestRequireRejectsInvalidToken(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("signature mismatch")}
	handler := authn.NewGate(verifier, nil).Require(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), shared.CodeInvalidCredential)
	assert.NotContains(t, res.Body.String(), "signature mismatch", "verifier internals stay out of responses")
}

func TestOptionalSwallowsFailures(t *testing.T) {
	t.Run("anonymous passes through", func(t *testing.T) {
		handler := authn.NewGate(&stubVerifier{}, nil).Optional(echoIdentity())
		req := httptest.NewRequest(http.MethodGet, "/announcements", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Empty(t, res.Header().Get("X-Subject"))
	})

	t.Run("invalid token passes through anonymously", func(t *testing.T) {
		handler := authn.NewGate(&stubVerifier{err: errors.New("expired")}, nil).Optional(echoIdentity())
		req := httptest.NewRequest(http.MethodGet, "/announcements", nil)
		req.Header.Set("Authorization", "Bearer expired-token")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Empty(t, res.Header().Get("X-Subject"))
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		verifier := &stubVerifier{claims: &authn.Claims{SubjectID: 9, Email: "siti@sekolah.id"}}
		handler := authn.NewGate(verifier, nil).Optional(echoIdentity())
		req := httptest.NewRequest(http.MethodGet, "/announcements", nil)
		req.Header.Set("Authorization", "Bearer ok")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "siti@sekolah.id", res.Header().Get("X-Subject"))
	})
}

func TestJWTIssueVerifyRoundtrip(t *testing.T) {
	verifier := authn.NewJWTVerifier("test-secret")
	identity := &shared.Identity{
		SubjectID:   42,
		DisplayName: "Siti Rahma",
		Email:       "siti@sekolah.id",
		Role:        shared.RoleClassTeacher,
		Permissions: []string{"documents:view", "documents:manage"},
	}

	token, err := verifier.IssueToken(identity, time.Hour)
	require.NoError(t, err)

	claims, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.SubjectID)
	assert.Equal(t, "Siti Rahma", claims.DisplayName)
	assert.Equal(t, "siti@sekolah.id", claims.Email)
	assert.Equal(t, shared.RoleClassTeacher, claims.Role)
	assert.Equal(t, []string{"documents:view", "documents:manage"}, claims.Permissions)
}

func TestJWTVerifyRejects(t *testing.T) {
	verifier := authn.NewJWTVerifier("test-secret")
	identity := &shared.Identity{SubjectID: 42, Role: shared.RoleStudent}

	t.Run("wrong secret", func(t *testing.T) {
		token, err := authn.NewJWTVerifier("other-secret").IssueToken(identity, time.Hour)
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), token)
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := verifier.IssueToken(identity, -time.Minute)
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), token)
		require.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := verifier.Verify(context.Background(), "not.a.jwt")
		require.Error(t, err)
	})
}
