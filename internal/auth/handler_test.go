package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolah-digital/sekolah-api/internal/authn"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
	_ "github.com/sekolah-digital/sekolah-api/testing"
)

type stubRepository struct {
	users map[string]*User
}

func (s *stubRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := s.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func newLoginHarness(t *testing.T) (chi.Router, *authn.JWTVerifier) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia-sekali"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &stubRepository{users: map[string]*User{
		"budi@sekolah.id": {
			ID:           42,
			Email:        "budi@sekolah.id",
			DisplayName:  "Budi Santoso",
			PasswordHash: string(hash),
			Role:         shared.RoleClassTeacher,
			Permissions:  []string{"documents:view"},
			IsActive:     true,
		},
		"nonaktif@sekolah.id": {
			ID:           43,
			Email:        "nonaktif@sekolah.id",
			PasswordHash: string(hash),
			Role:         shared.RoleStudent,
			IsActive:     false,
		},
	}}
	issuer := authn.NewJWTVerifier("test-secret")
	handler := NewHandler(nil, NewService(repo, issuer))

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, issuer
}

func postLogin(t *testing.T, router chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginSuccessIssuesVerifiableToken(t *testing.T) {
	router, issuer := newLoginHarness(t)

	res := postLogin(t, router, `{"email": "budi@sekolah.id", "password": "rahasia-sekali"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var body loginResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(42), body.User.ID)
	assert.Equal(t, "Budi Santoso", body.User.DisplayName)
	assert.Equal(t, shared.RoleClassTeacher, body.User.Role)

	claims, err := issuer.Verify(context.Background(), body.Token)
	require.NoError(t, err, "the issued token must verify against the same secret")
	assert.Equal(t, int64(42), claims.SubjectID)
	assert.Equal(t, []string{"documents:view"}, claims.Permissions)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	router, _ := newLoginHarness(t)

	cases := map[string]string{
		"wrong password":   `{"email": "budi@sekolah.id", "password": "salah-semua"}`,
		"unknown account":  `{"email": "tidak-ada@sekolah.id", "password": "rahasia-sekali"}`,
		"inactive account": `{"email": "nonaktif@sekolah.id", "password": "rahasia-sekali"}`,
	}
	bodies := make(map[string]string)
	for name, payload := range cases {
		res := postLogin(t, router, payload)
		require.Equal(t, http.StatusUnauthorized, res.Code, name)
		assert.Contains(t, res.Body.String(), shared.CodeInvalidCredential, name)
		bodies[name] = res.Body.String()
	}
	// Identical body for every failure shape, so account existence and
	// activation state are not probeable.
	assert.Equal(t, bodies["wrong password"], bodies["unknown account"])
	assert.Equal(t, bodies["wrong password"], bodies["inactive account"])
}

func TestLoginValidation(t *testing.T) {
	router, _ := newLoginHarness(t)

	t.Run("malformed body", func(t *testing.T) {
		res := postLogin(t, router, `{not json`)
		require.Equal(t, http.StatusBadRequest, res.Code)
		assert.Contains(t, res.Body.String(), "MALFORMED_BODY")
	})

	t.Run("invalid email and short password", func(t *testing.T) {
		res := postLogin(t, router, `{"email": "not-an-email", "password": "short"}`)
		require.Equal(t, http.StatusBadRequest, res.Code)
		assert.Contains(t, res.Body.String(), "Email")
		assert.Contains(t, res.Body.String(), "Password")
	})
}
