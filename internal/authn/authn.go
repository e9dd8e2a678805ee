// Package authn guards routes behind a bearer credential. Token verification
// is delegated to a TokenVerifier so the gate itself never learns about
// signatures or expiry; the JWT implementation below is the default
// collaborator.
package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

const bearerPrefix = "Bearer "

// Claims is the decoded identity a verifier returns.
type Claims struct {
	SubjectID   int64
	DisplayName string
	Email       string
	Role        string
	Permissions []string
}

// TokenVerifier validates an opaque credential and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Gate is the authentication middleware pair.
type Gate struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewGate constructs a Gate.
func NewGate(verifier TokenVerifier, logger *slog.Logger) *Gate {
	return &Gate{verifier: verifier, logger: logger}
}

// authenticate runs the shared state machine: no credential or a malformed
// scheme short-circuits to rejection without ever calling the verifier, so
// the cheap fail path leaks no verification timing.
func (g *Gate) authenticate(r *http.Request) (*shared.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return nil, shared.ErrNoCredential()
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return nil, shared.ErrNoCredential()
	}
	claims, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, shared.ErrInvalidCredential(err)
	}
	return &shared.Identity{
		SubjectID:   claims.SubjectID,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}

// Require rejects unauthenticated requests.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.authenticate(r)
		if err != nil {
			shared.WriteError(w, g.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// Optional attaches an identity when one can be verified and proceeds
// anonymously otherwise. Verification failures are swallowed by contract;
// they must never propagate to the client here.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// jwtClaims is the wire shape of issued tokens.
type jwtClaims struct {
	DisplayName string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens issued by this application.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a verifier over the shared signing secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify implements TokenVerifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	subjectID, err := parseSubjectID(subject)
	if err != nil {
		return nil, err
	}
	return &Claims{
		SubjectID:   subjectID,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}

// IssueToken signs a token for the identity. Used by the auth module on
// successful login.
func (v *JWTVerifier) IssueToken(id *shared.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		DisplayName: id.DisplayName,
		Email:       id.Email,
		Role:        id.Role,
		Permissions: id.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   formatSubjectID(id.SubjectID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
