package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sekolah-digital/sekolah-api/internal/authn"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

// TokenTTL bounds issued credentials.
const TokenTTL = 12 * time.Hour

// Service wraps authentication business rules: credential verification and
// token issuance.
type Service struct {
	repo   Repository
	issuer *authn.JWTVerifier
}

// NewService constructs a Service.
func NewService(repo Repository, issuer *authn.JWTVerifier) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Authenticate validates email/password credentials and returns the identity
// together with a signed bearer token. Lookup failures, inactive accounts and
// password mismatches all collapse into the same error so account existence
// is not probeable.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*shared.Identity, string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", shared.ErrInvalidCredential(err)
	}
	if !user.IsActive {
		return nil, "", shared.ErrInvalidCredential(nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredential(err)
	}
	identity := &shared.Identity{
		SubjectID:   user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		Permissions: user.Permissions,
	}
	token, err := s.issuer.IssueToken(identity, TokenTTL)
	if err != nil {
		return nil, "", shared.ErrInternal(err)
	}
	return identity, token, nil
}
