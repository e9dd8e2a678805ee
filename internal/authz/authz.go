// Package authz provides four composable authorization gates. Every gate
// requires an identity already attached by the authentication gate; a missing
// identity is an authentication failure, kept distinct from a denial.
package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sekolah-digital/sekolah-api/internal/shared"
)

// DefaultSelfParam is the path parameter holding the target subject id.
const DefaultSelfParam = "userId"

// OwnerResolver locates the owner of the resource a request addresses. found
// is false when the resource does not exist. The gate knows nothing about the
// resource kind, so documents, invoices and records share one gate.
type OwnerResolver func(ctx context.Context, r *http.Request) (ownerID int64, found bool, err error)

// RequireRole passes when the identity's role matches any allowed role,
// case-insensitively.
func RequireRole(logger *slog.Logger, allowed ...string) func(http.Handler) http.Handler {
	return gate(logger, func(r *http.Request, id *shared.Identity) error {
		for _, role := range allowed {
			if shared.RoleEquals(id.Role, role) {
				return nil
			}
		}
		return shared.ErrPermissionDenied()
	})
}

// RequirePermissions passes only when the identity carries every required
// capability tag.
func RequirePermissions(logger *slog.Logger, required ...string) func(http.Handler) http.Handler {
	return gate(logger, func(r *http.Request, id *shared.Identity) error {
		if !id.HasAllPermissions(required...) {
			return shared.ErrPermissionDenied()
		}
		return nil
	})
}

// RequireSelfAccess passes when the path parameter equals the caller's
// subject id, or the caller is an administrator. A non-numeric parameter is
// an InvalidIdentifier failure, not a plain denial.
func RequireSelfAccess(logger *slog.Logger, param string) func(http.Handler) http.Handler {
	if param == "" {
		param = DefaultSelfParam
	}
	return gate(logger, func(r *http.Request, id *shared.Identity) error {
		raw := chi.URLParam(r, param)
		target, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return shared.ErrInvalidIdentifier(param)
		}
		if target == id.SubjectID || id.IsAdmin() {
			return nil
		}
		return shared.ErrPermissionDenied()
	})
}

// RequireOwnership passes when the resolved owner equals the caller, or the
// caller is an administrator. An unresolvable resource reads as a denial
// rather than 404, so existence is not leaked to non-owners.
func RequireOwnership(logger *slog.Logger, resolve OwnerResolver) func(http.Handler) http.Handler {
	return gate(logger, func(r *http.Request, id *shared.Identity) error {
		ownerID, found, err := resolve(r.Context(), r)
		if err != nil {
			return shared.ErrInternal(err)
		}
		if !found {
			return shared.ErrResourceNotFound()
		}
		if ownerID == id.SubjectID || id.IsAdmin() {
			return nil
		}
		return shared.ErrPermissionDenied()
	})
}

func gate(logger *slog.Logger, check func(*http.Request, *shared.Identity) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := shared.IdentityFromContext(r.Context())
			if id == nil {
				shared.WriteError(w, logger, shared.ErrAuthenticationRequired())
				return
			}
			if err := check(r, id); err != nil {
				if logger != nil {
					if se, ok := shared.AsSecurityError(err); ok && se.Status == http.StatusForbidden {
						logger.Warn("authorization denied",
							slog.Int64("subject", id.SubjectID),
							slog.String("role", id.Role),
							slog.String("path", r.URL.Path),
							slog.String("code", se.Code))
					}
				}
				shared.WriteError(w, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
