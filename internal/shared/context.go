package shared

import "context"

// Identity describes the authenticated caller for the lifetime of a request.
// It is produced by the authentication gate and never persisted here; token
// issuance owns the durable account record.
type Identity struct {
	SubjectID   int64
	DisplayName string
	Email       string
	Role        string
	Permissions []string
}

// HasAllPermissions reports whether the identity carries every required
// capability tag. Comparison is exact membership; an empty requirement always
// passes.
func (id *Identity) HasAllPermissions(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if id == nil {
		return false
	}
	granted := make(map[string]struct{}, len(id.Permissions))
	for _, p := range id.Permissions {
		granted[p] = struct{}{}
	}
	for _, r := range required {
		if _, ok := granted[r]; !ok {
			return false
		}
	}
	return true
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context, nil when the
// request is anonymous.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
