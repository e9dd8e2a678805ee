package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sekolah-digital/sekolah-api/internal/audit"
	"github.com/sekolah-digital/sekolah-api/internal/auth"
	"github.com/sekolah-digital/sekolah-api/internal/authn"
	"github.com/sekolah-digital/sekolah-api/internal/authz"
	"github.com/sekolah-digital/sekolah-api/internal/csrf"
	"github.com/sekolah-digital/sekolah-api/internal/documents"
	"github.com/sekolah-digital/sekolah-api/internal/observability"
	"github.com/sekolah-digital/sekolah-api/internal/ratelimit"
	"github.com/sekolah-digital/sekolah-api/internal/sanitize"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
	"github.com/sekolah-digital/sekolah-api/internal/sqlguard"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CSRFManager      *csrf.Manager
	AuthGate         *authn.Gate
	SQLGuard         *sqlguard.Guard
	GeneralLimiter   *ratelimit.Limiter
	LoginLimiter     *ratelimit.Limiter
	AuditRecorder    *audit.Recorder
	AuthHandler      *auth.Handler
	DocumentsHandler *documents.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with the full security pipeline. The
// base stack runs first; route groups then add their gates in pipeline
// order: limiter, authentication, input guards, CSRF, audit, authorization.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		CSRFManager:    params.CSRFManager,
		GeneralLimiter: params.GeneralLimiter,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	healthPath := "/healthz"
	if params.Config != nil && params.Config.HealthPath != "" {
		healthPath = params.Config.HealthPath
	}
	r.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	inputGuards := func(r chi.Router) {
		if params.SQLGuard != nil {
			r.Use(params.SQLGuard.Middleware)
		}
		r.Use(sanitize.Middleware(params.Logger))
		if params.CSRFManager != nil {
			r.Use(params.CSRFManager.Verify)
		}
		if params.AuditRecorder != nil {
			r.Use(params.AuditRecorder.Middleware)
		}
	}

	// Credential submission: network-address keyed, failures only.
	r.Route("/auth", func(r chi.Router) {
		if params.LoginLimiter != nil {
			r.Use(ratelimit.Middleware(params.LoginLimiter, ratelimit.KeyByIP, params.Logger))
		}
		inputGuards(r)
		params.AuthHandler.MountRoutes(r)
	})

	// Authenticated API surface.
	r.Group(func(r chi.Router) {
		r.Use(params.AuthGate.Require)
		inputGuards(r)

		if params.DocumentsHandler != nil {
			r.Route("/documents", params.DocumentsHandler.MountRoutes)
		}
		r.Route("/users", func(r chi.Router) {
			r.With(authz.RequireSelfAccess(params.Logger, "userId")).
				Get("/{userId}/profile", handleProfile)
		})
	})

	return r
}

// handleProfile returns the caller's identity; self-access authorization has
// already established the caller may view this subject.
func handleProfile(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":          id.SubjectID,
			"name":        id.DisplayName,
			"email":       id.Email,
			"role":        id.Role,
			"permissions": id.Permissions,
		},
	})
}
