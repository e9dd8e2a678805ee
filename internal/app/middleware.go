package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/sekolah-digital/sekolah-api/internal/csrf"
	"github.com/sekolah-digital/sekolah-api/internal/ratelimit"
)

// MiddlewareConfig aggregates dependencies shared by the base middleware
// stack. Authentication and authorization gates are mounted per route group
// by the router, not here.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	CSRFManager    *csrf.Manager
	GeneralLimiter *ratelimit.Limiter
}

// MiddlewareStack installs the base chain every request passes through before
// the route-group security gates.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		// Coarse per-IP flood protection ahead of the policy limiter.
		httprate.Limit(300, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.GeneralLimiter != nil {
		middlewares = append(middlewares, ratelimit.Middleware(cfg.GeneralLimiter, ratelimit.KeyByIdentityOrIP, cfg.Logger))
	}
	if cfg.CSRFManager != nil {
		middlewares = append(middlewares, cfg.CSRFManager.Issue)
	}
	return middlewares
}
