package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sekolah-digital/sekolah-api/internal/app"
	"github.com/sekolah-digital/sekolah-api/internal/audit"
	"github.com/sekolah-digital/sekolah-api/internal/auth"
	"github.com/sekolah-digital/sekolah-api/internal/authn"
	"github.com/sekolah-digital/sekolah-api/internal/csrf"
	"github.com/sekolah-digital/sekolah-api/internal/documents"
	"github.com/sekolah-digital/sekolah-api/internal/observability"
	"github.com/sekolah-digital/sekolah-api/internal/ratelimit"
	"github.com/sekolah-digital/sekolah-api/internal/shared"
	"github.com/sekolah-digital/sekolah-api/internal/sqlguard"
	"github.com/sekolah-digital/sekolah-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	shared.DenialObserver = func(code string, status int) {
		metrics.CountGateDenial(observability.GateForStatus(status), code)
	}

	counterStore := ratelimit.NewRedisStore(redisClient)
	generalLimiter := ratelimit.NewLimiter(ratelimit.Policy{
		Name:         "general",
		Limit:        cfg.RateLimitGeneral,
		Window:       cfg.RateLimitGeneralWindow,
		CountSuccess: true,
		ExemptPaths:  []string{cfg.HealthPath},
	}, counterStore, nil, logger)
	loginLimiter := ratelimit.NewLimiter(ratelimit.Policy{
		Name:         "login",
		Limit:        cfg.RateLimitLogin,
		Window:       cfg.RateLimitLoginWindow,
		CountSuccess: false,
	}, counterStore, nil, logger)
	bulkLimiter := ratelimit.NewLimiter(ratelimit.Policy{
		Name:         "bulk",
		Limit:        cfg.RateLimitBulk,
		Window:       cfg.RateLimitBulkWindow,
		CountSuccess: true,
	}, counterStore, nil, logger)
	for _, limiter := range []*ratelimit.Limiter{generalLimiter, loginLimiter, bulkLimiter} {
		name := limiter.Policy().Name
		limiter.OnDegraded(func(active bool) { metrics.SetLimiterDegraded(name, active) })
	}

	csrfManager := csrf.NewManager(cfg.IsProduction(), logger)
	jwtVerifier := authn.NewJWTVerifier(cfg.JWTSecret)
	authGate := authn.NewGate(jwtVerifier, logger)
	sqlGuard := sqlguard.NewGuard(logger, metrics.CountInjectionMatch)

	auditSink, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := auditSink.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	auditRecorder := audit.NewRecorder(auditSink, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, jwtVerifier)
	authHandler := auth.NewHandler(logger, authService)

	documentsRepo := documents.NewRepository(dbpool)
	documentsHandler := documents.NewHandler(logger, documentsRepo,
		ratelimit.Middleware(bulkLimiter, ratelimit.KeyByIdentityOrIP, logger))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CSRFManager:      csrfManager,
		AuthGate:         authGate,
		SQLGuard:         sqlGuard,
		GeneralLimiter:   generalLimiter,
		LoginLimiter:     loginLimiter,
		AuditRecorder:    auditRecorder,
		AuthHandler:      authHandler,
		DocumentsHandler: documentsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
