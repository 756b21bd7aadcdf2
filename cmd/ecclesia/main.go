package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	"github.com/ecclesia/ecclesia/internal/app"
	"github.com/ecclesia/ecclesia/internal/auth"
	"github.com/ecclesia/ecclesia/internal/badge"
	"github.com/ecclesia/ecclesia/internal/committees"
	"github.com/ecclesia/ecclesia/internal/export"
	"github.com/ecclesia/ecclesia/internal/finance"
	"github.com/ecclesia/ecclesia/internal/members"
	"github.com/ecclesia/ecclesia/internal/ministries"
	"github.com/ecclesia/ecclesia/internal/modal"
	"github.com/ecclesia/ecclesia/internal/observability"
	"github.com/ecclesia/ecclesia/internal/pastors"
	"github.com/ecclesia/ecclesia/internal/platform/cache"
	"github.com/ecclesia/ecclesia/internal/rbac"
	"github.com/ecclesia/ecclesia/internal/sanctions"
	"github.com/ecclesia/ecclesia/internal/screen"
	"github.com/ecclesia/ecclesia/internal/shared"
	"github.com/ecclesia/ecclesia/internal/stats"
	"github.com/ecclesia/ecclesia/internal/transfers"
	"github.com/ecclesia/ecclesia/internal/view"
	"github.com/ecclesia/ecclesia/jobs"
	"github.com/ecclesia/ecclesia/report"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	client := apiclient.New(apiclient.Options{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.APITimeout,
		Cache:    apiclient.NewCache(redisClient, cfg.CacheTTL),
		Logger:   logger,
		Observer: metrics,
	})

	sessionManager := shared.NewSessionManager(redisClient, "ecclesia_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	rbacMiddleware := rbac.Middleware{Logger: logger}
	deps := screen.Deps{
		Logger:     logger,
		Templates:  templates,
		CSRF:       csrfManager,
		Exports:    metrics,
		Normalizer: export.NewNormalizer(cfg.Currency),
		Validator:  modal.NewValidator(),
		RBAC:       rbacMiddleware,
		PageSize:   cfg.PageSize,

		Submissions: shared.NewIdempotencyStore(redisClient, cfg.SubmissionTTL),
	}

	reportClient := report.NewClient(cfg.GotenbergURL)
	badgeRenderer, err := badge.NewRenderer()
	if err != nil {
		logger.Error("parse badge template", slog.Any("error", err))
		os.Exit(1)
	}

	authHandler := auth.NewHandler(logger, auth.NewService(client), templates, sessionManager, csrfManager)
	homeHandler := stats.NewHandler(stats.NewService(client), deps)
	screens := map[string]app.Mounter{
		"/members": members.NewHandler(client, deps, members.Options{
			AssetOrigin: cfg.AssetOrigin,
			Badges:      badge.NewRasterizer(badgeRenderer, reportClient),
		}),
		"/committees": committees.NewHandler(client, deps),
		"/ministries": ministries.NewHandler(client, deps),
		"/pastors":    pastors.NewHandler(client, deps),
		"/sanctions":  sanctions.NewHandler(client, deps),
		"/finance":    finance.NewHandler(client, deps),
		"/transfers":  transfers.NewHandler(client, deps),
	}

	queueOpt, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("queue redis options", slog.Any("error", err))
		os.Exit(1)
	}
	inspector := asynq.NewInspector(queueOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,
		AuthHandler:    authHandler,
		HomeHandler:    homeHandler,
		Screens:        screens,
		ReportHandler:  report.NewHandler(reportClient, logger),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
