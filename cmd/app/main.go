package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"tradejournal/configs"
	"tradejournal/internal/adapter/telegram"
	"tradejournal/internal/database"
	deliveryhttp "tradejournal/internal/delivery/http"
	"tradejournal/internal/domain"
	"tradejournal/internal/identity"
	"tradejournal/internal/infra"
	custommiddleware "tradejournal/internal/middleware"
	"tradejournal/internal/policy"
	"tradejournal/internal/repository"
	"tradejournal/internal/usecase"
	"tradejournal/internal/utils"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := configs.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger := infra.NewLogger(cfg.Log, cfg.IsProduction())
	if envErr != nil {
		logger.Debug(".env file not found, using environment variables")
	}

	ctx := context.Background()

	// Initialize database
	db, err := infra.NewDatabase(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	// Redis is optional; it only backs the webhook rate limiter
	redisClient, err := infra.NewRedis(ctx, cfg.Redis.URL)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, webhook rate limiting disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	keyRepo := repository.NewAPIKeyRepository(db)
	prefsRepo := repository.NewPreferencesRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	revocationRepo := repository.NewRevocationRepository(db)

	metrics := infra.NewMetrics()

	// Identity and policy
	sessions := custommiddleware.NewSessionManager(cfg.JWT, revocationRepo)
	keyService := usecase.NewAPIKeyService(keyRepo, logger)
	resolver := identity.NewResolver(keyService, sessions)
	accessor := policy.NewAccessor(userRepo, prefsRepo)
	guard := policy.NewGuard(accessor)
	authorizer := custommiddleware.NewAuthorizer(resolver, guard, metrics, logger)
	perimeter := custommiddleware.NewPerimeter(sessions, resolver, guard, metrics, logger)

	// Notification transport
	var notifier domain.Notifier
	telegramService := telegram.NewNotificationService(cfg.Telegram)
	if telegramService.Enabled() {
		notifier = telegramService
	} else {
		logger.Warn("Telegram is not configured, notifications will be skipped")
	}

	// Initialize services
	authService := usecase.NewAuthService(userRepo, logger)
	tradeService := usecase.NewTradeService(tradeRepo)
	adminService := usecase.NewAdminService(userRepo, logger)
	profileService := usecase.NewProfileService(profileRepo)
	preferenceService := usecase.NewPreferenceService(accessor, prefsRepo)
	accountService := usecase.NewAccountService(accessor, profileService, keyService)
	ingestionService := usecase.NewIngestionService(
		resolver,
		guard,
		accessor,
		tradeRepo,
		notifier,
		cfg.Telegram.Timeout,
		metrics,
		logger,
	)

	if email := cfg.Bootstrap.SuperadminEmail; email != "" {
		if err := authService.PromoteSuperadmin(ctx, email); err != nil {
			logger.WithError(err).WithField("email", email).Warn("Superadmin bootstrap skipped")
		}
	}

	// Revoked session ids are pruned once they expire
	scheduler := infra.NewScheduler(revocationRepo, logger, infra.DefaultPruneSpec)
	if err := scheduler.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}
	defer scheduler.Stop()

	var webhookLimiter *infra.RateLimiter
	if redisClient != nil {
		webhookLimiter = infra.NewRateLimiter(redisClient, "tradejournal:ratelimit:webhook", cfg.Limits.WebhookPerMinute, time.Minute, logger)
	}

	renderer, err := deliveryhttp.NewTemplateRenderer()
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse templates")
	}

	// Initialize HTTP app
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	deliveryhttp.SetupRoutes(e, &deliveryhttp.RouterConfig{
		AuthHandler:    deliveryhttp.NewAuthHandler(authService, sessions, logger),
		SignalHandler:  deliveryhttp.NewSignalHandler(ingestionService),
		TradeHandler:   deliveryhttp.NewTradeHandler(tradeService, authorizer),
		UserHandler:    deliveryhttp.NewUserHandler(accountService, profileService, preferenceService, keyService, authorizer),
		AdminHandler:   deliveryhttp.NewAdminHandler(adminService, authorizer),
		WebHandler:     deliveryhttp.NewWebHandler(tradeService, accountService, adminService, authorizer, utils.LoadLocation(cfg.Telegram.Timezone)),
		Renderer:       renderer,
		Perimeter:      perimeter,
		WebhookLimiter: webhookLimiter,
		AuthPerMinute:  cfg.Limits.AuthPerMinute,
		Metrics:        metrics,
		Logger:         logger,
		Production:     cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	opsSrv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.OpsPort),
		Handler:      opsRouter(db, metrics),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Run servers in goroutines
	for _, s := range []*http.Server{srv, opsSrv} {
		go func(s *http.Server) {
			logger.WithFields(logrus.Fields{"addr": s.Addr, "env": cfg.Server.Env}).Info("Listening")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Fatal("Failed to start server")
			}
		}(s)
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Ops server forced to shutdown")
	}

	logger.Info("Server exited gracefully")
}

// opsRouter serves health and metrics on the internal port
func opsRouter(db *pgxpool.Pool, metrics *infra.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", handleHealth(db))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func handleHealth(db interface{ Ping(context.Context) error }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check database
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"status":%q,"service":"tradejournal","database":%q,"timestamp":%q}`,
			dbStatus, dbStatus, time.Now().UTC().Format(time.RFC3339))
	}
}
