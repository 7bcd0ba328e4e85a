package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/lantern/internal/auth"
	"github.com/BradenHooton/lantern/internal/background"
	"github.com/BradenHooton/lantern/internal/handlers"
	"github.com/BradenHooton/lantern/internal/metrics"
	middlewareCustom "github.com/BradenHooton/lantern/internal/middleware"
	"github.com/BradenHooton/lantern/internal/repositories"
	"github.com/BradenHooton/lantern/internal/routes"
	"github.com/BradenHooton/lantern/internal/services"
	pkglogger "github.com/BradenHooton/lantern/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var hsts bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the schema, then start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&hsts, "hsts", false, "send Strict-Transport-Security in production (set when TLS terminates upstream)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, db, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Schema must be current before anything touches the tables
	runner, store, err := newMigrationRunner(cfg, db, logger)
	if err != nil {
		logger.Error("failed to prepare schema migrations", slog.Any("error", err))
		return err
	}
	defer store.Close()

	status, err := runMigrations(cmd.Context(), runner, logger)
	if err != nil {
		return err
	}

	collector := metrics.New(prometheus.NewRegistry())
	collector.SetSchemaVersion(status.Expected)
	collector.ObservePool(db)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	sessionService := services.NewSessionService(sessionRepo, userRepo, collector, logger)
	settingsService := services.NewSettingsService(settingsRepo, cfg.Auth.DefaultGroup, auditLogger, logger)
	provisioningService := services.NewProvisioningService(userRepo, settingsService, collector, auditLogger, logger)
	authService := services.NewAuthService(userRepo, sessionService, services.SessionLifetimes{
		Default:    cfg.Auth.SessionTTL,
		RememberMe: cfg.Auth.RememberMeTTL,
	}, logger, auditLogger)

	resolver := auth.NewResolver(settingsService, sessionService, provisioningService, cfg.Auth.CookieName, collector, logger)

	// Initialize handlers
	cookieConfig := auth.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	}
	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, cookieConfig, settingsService),
		Settings: handlers.NewSettingsHandler(settingsService),
		Health:   handlers.NewHealthHandler(db, runner),
		Metrics:  collector.Handler(),
	}

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	ensureAdminUser(ctx, authService, logger)
	cancel()

	// Setup router. No RealIP: forwarding headers count only from whitelisted proxies.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env, HSTS: hsts}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(collector.Middleware)

	routes.RegisterRoutes(router, h, resolver, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Auth.LoginRateLimitPerMin,
	}, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start session reaper
	cleanupManager := background.NewCleanupManager(sessionService, collector, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
		cleanupManager.Stop()
		return err
	}

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}

// ensureAdminUser creates the first admin when ADMIN_USERNAME and ADMIN_PASSWORD
// are set and no account exists yet. Failure is logged, not fatal.
func ensureAdminUser(ctx context.Context, authService *services.AuthService, logger *slog.Logger) {
	admin, err := authService.BootstrapAdmin(ctx, os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD"))
	if err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
		return
	}
	if admin != nil {
		logger.Info("admin user created", slog.String("username", admin.Username))
	}
}
