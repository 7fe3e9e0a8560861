package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/sitepulse/sitepulse/internal/cache"
	"github.com/sitepulse/sitepulse/internal/config"
	"github.com/sitepulse/sitepulse/internal/handlers"
	"github.com/sitepulse/sitepulse/internal/logging"
	"github.com/sitepulse/sitepulse/internal/middleware"
	"github.com/sitepulse/sitepulse/internal/ratelimit"
	"github.com/sitepulse/sitepulse/internal/repository"
	"github.com/sitepulse/sitepulse/internal/server"
	"github.com/sitepulse/sitepulse/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SitePulse API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("sitepulse"))
	logging.SetDefault(logger)

	slog.Info("Starting SitePulse service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)

	// Initialize repository based on config
	var repo repository.Repository
	if cfg.Database.Type == "postgres" {
		slog.Info("Connecting to PostgreSQL")

		pgRepo, err := repository.NewPostgresRepository(context.Background(), cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer pgRepo.Close()
		repo = pgRepo
		slog.Info("Connected to PostgreSQL")

		// Run database migrations
		slog.Info("Running database migrations")
		m, err := migrate.New(cfg.Database.MigrationsPath, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize migrations: %w", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		version, dirty, err := m.Version()
		if err != nil {
			slog.Warn("Could not get migration version", slog.String("error", err.Error()))
		} else {
			slog.Info("Database migration complete",
				slog.Uint64("version", uint64(version)),
				slog.Bool("dirty", dirty),
			)
		}
	} else {
		slog.Warn("Using in-memory repository (development only)")
		repo = repository.NewInMemoryRepository()
	}

	// Summary cache and rate limiter share the Redis instance. Both are
	// optional: the service stays correct without them.
	var summaryCache cache.SummaryCache = cache.NoOpSummaryCache{}
	var limiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}

	if cfg.Redis.Enabled {
		c, err := cache.NewRedisSummaryCache(cfg.Redis.URL, cfg.Cache.SummaryTTL)
		if err != nil {
			slog.Warn("Summary cache unavailable, serving uncached", slog.String("error", err.Error()))
		} else {
			defer c.Close()
			summaryCache = c
			slog.Info("Connected to Redis summary cache")
		}

		if cfg.RateLimit.Enabled {
			l, err := ratelimit.NewRedisRateLimiter(cfg.Redis.URL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
			if err != nil {
				slog.Warn("Rate limiter unavailable, running unlimited", slog.String("error", err.Error()))
			} else {
				defer l.Close()
				limiter = l
			}
		}
	}

	// Initialize service layer
	authService := service.NewAuthService(repo)
	analyticsService := service.NewAnalyticsService(repo, summaryCache)

	// Initialize HTTP handlers and router
	authHandler := handlers.NewAuthHandler(authService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	apiKeyAuth := middleware.NewAPIKeyAuth(authService)
	rateLimitMW := middleware.NewRateLimit(limiter)

	router := server.NewRouter(authHandler, analyticsHandler, apiKeyAuth, rateLimitMW)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		slog.Info("SitePulse service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped gracefully")
	return nil
}
