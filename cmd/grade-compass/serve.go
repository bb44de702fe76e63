package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/grade-compass/internal/analytics"
	"github.com/terra-clan/grade-compass/internal/api"
	"github.com/terra-clan/grade-compass/internal/auth"
	"github.com/terra-clan/grade-compass/internal/cache"
	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/cleanup"
	"github.com/terra-clan/grade-compass/internal/config"
	"github.com/terra-clan/grade-compass/internal/health"
	"github.com/terra-clan/grade-compass/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		setupLogging(slog.LevelInfo)
		slog.Error("failed to load config", "error", err)
		return err
	}
	setupLogging(cfg.Log.SlogLevel())

	slog.Info("starting grade-compass",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"auth_provider", cfg.Auth.Provider,
		"domain", cfg.Auth.Domain,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	registry := health.NewRegistry()

	repo, err := openRepository(initCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()
	registry.Register("store", repo)

	var statsCache analytics.StatsCache
	if cfg.Redis.Address != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.StatsCacheTTL,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			return err
		}
		defer redisCache.Close()
		registry.Register("cache", redisCache)
		statsCache = redisCache
		slog.Info("stats cache enabled", "address", cfg.Redis.Address, "ttl", cfg.Redis.StatsCacheTTL)
	}

	// Analytics pipeline
	dispatcher := analytics.NewDispatcher(repo, analytics.DispatcherConfig{
		QueueSize: cfg.Analytics.QueueSize,
	})
	dispatcher.Start()
	statsService := analytics.NewService(repo, statsCache)

	// Access gate
	gate := auth.NewGate(
		auth.Policy{Domain: cfg.Auth.Domain, AdminEmail: cfg.Auth.AdminEmail},
		auth.NewSessionManager(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.SecureCookie),
		newProvider(cfg),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner := cleanup.NewCleaner(repo, cfg.Analytics.CleanupInterval, cfg.Analytics.Retention)
	cleaner.Start(ctx)

	// Setup HTTP server
	server, err := api.NewServer(cfg.Server, catalog.Default(), gate, dispatcher, statsService, registry)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr, "public_url", cfg.Server.PublicURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serveErr:
		slog.Error("HTTP server error", "error", err)
		return err
	}

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Flush queued analytics before the store closes
	if err := dispatcher.Close(shutdownCtx); err != nil {
		slog.Error("analytics flush error", "error", err, "dropped", dispatcher.Dropped())
	}

	slog.Info("grade-compass stopped")
	return nil
}

// analyticsStore is the repository plus its readiness probe
type analyticsStore interface {
	storage.Repository
	HealthCheck(ctx context.Context) error
}

// openRepository connects to PostgreSQL, or falls back to memory when no DSN is set
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (analyticsStore, error) {
	if cfg.DSN == "" {
		slog.Warn("DATABASE_DSN not set, analytics are kept in memory")
		return storage.NewMemoryRepository(), nil
	}

	slog.Info("running database migrations")
	if err := storage.MigrateFromDSN(ctx, cfg.DSN); err != nil {
		slog.Error("failed to run migrations", "error", err)
		return nil, err
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.DSN,
		MaxOpenConns: int32(cfg.MaxConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		return nil, err
	}
	slog.Info("database connected successfully")
	return repo, nil
}

func newProvider(cfg *config.Config) auth.IdentityProvider {
	redirectURL := fmt.Sprintf("%s/auth/callback", strings.TrimRight(cfg.Server.PublicURL, "/"))

	if cfg.Auth.Provider == config.ProviderStatic {
		slog.Warn("static sign-in enabled; every visitor signs in as one user", "user", cfg.Auth.StaticUserEmail)
		return auth.NewStaticProvider(cfg.Auth.StaticUserEmail, cfg.Auth.StaticUserName, redirectURL)
	}

	return auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: cfg.Auth.GoogleClientSecret,
		RedirectURL:  redirectURL,
		HostedDomain: cfg.Auth.Domain,
	})
}
