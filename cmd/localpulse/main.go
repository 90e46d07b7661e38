package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/localpulse/internal/adapter/driven/google"
	"github.com/ericfisherdev/localpulse/internal/adapter/driven/meta"
	"github.com/ericfisherdev/localpulse/internal/adapter/driven/metrics"
	postgresadapter "github.com/ericfisherdev/localpulse/internal/adapter/driven/postgres"
	sqliteadapter "github.com/ericfisherdev/localpulse/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/localpulse/internal/adapter/driven/tokencrypt"
	"github.com/ericfisherdev/localpulse/internal/adapter/driven/wordpress"
	httphandler "github.com/ericfisherdev/localpulse/internal/adapter/driving/http"
	"github.com/ericfisherdev/localpulse/internal/application"
	"github.com/ericfisherdev/localpulse/internal/config"
	"github.com/ericfisherdev/localpulse/internal/domain/model"
	"github.com/ericfisherdev/localpulse/internal/domain/port/driven"
	"github.com/ericfisherdev/localpulse/internal/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"postgres", cfg.UsePostgres(),
		"db_path", cfg.DBPath,
		"refresh_threshold", cfg.RefreshThreshold,
		"publish_timeout", cfg.PublishTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open storage and run migrations.
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 5. Credential codec.
	codec, err := tokencrypt.NewCodec(cfg.SecretKey)
	if err != nil {
		return err
	}

	// 6. Platform adapters share one outbound HTTP client.
	httpClient := &http.Client{Timeout: cfg.PublishTimeout}

	graph := meta.NewClient(meta.Config{
		AppID:      cfg.FacebookAppID,
		AppSecret:  cfg.FacebookAppSecret,
		Version:    cfg.GraphAPIVersion,
		HTTPClient: httpClient,
	})
	if cfg.FacebookAppID == "" || cfg.FacebookAppSecret == "" {
		slog.Warn("facebook app credentials not configured, facebook token refresh will fail")
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		slog.Warn("google oauth client not configured, google publishing will fail")
	}

	publishers := []driven.Publisher{
		google.NewPublisher(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			HTTPClient:   httpClient,
		}),
		meta.NewFacebookPublisher(graph),
		meta.NewInstagramPublisher(graph),
		wordpress.NewPublisher(wordpress.NewSafeClient(cfg.PublishTimeout)),
	}

	refreshers := map[model.Platform]driven.TokenRefresher{
		model.PlatformGoogle:    google.Refresher{},
		model.PlatformFacebook:  meta.NewFacebookRefresher(graph),
		model.PlatformInstagram: meta.InstagramRefresher{},
		model.PlatformWordPress: wordpress.Refresher{},
	}

	// 7. Application services.
	tokens := application.NewTokenManager(store.credentials, codec, refreshers, application.TokenManagerConfig{
		RefreshThreshold: cfg.RefreshThreshold,
		Retry: application.RetryOptions{
			MaxAttempts: cfg.RetryAttempts,
			MinDelay:    cfg.RetryMinDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		Metrics: collector,
	}, slog.Default())

	publishSvc := application.NewPublishService(tokens, publishers, store.history, collector, cfg.PublishTimeout, slog.Default())

	// 8. HTTP API.
	limiter := httphandler.NewRateLimiter(httphandler.RateLimiterConfig{
		Rate:            rate.Limit(float64(cfg.PublishRate) / 60.0),
		Burst:           cfg.PublishRate,
		CleanupInterval: 5 * time.Minute,
	})
	defer limiter.Stop()

	apiHandler := httphandler.NewHandler(publishSvc, tokens, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default(), httphandler.MuxOptions{
		Metrics:  metrics.Handler(reg),
		Observer: collector,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A publish may wait on a token refresh plus the slowest platform.
		WriteTimeout: 2*cfg.PublishTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	slog.Info("localpulse started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal or server failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	// 10. Graceful shutdown; in-flight publishes get the full publish timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PublishTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// storage bundles the persistence adapters selected by configuration.
type storage struct {
	credentials driven.CredentialStore
	history     driven.PublishLog
	close       func() error
}

// openStorage opens Postgres when LOCALPULSE_DATABASE_URL is set and the
// local SQLite file otherwise, and applies pending migrations.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.UsePostgres() {
		if err := postgresadapter.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		db, err := postgresadapter.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("postgres opened, migrations complete")
		return &storage{
			credentials: postgresadapter.NewCredentialRepo(db),
			history:     postgresadapter.NewPublishLogRepo(db),
			close:       db.Close,
		}, nil
	}

	// Dual reader/writer with WAL mode.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	version, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite opened", "path", cfg.DBPath, "schema_version", version)

	return &storage{
		credentials: sqliteadapter.NewCredentialRepo(db),
		history:     sqliteadapter.NewPublishLogRepo(db),
		close:       db.Close,
	}, nil
}
