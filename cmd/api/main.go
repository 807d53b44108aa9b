package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"gigbridge/internal/auth"
	"gigbridge/internal/clients"
	"gigbridge/internal/config"
	"gigbridge/internal/deeplink"
	transporthttp "gigbridge/internal/http"
	"gigbridge/internal/metrics"
	"gigbridge/internal/navigation"
	"gigbridge/internal/platform/database"
	"gigbridge/internal/platform/logging"
	"gigbridge/internal/platform/migrate"
	"gigbridge/internal/platform/redis"
	"gigbridge/internal/session"
	"gigbridge/internal/users"
)

const sweepInterval = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is expected outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gigbridge api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	recordRepo, closeRecords, err := buildRecordRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecords()

	sessionRepo, closeSessions, err := buildSessionRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	backend, err := buildAuthBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	resolution := metrics.NewResolution(prometheus.DefaultRegisterer)
	registry := clients.NewRegistry(clients.Config{
		Sessions:   sessionRepo,
		Backend:    backend.sessions,
		Exchanger:  backend.exchanger,
		Records:    recordRepo,
		Decoder:    deeplink.NewDecoder(cfg.AppScheme, cfg.UniversalLinkHost, logger),
		Recorder:   resolution,
		Gauge:      resolution,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	})
	defer registry.Shutdown()

	router := transporthttp.NewRouter(cfg, transporthttp.Dependencies{
		Clients: registry,
		Auth:    auth.NewService(backend.auth, cfg.EmailRedirectURL()),
		OAuth:   backend.oauth,
		Users:   users.NewService(recordRepo),
		Metrics: promhttp.Handler(),
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gigbridge api listening", "addr", srv.Addr, "store", cfg.DataStore, "sessions", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx, sweepInterval, cfg.ClientIdleTTL)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func buildRecordRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (users.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory user record repository")
		return users.NewInMemoryRepository(), func() {}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Info("connected to postgres")
	return users.NewPostgresRepository(db), cleanup, nil
}

func buildSessionRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Repository, func(), error) {
	if !cfg.UseRedisSessions() {
		logger.Info("using in-memory session repository")
		return session.NewInMemoryRepository(), func() {}, nil
	}

	client, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("connected to redis")
	return session.NewRedisRepository(client), func() {
		_ = client.Close()
	}, nil
}

// authBackend groups the roles the auth service client plays.
type authBackend struct {
	auth      auth.Backend
	oauth     interface{ AuthURL(state, provider, redirectTo string) string }
	exchanger navigation.CodeExchanger
	sessions  session.Backend
}

func buildAuthBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (authBackend, error) {
	if !cfg.BackendEnabled() {
		logger.Warn("no backend auth service configured; sign-in is disabled")
		unconfigured := auth.Unconfigured{}
		// sessions stays nil: expired sessions are dropped rather than refreshed.
		return authBackend{auth: unconfigured, oauth: unconfigured, exchanger: unconfigured}, nil
	}

	tokens, err := auth.NewTokenVerifier(cfg.BackendJWTSecret, cfg.BackendJWTIssuer)
	if err != nil {
		return authBackend{}, err
	}

	opts := []auth.Option{auth.WithRedirectURL(cfg.OAuthCallbackURL())}
	if cfg.BackendOIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.BackendOIDCIssuer, cfg.BackendClientID)
		if err != nil {
			return authBackend{}, err
		}
		opts = append(opts, auth.WithIDTokenVerifier(verifier))
	}

	client, err := auth.NewClient(cfg.BackendURL, cfg.BackendClientID, cfg.BackendClientSecret, tokens, opts...)
	if err != nil {
		return authBackend{}, err
	}

	logger.Info("backend auth service configured", "url", cfg.BackendURL, "oidc", cfg.BackendOIDCIssuer != "")
	return authBackend{auth: client, oauth: client, exchanger: client, sessions: client}, nil
}
