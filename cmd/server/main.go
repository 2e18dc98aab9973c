package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"scalerrs-portal-api/internal/airtable"
	"scalerrs-portal-api/internal/auth"
	"scalerrs-portal-api/internal/cache"
	"scalerrs-portal-api/internal/config"
	"scalerrs-portal-api/internal/database"
	"scalerrs-portal-api/internal/logging"
	"scalerrs-portal-api/internal/metrics"
	"scalerrs-portal-api/internal/mockdata"
	"scalerrs-portal-api/internal/realtime"
	"scalerrs-portal-api/internal/records"
	"scalerrs-portal-api/internal/routes"
	"scalerrs-portal-api/internal/server"
	"scalerrs-portal-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to a YAML or JSON configuration file")
		envPrefix  = flag.String("env-prefix", config.DefaultEnvPrefix, "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewLoader(*envPrefix, *configFile).Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)

	recorder := metrics.NewRecorder(prometheus.NewRegistry())

	store, closeStore, err := buildStore(ctx, cfg, logger, recorder)
	if err != nil {
		logger.Error("record store setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	requestCache := cache.NewRequestCache(buildCacheStore(logger, cfg.Cache), cache.RequestCacheOptions{
		TTL:      cfg.Cache.TTL(),
		Logger:   logger,
		Observer: recorder,
	})
	defer func() {
		if err := requestCache.Close(); err != nil {
			logger.Error("cache shutdown failed", slog.Any("error", err))
		}
	}()

	tokens, err := auth.NewTokens(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL(),
	})
	if err != nil {
		logger.Error("token setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	hub := realtime.NewHub(logger)
	svc := service.New(service.Options{
		Store:     store,
		Cache:     requestCache,
		Logger:    logger,
		Publisher: hub,
		Observer:  recorder,
		DemoLogin: cfg.Auth.DemoLogin,
	})
	if !svc.Configured() {
		logger.Warn("record store credentials missing, serving sample data",
			slog.String("expected", "AIRTABLE_API_KEY and AIRTABLE_BASE_ID"))
	}

	router := routes.SetupRoutes(routes.Deps{
		Service:         svc,
		Tokens:          tokens,
		Hub:             hub,
		Metrics:         recorder,
		Logger:          logger,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		TrustHeaders:    cfg.Auth.TrustHeaders,
		RequireIdentity: cfg.Auth.RequireIdentity,
	})

	srv, err := server.New(cfg.Server, logger, router)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (records.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		db, err := database.Open(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.SeedSampleData {
			for _, table := range mockdata.Tables() {
				if err := db.Seed(ctx, table, mockdata.Records(table)); err != nil {
					_ = db.Close()
					return nil, nil, fmt.Errorf("seed %s: %w", table, err)
				}
			}
			logger.Info("sample data seeded", slog.String("path", cfg.Store.SQLitePath))
		}
		logger.Info("using sqlite record store", slog.String("path", cfg.Store.SQLitePath))
		return db, func() { _ = db.Close() }, nil
	default:
		client := airtable.New(airtable.Config{
			APIKey:     cfg.Airtable.APIKey,
			BaseID:     cfg.Airtable.BaseID,
			APIURL:     cfg.Airtable.APIURL,
			ContentURL: cfg.Airtable.ContentURL,
			Timeout:    cfg.Airtable.Timeout(),
		}, airtable.WithLogger(logger), airtable.WithObserver(recorder))
		logger.Info("using airtable record store", slog.Bool("configured", client.Configured()))
		return client, func() {}, nil
	}
}

func buildCacheStore(logger *slog.Logger, cfg config.CacheConfig) cache.Store {
	ttl := cfg.TTL()
	switch cfg.Backend {
	case config.CacheBackendRedis:
		store, err := cache.NewRedisStore(cache.RedisConfig{
			Address:   cfg.Redis.Address,
			Username:  cfg.Redis.Username,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
			TLS: cache.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		}, ttl)
		if err != nil {
			logger.Error("redis cache initialization failed", slog.Any("error", err))
			logger.Info("falling back to memory cache")
			return cache.NewMemoryStore(ttl)
		}
		logger.Info("using redis request cache", slog.String("address", cfg.Redis.Address))
		return store
	default:
		logger.Info("using memory request cache", slog.Duration("ttl", ttl))
		return cache.NewMemoryStore(ttl)
	}
}
