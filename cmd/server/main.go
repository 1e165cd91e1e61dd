package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinical-ddx-server/internal/api"
	"github.com/clinical-ddx-server/internal/audit"
	"github.com/clinical-ddx-server/internal/config"
	"github.com/clinical-ddx-server/internal/database"
	"github.com/clinical-ddx-server/internal/domain"
	"github.com/clinical-ddx-server/internal/knowledge"
	"github.com/clinical-ddx-server/internal/service"
	"github.com/clinical-ddx-server/pkg/retrieval"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := setupLogger(cfg.Logging)

	// The knowledge base is configuration: a server that cannot load it
	// refuses to serve rather than degrade silently.
	kb, err := knowledge.Load(cfg.Knowledge.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load knowledge base")
	}

	retriever, err := buildRetriever(cfg.Retrieval, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build evidence retriever")
	}

	pipeline := service.NewPipeline(kb, cfg.Scoring, retriever, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditStore, auditCleanup, err := buildAuditStore(ctx, cfg.Audit, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open audit store")
	}
	defer auditCleanup()

	server := api.NewServer(configManager, pipeline, auditStore, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting clinical differential diagnosis server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// setupLogger configures logrus from the logging configuration
func setupLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}

// buildRetriever assembles the cached evidence search client
func buildRetriever(cfg domain.RetrievalConfig, logger *logrus.Logger) (domain.EvidenceRetriever, error) {
	httpClient := retrieval.NewHTTPClient(retrieval.HTTPConfig{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		redisClient = redis.NewClient(opts)
	}

	return retrieval.NewCachedClient(retrieval.CachedClientConfig{
		MemoryCacheTTL: cfg.MemoryCacheTTL,
		RedisCacheTTL:  cfg.RedisCacheTTL,
		MaxMemorySize:  cfg.MaxMemorySize,
		BreakerMaxFail: cfg.BreakerMaxFail,
		BreakerTimeout: cfg.BreakerTimeout,
	}, httpClient, redisClient, logger)
}

// buildAuditStore opens the audit store named by the configured driver.
// The returned cleanup closes the store and, for postgres, the shared
// connection pool behind it.
func buildAuditStore(ctx context.Context, cfg domain.AuditConfig, logger *logrus.Logger) (audit.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		runner, err := database.NewMigrationRunner(database.URL(cfg.Postgres), logger)
		if err != nil {
			return nil, nil, err
		}
		defer runner.Close()
		if err := runner.Up(ctx); err != nil {
			return nil, nil, err
		}

		db, err := database.NewConnection(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := audit.NewPostgresStore(stdlib.OpenDBFromPool(db.Pool))
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() {
			store.Close()
			db.Close()
		}, nil
	default:
		store, err := audit.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}
