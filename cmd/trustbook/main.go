package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xiaot623/trustbook/internal/config"
	"github.com/xiaot623/trustbook/internal/feed"
	"github.com/xiaot623/trustbook/internal/logging"
	"github.com/xiaot623/trustbook/internal/metrics"
	"github.com/xiaot623/trustbook/internal/nonce"
	"github.com/xiaot623/trustbook/internal/policy"
	"github.com/xiaot623/trustbook/internal/presentation"
	"github.com/xiaot623/trustbook/internal/registry"
	"github.com/xiaot623/trustbook/internal/repository"
	"github.com/xiaot623/trustbook/internal/service"
	handler "github.com/xiaot623/trustbook/internal/transport/http"
	"github.com/xiaot623/trustbook/internal/verify"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting trustbook...",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.DSN),
		zap.String("nonce_backend", cfg.Nonce.Backend),
		zap.Duration("freshness_window", cfg.Signature.FreshnessWindow))

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize nonce store
	nonces, err := nonce.New(ctx, nonce.Config{
		Backend:         cfg.Nonce.Backend,
		CleanupInterval: cfg.Nonce.CleanupInterval,
		Redis: nonce.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			KeyPrefix:    cfg.Redis.KeyPrefix,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		},
	})
	if err != nil {
		logger.Fatal("Failed to initialize nonce store", zap.Error(err))
	}
	defer nonces.Close()

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		logger.Fatal("Failed to initialize policy engine", zap.Error(err))
	}

	audit := zap.NewNop()
	if cfg.AuditLog.Enabled {
		var closeAudit func() error
		audit, closeAudit = logging.NewAudit(logging.AuditConfig{
			Path:       cfg.AuditLog.Path,
			MaxSizeMB:  cfg.AuditLog.MaxSizeMB,
			MaxBackups: cfg.AuditLog.MaxBackups,
		})
		defer closeAudit()
	}

	var (
		m              *metrics.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	var (
		hub        *feed.Hub
		feedServer *feed.Server
		publisher  service.Publisher
	)
	if cfg.Feed.Enabled {
		hub = feed.NewHub(logger.Named("feed"))
		go hub.Run(ctx)
		feedServer = feed.NewServer(feed.ServerConfig{
			PingInterval: cfg.Feed.PingInterval,
			PongWait:     cfg.Feed.PongWait,
			WriteWait:    cfg.Feed.WriteWait,
		}, hub, logger.Named("feed"))
		publisher = hub
	}

	// Initialize service
	svc := service.New(service.Dependencies{
		Store:     db,
		Registry:  registry.New(db),
		Verifier:  verify.New(verify.Config{FreshnessWindow: cfg.Signature.FreshnessWindow}),
		Renderer:  presentation.NewRenderer(cfg.Signature.Language, policyEngine),
		Nonces:    nonces,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
		Audit:     audit,
	})

	server := handler.NewServer(svc, handler.Options{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Feed:         feedServer,
		Metrics:      metricsHandler,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API started", zap.Int("port", cfg.Server.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down trustbook...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server gracefully", zap.Error(err))
	}
	cancel()

	logger.Info("Trustbook stopped")
}
