package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/helixpay/payment-risk-backend/internal/infrastructure/cache"
	"github.com/helixpay/payment-risk-backend/internal/infrastructure/config"
	"github.com/helixpay/payment-risk-backend/internal/infrastructure/database"
	"github.com/helixpay/payment-risk-backend/internal/infrastructure/repository"
	"github.com/helixpay/payment-risk-backend/internal/infrastructure/telemetry"
	"github.com/helixpay/payment-risk-backend/internal/service/fraud"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		metricsAddr = flag.String("metrics-addr", ":9102", "Prometheus metrics listen address")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry, cfg.Version, cfg.Environment)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	db, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	store := cache.NewCachedStore(repository.NewPaymentStore(db), redisClient, logger)
	audit := repository.NewAuditRepository(db)

	assessor, err := fraud.NewService(store, audit, cfg.Risk, logger, metrics, nil)
	if err != nil {
		logger.Fatal("building risk service", zap.Error(err))
	}

	logger.Info("risk assessment engine ready",
		zap.String("environment", cfg.Environment),
		zap.Int("rules", len(assessor.RuleStatus())))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:        *metricsAddr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
