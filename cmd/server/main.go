package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmt-nextgen-partners/tmt-agency/internal/api"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/config"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/db"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/gateway"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/leads"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/metrics"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/processor"
	"github.com/tmt-nextgen-partners/tmt-agency/internal/scheduler"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsURL); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	// ------------------------------------------------
	// Delivery Gateway
	// ------------------------------------------------
	gw, err := buildGateway(cfg)
	if err != nil {
		logger.Fatal("gateway configuration invalid", zap.Error(err))
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Queue Processor + Sequence Scheduler
	// ------------------------------------------------
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)

	proc := processor.New(store, gw, cfg.FromAddress, logger,
		processor.WithBatchLimit(cfg.BatchLimit),
		processor.WithStaleAfter(cfg.StaleAfter),
		processor.WithRateLimiter(limiter),
	)

	dir := leads.NewDirectory(store.Pool)
	sched := scheduler.New(store, dir, logger, cfg.EnrollmentWindow)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Store:     store,
		Gateway:   gw,
		Processor: proc,
		Scheduler: sched,
		From:      cfg.FromAddress,
		Log:       logger,
	}

	apiMux := http.NewServeMux()
	apiHandler.Register(apiMux)

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiMux,
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}

func buildGateway(cfg *config.Config) (gateway.Gateway, error) {
	switch cfg.Provider {
	case "resend":
		return gateway.NewResend(cfg.ResendAPIKey, cfg.ResendBaseURL)
	case "smtp":
		return gateway.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
