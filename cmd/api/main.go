package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/therapymatch/cmd/mainconfig"
	"github.com/wolfman30/therapymatch/internal/api/router"
	"github.com/wolfman30/therapymatch/internal/app/bootstrap"
	appconfig "github.com/wolfman30/therapymatch/internal/config"
	"github.com/wolfman30/therapymatch/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/therapymatch/internal/http/middleware"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting therapymatch API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	engine, err := bootstrap.BuildEngine(ctx, cfg, logger, mainconfig.EngineOptions(cfg, prometheus.DefaultRegisterer))
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("engine close failed", "error", err)
		}
	}()

	readiness := make(map[string]router.ReadinessCheck, len(engine.Readiness))
	for name, check := range engine.Readiness {
		readiness[name] = check
	}

	// A nil *audit.Store must not reach the handler as a non-nil interface.
	matchesHandler := handlers.NewMatchesHandler(engine.Matching, nil, logger)
	if engine.Audit != nil {
		matchesHandler = handlers.NewMatchesHandler(engine.Matching, engine.Audit, logger)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Availability:       handlers.NewAvailabilityHandler(engine.Availability, logger),
		Matches:            matchesHandler,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Readiness:          readiness,
		APIJWTSecret:       cfg.APIJWTSecret,
	})

	// Matching may wait on the oracle, so the write timeout leaves room for it.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.OracleTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
