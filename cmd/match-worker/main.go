package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/therapymatch/cmd/mainconfig"
	"github.com/wolfman30/therapymatch/internal/app/bootstrap"
	appconfig "github.com/wolfman30/therapymatch/internal/config"
	"github.com/wolfman30/therapymatch/internal/refresh"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single refresh cycle and exit")
	flag.Parse()

	mainconfig.LoadEnv()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.BuildEngine(ctx, cfg, logger, mainconfig.EngineOptions(cfg, prometheus.DefaultRegisterer))
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	scheduler := refresh.New(engine.Store, engine.Matching, refresh.Config{
		Spec:       cfg.MatchRefreshSchedule,
		StaleAfter: cfg.MatchRefreshStaleAfter,
		Batch:      cfg.MatchRefreshBatch,
		RunOnStart: true,
	}, logger)

	if *once {
		res, err := scheduler.RunOnce(ctx)
		if err != nil {
			logger.Error("match refresh failed", "error", err)
			os.Exit(1)
		}
		logger.Info("match refresh finished", "refreshed", res.Refreshed, "failed", res.Failed, "skipped", res.Skipped)
		return
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start match refresh", "error", err)
		os.Exit(1)
	}
	logger.Info("match worker running", "schedule", cfg.MatchRefreshSchedule)

	<-ctx.Done()
	logger.Info("shutting down match worker...")

	select {
	case <-scheduler.Stop().Done():
	case <-time.After(30 * time.Second):
		logger.Warn("refresh cycle still running at shutdown")
	}
	logger.Info("match worker stopped")
}
