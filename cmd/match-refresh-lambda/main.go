package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/therapymatch/cmd/mainconfig"
	"github.com/wolfman30/therapymatch/internal/app/bootstrap"
	appconfig "github.com/wolfman30/therapymatch/internal/config"
	"github.com/wolfman30/therapymatch/internal/refresh"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

type refreshRunner interface {
	RunOnce(ctx context.Context) (refresh.Result, error)
}

// response is what the scheduled invocation returns to EventBridge.
type response struct {
	Considered int `json:"considered"`
	Refreshed  int `json:"refreshed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	engine, err := bootstrap.BuildEngine(context.Background(), cfg, logger, mainconfig.EngineOptions(cfg, prometheus.NewRegistry()))
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	runner := refresh.New(engine.Store, engine.Matching, refresh.Config{
		StaleAfter: cfg.MatchRefreshStaleAfter,
		Batch:      cfg.MatchRefreshBatch,
	}, logger)

	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) (response, error) {
		return handle(ctx, runner, logger, evt)
	})
}

func handle(ctx context.Context, runner refreshRunner, logger *logging.Logger, evt events.CloudWatchEvent) (response, error) {
	logger.Info("match refresh invoked", "source", evt.Source, "detail_type", evt.DetailType, "event_id", evt.ID)

	res, err := runner.RunOnce(ctx)
	if err != nil {
		return response{}, fmt.Errorf("match refresh: %w", err)
	}
	return response{
		Considered: res.Considered,
		Refreshed:  res.Refreshed,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
	}, nil
}
