package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/therapymatch/internal/audit"
	"github.com/wolfman30/therapymatch/internal/availability"
	"github.com/wolfman30/therapymatch/internal/calendar"
	appconfig "github.com/wolfman30/therapymatch/internal/config"
	"github.com/wolfman30/therapymatch/internal/events"
	"github.com/wolfman30/therapymatch/internal/matching"
	"github.com/wolfman30/therapymatch/internal/observability/metrics"
	"github.com/wolfman30/therapymatch/internal/oracle"
	"github.com/wolfman30/therapymatch/internal/refresh"
	"github.com/wolfman30/therapymatch/internal/store"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

// Store is everything the engine needs from persistence. Both the memory and
// Postgres stores satisfy it.
type Store interface {
	availability.ProviderLookup
	matching.Store
	refresh.StaleLister
	store.ProfileSaver
}

// AWSConfigLoader is called only when a component needs AWS.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// Options carries process-level dependencies into BuildEngine.
type Options struct {
	// Registerer receives the engine metrics; nil uses the default registry.
	Registerer prometheus.Registerer
	LoadAWS    AWSConfigLoader
}

// Engine is the wired availability and matching core.
type Engine struct {
	Store        Store
	Availability *availability.Service
	Matching     *matching.Service
	Metrics      *metrics.EngineMetrics
	// Audit is nil when no SQL database is configured.
	Audit        *audit.Store
	Readiness    map[string]func(ctx context.Context) error

	closers []func() error
}

// Close releases every connection the engine opened, in reverse order.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func (e *Engine) onClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// BuildEngine wires storage, calendars, oracle, audit, and events from cfg.
func BuildEngine(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	eng := &Engine{
		Metrics:   metrics.NewEngineMetrics(opts.Registerer),
		Readiness: map[string]func(ctx context.Context) error{},
	}
	awsCfg := lazyAWS(opts.LoadAWS)

	if err := eng.buildStore(ctx, cfg, logger); err != nil {
		_ = eng.Close()
		return nil, err
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		eng.onClose(redisClient.Close)
		eng.Readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	calendars, err := BuildCalendarReader(ctx, cfg, redisClient, logger)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	eng.Availability = availability.NewService(eng.Store, calendars, logger.Component("availability"),
		availability.WithMetrics(eng.Metrics),
	)

	scoringOracle := eng.buildOracle(ctx, cfg, awsCfg, logger)
	scorer := matching.NewScorer(scoringOracle, logger.Component("scorer"),
		matching.WithOracleTimeout(cfg.OracleTimeout),
		matching.WithScorerMetrics(eng.Metrics),
	)
	ranker := matching.NewRanker(eng.Store, eng.Metrics, logger.Component("ranker"))

	serviceOpts := []matching.ServiceOption{}
	if eng.Audit != nil {
		serviceOpts = append(serviceOpts, matching.WithAuditRecorder(eng.Audit))
	}
	publisher, err := BuildRunPublisher(ctx, cfg, awsCfg, logger)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	serviceOpts = append(serviceOpts, matching.WithRunPublisher(publisher))
	eng.Matching = matching.NewService(eng.Store, scorer, ranker, logger.Component("matching"), serviceOpts...)

	return eng, nil
}

func (e *Engine) buildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg.UseMemoryStore || strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Info("using in-memory store")
		e.Store = store.NewMemoryStore()
	} else {
		pool, err := ConnectPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		e.onClose(func() error { pool.Close(); return nil })
		e.Readiness["postgres"] = pool.Ping
		e.Store = store.NewPostgresStore(pool)

		db, err := OpenSQLDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		e.onClose(db.Close)
		e.Audit = audit.NewStore(db)
	}

	if path := strings.TrimSpace(cfg.SeedFile); path != "" {
		seed, err := store.LoadSeedFile(ctx, path, e.Store)
		if err != nil {
			return err
		}
		logger.Info("seed profiles loaded", "path", path, "providers", len(seed.Providers), "requesters", len(seed.Requesters))
	}
	return nil
}

// BuildCalendarReader routes calendar refs to the configured backends and
// fronts them with the Redis cache when available. It returns nil when no
// backend is configured, in which case every provider serves its static
// template.
func BuildCalendarReader(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (availability.CalendarReader, error) {
	readers := map[string]calendar.Reader{}

	if strings.TrimSpace(cfg.FHIRBaseURL) != "" {
		fhir, err := calendar.NewFHIRReader(calendar.FHIRConfig{
			BaseURL:      cfg.FHIRBaseURL,
			ClientID:     cfg.FHIRClientID,
			ClientSecret: cfg.FHIRClientSecret,
			Timeout:      cfg.CalendarTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: fhir calendar: %w", err)
		}
		readers[calendar.KindFHIR] = fhir
	}
	if strings.TrimSpace(cfg.GoogleCalendarCredentialsFile) != "" {
		google, err := calendar.NewGoogleReader(ctx, calendar.GoogleConfig{CredentialsFile: cfg.GoogleCalendarCredentialsFile})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: google calendar: %w", err)
		}
		readers[calendar.KindGoogle] = google
	}
	if len(readers) == 0 {
		logger.Info("no calendar backends configured; serving static schedules")
		return nil, nil
	}

	var reader calendar.Reader = calendar.NewRouter(readers)
	if redisClient != nil {
		reader = calendar.NewCachedReader(reader, redisClient, cfg.CalendarCacheTTL, logger.Component("calendar_cache"))
	}
	return reader, nil
}

// buildOracle never fails: a misconfigured oracle leaves the scorer on its
// fallback path.
func (e *Engine) buildOracle(ctx context.Context, cfg *appconfig.Config, awsCfg AWSConfigLoader, logger *logging.Logger) matching.Oracle {
	opts := oracle.Options{
		Provider:       cfg.OracleProvider,
		GeminiAPIKey:   cfg.GeminiAPIKey,
		GeminiModel:    cfg.GeminiModel,
		BedrockModelID: cfg.BedrockModelID,
	}
	if strings.EqualFold(strings.TrimSpace(cfg.OracleProvider), oracle.ProviderBedrock) {
		loaded, err := awsCfg(ctx)
		if err != nil {
			logger.Warn("aws config unavailable; scoring oracle disabled", "error", err)
			return nil
		}
		opts.AWSConfig = &loaded
	}

	o, closer, err := oracle.New(ctx, opts)
	if err != nil {
		logger.Warn("scoring oracle unavailable; fallback scores only", "provider", cfg.OracleProvider, "error", err)
		return nil
	}
	e.onClose(closer.Close)
	logger.Info("scoring oracle configured", "provider", cfg.OracleProvider)
	return o
}

// BuildRunPublisher sends match events to SQS when a queue is configured and
// to the log otherwise.
func BuildRunPublisher(ctx context.Context, cfg *appconfig.Config, awsCfg AWSConfigLoader, logger *logging.Logger) (matching.RunPublisher, error) {
	queueURL := strings.TrimSpace(cfg.MatchEventsQueueURL)
	if queueURL == "" {
		return events.NewLogPublisher(logger.Component("events")), nil
	}
	loaded, err := awsCfg(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: aws config for match events: %w", err)
	}
	return events.NewSQSPublisher(sqs.NewFromConfig(loaded), queueURL), nil
}

// lazyAWS memoizes the loader so AWS is initialized at most once.
func lazyAWS(load AWSConfigLoader) AWSConfigLoader {
	var (
		cached aws.Config
		err    error
		done   bool
	)
	return func(ctx context.Context) (aws.Config, error) {
		if load == nil {
			return aws.Config{}, errors.New("bootstrap: no aws config loader")
		}
		if !done {
			cached, err = load(ctx)
			done = true
		}
		return cached, err
	}
}
