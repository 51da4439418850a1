// Package refresh periodically re-runs matching for requesters whose stored
// matches have gone stale.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/therapymatch/internal/matching"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultSpec       = "@every 6h"
	DefaultStaleAfter = 24 * time.Hour
	DefaultBatch      = 100
)

// StaleLister finds requesters whose newest match is older than a cutoff,
// including requesters with no matches at all. Requesters holding a match
// past pending must not be returned: a re-run would reset it to pending.
type StaleLister interface {
	ListRequestersWithStaleMatches(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// Matcher runs the matching pipeline for one requester.
type Matcher interface {
	FindMatches(ctx context.Context, requesterID string) ([]matching.MatchResult, error)
}

type Config struct {
	Spec       string
	StaleAfter time.Duration
	Batch      int
	// RunOnStart triggers one cycle right after Start.
	RunOnStart bool
}

// Result summarizes one refresh cycle.
type Result struct {
	Considered int
	Refreshed  int
	Skipped    int
	Failed     int
}

// Scheduler wraps robfig/cron and manages the refresh loop.
type Scheduler struct {
	cron    *cron.Cron
	lister  StaleLister
	matcher Matcher
	cfg     Config
	logger  *logging.Logger
	now     func() time.Time
}

func New(lister StaleLister, matcher Matcher, cfg Config, logger *logging.Logger) *Scheduler {
	if lister == nil || matcher == nil {
		panic("refresh: lister and matcher are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Batch <= 0 {
		cfg.Batch = DefaultBatch
	}
	logger = logger.Component("match_refresh")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		lister:  lister,
		matcher: matcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.runLogged(ctx) }); err != nil {
		return fmt.Errorf("refresh: invalid schedule %q: %w", s.cfg.Spec, err)
	}
	s.cron.Start()
	s.logger.Info("match refresh scheduled", "spec", s.cfg.Spec, "stale_after", s.cfg.StaleAfter.String(), "batch", s.cfg.Batch)

	if s.cfg.RunOnStart {
		go s.runLogged(ctx)
	}
	return nil
}

// Stop halts the scheduler and returns a context that is done once any
// running cycle has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("match refresh stopping")
	return s.cron.Stop()
}

func (s *Scheduler) runLogged(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("match refresh cycle failed", "error", err)
		return
	}
	s.logger.Info("match refresh cycle complete",
		"considered", res.Considered,
		"refreshed", res.Refreshed,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
}

// RunOnce refreshes one batch of stale requesters. Per-requester failures are
// logged and counted; only a failed lookup of the batch itself is returned.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	ids, err := s.lister.ListRequestersWithStaleMatches(ctx, cutoff, s.cfg.Batch)
	if err != nil {
		return Result{}, fmt.Errorf("refresh: list stale requesters: %w", err)
	}

	res := Result{Considered: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.matcher.FindMatches(ctx, id); err != nil {
			if errors.Is(err, matching.ErrNotFound) {
				res.Skipped++
				continue
			}
			res.Failed++
			s.logger.Warn("match refresh failed", "requester_id", id, "error", err)
			continue
		}
		res.Refreshed++
	}
	return res, nil
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
