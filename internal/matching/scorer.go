package matching

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/therapymatch/internal/observability/metrics"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

// DefaultOracleTimeout bounds a single oracle call.
const DefaultOracleTimeout = 20 * time.Second

// Fallback reasons reported on ScoreRun and in metrics.
const (
	ReasonNoOracle    = "no_oracle"
	ReasonTimeout     = "timeout"
	ReasonUnavailable = "unavailable"
	ReasonMalformed   = "malformed"
)

// Oracle is a remote compatibility scorer. It returns the raw reply body;
// validation happens in ParseOracleResponse.
type Oracle interface {
	Score(ctx context.Context, req OracleRequest) ([]byte, error)
}

// ScoreRun describes one scoring pass.
type ScoreRun struct {
	Results        []MatchResult
	Submitted      []string
	Fallback       bool
	FallbackReason string
	Dropped        []string
}

// Scorer scores filtered providers through the oracle. An oracle failure of
// any kind switches the whole batch to the fallback scorer; there are no
// retries.
type Scorer struct {
	oracle   Oracle
	fallback *FallbackScorer
	timeout  time.Duration
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger
}

// ScorerOption customizes a Scorer.
type ScorerOption func(*Scorer)

// WithOracleTimeout overrides DefaultOracleTimeout.
func WithOracleTimeout(d time.Duration) ScorerOption {
	return func(s *Scorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithFallbackScorer injects the fallback strategy, mostly for seeded tests.
func WithFallbackScorer(f *FallbackScorer) ScorerOption {
	return func(s *Scorer) {
		if f != nil {
			s.fallback = f
		}
	}
}

// WithScorerMetrics attaches engine metrics.
func WithScorerMetrics(m *metrics.EngineMetrics) ScorerOption {
	return func(s *Scorer) { s.metrics = m }
}

// NewScorer builds a scorer. A nil oracle always uses the fallback.
func NewScorer(oracle Oracle, logger *logging.Logger, opts ...ScorerOption) *Scorer {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scorer{
		oracle:   oracle,
		fallback: NewFallbackScorer(),
		timeout:  DefaultOracleTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns unordered results for at most MaxOracleProviders providers.
func (s *Scorer) Score(ctx context.Context, requester Requester, providers []Provider) []MatchResult {
	return s.ScoreRun(ctx, requester, providers).Results
}

// ScoreRun scores providers and reports how the results were produced.
func (s *Scorer) ScoreRun(ctx context.Context, requester Requester, providers []Provider) ScoreRun {
	if len(providers) > MaxOracleProviders {
		providers = providers[:MaxOracleProviders]
	}
	if len(providers) == 0 {
		return ScoreRun{Results: []MatchResult{}, Submitted: []string{}}
	}

	req := BuildOracleRequest(requester, providers)
	run := ScoreRun{Submitted: req.ProviderIDs()}

	if s.oracle == nil {
		return s.useFallback(run, requester.ID, providers, ReasonNoOracle, nil, 0)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	started := time.Now()
	raw, err := s.oracle.Score(callCtx, req)
	elapsed := time.Since(started)
	cancel()
	if err != nil {
		reason := ReasonUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return s.useFallback(run, requester.ID, providers, reason, err, elapsed)
	}

	parsed, err := ParseOracleResponse(raw, run.Submitted)
	if err != nil {
		return s.useFallback(run, requester.ID, providers, ReasonMalformed, err, elapsed)
	}
	for _, anomaly := range parsed.Anomalies {
		s.logger.Warn("oracle response entry discarded", "requester_id", requester.ID, "anomaly", anomaly)
	}

	scored := make(map[string]bool, len(parsed.Matches))
	run.Results = make([]MatchResult, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		scored[m.ProviderID] = true
		run.Results = append(run.Results, MatchResult{
			ProviderID:     m.ProviderID,
			RequesterID:    requester.ID,
			Scores:         m.Scores,
			Rationale:      m.Rationale,
			Considerations: m.Considerations,
		})
	}
	for _, id := range run.Submitted {
		if !scored[id] {
			run.Dropped = append(run.Dropped, id)
		}
	}
	if len(run.Dropped) > 0 {
		s.logger.Warn("oracle omitted submitted providers; dropping them",
			"requester_id", requester.ID,
			"dropped_provider_ids", run.Dropped,
		)
	}
	s.metrics.ObserveOracle(false, "", elapsed.Seconds())
	return run
}

func (s *Scorer) useFallback(run ScoreRun, requesterID string, providers []Provider, reason string, cause error, elapsed time.Duration) ScoreRun {
	s.logger.Warn("scoring oracle unusable; using fallback scores",
		"requester_id", requesterID,
		"reason", reason,
		"providers", len(providers),
		"error", cause,
	)
	s.metrics.ObserveOracle(true, reason, elapsed.Seconds())
	run.Results = s.fallback.Score(requesterID, providers)
	run.Fallback = true
	run.FallbackReason = reason
	return run
}
