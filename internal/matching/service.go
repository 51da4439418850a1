package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/therapymatch/pkg/logging"
)

var matchingTracer = otel.Tracer("therapymatch.internal.matching")

// Store is the persistence the matching pipeline needs. Unknown requesters
// must yield an error matching ErrNotFound via errors.Is.
type Store interface {
	MatchWriter
	GetRequesterByID(ctx context.Context, requesterID string) (*Requester, error)
	ListEligibleProviders(ctx context.Context) ([]Provider, error)
	GetExistingMatches(ctx context.Context, requesterID string) ([]Match, error)
}

// Run summarizes one completed FindMatches call for audit and events.
type Run struct {
	RequesterID    string
	Candidates     int
	Submitted      []string
	Ranked         []MatchResult
	Fallback       bool
	FallbackReason string
	CompletedAt    time.Time
}

// AuditRecorder keeps a durable trail of scoring runs.
type AuditRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// RunPublisher announces ranked matches to downstream consumers.
type RunPublisher interface {
	PublishRun(ctx context.Context, run Run) error
}

// Service runs the filter, score, rank pipeline for a requester.
type Service struct {
	store     Store
	scorer    *Scorer
	ranker    *Ranker
	audit     AuditRecorder
	publisher RunPublisher
	logger    *logging.Logger
	now       func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

func WithAuditRecorder(a AuditRecorder) ServiceOption {
	return func(s *Service) { s.audit = a }
}

func WithRunPublisher(p RunPublisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the pipeline. The scorer and ranker are required.
func NewService(store Store, scorer *Scorer, ranker *Ranker, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("matching: store required")
	}
	if scorer == nil || ranker == nil {
		panic("matching: scorer and ranker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:  store,
		scorer: scorer,
		ranker: ranker,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindMatches returns ranked matches for the requester, persisting each as a
// pending match. Oracle and persistence failures never surface here.
func (s *Service) FindMatches(ctx context.Context, requesterID string) ([]MatchResult, error) {
	ctx, span := matchingTracer.Start(ctx, "matching.find_matches",
		trace.WithAttributes(attribute.String("therapymatch.requester_id", requesterID)),
	)
	defer span.End()

	requester, err := s.store.GetRequesterByID(ctx, requesterID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("matching: load requester %s: %w", requesterID, err)
	}
	if requester == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requesterID)
	}

	providers, err := s.store.ListEligibleProviders(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("matching: list providers: %w", err)
	}

	candidates := Filter(*requester, providers)
	span.SetAttributes(
		attribute.Int("therapymatch.providers", len(providers)),
		attribute.Int("therapymatch.candidates", len(candidates)),
	)
	if len(candidates) == 0 {
		s.logger.Info("no eligible providers after filtering", "requester_id", requesterID, "providers", len(providers))
		return []MatchResult{}, nil
	}

	scored := s.scorer.ScoreRun(ctx, *requester, candidates)
	span.SetAttributes(attribute.Bool("therapymatch.fallback", scored.Fallback))

	ranked := s.ranker.RankAndPersist(ctx, requester.ID, scored.Results)

	run := Run{
		RequesterID:    requester.ID,
		Candidates:     len(candidates),
		Submitted:      scored.Submitted,
		Ranked:         ranked,
		Fallback:       scored.Fallback,
		FallbackReason: scored.FallbackReason,
		CompletedAt:    s.now().UTC(),
	}
	s.afterRun(ctx, run)

	s.logger.Info("matches ranked",
		"requester_id", requester.ID,
		"candidates", len(candidates),
		"results", len(ranked),
		"fallback", scored.Fallback,
	)
	return ranked, nil
}

// ExistingMatches returns persisted matches for the requester, best first.
func (s *Service) ExistingMatches(ctx context.Context, requesterID string) ([]Match, error) {
	requester, err := s.store.GetRequesterByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requesterID)
	}
	matches, err := s.store.GetExistingMatches(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("matching: existing matches: %w", err)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Scores.Overall > matches[j].Scores.Overall
	})
	return matches, nil
}

func (s *Service) afterRun(ctx context.Context, run Run) {
	if s.audit != nil {
		if err := s.audit.RecordRun(ctx, run); err != nil {
			s.logger.Error("failed to record scoring audit", "requester_id", run.RequesterID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRun(ctx, run); err != nil {
			s.logger.Error("failed to publish ranked matches", "requester_id", run.RequesterID, "error", err)
		}
	}
}
