package matching

import (
	"context"
	"sort"

	"github.com/wolfman30/therapymatch/internal/observability/metrics"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

// MatchWriter upserts match records keyed by (requester, provider).
type MatchWriter interface {
	CreateMatch(ctx context.Context, match Match) (Match, error)
}

// Ranker orders scored results and persists them as pending matches.
type Ranker struct {
	store   MatchWriter
	metrics *metrics.EngineMetrics
	logger  *logging.Logger
}

func NewRanker(store MatchWriter, m *metrics.EngineMetrics, logger *logging.Logger) *Ranker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ranker{store: store, metrics: m, logger: logger}
}

// Rank sorts results by overall score, highest first. Ties keep input order.
// The input slice is not modified.
func Rank(results []MatchResult) []MatchResult {
	ranked := make([]MatchResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Scores.Overall > ranked[j].Scores.Overall
	})
	return ranked
}

// RankAndPersist ranks results and upserts one pending match per provider.
// Persistence failures are logged and counted; the ranked list is returned
// regardless.
func (r *Ranker) RankAndPersist(ctx context.Context, requesterID string, results []MatchResult) []MatchResult {
	ranked := Rank(results)
	if r.store == nil {
		return ranked
	}
	for _, result := range ranked {
		if result.RequesterID == "" {
			result.RequesterID = requesterID
		}
		_, err := r.store.CreateMatch(ctx, Match{MatchResult: result, Status: StatusPending})
		if err != nil {
			r.logger.Error("failed to persist match",
				"requester_id", requesterID,
				"provider_id", result.ProviderID,
				"error", err,
			)
			r.metrics.ObservePersistFailure("create_match")
		}
	}
	return ranked
}
