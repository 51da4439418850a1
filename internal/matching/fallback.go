package matching

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// FallbackRationale is attached to every fallback-scored result.
	FallbackRationale = "Automated compatibility estimate (scoring service unavailable)"
	// FallbackConsideration discloses that scores were not produced by the oracle.
	FallbackConsideration = "Fallback scoring used: scores are placeholders, not a clinical assessment"

	fallbackMin = 70
	fallbackMax = 99
)

// FallbackScorer fabricates placeholder scores when the oracle cannot be used.
// Every score is drawn independently and uniformly from [70,99].
type FallbackScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackScorer returns a scorer seeded from the clock.
func NewFallbackScorer() *FallbackScorer {
	seed := uint64(time.Now().UnixNano())
	return NewSeededFallbackScorer(seed, seed>>1)
}

// NewSeededFallbackScorer returns a scorer with a reproducible sequence.
func NewSeededFallbackScorer(seed1, seed2 uint64) *FallbackScorer {
	return &FallbackScorer{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Score returns one result per provider, in input order.
func (f *FallbackScorer) Score(requesterID string, providers []Provider) []MatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]MatchResult, 0, len(providers))
	for _, p := range providers {
		out = append(out, MatchResult{
			ProviderID:  p.ID,
			RequesterID: requesterID,
			Scores: Scores{
				Clinical: f.draw(),
				Personal: f.draw(),
				Cultural: f.draw(),
				Overall:  f.draw(),
			},
			Rationale:      FallbackRationale,
			Considerations: []string{FallbackConsideration},
			Fallback:       true,
		})
	}
	return out
}

func (f *FallbackScorer) draw() float64 {
	return float64(fallbackMin + f.rng.IntN(fallbackMax-fallbackMin+1))
}
