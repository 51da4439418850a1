package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/therapymatch/internal/availability"
	"github.com/wolfman30/therapymatch/internal/matching"
)

type matchKey struct {
	requesterID string
	providerID  string
}

// MemoryStore is an in-memory store for local development and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	providers  map[string]matching.Provider
	requesters map[string]matching.Requester
	matches    map[matchKey]matching.Match
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers:  make(map[string]matching.Provider),
		requesters: make(map[string]matching.Requester),
		matches:    make(map[matchKey]matching.Match),
		now:        time.Now,
	}
}

// SeedProvider adds or replaces a provider.
func (s *MemoryStore) SeedProvider(p matching.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
}

// SeedRequester adds or replaces a requester.
func (s *MemoryStore) SeedRequester(r matching.Requester) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requesters[r.ID] = r
}

func (s *MemoryStore) GetProviderByID(_ context.Context, providerID string) (*matching.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[providerID]
	if !ok {
		return nil, providerNotFound(providerID)
	}
	return &p, nil
}

func (s *MemoryStore) GetProviderSchedule(ctx context.Context, providerID string) (availability.ProviderSchedule, error) {
	p, err := s.GetProviderByID(ctx, providerID)
	if err != nil {
		return availability.ProviderSchedule{}, err
	}
	return scheduleOf(*p), nil
}

func (s *MemoryStore) GetRequesterByID(_ context.Context, requesterID string) (*matching.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requesters[requesterID]
	if !ok {
		return nil, requesterNotFound(requesterID)
	}
	return &r, nil
}

// ListEligibleProviders returns providers accepting patients, ordered by id.
func (s *MemoryStore) ListEligibleProviders(context.Context) ([]matching.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]matching.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.AcceptingPatients {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateMatch upserts the match for (requester, provider), keeping the
// original id and creation time.
func (s *MemoryStore) CreateMatch(_ context.Context, m matching.Match) (matching.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	key := matchKey{requesterID: m.RequesterID, providerID: m.ProviderID}
	if existing, ok := s.matches[key]; ok {
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
	} else {
		m.ID = uuid.NewString()
		m.CreatedAt = now
	}
	if m.Status == "" {
		m.Status = matching.StatusPending
	}
	m.UpdatedAt = now
	s.matches[key] = m
	return m, nil
}

func (s *MemoryStore) GetExistingMatches(_ context.Context, requesterID string) ([]matching.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []matching.Match{}
	for key, m := range s.matches {
		if key.requesterID == requesterID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scores.Overall != out[j].Scores.Overall {
			return out[i].Scores.Overall > out[j].Scores.Overall
		}
		return out[i].ProviderID < out[j].ProviderID
	})
	return out, nil
}

// ListRequestersWithStaleMatches returns requesters that have no matches or
// whose newest match was updated before olderThan, ordered by id. Requesters
// holding any match past pending are left alone.
func (s *MemoryStore) ListRequestersWithStaleMatches(_ context.Context, olderThan time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]time.Time)
	settled := make(map[string]bool)
	for key, m := range s.matches {
		if m.UpdatedAt.After(latest[key.requesterID]) {
			latest[key.requesterID] = m.UpdatedAt
		}
		if m.Status != matching.StatusPending {
			settled[key.requesterID] = true
		}
	}
	var ids []string
	for id := range s.requesters {
		if settled[id] {
			continue
		}
		last, ok := latest[id]
		if !ok || last.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func scheduleOf(p matching.Provider) availability.ProviderSchedule {
	return availability.ProviderSchedule{
		ProviderID: p.ID,
		Template:   p.Availability,
		Calendar:   p.Calendar,
		Timezone:   p.Timezone,
	}
}

func (s *MemoryStore) SaveProvider(_ context.Context, p matching.Provider) error {
	s.SeedProvider(p)
	return nil
}

func (s *MemoryStore) SaveRequester(_ context.Context, r matching.Requester) error {
	s.SeedRequester(r)
	return nil
}
