package matching

import (
	"context"
	"fmt"
	"sync"
)

// memStore is a minimal in-package Store used by matching tests.
type memStore struct {
	mu          sync.Mutex
	requesters  map[string]Requester
	providers   []Provider
	matches     map[[2]string]Match
	listErr     error
	createErr   error
	createCalls int
}

func newMemStore() *memStore {
	return &memStore{
		requesters: map[string]Requester{},
		matches:    map[[2]string]Match{},
	}
}

func (s *memStore) GetRequesterByID(_ context.Context, id string) (*Requester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requesters[id]
	if !ok {
		return nil, fmt.Errorf("requester %s: %w", id, ErrNotFound)
	}
	return &r, nil
}

func (s *memStore) ListEligibleProviders(context.Context) ([]Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]Provider(nil), s.providers...), nil
}

func (s *memStore) CreateMatch(_ context.Context, m Match) (Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return Match{}, s.createErr
	}
	key := [2]string{m.RequesterID, m.ProviderID}
	if existing, ok := s.matches[key]; ok {
		m.ID = existing.ID
	} else {
		m.ID = fmt.Sprintf("m%d", len(s.matches)+1)
	}
	s.matches[key] = m
	return m, nil
}

func (s *memStore) GetExistingMatches(_ context.Context, requesterID string) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Match
	for key, m := range s.matches {
		if key[0] == requesterID {
			out = append(out, m)
		}
	}
	return out, nil
}
