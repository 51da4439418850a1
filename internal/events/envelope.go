// Package events publishes domain events about ranked matches.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/therapymatch/internal/matching"
)

// EventTypeMatchesRanked is emitted after a requester's matches were ranked and persisted.
const EventTypeMatchesRanked = "matches.ranked"

// CanonicalEvent represents a versioned domain event.
type CanonicalEvent interface {
	EventType() string
}

// Envelope captures transport metadata for canonical events.
type Envelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventType       string          `json:"event_type"`
	Aggregate       string          `json:"aggregate"`
	TimestampMicros int64           `json:"timestamp"`
	Payload         json.RawMessage `json:"payload"`
}

// MatchesRankedV1 carries the outcome of one matching run. Scores and
// rationales stay in the store; consumers fetch them by requester id.
type MatchesRankedV1 struct {
	RequesterID    string    `json:"requester_id"`
	ProviderIDs    []string  `json:"provider_ids"`
	Fallback       bool      `json:"fallback"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	RankedAt       time.Time `json:"ranked_at"`
}

func (MatchesRankedV1) EventType() string { return EventTypeMatchesRanked }

// MatchesRankedFromRun projects a matching run onto its event payload.
func MatchesRankedFromRun(run matching.Run) MatchesRankedV1 {
	ids := make([]string, 0, len(run.Ranked))
	for _, r := range run.Ranked {
		ids = append(ids, r.ProviderID)
	}
	return MatchesRankedV1{
		RequesterID:    run.RequesterID,
		ProviderIDs:    ids,
		Fallback:       run.Fallback,
		FallbackReason: run.FallbackReason,
		RankedAt:       run.CompletedAt.UTC(),
	}
}

var (
	errMissingAggregate = errors.New("events: aggregate is required")
	errNilEvent         = errors.New("events: canonical event required")
	nowFunc             = time.Now
)

func newEnvelope(aggregate string, evt CanonicalEvent) (Envelope, error) {
	if strings.TrimSpace(aggregate) == "" {
		return Envelope{}, errMissingAggregate
	}
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	return Envelope{
		EventID:         uuid.New(),
		EventType:       evt.EventType(),
		Aggregate:       strings.TrimSpace(aggregate),
		TimestampMicros: nowFunc().UTC().UnixMicro(),
		Payload:         payload,
	}, nil
}

func requesterAggregate(requesterID string) string {
	if strings.TrimSpace(requesterID) == "" {
		return ""
	}
	return "requester:" + requesterID
}
