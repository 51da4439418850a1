// Package audit keeps an append-only trail of matching runs: who was scored,
// which providers went to the oracle, and whether the fallback scorer answered.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wolfman30/therapymatch/internal/matching"
)

// RunRecord is one row of match_audit_events.
type RunRecord struct {
	ID                   int64     `json:"id"`
	RequesterID          string    `json:"requesterId"`
	Candidates           int       `json:"candidates"`
	SubmittedProviderIDs []string  `json:"submittedProviderIds"`
	RankedProviderIDs    []string  `json:"rankedProviderIds"`
	Fallback             bool      `json:"fallback"`
	FallbackReason       string    `json:"fallbackReason,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Store writes and reads audit rows through database/sql.
type Store struct {
	db *sql.DB
}

// NewStore creates a new audit store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordRun implements matching.AuditRecorder.
func (s *Store) RecordRun(ctx context.Context, run matching.Run) error {
	ranked := make([]string, 0, len(run.Ranked))
	for _, r := range run.Ranked {
		ranked = append(ranked, r.ProviderID)
	}
	submitted := run.Submitted
	if submitted == nil {
		submitted = []string{}
	}
	createdAt := run.CompletedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO match_audit_events (
			requester_id, candidates, submitted_provider_ids, ranked_provider_ids,
			fallback, fallback_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.RequesterID,
		run.Candidates,
		pq.Array(submitted),
		pq.Array(ranked),
		run.Fallback,
		run.FallbackReason,
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record match run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs for a requester, newest first.
func (s *Store) ListRuns(ctx context.Context, requesterID string, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `
		SELECT id, requester_id, candidates, submitted_provider_ids, ranked_provider_ids,
			fallback, fallback_reason, created_at
		FROM match_audit_events
		WHERE requester_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, requesterID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query match runs: %w", err)
	}
	defer rows.Close()

	records := []RunRecord{}
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RequesterID,
			&rec.Candidates,
			pq.Array(&rec.SubmittedProviderIDs),
			pq.Array(&rec.RankedProviderIDs),
			&rec.Fallback,
			&rec.FallbackReason,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: failed to scan match run: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to read match runs: %w", err)
	}
	return records, nil
}
