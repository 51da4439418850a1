package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch/internal/matching"
)

func TestStore_RecordRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		run       matching.Run
		submitted []string
		ranked    []string
	}{
		{
			name: "oracle run",
			run: matching.Run{
				RequesterID: "req-1",
				Candidates:  3,
				Submitted:   []string{"p1", "p2"},
				Ranked: []matching.MatchResult{
					{ProviderID: "p2"},
					{ProviderID: "p1"},
				},
				CompletedAt: completed,
			},
			submitted: []string{"p1", "p2"},
			ranked:    []string{"p2", "p1"},
		},
		{
			name: "fallback run with nothing submitted",
			run: matching.Run{
				RequesterID:    "req-2",
				Fallback:       true,
				FallbackReason: matching.ReasonNoOracle,
				CompletedAt:    completed,
			},
			submitted: []string{},
			ranked:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec("INSERT INTO match_audit_events").
				WithArgs(
					tt.run.RequesterID,
					tt.run.Candidates,
					pq.Array(tt.submitted),
					pq.Array(tt.ranked),
					tt.run.Fallback,
					tt.run.FallbackReason,
					completed,
				).
				WillReturnResult(sqlmock.NewResult(1, 1))

			assert.NoError(t, store.RecordRun(context.Background(), tt.run))
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordRunError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO match_audit_events").
		WillReturnError(errors.New("relation does not exist"))

	err = NewStore(db).RecordRun(context.Background(), matching.Run{RequesterID: "req-1"})
	assert.ErrorContains(t, err, "audit: failed to record match run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "requester_id", "candidates", "submitted_provider_ids", "ranked_provider_ids",
		"fallback", "fallback_reason", "created_at",
	}).
		AddRow(int64(2), "req-1", 2, []byte(`{p1,p2}`), []byte(`{p2,p1}`), true, "timeout", now).
		AddRow(int64(1), "req-1", 0, []byte(`{}`), []byte(`{}`), false, "", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM match_audit_events").
		WithArgs("req-1", 20).
		WillReturnRows(rows)

	records, err := NewStore(db).ListRuns(context.Background(), "req-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"p1", "p2"}, records[0].SubmittedProviderIDs)
	assert.Equal(t, []string{"p2", "p1"}, records[0].RankedProviderIDs)
	assert.True(t, records[0].Fallback)
	assert.Equal(t, "timeout", records[0].FallbackReason)
	assert.Empty(t, records[1].SubmittedProviderIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListRunsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM match_audit_events").
		WithArgs("req-1", 5).
		WillReturnError(errors.New("connection reset"))

	_, err = NewStore(db).ListRuns(context.Background(), "req-1", 5)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
