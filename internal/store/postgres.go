package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/therapymatch/internal/availability"
	"github.com/wolfman30/therapymatch/internal/calendar"
	"github.com/wolfman30/therapymatch/internal/matching"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists profiles and matches in Postgres.
type PostgresStore struct {
	db querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(db querier) *PostgresStore {
	if db == nil {
		panic("store: querier required")
	}
	return &PostgresStore{db: db}
}

const providerColumns = `
	id, name, specializations, approaches, languages, accepted_payments,
	biography, years_experience, demographics, availability,
	COALESCE(calendar_kind, ''), COALESCE(calendar_id, ''), timezone, accepting_patients`

func scanProvider(row pgx.Row) (matching.Provider, error) {
	var (
		p            matching.Provider
		demographics []byte
		template     []byte
		calKind      string
		calID        string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Specializations, &p.Approaches, &p.Languages, &p.AcceptedPayments,
		&p.Biography, &p.YearsExperience, &demographics, &template,
		&calKind, &calID, &p.Timezone, &p.AcceptingPatients,
	)
	if err != nil {
		return matching.Provider{}, err
	}
	if err := decodeJSON(demographics, &p.Demographics); err != nil {
		return matching.Provider{}, fmt.Errorf("store: decode provider %s demographics: %w", p.ID, err)
	}
	if err := decodeJSON(template, &p.Availability); err != nil {
		return matching.Provider{}, fmt.Errorf("store: decode provider %s availability: %w", p.ID, err)
	}
	if calKind != "" && calID != "" {
		p.Calendar = &calendar.Ref{Kind: calKind, ID: calID}
	}
	return p, nil
}

func (s *PostgresStore) GetProviderByID(ctx context.Context, providerID string) (*matching.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1`
	p, err := scanProvider(s.db.QueryRow(ctx, query, providerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, providerNotFound(providerID)
		}
		return nil, fmt.Errorf("store: get provider: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetProviderSchedule(ctx context.Context, providerID string) (availability.ProviderSchedule, error) {
	query := `
		SELECT id, availability, COALESCE(calendar_kind, ''), COALESCE(calendar_id, ''), timezone
		FROM providers
		WHERE id = $1
	`
	var (
		sched    availability.ProviderSchedule
		template []byte
		calKind  string
		calID    string
	)
	err := s.db.QueryRow(ctx, query, providerID).Scan(&sched.ProviderID, &template, &calKind, &calID, &sched.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return availability.ProviderSchedule{}, providerNotFound(providerID)
		}
		return availability.ProviderSchedule{}, fmt.Errorf("store: get provider schedule: %w", err)
	}
	if err := decodeJSON(template, &sched.Template); err != nil {
		return availability.ProviderSchedule{}, fmt.Errorf("store: decode provider %s availability: %w", providerID, err)
	}
	if calKind != "" && calID != "" {
		sched.Calendar = &calendar.Ref{Kind: calKind, ID: calID}
	}
	return sched, nil
}

func (s *PostgresStore) GetRequesterByID(ctx context.Context, requesterID string) (*matching.Requester, error) {
	query := `
		SELECT id, demographics, needs, languages, style_preferences, payment_method, availability
		FROM requesters
		WHERE id = $1
	`
	var (
		r            matching.Requester
		demographics []byte
		template     []byte
	)
	err := s.db.QueryRow(ctx, query, requesterID).Scan(
		&r.ID, &demographics, &r.Needs, &r.Languages, &r.StylePreferences, &r.PaymentMethod, &template,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, requesterNotFound(requesterID)
		}
		return nil, fmt.Errorf("store: get requester: %w", err)
	}
	if err := decodeJSON(demographics, &r.Demographics); err != nil {
		return nil, fmt.Errorf("store: decode requester %s demographics: %w", requesterID, err)
	}
	if err := decodeJSON(template, &r.Availability); err != nil {
		return nil, fmt.Errorf("store: decode requester %s availability: %w", requesterID, err)
	}
	return &r, nil
}

// ListEligibleProviders returns providers currently accepting patients.
func (s *PostgresStore) ListEligibleProviders(ctx context.Context) ([]matching.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE accepting_patients = true ORDER BY id`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list providers: %w", err)
	}
	defer rows.Close()

	var out []matching.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan provider: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list providers: %w", err)
	}
	return out, nil
}

// CreateMatch upserts on (requester_id, provider_id). A re-run refreshes the
// scores and resets the status to pending; the id and created_at survive.
func (s *PostgresStore) CreateMatch(ctx context.Context, m matching.Match) (matching.Match, error) {
	if m.Status == "" {
		m.Status = matching.StatusPending
	}
	if m.Considerations == nil {
		m.Considerations = []string{}
	}
	query := `
		INSERT INTO matches (
			id, requester_id, provider_id,
			clinical_score, personal_score, cultural_score, overall_score,
			rationale, considerations, fallback, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (requester_id, provider_id) DO UPDATE SET
			clinical_score = EXCLUDED.clinical_score,
			personal_score = EXCLUDED.personal_score,
			cultural_score = EXCLUDED.cultural_score,
			overall_score = EXCLUDED.overall_score,
			rationale = EXCLUDED.rationale,
			considerations = EXCLUDED.considerations,
			fallback = EXCLUDED.fallback,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query,
		uuid.NewString(), m.RequesterID, m.ProviderID,
		m.Scores.Clinical, m.Scores.Personal, m.Scores.Cultural, m.Scores.Overall,
		m.Rationale, m.Considerations, m.Fallback, string(m.Status),
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return matching.Match{}, fmt.Errorf("store: upsert match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetExistingMatches(ctx context.Context, requesterID string) ([]matching.Match, error) {
	query := `
		SELECT id, requester_id, provider_id,
			clinical_score, personal_score, cultural_score, overall_score,
			rationale, considerations, fallback, status, created_at, updated_at
		FROM matches
		WHERE requester_id = $1
		ORDER BY overall_score DESC, provider_id
	`
	rows, err := s.db.Query(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("store: list matches: %w", err)
	}
	defer rows.Close()

	out := []matching.Match{}
	for rows.Next() {
		var (
			m      matching.Match
			status string
		)
		if err := rows.Scan(
			&m.ID, &m.RequesterID, &m.ProviderID,
			&m.Scores.Clinical, &m.Scores.Personal, &m.Scores.Cultural, &m.Scores.Overall,
			&m.Rationale, &m.Considerations, &m.Fallback, &status, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan match: %w", err)
		}
		m.Status = matching.Status(status)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list matches: %w", err)
	}
	return out, nil
}

// ListRequestersWithStaleMatches returns requesters with no matches or whose
// newest match is older than olderThan. Requesters with any match moved past
// pending by a downstream workflow are skipped.
func (s *PostgresStore) ListRequestersWithStaleMatches(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	query := `
		SELECT r.id
		FROM requesters r
		LEFT JOIN matches m ON m.requester_id = r.id
		GROUP BY r.id
		HAVING (MAX(m.updated_at) IS NULL OR MAX(m.updated_at) < $1)
			AND BOOL_AND(m.status = 'pending') IS NOT FALSE
		ORDER BY r.id
		LIMIT $2
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("store: stale requesters: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan requester id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveProvider inserts or replaces a provider profile.
func (s *PostgresStore) SaveProvider(ctx context.Context, p matching.Provider) error {
	demographics, err := json.Marshal(p.Demographics)
	if err != nil {
		return fmt.Errorf("store: encode demographics: %w", err)
	}
	template, err := json.Marshal(nonNilTemplate(p.Availability))
	if err != nil {
		return fmt.Errorf("store: encode availability: %w", err)
	}
	var calKind, calID *string
	if p.Calendar != nil && !p.Calendar.IsZero() {
		calKind, calID = &p.Calendar.Kind, &p.Calendar.ID
	}
	query := `
		INSERT INTO providers (
			id, name, specializations, approaches, languages, accepted_payments,
			biography, years_experience, demographics, availability,
			calendar_kind, calendar_id, timezone, accepting_patients
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			specializations = EXCLUDED.specializations,
			approaches = EXCLUDED.approaches,
			languages = EXCLUDED.languages,
			accepted_payments = EXCLUDED.accepted_payments,
			biography = EXCLUDED.biography,
			years_experience = EXCLUDED.years_experience,
			demographics = EXCLUDED.demographics,
			availability = EXCLUDED.availability,
			calendar_kind = EXCLUDED.calendar_kind,
			calendar_id = EXCLUDED.calendar_id,
			timezone = EXCLUDED.timezone,
			accepting_patients = EXCLUDED.accepting_patients,
			updated_at = now()
	`
	_, err = s.db.Exec(ctx, query,
		p.ID, p.Name, nonNilStrings(p.Specializations), nonNilStrings(p.Approaches),
		nonNilStrings(p.Languages), nonNilStrings(p.AcceptedPayments),
		p.Biography, p.YearsExperience, demographics, template,
		calKind, calID, p.Timezone, p.AcceptingPatients,
	)
	if err != nil {
		return fmt.Errorf("store: save provider: %w", err)
	}
	return nil
}

// SaveRequester inserts or replaces a requester profile.
func (s *PostgresStore) SaveRequester(ctx context.Context, r matching.Requester) error {
	demographics, err := json.Marshal(r.Demographics)
	if err != nil {
		return fmt.Errorf("store: encode demographics: %w", err)
	}
	template, err := json.Marshal(nonNilTemplate(r.Availability))
	if err != nil {
		return fmt.Errorf("store: encode availability: %w", err)
	}
	query := `
		INSERT INTO requesters (id, demographics, needs, languages, style_preferences, payment_method, availability)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			demographics = EXCLUDED.demographics,
			needs = EXCLUDED.needs,
			languages = EXCLUDED.languages,
			style_preferences = EXCLUDED.style_preferences,
			payment_method = EXCLUDED.payment_method,
			availability = EXCLUDED.availability,
			updated_at = now()
	`
	_, err = s.db.Exec(ctx, query,
		r.ID, demographics, nonNilStrings(r.Needs), nonNilStrings(r.Languages),
		nonNilStrings(r.StylePreferences), r.PaymentMethod, template,
	)
	if err != nil {
		return fmt.Errorf("store: save requester: %w", err)
	}
	return nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilTemplate(t availability.WeeklyTemplate) availability.WeeklyTemplate {
	if t == nil {
		return availability.WeeklyTemplate{}
	}
	return t
}
