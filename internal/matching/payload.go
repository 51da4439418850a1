package matching

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const (
	// MaxOracleProviders caps how many providers one oracle call may score.
	MaxOracleProviders = 5
	// MaxBiographyRunes bounds the biography text sent per provider.
	MaxBiographyRunes = 500

	oracleRequestKind   = "match_scoring_request"
	oracleSchemaVersion = 1
)

// OracleRequest is the redacted payload sent to the scoring oracle. No free
// text leaves the engine except the truncated provider biography.
type OracleRequest struct {
	Kind          string             `json:"kind"`
	SchemaVersion int                `json:"schemaVersion"`
	Requester     RedactedRequester  `json:"requester"`
	Providers     []RedactedProvider `json:"providers"`
}

type RedactedRequester struct {
	AgeRange         string   `json:"ageRange,omitempty"`
	Gender           string   `json:"gender,omitempty"`
	Region           string   `json:"region,omitempty"`
	Needs            []string `json:"needs"`
	Languages        []string `json:"languages"`
	StylePreferences []string `json:"stylePreferences"`
}

type RedactedProvider struct {
	ProviderID      string   `json:"providerId"`
	Specializations []string `json:"specializations"`
	Approaches      []string `json:"approaches"`
	Biography       string   `json:"biography,omitempty"`
	YearsExperience int      `json:"yearsExperience"`
	Gender          string   `json:"gender,omitempty"`
	AgeRange        string   `json:"ageRange,omitempty"`
	Languages       []string `json:"languages"`
}

// ProviderIDs returns the ids in submission order.
func (r OracleRequest) ProviderIDs() []string {
	ids := make([]string, 0, len(r.Providers))
	for _, p := range r.Providers {
		ids = append(ids, p.ProviderID)
	}
	return ids
}

// BuildOracleRequest builds the redacted payload for at most
// MaxOracleProviders providers.
func BuildOracleRequest(requester Requester, providers []Provider) OracleRequest {
	if len(providers) > MaxOracleProviders {
		providers = providers[:MaxOracleProviders]
	}
	req := OracleRequest{
		Kind:          oracleRequestKind,
		SchemaVersion: oracleSchemaVersion,
		Requester: RedactedRequester{
			AgeRange:         requester.Demographics.AgeRange,
			Gender:           requester.Demographics.Gender,
			Region:           requester.Demographics.Location,
			Needs:            nonNil(requester.Needs),
			Languages:        nonNil(requester.Languages),
			StylePreferences: nonNil(requester.StylePreferences),
		},
		Providers: make([]RedactedProvider, 0, len(providers)),
	}
	for _, p := range providers {
		req.Providers = append(req.Providers, RedactedProvider{
			ProviderID:      p.ID,
			Specializations: nonNil(p.Specializations),
			Approaches:      nonNil(p.Approaches),
			Biography:       truncateRunes(strings.TrimSpace(p.Biography), MaxBiographyRunes),
			YearsExperience: p.YearsExperience,
			Gender:          p.Demographics.Gender,
			AgeRange:        p.Demographics.AgeRange,
			Languages:       nonNil(p.Languages),
		})
	}
	return req
}

// OracleResponse is a validated oracle reply.
type OracleResponse struct {
	Matches []OracleMatch
	// Anomalies describes entries that were discarded during validation.
	Anomalies []string
}

type OracleMatch struct {
	ProviderID     string
	Scores         Scores
	Rationale      string
	Considerations []string
}

type rawOracleResponse struct {
	Matches []rawOracleMatch `json:"matches"`
}

type rawOracleMatch struct {
	ProviderID string `json:"providerId"`
	Scores     *struct {
		Clinical *float64 `json:"clinical"`
		Personal *float64 `json:"personal"`
		Cultural *float64 `json:"cultural"`
		Overall  *float64 `json:"overall"`
	} `json:"scores"`
	Rationale      string   `json:"rationale"`
	Considerations []string `json:"considerations"`
}

// ParseOracleResponse decodes and validates an oracle reply against the ids
// that were submitted. Entries for unknown or repeated ids, or with missing
// or out-of-range scores, or without a rationale are discarded and reported
// as anomalies. A reply that is not JSON, or that has no valid entry, fails
// with ErrMalformedResponse.
func ParseOracleResponse(raw []byte, submitted []string) (OracleResponse, error) {
	body := stripCodeFence(raw)
	if len(body) == 0 {
		return OracleResponse{}, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var decoded rawOracleResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return OracleResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	known := make(map[string]bool, len(submitted))
	for _, id := range submitted {
		known[id] = false
	}

	var out OracleResponse
	for i, m := range decoded.Matches {
		id := strings.TrimSpace(m.ProviderID)
		seen, ok := known[id]
		switch {
		case !ok:
			out.Anomalies = append(out.Anomalies, fmt.Sprintf("entry %d: unknown provider %q", i, id))
			continue
		case seen:
			out.Anomalies = append(out.Anomalies, fmt.Sprintf("entry %d: duplicate provider %q", i, id))
			continue
		}
		scores, err := validateScores(m)
		if err != nil {
			out.Anomalies = append(out.Anomalies, fmt.Sprintf("entry %d (%s): %v", i, id, err))
			continue
		}
		rationale := strings.TrimSpace(m.Rationale)
		if rationale == "" {
			out.Anomalies = append(out.Anomalies, fmt.Sprintf("entry %d (%s): missing rationale", i, id))
			continue
		}
		known[id] = true
		out.Matches = append(out.Matches, OracleMatch{
			ProviderID:     id,
			Scores:         scores,
			Rationale:      rationale,
			Considerations: nonNil(m.Considerations),
		})
	}

	if len(out.Matches) == 0 {
		return out, fmt.Errorf("%w: no valid matches", ErrMalformedResponse)
	}
	return out, nil
}

func validateScores(m rawOracleMatch) (Scores, error) {
	if m.Scores == nil {
		return Scores{}, fmt.Errorf("missing scores")
	}
	fields := []struct {
		name  string
		value *float64
	}{
		{"clinical", m.Scores.Clinical},
		{"personal", m.Scores.Personal},
		{"cultural", m.Scores.Cultural},
		{"overall", m.Scores.Overall},
	}
	for _, f := range fields {
		if f.value == nil {
			return Scores{}, fmt.Errorf("missing %s score", f.name)
		}
		if math.IsNaN(*f.value) || *f.value < 0 || *f.value > 100 {
			return Scores{}, fmt.Errorf("%s score %v out of range", f.name, *f.value)
		}
	}
	return Scores{
		Clinical: *m.Scores.Clinical,
		Personal: *m.Scores.Personal,
		Cultural: *m.Scores.Cultural,
		Overall:  *m.Scores.Overall,
	}, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence, which language
// models add even when asked for bare JSON.
func stripCodeFence(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = body[3:]
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = bytes.TrimPrefix(body, []byte("json"))
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
