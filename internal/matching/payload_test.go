package matching

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOracleRequestRedactsAndCaps(t *testing.T) {
	requester := Requester{
		ID:               "r1",
		Demographics:     Demographics{AgeRange: "25-34", Gender: "female", Location: "Oregon"},
		Needs:            []string{"anxiety"},
		PaymentMethod:    "aetna",
		StylePreferences: []string{"direct"},
	}
	var providers []Provider
	for i := 0; i < 8; i++ {
		providers = append(providers, Provider{
			ID:               string(rune('a' + i)),
			Name:             "Dr. Secret",
			Biography:        strings.Repeat("é", 800),
			AcceptedPayments: []string{"aetna"},
			Specializations:  []string{"Anxiety"},
			YearsExperience:  i,
		})
	}

	req := BuildOracleRequest(requester, providers)

	assert.Equal(t, "match_scoring_request", req.Kind)
	require.Len(t, req.Providers, MaxOracleProviders)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, req.ProviderIDs())
	assert.Equal(t, "Oregon", req.Requester.Region)
	assert.Equal(t, []string{}, req.Requester.Languages)
	for _, p := range req.Providers {
		assert.Equal(t, MaxBiographyRunes, utf8.RuneCountInString(p.Biography))
	}

	body, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "Dr. Secret")
	assert.NotContains(t, string(body), "aetna")
	assert.NotContains(t, string(body), `"r1"`)
}

func TestParseOracleResponse(t *testing.T) {
	submitted := []string{"p1", "p2"}

	t.Run("valid", func(t *testing.T) {
		raw := `{"matches":[
			{"providerId":"p1","scores":{"clinical":90,"personal":80,"cultural":70,"overall":85},"rationale":"Strong anxiety focus","considerations":["evening only"]},
			{"providerId":"p2","scores":{"clinical":60.5,"personal":50,"cultural":40,"overall":55},"rationale":"Partial fit"}
		]}`
		resp, err := ParseOracleResponse([]byte(raw), submitted)
		require.NoError(t, err)
		require.Len(t, resp.Matches, 2)
		assert.Equal(t, 85.0, resp.Matches[0].Scores.Overall)
		assert.Equal(t, []string{"evening only"}, resp.Matches[0].Considerations)
		assert.Equal(t, []string{}, resp.Matches[1].Considerations)
		assert.Empty(t, resp.Anomalies)
	})

	t.Run("code fenced", func(t *testing.T) {
		raw := "```json\n{\"matches\":[{\"providerId\":\"p1\",\"scores\":{\"clinical\":1,\"personal\":2,\"cultural\":3,\"overall\":4},\"rationale\":\"ok\"}]}\n```"
		resp, err := ParseOracleResponse([]byte(raw), submitted)
		require.NoError(t, err)
		assert.Len(t, resp.Matches, 1)
	})

	t.Run("drops unknown duplicate and invalid entries", func(t *testing.T) {
		raw := `{"matches":[
			{"providerId":"p1","scores":{"clinical":90,"personal":80,"cultural":70,"overall":85},"rationale":"first"},
			{"providerId":"p1","scores":{"clinical":10,"personal":10,"cultural":10,"overall":10},"rationale":"dup"},
			{"providerId":"ghost","scores":{"clinical":10,"personal":10,"cultural":10,"overall":10},"rationale":"who"},
			{"providerId":"p2","scores":{"clinical":101,"personal":10,"cultural":10,"overall":10},"rationale":"too high"}
		]}`
		resp, err := ParseOracleResponse([]byte(raw), submitted)
		require.NoError(t, err)
		require.Len(t, resp.Matches, 1)
		assert.Equal(t, "first", resp.Matches[0].Rationale)
		assert.Len(t, resp.Anomalies, 3)
	})

	malformed := map[string]string{
		"empty":            "",
		"not json":         "I think p1 is great",
		"no matches":       `{"matches":[]}`,
		"missing score":    `{"matches":[{"providerId":"p1","scores":{"clinical":1,"personal":2,"cultural":3},"rationale":"x"}]}`,
		"missing scores":   `{"matches":[{"providerId":"p1","rationale":"x"}]}`,
		"negative score":   `{"matches":[{"providerId":"p1","scores":{"clinical":-1,"personal":2,"cultural":3,"overall":4},"rationale":"x"}]}`,
		"blank rationale":  `{"matches":[{"providerId":"p1","scores":{"clinical":1,"personal":2,"cultural":3,"overall":4},"rationale":"  "}]}`,
		"wrong score type": `{"matches":[{"providerId":"p1","scores":{"clinical":"high","personal":2,"cultural":3,"overall":4},"rationale":"x"}]}`,
	}
	for name, raw := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOracleResponse([]byte(raw), submitted)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}
