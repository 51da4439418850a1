// Package oracle adapts hosted language models to the matching scorer's
// Oracle interface.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfman30/therapymatch/internal/matching"
)

// ErrOracleDisabled is returned by the "none" oracle on every call.
var ErrOracleDisabled = errors.New("oracle: scoring oracle disabled")

// systemPrompt pins the reply contract that matching.ParseOracleResponse validates.
const systemPrompt = `You rate how well therapists fit a patient.
You receive JSON with a "requester" profile and up to five "providers".
Reply with JSON only, no prose and no markdown, shaped exactly as:
{"matches":[{"providerId":"<id from input>","scores":{"clinical":0-100,"personal":0-100,"cultural":0-100,"overall":0-100},"rationale":"<one or two sentences>","considerations":["<short note>"]}]}
Return exactly one entry per input provider, using the providerId values verbatim.
clinical: fit between the requester's needs and the provider's specializations and approaches.
personal: fit with the requester's stated style preferences.
cultural: language and demographic fit.
overall: your holistic score, not an average.`

// Temperature keeps scores stable across runs.
const Temperature = 0.2

func renderPrompt(req matching.OracleRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("oracle: encode request: %w", err)
	}
	return string(body), nil
}

// Disabled never answers, so the scorer always falls back.
type Disabled struct{}

func (Disabled) Score(context.Context, matching.OracleRequest) ([]byte, error) {
	return nil, ErrOracleDisabled
}
