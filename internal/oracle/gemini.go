package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/wolfman30/therapymatch/internal/matching"
)

// DefaultGeminiModel is used when no model id is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type geminiGenerateFunc func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)

// GeminiOracle scores matches with a Gemini model in JSON mode.
type GeminiOracle struct {
	client   *genai.Client
	modelID  string
	generate geminiGenerateFunc
}

// NewGeminiOracle creates a Gemini-backed oracle.
func NewGeminiOracle(ctx context.Context, apiKey, modelID string) (*GeminiOracle, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("oracle: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("oracle: failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelID)
	model.SetTemperature(Temperature)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	return &GeminiOracle{
		client:  client,
		modelID: modelID,
		generate: func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
			return model.GenerateContent(ctx, genai.Text(prompt))
		},
	}, nil
}

// Score sends the redacted request and returns the model's raw JSON text.
func (o *GeminiOracle) Score(ctx context.Context, req matching.OracleRequest) ([]byte, error) {
	prompt, err := renderPrompt(req)
	if err != nil {
		return nil, err
	}
	resp, err := o.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("oracle: gemini scoring failed: %w", err)
	}
	text, err := geminiText(resp)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// Close releases resources held by the Gemini client.
func (o *GeminiOracle) Close() error {
	if o.client != nil {
		return o.client.Close()
	}
	return nil
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("oracle: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("oracle: gemini returned empty content (finish reason %s)", candidate.FinishReason)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", errors.New("oracle: gemini response contained no text parts")
	}
	return out, nil
}
