package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch/internal/matching"
)

func sampleRequest() matching.OracleRequest {
	return matching.BuildOracleRequest(
		matching.Requester{ID: "r1", Needs: []string{"anxiety"}},
		[]matching.Provider{{ID: "p1", Specializations: []string{"Anxiety"}}},
	)
}

const validReply = `{"matches":[{"providerId":"p1","scores":{"clinical":90,"personal":80,"cultural":70,"overall":85},"rationale":"Anxiety specialist"}]}`

func TestRenderPrompt(t *testing.T) {
	prompt, err := renderPrompt(sampleRequest())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(prompt), &decoded))
	assert.Equal(t, "match_scoring_request", decoded["kind"])
	assert.NotContains(t, prompt, "r1")
}

func TestDisabledOracle(t *testing.T) {
	_, err := Disabled{}.Score(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrOracleDisabled)
}

func TestGeminiOracleScore(t *testing.T) {
	var gotPrompt string
	o := &GeminiOracle{generate: func(_ context.Context, prompt string) (*genai.GenerateContentResponse, error) {
		gotPrompt = prompt
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("  " + validReply + "\n")}},
		}}}, nil
	}}

	raw, err := o.Score(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.JSONEq(t, validReply, string(raw))
	assert.Contains(t, gotPrompt, `"providerId":"p1"`)

	parsed, err := matching.ParseOracleResponse(raw, []string{"p1"})
	require.NoError(t, err)
	assert.Len(t, parsed.Matches, 1)
}

func TestGeminiOracleErrors(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{name: "transport error", err: errors.New("rpc error: code = Unavailable")},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}},
		{name: "empty content", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}},
		{name: "blank text", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("   ")}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &GeminiOracle{generate: func(context.Context, string) (*genai.GenerateContentResponse, error) {
				return tt.resp, tt.err
			}}
			_, err := o.Score(context.Background(), sampleRequest())
			assert.Error(t, err)
		})
	}
}

func TestNewGeminiOracleRequiresKey(t *testing.T) {
	_, err := NewGeminiOracle(context.Background(), " ", "")
	assert.Error(t, err)
}

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
		Role:    brtypes.ConversationRoleAssistant,
		Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
	}}}
}

func TestBedrockOracleScore(t *testing.T) {
	api := &fakeConverse{out: textOutput(validReply)}
	o, err := NewBedrockOracle(api, "anthropic.model-v1")
	require.NoError(t, err)

	raw, err := o.Score(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.JSONEq(t, validReply, string(raw))

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.model-v1", aws.ToString(api.input.ModelId))
	require.Len(t, api.input.System, 1)
	require.Len(t, api.input.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, api.input.Messages[0].Role)
	assert.InDelta(t, Temperature, aws.ToFloat32(api.input.InferenceConfig.Temperature), 0.0001)
}

func TestBedrockOracleErrors(t *testing.T) {
	_, err := NewBedrockOracle(nil, "m")
	assert.Error(t, err)
	_, err = NewBedrockOracle(&fakeConverse{}, "")
	assert.Error(t, err)

	o, err := NewBedrockOracle(&fakeConverse{err: errors.New("throttled")}, "m")
	require.NoError(t, err)
	_, err = o.Score(context.Background(), sampleRequest())
	assert.ErrorContains(t, err, "throttled")

	o, err = NewBedrockOracle(&fakeConverse{out: &bedrockruntime.ConverseOutput{}}, "m")
	require.NoError(t, err)
	_, err = o.Score(context.Background(), sampleRequest())
	assert.Error(t, err)

	o, err = NewBedrockOracle(&fakeConverse{out: textOutput("  ")}, "m")
	require.NoError(t, err)
	_, err = o.Score(context.Background(), sampleRequest())
	assert.Error(t, err)
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	o, closer, err := New(ctx, Options{Provider: "NONE"})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, o)
	assert.NoError(t, closer.Close())

	_, closer, err = New(ctx, Options{Provider: "gemini"})
	assert.Error(t, err, "gemini needs an api key")
	assert.NotNil(t, closer)

	_, _, err = New(ctx, Options{Provider: "bedrock", BedrockModelID: "m"})
	assert.Error(t, err, "bedrock needs aws config")

	o, _, err = New(ctx, Options{Provider: "bedrock", BedrockModelID: "m", AWSConfig: &aws.Config{Region: "us-east-1"}})
	require.NoError(t, err)
	assert.IsType(t, &BedrockOracle{}, o)

	_, _, err = New(ctx, Options{Provider: "openai"})
	assert.ErrorContains(t, err, "unknown provider")
}
