package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/wolfman30/therapymatch/internal/matching"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockOracle scores matches through the Bedrock Converse API.
type BedrockOracle struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockOracle(api bedrockConverseAPI, modelID string) (*BedrockOracle, error) {
	if api == nil {
		return nil, errors.New("oracle: bedrock converse client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("oracle: bedrock model id is required")
	}
	return &BedrockOracle{api: api, modelID: modelID}, nil
}

func (o *BedrockOracle) Score(ctx context.Context, req matching.OracleRequest) ([]byte, error) {
	prompt, err := renderPrompt(req)
	if err != nil {
		return nil, err
	}

	out, err := o.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(o.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: prompt},
			},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			Temperature: aws.Float32(Temperature),
			MaxTokens:   aws.Int32(2048),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("oracle: bedrock scoring failed: %w", err)
	}

	text, err := bedrockExtractOutputText(out)
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(text)), nil
}

func bedrockExtractOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("oracle: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("oracle: bedrock response did not include a message output")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", errors.New("oracle: bedrock response contained no text content blocks")
	}
	return builder.String(), nil
}
