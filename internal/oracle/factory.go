package oracle

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/therapymatch/internal/matching"
)

// Provider names accepted by New.
const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderNone    = "none"
)

// Options selects and configures one oracle transport.
type Options struct {
	Provider       string
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string
	// AWSConfig is required for the bedrock provider.
	AWSConfig *aws.Config
}

// New builds the configured oracle. The returned closer is never nil.
func New(ctx context.Context, opts Options) (matching.Oracle, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case ProviderGemini, "":
		o, err := NewGeminiOracle(ctx, opts.GeminiAPIKey, opts.GeminiModel)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return o, o, nil
	case ProviderBedrock:
		if opts.AWSConfig == nil {
			return nil, nopCloser{}, fmt.Errorf("oracle: aws config is required for bedrock")
		}
		o, err := NewBedrockOracle(bedrockruntime.NewFromConfig(*opts.AWSConfig), opts.BedrockModelID)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return o, nopCloser{}, nil
	case ProviderNone:
		return Disabled{}, nopCloser{}, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("oracle: unknown provider %q", opts.Provider)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
