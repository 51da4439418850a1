package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/therapymatch/internal/app/bootstrap"
	appconfig "github.com/wolfman30/therapymatch/internal/config"
)

// LoadEnv reads a local .env file when present. Missing files are fine;
// real deployments set the environment directly.
func LoadEnv() {
	_ = godotenv.Load()
}

// EngineOptions is the bootstrap wiring shared by the API, the worker and
// the refresh Lambda. AWS is loaded lazily, only once a bedrock oracle or the
// match events queue asks for it.
func EngineOptions(cfg *appconfig.Config, reg prometheus.Registerer) bootstrap.Options {
	return bootstrap.Options{
		Registerer: reg,
		LoadAWS: func(ctx context.Context) (aws.Config, error) {
			return LoadAWSConfig(ctx, cfg)
		},
	}
}

// LoadAWSConfig builds the SDK config from env, with static keys when both
// are set and an endpoint override for LocalStack.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = engineEndpoints(endpoint, cfg.AWSRegion)
	}
	return awsCfg, nil
}

// engineEndpoints points the services the engine talks to (the match events
// queue and the bedrock oracle) at one local endpoint.
func engineEndpoints(endpoint, region string) aws.EndpointResolverWithOptions {
	return aws.EndpointResolverWithOptionsFunc(
		func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
			switch service {
			case sqs.ServiceID, bedrockruntime.ServiceID:
				return aws.Endpoint{URL: endpoint, PartitionID: "aws", SigningRegion: region}, nil
			default:
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}
		},
	)
}
