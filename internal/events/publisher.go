package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/therapymatch/internal/matching"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends match events to an SQS (or LocalStack) queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

// NewSQSPublisher panics on a nil client or empty queue URL.
func NewSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// PublishRun implements matching.RunPublisher.
func (p *SQSPublisher) PublishRun(ctx context.Context, run matching.Run) error {
	env, err := newEnvelope(requesterAggregate(run.RequesterID), MatchesRankedFromRun(run))
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(env.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

// LogPublisher writes match events to the structured log. Used when no
// queue is configured.
type LogPublisher struct {
	logger *logging.Logger
}

func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishRun(ctx context.Context, run matching.Run) error {
	evt := MatchesRankedFromRun(run)
	p.logger.InfoContext(ctx, "match event",
		"event_type", evt.EventType(),
		"requester_id", evt.RequesterID,
		"provider_ids", evt.ProviderIDs,
		"fallback", evt.Fallback,
		"fallback_reason", evt.FallbackReason,
	)
	return nil
}
