package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// UsagePublisher ships usage events to downstream consumers.
type UsagePublisher interface {
	PublishUsage(ctx context.Context, ev models.UsageEvent) error
}

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends usage events as JSON messages to one queue.
type SQSPublisher struct {
	client   sqsSender
	queueURL string
}

// NewUsagePublisher returns an SQS publisher for queueURL, or a no-op
// publisher when queueURL is empty.
func NewUsagePublisher(ctx context.Context, queueURL string) (UsagePublisher, error) {
	if queueURL == "" {
		slog.Info("QUEUE_URL missing in config; usage events disabled")
		return noopPublisher{}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SQS: %w", err)
	}
	return &SQSPublisher{client: sqs.NewFromConfig(awsCfg), queueURL: queueURL}, nil
}

func (p *SQSPublisher) PublishUsage(ctx context.Context, ev models.UsageEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send usage event for user=%d: %w", ev.UserID, err)
	}
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishUsage(context.Context, models.UsageEvent) error { return nil }
