package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (s *captureSender) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSPublisherSendsJSON(t *testing.T) {
	sender := &captureSender{}
	pub := &SQSPublisher{client: sender, queueURL: "https://sqs.test/queue"}
	ev := models.UsageEvent{
		UserID:     7,
		ProjectID:  3,
		MessageID:  11,
		Used:       2,
		FreeLimit:  20,
		OccurredAt: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, pub.PublishUsage(context.Background(), ev))

	require.Len(t, sender.inputs, 1)
	assert.Equal(t, "https://sqs.test/queue", aws.ToString(sender.inputs[0].QueueUrl))
	assert.JSONEq(t,
		`{"user_id":7,"project_id":3,"message_id":11,"used":2,"free_limit":20,"occurred_at":"2024-03-15T12:00:00Z"}`,
		aws.ToString(sender.inputs[0].MessageBody),
	)

	var decoded models.UsageEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(sender.inputs[0].MessageBody)), &decoded))
	assert.Equal(t, ev.UserID, decoded.UserID)
}

func TestSQSPublisherWrapsSendError(t *testing.T) {
	boom := errors.New("throttled")
	pub := &SQSPublisher{client: &captureSender{err: boom}, queueURL: "q"}

	err := pub.PublishUsage(context.Background(), models.UsageEvent{UserID: 9})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "user=9")
}

func TestNewUsagePublisherWithoutQueue(t *testing.T) {
	pub, err := NewUsagePublisher(context.Background(), "")

	require.NoError(t, err)
	assert.IsType(t, noopPublisher{}, pub)
	assert.NoError(t, pub.PublishUsage(context.Background(), models.UsageEvent{}))
}
