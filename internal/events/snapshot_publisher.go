package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/carlaherrera/apina-front/internal/conversation"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SnapshotPublisher forwards turn snapshots to an SQS queue.
type SnapshotPublisher struct {
	client   sqsAPI
	queueURL string
}

var _ conversation.SnapshotWriter = (*SnapshotPublisher)(nil)

func NewSnapshotPublisher(client sqsAPI, queueURL string) *SnapshotPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SnapshotPublisher{client: client, queueURL: queueURL}
}

func (p *SnapshotPublisher) Write(ctx context.Context, snap conversation.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("events: marshal snapshot: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"intent": {DataType: aws.String("String"), StringValue: aws.String(snap.Intent)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send snapshot: %w", err)
	}
	return nil
}
