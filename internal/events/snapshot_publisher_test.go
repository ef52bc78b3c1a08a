package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/carlaherrera/apina-front/internal/conversation"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSnapshotPublisherSendsJSON(t *testing.T) {
	client := &fakeSQS{}
	pub := NewSnapshotPublisher(client, "https://sqs.local/snapshots")

	snap := conversation.Snapshot{Sender: "whatsapp:+5511999999999", Intent: conversation.IntentGreeting, Reply: "Olá!"}
	if err := pub.Write(context.Background(), snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected one message, got %d", len(client.inputs))
	}
	in := client.inputs[0]
	if aws.ToString(in.QueueUrl) != "https://sqs.local/snapshots" {
		t.Fatalf("unexpected queue %q", aws.ToString(in.QueueUrl))
	}
	var got conversation.Snapshot
	if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.Sender != snap.Sender || got.Reply != "Olá!" {
		t.Fatalf("unexpected body: %+v", got)
	}
	if aws.ToString(in.MessageAttributes["intent"].StringValue) != conversation.IntentGreeting {
		t.Fatalf("expected intent attribute")
	}
}
