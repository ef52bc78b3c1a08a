package nlu

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(3), TotalTokens: aws.Int32(15)},
	}
}

func TestBedrockComplete(t *testing.T) {
	api := &fakeConverse{out: textOutput(" confirm \n")}
	client := NewBedrockLLMClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), LLMRequest{
		System: []string{"classifique", " "},
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "contexto"},
			{Role: ChatRoleUser, Content: "pode agendar"},
			{Role: ChatRoleAssistant, Content: ""},
		},
		MaxTokens:   20,
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "confirm" || resp.Usage.TotalTokens != 15 || resp.StopReason != "end_turn" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if aws.ToString(api.input.ModelId) != "anthropic.claude-3-haiku" {
		t.Fatalf("expected default model, got %q", aws.ToString(api.input.ModelId))
	}
	if len(api.input.System) != 2 {
		t.Fatalf("expected blank system block dropped and system message promoted, got %d blocks", len(api.input.System))
	}
	if len(api.input.Messages) != 1 || api.input.Messages[0].Role != brtypes.ConversationRoleUser {
		t.Fatalf("unexpected messages %+v", api.input.Messages)
	}
	if aws.ToInt32(api.input.InferenceConfig.MaxTokens) != 20 {
		t.Fatalf("expected max tokens to be forwarded")
	}
}

func TestBedrockCompleteModelOverride(t *testing.T) {
	api := &fakeConverse{out: textOutput("ok")}
	client := NewBedrockLLMClient(api, "default")

	if _, err := client.Complete(context.Background(), LLMRequest{Model: "override", Messages: []ChatMessage{{Role: ChatRoleUser, Content: "oi"}}}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if aws.ToString(api.input.ModelId) != "override" {
		t.Fatalf("expected request model to win, got %q", aws.ToString(api.input.ModelId))
	}
}

func TestBedrockCompleteErrors(t *testing.T) {
	msgs := []ChatMessage{{Role: ChatRoleUser, Content: "oi"}}

	if _, err := NewBedrockLLMClient(&fakeConverse{}, "").Complete(context.Background(), LLMRequest{Messages: msgs}); err == nil {
		t.Fatal("expected missing model error")
	}
	if _, err := NewBedrockLLMClient(&fakeConverse{}, "m").Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: "tool", Content: "x"}}}); err == nil {
		t.Fatal("expected unsupported role error")
	}
	if _, err := NewBedrockLLMClient(&fakeConverse{err: errors.New("throttled")}, "m").Complete(context.Background(), LLMRequest{Messages: msgs}); err == nil {
		t.Fatal("expected api error")
	}
	if _, err := NewBedrockLLMClient(&fakeConverse{out: textOutput("  ")}, "m").Complete(context.Background(), LLMRequest{Messages: msgs}); err == nil {
		t.Fatal("expected empty content error")
	}
}
