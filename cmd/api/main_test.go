package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/carlaherrera/apina-front/internal/config"
	"github.com/carlaherrera/apina-front/internal/conversation"
	"github.com/carlaherrera/apina-front/internal/nlu"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveInbound("text", "processed")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "apina_webhook_inbound_total") {
		t.Fatalf("expected inbound counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	if pool := connectPostgresPool(context.Background(), "", quietLogger()); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestBuildSessionStoreMemory(t *testing.T) {
	store, err := buildSessionStore(&appconfig.Config{SessionBackend: "memory"}, aws.Config{}, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*conversation.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestBuildSessionStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{SessionBackend: "redis", RedisAddr: mr.Addr()}

	store, err := buildSessionStore(cfg, aws.Config{}, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := conversation.NewSession("whatsapp:+5511999999999")
	if err := store.Put(context.Background(), sess.Sender, sess); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, err := store.Get(context.Background(), sess.Sender); err != nil || got.Sender != sess.Sender {
		t.Fatalf("get returned %+v, %v", got, err)
	}
}

func TestBuildSessionStoreDynamo(t *testing.T) {
	cfg := &appconfig.Config{SessionBackend: "dynamodb", SessionsTable: "sessions"}
	store, err := buildSessionStore(cfg, aws.Config{Region: "us-east-1"}, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*conversation.DynamoStore); !ok {
		t.Fatalf("expected dynamo store, got %T", store)
	}
}

func TestBuildSessionStoreUnknown(t *testing.T) {
	if _, err := buildSessionStore(&appconfig.Config{SessionBackend: "etcd"}, aws.Config{}, quietLogger()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestBuildLLMClient(t *testing.T) {
	ctx := context.Background()
	awsCfg := aws.Config{Region: "us-east-1"}

	if _, _, err := buildLLMClient(ctx, &appconfig.Config{LLMProvider: "openai"}, awsCfg, quietLogger()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if _, _, err := buildLLMClient(ctx, &appconfig.Config{LLMProvider: "gemini"}, awsCfg, quietLogger()); err == nil {
		t.Fatalf("expected error for gemini without api key")
	}

	client, closeFn, err := buildLLMClient(ctx, &appconfig.Config{LLMProvider: "bedrock", BedrockModelID: "anthropic.claude"}, awsCfg, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := client.(*nlu.BedrockLLMClient); !ok {
		t.Fatalf("expected bedrock client, got %T", client)
	}

	// Without a Gemini key the fallback is skipped rather than failing startup.
	client, closeFn, err = buildLLMClient(ctx, &appconfig.Config{LLMProvider: "bedrock", BedrockModelID: "anthropic.claude", LLMFallback: true}, awsCfg, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := client.(*nlu.BedrockLLMClient); !ok {
		t.Fatalf("expected bare bedrock client, got %T", client)
	}
}

func TestBuildSnapshotSinkWithoutBackends(t *testing.T) {
	sink := buildSnapshotSink(&appconfig.Config{}, aws.Config{}, nil, quietLogger())
	if err := sink.Record(context.Background(), conversation.Snapshot{Sender: "x"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	sink.Close()
}

func TestBuildSnapshotSinkTagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	sink := buildSnapshotSink(&appconfig.Config{}, aws.Config{}, nil, logging.NewWithWriter("debug", &buf))
	if err := sink.Record(context.Background(), conversation.Snapshot{Sender: "x", Intent: "greeting"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	sink.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatalf("expected the snapshot to be logged")
	}
	for _, line := range lines {
		if n := strings.Count(line, `"component":`); n != 1 {
			t.Fatalf("expected one component key, got %d in %s", n, line)
		}
	}
}

func TestBuildSynthesizerRequiresKeys(t *testing.T) {
	if _, err := buildSynthesizer(&appconfig.Config{}, aws.Config{Region: "us-east-1"}, quietLogger()); err == nil {
		t.Fatalf("expected error without elevenlabs credentials")
	}
}
