package conversation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/carlaherrera/apina-front/internal/scheduling"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

type fakeSessionTable struct {
	items  map[string]map[string]types.AttributeValue
	puts   []*dynamodb.PutItemInput
	gets   []*dynamodb.GetItemInput
	getErr error
}

func (f *fakeSessionTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	key := in.Item["sender"].(*types.AttributeValueMemberS).Value
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeSessionTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.gets = append(f.gets, in)
	if f.getErr != nil {
		return nil, f.getErr
	}
	key := in.Key["sender"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	table := &fakeSessionTable{items: map[string]map[string]types.AttributeValue{}}
	store := NewDynamoStore(table, "sessions", 24*time.Hour, logging.NewWithWriter("error", io.Discard))

	s := NewSession(testSender)
	s.CustomerID = "77"
	s.OpenOrders = []scheduling.Order{openOrder("4821")}
	s.Suggest(scheduling.Slot{Date: "2024-07-23", Period: scheduling.Morning})
	if err := store.Put(ctx, testSender, s); err != nil {
		t.Fatalf("put: %v", err)
	}

	put := table.puts[0]
	if aws.ToString(put.TableName) != "sessions" {
		t.Fatalf("unexpected table %q", aws.ToString(put.TableName))
	}
	if _, ok := put.Item["expiresAt"].(*types.AttributeValueMemberN); !ok {
		t.Fatalf("expected numeric expiresAt attribute, got %#v", put.Item["expiresAt"])
	}

	got, err := store.Get(ctx, testSender)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !aws.ToBool(table.gets[0].ConsistentRead) {
		t.Fatalf("expected consistent read")
	}
	if got.CustomerID != "77" || len(got.OpenOrders) != 1 || got.SuggestedPeriod != scheduling.Morning {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.LastQuestion != QuestionSuggestion {
		t.Fatalf("expected suggestion question to survive, got %q", got.LastQuestion)
	}
}

func TestDynamoStoreMissingItemAndErrors(t *testing.T) {
	table := &fakeSessionTable{items: map[string]map[string]types.AttributeValue{}}
	store := NewDynamoStore(table, "sessions", 0, nil)

	s, err := store.Get(context.Background(), "whatsapp:+551100000000")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if s.Step != StepStart {
		t.Fatalf("expected new session, got %+v", s)
	}

	table.getErr = errors.New("throttled")
	if _, err := store.Get(context.Background(), testSender); err == nil {
		t.Fatalf("expected error to surface")
	}
}

func TestNewDynamoStorePanicsWithoutTable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewDynamoStore(&fakeSessionTable{}, "", 0, nil)
}
