package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore keeps sessions in a DynamoDB table keyed by sender.
// Turn locks are process-local.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	locks     *keyedMutex
	logger    *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

type sessionItem struct {
	Session
	ExpiresAt int64 `dynamodbav:"expiresAt,omitempty"`
}

// NewDynamoStore builds a store over the given table. ttl 0 disables expiry.
func NewDynamoStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
}

func (s *DynamoStore) Get(ctx context.Context, sender string) (*Session, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"sender": &types.AttributeValueMemberS{Value: sender}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return NewSession(sender), nil
	}
	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	sess := item.Session
	sess.Sender = sender
	return &sess, nil
}

func (s *DynamoStore) Put(ctx context.Context, sender string, sess *Session) error {
	now := time.Now().UTC()
	item := sessionItem{Session: *sess.Clone()}
	item.Sender = sender
	item.UpdatedAt = now
	if s.ttl > 0 {
		item.ExpiresAt = now.Add(s.ttl).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *DynamoStore) Lock(ctx context.Context, sender string) (func(), error) {
	return s.locks.Lock(ctx, sender)
}
