package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrLockTimeout is returned when a sender lock could not be taken in time.
var ErrLockTimeout = errors.New("conversation: timed out waiting for session lock")

const (
	defaultLockTTL = 2 * time.Minute
	lockPollStep   = 50 * time.Millisecond
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisStore keeps sessions as JSON values in Redis.
type RedisStore struct {
	redis       *redis.Client
	ttl         time.Duration
	lockTimeout time.Duration
	lockTTL     time.Duration
	tracer      trace.Tracer
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore builds a store. ttl 0 keeps sessions forever. lockTTL bounds
// how long a crashed holder blocks the sender; a live holder keeps extending it.
func NewRedisStore(client *redis.Client, ttl, lockTimeout, lockTTL time.Duration) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &RedisStore{
		redis:       client,
		ttl:         ttl,
		lockTimeout: lockTimeout,
		lockTTL:     lockTTL,
		tracer:      otel.Tracer("apina-front.conversation.redis"),
	}
}

func (s *RedisStore) Get(ctx context.Context, sender string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sender)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSession(sender), nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	sess.Sender = sender
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sender string, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "conversation.session.put")
	defer span.End()

	c := sess.Clone()
	c.Sender = sender
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sender), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

// Lock takes a SET NX lock, polling until the lock timeout elapses. The lock
// is extended every third of its TTL until released.
func (s *RedisStore) Lock(ctx context.Context, sender string) (func(), error) {
	key := lockKey(sender)
	token := uuid.NewString()
	deadline := time.Now().Add(s.lockTimeout)

	for {
		ok, err := s.redis.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("conversation: failed to take session lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollStep):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go s.keepLock(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The turn context may already be cancelled; release regardless.
			if err := releaseLockScript.Run(context.Background(), s.redis, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				otel.Handle(fmt.Errorf("conversation: failed to release session lock: %w", err))
			}
		})
	}, nil
}

func (s *RedisStore) keepLock(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.lockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL/3)
			held, err := extendLockScript.Run(ctx, s.redis, []string{key}, token, s.lockTTL.Milliseconds()).Int()
			cancel()
			if err != nil {
				otel.Handle(fmt.Errorf("conversation: failed to extend session lock: %w", err))
				continue
			}
			if held == 0 {
				return
			}
		}
	}
}

func sessionKey(sender string) string {
	return fmt.Sprintf("session:%s", sender)
}

func lockKey(sender string) string {
	return fmt.Sprintf("session_lock:%s", sender)
}
