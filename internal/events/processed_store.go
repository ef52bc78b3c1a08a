package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderTwilio namespaces Twilio MessageSids in processed_events.
const ProviderTwilio = "twilio"

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore remembers inbound message ids so provider retries are answered once.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// Seen reports whether the message id was already claimed.
func (s *ProcessedStore) Seen(ctx context.Context, provider, messageID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, provider, messageID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// Claim records the message id and reports whether this caller was first.
func (s *ProcessedStore) Claim(ctx context.Context, provider, messageID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, messageID)
	if err != nil {
		return false, fmt.Errorf("events: claim message: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Release forgets a claim so a failed turn can be retried by the provider.
func (s *ProcessedStore) Release(ctx context.Context, provider, messageID string) error {
	query := `DELETE FROM processed_events WHERE provider = $1 AND event_id = $2`
	if _, err := s.pool.Exec(ctx, query, provider, messageID); err != nil {
		return fmt.Errorf("events: release message: %w", err)
	}
	return nil
}
