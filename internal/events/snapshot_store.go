package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carlaherrera/apina-front/internal/conversation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SnapshotStore appends turn snapshots to Postgres for later inspection.
type SnapshotStore struct {
	db execer
}

var _ conversation.SnapshotWriter = (*SnapshotStore)(nil)

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &SnapshotStore{db: pool}
}

func newSnapshotStoreWithExec(db execer) *SnapshotStore {
	if db == nil {
		panic("events: exec required")
	}
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Write(ctx context.Context, snap conversation.Snapshot) error {
	session, err := json.Marshal(snap.Session)
	if err != nil {
		return fmt.Errorf("events: marshal snapshot session: %w", err)
	}
	var step, orderID string
	if snap.Session != nil {
		step = string(snap.Session.Step)
		if snap.Session.SelectedOrder != nil {
			orderID = snap.Session.SelectedOrder.ID
		}
	}
	query := `
		INSERT INTO turn_snapshots (id, sender, intent, reply, step, order_id, session, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.Exec(ctx, query, uuid.New(), snap.Sender, snap.Intent, snap.Reply, step, orderID, session, snap.At); err != nil {
		return fmt.Errorf("events: insert snapshot: %w", err)
	}
	return nil
}
