package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carlaherrera/apina-front/pkg/logging"
)

// Snapshot is the diagnostic record of one turn.
type Snapshot struct {
	Sender  string    `json:"sender"`
	Intent  string    `json:"intent"`
	Reply   string    `json:"reply"`
	Session *Session  `json:"session"`
	At      time.Time `json:"at"`
}

// SnapshotSink receives turn snapshots. Record must not block the turn for long.
type SnapshotSink interface {
	Record(ctx context.Context, snap Snapshot) error
}

// SnapshotWriter persists snapshots synchronously; AsyncSink runs it off the turn path.
type SnapshotWriter interface {
	Write(ctx context.Context, snap Snapshot) error
}

// LogSink writes snapshots to the structured log.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink builds a sink over logger.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger.Component("snapshot")}
}

func (l *LogSink) Record(_ context.Context, snap Snapshot) error {
	s := snap.Session
	attrs := []any{
		"sender", snap.Sender,
		"intent", snap.Intent,
		"reply", snap.Reply,
	}
	if s != nil {
		attrs = append(attrs,
			"step", s.Step,
			"previous_step", s.PreviousStep,
			"customer_id", s.CustomerID,
			"candidate_date", s.CandidateDate,
			"candidate_period", s.CandidatePeriod,
			"awaiting_confirmation", s.AwaitingConfirmation,
		)
		if s.SelectedOrder != nil {
			attrs = append(attrs, "order_id", s.SelectedOrder.ID)
		}
	}
	l.logger.Info("turn snapshot", attrs...)
	return nil
}

// Write lets a LogSink back an AsyncSink.
func (l *LogSink) Write(ctx context.Context, snap Snapshot) error {
	return l.Record(ctx, snap)
}

// ErrSnapshotQueueFull is returned when the async sink drops a snapshot.
var ErrSnapshotQueueFull = errors.New("conversation: snapshot queue full")

// AsyncSink fans snapshots out to writers on a background worker. A full
// queue drops the snapshot instead of blocking the turn.
type AsyncSink struct {
	writers []SnapshotWriter
	queue   chan Snapshot
	timeout time.Duration
	logger  *logging.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// NewAsyncSink starts the worker. Close flushes and stops it.
func NewAsyncSink(size int, timeout time.Duration, logger *logging.Logger, writers ...SnapshotWriter) *AsyncSink {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &AsyncSink{
		writers: writers,
		queue:   make(chan Snapshot, size),
		timeout: timeout,
		logger:  logger.Component("snapshot"),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncSink) Record(_ context.Context, snap Snapshot) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrSnapshotQueueFull
	}
	select {
	case a.queue <- snap:
		return nil
	default:
		return ErrSnapshotQueueFull
	}
}

func (a *AsyncSink) run() {
	defer a.wg.Done()
	for snap := range a.queue {
		for _, w := range a.writers {
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			if err := w.Write(ctx, snap); err != nil {
				a.logger.Warn("snapshot write failed", "sender", snap.Sender, "error", err)
			}
			cancel()
		}
	}
}

// Close stops accepting snapshots and waits for queued ones to be written.
func (a *AsyncSink) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
