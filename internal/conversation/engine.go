package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/carlaherrera/apina-front/internal/ixc"
	"github.com/carlaherrera/apina-front/internal/scheduling"
	"github.com/carlaherrera/apina-front/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var conversationTracer = otel.Tracer("apina-front.conversation")

// CRM is the order-management system.
type CRM interface {
	FindCustomerByTaxID(ctx context.Context, taxID string) (ixc.Customer, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]scheduling.Order, error)
	ScheduleOrder(ctx context.Context, order scheduling.Order, slot scheduling.Slot) (ixc.UpdateResult, error)
}

// Negotiator proposes and validates visit slots.
type Negotiator interface {
	Propose(ctx context.Context, order scheduling.Order) (scheduling.Proposal, error)
	Validate(ctx context.Context, order scheduling.Order, date string, period scheduling.Period) (scheduling.Verdict, error)
	CheckDate(ctx context.Context, order scheduling.Order, date string, period scheduling.Period) (scheduling.DateCheck, error)
}

// Language is the natural-language collaborator.
type Language interface {
	ClassifyIntent(ctx context.Context, message, digest string) (string, error)
	InterpretNaturalDate(ctx context.Context, instruction, digest string) (string, error)
	InterpretOrdinalChoice(ctx context.Context, message string, options []string, digest string) (int, error)
	RenderIntentMessage(ctx context.Context, intent, digest, instruction string) (string, error)
}

// TurnObserver receives per-turn outcomes, usually for metrics.
type TurnObserver interface {
	ObserveTurn(intent, outcome string)
	ObserveBooking(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveTurn(string, string) {}
func (nopObserver) ObserveBooking(string)      {}

// Booking outcomes reported to the observer.
const (
	BookingSucceeded = "success"
	BookingRejected  = "rejected"
	BookingFailed    = "failed"
)

// Config wires an Engine.
type Config struct {
	Store      Store
	CRM        CRM
	Negotiator Negotiator
	Language   Language
	Snapshots  SnapshotSink
	Observer   TurnObserver
	Logger     *logging.Logger
	// LockTimeout bounds the wait for a sender's previous turn.
	LockTimeout time.Duration
}

// Engine runs one dialog turn per inbound message.
type Engine struct {
	store       Store
	crm         CRM
	negotiator  Negotiator
	language    Language
	snapshots   SnapshotSink
	observer    TurnObserver
	logger      *logging.Logger
	lockTimeout time.Duration
	routes      map[string]handlerFunc
	background  sync.WaitGroup
}

// TurnResult is what a turn produced.
type TurnResult struct {
	Intent  string
	Reply   string
	Session *Session
	// Previous* hold the exchange before this turn.
	PreviousUserMessage      string
	PreviousAssistantMessage string
}

// NewEngine validates collaborators and builds the dispatch table.
func NewEngine(cfg Config) *Engine {
	if cfg.Store == nil {
		panic("conversation: store cannot be nil")
	}
	if cfg.CRM == nil {
		panic("conversation: crm cannot be nil")
	}
	if cfg.Negotiator == nil {
		panic("conversation: negotiator cannot be nil")
	}
	if cfg.Language == nil {
		panic("conversation: language cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Snapshots == nil {
		cfg.Snapshots = NewLogSink(cfg.Logger)
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 30 * time.Second
	}
	e := &Engine{
		store:       cfg.Store,
		crm:         cfg.CRM,
		negotiator:  cfg.Negotiator,
		language:    cfg.Language,
		snapshots:   cfg.Snapshots,
		observer:    cfg.Observer,
		logger:      cfg.Logger.Component("conversation"),
		lockTimeout: cfg.LockTimeout,
	}
	e.routes = e.buildRoutes()
	return e
}

// HandleTurn serializes on the sender, classifies the message, runs its handler and persists the session.
func (e *Engine) HandleTurn(ctx context.Context, sender, message string) (*TurnResult, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.handle_turn")
	defer span.End()

	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	unlock, err := e.store.Lock(lockCtx, sender)
	cancel()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: lock session: %w", err)
	}
	defer unlock()

	sess, err := e.store.Get(ctx, sender)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sess.Sender = sender
	prevUser, prevAssistant := sess.LastUserMessage, sess.LastAssistantMessage

	digest := BuildDigest(sess, message, "")
	intent, err := e.language.ClassifyIntent(ctx, message, digest)
	if err != nil {
		e.observer.ObserveTurn("", "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return nil, fmt.Errorf("conversation: classify intent: %w", err)
	}
	span.SetAttributes(attribute.String("conversation.intent", intent))

	t := &turn{session: sess, message: message, intent: intent, digest: digest}
	reply, err := e.dispatch(ctx, t)
	if err != nil {
		e.observer.ObserveTurn(intent, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		return nil, err
	}
	if strings.TrimSpace(reply) == "" {
		reply = fallbackReply(sess)
	}

	sess.PreviousStep = sess.Step
	sess.Step = Step(intent)
	sess.LastAssistantMessage = reply
	sess.LastUserMessage = message

	e.recordSnapshot(ctx, sender, intent, reply, sess)

	if err := e.store.Put(ctx, sender, sess); err != nil {
		e.observer.ObserveTurn(intent, "error")
		span.RecordError(err)
		return nil, err
	}
	e.observer.ObserveTurn(intent, "ok")

	return &TurnResult{
		Intent:                   intent,
		Reply:                    reply,
		Session:                  sess.Clone(),
		PreviousUserMessage:      prevUser,
		PreviousAssistantMessage: prevAssistant,
	}, nil
}

// Drain waits for background order refreshes started by earlier turns.
func (e *Engine) Drain() {
	e.background.Wait()
}

func (e *Engine) dispatch(ctx context.Context, t *turn) (string, error) {
	h, ok := e.routes[t.intent]
	if !ok {
		h = e.routes[IntentFinished]
	}
	return h(ctx, t)
}

// render asks the language model for free-form text, returning fallback on failure.
func (e *Engine) render(ctx context.Context, t *turn, intent, instruction, fallback string) string {
	digest := BuildDigest(t.session, t.message, "")
	text, err := e.language.RenderIntentMessage(ctx, intent, digest, instruction)
	if err != nil {
		e.logger.Warn("render failed", "intent", intent, "error", err)
		return fallback
	}
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}

func (e *Engine) recordSnapshot(ctx context.Context, sender, intent, reply string, sess *Session) {
	snap := Snapshot{
		Sender:  sender,
		Intent:  intent,
		Reply:   reply,
		Session: sess.Clone(),
		At:      time.Now().UTC(),
	}
	if err := e.snapshots.Record(ctx, snap); err != nil {
		e.logger.Warn("snapshot not recorded", "sender", sender, "error", err)
	}
}

// refreshOrdersAsync reloads the customer's orders after the current turn releases its lock.
func (e *Engine) refreshOrdersAsync(sender, customerID string) {
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.lockTimeout+time.Minute)
		defer cancel()

		orders, err := e.crm.ListOrdersByCustomer(ctx, customerID)
		if err != nil {
			e.logger.Warn("order refresh failed", "sender", sender, "error", err)
			return
		}
		if len(orders) == 0 {
			return
		}
		unlock, err := e.store.Lock(ctx, sender)
		if err != nil {
			e.logger.Warn("order refresh could not lock session", "sender", sender, "error", err)
			return
		}
		defer unlock()
		sess, err := e.store.Get(ctx, sender)
		if err != nil || sess.CustomerID != customerID {
			return
		}
		sess.OpenOrders = orders
		if err := e.store.Put(ctx, sender, sess); err != nil {
			e.logger.Warn("order refresh not persisted", "sender", sender, "error", err)
		}
	}()
}

// loadOrders replaces the cached order list from the CRM.
func (e *Engine) loadOrders(ctx context.Context, s *Session) error {
	orders, err := e.crm.ListOrdersByCustomer(ctx, s.CustomerID)
	if err != nil {
		e.logger.Error("order lookup failed", "customer_id", s.CustomerID, "error", err)
		return err
	}
	s.OpenOrders = orders
	return nil
}

// propose wraps the negotiator, mapping "nothing free" to ok=false without an error.
func (e *Engine) propose(ctx context.Context, o scheduling.Order) (scheduling.Proposal, bool, error) {
	p, err := e.negotiator.Propose(ctx, o)
	if errors.Is(err, scheduling.ErrNoAvailability) {
		return scheduling.Proposal{}, false, nil
	}
	if err != nil {
		e.logger.Error("proposal failed", "order_id", o.ID, "error", err)
		return scheduling.Proposal{}, false, err
	}
	return p, true, nil
}
