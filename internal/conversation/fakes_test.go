package conversation

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carlaherrera/apina-front/internal/ixc"
	"github.com/carlaherrera/apina-front/internal/scheduling"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

const testSender = "whatsapp:+5511999999999"

// Monday 2024-07-22; orders opened that morning with a 72h SLA can be booked Tue 23 to Thu 25.
func fixedNow() time.Time {
	return time.Date(2024, 7, 22, 10, 0, 0, 0, time.UTC)
}

func openOrder(id string) scheduling.Order {
	return scheduling.Order{
		ID:         id,
		CustomerID: "77",
		Subject:    "Sem conexão",
		Status:     scheduling.StatusOpen,
		OpenedAt:   "2024-07-22 08:00:00",
		SLAHours:   72,
		SectorID:   "3",
	}
}

type fakeCRM struct {
	mu        sync.Mutex
	customers map[string]ixc.Customer
	findErr   error
	findCalls []string

	orders    []scheduling.Order
	listErr   error
	listCalls int

	result      ixc.UpdateResult
	scheduleErr error
	scheduled   []scheduling.Slot
}

func (f *fakeCRM) FindCustomerByTaxID(_ context.Context, taxID string) (ixc.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls = append(f.findCalls, taxID)
	if f.findErr != nil {
		return ixc.Customer{}, f.findErr
	}
	c, ok := f.customers[taxID]
	if !ok {
		return ixc.Customer{}, ixc.ErrCustomerNotFound
	}
	return c, nil
}

func (f *fakeCRM) ListOrdersByCustomer(context.Context, string) ([]scheduling.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]scheduling.Order(nil), f.orders...), nil
}

func (f *fakeCRM) ScheduleOrder(_ context.Context, _ scheduling.Order, slot scheduling.Slot) (ixc.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, slot)
	if f.scheduleErr != nil {
		return ixc.UpdateResult{}, f.scheduleErr
	}
	if f.result.Type == "" {
		return ixc.UpdateResult{Type: "success", Message: "Registro atualizado com sucesso!"}, nil
	}
	return f.result, nil
}

func (f *fakeCRM) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeLanguage struct {
	intent      string
	classifyErr error
	dateRaw     string
	dateErr     error
	choice      int
	rendered    string
	renderErr   error

	renderedIntents []string
	instructions    []string

	delay       time.Duration
	inflight    int32
	maxInflight int32
}

func (f *fakeLanguage) ClassifyIntent(context.Context, string, string) (string, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		m := atomic.LoadInt32(&f.maxInflight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInflight, m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.intent, f.classifyErr
}

func (f *fakeLanguage) InterpretNaturalDate(_ context.Context, instruction, _ string) (string, error) {
	f.instructions = append(f.instructions, instruction)
	return f.dateRaw, f.dateErr
}

func (f *fakeLanguage) InterpretOrdinalChoice(context.Context, string, []string, string) (int, error) {
	return f.choice, nil
}

func (f *fakeLanguage) RenderIntentMessage(_ context.Context, intent, _, _ string) (string, error) {
	f.renderedIntents = append(f.renderedIntents, intent)
	return f.rendered, f.renderErr
}

type fakeOccupancy struct {
	slots []scheduling.Slot
}

func (f *fakeOccupancy) ScheduledSlots(context.Context, string, string, string) ([]scheduling.Slot, error) {
	return f.slots, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	turns    []string
	bookings []string
}

func (r *recordingObserver) ObserveTurn(intent, outcome string) {
	r.mu.Lock()
	r.turns = append(r.turns, intent+":"+outcome)
	r.mu.Unlock()
}

func (r *recordingObserver) ObserveBooking(outcome string) {
	r.mu.Lock()
	r.bookings = append(r.bookings, outcome)
	r.mu.Unlock()
}

type harness struct {
	engine    *Engine
	store     *MemoryStore
	crm       *fakeCRM
	lang      *fakeLanguage
	occupancy *fakeOccupancy
	observer  *recordingObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logging.NewWithWriter("error", io.Discard)
	h := &harness{
		store: NewMemoryStore(),
		crm: &fakeCRM{customers: map[string]ixc.Customer{
			"12345678900": {ID: "77", Name: "Maria Souza"},
		}},
		lang:      &fakeLanguage{},
		occupancy: &fakeOccupancy{},
		observer:  &recordingObserver{},
	}
	planner := scheduling.NewEngine(h.occupancy, scheduling.EngineConfig{Now: fixedNow, Logger: logger})
	h.engine = NewEngine(Config{
		Store:      h.store,
		CRM:        h.crm,
		Negotiator: scheduling.NewNegotiator(planner, logger),
		Language:   h.lang,
		Snapshots:  NewLogSink(logger),
		Observer:   h.observer,
		Logger:     logger,
	})
	t.Cleanup(h.engine.Drain)
	return h
}

// identified seeds a customer with the given orders cached.
func (h *harness) identified(t *testing.T, orders ...scheduling.Order) *Session {
	t.Helper()
	s := NewSession(testSender)
	s.CustomerID = "77"
	s.CustomerName = "Maria Souza"
	s.TaxID = "12345678900"
	s.OpenOrders = orders
	return s
}

func (h *harness) seed(t *testing.T, s *Session) {
	t.Helper()
	if err := h.store.Put(context.Background(), testSender, s); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func (h *harness) say(t *testing.T, intent, message string) *TurnResult {
	t.Helper()
	h.lang.intent = intent
	res, err := h.engine.HandleTurn(context.Background(), testSender, message)
	if err != nil {
		t.Fatalf("HandleTurn(%s, %q) returned error: %v", intent, message, err)
	}
	return res
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), testSender)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return s
}
