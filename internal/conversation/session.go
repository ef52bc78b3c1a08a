package conversation

import (
	"time"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

// Step is the conversational state label stored with a session.
type Step string

const (
	StepStart         Step = "start"
	StepCollectTaxID  Step = "collect_tax_id"
	StepChooseOrder   Step = "choose_order"
	StepCollectDate   Step = "collect_date"
	StepCollectPeriod Step = "collect_period"
	StepConfirm       Step = "confirm"
	StepSchedule      Step = "schedule"
	StepFinished      Step = "finished"
)

// Question records what the assistant asked last when that matters for the next turn.
type Question string

const (
	QuestionNone       Question = ""
	QuestionSchedule   Question = "schedule"
	QuestionSuggestion Question = "suggestion"
)

// Session is the per-sender dialog state.
type Session struct {
	Sender       string `json:"sender" dynamodbav:"sender"`
	Step         Step   `json:"step" dynamodbav:"step"`
	PreviousStep Step   `json:"previousStep,omitempty" dynamodbav:"previousStep,omitempty"`

	CustomerID   string `json:"customerId,omitempty" dynamodbav:"customerId,omitempty"`
	CustomerName string `json:"customerName,omitempty" dynamodbav:"customerName,omitempty"`
	TaxID        string `json:"taxId,omitempty" dynamodbav:"taxId,omitempty"`

	OpenOrders    []scheduling.Order `json:"openOrders,omitempty" dynamodbav:"openOrders,omitempty"`
	SelectedOrder *scheduling.Order  `json:"selectedOrder,omitempty" dynamodbav:"selectedOrder,omitempty"`

	CandidateDate   string            `json:"candidateDate,omitempty" dynamodbav:"candidateDate,omitempty"`
	CandidatePeriod scheduling.Period `json:"candidatePeriod,omitempty" dynamodbav:"candidatePeriod,omitempty"`
	SuggestedDate   string            `json:"suggestedDate,omitempty" dynamodbav:"suggestedDate,omitempty"`
	SuggestedPeriod scheduling.Period `json:"suggestedPeriod,omitempty" dynamodbav:"suggestedPeriod,omitempty"`

	LastQuestion         Question `json:"lastQuestion,omitempty" dynamodbav:"lastQuestion,omitempty"`
	AwaitingConfirmation bool     `json:"awaitingConfirmation,omitempty" dynamodbav:"awaitingConfirmation,omitempty"`

	LastAssistantMessage string `json:"lastAssistantMessage,omitempty" dynamodbav:"lastAssistantMessage,omitempty"`
	LastUserMessage      string `json:"lastUserMessage,omitempty" dynamodbav:"lastUserMessage,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty" dynamodbav:"updatedAt,omitempty"`
}

// NewSession returns the initial state for a sender.
func NewSession(sender string) *Session {
	return &Session{Sender: sender, Step: StepStart}
}

// Identified reports whether the customer is known.
func (s *Session) Identified() bool {
	return s.CustomerID != ""
}

// ResetNegotiation discards everything but the sender's identity.
func (s *Session) ResetNegotiation() {
	*s = Session{
		Sender:       s.Sender,
		Step:         StepStart,
		CustomerID:   s.CustomerID,
		CustomerName: s.CustomerName,
		TaxID:        s.TaxID,
	}
}

// SelectOrder stores a copy of o as the order under negotiation.
func (s *Session) SelectOrder(o scheduling.Order) {
	s.SelectedOrder = &o
}

// ClearSlots forgets the working date and period.
func (s *Session) ClearSlots() {
	s.CandidateDate = ""
	s.CandidatePeriod = ""
}

// Suggest stores an offer the user may accept with a terse confirmation.
func (s *Session) Suggest(slot scheduling.Slot) {
	s.SuggestedDate = slot.Date
	s.SuggestedPeriod = slot.Period
	s.LastQuestion = QuestionSuggestion
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.OpenOrders != nil {
		c.OpenOrders = append([]scheduling.Order(nil), s.OpenOrders...)
	}
	if s.SelectedOrder != nil {
		o := *s.SelectedOrder
		c.SelectedOrder = &o
	}
	return &c
}
