package scheduling

import (
	"context"
	"errors"

	"github.com/carlaherrera/apina-front/pkg/logging"
)

// ErrNoAvailability means no slot could be offered for the order.
var ErrNoAvailability = errors.New("scheduling: no availability")

// Planner is the availability collaborator the negotiator consults.
type Planner interface {
	Suggest(ctx context.Context, order Order, opts SuggestOptions) (*Suggestion, error)
	Check(ctx context.Context, order Order, date string, period Period) (DayAvailability, error)
}

// Proposal is what the assistant offers for an order.
type Proposal struct {
	Primary Slot
	// Alternatives excludes the primary slot and repeats, at most three entries.
	Alternatives []Slot
	// ByDay groups the remaining free slots, two periods per day and five entries overall.
	ByDay []Slot
	// All holds every free slot the planner returned, primary first.
	All []Slot
}

// Outcome classifies a requested date/period.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeWeekend     Outcome = "weekend"
	OutcomeOutOfRange  Outcome = "out_of_range"
	OutcomeUnavailable Outcome = "unavailable"
)

// Verdict is the result of validating a requested date/period.
type Verdict struct {
	Outcome Outcome
	Date    string
	Period  Period
	Weekday string
	Window  Window
	// OtherPeriod is a free period on the same day when the requested one is taken.
	OtherPeriod Period
	// Fallback is the best slot elsewhere, set on rejection when one exists.
	Fallback *Slot
}

// DateCheckOutcome classifies a "do you have X?" question.
type DateCheckOutcome string

const (
	DateHit         DateCheckOutcome = "hit"
	DateOtherPeriod DateCheckOutcome = "other_period"
	DateAnyPeriod   DateCheckOutcome = "any_period"
	DateMiss        DateCheckOutcome = "miss"
)

// DateCheck answers a question about one day.
type DateCheck struct {
	Outcome DateCheckOutcome
	Date    string
	Weekday string
	Period  Period
	// Periods available on Date.
	Periods []Period
	// Dates offered instead when Date has nothing, at most five.
	Dates []string
}

const (
	maxProposalAlternatives = 3
	byDayPerDay             = 2
	byDayTotal              = 5
	maxOfferedDates         = 5
)

// Negotiator turns planner output into offers and verdicts.
type Negotiator struct {
	planner Planner
	logger  *logging.Logger
}

// NewNegotiator wraps a planner.
func NewNegotiator(planner Planner, logger *logging.Logger) *Negotiator {
	if planner == nil {
		panic("scheduling: planner cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Negotiator{planner: planner, logger: logger}
}

// Propose returns the best slot for the order plus deduplicated alternatives.
func (n *Negotiator) Propose(ctx context.Context, order Order) (Proposal, error) {
	sug, err := n.planner.Suggest(ctx, order, SuggestOptions{})
	if err != nil {
		return Proposal{}, err
	}
	if sug == nil {
		return Proposal{}, ErrNoAvailability
	}
	all := append([]Slot{sug.Primary}, sug.Alternatives...)
	rest := DistinctAlternatives(sug.Primary, sug.Alternatives, len(sug.Alternatives))
	return Proposal{
		Primary:      sug.Primary,
		Alternatives: DistinctAlternatives(sug.Primary, sug.Alternatives, maxProposalAlternatives),
		ByDay:        GroupByDay(rest, byDayPerDay, byDayTotal),
		All:          all,
	}, nil
}

// Validate checks a requested day and period. An empty period accepts any free period.
func (n *Negotiator) Validate(ctx context.Context, order Order, date string, period Period) (Verdict, error) {
	av, err := n.planner.Check(ctx, order, date, period)
	if err != nil {
		return Verdict{}, err
	}
	v := Verdict{Date: date, Period: period, Weekday: av.Weekday, Window: av.Window}
	switch {
	case av.Weekend:
		v.Outcome = OutcomeWeekend
	case !av.InRange:
		v.Outcome = OutcomeOutOfRange
	case av.Available:
		v.Outcome = OutcomeOK
		return v, nil
	default:
		v.Outcome = OutcomeUnavailable
		if len(av.OtherPeriods) > 0 {
			v.OtherPeriod = av.OtherPeriods[0]
			return v, nil
		}
	}

	if p, err := n.Propose(ctx, order); err == nil {
		fb := p.Primary
		v.Fallback = &fb
	} else if !errors.Is(err, ErrNoAvailability) {
		n.logger.Warn("fallback suggestion failed", "order_id", order.ID, "error", err)
	}
	return v, nil
}

// CheckDate compares a requested day with the free slots on offer.
func (n *Negotiator) CheckDate(ctx context.Context, order Order, date string, period Period) (DateCheck, error) {
	p, err := n.Propose(ctx, order)
	if err != nil {
		return DateCheck{}, err
	}
	dc := DateCheck{Date: date, Weekday: WeekdayName(date), Period: period}
	for _, s := range p.All {
		if s.Date == date {
			dc.Periods = append(dc.Periods, s.Period)
		}
	}
	switch {
	case len(dc.Periods) == 0:
		dc.Outcome = DateMiss
		dc.Dates = DistinctDates(p.All, maxOfferedDates)
	case !period.Valid():
		dc.Outcome = DateAnyPeriod
	case containsPeriod(dc.Periods, period):
		dc.Outcome = DateHit
	default:
		dc.Outcome = DateOtherPeriod
	}
	return dc, nil
}

func containsPeriod(ps []Period, p Period) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}
