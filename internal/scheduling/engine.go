package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carlaherrera/apina-front/pkg/logging"
)

// ErrInvalidDate is returned for dates that are not YYYY-MM-DD calendar days.
var ErrInvalidDate = errors.New("scheduling: invalid date")

// OccupancySource reports the slots already booked for a sector between two dates (inclusive).
type OccupancySource interface {
	ScheduledSlots(ctx context.Context, sectorID, from, to string) ([]Slot, error)
}

// EngineConfig tunes the availability engine.
type EngineConfig struct {
	// Capacity is the number of visits a sector takes per period.
	Capacity int
	// DefaultSLAHours applies when an order carries no SLA.
	DefaultSLAHours int
	// HorizonDays bounds the search when the SLA deadline is unknown.
	HorizonDays int
	Location    *time.Location
	Now         func() time.Time
	Logger      *logging.Logger
}

// Window is the range of dates an order may be booked in. Empty bounds are unknown.
type Window struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// Contains reports whether date (YYYY-MM-DD) is inside the known bounds.
func (w Window) Contains(date string) bool {
	if w.Min != "" && date < w.Min {
		return false
	}
	if w.Max != "" && date > w.Max {
		return false
	}
	return true
}

// SuggestOptions narrows a suggestion to a specific day and/or period.
type SuggestOptions struct {
	Date   string
	Period Period
}

// Suggestion is the best slot plus alternatives, in chronological order.
type Suggestion struct {
	Primary      Slot
	Alternatives []Slot
}

// DayAvailability describes one calendar day for an order.
type DayAvailability struct {
	Date         string
	Weekday      string
	Weekend      bool
	InRange      bool
	Window       Window
	Available    bool
	OtherPeriods []Period
}

const (
	maxAlternatives    = 10
	expiredSLAGraceDay = 5
)

// Engine computes free visit slots from the CRM's booked agenda.
type Engine struct {
	source      OccupancySource
	capacity    int
	defaultSLA  int
	horizonDays int
	loc         *time.Location
	now         func() time.Time
	logger      *logging.Logger
}

// NewEngine builds an engine over the given occupancy source.
func NewEngine(source OccupancySource, cfg EngineConfig) *Engine {
	if source == nil {
		panic("scheduling: occupancy source cannot be nil")
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if cfg.DefaultSLAHours <= 0 {
		cfg.DefaultSLAHours = 72
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 10
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Engine{
		source:      source,
		capacity:    cfg.Capacity,
		defaultSLA:  cfg.DefaultSLAHours,
		horizonDays: cfg.HorizonDays,
		loc:         cfg.Location,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

func (e *Engine) today() time.Time {
	n := e.now().In(e.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// Window returns the bookable range for an order: from the next business day
// up to the SLA deadline counted from the opening date.
func (e *Engine) Window(order Order) Window {
	min := nextBusinessDay(e.today())
	w := Window{Min: min.Format(DateLayout)}

	opened, ok := e.parseOpened(order.OpenedAt)
	if !ok {
		return w
	}
	sla := order.SLAHours
	if sla <= 0 {
		sla = e.defaultSLA
	}
	deadline := opened.Add(time.Duration(sla) * time.Hour)
	max := previousBusinessDay(time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC))
	if max.Before(min) {
		max = addBusinessDays(min, expiredSLAGraceDay)
	}
	w.Max = max.Format(DateLayout)
	return w
}

func (e *Engine) parseOpened(raw string) (time.Time, bool) {
	if datePart(raw) == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02 15:04:05", DateLayout} {
		if t, err := time.ParseInLocation(layout, raw, e.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// days lists the business days inside the window.
func (e *Engine) days(w Window) []time.Time {
	start, err := ParseDate(w.Min)
	if err != nil {
		return nil
	}
	var end time.Time
	if w.Max != "" {
		if end, err = ParseDate(w.Max); err != nil {
			return nil
		}
	} else {
		end = addBusinessDays(start, e.horizonDays-1)
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !IsWeekend(d) {
			out = append(out, d)
		}
	}
	return out
}

func (e *Engine) occupancy(ctx context.Context, order Order, from, to string) (map[Slot]int, error) {
	booked, err := e.source.ScheduledSlots(ctx, order.SectorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load occupancy: %w", err)
	}
	counts := make(map[Slot]int, len(booked))
	for _, s := range booked {
		counts[s]++
	}
	return counts, nil
}

func (e *Engine) free(counts map[Slot]int, s Slot) bool {
	return counts[s] < e.capacity
}

// Suggest returns the earliest free slot and the ones after it. With opts.Date set,
// the primary slot is on that day (and period, when given) or the result is nil.
func (e *Engine) Suggest(ctx context.Context, order Order, opts SuggestOptions) (*Suggestion, error) {
	w := e.Window(order)
	days := e.days(w)
	if opts.Date != "" {
		d, err := ParseDate(opts.Date)
		if err != nil {
			return nil, ErrInvalidDate
		}
		if IsWeekend(d) || !w.Contains(opts.Date) {
			return nil, nil
		}
		if !containsDay(days, d) {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil, nil
	}

	from, to := days[0], days[0]
	for _, d := range days {
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}
	counts, err := e.occupancy(ctx, order, from.Format(DateLayout), to.Format(DateLayout))
	if err != nil {
		return nil, err
	}

	var freeSlots []Slot
	for _, d := range days {
		for _, p := range Periods {
			s := Slot{Date: d.Format(DateLayout), Period: p}
			if e.free(counts, s) {
				freeSlots = append(freeSlots, s)
			}
		}
	}

	var primary *Slot
	if opts.Date != "" {
		for _, p := range Periods {
			if opts.Period.Valid() && p != opts.Period {
				continue
			}
			s := Slot{Date: opts.Date, Period: p}
			if e.free(counts, s) {
				primary = &s
				break
			}
		}
	} else if len(freeSlots) > 0 {
		primary = &freeSlots[0]
	}
	if primary == nil {
		return nil, nil
	}

	sug := &Suggestion{Primary: *primary}
	for _, s := range freeSlots {
		if s == *primary {
			continue
		}
		if len(sug.Alternatives) >= maxAlternatives {
			break
		}
		sug.Alternatives = append(sug.Alternatives, s)
	}
	e.logger.Debug("scheduling suggestion computed",
		"order_id", order.ID,
		"primary", sug.Primary.Date+"/"+string(sug.Primary.Period),
		"alternatives", len(sug.Alternatives),
	)
	return sug, nil
}

// Check reports whether the order can be booked on date. An empty period means any period.
func (e *Engine) Check(ctx context.Context, order Order, date string, period Period) (DayAvailability, error) {
	d, err := ParseDate(date)
	if err != nil {
		return DayAvailability{}, ErrInvalidDate
	}
	w := e.Window(order)
	av := DayAvailability{
		Date:    date,
		Weekday: WeekdayName(date),
		Weekend: IsWeekend(d),
		Window:  w,
		InRange: w.Contains(date),
	}
	if av.Weekend || !av.InRange {
		return av, nil
	}

	counts, err := e.occupancy(ctx, order, date, date)
	if err != nil {
		return av, err
	}
	if period.Valid() {
		av.Available = e.free(counts, Slot{Date: date, Period: period})
		if other := period.Other(); e.free(counts, Slot{Date: date, Period: other}) {
			av.OtherPeriods = []Period{other}
		}
		return av, nil
	}
	for _, p := range Periods {
		if e.free(counts, Slot{Date: date, Period: p}) {
			av.OtherPeriods = append(av.OtherPeriods, p)
		}
	}
	av.Available = len(av.OtherPeriods) > 0
	return av, nil
}

func containsDay(days []time.Time, d time.Time) bool {
	for _, x := range days {
		if x.Equal(d) {
			return true
		}
	}
	return false
}
