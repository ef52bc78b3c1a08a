package scheduling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanner struct {
	suggestion *Suggestion
	day        DayAvailability
	err        error
}

func (s *stubPlanner) Suggest(context.Context, Order, SuggestOptions) (*Suggestion, error) {
	return s.suggestion, s.err
}

func (s *stubPlanner) Check(_ context.Context, _ Order, date string, _ Period) (DayAvailability, error) {
	d := s.day
	d.Date = date
	return d, s.err
}

func slot(date string, p Period) Slot { return Slot{Date: date, Period: p} }

func TestProposeDeduplicatesAlternatives(t *testing.T) {
	p := &stubPlanner{suggestion: &Suggestion{
		Primary: slot("2024-07-23", Morning),
		Alternatives: []Slot{
			slot("2024-07-23", Morning),
			slot("2024-07-23", Afternoon),
			slot("2024-07-23", Afternoon),
			slot("2024-07-24", Morning),
			slot("2024-07-24", Afternoon),
			slot("2024-07-25", Morning),
		},
	}}
	n := NewNegotiator(p, nil)

	prop, err := n.Propose(context.Background(), Order{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, slot("2024-07-23", Morning), prop.Primary)
	assert.Equal(t, []Slot{
		slot("2024-07-23", Afternoon),
		slot("2024-07-24", Morning),
		slot("2024-07-24", Afternoon),
	}, prop.Alternatives)
	assert.Len(t, prop.ByDay, 4)
}

func TestProposeGroupsTwoPerDay(t *testing.T) {
	var alts []Slot
	for _, d := range []string{"2024-07-23", "2024-07-24", "2024-07-25", "2024-07-26"} {
		alts = append(alts, slot(d, Morning), slot(d, Afternoon))
	}
	n := NewNegotiator(&stubPlanner{suggestion: &Suggestion{Primary: slot("2024-07-22", Morning), Alternatives: alts}}, nil)

	prop, err := n.Propose(context.Background(), Order{})
	require.NoError(t, err)
	assert.Len(t, prop.ByDay, 5)
	assert.Equal(t, slot("2024-07-25", Morning), prop.ByDay[4])
}

func TestProposeNoAvailability(t *testing.T) {
	n := NewNegotiator(&stubPlanner{}, nil)
	_, err := n.Propose(context.Background(), Order{})
	assert.ErrorIs(t, err, ErrNoAvailability)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		planner  *stubPlanner
		outcome  Outcome
		other    Period
		fallback *Slot
	}{
		{
			name:    "weekend",
			planner: &stubPlanner{day: DayAvailability{Weekend: true, InRange: true}},
			outcome: OutcomeWeekend,
		},
		{
			name: "weekend with fallback",
			planner: &stubPlanner{
				day:        DayAvailability{Weekend: true, InRange: true},
				suggestion: &Suggestion{Primary: slot("2024-07-29", Morning)},
			},
			outcome:  OutcomeWeekend,
			fallback: &Slot{Date: "2024-07-29", Period: Morning},
		},
		{
			name:    "out of range",
			planner: &stubPlanner{day: DayAvailability{Window: Window{Min: "2024-07-23"}}},
			outcome: OutcomeOutOfRange,
		},
		{
			name: "available",
			planner: &stubPlanner{
				day:        DayAvailability{InRange: true, Available: true},
				suggestion: &Suggestion{Primary: slot("2024-07-29", Morning)},
			},
			outcome: OutcomeOK,
		},
		{
			name:    "other period free",
			planner: &stubPlanner{day: DayAvailability{InRange: true, OtherPeriods: []Period{Afternoon}}},
			outcome: OutcomeUnavailable,
			other:   Afternoon,
		},
		{
			name: "falls back to best slot",
			planner: &stubPlanner{
				day:        DayAvailability{InRange: true},
				suggestion: &Suggestion{Primary: slot("2024-07-25", Afternoon)},
			},
			outcome:  OutcomeUnavailable,
			fallback: &Slot{Date: "2024-07-25", Period: Afternoon},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewNegotiator(tt.planner, nil).Validate(ctx, Order{}, "2024-07-24", Morning)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, v.Outcome)
			assert.Equal(t, tt.other, v.OtherPeriod)
			assert.Equal(t, tt.fallback, v.Fallback)
		})
	}
}

func TestCheckDate(t *testing.T) {
	p := &stubPlanner{suggestion: &Suggestion{
		Primary: slot("2024-07-23", Morning),
		Alternatives: []Slot{
			slot("2024-07-24", Afternoon),
			slot("2024-07-25", Morning),
			slot("2024-07-25", Afternoon),
		},
	}}
	n := NewNegotiator(p, nil)
	ctx := context.Background()

	dc, err := n.CheckDate(ctx, Order{}, "2024-07-24", Afternoon)
	require.NoError(t, err)
	assert.Equal(t, DateHit, dc.Outcome)

	dc, err = n.CheckDate(ctx, Order{}, "2024-07-24", Morning)
	require.NoError(t, err)
	assert.Equal(t, DateOtherPeriod, dc.Outcome)
	assert.Equal(t, []Period{Afternoon}, dc.Periods)

	dc, err = n.CheckDate(ctx, Order{}, "2024-07-25", "")
	require.NoError(t, err)
	assert.Equal(t, DateAnyPeriod, dc.Outcome)
	assert.Equal(t, []Period{Morning, Afternoon}, dc.Periods)

	dc, err = n.CheckDate(ctx, Order{}, "2024-07-26", Morning)
	require.NoError(t, err)
	assert.Equal(t, DateMiss, dc.Outcome)
	assert.Equal(t, []string{"2024-07-23", "2024-07-24", "2024-07-25"}, dc.Dates)
}
