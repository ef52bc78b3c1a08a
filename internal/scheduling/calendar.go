package scheduling

import (
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Period is a half-day visit window.
type Period string

const (
	Morning   Period = "M"
	Afternoon Period = "T"
)

// Periods lists periods in offer order.
var Periods = []Period{Morning, Afternoon}

// ParsePeriod accepts M/T in any case; anything else yields "".
func ParsePeriod(s string) Period {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M":
		return Morning
	case "T":
		return Afternoon
	}
	return ""
}

func (p Period) Valid() bool { return p == Morning || p == Afternoon }

// Label is the Portuguese name of the period.
func (p Period) Label() string {
	switch p {
	case Morning:
		return "manhã"
	case Afternoon:
		return "tarde"
	}
	return ""
}

// ClockTime is the visit start written to the CRM.
func (p Period) ClockTime() string {
	if p == Morning {
		return "09:00:00"
	}
	return "14:00:00"
}

// Other returns the opposite half of the day.
func (p Period) Other() Period {
	if p == Morning {
		return Afternoon
	}
	return Morning
}

// Slot is a (date, period) pair.
type Slot struct {
	Date   string `json:"date"`
	Period Period `json:"period"`
}

// Timestamp renders the slot as the CRM's agenda timestamp.
func (s Slot) Timestamp() string {
	return s.Date + " " + s.Period.ClockTime()
}

// ParseDate parses YYYY-MM-DD, rejecting impossible calendar dates.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// FormatDate renders YYYY-MM-DD as DD/MM/YYYY. Unparseable input is returned unchanged.
func FormatDate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}

var weekdayNames = [...]string{
	"domingo", "segunda-feira", "terça-feira", "quarta-feira",
	"quinta-feira", "sexta-feira", "sábado",
}

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// WeekdayName returns the pt-BR weekday of a YYYY-MM-DD date.
func WeekdayName(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return ""
	}
	return weekdayNames[t.Weekday()]
}

// MonthName returns the pt-BR month name.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func nextBusinessDay(t time.Time) time.Time {
	t = t.AddDate(0, 0, 1)
	for IsWeekend(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func previousBusinessDay(t time.Time) time.Time {
	for IsWeekend(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

func addBusinessDays(t time.Time, n int) time.Time {
	for i := 0; i < n; i++ {
		t = nextBusinessDay(t)
	}
	return t
}

// DistinctAlternatives drops duplicates and the primary slot, keeping at most limit entries.
func DistinctAlternatives(primary Slot, alternatives []Slot, limit int) []Slot {
	seen := map[Slot]bool{primary: true}
	var out []Slot
	for _, s := range alternatives {
		if len(out) >= limit {
			break
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// GroupByDay keeps at most perDay periods for each date and total entries overall,
// preserving input order.
func GroupByDay(slots []Slot, perDay, total int) []Slot {
	counts := make(map[string]int)
	seen := make(map[Slot]bool)
	var out []Slot
	for _, s := range slots {
		if len(out) >= total {
			break
		}
		if seen[s] || counts[s.Date] >= perDay {
			continue
		}
		seen[s] = true
		counts[s.Date]++
		out = append(out, s)
	}
	return out
}

// DistinctDates returns the dates of slots in order, without repeats, capped at limit.
func DistinctDates(slots []Slot, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range slots {
		if len(out) >= limit {
			break
		}
		if seen[s.Date] {
			continue
		}
		seen[s.Date] = true
		out = append(out, s.Date)
	}
	return out
}
