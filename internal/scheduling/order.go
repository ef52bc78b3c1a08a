package scheduling

import "strings"

// OrderStatus is the IXC service-order status code.
type OrderStatus string

const (
	StatusOpen       OrderStatus = "A"
	StatusScheduled  OrderStatus = "AG"
	StatusInProgress OrderStatus = "EN"
)

// Label renders the status for customers. Unknown codes are returned as-is.
func (s OrderStatus) Label() string {
	switch s {
	case StatusOpen:
		return "Aberta"
	case StatusScheduled:
		return "Agendada"
	case StatusInProgress:
		return "Em andamento"
	default:
		return string(s)
	}
}

// Active reports whether the order can still be negotiated with the customer.
func (s OrderStatus) Active() bool {
	return s == StatusOpen || s == StatusScheduled || s == StatusInProgress
}

const zeroTimestamp = "0000-00-00 00:00:00"

// Order is a field-service order (OS) as the assistant sees it.
type Order struct {
	ID              string      `json:"id" dynamodbav:"id"`
	CustomerID      string      `json:"customerId,omitempty" dynamodbav:"customerId,omitempty"`
	Subject         string      `json:"subject,omitempty" dynamodbav:"subject,omitempty"`
	Description     string      `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Status          OrderStatus `json:"status" dynamodbav:"status"`
	ScheduledAt     string      `json:"scheduledAt,omitempty" dynamodbav:"scheduledAt,omitempty"`
	ScheduledPeriod Period      `json:"scheduledPeriod,omitempty" dynamodbav:"scheduledPeriod,omitempty"`
	SLAHours        int         `json:"slaHours,omitempty" dynamodbav:"slaHours,omitempty"`
	OpenedAt        string      `json:"openedAt,omitempty" dynamodbav:"openedAt,omitempty"`
	Address         string      `json:"address,omitempty" dynamodbav:"address,omitempty"`
	SectorID        string      `json:"sectorId,omitempty" dynamodbav:"sectorId,omitempty"`
}

// Label is the subject used in sentences about the order.
func (o Order) Label() string {
	if s := strings.TrimSpace(o.Subject); s != "" {
		return s
	}
	if s := strings.TrimSpace(o.Description); s != "" {
		return s
	}
	return "OS " + o.ID
}

// Summary is the description used in order listings.
func (o Order) Summary() string {
	if s := strings.TrimSpace(o.Subject); s != "" {
		return s
	}
	if s := strings.TrimSpace(o.Description); s != "" {
		return s
	}
	return "Sem descrição"
}

// IsScheduled reports whether a visit is already booked.
func (o Order) IsScheduled() bool {
	return o.Status == StatusScheduled
}

// ScheduledDate returns the booked day as YYYY-MM-DD, or "" when none.
func (o Order) ScheduledDate() string {
	return datePart(o.ScheduledAt)
}

// OpenedDate returns the opening day as YYYY-MM-DD, or "" when unknown.
func (o Order) OpenedDate() string {
	return datePart(o.OpenedAt)
}

func datePart(ts string) string {
	ts = strings.TrimSpace(ts)
	if ts == "" || ts == zeroTimestamp || strings.HasPrefix(ts, "0000-00-00") || len(ts) < len(DateLayout) {
		return ""
	}
	return ts[:len(DateLayout)]
}
