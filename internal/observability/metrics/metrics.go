package metrics

import "github.com/prometheus/client_golang/prometheus"

// AssistantMetrics exposes counters/histograms for the WhatsApp assistant.
// It satisfies conversation.TurnObserver.
type AssistantMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	turnsTotal     *prometheus.CounterVec
	bookingsTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apina",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound Twilio webhooks by kind and outcome",
		}, []string{"kind", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apina",
			Subsystem: "webhook",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp replies",
		}, []string{"type", "status"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apina",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Dialog turns by classified intent",
		}, []string{"intent", "outcome"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apina",
			Subsystem: "conversation",
			Name:      "bookings_total",
			Help:      "Visit booking attempts against the CRM",
		}, []string{"outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apina",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.turnsTotal, m.bookingsTotal, m.webhookLatency)
	return m
}

func (m *AssistantMetrics) ObserveInbound(kind, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *AssistantMetrics) ObserveOutbound(replyType, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(replyType, status).Inc()
}

func (m *AssistantMetrics) ObserveWebhookLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(kind).Observe(seconds)
}

// ObserveTurn counts a turn; intent is empty when classification failed.
func (m *AssistantMetrics) ObserveTurn(intent, outcome string) {
	if m == nil {
		return
	}
	if intent == "" {
		intent = "unclassified"
	}
	m.turnsTotal.WithLabelValues(intent, outcome).Inc()
}

func (m *AssistantMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}
