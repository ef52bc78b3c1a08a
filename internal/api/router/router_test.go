package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carlaherrera/apina-front/internal/conversation"
	"github.com/carlaherrera/apina-front/internal/messaging"
	"github.com/carlaherrera/apina-front/internal/observability/metrics"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

type echoTurns struct{}

func (echoTurns) HandleTurn(_ context.Context, sender, message string) (*conversation.TurnResult, error) {
	return &conversation.TurnResult{Intent: "greeting", Reply: "eco: " + message, Session: conversation.NewSession(sender)}, nil
}

type discardSender struct{}

func (discardSender) Send(context.Context, messaging.OutboundMessage) (string, error) {
	return "SM1", nil
}

func newTestRouter(t *testing.T, rps float64, burst int) http.Handler {
	t.Helper()

	logger := logging.NewWithWriter("error", io.Discard)
	reg := prometheus.NewRegistry()
	m := metrics.NewAssistantMetrics(reg)
	handler := messaging.NewHandler(messaging.HandlerConfig{
		Turns:          echoTurns{},
		Sender:         discardSender{},
		WhatsAppNumber: "whatsapp:+551140028922",
		Metrics:        m,
		Logger:         logger,
	})

	return New(&Config{
		Logger:           logger,
		MessagingHandler: handler,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RateLimitRPS:     rps,
		RateLimitBurst:   burst,
	})
}

func postMessage(router http.Handler, path, body string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("From", "whatsapp:+5511999999999")
	form.Set("Body", body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected a request id header")
	}
}

func TestRouterWebhookRoutes(t *testing.T) {
	router := newTestRouter(t, 0, 0)

	for _, path := range []string{"/webhook", "/messaging/twilio/webhook"} {
		rr := postMessage(router, path, "oi")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (%s)", path, rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), `"eco: oi"`) {
			t.Fatalf("%s: unexpected body %s", path, rr.Body.String())
		}
	}
}

func TestRouterWebhookRejectsGet(t *testing.T) {
	router := newTestRouter(t, 0, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, 0, 0)
	postMessage(router, "/webhook", "oi")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "apina_webhook_inbound_total") {
		t.Fatalf("expected inbound counter in metrics output")
	}
}

func TestRouterRateLimitsWebhook(t *testing.T) {
	router := newTestRouter(t, 0.001, 1)

	if rr := postMessage(router, "/webhook", "oi"); rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}
	if rr := postMessage(router, "/webhook", "oi"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rr.Code)
	}

	// Health stays reachable.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rr.Code)
	}
}

func TestNewPanicsWithoutHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(&Config{})
}
