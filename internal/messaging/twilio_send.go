package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carlaherrera/apina-front/pkg/logging"
)

var twilioSendTracer = otel.Tracer("apina.internal.messaging.twilio_send")

const defaultTwilioAPI = "https://api.twilio.com"

// OutboundMessage is a single WhatsApp message. Exactly one of Body or
// MediaURL is normally set; Twilio accepts both.
type OutboundMessage struct {
	To       string
	From     string
	Body     string
	MediaURL string
}

// TwilioSender posts WhatsApp messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	backoff    func(attempt int) time.Duration
}

// NewTwilioSender builds a sender with sane defaults. defaultFrom is used
// when a message has no From.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       WhatsAppAddress(defaultFrom),
		baseURL:    defaultTwilioAPI,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Component("twilio-sender"),
		backoff: func(int) time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
	}
}

// Send dispatches one message, retrying transient failures. It returns the
// Twilio message SID.
func (s *TwilioSender) Send(ctx context.Context, msg OutboundMessage) (string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", errors.New("messaging: twilio credentials missing")
	}
	if msg.To == "" {
		return "", errors.New("messaging: to required")
	}
	if msg.From == "" {
		msg.From = s.from
	}
	if msg.From == "" {
		return "", errors.New("messaging: from required")
	}
	if strings.TrimSpace(msg.Body) == "" && msg.MediaURL == "" {
		return "", errors.New("messaging: body or media required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("apina.to", msg.To),
		attribute.Bool("apina.media", msg.MediaURL != ""),
	)

	payload := url.Values{}
	payload.Set("To", WhatsAppAddress(msg.To))
	payload.Set("From", WhatsAppAddress(msg.From))
	if msg.Body != "" {
		payload.Set("Body", msg.Body)
	}
	if msg.MediaURL != "" {
		payload.Set("MediaUrl", msg.MediaURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID string `json:"sid"`
				}
				_ = json.Unmarshal(body, &parsed)
				s.logger.Info("whatsapp message sent", "to", msg.To, "sid", parsed.SID, "media", msg.MediaURL != "")
				return parsed.SID, nil
			}
			lastErr = fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < 3 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = 3
			case <-time.After(s.backoff(attempt)):
			}
		}
	}

	span.RecordError(lastErr)
	return "", lastErr
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
