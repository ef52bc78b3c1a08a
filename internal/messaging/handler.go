package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carlaherrera/apina-front/internal/conversation"
	"github.com/carlaherrera/apina-front/internal/events"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

var twilioTracer = otel.Tracer("apina.internal.messaging.twilio")

// User-facing texts for inbound problems the conversation never sees.
const (
	NotUnderstoodMessage     = "Não entendi o que você disse ou enviou."
	AudioUntranscribedText   = "(Áudio recebido, mas não foi possível transcrever)"
	AudioProcessingErrorText = "Recebi um áudio, mas ocorreu um erro ao tentar processá-lo."
	ApologyMessage           = "Desculpe, ocorreu um erro interno ao processar sua solicitação. Tente novamente mais tarde."
)

// TurnHandler runs one conversational turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sender, message string) (*conversation.TurnResult, error)
}

// Sender delivers WhatsApp messages.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) (string, error)
}

// Deduper claims provider message ids so Twilio retries are processed once.
type Deduper interface {
	Claim(ctx context.Context, provider, messageID string) (bool, error)
	Release(ctx context.Context, provider, messageID string) error
}

// MediaFetcher downloads an inbound attachment.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaURL string) ([]byte, string, error)
}

// Transcriber turns a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// Synthesizer renders a reply as audio and returns a public URL.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Metrics receives webhook counters. *metrics.AssistantMetrics satisfies it.
type Metrics interface {
	ObserveInbound(kind, status string)
	ObserveOutbound(replyType, status string)
	ObserveWebhookLatency(kind string, seconds float64)
}

type nopMetrics struct{}

func (nopMetrics) ObserveInbound(string, string)         {}
func (nopMetrics) ObserveOutbound(string, string)        {}
func (nopMetrics) ObserveWebhookLatency(string, float64) {}

// HandlerConfig wires the webhook. Turns and Sender are required; voice
// collaborators and Dedupe are optional.
type HandlerConfig struct {
	Turns             TurnHandler
	Sender            Sender
	WhatsAppNumber    string
	AuthToken         string
	ValidateSignature bool
	PublicBaseURL     string
	RespondWithAudio  bool

	Dedupe      Deduper
	Media       MediaFetcher
	Transcriber Transcriber
	Synthesizer Synthesizer
	Metrics     Metrics
	Logger      *logging.Logger
}

// Handler handles the WhatsApp webhook.
type Handler struct {
	turns             TurnHandler
	sender            Sender
	number            string
	authToken         string
	validateSignature bool
	publicBaseURL     string
	respondWithAudio  bool

	dedupe      Deduper
	media       MediaFetcher
	transcriber Transcriber
	synthesizer Synthesizer
	metrics     Metrics
	logger      *logging.Logger
}

// NewHandler creates a new messaging handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Turns == nil {
		panic("messaging: turn handler cannot be nil")
	}
	if cfg.Sender == nil {
		panic("messaging: sender cannot be nil")
	}
	if cfg.ValidateSignature && cfg.AuthToken == "" {
		panic("messaging: signature validation requires an auth token")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	var m Metrics = nopMetrics{}
	if cfg.Metrics != nil {
		m = cfg.Metrics
	}
	return &Handler{
		turns:             cfg.Turns,
		sender:            cfg.Sender,
		number:            strings.TrimSpace(cfg.WhatsAppNumber),
		authToken:         cfg.AuthToken,
		validateSignature: cfg.ValidateSignature,
		publicBaseURL:     strings.TrimRight(cfg.PublicBaseURL, "/"),
		respondWithAudio:  cfg.RespondWithAudio,
		dedupe:            cfg.Dedupe,
		media:             cfg.Media,
		transcriber:       cfg.Transcriber,
		synthesizer:       cfg.Synthesizer,
		metrics:           m,
		logger:            logger.Component("webhook"),
	}
}

// WebhookResponse is the JSON body returned to Twilio after a processed turn.
type WebhookResponse struct {
	Status                string         `json:"status"`
	Recipient             string         `json:"recipient"`
	IncomingMessage       string         `json:"incomingMessage"`
	DetectedIntent        string         `json:"detectedIntent"`
	PreviousClientMessage *string        `json:"previousClientMessage"`
	PreviousBotMessage    *string        `json:"previousBotMessage"`
	Response              ReplyView      `json:"response"`
	Session               SessionSummary `json:"session"`
}

// ReplyView describes what was sent back.
type ReplyView struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	TextEquivalent string `json:"textEquivalent"`
}

// SessionSummary is the externally visible slice of the session.
type SessionSummary struct {
	CurrentStep     string  `json:"currentStep"`
	TaxID           string  `json:"cpf,omitempty"`
	CustomerID      string  `json:"clienteId,omitempty"`
	OrderID         *string `json:"osId"`
	ScheduledDate   string  `json:"dataAgendamento,omitempty"`
	ScheduledPeriod string  `json:"periodoAgendamento,omitempty"`
}

// TwilioWebhook handles POST /webhook and /messaging/twilio/webhook.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	start := time.Now()
	kind := "text"
	defer func() {
		h.metrics.ObserveWebhookLatency(kind, time.Since(start).Seconds())
	}()

	if h.number == "" {
		err := errors.New("TWILIO_WHATSAPP_NUMBER not configured")
		h.logger.Error("cannot reply without a sender number", "error", err)
		http.Error(w, "Erro de configuração do servidor: TWILIO_WHATSAPP_NUMBER não definido.", http.StatusInternalServerError)
		span.RecordError(err)
		return
	}

	if h.validateSignature {
		if !ValidateTwilioSignature(r, h.authToken, h.webhookURL(r)) {
			h.logger.Warn("invalid twilio signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			span.RecordError(errors.New("invalid twilio signature"))
			return
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	span.SetAttributes(
		attribute.String("apina.twilio.message_sid", webhook.MessageSid),
		attribute.String("apina.twilio.from", webhook.From),
	)

	if webhook.IsStatusCallback() {
		kind = "status"
		h.metrics.ObserveInbound(kind, "ignored")
		h.logger.Debug("ignoring twilio status callback", "message_sid", webhook.MessageSid, "status", webhook.MessageStatus+webhook.SmsStatus, "level", webhook.Level)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook de status/erro recebido e ignorado."))
		return
	}

	if webhook.From == "" {
		err := errors.New("missing sender")
		h.logger.Error("invalid twilio payload", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	if webhook.Body == "" && webhook.HasMedia() {
		kind = "audio"
	}

	claimed := false
	if h.dedupe != nil && webhook.MessageSid != "" {
		ok, err := h.dedupe.Claim(ctx, events.ProviderTwilio, webhook.MessageSid)
		switch {
		case err != nil:
			h.logger.Warn("message de-duplication unavailable", "error", err, "message_sid", webhook.MessageSid)
		case !ok:
			h.metrics.ObserveInbound(kind, "duplicate")
			h.logger.Info("duplicate twilio delivery ignored", "message_sid", webhook.MessageSid)
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		default:
			claimed = true
		}
	}

	message := webhook.Body
	if message == "" && webhook.HasMedia() {
		message = h.transcribe(ctx, webhook)
	}
	if message == "" {
		message = NotUnderstoodMessage
	}

	result, err := h.turns.HandleTurn(ctx, webhook.From, message)
	if err != nil {
		h.logger.Error("turn failed", "error", err, "from", webhook.From, "message_sid", webhook.MessageSid)
		span.RecordError(err)
		h.metrics.ObserveInbound(kind, "error")
		if claimed {
			if rerr := h.dedupe.Release(context.WithoutCancel(ctx), events.ProviderTwilio, webhook.MessageSid); rerr != nil {
				h.logger.Warn("failed to release message claim", "error", rerr, "message_sid", webhook.MessageSid)
			}
		}
		h.apologize(ctx, webhook.From)
		http.Error(w, "Erro interno do servidor", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveInbound(kind, "processed")

	reply := ReplyView{Type: "text", Content: result.Reply, TextEquivalent: result.Reply}
	out := OutboundMessage{To: webhook.From, From: h.number, Body: result.Reply}
	if h.respondWithAudio && h.synthesizer != nil {
		audioURL, err := h.synthesizer.Synthesize(ctx, result.Reply)
		if err != nil {
			h.logger.Warn("reply synthesis failed, sending text", "error", err, "from", webhook.From)
		} else {
			out.Body = ""
			out.MediaURL = audioURL
			reply.Type = "audio"
			reply.Content = audioURL
		}
	}

	if _, err := h.sender.Send(ctx, out); err != nil {
		h.metrics.ObserveOutbound(reply.Type, "error")
		h.logger.Error("failed to send reply", "error", err, "to", webhook.From)
		span.RecordError(err)
		http.Error(w, "Erro interno do servidor", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveOutbound(reply.Type, "sent")

	writeJSON(w, http.StatusOK, WebhookResponse{
		Status:                "ok",
		Recipient:             webhook.From,
		IncomingMessage:       message,
		DetectedIntent:        result.Intent,
		PreviousClientMessage: nullable(result.PreviousUserMessage),
		PreviousBotMessage:    nullable(result.PreviousAssistantMessage),
		Response:              reply,
		Session:               summarize(result.Session),
	})
}

// transcribe returns the text of a voice note, or one of the fixed
// placeholders when that is not possible.
func (h *Handler) transcribe(ctx context.Context, webhook *TwilioWebhookRequest) string {
	if h.media == nil || h.transcriber == nil {
		h.logger.Warn("received media but voice transcription is not configured", "from", webhook.From)
		return AudioProcessingErrorText
	}
	ctx, span := twilioTracer.Start(ctx, "messaging.twilio.transcribe")
	defer span.End()

	audio, contentType, err := h.media.Fetch(ctx, webhook.MediaURL)
	if err != nil {
		h.logger.Error("failed to download media", "error", err, "from", webhook.From)
		span.RecordError(err)
		return AudioProcessingErrorText
	}
	if webhook.MediaContentType != "" {
		contentType = webhook.MediaContentType
	}
	text, err := h.transcriber.Transcribe(ctx, audio, contentType)
	if err != nil {
		h.logger.Error("failed to transcribe media", "error", err, "from", webhook.From, "content_type", contentType)
		span.RecordError(err)
		return AudioProcessingErrorText
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return AudioUntranscribedText
	}
	h.logger.Info("voice note transcribed", "from", webhook.From, "chars", len(text))
	return text
}

func (h *Handler) apologize(ctx context.Context, to string) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := h.sender.Send(sendCtx, OutboundMessage{To: to, From: h.number, Body: ApologyMessage}); err != nil {
		h.metrics.ObserveOutbound("apology", "error")
		h.logger.Warn("failed to send apology", "error", err, "to", to)
		return
	}
	h.metrics.ObserveOutbound("apology", "sent")
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" && r.URL != nil {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

func summarize(s *conversation.Session) SessionSummary {
	if s == nil {
		return SessionSummary{}
	}
	out := SessionSummary{
		CurrentStep:     string(s.Step),
		TaxID:           s.TaxID,
		CustomerID:      s.CustomerID,
		ScheduledDate:   s.CandidateDate,
		ScheduledPeriod: string(s.CandidatePeriod),
	}
	if s.SelectedOrder != nil {
		id := s.SelectedOrder.ID
		out.OrderID = &id
	}
	return out
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
