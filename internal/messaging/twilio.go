package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature validates that a request came from Twilio
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with the sorted form params.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// TwilioWebhookRequest is an inbound WhatsApp message or a delivery callback.
type TwilioWebhookRequest struct {
	MessageSid       string
	AccountSid       string
	From             string
	To               string
	Body             string
	NumMedia         string
	MediaURL         string
	MediaContentType string
	Level            string
	MessageStatus    string
	SmsStatus        string
}

// Lifecycle states Twilio reports for messages we sent. Inbound messages
// arrive with SmsStatus "received" and are not in this set.
var outboundStatuses = map[string]bool{
	"accepted":    true,
	"queued":      true,
	"sending":     true,
	"sent":        true,
	"delivered":   true,
	"undelivered": true,
	"failed":      true,
	"read":        true,
}

// IsStatusCallback reports delivery receipts and error notifications, which
// carry no user text.
func (w *TwilioWebhookRequest) IsStatusCallback() bool {
	if strings.EqualFold(w.Level, "ERROR") {
		return true
	}
	return outboundStatuses[strings.ToLower(w.MessageStatus)] || outboundStatuses[strings.ToLower(w.SmsStatus)]
}

// HasMedia reports whether the message carries an attachment.
func (w *TwilioWebhookRequest) HasMedia() bool {
	return w.MediaURL != ""
}

// ParseTwilioWebhook parses a Twilio webhook request
func ParseTwilioWebhook(r *http.Request) (*TwilioWebhookRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	return &TwilioWebhookRequest{
		MessageSid:       strings.TrimSpace(r.FormValue("MessageSid")),
		AccountSid:       r.FormValue("AccountSid"),
		From:             strings.TrimSpace(r.FormValue("From")),
		To:               strings.TrimSpace(r.FormValue("To")),
		Body:             strings.TrimSpace(r.FormValue("Body")),
		NumMedia:         r.FormValue("NumMedia"),
		MediaURL:         strings.TrimSpace(r.FormValue("MediaUrl0")),
		MediaContentType: r.FormValue("MediaContentType0"),
		Level:            r.FormValue("Level"),
		MessageStatus:    r.FormValue("MessageStatus"),
		SmsStatus:        r.FormValue("SmsStatus"),
	}, nil
}

// WhatsAppAddress prefixes a bare number with the whatsapp: channel.
func WhatsAppAddress(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
