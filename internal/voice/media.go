package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

// ErrMediaTooLarge is returned when an attachment exceeds the download limit.
var ErrMediaTooLarge = errors.New("voice: media exceeds size limit")

const defaultMaxMediaBytes = 10 << 20

var voiceTracer = otel.Tracer("apina-front.voice")

// MediaFetcher downloads inbound attachments from Twilio's media URLs.
type MediaFetcher struct {
	accountSID string
	authToken  string
	client     *http.Client
	maxBytes   int64
}

// NewMediaFetcher builds a fetcher authenticated with the account credentials.
func NewMediaFetcher(accountSID, authToken string, client *http.Client) *MediaFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &MediaFetcher{
		accountSID: accountSID,
		authToken:  authToken,
		client:     client,
		maxBytes:   defaultMaxMediaBytes,
	}
}

// Fetch returns the attachment body and its content type.
func (f *MediaFetcher) Fetch(ctx context.Context, mediaURL string) ([]byte, string, error) {
	ctx, span := voiceTracer.Start(ctx, "voice.media.fetch")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("voice: build media request: %w", err)
	}
	if f.accountSID != "" {
		req.SetBasicAuth(f.accountSID, f.authToken)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("voice: download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("voice: media download status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("voice: read media: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", ErrMediaTooLarge
	}
	return body, resp.Header.Get("Content-Type"), nil
}
