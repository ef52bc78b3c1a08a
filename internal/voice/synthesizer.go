package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/carlaherrera/apina-front/pkg/logging"
	"github.com/google/uuid"
)

const (
	defaultElevenLabsURL = "https://api.elevenlabs.io"
	defaultTTSModel      = "eleven_multilingual_v2"
)

// ObjectPutter is the S3 subset used to store synthesized audio.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// URLPresigner signs temporary download links for stored audio.
type URLPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// SynthesizerConfig wires an ElevenLabs synthesizer.
type SynthesizerConfig struct {
	APIKey  string
	VoiceID string
	Model   string
	BaseURL string
	Bucket  string
	// URLTTL is how long the presigned link stays valid.
	URLTTL     time.Duration
	HTTPClient *http.Client
	Objects    ObjectPutter
	Presigner  URLPresigner
	Logger     *logging.Logger
}

// Synthesizer renders replies as speech and publishes them at a URL Twilio can fetch.
type Synthesizer struct {
	cfg SynthesizerConfig
}

// NewSynthesizer validates the configuration.
func NewSynthesizer(cfg SynthesizerConfig) (*Synthesizer, error) {
	if cfg.APIKey == "" || cfg.VoiceID == "" {
		return nil, errors.New("voice: elevenlabs api key and voice id are required")
	}
	if cfg.Bucket == "" || cfg.Objects == nil || cfg.Presigner == nil {
		return nil, errors.New("voice: audio bucket and s3 clients are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultElevenLabsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultTTSModel
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Synthesizer{cfg: cfg}, nil
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize returns a presigned URL for an MP3 rendering of text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	ctx, span := voiceTracer.Start(ctx, "voice.synthesize")
	defer span.End()

	audio, err := s.render(ctx, text)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	key := fmt.Sprintf("respostas/%s/%s.mp3", time.Now().UTC().Format("2006/01/02"), uuid.NewString())
	if _, err := s.cfg.Objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(audio),
		ContentType: aws.String("audio/mpeg"),
	}); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("voice: s3 put %s: %w", key, err)
	}

	signed, err := s.cfg.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.URLTTL))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("voice: presign %s: %w", key, err)
	}
	s.cfg.Logger.Debug("reply audio published", "key", key, "bytes", len(audio))
	return signed.URL, nil
}

func (s *Synthesizer) render(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("voice: nothing to synthesize")
	}
	payload, err := json.Marshal(ttsRequest{Text: text, ModelID: s.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("voice: marshal tts request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", s.cfg.BaseURL, s.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("voice: build tts request: %w", err)
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice: tts request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("voice: tts status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voice: read tts audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("voice: tts returned no audio")
	}
	return audio, nil
}
