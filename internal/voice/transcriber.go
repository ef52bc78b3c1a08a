package voice

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/carlaherrera/apina-front/pkg/logging"
	"google.golang.org/api/option"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleTranscriber turns voice notes into text with Cloud Speech-to-Text.
type GoogleTranscriber struct {
	recognize recognizeFunc
	language  string
	logger    *logging.Logger
	close     func() error
}

// NewGoogleTranscriber dials the speech API. An empty credentialsFile uses
// application default credentials.
func NewGoogleTranscriber(ctx context.Context, credentialsFile, language string, logger *logging.Logger) (*GoogleTranscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("voice: create speech client: %w", err)
	}
	t := newTranscriber(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}, language, logger)
	t.close = client.Close
	return t, nil
}

func newTranscriber(fn recognizeFunc, language string, logger *logging.Logger) *GoogleTranscriber {
	if language == "" {
		language = "pt-BR"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleTranscriber{recognize: fn, language: language, logger: logger, close: func() error { return nil }}
}

// Transcribe returns the best transcript, or "" when nothing was recognized.
func (t *GoogleTranscriber) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	ctx, span := voiceTracer.Start(ctx, "voice.transcribe")
	defer span.End()

	if len(audio) == 0 {
		return "", errors.New("voice: empty audio")
	}
	cfg := recognitionConfig(contentType)
	cfg.LanguageCode = t.language
	cfg.EnableAutomaticPunctuation = true

	resp, err := t.recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("voice: speech recognition failed: %w", err)
	}

	var parts []string
	for _, r := range resp.GetResults() {
		if alts := r.GetAlternatives(); len(alts) > 0 {
			if s := strings.TrimSpace(alts[0].GetTranscript()); s != "" {
				parts = append(parts, s)
			}
		}
	}
	text := strings.Join(parts, " ")
	t.logger.Debug("voice note transcribed", "bytes", len(audio), "content_type", contentType, "chars", len(text))
	return text, nil
}

// Close releases the underlying client.
func (t *GoogleTranscriber) Close() error {
	return t.close()
}

// recognitionConfig maps WhatsApp media types to speech encodings; unknown
// types are left for the API to detect from the container header.
func recognitionConfig(contentType string) *speechpb.RecognitionConfig {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "audio/ogg", "audio/opus":
		return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_OGG_OPUS, SampleRateHertz: 16000}
	case "audio/amr":
		return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_AMR, SampleRateHertz: 8000}
	case "audio/webm":
		return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_WEBM_OPUS, SampleRateHertz: 48000}
	case "audio/flac", "audio/x-flac":
		return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_FLAC}
	default:
		return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_ENCODING_UNSPECIFIED}
	}
}
