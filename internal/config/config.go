package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Twilio / WhatsApp
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppNumber    string
	TwilioValidateSignature bool
	RespondWithAudio        bool

	// IXC Soft CRM
	IXCBaseURL string
	IXCToken   string
	IXCTimeout time.Duration

	// Scheduling
	Timezone              string
	SlotCapacity          int
	DefaultSLAHours       int
	SchedulingHorizonDays int

	// Language models
	LLMProvider    string
	LLMFallback    bool
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string

	// Sessions
	SessionBackend     string
	SessionTTL         time.Duration
	SessionLockTimeout time.Duration
	SessionLockTTL     time.Duration
	SessionsTable      string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool

	// Diagnostics and persistence
	DatabaseURL      string
	SnapshotQueueURL string
	DedupeMessages   bool

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Voice
	SpeechCredentialsFile string
	SpeechLanguage        string
	ElevenLabsAPIKey      string
	ElevenLabsVoiceID     string
	AudioBucket           string
	AudioURLTTL           time.Duration

	// HTTP
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppNumber:    strings.TrimSpace(getEnv("TWILIO_WHATSAPP_NUMBER", "")),
		TwilioValidateSignature: getEnvAsBool("TWILIO_VALIDATE_SIGNATURE", false),
		RespondWithAudio:        getEnvAsBool("RESPONDER_COM_AUDIO", false),

		IXCBaseURL: strings.TrimRight(getEnv("IXC_BASE_URL", ""), "/"),
		IXCToken:   getEnv("IXC_TOKEN", ""),
		IXCTimeout: getEnvAsDuration("IXC_TIMEOUT", 20*time.Second),

		Timezone:              getEnv("SCHEDULING_TIMEZONE", "America/Sao_Paulo"),
		SlotCapacity:          getEnvAsInt("SLOT_CAPACITY", 1),
		DefaultSLAHours:       getEnvAsInt("DEFAULT_SLA_HOURS", 72),
		SchedulingHorizonDays: getEnvAsInt("SCHEDULING_HORIZON_DAYS", 10),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		LLMFallback:    getEnvAsBool("LLM_FALLBACK", false),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		SessionBackend:     strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 0),
		SessionLockTimeout: getEnvAsDuration("SESSION_LOCK_TIMEOUT", 30*time.Second),
		SessionLockTTL:     getEnvAsDuration("SESSION_LOCK_TTL", 2*time.Minute),
		SessionsTable:      getEnv("SESSIONS_TABLE", "whatsapp_sessions"),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SnapshotQueueURL: getEnv("SNAPSHOT_QUEUE_URL", ""),
		DedupeMessages:   getEnvAsBool("DEDUPE_MESSAGES", true),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SpeechCredentialsFile: getEnv("GOOGLE_SPEECH_CREDENTIALS", ""),
		SpeechLanguage:        getEnv("SPEECH_LANGUAGE", "pt-BR"),
		ElevenLabsAPIKey:      getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		AudioBucket:           getEnv("AUDIO_BUCKET", ""),
		AudioURLTTL:           getEnvAsDuration("AUDIO_URL_TTL", 15*time.Minute),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// Validate reports settings that make the webhook unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.TwilioWhatsAppNumber == "" {
		errs = append(errs, errors.New("TWILIO_WHATSAPP_NUMBER is required"))
	}
	if c.IXCBaseURL == "" || c.IXCToken == "" {
		errs = append(errs, errors.New("IXC_BASE_URL and IXC_TOKEN are required"))
	}
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for LLM_PROVIDER=gemini"))
		}
	case "bedrock":
		if c.BedrockModelID == "" {
			errs = append(errs, errors.New("BEDROCK_MODEL_ID is required for LLM_PROVIDER=bedrock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	switch c.SessionBackend {
	case "memory", "redis", "dynamodb":
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}
	if c.RespondWithAudio && (c.ElevenLabsAPIKey == "" || c.AudioBucket == "") {
		errs = append(errs, errors.New("RESPONDER_COM_AUDIO requires ELEVENLABS_API_KEY and AUDIO_BUCKET"))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
