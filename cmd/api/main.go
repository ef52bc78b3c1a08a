package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carlaherrera/apina-front/cmd/mainconfig"
	"github.com/carlaherrera/apina-front/internal/api/router"
	appconfig "github.com/carlaherrera/apina-front/internal/config"
	"github.com/carlaherrera/apina-front/internal/conversation"
	"github.com/carlaherrera/apina-front/internal/events"
	"github.com/carlaherrera/apina-front/internal/ixc"
	"github.com/carlaherrera/apina-front/internal/messaging"
	"github.com/carlaherrera/apina-front/internal/nlu"
	"github.com/carlaherrera/apina-front/internal/observability/metrics"
	"github.com/carlaherrera/apina-front/internal/scheduling"
	"github.com/carlaherrera/apina-front/internal/voice"
	"github.com/carlaherrera/apina-front/pkg/logging"
)

func main() {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp scheduling assistant",
		"env", cfg.Env,
		"port", cfg.Port,
		"session_backend", cfg.SessionBackend,
		"llm_provider", cfg.LLMProvider,
	)
	if err := cfg.Validate(); err != nil {
		// The webhook answers 500 without a sender number, so keep serving /health.
		logger.Error("configuration incomplete", "error", err)
	}

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", "timezone", cfg.Timezone, "error", err)
		loc = time.UTC
	}

	metricsHandler, assistantMetrics := setupMetrics()
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}

	store, err := buildSessionStore(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to configure session store", "error", err)
		os.Exit(1)
	}

	llm, closeLLM, err := buildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to configure language model", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	crm := ixc.NewClient(cfg.IXCBaseURL, cfg.IXCToken, cfg.IXCTimeout, logger.Component("ixc"))
	planner := scheduling.NewEngine(crm, scheduling.EngineConfig{
		Capacity:        cfg.SlotCapacity,
		DefaultSLAHours: cfg.DefaultSLAHours,
		HorizonDays:     cfg.SchedulingHorizonDays,
		Location:        loc,
		Logger:          logger.Component("scheduling"),
	})
	interpreter := nlu.NewInterpreter(llm, nlu.Options{
		Intents:        conversation.IntentCatalog(),
		FallbackIntent: conversation.FallbackIntent,
		Location:       loc,
		Logger:         logger.Component("nlu"),
	})

	snapshots := buildSnapshotSink(cfg, awsCfg, pool, logger)
	defer snapshots.Close()

	engine := conversation.NewEngine(conversation.Config{
		Store:       store,
		CRM:         crm,
		Negotiator:  scheduling.NewNegotiator(planner, logger.Component("negotiator")),
		Language:    interpreter,
		Snapshots:   snapshots,
		Observer:    assistantMetrics,
		Logger:      logger,
		LockTimeout: cfg.SessionLockTimeout,
	})

	handlerCfg := messaging.HandlerConfig{
		Turns:             engine,
		Sender:            messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger),
		WhatsAppNumber:    cfg.TwilioWhatsAppNumber,
		AuthToken:         cfg.TwilioAuthToken,
		ValidateSignature: cfg.TwilioValidateSignature,
		PublicBaseURL:     cfg.PublicBaseURL,
		RespondWithAudio:  cfg.RespondWithAudio,
		Media:             voice.NewMediaFetcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken, nil),
		Metrics:           assistantMetrics,
		Logger:            logger,
	}
	if pool != nil && cfg.DedupeMessages {
		handlerCfg.Dedupe = events.NewProcessedStore(pool)
	}
	if cfg.SpeechCredentialsFile != "" {
		transcriber, err := voice.NewGoogleTranscriber(ctx, cfg.SpeechCredentialsFile, cfg.SpeechLanguage, logger)
		if err != nil {
			logger.Error("voice transcription disabled", "error", err)
		} else {
			defer transcriber.Close()
			handlerCfg.Transcriber = transcriber
		}
	}
	if cfg.RespondWithAudio {
		synth, err := buildSynthesizer(cfg, awsCfg, logger)
		if err != nil {
			logger.Error("audio replies disabled", "error", err)
		} else {
			handlerCfg.Synthesizer = synth
		}
	}

	r := router.New(&router.Config{
		Logger:           logger,
		MessagingHandler: messaging.NewHandler(handlerCfg),
		MetricsHandler:   metricsHandler,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	engine.Drain()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.AssistantMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.NewAssistantMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// connectPostgresPool returns nil when no database is configured or reachable;
// de-duplication and snapshot persistence are then skipped.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, databaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		return nil
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Error("postgres unreachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func buildSessionStore(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (conversation.Store, error) {
	switch cfg.SessionBackend {
	case "", "memory":
		return conversation.NewMemoryStore(), nil
	case "redis":
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return conversation.NewRedisStore(redis.NewClient(opts), cfg.SessionTTL, cfg.SessionLockTimeout, cfg.SessionLockTTL), nil
	case "dynamodb":
		return conversation.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.SessionsTable, cfg.SessionTTL, logger.Component("sessions")), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

func buildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (nlu.LLMClient, func(), error) {
	noop := func() {}
	gemini := func() (nlu.LLMClient, func(), error) {
		c, err := nlu.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return c, func() { _ = c.Close() }, nil
	}
	bedrock := func() (nlu.LLMClient, func(), error) {
		if cfg.BedrockModelID == "" {
			return nil, noop, errors.New("BEDROCK_MODEL_ID is required")
		}
		return nlu.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), noop, nil
	}

	var primary, secondary func() (nlu.LLMClient, func(), error)
	switch cfg.LLMProvider {
	case "gemini":
		primary, secondary = gemini, bedrock
	case "bedrock":
		primary, secondary = bedrock, gemini
	default:
		return nil, noop, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}

	client, closePrimary, err := primary()
	if err != nil {
		return nil, noop, err
	}
	if !cfg.LLMFallback {
		return client, closePrimary, nil
	}
	backup, closeBackup, err := secondary()
	if err != nil {
		logger.Warn("llm fallback unavailable", "error", err)
		return client, closePrimary, nil
	}
	return nlu.NewFallbackLLMClient(client, backup, logger.Component("llm")), func() {
		closePrimary()
		closeBackup()
	}, nil
}

func buildSnapshotSink(cfg *appconfig.Config, awsCfg aws.Config, pool *pgxpool.Pool, logger *logging.Logger) *conversation.AsyncSink {
	writers := []conversation.SnapshotWriter{conversation.NewLogSink(logger)}
	if pool != nil {
		writers = append(writers, events.NewSnapshotStore(pool))
	}
	if cfg.SnapshotQueueURL != "" {
		writers = append(writers, events.NewSnapshotPublisher(sqs.NewFromConfig(awsCfg), cfg.SnapshotQueueURL))
	}
	return conversation.NewAsyncSink(256, 5*time.Second, logger, writers...)
}

func buildSynthesizer(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*voice.Synthesizer, error) {
	s3Client := s3.NewFromConfig(awsCfg)
	return voice.NewSynthesizer(voice.SynthesizerConfig{
		APIKey:    cfg.ElevenLabsAPIKey,
		VoiceID:   cfg.ElevenLabsVoiceID,
		Bucket:    cfg.AudioBucket,
		URLTTL:    cfg.AudioURLTTL,
		Objects:   s3Client,
		Presigner: s3.NewPresignClient(s3Client),
		Logger:    logger.Component("synthesizer"),
	})
}
