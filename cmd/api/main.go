package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ixoralabs/booking-assistant/cmd/mainconfig"
	"github.com/ixoralabs/booking-assistant/internal/api/router"
	"github.com/ixoralabs/booking-assistant/internal/bookingapi"
	"github.com/ixoralabs/booking-assistant/internal/bookings"
	appconfig "github.com/ixoralabs/booking-assistant/internal/config"
	"github.com/ixoralabs/booking-assistant/internal/conversation"
	"github.com/ixoralabs/booking-assistant/internal/http/handlers"
	"github.com/ixoralabs/booking-assistant/internal/notify"
	"github.com/ixoralabs/booking-assistant/internal/observability/metrics"
	"github.com/ixoralabs/booking-assistant/internal/retriever"
	"github.com/ixoralabs/booking-assistant/internal/webchat"
	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	stateStore := conversation.NewRedisStateStore(redisClient, nil)

	var decisionCache conversation.DecisionCache
	if cfg.ClassifierCache {
		decisionCache = conversation.NewRedisDecisionCache(redisClient, nil)
	}

	llm := buildLLMClient(ctx, cfg, logger)
	classifiers := conversation.NewClassifiers(llm, decisionCache, cfg.IntentCacheTTL, cfg.DecisionCacheTTL, logger)
	intentRouter := conversation.NewRouter(classifiers)

	scheduling := bookingapi.NewClient(
		cfg.BookingsBusinessEmail,
		cfg.BookingsServiceID,
		cfg.BookingsStaffIDs,
		logger,
		bookingapi.WithTimezone(cfg.BookingsTimezone),
		bookingapi.WithSlotDuration(cfg.BookingsSlotDuration),
		bookingapi.WithTimeouts(cfg.AvailabilityTimeout, cfg.AppointmentTimeout),
	)

	convMetrics := metrics.NewConversationMetrics(nil)

	engineOpts := []conversation.EngineOption{
		conversation.WithMetrics(convMetrics),
		conversation.WithCompanyName(cfg.CompanyName),
	}

	answers, err := retriever.NewClient(retriever.Config{
		BaseURL: cfg.RetrieverBaseURL,
		APIKey:  cfg.RetrieverAPIKey,
		Timeout: cfg.RetrieverTimeout,
	})
	if err != nil {
		logger.Error("failed to create retriever client", "error", err)
		os.Exit(1)
	}
	engineOpts = append(engineOpts, conversation.WithAnswerProvider(answers))

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		transcriptDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open transcript db", "error", err)
			os.Exit(1)
		}
		defer func() { _ = transcriptDB.Close() }()

		engineOpts = append(engineOpts,
			conversation.WithBookingRecorder(bookings.NewRecorder(bookings.NewPostgresRepository(pool))),
			conversation.WithTranscripts(conversation.NewSQLTranscriptStore(transcriptDB)),
		)
	} else {
		logger.Warn("DATABASE_URL not set, bookings and transcripts will not be persisted")
	}

	if cfg.EmailFromAddress != "" {
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		engineOpts = append(engineOpts,
			conversation.WithNotifier(notify.NewConfirmationService(sender, cfg.CompanyName, logger)),
		)
	}

	engine := conversation.NewEngine(stateStore, intentRouter, classifiers, scheduling, llm, logger, engineOpts...)

	orchestratorOpts := []conversation.OrchestratorOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
	}

	var jobStore *conversation.JobStore
	var orchestrator *conversation.Orchestrator
	if cfg.UseMemoryQueue || cfg.ConversationQueueURL == "" {
		orchestrator = conversation.NewOrchestrator(engine, conversation.NewMemoryQueue(64), logger, orchestratorOpts...)
	} else {
		sqsClient := sqs.NewFromConfig(awsCfg)
		dynamoClient := dynamodb.NewFromConfig(awsCfg)
		jobStore = conversation.NewJobStore(dynamoClient, cfg.ConversationJobsTable, logger)
		orchestratorOpts = append(orchestratorOpts, conversation.WithJobStore(jobStore))
		orchestrator = conversation.NewOrchestrator(engine, conversation.NewSQSQueue(sqsClient, cfg.ConversationQueueURL), logger, orchestratorOpts...)
	}

	var jobRecorder conversation.JobRecorder
	if jobStore != nil {
		jobRecorder = jobStore
	}

	conversationHandler := handlers.NewConversationHandler(orchestrator, jobRecorder, logger)
	webchatHandler := webchat.NewHandler(orchestrator, webchat.WidgetJS, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		WebchatHandler:      webchatHandler,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerSecond:  cfg.RateLimitPerSecond,
		RateLimitBurst:      cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
		os.Exit(1)
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// buildLLMClient assembles the classifier/extraction LLM: Gemini as the
// primary, Bedrock as an optional fallback, throttled to stay inside
// provider rate limits.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) conversation.LLMClient {
	primary, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}

	var llm conversation.LLMClient = primary
	if cfg.BedrockModelID != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config for bedrock", "error", err)
			os.Exit(1)
		}
		fallback, err := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		if err != nil {
			logger.Error("failed to create bedrock client", "error", err)
			os.Exit(1)
		}
		llm = conversation.NewFallbackLLMClient(primary, fallback, logger)
	}

	return conversation.NewThrottledLLMClient(llm, cfg.LLMMinDelay, cfg.LLMRequestLimit)
}
