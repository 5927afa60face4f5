package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ixoralabs/booking-assistant/cmd/mainconfig"
	"github.com/ixoralabs/booking-assistant/internal/bookingapi"
	"github.com/ixoralabs/booking-assistant/internal/bookings"
	appconfig "github.com/ixoralabs/booking-assistant/internal/config"
	"github.com/ixoralabs/booking-assistant/internal/conversation"
	"github.com/ixoralabs/booking-assistant/internal/notify"
	"github.com/ixoralabs/booking-assistant/internal/observability/metrics"
	"github.com/ixoralabs/booking-assistant/internal/retriever"
	"github.com/ixoralabs/booking-assistant/pkg/logging"
)

// The worker drains the conversation queue when the API runs with
// USE_MEMORY_QUEUE=false. It wires the same engine as the API server so
// either binary can process a turn.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-assistant worker", "env", cfg.Env)

	if cfg.ConversationQueueURL == "" {
		logger.Error("CONVERSATION_QUEUE_URL is required for the worker")
		os.Exit(1)
	}

	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

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

	llm := buildLLMClient(ctx, cfg, awsCfg, logger)
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

	engineOpts := []conversation.EngineOption{
		conversation.WithMetrics(metrics.NewConversationMetrics(nil)),
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

	sqsClient := sqs.NewFromConfig(awsCfg)
	queue := conversation.NewSQSQueue(sqsClient, cfg.ConversationQueueURL)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	jobStore := conversation.NewJobStore(dynamoClient, cfg.ConversationJobsTable, logger)

	orchestrator := conversation.NewOrchestrator(engine, queue, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithReceiveWaitSeconds(20),
		conversation.WithJobStore(jobStore),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker shutdown timed out", "error", err)
		os.Exit(1)
	}

	logger.Info("worker stopped")
}

func buildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) conversation.LLMClient {
	primary, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}

	var llm conversation.LLMClient = primary
	if cfg.BedrockModelID != "" {
		fallback, err := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		if err != nil {
			logger.Error("failed to create bedrock client", "error", err)
			os.Exit(1)
		}
		llm = conversation.NewFallbackLLMClient(primary, fallback, logger)
	}

	return conversation.NewThrottledLLMClient(llm, cfg.LLMMinDelay, cfg.LLMRequestLimit)
}
