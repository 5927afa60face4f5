package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	ConversationQueueURL  string
	ConversationJobsTable string

	// LLM providers
	GeminiAPIKey     string
	GeminiModel      string
	BedrockModelID   string
	LLMMinDelay      time.Duration
	LLMRequestLimit  int
	ClassifierCache  bool
	IntentCacheTTL   time.Duration
	DecisionCacheTTL time.Duration

	// Retriever service
	RetrieverBaseURL string
	RetrieverAPIKey  string
	RetrieverTimeout time.Duration

	CompanyName string

	// Scheduling provider (Microsoft Bookings)
	BookingsBusinessEmail   string
	BookingsServiceID       string
	BookingsStaffIDs        []string
	BookingsTimezone        string
	BookingsSlotDuration    time.Duration
	AvailabilityTimeout     time.Duration
	AppointmentTimeout      time.Duration
	BookingsCustomerTimeZone string

	// Confirmation email
	EmailFromAddress string
	EmailFromName    string

	CORSAllowedOrigins []string

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ConversationQueueURL:  getEnv("CONVERSATION_QUEUE_URL", ""),
		ConversationJobsTable: getEnv("CONVERSATION_JOBS_TABLE", "conversation_jobs"),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		LLMMinDelay:      getEnvAsDuration("LLM_MIN_DELAY", 500*time.Millisecond),
		LLMRequestLimit:  getEnvAsInt("LLM_REQUEST_LIMIT", 60),
		ClassifierCache:  getEnvAsBool("CLASSIFIER_CACHE", true),
		IntentCacheTTL:   getEnvAsDuration("INTENT_CACHE_TTL", 5*time.Minute),
		DecisionCacheTTL: getEnvAsDuration("DECISION_CACHE_TTL", 10*time.Minute),

		RetrieverBaseURL: getEnv("RETRIEVER_BASE_URL", "http://localhost:8001"),
		RetrieverAPIKey:  getEnv("RETRIEVER_API_KEY", ""),
		RetrieverTimeout: getEnvAsDuration("RETRIEVER_TIMEOUT", 30*time.Second),

		CompanyName: getEnv("COMPANY_NAME", "our company"),

		BookingsBusinessEmail:    getEnv("BOOKINGS_BUSINESS_EMAIL", ""),
		BookingsServiceID:        getEnv("BOOKINGS_SERVICE_ID", ""),
		BookingsStaffIDs:         getEnvAsSlice("BOOKINGS_STAFF_IDS"),
		BookingsTimezone:         getEnv("BOOKINGS_TIMEZONE", "Bangladesh Standard Time"),
		BookingsSlotDuration:     getEnvAsDuration("BOOKINGS_SLOT_DURATION", 30*time.Minute),
		AvailabilityTimeout:      getEnvAsDuration("BOOKINGS_AVAILABILITY_TIMEOUT", 2*time.Minute),
		AppointmentTimeout:       getEnvAsDuration("BOOKINGS_APPOINTMENT_TIMEOUT", 5*time.Minute),
		BookingsCustomerTimeZone: getEnv("BOOKINGS_CUSTOMER_TIMEZONE", "Asia/Dhaka"),

		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Booking Assistant"),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice parses a comma-separated environment variable.
func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
