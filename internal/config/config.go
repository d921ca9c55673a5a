package config

import (
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

	DatabaseURL string

	UseMemoryQueue bool
	WorkerCount    int

	// Calendar provider (Google Calendar push notifications)
	CalendarWebhookToken   string
	CalendarCredentialsB64 string
	CalendarLookbackWindow time.Duration
	CalendarRetryAttempts  int
	CalendarRetryBaseDelay time.Duration

	// Attendance outcome processing
	OutcomeGracePeriod     time.Duration
	SweepInterval          time.Duration
	MinTranscriptChars     int
	MinSpeakers            int
	TranscriptWebhookToken string
	TranscriptAnalyzer     string
	TranscriptBucket       string
	GeminiAPIKey           string
	BedrockModelID         string

	// Cost per 1K tokens, used when recording analyzer usage.
	ModelInputCostPer1K  float64
	ModelOutputCostPer1K float64

	AdminJWTSecret string

	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
	NotificationQueueURL  string
	NotificationJobsTable string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Alerting
	AlertEmailProvider string
	AlertRecipients    string
	SendGridAPIKey     string
	SendGridFromEmail  string
	SendGridFromName   string
	SESFromEmail       string
	SESFromName        string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		CalendarWebhookToken:   getEnv("CALENDAR_WEBHOOK_TOKEN", ""),
		CalendarCredentialsB64: getEnv("CALENDAR_CREDENTIALS_B64", ""),
		CalendarLookbackWindow: getEnvAsDuration("CALENDAR_LOOKBACK_WINDOW", 30*24*time.Hour),
		CalendarRetryAttempts:  getEnvAsInt("CALENDAR_RETRY_ATTEMPTS", 3),
		CalendarRetryBaseDelay: getEnvAsDuration("CALENDAR_RETRY_BASE_DELAY", 2*time.Second),

		OutcomeGracePeriod:     getEnvAsDuration("OUTCOME_GRACE_PERIOD", 2*time.Hour),
		SweepInterval:          getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
		MinTranscriptChars:     getEnvAsInt("MIN_TRANSCRIPT_CHARS", 500),
		MinSpeakers:            getEnvAsInt("MIN_SPEAKERS", 2),
		TranscriptWebhookToken: getEnv("TRANSCRIPT_WEBHOOK_TOKEN", ""),
		TranscriptAnalyzer:     strings.ToLower(strings.TrimSpace(getEnv("TRANSCRIPT_ANALYZER", "auto"))),
		TranscriptBucket:       getEnv("TRANSCRIPT_BUCKET", ""),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		BedrockModelID:         getEnv("BEDROCK_MODEL_ID", ""),

		ModelInputCostPer1K:  getEnvAsFloat("MODEL_INPUT_COST_PER_1K", 0.003),
		ModelOutputCostPer1K: getEnvAsFloat("MODEL_OUTPUT_COST_PER_1K", 0.015),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		NotificationQueueURL:  getEnv("NOTIFICATION_QUEUE_URL", ""),
		NotificationJobsTable: getEnv("NOTIFICATION_JOBS_TABLE", "notification_jobs"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AlertEmailProvider: strings.ToLower(strings.TrimSpace(getEnv("ALERT_EMAIL_PROVIDER", "auto"))),
		AlertRecipients:    getEnv("ALERT_RECIPIENTS", ""),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:  getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:   getEnv("SENDGRID_FROM_NAME", "closerMetrix"),
		SESFromEmail:       getEnv("SES_FROM_EMAIL", ""),
		SESFromName:        getEnv("SES_FROM_NAME", "closerMetrix"),
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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
