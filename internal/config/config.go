package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// WhatsApp Cloud API
	WhatsAppAppSecret         string
	WhatsAppVerifyToken       string
	WhatsAppAccessToken       string
	WhatsAppGraphBaseURL      string
	WhatsAppOrderTemplate     string
	WhatsAppTemplateLanguage  string
	WhatsAppSendTimeout       time.Duration
	WhatsAppSendMaxRetries    int
	OnboardingPhoneNumberID   string
	WebhookRateLimitRPS       float64
	WebhookRateLimitBurst     int
	WebhookProcessingDeadline time.Duration

	// Conversation collaborators
	LLMProvider            string
	GeminiAPIKey           string
	GeminiModel            string
	BedrockModelID         string
	BedrockFallbackModelID string
	GenerationTimeout      time.Duration
	ExtractionTimeout      time.Duration
	MaxTypingDelay         time.Duration
	CustomerLockTTL        time.Duration

	// Orders
	TaxRateBPS         int64
	PaymentLinkBaseURL string
	UPIQRBaseURL       string

	// Outbox + archive
	OutboxSQSQueueURL    string
	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	WebhookArchiveBucket string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Order notification email
	SendGridAPIKey string
	SESFromEmail   string
	EmailFrom      string
	EmailFromName  string

	AdminJWTSecret string
}

// Load reads configuration from the environment. A local .env file, when
// present, is applied first without overriding variables already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WhatsAppAppSecret:         getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppVerifyToken:       getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAccessToken:       getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppGraphBaseURL:      strings.TrimRight(getEnv("WHATSAPP_GRAPH_BASE_URL", "https://graph.facebook.com/v21.0"), "/"),
		WhatsAppOrderTemplate:     getEnv("WHATSAPP_ORDER_TEMPLATE", "order_details_request"),
		WhatsAppTemplateLanguage:  getEnv("WHATSAPP_TEMPLATE_LANGUAGE", "en"),
		WhatsAppSendTimeout:       getEnvAsDuration("WHATSAPP_SEND_TIMEOUT", 10*time.Second),
		WhatsAppSendMaxRetries:    getEnvAsInt("WHATSAPP_SEND_MAX_RETRIES", 0),
		OnboardingPhoneNumberID:   getEnv("ONBOARDING_PHONE_NUMBER_ID", ""),
		WebhookRateLimitRPS:       getEnvAsFloat("WEBHOOK_RATE_LIMIT_RPS", 50),
		WebhookRateLimitBurst:     getEnvAsInt("WEBHOOK_RATE_LIMIT_BURST", 100),
		WebhookProcessingDeadline: getEnvAsDuration("WEBHOOK_PROCESSING_DEADLINE", 45*time.Second),

		LLMProvider:            strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:         getEnv("BEDROCK_MODEL_ID", ""),
		BedrockFallbackModelID: getEnv("BEDROCK_FALLBACK_MODEL_ID", ""),
		GenerationTimeout:      getEnvAsDuration("GENERATION_TIMEOUT", 8*time.Second),
		ExtractionTimeout:      getEnvAsDuration("EXTRACTION_TIMEOUT", 8*time.Second),
		MaxTypingDelay:         getEnvAsDuration("MAX_TYPING_DELAY", 5*time.Second),
		CustomerLockTTL:        getEnvAsDuration("CUSTOMER_LOCK_TTL", 30*time.Second),

		TaxRateBPS:         getEnvAsInt64("TAX_RATE_BPS", 1800),
		PaymentLinkBaseURL: strings.TrimRight(getEnv("PAYMENT_LINK_BASE_URL", ""), "/"),
		UPIQRBaseURL:       getEnv("UPI_QR_BASE_URL", "https://api.qrserver.com/v1/create-qr-code/"),

		OutboxSQSQueueURL:    getEnv("OUTBOX_SQS_QUEUE_URL", ""),
		OutboxPollInterval:   getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:      getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
		WebhookArchiveBucket: getEnv("WEBHOOK_ARCHIVE_BUCKET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		SESFromEmail:   getEnv("SES_FROM_EMAIL", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Chat Commerce"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
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
