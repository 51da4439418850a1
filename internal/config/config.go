package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	UseMemoryStore     bool
	SeedFile           string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	APIJWTSecret       string

	// Redis caches busy intervals read from external calendars.
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool
	CalendarCacheTTL time.Duration

	// FHIR calendar (EHR Slot API)
	FHIRBaseURL      string
	FHIRClientID     string
	FHIRClientSecret string
	CalendarTimeout  time.Duration

	// Google Calendar free/busy
	GoogleCalendarCredentialsFile string

	// Scoring oracle
	OracleProvider string
	OracleTimeout  time.Duration
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string

	// AWS (Bedrock oracle, SQS match events)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	MatchEventsQueueURL string

	// Match refresh worker
	MatchRefreshSchedule   string
	MatchRefreshStaleAfter time.Duration
	MatchRefreshBatch      int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		UseMemoryStore:     getEnvAsBool("USE_MEMORY_STORE", false),
		SeedFile:           getEnv("SEED_FILE", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		APIJWTSecret:       getEnv("API_JWT_SECRET", ""),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		CalendarCacheTTL: getEnvAsDuration("CALENDAR_CACHE_TTL", 2*time.Minute),

		FHIRBaseURL:      getEnv("FHIR_BASE_URL", ""),
		FHIRClientID:     getEnv("FHIR_CLIENT_ID", ""),
		FHIRClientSecret: getEnv("FHIR_CLIENT_SECRET", ""),
		CalendarTimeout:  getEnvAsDuration("CALENDAR_TIMEOUT", 10*time.Second),

		GoogleCalendarCredentialsFile: getEnv("GOOGLE_CALENDAR_CREDENTIALS_FILE", ""),

		OracleProvider: strings.ToLower(strings.TrimSpace(getEnv("ORACLE_PROVIDER", "gemini"))),
		OracleTimeout:  getEnvAsDuration("ORACLE_TIMEOUT", 20*time.Second),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		MatchEventsQueueURL: getEnv("MATCH_EVENTS_QUEUE_URL", ""),

		MatchRefreshSchedule:   getEnv("MATCH_REFRESH_SCHEDULE", "@every 6h"),
		MatchRefreshStaleAfter: getEnvAsDuration("MATCH_REFRESH_STALE_AFTER", 24*time.Hour),
		MatchRefreshBatch:      getEnvAsInt("MATCH_REFRESH_BATCH", 100),
	}
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
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

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
