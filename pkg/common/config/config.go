package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	DedupCacheTTL time.Duration

	// Kafka
	KafkaBrokers  []string
	KafkaRunTopic string

	// Reddit
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	// Sprinklr
	SprinklrAPIKey    string
	SprinklrAPISecret string
	SprinklrBaseURL   string

	// Twitter (native API, OAuth 1.0a)
	TwitterConsumerKey    string
	TwitterConsumerSecret string
	TwitterAccessToken    string
	TwitterAccessSecret   string

	// Firecrawl (scraping proxy for client-rendered pages)
	FirecrawlAPIKey  string
	FirecrawlBaseURL string

	// LLM
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModelName string
	LLMTimeout   time.Duration

	// Ingestion
	RecencyWindowDays int
	FetchTimeout      time.Duration
	CatalogPath       string

	// Scheduler
	SchedulerCron     string
	AdapterDelay      time.Duration
	ProductDelay      time.Duration
	IngestionCooldown time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 60*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 16*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "feedback"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "feedback123"),
		PostgresDB:       getEnv("POSTGRES_DB", "feedback"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		DedupCacheTTL: getDuration("DEDUP_CACHE_TTL", 24*time.Hour),

		KafkaBrokers:  getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaRunTopic: getEnv("KAFKA_RUN_TOPIC", "ingestion-runs"),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "SecurityFeedbackBot/1.0"),

		SprinklrAPIKey:    getEnv("SPRINKLR_API_KEY", ""),
		SprinklrAPISecret: getEnv("SPRINKLR_API_SECRET", ""),
		SprinklrBaseURL:   getEnv("SPRINKLR_BASE_URL", "https://api2.sprinklr.com"),

		TwitterConsumerKey:    getEnv("TWITTER_CONSUMER_KEY", ""),
		TwitterConsumerSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),
		TwitterAccessToken:    getEnv("TWITTER_ACCESS_TOKEN", ""),
		TwitterAccessSecret:   getEnv("TWITTER_ACCESS_SECRET", ""),

		FirecrawlAPIKey:  getEnv("FIRECRAWL_API_KEY", ""),
		FirecrawlBaseURL: getEnv("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),

		LLMAPIKey:    getEnv("LLM_API_KEY", ""),
		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModelName: getEnv("LLM_MODEL_NAME", "gpt-4o-mini"),
		LLMTimeout:   getDuration("LLM_TIMEOUT", 30*time.Second),

		RecencyWindowDays: getIntEnv("RECENCY_WINDOW_DAYS", 30),
		FetchTimeout:      getDuration("FETCH_TIMEOUT", 20*time.Second),
		CatalogPath:       getEnv("PRODUCT_CATALOG_PATH", ""),

		SchedulerCron:     getEnv("SCHEDULER_CRON", "0 */6 * * *"),
		AdapterDelay:      getDuration("ADAPTER_DELAY", 2*time.Second),
		ProductDelay:      getDuration("PRODUCT_DELAY", 2*time.Second),
		IngestionCooldown: getDuration("INGESTION_COOLDOWN", 1*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
