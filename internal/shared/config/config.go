package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"resume-ats/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	// DBPool overrides the connection pool defaults; zero fields keep them.
	DBPool DBPool

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDim       int
	GeminiAPIKey       string
	EmbeddingCache     string
	EmbeddingCacheSize int
	RedisURL           string
	RulesFile          string

	QueueBackend string
	SQSQueueURL  string
	RabbitMQURL  string
	AMQPQueue    string

	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	// TrustUserHeader accepts X-User-Id from an authenticating gateway.
	TrustUserHeader bool

	FreeAnalysisLimit int
	AnalyzePerMinute  int
	RequestsPerMinute int
	Dispatch          string
	WorkerConcurrency int
	LogJSON           bool
	LogDebug          bool
}

// DBPool holds the DB_* pool overrides.
type DBPool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Local env files are a dev convenience; missing files are fine.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	if env == "production" && dbURL == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL"})
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		DBPool: DBPool{
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 0),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 0),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 0),
			ConnMaxIdleTime: getDuration("DB_CONN_MAX_IDLE_TIME", 0),
			PingTimeout:     getDuration("DB_PING_TIMEOUT", 0),
		},

		ObjectStoreType: oneOf(getEnv("OBJECT_STORE", "local"), "local", "s3"),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		EmbeddingProvider:  oneOf(getEnv("EMBEDDING_PROVIDER", "hash"), "hash", "gemini"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", ""),
		EmbeddingDim:       getInt("EMBEDDING_DIM", 0),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		EmbeddingCache:     oneOf(getEnv("EMBEDDING_CACHE", "memory"), "memory", "none", "redis"),
		EmbeddingCacheSize: getInt("EMBEDDING_CACHE_SIZE", 1024),
		RedisURL:           getEnv("REDIS_URL", ""),
		RulesFile:          getEnv("RULES_FILE", ""),

		QueueBackend: oneOf(getEnv("QUEUE_BACKEND", "none"), "none", "sqs", "amqp"),
		SQSQueueURL:  getEnv("SQS_QUEUE_URL", ""),
		RabbitMQURL:  getEnv("RABBITMQ_URL", ""),
		AMQPQueue:    getEnv("AMQP_QUEUE", "analysis-jobs"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
		TrustUserHeader:    getBool("TRUST_USER_HEADER", false),

		FreeAnalysisLimit: getInt("FREE_ANALYSIS_LIMIT", 10),
		AnalyzePerMinute:  getInt("RATE_LIMIT_ANALYZE_PER_MINUTE", 10),
		RequestsPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),
		Dispatch:          oneOf(getEnv("ANALYSIS_DISPATCH", "auto"), "auto", "async", "inline", "queue"),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 4),
		LogJSON:           getBool("LOG_JSON", true),
		LogDebug:          getBool("LOG_DEBUG", false),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

// oneOf lowercases raw and returns it when allowed, otherwise the first allowed value.
func oneOf(raw string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return allowed[0]
}
