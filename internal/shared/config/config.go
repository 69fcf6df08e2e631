package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	LogLevel        string
	APIToken        string

	DatabaseURL string

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string
	GeminiTimeout time.Duration
	PromptsFile   string

	RateLimitRPM int

	Concurrency int
	ChunkSize   int
	MaxChats    int
	PageSize    int

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QueueBackend string
	SQSQueueURL  string
	AWSRegion    string

	ObjectStoreType string
	LocalStoreDir   string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	ChatSource     string
	ChatSourcePath string

	CatalogAPIURL   string
	CatalogAPIKey   string
	CatalogCacheTTL time.Duration

	CompanyEmailDomain string
	ScheduleSpec       string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	_ = godotenv.Load(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		APIToken:        getEnv("API_TOKEN", ""),

		DatabaseURL: dbURL,

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTimeout: getEnvDuration("GEMINI_TIMEOUT", 60*time.Second),
		PromptsFile:   getEnv("PROMPTS_FILE", ""),

		RateLimitRPM: getEnvInt("GEMINI_RATE_LIMIT", 240),

		Concurrency: getEnvInt("BATCH_CONCURRENCY", 5),
		ChunkSize:   getEnvInt("SAVE_CHUNK_SIZE", 500),
		MaxChats:    getEnvInt("BATCH_MAX_CHATS", 0),
		PageSize:    getEnvInt("SOURCE_PAGE_SIZE", 1000),

		CacheBackend:  normalizeCacheBackend(getEnv("LLM_CACHE_BACKEND", "memory")),
		CacheTTL:      getEnvDuration("LLM_CACHE_TTL", 24*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		QueueBackend: normalizeQueueBackend(getEnv("QUEUE_BACKEND", "memory")),
		SQSQueueURL:  getEnv("SQS_QUEUE_URL", ""),
		AWSRegion:    getEnv("AWS_REGION", ""),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		ChatSource:     normalizeSource(getEnv("CHAT_SOURCE", "pg")),
		ChatSourcePath: getEnv("CHAT_SOURCE_PATH", ""),

		CatalogAPIURL:   getEnv("CATALOG_API_URL", ""),
		CatalogAPIKey:   getEnv("CATALOG_API_KEY", ""),
		CatalogCacheTTL: getEnvDuration("CATALOG_CACHE_TTL", time.Hour),

		CompanyEmailDomain: getEnv("COMPANY_EMAIL_DOMAIN", "company.exemplo.com"),
		ScheduleSpec:       getEnv("BATCH_SCHEDULE", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, raw, def)
		return def
	}
	return n
}

// getEnvDuration accepts Go duration strings and bare integers (seconds).
func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("invalid %s=%q, using default %s", key, raw, def)
	return def
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
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeCacheBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	case "off", "none", "disabled":
		return "off"
	default:
		return "memory"
	}
}

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "memory"
	}
}

func normalizeSource(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "json":
		return "json"
	case "xlsx":
		return "xlsx"
	default:
		return "pg"
	}
}
