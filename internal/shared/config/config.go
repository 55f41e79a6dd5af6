package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"resume-workflow/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	LogFile         string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	DatabaseURL   string
	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
	EmbedProvider   string
	EmbedModel      string
	EmbedDimension  int

	Fetcher    string
	ChromePath string
	FetchWait  time.Duration

	JobTextLimit  int
	RunTimeout    time.Duration
	MaxRevisions  int
	RetrievalTopK int

	RenderPDF    bool
	PDFLatexPath string

	IndexQueueURL     string
	IndexVisibility   time.Duration
	WorkerConcurrency int
	ShutdownTimeout   time.Duration
}

var secretKeys = []string{
	"DATABASE_URL",
	"REDIS_PASSWORD",
	"OPENAI_API_KEY",
	"ANTHROPIC_API_KEY",
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")
	for _, key := range secretKeys {
		readSecret(key)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	env := normalizeEnv(v.GetString("ENV"))
	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:            v.GetString("PORT"),
		Env:             env,
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFile:         v.GetString("LOG_FILE"),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),

		ObjectStoreType: normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:   v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:       v.GetString("AWS_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SSEKMSKeyID:     v.GetString("SSE_KMS_KEY_ID"),

		DatabaseURL:   dbURL,
		SessionStore:  normalizeSessionStore(v.GetString("SESSION_STORE")),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		SessionTTL:    time.Duration(v.GetInt("SESSION_TTL_HOURS")) * time.Hour,

		LLMProvider:     strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
		LLMModel:        v.GetString("LLM_MODEL"),
		OpenAIAPIKey:    v.GetString("OPENAI_API_KEY"),
		AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
		OllamaHost:      v.GetString("OLLAMA_HOST"),
		EmbedProvider:   strings.ToLower(strings.TrimSpace(v.GetString("EMBED_PROVIDER"))),
		EmbedModel:      v.GetString("EMBED_MODEL"),
		EmbedDimension:  v.GetInt("EMBED_DIMENSION"),

		Fetcher:    strings.ToLower(strings.TrimSpace(v.GetString("FETCHER"))),
		ChromePath: v.GetString("CHROME_PATH"),
		FetchWait:  time.Duration(v.GetInt("FETCH_WAIT_SECONDS")) * time.Second,

		JobTextLimit:  v.GetInt("JOB_TEXT_LIMIT"),
		RunTimeout:    time.Duration(v.GetInt("RUN_TIMEOUT_SECONDS")) * time.Second,
		MaxRevisions:  v.GetInt("MAX_REVISIONS"),
		RetrievalTopK: v.GetInt("RETRIEVAL_TOP_K"),

		RenderPDF:    v.GetBool("RENDER_PDF"),
		PDFLatexPath: strings.TrimSpace(v.GetString("PDFLATEX_PATH")),

		IndexQueueURL:     strings.TrimSpace(v.GetString("INDEX_QUEUE_URL")),
		IndexVisibility:   time.Duration(v.GetInt("INDEX_VISIBILITY_TIMEOUT_SECONDS")) * time.Second,
		WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
		ShutdownTimeout:   time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("LOCAL_STORE_DIR", "./data")
	v.SetDefault("SESSION_STORE", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL_HOURS", 168)
	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("EMBED_PROVIDER", "openai")
	v.SetDefault("EMBED_MODEL", "text-embedding-3-small")
	v.SetDefault("EMBED_DIMENSION", 1536)
	v.SetDefault("FETCHER", "chrome")
	v.SetDefault("FETCH_WAIT_SECONDS", 3)
	v.SetDefault("JOB_TEXT_LIMIT", 15000)
	v.SetDefault("RUN_TIMEOUT_SECONDS", 600)
	v.SetDefault("MAX_REVISIONS", 0)
	v.SetDefault("RETRIEVAL_TOP_K", 5)
	v.SetDefault("RENDER_PDF", false)
	v.SetDefault("PDFLATEX_PATH", "pdflatex")
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("INDEX_VISIBILITY_TIMEOUT_SECONDS", 600)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 30)
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

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeSessionStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	case "postgres", "pg":
		return "postgres"
	default:
		return "memory"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
