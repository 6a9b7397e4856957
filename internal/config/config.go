// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8000"`

	// Inference backend (OpenAI-compatible server hosting the fine-tuned
	// exam models).
	InferenceBaseURL string        `env:"INFERENCE_BASE_URL" envDefault:"http://localhost:8080/v1"`
	InferenceAPIKey  string        `env:"INFERENCE_API_KEY"`
	CaptionModel     string        `env:"CAPTION_MODEL" envDefault:"qwen2.5-vl-3b-instruct"`
	ScoringModel     string        `env:"SCORING_MODEL" envDefault:"qwen2.5-vl-3b-exam-sft"`
	EmbeddingsModel  string        `env:"EMBEDDINGS_MODEL" envDefault:"rubert-tiny2"`
	InferenceTimeout time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"300s"`

	// Caption/scoring generation limits. MaxPromptChars caps the grading
	// prompt before it is sent; CaptionMaxChars is embedded in the caption
	// instruction itself.
	MaxPromptChars  int `env:"MAX_PROMPT_CHARS" envDefault:"4096"`
	CaptionMaxChars int `env:"CAPTION_MAX_CHARS" envDefault:"512"`
	ScoreMaxTokens  int `env:"SCORE_MAX_TOKENS" envDefault:"2"`

	// Image fetching
	ImageFetchTimeout time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"50s"`
	ImageMaxBytes     int64         `env:"IMAGE_MAX_BYTES" envDefault:"20971520"`

	// Storage layout
	StorageDir string `env:"STORAGE_DIR" envDefault:"storage"`
	DataDir    string `env:"DATA_DIR" envDefault:"data"`

	// Results
	// ResultDetailLimit bounds the per-record detail in the JSON summary;
	// above it only aggregates are embedded (the CSV always has all rows).
	ResultDetailLimit int `env:"RESULT_DETAIL_LIMIT" envDefault:"1000"`

	// Optional YAML file overriding rubric text and caption lead-in phrases.
	PromptsFile string `env:"PROMPTS_FILE"`

	// AI backoff
	AIBackoffMaxElapsedTime  time.Duration `env:"AI_BACKOFF_MAX_ELAPSED_TIME" envDefault:"120s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"2s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"20s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"1.5"`

	// HTTP server
	MaxUploadMB           int64         `env:"MAX_UPLOAD_MB" envDefault:"50"`
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// Tracing
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ai-exam-grader"`
}

// Load parses environment variables into a Config. In dev a local .env
// file is applied first when present; missing files are not an error.
func Load() (Config, error) {
	if strings.ToLower(envOr("APP_ENV", "dev")) == "dev" {
		_ = godotenv.Load()
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetAIBackoffConfig returns backoff settings for the current environment.
// Tests use much shorter intervals so retries don't dominate runtime.
func (c Config) GetAIBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 2 * time.Second, 50 * time.Millisecond, 500 * time.Millisecond, 2.0
	}
	return c.AIBackoffMaxElapsedTime, c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIBackoffMultiplier
}
