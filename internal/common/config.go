package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. It is built once at startup and
// passed into the pipeline explicitly; nothing reads the environment lazily.
type Config struct {
	Database DatabaseConfig
	Acquire  AcquireConfig
	LLM      LLMConfig
	Match    MatchConfig
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
}

// AcquireConfig holds text-acquisition configuration.
type AcquireConfig struct {
	CloudOCRURL     string        // cloud OCR endpoint; empty disables the stage
	CloudOCRKey     string
	CloudOCRTimeout time.Duration
	OCREngines      []string      // local engine binaries, tried in order
	OCRLangs        string        // language hints, e.g. "por+spa+fra"
	MaxRetryRounds  int           // per-page retry budget
	RetryPause      time.Duration // pause between retry rounds
	MinLegibleLen   int           // below this, with no QR and no items, the document is illegible
	MaxPages        int           // 0 = no limit
}

// LLMConfig holds structuring-service configuration.
type LLMConfig struct {
	BaseURL      string // OpenAI-compatible endpoint
	PrimaryKey   string
	SecondaryKey string // used only after a rate-limit signal on the primary
	Model        string
	Timeout      time.Duration
	GeminiKey    string // final general-purpose fallback provider
	GeminiModel  string
	TokenBudget  int // rough character budget for submitted text
}

// MatchConfig holds reconciliation policy knobs. These are observed policy
// constants, not invariants, so they stay configurable.
type MatchConfig struct {
	ScoreThreshold   float64 // accept an inferred PO at or above this score (0..100)
	DefaultTolerance string  // per-order-line tolerance fraction seeded on new lines
}

// LoadConfig loads configuration from the environment. A .env file in the
// working directory is honored when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_DSN", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Acquire: AcquireConfig{
			CloudOCRURL:     getEnv("CLOUD_OCR_URL", ""),
			CloudOCRKey:     getEnv("CLOUD_OCR_KEY", ""),
			CloudOCRTimeout: getEnvAsDuration("CLOUD_OCR_TIMEOUT", 30*time.Second),
			OCREngines:      splitList(getEnv("OCR_ENGINES", "tesseract")),
			OCRLangs:        getEnv("OCR_LANGS", "por+spa+fra"),
			MaxRetryRounds:  getEnvAsInt("OCR_RETRY_ROUNDS", 3),
			RetryPause:      getEnvAsDuration("OCR_RETRY_PAUSE", 2*time.Second),
			MinLegibleLen:   getEnvAsInt("MIN_LEGIBLE_TEXT_LEN", 15),
			MaxPages:        getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			BaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			PrimaryKey:   getEnv("LLM_API_KEY", ""),
			SecondaryKey: getEnv("LLM_API_KEY_SECONDARY", ""),
			Model:        getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:      getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			GeminiKey:    getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			TokenBudget:  getEnvAsInt("LLM_TEXT_BUDGET", 12000),
		},
		Match: MatchConfig{
			ScoreThreshold:   getEnvAsFloat("MATCH_SCORE_THRESHOLD", 70),
			DefaultTolerance: getEnv("DEFAULT_LINE_TOLERANCE", "0.08"),
		},
	}
}

// Validate checks the loaded configuration for required values.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_DSN is required", ErrInvalidInput)
	}
	if c.Acquire.MaxRetryRounds <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_RETRY_ROUNDS must be positive", ErrInvalidInput)
	}
	if c.Match.ScoreThreshold < 0 || c.Match.ScoreThreshold > 100 {
		return NewAppError("CONFIG_ERROR", "MATCH_SCORE_THRESHOLD must be in 0..100", ErrInvalidInput)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
