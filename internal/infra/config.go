package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string

	// Pipeline knobs.
	CreditCostPerGeneration int
	StageTimeout            time.Duration
	SynthMaxAttempts        int
	SynthRetryBaseDelay     time.Duration
	CatalogTTL              time.Duration

	// Provider credentials and endpoints. An empty API key selects the
	// deterministic offline implementation for that provider.
	FalAPIKey          string
	FalBaseURL         string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	RenderAPIKey       string
	RenderBaseURL      string
	StaticAssetBaseURL string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      splitEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		CreditCostPerGeneration: getEnvInt("CREDIT_COST_PER_GENERATION", 2),
		StageTimeout:            time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 60)),
		SynthMaxAttempts:        getEnvInt("SYNTH_MAX_ATTEMPTS", 3),
		SynthRetryBaseDelay:     time.Millisecond * time.Duration(getEnvInt("SYNTH_RETRY_BASE_MS", 1000)),
		CatalogTTL:              time.Second * time.Duration(getEnvInt("CATALOG_REFRESH_SECONDS", 300)),

		FalAPIKey:          os.Getenv("FAL_API_KEY"),
		FalBaseURL:         getEnv("FAL_BASE_URL", "https://fal.run"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		RenderAPIKey:       os.Getenv("RENDER_API_KEY"),
		RenderBaseURL:      os.Getenv("RENDER_BASE_URL"),
		StaticAssetBaseURL: getEnv("STATIC_ASSET_BASE_URL", "http://localhost:8080/static"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.CreditCostPerGeneration < 1 {
		return nil, fmt.Errorf("CREDIT_COST_PER_GENERATION must be at least 1")
	}

	if cfg.SynthMaxAttempts < 1 {
		cfg.SynthMaxAttempts = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
