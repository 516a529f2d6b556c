package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	ActionGroupName string

	DatabaseURL  string
	DataDir      string
	LongTermPath string

	EmbeddingProvider string
	GeminiAPIKey      string
	GeminiEmbedModel  string
	EmbeddingDim      int

	LLMProvider string
	ArkAPIKey   string
	ArkModel    string
	ArkBaseURL  string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "companion"),
		AllowAnyOrigin:    false,
		ActionGroupName:   envOrDefault("ACTION_GROUP_NAME", "BibleCompanionMemory"),
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		DataDir:           stringsTrimSpace("DATA_DIR"),
		LongTermPath:      stringsTrimSpace("LONGTERM_PATH"),
		EmbeddingProvider: envOrDefault("EMBEDDING_PROVIDER", "local"),
		GeminiAPIKey:      stringsTrimSpace("GEMINI_API_KEY"),
		GeminiEmbedModel:  envOrDefault("GEMINI_EMBED_MODEL", "gemini-embedding-001"),
		EmbeddingDim:      768,
		LLMProvider:       envOrDefault("LLM_PROVIDER", "auto"),
		ArkAPIKey:         stringsTrimSpace("ARK_API_KEY"),
		ArkModel:          stringsTrimSpace("ARK_MODEL"),
		ArkBaseURL:        envOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	switch cfg.EmbeddingProvider {
	case "gemini", "local":
	default:
		return Config{}, fmt.Errorf("EMBEDDING_PROVIDER must be gemini or local")
	}
	switch cfg.LLMProvider {
	case "ark", "mock", "auto":
	default:
		return Config{}, fmt.Errorf("LLM_PROVIDER must be ark, mock or auto")
	}
	if cfg.EmbeddingProvider == "gemini" && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY is required when EMBEDDING_PROVIDER=gemini")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
