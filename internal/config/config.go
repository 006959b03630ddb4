package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel string
	Debug    bool

	PreferIPv4     bool
	HTTPTimeout    time.Duration
	RequestTimeout time.Duration
	MaxConcurrent  int

	WebAddr string

	ProviderBaseURL string
	ProviderAPIKey  string

	ModelCatalogPath string
	AssetsDBPath     string

	TelegramToken  string
	TelegramChatID int64
}

// Load reads the environment. Nothing is required: without a provider key
// payloads are built but not submitted, and without a Telegram token no
// notifications are sent.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:         strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:            getEnvBool("DEBUG", false),
		PreferIPv4:       getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 120)) * time.Second,
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT", 4),
		WebAddr:          getEnv("WEB_ADDR", ":8080"),
		ProviderBaseURL:  strings.TrimRight(getEnv("PROVIDER_BASE_URL", "https://api.kie.ai"), "/"),
		ProviderAPIKey:   strings.TrimSpace(os.Getenv("PROVIDER_API_KEY")),
		ModelCatalogPath: strings.TrimSpace(os.Getenv("MODEL_CATALOG_PATH")),
		AssetsDBPath:     strings.TrimSpace(os.Getenv("ASSETS_DB_PATH")),
		TelegramToken:    strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, errors.New("TELEGRAM_CHAT_ID must be an integer")
		}
		cfg.TelegramChatID = id
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return Config{}, errors.New("LOG_LEVEL must be one of debug, info, warn, error")
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return Config{}, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}

	return cfg, nil
}

// CanSubmit reports whether provider credentials are configured.
func (c Config) CanSubmit() bool {
	return c.ProviderBaseURL != "" && c.ProviderAPIKey != ""
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
