package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	LogLevel        string
	APIKey          string
	AnthropicAPIKey string
	AnthropicModel  string
	OracleTimeout   time.Duration
	ResponseProfile string

	CallbackURL     string
	CallbackTimeout time.Duration
	CallbackWorkers int
	CallbackQueue   int
	ReportCadence   int

	SessionBackend string
	SessionTTL     time.Duration
	SessionMax     int
	RedisURL       string
	DatabaseURL    string

	NatsURL       string
	NatsToken     string
	NatsInbound   bool
	SlackBotToken string
	SlackChannel  string
}

func Load() Config {
	return Config{
		Port:            envInt("SNARE_PORT", 8001),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		APIKey:          envStr("SNARE_API_KEY", ""),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("SNARE_MODEL", "claude-sonnet-4-20250514"),
		OracleTimeout:   envDuration("ORACLE_TIMEOUT", 10*time.Second),
		ResponseProfile: envStr("RESPONSE_PROFILE", "minimal"),

		CallbackURL:     envStr("CALLBACK_URL", "https://hackathon.guvi.in/api/updateHoneyPotFinalResult"),
		CallbackTimeout: envDuration("CALLBACK_TIMEOUT", 5*time.Second),
		CallbackWorkers: envInt("CALLBACK_WORKERS", 2),
		CallbackQueue:   envInt("CALLBACK_QUEUE", 256),
		ReportCadence:   envInt("REPORT_CADENCE", 5),

		SessionBackend: envStr("SESSION_BACKEND", "memory"),
		SessionTTL:     envDuration("SESSION_TTL", 6*time.Hour),
		SessionMax:     envInt("SESSION_MAX", 10000),
		RedisURL:       envStr("REDIS_URL", ""),
		DatabaseURL:    envStr("DATABASE_URL", ""),

		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		NatsInbound:   envBool("NATS_INBOUND", true),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_REPORTS_CHANNEL", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
