package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP API (sessions, kicks, /ws, /metrics)
	HTTPHost string
	HTTPPort int

	// Goalie profiles
	GoalieProfilesPath string
	GoalieProfile      string

	// Kick log (SQLite)
	KickLogEnabled bool
	KickLogDBPath  string
	KickLogMaxRows int

	// Per-session kick throttle
	KickRatePerSec float64
	KickRateBurst  int

	ShutdownTimeout time.Duration

	// Discord session summaries; empty disables
	DiscordWebhookURL string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPHost: envStr("HTTP_HOST", "0.0.0.0"),
		HTTPPort: envInt("HTTP_PORT", 8090),

		GoalieProfilesPath: envStr("GOALIE_PROFILES_PATH", "internal/config/goalie_profiles.yaml"),
		GoalieProfile:      envStr("GOALIE_PROFILE", DefaultProfile),

		KickLogEnabled: envBool("KICKLOG_ENABLED", true),
		KickLogDBPath:  envStr("KICKLOG_DB_PATH", "data/kicklog.db"),
		KickLogMaxRows: envInt("KICKLOG_MAX_ROWS", 1_000_000),

		KickRatePerSec: float64(envInt("KICK_RATE_PER_SEC", 5)),
		KickRateBurst:  envInt("KICK_RATE_BURST", 10),

		ShutdownTimeout: time.Duration(envInt("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,

		DiscordWebhookURL: envStr("DISCORD_WEBHOOK_URL", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
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

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}
