package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DBUrl           string
	JWTSecret       string
	AppEnv          string
	LogLevel        string
	EnableMetrics   bool
	SlotLeadTime    time.Duration
	RoomMaxPeers    int
	SignalRatePerS  float64
	SignalRateBurst int
	// EnvFileLoaded is false when no .env was found; the caller logs it once
	// the logger exists.
	EnvFileLoaded bool
}

func LoadConfig() (*Config, error) {
	envFileLoaded := godotenv.Load() == nil

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	leadMinutes := getEnvInt("SLOT_LEAD_TIME_MINUTES", 30)
	if leadMinutes < 0 {
		return nil, fmt.Errorf("SLOT_LEAD_TIME_MINUTES must not be negative")
	}
	roomMaxPeers := getEnvInt("ROOM_MAX_PEERS", 2)
	if roomMaxPeers < 0 {
		return nil, fmt.Errorf("ROOM_MAX_PEERS must not be negative")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DBUrl:           getEnv("DB_URL", ""),
		JWTSecret:       jwtSecret,
		AppEnv:          normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		EnableMetrics:   getEnvBool("ENABLE_METRICS", true),
		SlotLeadTime:    time.Duration(leadMinutes) * time.Minute,
		RoomMaxPeers:    roomMaxPeers,
		SignalRatePerS:  getEnvFloat("SIGNAL_RATE_PER_SEC", 20),
		SignalRateBurst: getEnvInt("SIGNAL_RATE_BURST", 40),
		EnvFileLoaded:   envFileLoaded,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
