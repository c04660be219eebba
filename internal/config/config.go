package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionMaxAge int

	// Metadata API
	MetadataBaseURL        string
	MetadataAPIKey         string
	MetadataTimeout        time.Duration
	MetadataRefreshTTL     time.Duration
	MetadataBatchInterval  time.Duration
	MetadataAPIInterval    time.Duration
	MetadataMaxPerCycle    int

	// Reorder debounce
	ReorderFlushDelay time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitMovieReg int

	// Cleanup
	SlotRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.MetadataBaseURL = os.Getenv("METADATA_BASE_URL")
	if cfg.MetadataBaseURL == "" {
		missing = append(missing, "METADATA_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 2592000) // 30日: 友人グループの常用を想定
	cfg.MetadataAPIKey = getEnvString("METADATA_API_KEY", "")
	cfg.MetadataTimeout = getEnvDuration("METADATA_TIMEOUT", 10*time.Second)
	cfg.MetadataRefreshTTL = getEnvDuration("METADATA_REFRESH_TTL", 7*24*time.Hour)
	cfg.MetadataBatchInterval = getEnvDuration("METADATA_BATCH_INTERVAL", 30*time.Minute)
	cfg.MetadataAPIInterval = getEnvDuration("METADATA_API_INTERVAL", 2*time.Second)
	cfg.MetadataMaxPerCycle = getEnvInt("METADATA_MAX_PER_CYCLE", 50)
	cfg.ReorderFlushDelay = getEnvDuration("REORDER_FLUSH_DELAY", 1500*time.Millisecond)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMovieReg = getEnvInt("RATE_LIMIT_MOVIE_REG", 10)
	cfg.SlotRetentionDays = getEnvInt("SLOT_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
