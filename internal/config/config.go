package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	RedisURL string

	// Observation buffer
	BufferCapacity int

	// Comparator thresholds
	PresenceThreshold float64

	// Decay model thresholds
	StaleThreshold        float64
	VerificationThreshold float64
	MinimumConfidence     float64

	// Debounce / throttle windows
	SnapshotDebounce time.Duration
	ExpiryThrottle   time.Duration

	// Event bus dedup cache
	DedupCacheCapacity int
	DedupCacheTrimTo   int

	// Proactive monitor schedule (standard 5-field cron expression)
	MonitorCron string

	// Delivery log for push/assistant channels
	NotificationLogPath string

	// Optional per-category decay rate overrides
	DecayRatesPath string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8000"),
		RedisURL: getEnv("REDIS_URL", ""),

		BufferCapacity: getIntEnv("OBSERVATION_BUFFER_CAPACITY", 10),

		PresenceThreshold: getFloatEnv("PRESENCE_THRESHOLD", 0.5),

		StaleThreshold:        getFloatEnv("STALE_THRESHOLD", 0.5),
		VerificationThreshold: getFloatEnv("VERIFICATION_THRESHOLD", 0.6),
		MinimumConfidence:     getFloatEnv("MINIMUM_CONFIDENCE", 0.1),

		SnapshotDebounce: getDurationEnv("SNAPSHOT_DEBOUNCE_SECONDS", 900*time.Second),
		ExpiryThrottle:   getDurationEnv("EXPIRY_THROTTLE_SECONDS", 86400*time.Second),

		DedupCacheCapacity: getIntEnv("BUS_DEDUP_CACHE_CAPACITY", 10000),
		DedupCacheTrimTo:   getIntEnv("BUS_DEDUP_CACHE_TRIM_TO", 5000),

		MonitorCron: getEnv("MONITOR_CRON", "0 * * * *"),

		NotificationLogPath: getEnv("NOTIFICATION_LOG_PATH", "./logs/notifications.log"),
		DecayRatesPath:      getEnv("DECAY_RATES_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv reads an integer number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return time.Duration(parsed) * time.Second
		}
	}
	return defaultValue
}
