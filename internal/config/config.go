package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig is the process-level configuration read from the environment.
// User-editable collection settings live in the settings file (see Settings).
type AppConfig struct {
	Port string

	// SettingsFile is the JSON or YAML file holding the per-cycle Settings.
	SettingsFile string

	// HTTPTimeout bounds a single outbound request.
	HTTPTimeout time.Duration
	// ProviderTimeout bounds a whole provider call (lookup plus page fetches).
	ProviderTimeout time.Duration
	// ProviderParallelism is how many providers are scraped at once.
	ProviderParallelism int
	// HTTPMaxRetries is the per-request retry budget (0 = fail fast, retry next cycle).
	HTTPMaxRetries int

	// Providers restricts collection to these registry names (empty = all).
	Providers []string

	// Location is used for tracking start parsing, date filters and chart timestamps.
	Location *time.Location

	// MQTT fan-out of appended batches; disabled when MQTTBroker is empty.
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.SettingsFile = getenvDefault("SETTINGS_FILE", "settings.json")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getenvDuration("PROVIDER_TIMEOUT", 45*time.Second); err != nil {
		return nil, err
	}
	cfg.ProviderParallelism = getenvInt("PROVIDER_PARALLELISM", 2)
	cfg.HTTPMaxRetries = getenvInt("HTTP_MAX_RETRIES", 0)
	if cfg.HTTPMaxRetries < 0 {
		return nil, fmt.Errorf("invalid HTTP_MAX_RETRIES: %d", cfg.HTTPMaxRetries)
	}

	cfg.Providers = splitList(os.Getenv("PROVIDERS"))

	tz := getenvDefault("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "weather-tracker")
	cfg.MQTTTopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", "weather")

	return cfg, nil
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

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
