package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds environment-based settings for the engine.
type Config struct {
	DatabaseURL   string
	ServerAddress string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string

	TickInterval     time.Duration
	GracePeriod      time.Duration
	DiscoveryTimeout time.Duration
	ConnectTimeout   time.Duration
	DebounceWindow   time.Duration

	BreakerFailures int
	BreakerCooldown time.Duration

	Workers int
}

// Load reads configuration from environment variables. Only the
// database URL is mandatory; every tunable falls back to a default.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = ":8090"
	}

	cfg := &Config{
		DatabaseURL:   dbURL,
		ServerAddress: addr,

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),

		TickInterval:     envDuration("TICK_INTERVAL", 60*time.Second),
		GracePeriod:      envDuration("GRACE_PERIOD", 30*time.Second),
		DiscoveryTimeout: envDuration("DISCOVERY_TIMEOUT", 5*time.Second),
		ConnectTimeout:   envDuration("CONNECT_TIMEOUT", 10*time.Second),
		DebounceWindow:   envDuration("DEBOUNCE_WINDOW", 2*time.Second),

		BreakerFailures: envInt("BREAKER_FAILURES", 3),
		BreakerCooldown: envDuration("BREAKER_COOLDOWN", 5*time.Minute),

		Workers: envInt("TICK_WORKERS", 8),
	}

	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("TICK_WORKERS must be positive")
	}
	return cfg, nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
