package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the presence/routing
// process. Values are primarily loaded from environment variables with sane
// defaults so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ProviderEndpoint string
	ProviderTimeout  time.Duration

	HeartbeatInterval time.Duration
	PointToleranceKm  float64
	CoordEpsilonDeg   float64
	MetricTolerance   float64

	RedisAddr        string
	RedisPassword    string
	RedisLastSeenKey string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:          ":8080",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		ProviderTimeout:   5 * time.Second,
		HeartbeatInterval: 60 * time.Second,
		PointToleranceKm:  1.0,
		CoordEpsilonDeg:   1e-4,
		MetricTolerance:   10,
		RedisLastSeenKey:  "presence:last_seen",
		KafkaTopic:        "presence-events",
		LogLevel:          "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.ProviderEndpoint = strings.TrimSpace(os.Getenv("DIRECTIONS_ENDPOINT"))
	setDurationFromEnv(&cfg.ProviderTimeout, "DIRECTIONS_TIMEOUT", &errs)

	setDurationFromEnv(&cfg.HeartbeatInterval, "PRESENCE_HEARTBEAT_INTERVAL", &errs)
	setFloatFromEnv(&cfg.PointToleranceKm, "ROUTE_POINT_TOLERANCE_KM", &errs)
	setFloatFromEnv(&cfg.CoordEpsilonDeg, "ROUTE_COORD_EPSILON_DEG", &errs)
	setFloatFromEnv(&cfg.MetricTolerance, "ROUTE_METRIC_TOLERANCE", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisLastSeenKey, "REDIS_LAST_SEEN_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("PRESENCE_HEARTBEAT_INTERVAL must be > 0"))
	}
	if cfg.PointToleranceKm <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_POINT_TOLERANCE_KM must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
