// Package config reads the service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/tms-layers/internal/invalidation/kafkaconsumer"
)

type Config struct {
	Addr     string
	LogLevel string
	// LogConsole switches to human-readable output for local runs.
	LogConsole bool
	LogSampleN int

	DBPath   string
	SeedFile string

	// PublicBaseURL, when set, replaces the request host in media URLs.
	PublicBaseURL string

	RedisAddr      string
	CacheTTL       time.Duration
	CacheLocalSize int
	CacheLocalTTL  time.Duration
	CacheOpTimeout time.Duration

	CoverageH3Res int

	// WarmThreshold <= 0 disables re-rendering hot layers after invalidation.
	WarmThreshold float64
	WarmHalfLife  time.Duration

	Invalidation kafkaconsumer.Config

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	res := getint("COVERAGE_H3_RES", 3)
	if res < 0 || res > 15 {
		res = 3
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		DBPath:   getenv("DB_PATH", "tms.sqlite"),
		SeedFile: getenv("SEED_FILE", ""),

		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),

		// empty disables the shared tier
		RedisAddr:      getenv("REDIS_ADDR", ""),
		CacheTTL:       getduration("CACHE_TTL", 5*time.Minute),
		CacheLocalSize: getint("CACHE_LOCAL_SIZE", 1024),
		CacheLocalTTL:  getduration("CACHE_LOCAL_TTL", 30*time.Second),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		CoverageH3Res: res,

		WarmThreshold: getfloat("WARM_THRESHOLD", 3),
		WarmHalfLife:  getduration("WARM_HALF_LIFE", 5*time.Minute),

		Invalidation: kafkaconsumer.Config{
			Enabled:             getbool("INVALIDATION_ENABLED", false),
			Brokers:             splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:               getenv("KAFKA_TOPIC", "layer-changes"),
			GroupID:             getenv("KAFKA_GROUP_ID", "tms-config-invalidator"),
			SessionTimeout:      getduration("KAFKA_SESSION_TIMEOUT", 30*time.Second),
			Heartbeat:           getduration("KAFKA_HEARTBEAT", 3*time.Second),
			RebalanceTimeout:    getduration("KAFKA_REBALANCE_TIMEOUT", 30*time.Second),
			InitialOffsetOldest: getbool("KAFKA_INITIAL_OLDEST", false),
			DedupeSize:          getint("KAFKA_DEDUPE_SIZE", 8192),
		},

		MetricsEnabled: getbool("METRICS_ENABLED", true),
		MetricsAddr:    getenv("METRICS_ADDR", ""),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
