package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "REDIS_ADDR", "CACHE_TTL", "COVERAGE_H3_RES", "KAFKA_BROKERS", "PUBLIC_BASE_URL", "WARM_THRESHOLD"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Addr != ":8090" || c.DBPath != "tms.sqlite" || c.RedisAddr != "" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.CacheTTL != 5*time.Minute || c.CacheLocalTTL != 30*time.Second || c.CacheOpTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected cache defaults: %+v", c)
	}
	if c.CoverageH3Res != 3 {
		t.Fatalf("res=%d", c.CoverageH3Res)
	}
	if c.Invalidation.Enabled || c.Invalidation.Topic != "layer-changes" || len(c.Invalidation.Brokers) != 1 {
		t.Fatalf("unexpected invalidation defaults: %+v", c.Invalidation)
	}
	if c.WarmThreshold != 3 || c.WarmHalfLife != 5*time.Minute {
		t.Fatalf("unexpected warm defaults: %v %v", c.WarmThreshold, c.WarmHalfLife)
	}
	if !c.MetricsEnabled || c.MetricsPath != "/metrics" {
		t.Fatalf("unexpected metrics defaults: %+v", c)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://cms.example.org/")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("COVERAGE_H3_RES", "42")
	t.Setenv("INVALIDATION_ENABLED", "yes")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LOG_CONSOLE", "1")
	t.Setenv("WARM_THRESHOLD", "0")

	c := FromEnv()
	if c.PublicBaseURL != "https://cms.example.org" {
		t.Fatalf("trailing slash kept: %q", c.PublicBaseURL)
	}
	if c.RedisAddr != "redis:6379" || c.CacheTTL != 90*time.Second || !c.LogConsole {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.WarmThreshold != 0 {
		t.Fatalf("warming should be disabled, got %v", c.WarmThreshold)
	}
	if c.CoverageH3Res != 3 {
		t.Fatalf("out of range res must fall back, got %d", c.CoverageH3Res)
	}
	b := c.Invalidation.Brokers
	if !c.Invalidation.Enabled || len(b) != 2 || b[0] != "k1:9092" || b[1] != "k2:9092" {
		t.Fatalf("invalidation=%+v", c.Invalidation)
	}
}
