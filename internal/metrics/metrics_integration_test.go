package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/tms-layers/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Enabled: true, Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)

	start := time.Now()
	observability.ObserveRender("ok", time.Since(start))
	observability.ObserveRender("not_found", 10*time.Millisecond)

	observability.IncCacheHit("local")
	observability.IncCacheMiss("remote")
	observability.ObserveCacheOp("mget", nil, 0.002)

	observability.ObserveHTTP("GET", "/api/layers/{id}/layer_config", 200, 0.003)
	observability.IncKafkaConsumerError("decode")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`layer_config_render_duration_seconds_bucket`,
		`redis_operation_duration_seconds_count`,
		`kafka_consumer_errors_total{kind="decode"} `,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "layer_config_render_total", `outcome="ok"`)
	assertHasMetricLine(t, body, "layer_config_render_total", `outcome="not_found"`)
	assertHasMetricLine(t, body, "cache_results_total", `tier="local"`, `outcome="hit"`)
	assertHasMetricLine(t, body, "cache_results_total", `tier="remote"`, `outcome="miss"`)
	assertHasMetricLine(t, body, "http_requests_total",
		`method="GET"`, `route="/api/layers/{id}/layer_config"`, `status="200"`)
	assertHasMetricLine(t, body, "app_build_info", `version="test"`)
}
