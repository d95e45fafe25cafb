package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/tms-layers/internal/core/observability"
	"github.com/mohammed-shakir/tms-layers/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestSetMGetDel_HappyPath_AndMGetFiltersMissing(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := rc.Set(ctx, "k2", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := rc.MGet(ctx, []string{"k1", "k2", "missing"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MGet size=%d want 2", len(got))
	}
	if string(got["k1"]) != "v1" || string(got["k2"]) != "v2" {
		t.Fatalf("unexpected values: %+v", got)
	}

	if err := rc.Del(ctx, "k1", "k2"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	got, err = rc.MGet(ctx, []string{"k1", "k2"})
	if err != nil || len(got) != 0 {
		t.Fatalf("after Del got=%v err=%v", got, err)
	}
}

func TestTTLExpiry_MGetFiltersExpired(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "ttl-key", []byte("v"), 2*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(3 * time.Second)

	got, err := rc.MGet(ctx, []string{"ttl-key"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if _, ok := got["ttl-key"]; ok {
		t.Fatalf("expected ttl-key to be absent after expiry; got=%v", got)
	}
}

func TestSetWithIndex_DelIndexDropsAllVariants(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	for _, k := range []string{"cfg:a:1", "cfg:a:2"} {
		if err := rc.SetWithIndex(ctx, "idx:a", k, []byte("doc"), time.Minute); err != nil {
			t.Fatalf("SetWithIndex: %v", err)
		}
	}
	if err := rc.SetWithIndex(ctx, "idx:b", "cfg:b:1", []byte("doc"), time.Minute); err != nil {
		t.Fatalf("SetWithIndex: %v", err)
	}

	members, err := mr.Members("idx:a")
	if err != nil || len(members) != 2 {
		t.Fatalf("index members=%v err=%v", members, err)
	}
	if ttl := mr.TTL("idx:a"); ttl != 2*time.Minute {
		t.Fatalf("index ttl=%v want 2m", ttl)
	}

	n, err := rc.DelIndex(ctx, "idx:a")
	if err != nil {
		t.Fatalf("DelIndex: %v", err)
	}
	if n != 2 {
		t.Fatalf("dropped=%d want 2", n)
	}
	if mr.Exists("cfg:a:1") || mr.Exists("cfg:a:2") || mr.Exists("idx:a") {
		t.Fatal("layer a keys survived DelIndex")
	}
	if !mr.Exists("cfg:b:1") {
		t.Fatal("unrelated layer was dropped")
	}

	n, err = rc.DelIndex(ctx, "idx:missing")
	if err != nil || n != 0 {
		t.Fatalf("DelIndex on missing index n=%d err=%v", n, err)
	}
}

func TestContextCanceled_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, err := rc.MGet(ctx, []string{"k"}); err == nil {
		t.Fatalf("expected error on MGet with canceled context")
	}
	if _, err := rc.DelIndex(ctx, "idx"); err == nil {
		t.Fatalf("expected error on DelIndex with canceled context")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.Init(metrics.Config{Enabled: true})
	observability.Init(p.Registerer(), true)

	rc, _ := newMini(t)
	ctx := context.Background()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _ = rc.MGet(ctx, []string{"m1"})
	_ = rc.SetWithIndex(ctx, "i", "m2", []byte("x"), time.Minute)
	_, _ = rc.DelIndex(ctx, "i")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, op := range []string{"set", "mget", "set_indexed", "del_index"} {
		if !strings.Contains(body, `cache_op_total{op="`+op+`"`) {
			t.Fatalf("missing cache_op_total for %s; got:\n%s", op, body)
		}
	}
	if !strings.Contains(body, `redis_operation_duration_seconds_bucket{op="set"`) {
		t.Fatalf("missing redis_operation_duration_seconds histogram; got:\n%s", body)
	}
}
