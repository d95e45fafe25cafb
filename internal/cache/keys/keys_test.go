package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := ConfigKey("5f0c8f2e-layer", "https://cms.example.org")
	k2 := ConfigKey("5f0c8f2e-layer", "https://cms.example.org")
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestNormalization_HostCaseAndTrailingSlash(t *testing.T) {
	k1 := ConfigKey("layer-1", "HTTPS://CMS.Example.org/")
	k2 := ConfigKey("layer-1", "https://cms.example.org")
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !regexp.MustCompile(`^[A-Za-z0-9:_=.\-]+$`).MatchString(k1) {
		t.Fatalf("key contains disallowed characters: %s", k1)
	}
}

func TestDifference_DifferentBaseURLs(t *testing.T) {
	if ConfigKey("l", "https://a.example.org") == ConfigKey("l", "https://b.example.org") {
		t.Fatal("different base urls must produce different keys")
	}
	if ConfigKey("l", "https://a.example.org/Media") == ConfigKey("l", "https://a.example.org/media") {
		t.Fatal("path case must be kept")
	}
}

func TestPrefixAndIndex(t *testing.T) {
	k := ConfigKey("layer:1", "")
	if !strings.HasPrefix(k, ConfigKeyPrefix("layer:1")) {
		t.Fatalf("key %s does not start with prefix %s", k, ConfigKeyPrefix("layer:1"))
	}
	if strings.Count(k, ":") != 3 {
		t.Fatalf("id separator leaked into key: %s", k)
	}
	if !regexp.MustCompile(`^tms:idx:layer_1\.[0-9a-f]{16}$`).MatchString(LayerIndexKey("layer 1")) {
		t.Fatalf("index key=%s", LayerIndexKey("layer 1"))
	}
}

func TestDistinctIDs_NeverShareKeys(t *testing.T) {
	ids := []string{"sst:v2", "sst-v2", "sst--v2", "sst v2", "sst_v2", "sst__v2", " sst-v2", "sst-v2 "}
	seen := map[string]string{}
	for _, id := range ids {
		for name, k := range map[string]string{
			"config": ConfigKey(id, "https://a"),
			"prefix": ConfigKeyPrefix(id),
			"index":  LayerIndexKey(id),
		} {
			if other, ok := seen[name+k]; ok {
				t.Fatalf("%s key of %q collides with %q: %s", name, id, other, k)
			}
			seen[name+k] = id
		}
	}
	// one layer's prefix must not cover another layer's keys
	if strings.HasPrefix(ConfigKey("sst-v2x", "https://a"), ConfigKeyPrefix("sst-v2")) {
		t.Fatal("prefix of sst-v2 matches keys of sst-v2x")
	}
}

func TestUnicodeSafety_NoNonASCII(t *testing.T) {
	k := ConfigKey("Göteborg-雪", "https://例え.jp")
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if !regexp.MustCompile(`:b=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing or invalid :b=<hex64> suffix in key: %s", k)
	}
}
