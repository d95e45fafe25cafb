package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "tms"

// ConfigKey addresses a rendered layer document. Documents differ per base
// URL because image legends are absolutized against it.
func ConfigKey(layerID, baseURL string) string {
	base := normalizeBaseURL(baseURL)
	sum := xxhash.Sum64String(base)
	return fmt.Sprintf("%s:cfg:%s:b=%016x", prefix, idSegment(layerID), sum)
}

// ConfigKeyPrefix is the common prefix of every ConfigKey of a layer.
func ConfigKeyPrefix(layerID string) string {
	return fmt.Sprintf("%s:cfg:%s:", prefix, idSegment(layerID))
}

// LayerIndexKey names the redis set listing a layer's cached document keys.
func LayerIndexKey(layerID string) string {
	return fmt.Sprintf("%s:idx:%s", prefix, idSegment(layerID))
}

// idSegment keeps a readable form of the id for debugging. Sanitizing is
// lossy, so the digest of the raw id is what keeps distinct ids apart.
func idSegment(layerID string) string {
	return fmt.Sprintf("%s.%016x", sanitizeID(layerID), xxhash.Sum64String(layerID))
}

func normalizeBaseURL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "/")
	if i := strings.Index(s, "://"); i >= 0 {
		// scheme and host are case-insensitive, the path is not
		rest := s[i+3:]
		host, path := rest, ""
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			host, path = rest[:j], rest[j:]
		}
		return strings.ToLower(s[:i+3]+host) + path
	}
	return s
}

func sanitizeID(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// ':' is the key separator, so it is replaced as well
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
