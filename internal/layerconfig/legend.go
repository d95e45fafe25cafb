package layerconfig

import (
	"net/url"
	"strings"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
)

const (
	LegendBasic = "basic"
	LegendImage = "image"
)

type LegendEntry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LegendConfig is an image legend when Type is LegendImage and an item
// legend otherwise. Only the fields of its shape are encoded.
type LegendConfig struct {
	Type     string
	Items    []LegendEntry
	ImageURL string
}

func (l LegendConfig) MarshalJSON() ([]byte, error) {
	if l.Type == LegendImage {
		return Marshal(struct {
			Type     string `json:"type"`
			ImageURL string `json:"imageUrl"`
		}{l.Type, l.ImageURL})
	}
	items := l.Items
	if items == nil {
		items = []LegendEntry{}
	}
	return Marshal(struct {
		Type  string        `json:"type"`
		Items []LegendEntry `json:"items"`
	}{l.Type, items})
}

// Absolutizer turns a relative media URL into an absolute one.
type Absolutizer func(string) string

// AgainstBase resolves media URLs against base. Absolute URLs pass through
// and an empty base leaves every URL as stored.
func AgainstBase(base string) Absolutizer {
	bu, err := url.Parse(strings.TrimSpace(base))
	if err != nil || bu.Scheme == "" || bu.Host == "" {
		return func(s string) string { return s }
	}
	if !strings.HasSuffix(bu.Path, "/") {
		bu.Path += "/"
	}
	return func(s string) string {
		ref, err := url.Parse(s)
		if err != nil || ref.IsAbs() || ref.Host != "" {
			return s
		}
		return bu.ResolveReference(ref).String()
	}
}

func defaultLegend() LegendConfig {
	return LegendConfig{Type: LegendBasic, Items: []LegendEntry{}}
}

// LegendConfig renders the first stored legend entry. Any further entries
// are ignored.
func (b *Builder) LegendConfig(absolutize Absolutizer) LegendConfig {
	if len(b.layer.Legend) == 0 {
		return defaultLegend()
	}
	entry := b.layer.Legend[0]

	switch entry.Kind {
	case model.LegendImage:
		if entry.Image == nil {
			return defaultLegend()
		}
		u := entry.Image.URL
		if absolutize != nil {
			u = absolutize(u)
		}
		return LegendConfig{Type: LegendImage, ImageURL: u}
	case model.LegendInline:
		if entry.Inline == nil {
			return defaultLegend()
		}
		items := make([]LegendEntry, 0, len(entry.Inline.Items))
		for _, it := range entry.Inline.Items {
			items = append(items, LegendEntry{Name: it.Value, Color: it.Color})
		}
		return LegendConfig{Type: entry.Inline.Type, Items: items}
	default:
		return defaultLegend()
	}
}
