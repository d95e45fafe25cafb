// Package layerconfig derives the JSON configuration a map client needs to
// fetch a tile layer: tile URL template, parameter selectors, default
// parameter values and legend.
//
// A Builder only reads its inputs, so one may be shared between goroutines
// as long as the layer and dataset are not mutated.
package layerconfig

import "github.com/mohammed-shakir/tms-layers/internal/core/model"

const (
	TimeParam         = "time"
	TimePlaceholder   = "{{time}}"
	SelectorToken     = "{selector}"
	DateTimeType      = "datetime"
	CurrentTimeFormat = "yyyy-mm-dd HH:MM"
	RasterType        = "raster"
)

type Source struct {
	Type  string   `json:"type"`
	Tiles []string `json:"tiles"`
}

type LayerConfig struct {
	Type   string `json:"type"`
	Source Source `json:"source"`
}

type DateFormat struct {
	CurrentTime string `json:"currentTime"`
}

// SelectorConfig describes one parameter selector in the client. The time
// selector is the only one with a DateFormat; it carries AvailableDates
// instead of Options.
type SelectorConfig struct {
	Key            string
	Required       bool
	Type           string
	Sentence       string
	Options        []model.SelectOption
	AvailableDates []string
	DateFormat     *DateFormat
}

func (s SelectorConfig) MarshalJSON() ([]byte, error) {
	if s.DateFormat != nil {
		dates := s.AvailableDates
		if dates == nil {
			dates = []string{}
		}
		return Marshal(struct {
			Key            string      `json:"key"`
			Required       bool        `json:"required"`
			Sentence       string      `json:"sentence"`
			Type           string      `json:"type"`
			AvailableDates []string    `json:"availableDates"`
			DateFormat     *DateFormat `json:"dateFormat"`
		}{s.Key, s.Required, s.Sentence, s.Type, dates, s.DateFormat})
	}
	opts := s.Options
	if opts == nil {
		opts = []model.SelectOption{}
	}
	return Marshal(struct {
		Key      string               `json:"key"`
		Required bool                 `json:"required"`
		Type     string               `json:"type"`
		Options  []model.SelectOption `json:"options"`
		Sentence string               `json:"sentence"`
	}{s.Key, s.Required, s.Type, opts, s.Sentence})
}

type Builder struct {
	layer   *model.Layer
	dataset model.Dataset
}

// New returns a builder for layer. A nil dataset falls back to
// layer.Dataset, and to a non-temporal dataset when that is unset too.
func New(layer *model.Layer, dataset *model.Dataset) *Builder {
	if layer == nil {
		layer = &model.Layer{}
	}
	if dataset == nil {
		dataset = layer.Dataset
	}
	b := &Builder{layer: layer}
	if dataset != nil {
		b.dataset = *dataset
	}
	return b
}

func (b *Builder) multiTemporal() bool {
	return b.dataset.MultiTemporal
}

// StaticParams maps static query keys to values; later duplicates win.
func (b *Builder) StaticParams() *OrderedMap[string] {
	out := NewOrderedMap[string]()
	for _, p := range b.layer.StaticParams {
		out.Set(p.Key, p.Value)
	}
	return out
}

// SelectableParams maps parameter names to their definitions; later
// duplicates win.
func (b *Builder) SelectableParams() *OrderedMap[model.SelectableQueryParam] {
	out := NewOrderedMap[model.SelectableQueryParam]()
	for _, p := range b.layer.SelectableParams {
		out.Set(p.Name, p)
	}
	return out
}

func (b *Builder) SelectableParamsConfig() []SelectorConfig {
	params := b.SelectableParams()
	out := make([]SelectorConfig, 0, params.Len())
	params.Each(func(key string, p model.SelectableQueryParam) bool {
		label := p.Label
		if label == "" {
			label = key
		}
		out = append(out, SelectorConfig{
			Key:      key,
			Required: true,
			Type:     p.Type,
			Options:  p.Options,
			Sentence: label + " " + SelectorToken,
		})
		return true
	})
	return out
}

// QueryParams is the merged tile URL query: the time placeholder first for
// multi-temporal datasets, then static params over it.
func (b *Builder) QueryParams() *OrderedMap[string] {
	out := NewOrderedMap[string]()
	if b.multiTemporal() {
		out.Set(TimeParam, TimePlaceholder)
	}
	out.Merge(b.StaticParams())
	return out
}

func (b *Builder) TileURL() string {
	u := b.layer.BaseURL
	if q := QueryString(b.QueryParams()); q != "" {
		u = u + "?" + q
	}
	return u
}

func (b *Builder) LayerConfig() LayerConfig {
	return LayerConfig{
		Type: RasterType,
		Source: Source{
			Type:  RasterType,
			Tiles: []string{b.TileURL()},
		},
	}
}

func (b *Builder) ParamSelectorConfig() []SelectorConfig {
	selectable := b.SelectableParamsConfig()
	out := make([]SelectorConfig, 0, len(selectable)+1)
	if b.multiTemporal() {
		out = append(out, SelectorConfig{
			Key:            TimeParam,
			Required:       true,
			Sentence:       SelectorToken,
			Type:           DateTimeType,
			AvailableDates: []string{},
			DateFormat:     &DateFormat{CurrentTime: CurrentTimeFormat},
		})
	}
	return append(out, selectable...)
}

// DefaultParams picks the initial value of every parameter: the first
// option flagged default, else the first option. Time starts empty.
func (b *Builder) DefaultParams() (*OrderedMap[string], error) {
	out := NewOrderedMap[string]()
	if b.multiTemporal() {
		out.Set(TimeParam, "")
	}
	for _, sel := range b.SelectableParamsConfig() {
		v, err := b.defaultOption(sel)
		if err != nil {
			return nil, err
		}
		out.Set(sel.Key, v)
	}
	return out, nil
}

func (b *Builder) defaultOption(sel SelectorConfig) (string, error) {
	if len(sel.Options) == 0 {
		return "", &ConfigError{LayerID: b.layer.ID, Param: sel.Key, Reason: "selectable param has no options"}
	}
	for _, o := range sel.Options {
		if o.Default {
			return o.Value, nil
		}
	}
	return sel.Options[0].Value, nil
}
