// Package service renders layer config documents from stored records and
// keeps the render cache and coverage index in step with CMS edits.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
	"github.com/mohammed-shakir/tms-layers/internal/core/observability"
	"github.com/mohammed-shakir/tms-layers/internal/hotness"
	"github.com/mohammed-shakir/tms-layers/internal/layerconfig"
	"github.com/mohammed-shakir/tms-layers/internal/store"
)

var ErrUnknownSection = errors.New("unknown document section")

// Sections a document can be fetched by, one per client contract object.
var Sections = []string{"layer_config", "params", "param_selector_config", "legend_config"}

type DocumentCache interface {
	Get(ctx context.Context, layerID, baseURL string) ([]byte, bool)
	Put(ctx context.Context, layerID, baseURL string, doc []byte)
	InvalidateLayer(ctx context.Context, layerID string) (int, error)
}

type Coverage interface {
	Intersecting(bb model.BBox) ([]string, error)
	Put(ds *model.Dataset) error
	Remove(id string)
	Rebuild(datasets []*model.Dataset)
}

type LayerService struct {
	store    store.Store
	cache    DocumentCache
	coverage Coverage
	logger   *slog.Logger

	hot           hotness.Interface
	warmThreshold float64
}

func New(st store.Store, c DocumentCache, cov Coverage, log *slog.Logger) *LayerService {
	if log == nil {
		log = slog.Default()
	}
	return &LayerService{store: st, cache: c, coverage: cov, logger: log.With("logger", "service")}
}

// WithWarming makes InvalidateLayer re-render every base URL variant of the
// layer whose request score in hot is at least threshold.
func (s *LayerService) WithWarming(hot hotness.Interface, threshold float64) *LayerService {
	s.hot = hot
	s.warmThreshold = threshold
	return s
}

// Document returns the JSON document of layer id with media URLs resolved
// against baseURL. Only variants that exist count towards hotness, so
// requests for unknown layers leave the tracker untouched.
func (s *LayerService) Document(ctx context.Context, id, baseURL string) ([]byte, error) {
	b, ok := s.cache.Get(ctx, id, baseURL)
	if !ok {
		var err error
		if b, err = s.renderAndStore(ctx, id, baseURL); err != nil {
			return nil, err
		}
	}
	if s.hot != nil {
		s.hot.Inc(variantKey(id, baseURL))
	}
	return b, nil
}

func (s *LayerService) renderAndStore(ctx context.Context, id, baseURL string) ([]byte, error) {
	start := time.Now()
	doc, err := s.Render(ctx, id, baseURL)
	if err != nil {
		observability.ObserveRender(renderOutcome(err), time.Since(start))
		return nil, err
	}
	b, err := layerconfig.Marshal(doc)
	if err != nil {
		observability.ObserveRender("error", time.Since(start))
		return nil, fmt.Errorf("encode layer %q: %w", id, err)
	}
	observability.ObserveRender("ok", time.Since(start))

	s.cache.Put(ctx, id, baseURL, b)
	return b, nil
}

// Render builds the document without touching the cache.
func (s *LayerService) Render(ctx context.Context, id, baseURL string) (*layerconfig.Document, error) {
	layer, err := s.store.GetLayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if layer.Dataset == nil {
		ds, err := s.store.GetDataset(ctx, layer.DatasetID)
		if err != nil {
			return nil, fmt.Errorf("dataset of layer %q: %w", id, err)
		}
		layer.Dataset = ds
	}
	return layerconfig.Render(layer, layer.Dataset, layerconfig.AgainstBase(baseURL))
}

// Section returns one top-level member of the cached document as raw JSON,
// so key order inside it is kept.
func (s *LayerService) Section(ctx context.Context, id, baseURL, name string) (json.RawMessage, error) {
	if !slices.Contains(Sections, name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}

	b, err := s.Document(ctx, id, baseURL)
	if err != nil {
		return nil, err
	}
	var parts map[string]json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return nil, fmt.Errorf("decode cached layer %q: %w", id, err)
	}
	raw, ok := parts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	return raw, nil
}

type ListQuery struct {
	DatasetID string
	BBox      *model.BBox
	Limit     int
	Offset    int
}

type Summary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Default       bool   `json:"default"`
	DatasetID     string `json:"dataset"`
	DatasetTitle  string `json:"dataset_title"`
	MultiTemporal bool   `json:"multi_temporal"`
}

// List returns layer summaries, restricted to datasets whose coverage
// touches q.BBox when one is given.
func (s *LayerService) List(ctx context.Context, q ListQuery) ([]Summary, error) {
	f := store.Filter{DatasetID: q.DatasetID, Limit: q.Limit, Offset: q.Offset}
	if q.BBox != nil {
		ids, err := s.coverage.Intersecting(*q.BBox)
		if err != nil {
			return nil, err
		}
		f.DatasetIDs = ids
	}

	layers, err := s.store.ListLayers(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(layers))
	for _, l := range layers {
		sum := Summary{ID: l.ID, Title: l.Title, Default: l.Default, DatasetID: l.DatasetID}
		if l.Dataset != nil {
			sum.DatasetTitle = l.Dataset.Title
			sum.MultiTemporal = l.Dataset.MultiTemporal
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *LayerService) InvalidateLayer(ctx context.Context, id string) error {
	n, err := s.cache.InvalidateLayer(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "layer invalidation failed", slog.String("layer_id", id), slog.Any("error", err))
		return fmt.Errorf("invalidate layer %q: %w", id, err)
	}
	s.logger.DebugContext(ctx, "layer invalidated", slog.String("layer_id", id), slog.Int("entries", n))
	s.warm(ctx, id)
	return nil
}

// warm refills the cache for the hot variants of layer id. Failures only
// cost a later cache miss.
func (s *LayerService) warm(ctx context.Context, id string) {
	if s.hot == nil {
		return
	}
	prefix := variantKey(id, "")
	warmed := 0
	for key, score := range s.hot.WithPrefix(prefix) {
		if score < s.warmThreshold {
			continue
		}
		base := strings.TrimPrefix(key, prefix)
		if _, err := s.renderAndStore(ctx, id, base); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.hot.Reset(key)
				continue
			}
			s.logger.WarnContext(ctx, "layer warm-up failed",
				slog.String("layer_id", id), slog.String("base_url", base), slog.Any("error", err))
			continue
		}
		warmed++
	}
	if warmed > 0 {
		observability.AddWarmed(warmed)
		s.logger.DebugContext(ctx, "layer warmed", slog.String("layer_id", id), slog.Int("variants", warmed))
	}
}

// variantKey names one rendering of a layer in the hotness tracker.
func variantKey(id, baseURL string) string {
	return id + "\x00" + baseURL
}

// InvalidateDataset drops the cached documents of every layer of dataset id
// and re-indexes its coverage. A deleted dataset leaves the index.
func (s *LayerService) InvalidateDataset(ctx context.Context, id string) (int, error) {
	ids, err := s.store.LayerIDsForDataset(ctx, id)
	if err != nil {
		return 0, err
	}
	for _, lid := range ids {
		if err := s.InvalidateLayer(ctx, lid); err != nil {
			return 0, err
		}
	}

	ds, err := s.store.GetDataset(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.coverage.Remove(id)
	case err != nil:
		return len(ids), err
	default:
		if err := s.coverage.Put(ds); err != nil {
			s.logger.WarnContext(ctx, "dataset coverage not updated",
				slog.String("dataset_id", id), slog.Any("error", err))
		}
	}
	return len(ids), nil
}

// RebuildCoverage indexes every stored dataset from scratch.
func (s *LayerService) RebuildCoverage(ctx context.Context) error {
	ds, err := s.store.ListDatasets(ctx)
	if err != nil {
		return err
	}
	s.coverage.Rebuild(ds)
	return nil
}

func renderOutcome(err error) string {
	var ce *layerconfig.ConfigError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.As(err, &ce):
		return "config_error"
	default:
		return "error"
	}
}
