// Package router maps the layer config HTTP API onto the layer service.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
	"github.com/mohammed-shakir/tms-layers/internal/layerconfig"
	mylog "github.com/mohammed-shakir/tms-layers/internal/logger"
	"github.com/mohammed-shakir/tms-layers/internal/service"
	"github.com/mohammed-shakir/tms-layers/internal/store"
)

const maxListLimit = 500

type Layers interface {
	Document(ctx context.Context, id, baseURL string) ([]byte, error)
	Section(ctx context.Context, id, baseURL, name string) (json.RawMessage, error)
	List(ctx context.Context, q service.ListQuery) ([]service.Summary, error)
}

type Handlers struct {
	layers     Layers
	publicBase string
	logger     *slog.Logger
}

func New(layers Layers, publicBaseURL string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		layers:     layers,
		publicBase: strings.TrimRight(publicBaseURL, "/"),
		logger:     logger,
	}
}

func (h *Handlers) Mount(r chi.Router) {
	r.Route("/api/layers", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.document)
		for _, sec := range service.Sections {
			r.Get("/{id}/"+sec, h.section(sec))
		}
	})
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := h.layers.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := layerconfig.Marshal(out)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, b)
}

func (h *Handlers) document(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := mylog.WithLayerID(r.Context(), id)
	b, err := h.layers.Document(ctx, id, BaseURL(r, h.publicBase))
	if err != nil {
		h.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, b)
}

func (h *Handlers) section(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ctx := mylog.WithLayerID(r.Context(), id)
		raw, err := h.layers.Section(ctx, id, BaseURL(r, h.publicBase), name)
		if err != nil {
			h.fail(w, r.WithContext(ctx), err)
			return
		}
		writeJSON(w, raw)
	}
}

// fail maps service errors onto status codes.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ce *layerconfig.ConfigError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrUnknownSection):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &ce):
		h.logger.WarnContext(r.Context(), "layer misconfigured", slog.Any("error", err))
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// BaseURL is the origin media URLs are resolved against: the configured
// public URL, else the request's own scheme and host as seen by the client.
func BaseURL(r *http.Request, public string) string {
	if public != "" {
		return public
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); p == "http" || p == "https" {
		scheme = p
	}
	host := r.Host
	if fh := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fh != "" {
		host = fh
	}
	if host == "" {
		return ""
	}
	return scheme + "://" + host
}

func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}

func ParseListQuery(r *http.Request) (service.ListQuery, error) {
	v := r.URL.Query()
	q := service.ListQuery{DatasetID: strings.TrimSpace(v.Get("dataset"))}

	if raw := strings.TrimSpace(v.Get("bbox")); raw != "" {
		bb, err := ParseBBOX(raw)
		if err != nil {
			return service.ListQuery{}, fmt.Errorf("invalid bbox: %w", err)
		}
		q.BBox = &bb
	}
	var err error
	if q.Limit, err = parseNonNegative(v.Get("limit"), "limit"); err != nil {
		return service.ListQuery{}, err
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset, err = parseNonNegative(v.Get("offset"), "offset"); err != nil {
		return service.ListQuery{}, err
	}
	return q, nil
}

func parseNonNegative(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// ParseBBOX parses "x1,y1,x2,y2,EPSG:4326".
func ParseBBOX(bboxParam string) (model.BBox, error) {
	parts := strings.Split(bboxParam, ",")
	if len(parts) != 5 {
		return model.BBox{}, errors.New("expected 5 comma-separated values: x1,y1,x2,y2,EPSG:4326")
	}
	var xy [4]float64
	for i, name := range []string{"x1", "y1", "x2", "y2"} {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return model.BBox{}, fmt.Errorf("%s: %w", name, err)
		}
		xy[i] = f
	}
	xMin, yMin, xMax, yMax := xy[0], xy[1], xy[2], xy[3]

	srid := strings.ToUpper(strings.TrimSpace(parts[4]))
	if srid != "EPSG:4326" {
		return model.BBox{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", srid)
	}
	if !(xMin >= -180 && xMin <= 180 && xMax >= -180 && xMax <= 180) {
		return model.BBox{}, errors.New("longitude must be in [-180,180]")
	}
	if !(yMin >= -90 && yMin <= 90 && yMax >= -90 && yMax <= 90) {
		return model.BBox{}, errors.New("latitude must be in [-90,90]")
	}
	if xMax <= xMin || yMax <= yMin {
		return model.BBox{}, errors.New("coordinates must satisfy x2>x1 and y2>y1")
	}
	return model.BBox{X1: xMin, Y1: yMin, X2: xMax, Y2: yMax, SRID: srid}, nil
}

func writeJSON(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
