// Package coverage answers which datasets have data inside a bounding box,
// using H3 cells as a coarse spatial index of dataset extents.
package coverage

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
	"github.com/mohammed-shakir/tms-layers/internal/mapper"
)

const DefaultRes = 3

type Index struct {
	mapper mapper.Interface
	res    int
	logger *slog.Logger

	mu        sync.RWMutex
	byCell    map[string]map[string]struct{}
	byDataset map[string]model.Cells
	global    map[string]struct{}
}

func New(m mapper.Interface, res int, log *slog.Logger) *Index {
	if res < 0 || res > 15 {
		res = DefaultRes
	}
	if log == nil {
		log = slog.Default()
	}
	return &Index{
		mapper:    m,
		res:       res,
		logger:    log.With("logger", "coverage"),
		byCell:    map[string]map[string]struct{}{},
		byDataset: map[string]model.Cells{},
		global:    map[string]struct{}{},
	}
}

// Cells computes the footprint of an extent, dilated by one ring.
func (ix *Index) Cells(e model.Extent) (model.Cells, error) {
	var (
		cells model.Cells
		err   error
	)
	switch {
	case e.Polygon != "":
		cells, err = ix.mapper.CellsForPolygon(model.Polygon{GeoJSON: e.Polygon}, ix.res)
	case e.BBox != nil:
		cells, err = ix.mapper.CellsForBBox(*e.BBox, ix.res)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ix.mapper.Dilate(cells, 1)
}

// Put indexes ds, replacing whatever was indexed for it before. A dataset
// without an extent matches every box.
func (ix *Index) Put(ds *model.Dataset) error {
	cells, err := ix.Cells(ds.Extent)
	if err != nil {
		return fmt.Errorf("coverage for dataset %q: %w", ds.ID, err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(ds.ID)
	if ds.Extent.IsGlobal() {
		ix.global[ds.ID] = struct{}{}
		return nil
	}
	ix.addLocked(ds.ID, cells)
	return nil
}

func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

// Rebuild replaces the whole index. Datasets whose extent cannot be mapped
// are logged and treated as global so they never disappear from listings.
func (ix *Index) Rebuild(datasets []*model.Dataset) {
	byCell := map[string]map[string]struct{}{}
	byDataset := map[string]model.Cells{}
	global := map[string]struct{}{}

	for _, ds := range datasets {
		if ds.Extent.IsGlobal() {
			global[ds.ID] = struct{}{}
			continue
		}
		cells, err := ix.Cells(ds.Extent)
		if err != nil {
			ix.logger.Warn("dataset extent not indexable, treating as global",
				slog.String("dataset_id", ds.ID), slog.Any("error", err))
			global[ds.ID] = struct{}{}
			continue
		}
		byDataset[ds.ID] = cells
		for _, c := range cells {
			if byCell[c] == nil {
				byCell[c] = map[string]struct{}{}
			}
			byCell[c][ds.ID] = struct{}{}
		}
	}

	ix.mu.Lock()
	ix.byCell, ix.byDataset, ix.global = byCell, byDataset, global
	ix.mu.Unlock()
	ix.logger.Info("coverage index rebuilt",
		slog.Int("datasets", len(datasets)), slog.Int("cells", len(byCell)), slog.Int("res", ix.res))
}

// Intersecting returns the sorted ids of datasets whose footprint touches bb,
// global datasets included.
func (ix *Index) Intersecting(bb model.BBox) ([]string, error) {
	cells, err := ix.mapper.CellsForBBox(bb, ix.res)
	if err != nil {
		return nil, fmt.Errorf("coverage query %s: %w", bb, err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	hits := make(map[string]struct{}, len(ix.global))
	for id := range ix.global {
		hits[id] = struct{}{}
	}
	for _, c := range cells {
		for id := range ix.byCell[c] {
			hits[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(hits))
	for id := range hits {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// Len is the number of indexed datasets.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byDataset) + len(ix.global)
}

func (ix *Index) addLocked(id string, cells model.Cells) {
	ix.byDataset[id] = cells
	for _, c := range cells {
		if ix.byCell[c] == nil {
			ix.byCell[c] = map[string]struct{}{}
		}
		ix.byCell[c][id] = struct{}{}
	}
}

func (ix *Index) removeLocked(id string) {
	delete(ix.global, id)
	for _, c := range ix.byDataset[id] {
		if set := ix.byCell[c]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(ix.byCell, c)
			}
		}
	}
	delete(ix.byDataset, id)
}
