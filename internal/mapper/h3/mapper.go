package h3mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// CellsForBBox returns the cells whose centers fall inside bb plus the cells
// holding its corners and center, so a box smaller than a cell still maps to
// at least one cell.
func (m *Mapper) CellsForBBox(bb model.BBox, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if !(bb.X2 > bb.X1 && bb.Y2 > bb.Y1) {
		return nil, fmt.Errorf("bbox must satisfy x2>x1 and y2>y1")
	}
	outer := h3.GeoLoop{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
	}
	center := h3.LatLng{Lat: (bb.Y1 + bb.Y2) / 2, Lng: (bb.X1 + bb.X2) / 2}
	return cover([]h3.GeoPolygon{{GeoLoop: outer}}, []h3.LatLng{center}, res)
}

// CellsForPolygon accepts a GeoJSON Polygon or MultiPolygon in EPSG:4326.
func (m *Mapper) CellsForPolygon(poly model.Polygon, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	polys, err := parseGeoJSON(poly.GeoJSON)
	if err != nil {
		return nil, err
	}
	return cover(polys, nil, res)
}

// Dilate grows cells by k rings. Dataset extents are dilated by one ring so
// that boxes touching the extent edge still intersect.
func (m *Mapper) Dilate(cells model.Cells, k int) (model.Cells, error) {
	if k <= 0 {
		return cells, nil
	}
	set := make(map[h3.Cell]struct{}, len(cells)*7)
	for _, s := range cells {
		c, err := parseCell(s)
		if err != nil {
			return nil, err
		}
		disk, err := h3.GridDisk(c, k)
		if err != nil {
			return nil, fmt.Errorf("h3 grid disk: %w", err)
		}
		for _, d := range disk {
			set[d] = struct{}{}
		}
	}
	return sortedCells(set), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func parseCell(s string) (h3.Cell, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse cell %q: %w", s, err)
	}
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid h3 cell %q", s)
	}
	return c, nil
}

func parseGeoJSON(raw string) ([]h3.GeoPolygon, error) {
	var hdr struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal([]byte(raw), &hdr); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	var rings [][][][]float64 // [poly][ring][i][lon,lat]
	switch hdr.Type {
	case "Polygon":
		var p [][][]float64
		if err := json.Unmarshal(hdr.Coordinates, &p); err != nil {
			return nil, fmt.Errorf("parse polygon coords: %w", err)
		}
		rings = [][][][]float64{p}
	case "MultiPolygon":
		if err := json.Unmarshal(hdr.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("parse multipolygon coords: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type: %s", hdr.Type)
	}
	if len(rings) == 0 {
		return nil, errors.New("empty geometry")
	}

	out := make([]h3.GeoPolygon, 0, len(rings))
	for pi, poly := range rings {
		if len(poly) == 0 {
			return nil, fmt.Errorf("polygon %d is empty", pi)
		}
		outer := toLoop(poly[0])
		if len(outer) < 3 {
			return nil, fmt.Errorf("polygon %d outer ring has < 3 distinct vertices", pi)
		}
		gp := h3.GeoPolygon{GeoLoop: outer}
		for i := 1; i < len(poly); i++ {
			h := toLoop(poly[i])
			if len(h) < 3 {
				return nil, fmt.Errorf("polygon %d hole %d has < 3 distinct vertices", pi, i-1)
			}
			gp.Holes = append(gp.Holes, h)
		}
		out = append(out, gp)
	}
	return out, nil
}

// toLoop converts a GeoJSON ring [[lon,lat], ...] and drops the closing
// vertex when the ring is explicitly closed.
func toLoop(coords [][]float64) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(coords))
	for _, xy := range coords {
		if len(xy) < 2 {
			continue
		}
		loop = append(loop, h3.LatLng{Lat: xy[1], Lng: xy[0]})
	}
	if n := len(loop); n >= 2 && loop[0] == loop[n-1] {
		loop = loop[:n-1]
	}
	return loop
}

// cover unions the polyfill of every polygon with the cells holding each
// outer vertex and every extra point. Output is sorted and unique.
func cover(polys []h3.GeoPolygon, extra []h3.LatLng, res int) (model.Cells, error) {
	set := make(map[h3.Cell]struct{})
	for _, p := range polys {
		cells, err := h3.PolygonToCells(p, res)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill: %w", err)
		}
		for _, c := range cells {
			set[c] = struct{}{}
		}
		extra = append(extra, p.GeoLoop...)
	}
	for _, ll := range extra {
		c, err := h3.LatLngToCell(ll, res)
		if err != nil {
			return nil, fmt.Errorf("h3 point to cell: %w", err)
		}
		set[c] = struct{}{}
	}
	return sortedCells(set), nil
}

func sortedCells(set map[h3.Cell]struct{}) model.Cells {
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c.String())
	}
	slices.Sort(out)
	return out
}
