package h3mapper

import (
	"reflect"
	"slices"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
)

func TestBBox_HappyPath_SortedUnique(t *testing.T) {
	m := New()
	bb := model.BBox{X1: 17.95, Y1: 59.30, X2: 18.15, Y2: 59.40, SRID: "EPSG:4326"}

	cells, err := m.CellsForBBox(bb, 8)
	if err != nil {
		t.Fatalf("CellsForBBox err: %v", err)
	}
	if len(cells) == 0 {
		t.Fatalf("expected non-empty cells for bbox")
	}
	if !slices.IsSorted(cells) {
		t.Fatalf("cells must be sorted")
	}
	if hasDups(cells) {
		t.Fatalf("cells must be de-duplicated")
	}
}

func TestBBox_SmallerThanACell_StillCovered(t *testing.T) {
	m := New()
	bb := model.BBox{X1: 18.0686, Y1: 59.3293, X2: 18.0687, Y2: 59.3294, SRID: "EPSG:4326"}

	cells, err := m.CellsForBBox(bb, 3)
	if err != nil {
		t.Fatalf("CellsForBBox: %v", err)
	}
	want, err := h3.LatLngToCell(h3.LatLng{Lat: 59.32935, Lng: 18.06865}, 3)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	if !slices.Contains(cells, want.String()) {
		t.Fatalf("cells=%v missing containing cell %s", cells, want)
	}
}

func TestPolygon_SubsetOfBBoxAndDeterministic(t *testing.T) {
	m := New()
	bb := model.BBox{X1: 17.95, Y1: 59.30, X2: 18.15, Y2: 59.40, SRID: "EPSG:4326"}

	polyJSON := `{"type":"Polygon","coordinates":[[
		[18.00,59.32],[18.12,59.32],[18.12,59.38],[18.00,59.38],[18.00,59.32]
	]]}`
	res := 9
	cp, err := m.CellsForPolygon(model.Polygon{GeoJSON: polyJSON}, res)
	if err != nil {
		t.Fatalf("polygon: %v", err)
	}
	cb, err := m.CellsForBBox(bb, res)
	if err != nil {
		t.Fatalf("bbox: %v", err)
	}
	if len(cp) == 0 {
		t.Fatalf("expected non-empty polygon coverage")
	}
	if !slices.IsSorted(cp) || hasDups(cp) {
		t.Fatalf("polygon cells must be sorted + unique")
	}
	cp2, err := m.CellsForPolygon(model.Polygon{GeoJSON: polyJSON}, res)
	if err != nil {
		t.Fatalf("polygon second call: %v", err)
	}
	if !reflect.DeepEqual(cp, cp2) {
		t.Fatalf("expected identical output for identical input")
	}
	if len(cp) > len(cb) {
		t.Fatalf("polygon coverage larger than bbox coverage (unexpected)")
	}
}

func TestMultiPolygon_UnionOfParts(t *testing.T) {
	m := New()
	multi := `{"type":"MultiPolygon","coordinates":[
		[[[11,55],[12,55],[12,56],[11,56],[11,55]]],
		[[[20,60],[21,60],[21,61],[20,61],[20,60]]]
	]}`
	a := `{"type":"Polygon","coordinates":[[[11,55],[12,55],[12,56],[11,56],[11,55]]]}`

	cm, err := m.CellsForPolygon(model.Polygon{GeoJSON: multi}, 5)
	if err != nil {
		t.Fatalf("multipolygon: %v", err)
	}
	ca, err := m.CellsForPolygon(model.Polygon{GeoJSON: a}, 5)
	if err != nil {
		t.Fatalf("polygon: %v", err)
	}
	for _, c := range ca {
		if !slices.Contains(cm, c) {
			t.Fatalf("multipolygon lost cell %s of its first part", c)
		}
	}
	if len(cm) <= len(ca) {
		t.Fatalf("second part added no cells: %d vs %d", len(cm), len(ca))
	}
}

func TestDilate_GrowsByRings(t *testing.T) {
	m := New()
	c, err := h3.LatLngToCell(h3.LatLng{Lat: 57.7089, Lng: 11.9746}, 5)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	out, err := m.Dilate(model.Cells{c.String()}, 1)
	if err != nil {
		t.Fatalf("Dilate: %v", err)
	}
	// a hexagon and its six neighbours
	if len(out) != 7 || !slices.Contains(out, c.String()) || !slices.IsSorted(out) {
		t.Fatalf("dilated=%v", out)
	}
	same, _ := m.Dilate(model.Cells{c.String()}, 0)
	if len(same) != 1 {
		t.Fatalf("k=0 must be identity, got %v", same)
	}
	if _, err := m.Dilate(model.Cells{"not-a-cell"}, 1); err == nil {
		t.Fatal("expected error for invalid cell")
	}
}

func TestBounds_InvalidInput(t *testing.T) {
	m := New()
	bb := model.BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"}

	if _, err := m.CellsForBBox(bb, -1); err == nil {
		t.Fatalf("expected error for res=-1")
	}
	if _, err := m.CellsForBBox(bb, 16); err == nil {
		t.Fatalf("expected error for res=16")
	}
	if _, err := m.CellsForBBox(model.BBox{X1: 12, Y1: 55, X2: 11, Y2: 56}, 5); err == nil {
		t.Fatalf("expected error for inverted bbox")
	}

	for _, g := range []string{
		`{"type":"Polygon","coordinates":[[]]}`,
		`{"type":"Point","coordinates":[1,2]}`,
		`not json`,
	} {
		if _, err := m.CellsForPolygon(model.Polygon{GeoJSON: g}, 8); err == nil {
			t.Fatalf("expected error for %s", g)
		}
	}
}

func hasDups(s []string) bool {
	seen := map[string]struct{}{}
	for _, v := range s {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
