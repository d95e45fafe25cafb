package coverage

import (
	"reflect"
	"testing"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
	h3mapper "github.com/mohammed-shakir/tms-layers/internal/mapper/h3"
)

var (
	baltic = &model.Dataset{ID: "sst", Title: "SST", Extent: model.Extent{
		BBox: &model.BBox{X1: 10, Y1: 54, X2: 25, Y2: 66, SRID: "EPSG:4326"},
	}}
	alps = &model.Dataset{ID: "snow", Title: "Snow", Extent: model.Extent{
		Polygon: `{"type":"Polygon","coordinates":[[[6,45],[14,45],[14,48],[6,48],[6,45]]]}`,
	}}
	world = &model.Dataset{ID: "relief", Title: "Relief"}
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	ix := New(h3mapper.New(), 3, nil)
	ix.Rebuild([]*model.Dataset{baltic, alps, world})
	return ix
}

func TestIntersecting_MatchesExtentsAndGlobal(t *testing.T) {
	ix := newIndex(t)

	cases := []struct {
		name string
		bb   model.BBox
		want []string
	}{
		{"stockholm", model.BBox{X1: 17.9, Y1: 59.2, X2: 18.2, Y2: 59.4}, []string{"relief", "sst"}},
		{"innsbruck", model.BBox{X1: 11.3, Y1: 47.2, X2: 11.5, Y2: 47.3}, []string{"relief", "snow"}},
		{"pacific", model.BBox{X1: -150, Y1: -10, X2: -149, Y2: -9}, []string{"relief"}},
		{"europe", model.BBox{X1: 0, Y1: 40, X2: 30, Y2: 70}, []string{"relief", "snow", "sst"}},
	}
	for _, tc := range cases {
		got, err := ix.Intersecting(tc.bb)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestPutAndRemove_ReplaceFootprint(t *testing.T) {
	ix := newIndex(t)
	stockholm := model.BBox{X1: 17.9, Y1: 59.2, X2: 18.2, Y2: 59.4}

	moved := *baltic
	moved.Extent = model.Extent{BBox: &model.BBox{X1: -10, Y1: 35, X2: -5, Y2: 40, SRID: "EPSG:4326"}}
	if err := ix.Put(&moved); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := ix.Intersecting(stockholm)
	if !reflect.DeepEqual(got, []string{"relief"}) {
		t.Fatalf("old footprint still indexed: %v", got)
	}

	ix.Remove("relief")
	got, _ = ix.Intersecting(stockholm)
	if len(got) != 0 {
		t.Fatalf("removed global dataset still matches: %v", got)
	}
	if ix.Len() != 2 {
		t.Fatalf("Len=%d want 2", ix.Len())
	}
}

func TestRebuild_UnmappableExtentIsGlobal(t *testing.T) {
	ix := New(h3mapper.New(), 3, nil)
	broken := &model.Dataset{ID: "broken", Extent: model.Extent{Polygon: `{"type":"Point"}`}}
	ix.Rebuild([]*model.Dataset{broken})

	got, err := ix.Intersecting(model.BBox{X1: 100, Y1: 0, X2: 101, Y2: 1})
	if err != nil {
		t.Fatalf("Intersecting: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"broken"}) {
		t.Fatalf("got %v", got)
	}

	if err := ix.Put(broken); err == nil {
		t.Fatal("Put must report an unmappable extent")
	}
}

func TestIntersecting_RejectsInvertedBox(t *testing.T) {
	ix := newIndex(t)
	if _, err := ix.Intersecting(model.BBox{X1: 2, Y1: 0, X2: 1, Y2: 1}); err == nil {
		t.Fatal("expected error")
	}
}
