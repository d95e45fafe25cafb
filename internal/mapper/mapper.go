// Package mapper turns dataset extents and query boxes into H3 cell sets.
package mapper

import (
	"github.com/mohammed-shakir/tms-layers/internal/core/model"
)

type Interface interface {
	CellsForBBox(bb model.BBox, res int) (model.Cells, error)
	CellsForPolygon(poly model.Polygon, res int) (model.Cells, error)
	Dilate(cells model.Cells, k int) (model.Cells, error)
}
