// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"time"
)

type BBox struct {
	X1   float64 `json:"x1" yaml:"x1"`
	Y1   float64 `json:"y1" yaml:"y1"`
	X2   float64 `json:"x2" yaml:"x2"`
	Y2   float64 `json:"y2" yaml:"y2"`
	SRID string  `json:"srid" yaml:"srid"`
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

type Polygon struct {
	GeoJSON string
}

type Cells []string

// Extent is the optional spatial footprint of a dataset. At most one of
// BBox or Polygon is set; neither means the dataset covers the whole world.
type Extent struct {
	BBox    *BBox  `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Polygon string `json:"polygon,omitempty" yaml:"polygon,omitempty"`
}

func (e Extent) IsGlobal() bool {
	return e.BBox == nil && e.Polygon == ""
}

type Dataset struct {
	ID            string    `gorm:"primaryKey" json:"id" yaml:"id"`
	Title         string    `gorm:"not null" json:"title" yaml:"title"`
	MultiTemporal bool      `gorm:"not null" json:"multi_temporal" yaml:"multi_temporal"`
	Extent        Extent    `gorm:"serializer:json" json:"extent" yaml:"extent,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"`
}

type StaticQueryParam struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

type SelectOption struct {
	Value   string `json:"value" yaml:"value"`
	Label   string `json:"label" yaml:"label"`
	Default bool   `json:"default" yaml:"default"`
}

type SelectableQueryParam struct {
	Name    string         `json:"name" yaml:"name"`
	Type    string         `json:"type" yaml:"type"`
	Label   string         `json:"label" yaml:"label"`
	Options []SelectOption `json:"options" yaml:"options"`
}

type LegendKind string

const (
	LegendImage  LegendKind = "image"
	LegendInline LegendKind = "inline"
)

// ImageRef points at stored image data; URL may be relative to the media host.
type ImageRef struct {
	ID  string `json:"id,omitempty" yaml:"id,omitempty"`
	URL string `json:"url" yaml:"url"`
}

type LegendItem struct {
	Value string `json:"value" yaml:"value"`
	Color string `json:"color" yaml:"color"`
}

type InlineLegend struct {
	Type  string       `json:"type" yaml:"type"`
	Items []LegendItem `json:"items" yaml:"items"`
}

// Legend is a tagged union: Kind selects which of Image or Inline is valid.
type Legend struct {
	Kind   LegendKind    `json:"kind" yaml:"kind"`
	Image  *ImageRef     `json:"image,omitempty" yaml:"image,omitempty"`
	Inline *InlineLegend `json:"inline,omitempty" yaml:"inline,omitempty"`
}

type MoreInfo struct {
	Text     string `json:"text" yaml:"text"`
	LinkText string `json:"linkText,omitempty" yaml:"link_text,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Layer is a tile-service layer as edited in the CMS. Block fields keep the
// order editors entered them in.
type Layer struct {
	ID                       string                 `gorm:"primaryKey" json:"id" yaml:"id"`
	DatasetID                string                 `gorm:"index;not null" json:"dataset" yaml:"dataset"`
	Dataset                  *Dataset               `gorm:"foreignKey:DatasetID" json:"-" yaml:"-"`
	Title                    string                 `gorm:"not null" json:"title" yaml:"title"`
	Default                  bool                   `gorm:"not null" json:"default" yaml:"default"`
	BaseURL                  string                 `gorm:"size:500;not null" json:"base_url" yaml:"base_url"`
	StaticParams             []StaticQueryParam     `gorm:"serializer:json" json:"query_params_static" yaml:"query_params_static,omitempty"`
	SelectableParams         []SelectableQueryParam `gorm:"serializer:json" json:"query_params_selectable" yaml:"query_params_selectable,omitempty"`
	ParamSelectorsSideBySide bool                   `gorm:"not null" json:"params_selectors_side_by_side" yaml:"params_selectors_side_by_side"`
	Legend                   []Legend               `gorm:"serializer:json" json:"legend" yaml:"legend,omitempty"`
	MoreInfo                 []MoreInfo             `gorm:"serializer:json" json:"more_info" yaml:"more_info,omitempty"`
	CreatedAt                time.Time              `json:"created_at" yaml:"-"`
	UpdatedAt                time.Time              `json:"updated_at" yaml:"-"`
}
