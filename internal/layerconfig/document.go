package layerconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
)

// Document bundles everything a client needs to display one layer.
type Document struct {
	ID                       string              `json:"id"`
	Title                    string              `json:"title"`
	Default                  bool                `json:"default"`
	DatasetID                string              `json:"dataset"`
	MultiTemporal            bool                `json:"multi_temporal"`
	ParamSelectorsSideBySide bool                `json:"params_selectors_side_by_side"`
	LayerConfig              LayerConfig         `json:"layer_config"`
	Params                   *OrderedMap[string] `json:"params"`
	ParamSelectorConfig      []SelectorConfig    `json:"param_selector_config"`
	LegendConfig             LegendConfig        `json:"legend_config"`
	MoreInfo                 *model.MoreInfo     `json:"more_info,omitempty"`
}

func Render(layer *model.Layer, dataset *model.Dataset, absolutize Absolutizer) (*Document, error) {
	b := New(layer, dataset)

	params, err := b.DefaultParams()
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:                       b.layer.ID,
		Title:                    b.layer.Title,
		Default:                  b.layer.Default,
		DatasetID:                b.layer.DatasetID,
		MultiTemporal:            b.dataset.MultiTemporal,
		ParamSelectorsSideBySide: b.layer.ParamSelectorsSideBySide,
		LayerConfig:              b.LayerConfig(),
		Params:                   params,
		ParamSelectorConfig:      b.ParamSelectorConfig(),
		LegendConfig:             b.LegendConfig(absolutize),
	}
	// only the first more-info block is shown
	if len(b.layer.MoreInfo) > 0 {
		mi := b.layer.MoreInfo[0]
		doc.MoreInfo = &mi
	}
	return doc, nil
}

// Marshal encodes v as JSON without HTML escaping, so '&' in tile URLs is
// written as is.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
