package layerconfig

import "fmt"

// ConfigError reports stored content that cannot be rendered, e.g. a
// selectable parameter without options. It is fixed by editing the record.
type ConfigError struct {
	LayerID string
	Param   string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.LayerID == "" {
		return fmt.Sprintf("layer config: param %q: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("layer config %s: param %q: %s", e.LayerID, e.Param, e.Reason)
}
