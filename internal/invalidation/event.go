// Package invalidation defines the change events the CMS publishes when a
// layer or dataset is edited.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

const (
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpPublish = "publish"

	KindLayer   = "layer"
	KindDataset = "dataset"
)

type Event struct {
	Version int    `json:"version"`
	Op      string `json:"op"`
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	// Revision orders events per record. Zero disables stale-event dropping
	// for this event.
	Revision uint64    `json:"revision,omitempty"`
	TS       time.Time `json:"ts"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpUpdate, OpDelete, OpPublish:
	default:
		return fmt.Errorf("op must be update|delete|publish")
	}
	switch e.Kind {
	case KindLayer, KindDataset:
	default:
		return fmt.Errorf("kind must be layer|dataset")
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// Key identifies the record an event is about.
func (e Event) Key() string {
	return e.Kind + ":" + strings.TrimSpace(e.ID)
}
