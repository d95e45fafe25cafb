package layerconfig

import (
	"bytes"
	"fmt"
	"strings"
)

// OrderedMap keeps keys in first-insertion order. Setting an existing key
// replaces its value but keeps its position.
type OrderedMap[V any] struct {
	keys []string
	vals map[string]V
}

func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{vals: map[string]V{}}
}

func (m *OrderedMap[V]) Set(key string, v V) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

func (m *OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *OrderedMap[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in iteration order.
func (m *OrderedMap[V]) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Merge copies every entry of other into m in other's order.
func (m *OrderedMap[V]) Merge(other *OrderedMap[V]) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		m.Set(k, other.vals[k])
	}
}

// Each calls fn for every entry in order until fn returns false.
func (m *OrderedMap[V]) Each(fn func(key string, v V) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

func (m *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, k := range m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := Marshal(k)
			if err != nil {
				return nil, fmt.Errorf("marshal key %q: %w", k, err)
			}
			vb, err := Marshal(m.vals[k])
			if err != nil {
				return nil, fmt.Errorf("marshal value for %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// QueryString joins entries as k=v pairs with '&'. Values are written
// verbatim so client placeholders like {{time}} survive.
func QueryString(m *OrderedMap[string]) string {
	if m.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, m.Len())
	for _, k := range m.keys {
		parts = append(parts, k+"="+m.vals[k])
	}
	return strings.Join(parts, "&")
}
