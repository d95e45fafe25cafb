package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
)

type Seed struct {
	Datasets []*model.Dataset `yaml:"datasets"`
	Layers   []*model.Layer   `yaml:"layers"`
}

func ParseSeed(b []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}

// LoadSeed imports the datasets and layers of a YAML fixture, datasets first.
func LoadSeed(ctx context.Context, st Store, path string) (*Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	s, err := ParseSeed(b)
	if err != nil {
		return nil, err
	}
	if err := Apply(ctx, st, s); err != nil {
		return nil, err
	}
	return s, nil
}

func Apply(ctx context.Context, st Store, s *Seed) error {
	for _, d := range s.Datasets {
		if err := st.SaveDataset(ctx, d); err != nil {
			return err
		}
	}
	for _, l := range s.Layers {
		if err := st.SaveLayer(ctx, l); err != nil {
			return err
		}
	}
	return nil
}
