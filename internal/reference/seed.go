package reference

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML shape of a reference-collection seed file.
type SeedFile struct {
	Colors    []SeedEntry `yaml:"colors"`
	Units     []SeedEntry `yaml:"units"`
	Materials []SeedEntry `yaml:"materials"`
}

// SeedEntry is one row of a seed file.
type SeedEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	SKU     string   `yaml:"sku,omitempty"`
}

// LoadSeedFile reads and parses a reference seed YAML file.
func LoadSeedFile(path string) (*SeedFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var sf SeedFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &sf, nil
}

// Seed populates the three collections from a seed file. Entries that
// already exist (by canonical name) are skipped rather than duplicated.
func (c *Collections) Seed(ctx context.Context, sf *SeedFile) error {
	for _, e := range sf.Colors {
		if err := c.addIfMissing(ctx, KindColor, e); err != nil {
			return err
		}
	}
	for _, e := range sf.Units {
		if err := c.addIfMissing(ctx, KindUnit, e); err != nil {
			return err
		}
	}
	for _, e := range sf.Materials {
		if err := c.addIfMissing(ctx, KindMaterial, e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collections) addIfMissing(ctx context.Context, kind Kind, e SeedEntry) error {
	existing, err := c.findByName(ctx, kind, e.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = c.Add(ctx, kind, e.Name, e.Aliases, e.SKU)
	return err
}
