package app

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/recipes"
)

// Seed is the fixture loaded into the memory store driver.
type Seed struct {
	Items   []inventory.Item
	Recipes map[string][]recipes.Requirement
}

type seedFile struct {
	Items []struct {
		ID           string  `yaml:"id"`
		Name         string  `yaml:"name"`
		Category     string  `yaml:"category"`
		Quantity     float64 `yaml:"quantity"`
		MinThreshold float64 `yaml:"min_threshold"`
		Unit         string  `yaml:"unit"`
	} `yaml:"items"`
	Recipes map[string][]struct {
		Item     string  `yaml:"item"`
		Name     string  `yaml:"name"`
		Quantity float64 `yaml:"quantity"`
		Unit     string  `yaml:"unit"`
	} `yaml:"recipes"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// DecodeSeed parses a seed document. Unknown keys are rejected.
func DecodeSeed(r io.Reader) (Seed, error) {
	var raw seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	seed := Seed{Recipes: make(map[string][]recipes.Requirement, len(raw.Recipes))}
	for _, it := range raw.Items {
		if it.ID == "" {
			return Seed{}, fmt.Errorf("decode seed: item %q has no id", it.Name)
		}
		seed.Items = append(seed.Items, inventory.Item{
			ID:              it.ID,
			ItemName:        it.Name,
			Category:        it.Category,
			CurrentQuantity: it.Quantity,
			MinThreshold:    it.MinThreshold,
			Unit:            it.Unit,
		})
	}
	for id, lines := range raw.Recipes {
		reqs := make([]recipes.Requirement, 0, len(lines))
		for _, l := range lines {
			reqs = append(reqs, recipes.Requirement{
				InventoryItemID: l.Item,
				QuantityNeeded:  l.Quantity,
				Unit:            l.Unit,
				Name:            l.Name,
			})
		}
		seed.Recipes[id] = reqs
	}
	return seed, nil
}
