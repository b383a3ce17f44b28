// Package taxonomy loads the reserve/investment classification used by the
// aggregator from YAML.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"financas/internal/core"
)

//go:embed taxonomy.yaml
var embeddedTaxonomy []byte

// File is the on-disk YAML shape.
type File struct {
	ReserveCategories       []string `yaml:"reserve_categories"`
	InvestmentSubcategories []string `yaml:"investment_subcategories"`
	CaseInsensitive         bool     `yaml:"case_insensitive"`
}

// Parse decodes and validates a taxonomy document.
func Parse(data []byte) (core.Taxonomy, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return core.Taxonomy{}, fmt.Errorf("failed to parse taxonomy YAML (check syntax, indentation, and field names): %w", err)
	}

	reserve, err := clean("reserve_categories", f.ReserveCategories)
	if err != nil {
		return core.Taxonomy{}, err
	}
	invest, err := clean("investment_subcategories", f.InvestmentSubcategories)
	if err != nil {
		return core.Taxonomy{}, err
	}

	return core.Taxonomy{
		ReserveCategories:       reserve,
		InvestmentSubcategories: invest,
		CaseInsensitive:         f.CaseInsensitive,
	}, nil
}

// LoadEmbedded returns the taxonomy bundled with the binary.
func LoadEmbedded() (core.Taxonomy, error) {
	return Parse(embeddedTaxonomy)
}

// LoadFromFile reads a taxonomy from path.
func LoadFromFile(path string) (core.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Taxonomy{}, fmt.Errorf("read taxonomy file: %w", err)
	}
	tax, err := Parse(data)
	if err != nil {
		return core.Taxonomy{}, fmt.Errorf("%s: %w", path, err)
	}
	return tax, nil
}

// Load reads path when set and falls back to the embedded taxonomy otherwise.
func Load(path string) (core.Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return LoadEmbedded()
	}
	return LoadFromFile(path)
}

func clean(field string, labels []string) ([]string, error) {
	out := make([]string, 0, len(labels))
	for i, l := range labels {
		if strings.TrimSpace(l) == "" {
			return nil, fmt.Errorf("%s[%d]: label cannot be empty", field, i)
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: at least one label is required", field)
	}
	return out, nil
}
