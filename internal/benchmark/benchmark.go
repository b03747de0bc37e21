// Package benchmark holds the reference unit prices used when a caller has
// no price of its own, and as the yardstick for price deviations.
package benchmark

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/icodeforyou/bessquote/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

type Entry struct {
	Unit   string             `yaml:"unit"`
	Price  float64            `yaml:"price"`
	Source string             `yaml:"source"`
	Tiers  map[string]float64 `yaml:"tiers"` // Overrides Price for a tier
}

type Catalog struct {
	Source     string           `yaml:"source"`
	Vintage    string           `yaml:"vintage"`
	Confidence model.Confidence `yaml:"confidence"`
	Equipment  map[string]Entry `yaml:"equipment"`
}

// Default returns the catalog compiled into the binary.
func Default() Catalog {
	c, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("benchmark: embedded catalog: %v", err))
	}
	return c
}

func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("benchmark: %w", err)
	}
	if c.Source == "" {
		return Catalog{}, fmt.Errorf("benchmark: catalog has no source")
	}
	if c.Confidence == "" {
		c.Confidence = model.ConfidenceMedium
	}
	for name, e := range c.Equipment {
		if e.Price <= 0 {
			return Catalog{}, fmt.Errorf("benchmark: %s needs a positive price", name)
		}
		for tier, p := range e.Tiers {
			if p <= 0 {
				return Catalog{}, fmt.Errorf("benchmark: %s tier %s needs a positive price", name, tier)
			}
		}
	}
	return c, nil
}

// Reference returns the benchmark unit price of equipment for a tier,
// falling back to the equipment's default price.
func (c Catalog) Reference(equipment, tier string) (model.UnitPrice, bool) {
	e, ok := c.Equipment[equipment]
	if !ok {
		return model.UnitPrice{}, false
	}

	price := e.Price
	if p, ok := e.Tiers[tier]; ok {
		price = p
	} else {
		for name, p := range e.Tiers {
			if strings.EqualFold(name, tier) {
				price = p
				break
			}
		}
	}

	source := e.Source
	if source == "" {
		source = c.Source
	}
	return model.UnitPrice{
		Price:      price,
		Unit:       e.Unit,
		Source:     source,
		Confidence: c.Confidence,
		Vintage:    c.Vintage,
	}, true
}
