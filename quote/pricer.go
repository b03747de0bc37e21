package quote

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/icodeforyou/bessquote/internal/benchmark"
	"github.com/icodeforyou/bessquote/internal/lookup"
	"github.com/icodeforyou/bessquote/internal/model"
)

const (
	depBenchmark     = "benchmark-price"
	fallbackCatalog  = "benchmark-catalog"
	depRates         = "utility-rates"
	fallbackRegional = "regional-default"
	depSolar         = "solar-production"
	fallbackYield    = "specific-yield"
)

// pricer resolves unit prices for all tiers of one request. Prices given in
// the request win, then the benchmark lookup, then the catalog. Tiers price
// concurrently, notes are collected under mu.
type pricer struct {
	provided *BenchmarkContext
	fetch    BenchmarkLookup
	catalog  benchmark.Catalog
	resolver lookup.Resolver

	mu    sync.Mutex
	notes []model.Degradation
}

func (p *pricer) Price(ctx context.Context, equipment, tier string, size float64) model.UnitPrice {
	if bp, ok := p.provided.price(equipment, tier); ok {
		return withConfidence(bp)
	}

	fallback, ok := p.catalog.Reference(equipment, tier)
	if !ok {
		fallback = model.UnitPrice{Source: fallbackCatalog}
	}
	fallback.Confidence = model.ConfidenceLow

	var fetch lookup.Fetch[model.UnitPrice]
	if p.fetch != nil {
		fetch = func(ctx context.Context) (model.UnitPrice, error) {
			bp, err := p.fetch(ctx, equipment, tier, size)
			if err != nil {
				return model.UnitPrice{}, fmt.Errorf("%s %s: %w", tier, equipment, err)
			}
			if math.IsNaN(bp.Price) || math.IsInf(bp.Price, 0) || bp.Price < 0 {
				return model.UnitPrice{}, fmt.Errorf("%s %s: unusable price %g", tier, equipment, bp.Price)
			}
			return withConfidence(bp), nil
		}
	}

	price, note := lookup.Resolve(ctx, p.resolver, depBenchmark, fallbackCatalog, fetch, fallback)
	if note.IsValid() {
		p.mu.Lock()
		p.notes = append(p.notes, note.Value())
		p.mu.Unlock()
	}
	return price
}

// degradations returns the distinct notes in a stable order.
func (p *pricer) degradations() []model.Degradation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortNotes(slices.Clone(p.notes))
}

func sortNotes(notes []model.Degradation) []model.Degradation {
	slices.SortFunc(notes, func(a, b model.Degradation) int {
		return cmp.Or(
			cmp.Compare(a.Dependency, b.Dependency),
			cmp.Compare(a.Fallback, b.Fallback),
			cmp.Compare(a.Reason, b.Reason),
		)
	})
	return slices.Compact(notes)
}

// withConfidence tags an untagged price as low confidence.
func withConfidence(p model.UnitPrice) model.UnitPrice {
	if p.Confidence.Rank() == 0 {
		p.Confidence = model.ConfidenceLow
	}
	return p
}
