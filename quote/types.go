package quote

import (
	"context"
	"maps"
	"slices"

	"github.com/icodeforyou/bessquote/internal/authenticate"
	"github.com/icodeforyou/bessquote/internal/incentive"
	"github.com/icodeforyou/bessquote/internal/model"
)

type (
	FacilityProfile    = model.FacilityProfile
	Location           = model.Location
	Preferences        = model.Preferences
	ChargerMix         = model.ChargerMix
	GridConnection     = model.GridConnection
	Chemistry          = model.Chemistry
	FuelType           = model.FuelType
	Confidence         = model.Confidence
	QuoteOption        = model.QuoteOption
	Degradation        = model.Degradation
	BenchmarkPrice     = model.UnitPrice
	IncentiveFlags     = incentive.Flags
	AuthenticatedQuote = authenticate.AuthenticatedQuote
	Payload            = authenticate.Payload
	Status             = authenticate.Status
)

type RateContext struct {
	EnergyRate   float64    `json:"energyRate"`   // $/kWh
	DemandCharge float64    `json:"demandCharge"` // $/kW-month
	Currency     string     `json:"currency"`
	Source       string     `json:"source,omitempty"`
	Confidence   Confidence `json:"confidence,omitempty"`
}

// BenchmarkContext holds unit prices resolved by the caller. A tier price
// wins over the price for all tiers.
type BenchmarkContext struct {
	Prices     map[string]BenchmarkPrice            `json:"prices,omitempty"`     // keyed by equipment
	TierPrices map[string]map[string]BenchmarkPrice `json:"tierPrices,omitempty"` // keyed by tier, then equipment
}

func (b *BenchmarkContext) price(equipment, tier string) (BenchmarkPrice, bool) {
	if b == nil {
		return BenchmarkPrice{}, false
	}
	if p, ok := b.TierPrices[tier][equipment]; ok {
		return p, true
	}
	p, ok := b.Prices[equipment]
	return p, ok
}

// FinancialAssumptions overrides the configured finance defaults, nil keeps
// the default.
type FinancialAssumptions struct {
	LifetimeYears    *int     `json:"lifetimeYears,omitempty"`
	DiscountRate     *float64 `json:"discountRate,omitempty"`
	EscalationRate   *float64 `json:"escalationRate,omitempty"`
	OMRate           *float64 `json:"omRate,omitempty"`
	CyclesPerYear    *float64 `json:"cyclesPerYear,omitempty"`
	DepthOfDischarge *float64 `json:"depthOfDischarge,omitempty"`
}

type SimulationOptions struct {
	Trials *int    `json:"trials,omitempty"`
	Seed   *uint64 `json:"seed,omitempty"`
}

type Request struct {
	Facility   FacilityProfile       `json:"facility"`
	Rates      *RateContext          `json:"rates,omitempty"`
	Benchmarks *BenchmarkContext     `json:"benchmarks,omitempty"`
	Incentives *IncentiveFlags       `json:"incentives,omitempty"`
	Financing  *FinancialAssumptions `json:"financing,omitempty"`
	Simulation *SimulationOptions    `json:"simulation,omitempty"`
}

// snapshot copies everything the caller could still change while the
// quote is computed.
func (r Request) snapshot() Request {
	c := r
	c.Facility = r.Facility.Snapshot()
	if r.Rates != nil {
		rates := *r.Rates
		c.Rates = &rates
	}
	if r.Benchmarks != nil {
		b := BenchmarkContext{Prices: maps.Clone(r.Benchmarks.Prices)}
		if r.Benchmarks.TierPrices != nil {
			b.TierPrices = make(map[string]map[string]BenchmarkPrice, len(r.Benchmarks.TierPrices))
			for tier, prices := range r.Benchmarks.TierPrices {
				b.TierPrices[tier] = maps.Clone(prices)
			}
		}
		c.Benchmarks = &b
	}
	if r.Incentives != nil {
		flags := *r.Incentives
		flags.LowIncome = slices.Clone(r.Incentives.LowIncome)
		c.Incentives = &flags
	}
	if r.Financing != nil {
		c.Financing = &FinancialAssumptions{
			LifetimeYears:    clonePtr(r.Financing.LifetimeYears),
			DiscountRate:     clonePtr(r.Financing.DiscountRate),
			EscalationRate:   clonePtr(r.Financing.EscalationRate),
			OMRate:           clonePtr(r.Financing.OMRate),
			CyclesPerYear:    clonePtr(r.Financing.CyclesPerYear),
			DepthOfDischarge: clonePtr(r.Financing.DepthOfDischarge),
		}
	}
	if r.Simulation != nil {
		c.Simulation = &SimulationOptions{
			Trials: clonePtr(r.Simulation.Trials),
			Seed:   clonePtr(r.Simulation.Seed),
		}
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type State string

const (
	StateReceived      State = "received"
	StateValidated     State = "validated"
	StateComputed      State = "computed"
	StateAuthenticated State = "authenticated"
	StateRejected      State = "rejected"
)

const (
	StatusVerified = authenticate.StatusVerified
	StatusEstimate = authenticate.StatusEstimate
)

type RejectionResult struct {
	Reason string `json:"reason"`
	Field  string `json:"field,omitempty"`
}

// Response carries either a quote or a rejection, never both.
type Response struct {
	State     State               `json:"state"`
	Trail     []State             `json:"trail"`
	Quote     *AuthenticatedQuote `json:"quote,omitempty"`
	Rejection *RejectionResult    `json:"rejection,omitempty"`
}

type SolarEstimate struct {
	AnnualKWh  float64    `json:"annualKWh"`
	Source     string     `json:"source"`
	Confidence Confidence `json:"confidence"`
}

type (
	RateLookup      func(ctx context.Context, loc Location) (RateContext, error)
	BenchmarkLookup func(ctx context.Context, equipment, tier string, size float64) (BenchmarkPrice, error)
	SolarEstimator  func(ctx context.Context, capacityKW float64, loc Location) (SolarEstimate, error)
)

// Collaborators are the lookups the engine may call. Any of them may be
// nil, the engine then uses its fallback values.
type Collaborators struct {
	Rates      RateLookup
	Benchmarks BenchmarkLookup
	Solar      SolarEstimator
}
