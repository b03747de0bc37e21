// Package degradation projects how usable storage capacity fades over the
// project lifetime from calendar aging and cycling.
package degradation

import (
	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/icodeforyou/bessquote/types/maybe"
)

const maxLifetimeYears = 50

type Rates struct {
	CalendarRate float64 // Fraction lost per year
	CycleRate    float64 // Fraction lost per cycle at 100% DoD
}

type Model struct {
	rates         map[model.Chemistry]Rates
	warrantyFloor float64
}

func NewModel(cnfg config.AppConfigDegradation) Model {
	rates := make(map[model.Chemistry]Rates, len(cnfg.Chemistries))
	for name, r := range cnfg.Chemistries {
		rates[model.Chemistry(name)] = Rates{CalendarRate: r.CalendarRate, CycleRate: r.CycleRate}
	}
	return Model{rates: rates, warrantyFloor: cnfg.WarrantyFloor}
}

type Params struct {
	Chemistry          model.Chemistry
	InitialCapacityKWh float64
	CyclesPerYear      float64
	AvgDoD             float64 // Average depth of discharge, 0..1
	LifetimeYears      int
	RateMultiplier     float64 // Scales both rates, 0 means unset (1)
}

type Result struct {
	Curve model.DegradationCurve
	model.DegradationSummary
}

func (m Model) Supports(c model.Chemistry) bool {
	_, ok := m.rates[c]
	return ok
}

// Project returns the capacity fraction for every year from 0 to the
// lifetime. Each year loses the calendar rate plus the cycle rate scaled by
// cycles and depth of discharge; the fraction never goes below zero.
func (m Model) Project(p Params) (Result, error) {
	rates, ok := m.rates[p.Chemistry]
	if !ok {
		return Result{}, model.Invalid("chemistry", "unknown chemistry %q", p.Chemistry)
	}
	if err := model.CheckRange("initialCapacityKWh", p.InitialCapacityKWh, 0); err != nil {
		return Result{}, err
	}
	if err := model.CheckRange("cyclesPerYear", p.CyclesPerYear, 0); err != nil {
		return Result{}, err
	}
	if err := model.CheckRange("avgDoD", p.AvgDoD, 1); err != nil {
		return Result{}, err
	}
	if p.LifetimeYears < 0 || p.LifetimeYears > maxLifetimeYears {
		return Result{}, model.Invalid("lifetimeYears", "must be within 0-%d, got %d", maxLifetimeYears, p.LifetimeYears)
	}
	if err := model.CheckRange("rateMultiplier", p.RateMultiplier, 0); err != nil {
		return Result{}, err
	}

	multiplier := p.RateMultiplier
	if multiplier == 0 {
		multiplier = 1
	}

	curve := make(model.DegradationCurve, p.LifetimeYears+1)
	curve[0] = model.CurvePoint{Year: 0, CapacityFraction: 1}

	flat := p.CyclesPerYear == 0 || p.LifetimeYears == 0
	yearlyLoss := multiplier * (rates.CalendarRate + rates.CycleRate*p.CyclesPerYear*p.AvgDoD)

	for year := 1; year <= p.LifetimeYears; year++ {
		fraction := 1.0
		if !flat {
			fraction = max(0, curve[year-1].CapacityFraction-yearlyLoss)
		}
		curve[year] = model.CurvePoint{Year: year, CapacityFraction: fraction}
	}

	final := curve[len(curve)-1].CapacityFraction
	return Result{
		Curve: curve,
		DegradationSummary: model.DegradationSummary{
			FinalCapacityFraction: final,
			FinalCapacityKWh:      final * p.InitialCapacityKWh,
			TotalCycles:           p.CyclesPerYear * float64(p.LifetimeYears),
			WarrantyBreachYear:    m.warrantyBreach(curve),
		},
	}, nil
}

// warrantyBreach returns the first year the curve drops below the warranty floor.
func (m Model) warrantyBreach(curve model.DegradationCurve) maybe.Maybe[int] {
	for _, pt := range curve {
		if pt.CapacityFraction < m.warrantyFloor {
			return maybe.Some(pt.Year)
		}
	}
	return maybe.None[int]()
}
