package quote

import (
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/icodeforyou/bessquote/internal/model"
)

const (
	maxLifetimeYears = 40
	maxCyclesPerYear = 1000
	maxTrials        = 1_000_000
)

// validate rejects a request before anything is computed. Field names follow
// the JSON names of the request, facility fields are not prefixed.
func (e *Engine) validate(req Request) error {
	f := req.Facility
	lim := e.cnfg.Sizing

	if strings.TrimSpace(f.Industry) == "" {
		return model.Invalid("industry", "is required")
	}
	if _, ok := e.registry.Lookup(f.Industry); !ok {
		return model.Invalid("industry", "unknown industry %q, known: %s", f.Industry, strings.Join(e.registry.Industries(), ", "))
	}
	if strings.TrimSpace(f.Location.Country) == "" {
		return model.Invalid("location.country", "is required")
	}
	if strings.TrimSpace(f.Location.State) == "" {
		return model.Invalid("location.state", "is required")
	}

	checks := []struct {
		field   string
		value   float64
		ceiling float64
	}{
		{"squareFeet", f.SquareFeet, lim.MaxSquareFeet},
		{"knownPeakKW", f.KnownPeakKW, lim.MaxPeakKW},
		{"gridCapacityKW", f.GridCapacityKW, lim.MaxPeakKW},
		{"roofAreaSqFt", f.RoofAreaSqFt, lim.MaxSquareFeet},
		{"groundAreaSqFt", f.GroundAreaSqFt, lim.MaxSquareFeet},
		{"operatingHours", f.OperatingHours, 24},
		{"preferences.solarOffset", f.Preferences.SolarOffset, 1},
		{"preferences.criticalLoadFraction", f.Preferences.CriticalLoad, 1},
	}
	for _, c := range checks {
		if err := model.CheckRange(c.field, c.value, c.ceiling); err != nil {
			return err
		}
	}
	if f.UnitCount < 0 || f.UnitCount > lim.MaxUnits {
		return model.Invalid("unitCount", "must be within 0-%d, got %d", lim.MaxUnits, f.UnitCount)
	}
	if f.KnownPeakKW == 0 && f.SquareFeet == 0 && f.UnitCount == 0 {
		return model.Invalid("squareFeet", "squareFeet, unitCount or knownPeakKW is required")
	}
	if !f.GridConnection.IsValid() {
		return model.Invalid("gridConnection", "unknown grid connection %q", f.GridConnection)
	}

	if err := validatePreferences(f, e); err != nil {
		return err
	}
	if err := validateRates(req.Rates); err != nil {
		return err
	}
	if err := validateBenchmarks(req.Benchmarks); err != nil {
		return err
	}
	if err := validateFinancing(req.Financing); err != nil {
		return err
	}
	return validateSimulation(req.Simulation)
}

func validatePreferences(f FacilityProfile, e *Engine) error {
	p := f.Preferences
	lim := e.cnfg.Sizing

	if !p.WantsAnything() {
		return model.Invalid("preferences", "at least one of storage, solar, generator or charging is required")
	}

	if f.Chargers.Level2 < 0 {
		return model.Invalid("chargers.level2", "must not be negative, got %d", f.Chargers.Level2)
	}
	if f.Chargers.DCFast < 0 {
		return model.Invalid("chargers.dcFast", "must not be negative, got %d", f.Chargers.DCFast)
	}
	if f.Chargers.HighPower < 0 {
		return model.Invalid("chargers.highPower", "must not be negative, got %d", f.Chargers.HighPower)
	}
	if f.Chargers.Total() > lim.MaxChargers {
		return model.Invalid("chargers", "at most %d chargers, got %d", lim.MaxChargers, f.Chargers.Total())
	}
	if p.WantsCharging && f.Chargers.Total() == 0 {
		return model.Invalid("chargers", "charging requires at least one charger")
	}
	if p.ChargingOnSameMeter && !p.WantsCharging {
		return model.Invalid("preferences.chargingOnSameMeter", "is set without charging")
	}

	if p.Chemistry != "" && !e.degradation.Supports(p.Chemistry) {
		return model.Invalid("preferences.chemistry", "unknown chemistry %q", p.Chemistry)
	}
	if d := p.TargetDurationHours; d != 0 {
		if math.IsNaN(d) || d < lim.MinDurationHours || d > lim.MaxDurationHours {
			return model.Invalid("preferences.targetDurationHours", "must be within %g-%g hours, got %g",
				lim.MinDurationHours, lim.MaxDurationHours, d)
		}
	}
	if p.GeneratorFuel != "" && !p.GeneratorFuel.IsValid() {
		return model.Invalid("preferences.generatorFuel", "unknown fuel type %q", p.GeneratorFuel)
	}
	return nil
}

func validateRates(r *RateContext) error {
	if r == nil {
		return nil
	}
	if err := model.CheckRange("rates.energyRate", r.EnergyRate, 0); err != nil {
		return err
	}
	return model.CheckRange("rates.demandCharge", r.DemandCharge, 0)
}

func validateBenchmarks(b *BenchmarkContext) error {
	if b == nil {
		return nil
	}
	for _, eq := range slices.Sorted(maps.Keys(b.Prices)) {
		if err := model.CheckRange("benchmarks."+eq, b.Prices[eq].Price, 0); err != nil {
			return err
		}
	}
	for _, tier := range slices.Sorted(maps.Keys(b.TierPrices)) {
		prices := b.TierPrices[tier]
		for _, eq := range slices.Sorted(maps.Keys(prices)) {
			if err := model.CheckRange("benchmarks."+tier+"."+eq, prices[eq].Price, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateFinancing(a *FinancialAssumptions) error {
	if a == nil {
		return nil
	}
	if a.LifetimeYears != nil && (*a.LifetimeYears < 1 || *a.LifetimeYears > maxLifetimeYears) {
		return model.Invalid("financing.lifetimeYears", "must be within 1-%d, got %d", maxLifetimeYears, *a.LifetimeYears)
	}
	if err := checkRate("financing.discountRate", a.DiscountRate); err != nil {
		return err
	}
	if err := checkRate("financing.escalationRate", a.EscalationRate); err != nil {
		return err
	}
	if a.OMRate != nil {
		if err := model.CheckRange("financing.omRate", *a.OMRate, 1); err != nil {
			return err
		}
	}
	if a.CyclesPerYear != nil {
		if err := model.CheckRange("financing.cyclesPerYear", *a.CyclesPerYear, maxCyclesPerYear); err != nil {
			return err
		}
	}
	if a.DepthOfDischarge != nil {
		if err := model.CheckRange("financing.depthOfDischarge", *a.DepthOfDischarge, 1); err != nil {
			return err
		}
	}
	return nil
}

func checkRate(field string, rate *float64) error {
	if rate == nil {
		return nil
	}
	if math.IsNaN(*rate) || math.IsInf(*rate, 0) || *rate <= -1 {
		return model.Invalid(field, "must be a finite rate above -1, got %g", *rate)
	}
	return nil
}

func validateSimulation(s *SimulationOptions) error {
	if s == nil || s.Trials == nil {
		return nil
	}
	if *s.Trials < 1 || *s.Trials > maxTrials {
		return model.Invalid("simulation.trials", "must be within 1-%d, got %d", maxTrials, *s.Trials)
	}
	return nil
}
