// Package sizing turns a facility profile into a load profile and the
// hardware capacities that serve it. Calculators reject out of range input
// with a model.ValidationError instead of clamping it.
package sizing

import (
	"math"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/model"
)

const maxCoverage = 3.0

type StorageSize struct {
	KW  float64
	KWh float64
}

// Storage covers a share of peak demand for the given duration. minKW raises
// the power rating when the grid connection cannot carry the full peak.
func Storage(load model.LoadProfile, coverage, durationHours, minKW float64, lim config.AppConfigSizing) (StorageSize, error) {
	if err := checkLoad(load, lim); err != nil {
		return StorageSize{}, err
	}
	if err := model.CheckRange("coverageFactor", coverage, maxCoverage); err != nil {
		return StorageSize{}, err
	}
	if err := model.CheckRange("minStorageKW", minKW, lim.MaxPeakKW); err != nil {
		return StorageSize{}, err
	}
	if math.IsNaN(durationHours) || durationHours < lim.MinDurationHours || durationHours > lim.MaxDurationHours {
		return StorageSize{}, model.Invalid("targetDurationHours", "must be within %g-%g h, got %g", lim.MinDurationHours, lim.MaxDurationHours, durationHours)
	}

	kw := max(load.PeakDemandKW*coverage, minKW)
	return StorageSize{KW: kw, KWh: kw * durationHours}, nil
}

// DefaultDuration is used when the customer has not asked for a duration.
func DefaultDuration(grid model.GridConnection, lim config.AppConfigSizing) float64 {
	if grid.NeedsLongDuration() {
		return lim.ResilienceDurationHours
	}
	return lim.DefaultDurationHours
}

type SolarParams struct {
	Offset        float64 // Share of annual consumption to produce
	SpecificYield float64 // kWh per kW per year
	RoofSqFt      float64
	GroundSqFt    float64
}

type SolarSize struct {
	KW         float64
	AnnualKWh  float64 // Estimate from the specific yield
	AreaCapped bool
}

// Solar sizes the array for the offset target, never above what the
// declared roof and ground area can hold.
func Solar(load model.LoadProfile, p SolarParams, lim config.AppConfigSizing) (SolarSize, error) {
	if err := checkLoad(load, lim); err != nil {
		return SolarSize{}, err
	}
	if err := model.CheckRange("solarOffset", p.Offset, 1); err != nil {
		return SolarSize{}, err
	}
	if err := model.CheckRange("roofAreaSqFt", p.RoofSqFt, lim.MaxSquareFeet); err != nil {
		return SolarSize{}, err
	}
	if err := model.CheckRange("groundAreaSqFt", p.GroundSqFt, lim.MaxSquareFeet); err != nil {
		return SolarSize{}, err
	}
	if math.IsNaN(p.SpecificYield) || p.SpecificYield <= 0 {
		return SolarSize{}, model.Invalid("specificYield", "must be positive, got %g", p.SpecificYield)
	}

	kw := load.AnnualConsumptionKWh * p.Offset / p.SpecificYield
	capped := false
	if p.RoofSqFt > 0 || p.GroundSqFt > 0 {
		areaKW := p.RoofSqFt*lim.RoofKWPerSqFt + p.GroundSqFt*lim.GroundKWPerSqFt
		if kw > areaKW {
			kw = areaKW
			capped = true
		}
	}
	return SolarSize{KW: kw, AnnualKWh: kw * p.SpecificYield, AreaCapped: capped}, nil
}

type GeneratorSize struct {
	KW   float64
	Fuel model.FuelType
}

// Generator backs up the critical share of peak demand.
func Generator(load model.LoadProfile, criticalFraction float64, fuel model.FuelType, lim config.AppConfigSizing) (GeneratorSize, error) {
	if err := checkLoad(load, lim); err != nil {
		return GeneratorSize{}, err
	}
	if err := model.CheckRange("criticalLoadFraction", criticalFraction, 1); err != nil {
		return GeneratorSize{}, err
	}
	if fuel == "" {
		fuel = model.FuelNaturalGas
	}
	if !fuel.IsValid() {
		return GeneratorSize{}, model.Invalid("generatorFuel", "unknown fuel type %q", fuel)
	}
	return GeneratorSize{KW: load.PeakDemandKW * criticalFraction, Fuel: fuel}, nil
}

type ChargingLoad struct {
	Chargers  model.ChargerMix
	KW        float64
	AnnualKWh float64
	SameMeter bool
}

// Charging sums the fixed draw of every requested charger.
func Charging(mix model.ChargerMix, sameMeter bool, lim config.AppConfigSizing) (ChargingLoad, error) {
	counts := []struct {
		field string
		key   string
		n     int
	}{
		{"chargers.level2", "level2", mix.Level2},
		{"chargers.dcFast", "dc_fast", mix.DCFast},
		{"chargers.highPower", "high_power", mix.HighPower},
	}

	kw := 0.0
	for _, c := range counts {
		if c.n < 0 {
			return ChargingLoad{}, model.Invalid(c.field, "must not be negative, got %d", c.n)
		}
		kw += float64(c.n) * lim.ChargerPowerKW[c.key]
	}
	if total := mix.Total(); total > lim.MaxChargers {
		return ChargingLoad{}, model.Invalid("chargers", "%d chargers exceed the sanity ceiling %d", total, lim.MaxChargers)
	}

	return ChargingLoad{
		Chargers:  mix,
		KW:        kw,
		AnnualKWh: kw * lim.ChargerUtilizationHours,
		SameMeter: sameMeter,
	}, nil
}

// Apply adds the charging load to the facility load when both share a meter.
func (c ChargingLoad) Apply(load model.LoadProfile, lim config.AppConfigSizing) (model.LoadProfile, error) {
	if !c.SameMeter || c.KW == 0 {
		return load, nil
	}
	out := model.LoadProfile{
		PeakDemandKW:         load.PeakDemandKW + c.KW,
		AnnualConsumptionKWh: load.AnnualConsumptionKWh + c.AnnualKWh,
		ChargingLoadKW:       c.KW,
	}
	out.LoadFactor = out.AnnualConsumptionKWh / (out.PeakDemandKW * hoursPerYear)
	if err := checkLoad(out, lim); err != nil {
		return model.LoadProfile{}, err
	}
	return out, nil
}

func checkLoad(load model.LoadProfile, lim config.AppConfigSizing) error {
	if err := model.CheckRange("peakDemandKW", load.PeakDemandKW, lim.MaxPeakKW); err != nil {
		return err
	}
	return model.CheckRange("annualConsumptionKWh", load.AnnualConsumptionKWh, lim.MaxPeakKW*hoursPerYear)
}
