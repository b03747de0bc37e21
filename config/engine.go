package config

import (
	"errors"
	"fmt"
	"strings"
)

type ChemistryRates struct {
	CalendarRate float64 `mapstructure:"calendar_rate"` // Fraction of capacity lost per year regardless of use
	CycleRate    float64 `mapstructure:"cycle_rate"`    // Fraction lost per full equivalent cycle at 100% DoD
}

type AppConfigDegradation struct {
	// Keyed by chemistry: "lfp", "nmc", "sodium-ion", "flow"
	Chemistries map[string]ChemistryRates `mapstructure:"chemistries"`
	// Capacity fraction under which the warranty is considered breached
	WarrantyFloor       float64 `mapstructure:"warranty_floor"`
	CyclesPerYear       float64 `mapstructure:"cycles_per_year"`
	AvgDepthOfDischarge float64 `mapstructure:"avg_depth_of_discharge"`
}

type AppConfigSizing struct {
	MaxPeakKW     float64 `mapstructure:"max_peak_kw"`
	MaxSquareFeet float64 `mapstructure:"max_square_feet"`
	MaxUnits      int     `mapstructure:"max_units"`
	MaxChargers   int     `mapstructure:"max_chargers"`

	MinDurationHours        float64 `mapstructure:"min_duration_hours"`
	MaxDurationHours        float64 `mapstructure:"max_duration_hours"`
	DefaultDurationHours    float64 `mapstructure:"default_duration_hours"`
	ResilienceDurationHours float64 `mapstructure:"resilience_duration_hours"` // unreliable, off-grid and microgrid sites

	DefaultSolarOffset   float64 `mapstructure:"default_solar_offset"`
	DefaultSpecificYield float64 `mapstructure:"default_specific_yield"` // kWh per kW DC per year
	RoofKWPerSqFt        float64 `mapstructure:"roof_kw_per_sqft"`
	GroundKWPerSqFt      float64 `mapstructure:"ground_kw_per_sqft"`

	CriticalLoadFraction float64 `mapstructure:"critical_load_fraction"`

	// Keyed by charger type: "level2", "dc_fast", "high_power"
	ChargerPowerKW          map[string]float64 `mapstructure:"charger_power_kw"`
	ChargerUtilizationHours float64            `mapstructure:"charger_utilization_hours"` // per charger per year
}

type AppConfigTier struct {
	Name     string  `mapstructure:"name"`
	Coverage float64 `mapstructure:"coverage"` // Fraction of peak demand covered by storage
}

type AppConfigFinance struct {
	LifetimeYears       int     `mapstructure:"lifetime_years"`
	DiscountRate        float64 `mapstructure:"discount_rate"`
	EscalationRate      float64 `mapstructure:"escalation_rate"`
	OMRate              float64 `mapstructure:"om_rate"`              // Share of capex spent on O&M each year
	DemandCaptureRatio  float64 `mapstructure:"demand_capture_ratio"` // Share of storage kW that actually shaves the monthly peak
	ArbitrageSpread     float64 `mapstructure:"arbitrage_spread"`     // Peak/off-peak spread as a share of the energy rate
	RoundTripEfficiency float64 `mapstructure:"round_trip_efficiency"`
	GridServicesRate    float64 `mapstructure:"grid_services_rate"` // $/kW-year, 0 disables the revenue stream
}

type AppConfigRisk struct {
	Trials  int    `mapstructure:"trials"`
	Seed    uint64 `mapstructure:"seed"`
	Workers int    `mapstructure:"workers"`

	EscalationSpread      float64 `mapstructure:"escalation_spread"` // +- around the base escalation rate
	DegradationMin        float64 `mapstructure:"degradation_min"`
	DegradationMax        float64 `mapstructure:"degradation_max"`
	IncentiveMin          float64 `mapstructure:"incentive_min"` // Worst case share of the credit actually received
	EnergyRateStdDev      float64 `mapstructure:"energy_rate_std_dev"`
	SensitivityDeltaShare float64 `mapstructure:"sensitivity_delta_share"` // Share of each variable's range used for +- sensitivity
}

type AppConfigAuthenticator struct {
	DeviationThreshold float64  `mapstructure:"deviation_threshold"`
	RecognizedSources  []string `mapstructure:"recognized_sources"`
	// HMAC key, normally injected through ENGINE_AUTHENTICATOR_SIGNING_KEY
	SigningKey string `mapstructure:"signing_key"`
}

type RateDefault struct {
	EnergyRate   float64 `mapstructure:"energy_rate"`   // $/kWh
	DemandCharge float64 `mapstructure:"demand_charge"` // $/kW-month
	Currency     string  `mapstructure:"currency"`
}

type AppConfigLookup struct {
	TimeoutMs int `mapstructure:"timeout_ms"`
	// Keyed by lower case state/province code, "default" is used when nothing matches
	RegionalRates map[string]RateDefault `mapstructure:"regional_rates"`
}

type AppConfigEngine struct {
	Degradation   AppConfigDegradation   `mapstructure:"degradation"`
	Sizing        AppConfigSizing        `mapstructure:"sizing"`
	Tiers         []AppConfigTier        `mapstructure:"tiers"`
	Finance       AppConfigFinance       `mapstructure:"finance"`
	Risk          AppConfigRisk          `mapstructure:"risk"`
	Authenticator AppConfigAuthenticator `mapstructure:"authenticator"`
	Lookup        AppConfigLookup        `mapstructure:"lookup"`
}

func DefaultEngine() AppConfigEngine {
	return AppConfigEngine{
		Degradation: AppConfigDegradation{
			Chemistries: map[string]ChemistryRates{
				"lfp":        {CalendarRate: 0.010, CycleRate: 0.00015},
				"nmc":        {CalendarRate: 0.015, CycleRate: 0.00020},
				"sodium-ion": {CalendarRate: 0.012, CycleRate: 0.00018},
				"flow":       {CalendarRate: 0.005, CycleRate: 0.00002},
			},
			WarrantyFloor:       0.70,
			CyclesPerYear:       365,
			AvgDepthOfDischarge: 0.80,
		},
		Sizing: AppConfigSizing{
			MaxPeakKW:               1_000_000,
			MaxSquareFeet:           50_000_000,
			MaxUnits:                100_000,
			MaxChargers:             1_000,
			MinDurationHours:        1,
			MaxDurationHours:        6,
			DefaultDurationHours:    2,
			ResilienceDurationHours: 4,
			DefaultSolarOffset:      0.30,
			DefaultSpecificYield:    1400,
			RoofKWPerSqFt:           0.015,
			GroundKWPerSqFt:         0.008,
			CriticalLoadFraction:    0.50,
			ChargerPowerKW: map[string]float64{
				"level2":     7.2,
				"dc_fast":    150,
				"high_power": 350,
			},
			ChargerUtilizationHours: 1_000,
		},
		Tiers: []AppConfigTier{
			{Name: "Starter", Coverage: 0.6},
			{Name: "Professional", Coverage: 0.8},
			{Name: "Enterprise", Coverage: 1.1},
		},
		Finance: AppConfigFinance{
			LifetimeYears:       25,
			DiscountRate:        0.08,
			EscalationRate:      0.025,
			OMRate:              0.015,
			DemandCaptureRatio:  0.75,
			ArbitrageSpread:     0.35,
			RoundTripEfficiency: 0.88,
			GridServicesRate:    0,
		},
		Risk: AppConfigRisk{
			Trials:                10_000,
			Seed:                  1,
			Workers:               4,
			EscalationSpread:      0.02,
			DegradationMin:        0.8,
			DegradationMax:        1.5,
			IncentiveMin:          0.6,
			EnergyRateStdDev:      0.10,
			SensitivityDeltaShare: 0.5,
		},
		Authenticator: AppConfigAuthenticator{
			DeviationThreshold: 0.15,
			RecognizedSources: []string{
				"nrel-atb",
				"bnef",
				"lazard-lcos",
				"eia",
				"wood-mackenzie",
				"vendor-quote",
				"engine-catalog",
			},
		},
		Lookup: AppConfigLookup{
			TimeoutMs: 2_000,
			RegionalRates: map[string]RateDefault{
				"default": {EnergyRate: 0.15, DemandCharge: 15, Currency: "USD"},
				"ca":      {EnergyRate: 0.24, DemandCharge: 25, Currency: "USD"},
				"ny":      {EnergyRate: 0.20, DemandCharge: 22, Currency: "USD"},
				"tx":      {EnergyRate: 0.11, DemandCharge: 12, Currency: "USD"},
				"ma":      {EnergyRate: 0.22, DemandCharge: 20, Currency: "USD"},
			},
		},
	}
}

func (a AppConfigAuthenticator) IsRecognizedSource(source string) bool {
	for _, s := range a.RecognizedSources {
		if strings.EqualFold(s, source) {
			return true
		}
	}
	return false
}

func (e AppConfigEngine) RegionalRate(state string) RateDefault {
	if r, ok := e.Lookup.RegionalRates[strings.ToLower(state)]; ok {
		return r
	}
	return e.Lookup.RegionalRates["default"]
}

func (e AppConfigEngine) Validate() error {
	if len(e.Tiers) != 3 {
		return fmt.Errorf("exactly three tiers are required, got %d", len(e.Tiers))
	}
	if e.Tiers[len(e.Tiers)-1].Coverage < 1 {
		return errors.New("the largest tier must cover at least the full peak")
	}
	for i, t := range e.Tiers {
		if t.Name == "" || t.Coverage <= 0 {
			return fmt.Errorf("tier %d needs a name and a positive coverage", i)
		}
		if i > 0 && t.Coverage < e.Tiers[i-1].Coverage {
			return fmt.Errorf("tier %q coverage must not be below tier %q", t.Name, e.Tiers[i-1].Name)
		}
	}
	if e.Sizing.MinDurationHours <= 0 || e.Sizing.MaxDurationHours < e.Sizing.MinDurationHours {
		return fmt.Errorf("duration bounds %g-%g are invalid", e.Sizing.MinDurationHours, e.Sizing.MaxDurationHours)
	}
	if e.Finance.LifetimeYears < 1 {
		return errors.New("finance lifetime must be at least one year")
	}
	if e.Degradation.WarrantyFloor < 0 || e.Degradation.WarrantyFloor > 1 {
		return errors.New("warranty floor must be within [0,1]")
	}
	if e.Risk.Trials < 1 {
		return errors.New("risk trials must be positive")
	}
	if e.Risk.DegradationMin <= 0 || e.Risk.DegradationMax < e.Risk.DegradationMin {
		return fmt.Errorf("degradation multiplier range %g-%g is invalid, the low end must be positive",
			e.Risk.DegradationMin, e.Risk.DegradationMax)
	}
	if _, ok := e.Lookup.RegionalRates["default"]; !ok {
		return errors.New("a default regional rate is required")
	}
	return nil
}
