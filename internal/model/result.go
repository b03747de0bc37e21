package model

import "github.com/icodeforyou/bessquote/types/maybe"

type LoadProfile struct {
	PeakDemandKW         float64 `json:"peakDemandKW"`
	AnnualConsumptionKWh float64 `json:"annualConsumptionKWh"`
	LoadFactor           float64 `json:"loadFactor"`
	ChargingLoadKW       float64 `json:"chargingLoadKW,omitempty"` // included in peak only when on the same meter
}

type EquipmentSizing struct {
	StorageKW      float64    `json:"storageKW,omitempty"`
	StorageKWh     float64    `json:"storageKWh,omitempty"`
	Chemistry      Chemistry  `json:"chemistry,omitempty"`
	SolarKW        float64    `json:"solarKW,omitempty"`
	SolarAnnualKWh float64    `json:"solarAnnualKWh,omitempty"`
	GeneratorKW    float64    `json:"generatorKW,omitempty"`
	GeneratorFuel  FuelType   `json:"generatorFuel,omitempty"`
	Chargers       ChargerMix `json:"chargers"`
	ChargingKW     float64    `json:"chargingKW,omitempty"`
}

// DurationHours is zero when no storage is sized.
func (s EquipmentSizing) DurationHours() float64 {
	if s.StorageKW == 0 {
		return 0
	}
	return s.StorageKWh / s.StorageKW
}

type CurvePoint struct {
	Year             int     `json:"year"`
	CapacityFraction float64 `json:"capacityFraction"`
}

// DegradationCurve starts at year 0 with a capacity fraction of 1.0.
type DegradationCurve []CurvePoint

// FractionAt returns the capacity fraction for year, holding the last value
// when year is past the end of the curve.
func (c DegradationCurve) FractionAt(year int) float64 {
	if len(c) == 0 {
		return 1
	}
	if year < 0 {
		year = 0
	}
	if year >= len(c) {
		return c[len(c)-1].CapacityFraction
	}
	return c[year].CapacityFraction
}

type DegradationSummary struct {
	FinalCapacityFraction float64          `json:"finalCapacityFraction"`
	FinalCapacityKWh      float64          `json:"finalCapacityKWh"`
	TotalCycles           float64          `json:"totalCycles"`
	WarrantyBreachYear    maybe.Maybe[int] `json:"warrantyBreachYear"`
}

type IncentiveResult struct {
	ProjectType    string             `json:"projectType"`
	BaseRate       float64            `json:"baseRate"`
	BonusBreakdown map[string]float64 `json:"bonusBreakdown"`
	TotalRate      float64            `json:"totalRate"`
	CreditAmount   float64            `json:"creditAmount"`
	Notes          []string           `json:"notes,omitempty"`
}

type CashFlow struct {
	Year        int     `json:"year"`
	Revenue     float64 `json:"revenue"`
	OpEx        float64 `json:"opEx"`
	NetCashFlow float64 `json:"netCashFlow"`
}

// LineItem is one priced piece of equipment in the capex roll-up.
type LineItem struct {
	Equipment string         `json:"equipment"`
	Unit      string         `json:"unit"`
	Quantity  float64        `json:"quantity"`
	UnitPrice float64        `json:"unitPrice"`
	Total     float64        `json:"total"`
	Citation  SourceCitation `json:"citation"`
}

type WarningCode string

const (
	WarnIRRUndefined                 WarningCode = "irr-undefined"
	WarnPaybackNotAchieved           WarningCode = "payback-not-achieved"
	WarnDiscountedPaybackNotAchieved WarningCode = "discounted-payback-not-achieved"
	WarnWarrantyFloorBreached        WarningCode = "warranty-floor-breached"
)

// Warning is a numeric condition reported in the result instead of failing.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

type FinancialResult struct {
	TotalCapex             float64              `json:"totalCapex"`
	CreditAmount           float64              `json:"creditAmount"`
	NetInvestment          float64              `json:"netInvestment"`
	BaseAnnualSavings      float64              `json:"baseAnnualSavings"`
	NPV                    float64              `json:"npv"`
	IRR                    maybe.Maybe[float64] `json:"irr"`
	SimplePaybackYears     maybe.Maybe[float64] `json:"simplePaybackYears"`
	DiscountedPaybackYears maybe.Maybe[float64] `json:"discountedPaybackYears"`
	ValueStack             map[string]float64   `json:"valueStack"`
	LineItems              []LineItem           `json:"lineItems"`
	CashFlows              []CashFlow           `json:"cashFlows"`
	Warnings               []Warning            `json:"warnings,omitempty"`
}

type Band struct {
	P10 maybe.Maybe[float64] `json:"p10"`
	P50 maybe.Maybe[float64] `json:"p50"`
	P90 maybe.Maybe[float64] `json:"p90"`
}

type Sensitivity struct {
	Variable string  `json:"variable"`
	Impact   float64 `json:"impact"`
	LowNPV   float64 `json:"lowNPV"`
	HighNPV  float64 `json:"highNPV"`
}

type RiskProfile struct {
	Trials       int           `json:"trials"`
	Seed         uint64        `json:"seed"`
	NPV          Band          `json:"npv"`
	IRR          Band          `json:"irr"`
	PaybackYears Band          `json:"paybackYears"`
	Sensitivity  []Sensitivity `json:"sensitivity"`
}

type QuoteOption struct {
	Tier           string             `json:"tier"`
	CoverageFactor float64            `json:"coverageFactor"`
	Sizing         EquipmentSizing    `json:"sizing"`
	Degradation    DegradationSummary `json:"degradation"`
	Incentive      IncentiveResult    `json:"incentive"`
	Financial      FinancialResult    `json:"financial"`
	Risk           RiskProfile        `json:"risk"`
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidences, unknown values rank lowest.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

type SourceCitation struct {
	Field      string     `json:"field"`
	Source     string     `json:"source"`
	Confidence Confidence `json:"confidence"`
	Vintage    string     `json:"vintage,omitempty"`
}

type Deviation struct {
	Tier           string  `json:"tier"`
	Equipment      string  `json:"equipment"`
	AppliedPrice   float64 `json:"appliedPrice"`
	BenchmarkPrice float64 `json:"benchmarkPrice"`
	DeviationPct   float64 `json:"deviationPct"`
	Reason         string  `json:"reason"`
}

// Degradation records an external lookup that fell back to a default.
type Degradation struct {
	Dependency string `json:"dependency"`
	Fallback   string `json:"fallback"`
	Reason     string `json:"reason"`
}
