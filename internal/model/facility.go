package model

import "maps"

type GridConnection string

const (
	GridReliable   GridConnection = "reliable"
	GridUnreliable GridConnection = "unreliable"
	GridLimited    GridConnection = "limited"
	GridOffGrid    GridConnection = "off_grid"
	GridMicrogrid  GridConnection = "microgrid"
)

func (g GridConnection) IsValid() bool {
	switch g {
	case GridReliable, GridUnreliable, GridLimited, GridOffGrid, GridMicrogrid:
		return true
	default:
		return false
	}
}

// NeedsLongDuration reports whether the site relies on storage for resilience
// rather than bill savings alone.
func (g GridConnection) NeedsLongDuration() bool {
	return g == GridUnreliable || g == GridOffGrid || g == GridMicrogrid
}

type Chemistry string

const (
	ChemistryLFP       Chemistry = "lfp"
	ChemistryNMC       Chemistry = "nmc"
	ChemistrySodiumIon Chemistry = "sodium-ion"
	ChemistryFlow      Chemistry = "flow"
)

type FuelType string

const (
	FuelNaturalGas FuelType = "natural-gas"
	FuelDiesel     FuelType = "diesel"
	FuelPropane    FuelType = "propane"
	FuelDualFuel   FuelType = "dual-fuel"
)

func (f FuelType) IsValid() bool {
	switch f {
	case FuelNaturalGas, FuelDiesel, FuelPropane, FuelDualFuel:
		return true
	default:
		return false
	}
}

type Location struct {
	Country    string `json:"country"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode,omitempty"`
	Region     string `json:"region,omitempty"` // e.g. utility territory or ISO
}

// ChargerMix is the requested number of chargers per type.
type ChargerMix struct {
	Level2    int `json:"level2"`
	DCFast    int `json:"dcFast"`
	HighPower int `json:"highPower"`
}

func (c ChargerMix) Total() int {
	return c.Level2 + c.DCFast + c.HighPower
}

type Preferences struct {
	WantsStorage        bool      `json:"wantsStorage"`
	WantsSolar          bool      `json:"wantsSolar"`
	WantsGenerator      bool      `json:"wantsGenerator"`
	WantsCharging       bool      `json:"wantsCharging"`
	ChargingOnSameMeter bool      `json:"chargingOnSameMeter"`
	Chemistry           Chemistry `json:"chemistry,omitempty"`           // default lfp
	TargetDurationHours float64   `json:"targetDurationHours,omitempty"` // 0 = derive from grid connection
	SolarOffset         float64   `json:"solarOffset,omitempty"`         // fraction of annual consumption, 0 = default
	GeneratorFuel       FuelType  `json:"generatorFuel,omitempty"`
	CriticalLoad        float64   `json:"criticalLoadFraction,omitempty"` // 0 = default
}

func (p Preferences) WantsAnything() bool {
	return p.WantsStorage || p.WantsSolar || p.WantsGenerator || p.WantsCharging
}

// FacilityProfile is the caller's description of a site. The engine never
// keeps a reference to a caller-owned profile, see Snapshot.
type FacilityProfile struct {
	Industry       string            `json:"industry"`
	Location       Location          `json:"location"`
	SquareFeet     float64           `json:"squareFeet,omitempty"`
	UnitCount      int               `json:"unitCount,omitempty"`      // rooms, beds, bays, apartments
	OperatingHours float64           `json:"operatingHours,omitempty"` // hours per day, 0 = industry default
	KnownPeakKW    float64           `json:"knownPeakKW,omitempty"`    // from utility bill, 0 = derive
	GridConnection GridConnection    `json:"gridConnection,omitempty"`
	GridCapacityKW float64           `json:"gridCapacityKW,omitempty"` // 0 = unlimited
	RoofAreaSqFt   float64           `json:"roofAreaSqFt,omitempty"`
	GroundAreaSqFt float64           `json:"groundAreaSqFt,omitempty"`
	Chargers       ChargerMix        `json:"chargers"`
	Preferences    Preferences       `json:"preferences"`
	Answers        map[string]string `json:"answers,omitempty"`
}

// Snapshot returns a copy that shares no mutable state with f.
func (f FacilityProfile) Snapshot() FacilityProfile {
	c := f
	c.Answers = maps.Clone(f.Answers)
	if c.GridConnection == "" {
		c.GridConnection = GridReliable
	}
	return c
}
