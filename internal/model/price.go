package model

// Equipment keys shared by line items, benchmark lookups and the catalog.
const (
	EquipStorageEnergy    = "storage-energy"     // per kWh of storage
	EquipStoragePower     = "storage-power"      // per kW of power conversion
	EquipSolar            = "solar"              // per kW DC
	EquipGenerator        = "generator"          // per kW
	EquipChargerLevel2    = "charger-level2"     // per charger
	EquipChargerDCFast    = "charger-dc-fast"    // per charger
	EquipChargerHighPower = "charger-high-power" // per charger
)

// UnitPrice is an applied cost per unit of one piece of equipment together
// with where the number came from.
type UnitPrice struct {
	Price      float64    `json:"price"`
	Unit       string     `json:"unit"`
	Source     string     `json:"source"`
	Confidence Confidence `json:"confidence"`
	Vintage    string     `json:"vintage,omitempty"`
}

// ITCEligible reports whether the equipment counts towards the investment
// credit basis.
func ITCEligible(equipment string) bool {
	switch equipment {
	case EquipStorageEnergy, EquipStoragePower, EquipSolar:
		return true
	default:
		return false
	}
}
