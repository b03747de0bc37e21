package calc

// Savings and revenue formulas for a year of storage and solar operation.

// DemandChargeSavings is the yearly reduction of the monthly demand charge
// when kW of storage shaves the peak with the given capture ratio.
func DemandChargeSavings(kW, demandCharge, captureRatio float64) float64 {
	return kW * demandCharge * 12 * captureRatio
}

// ArbitrageSavings is the yearly gain of charging off-peak and discharging
// on-peak, the spread being a share of the energy rate.
func ArbitrageSavings(kWh, depthOfDischarge, cyclesPerYear, roundTripEff, energyRate, spread float64) float64 {
	return kWh * depthOfDischarge * cyclesPerYear * roundTripEff * energyRate * spread
}

func GridServicesRevenue(kW, ratePerKWYear float64) float64 {
	return kW * ratePerKWYear
}

// SolarSavings values every produced kWh at the energy rate, i.e. all solar
// production is consumed on site.
func SolarSavings(annualKWh, energyRate float64) float64 {
	return annualKWh * energyRate
}
