// Package finance prices the sized equipment and projects the yearly cash
// flows, NPV, IRR and payback of a quote option.
package finance

import (
	"fmt"
	"maps"
	"slices"

	"github.com/icodeforyou/bessquote/calc"
	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/shopspring/decimal"
)

// Value stack entries
const (
	ValueDemandCharge = "demand-charge-reduction"
	ValueArbitrage    = "energy-arbitrage"
	ValueGridServices = "grid-services"
	ValueSolar        = "solar-self-consumption"
)

type Rates struct {
	EnergyRate   float64 // $/kWh
	DemandCharge float64 // $/kW-month
}

type Assumptions struct {
	config.AppConfigFinance
	CyclesPerYear    float64
	DepthOfDischarge float64
}

// Capex is the priced bill of materials of one option.
type Capex struct {
	LineItems []model.LineItem
	Total     float64
	ITCBasis  float64 // Part of Total eligible for the investment credit
}

type quantity struct {
	equipment string
	amount    float64
}

// PriceEquipment multiplies every sized quantity with its unit price. Sums
// are done in cents so the roll-up is exact.
func PriceEquipment(s model.EquipmentSizing, prices map[string]model.UnitPrice) (Capex, error) {
	quantities := []quantity{
		{model.EquipStorageEnergy, s.StorageKWh},
		{model.EquipStoragePower, s.StorageKW},
		{model.EquipSolar, s.SolarKW},
		{model.EquipGenerator, s.GeneratorKW},
		{model.EquipChargerLevel2, float64(s.Chargers.Level2)},
		{model.EquipChargerDCFast, float64(s.Chargers.DCFast)},
		{model.EquipChargerHighPower, float64(s.Chargers.HighPower)},
	}

	var c Capex
	total := decimal.Zero
	basis := decimal.Zero
	for _, q := range quantities {
		if q.amount == 0 {
			continue
		}
		p, ok := prices[q.equipment]
		if !ok {
			return Capex{}, model.Invalid("benchmarks", "no unit price for %s", q.equipment)
		}
		if err := model.CheckRange("benchmarks."+q.equipment, p.Price, 0); err != nil {
			return Capex{}, err
		}

		line := decimal.NewFromFloat(q.amount).Mul(decimal.NewFromFloat(p.Price)).Round(2)
		total = total.Add(line)
		if model.ITCEligible(q.equipment) {
			basis = basis.Add(line)
		}

		c.LineItems = append(c.LineItems, model.LineItem{
			Equipment: q.equipment,
			Unit:      p.Unit,
			Quantity:  q.amount,
			UnitPrice: p.Price,
			Total:     line.InexactFloat64(),
			Citation: model.SourceCitation{
				Field:      q.equipment,
				Source:     p.Source,
				Confidence: p.Confidence,
				Vintage:    p.Vintage,
			},
		})
	}

	c.Total = total.InexactFloat64()
	c.ITCBasis = basis.InexactFloat64()
	return c, nil
}

// ValueStack returns the first year savings per revenue source.
func ValueStack(s model.EquipmentSizing, r Rates, a Assumptions) map[string]float64 {
	stack := map[string]float64{}
	if s.StorageKW > 0 {
		stack[ValueDemandCharge] = calc.DemandChargeSavings(s.StorageKW, r.DemandCharge, a.DemandCaptureRatio)
		stack[ValueArbitrage] = calc.ArbitrageSavings(s.StorageKWh, a.DepthOfDischarge, a.CyclesPerYear,
			a.RoundTripEfficiency, r.EnergyRate, a.ArbitrageSpread)
		if a.GridServicesRate > 0 {
			stack[ValueGridServices] = calc.GridServicesRevenue(s.StorageKW, a.GridServicesRate)
		}
	}
	if s.SolarAnnualKWh > 0 {
		stack[ValueSolar] = calc.SolarSavings(s.SolarAnnualKWh, r.EnergyRate)
	}
	return stack
}

type Input struct {
	Sizing       model.EquipmentSizing
	Capex        Capex
	CreditAmount float64
	Curve        model.DegradationCurve
	Rates        Rates
	Assumptions  Assumptions
}

func checkInput(in Input) error {
	if err := model.CheckRange("rates.energyRate", in.Rates.EnergyRate, 0); err != nil {
		return err
	}
	if err := model.CheckRange("rates.demandCharge", in.Rates.DemandCharge, 0); err != nil {
		return err
	}
	if err := model.CheckRange("creditAmount", in.CreditAmount, 0); err != nil {
		return err
	}
	if in.CreditAmount > in.Capex.Total {
		return model.Invalid("creditAmount", "%g exceeds the total capex %g", in.CreditAmount, in.Capex.Total)
	}
	a := in.Assumptions
	if a.LifetimeYears < 1 {
		return model.Invalid("financing.lifetimeYears", "must be at least 1, got %d", a.LifetimeYears)
	}
	if a.DiscountRate <= -1 {
		return model.Invalid("financing.discountRate", "must be above -1, got %g", a.DiscountRate)
	}
	if a.EscalationRate <= -1 {
		return model.Invalid("financing.escalationRate", "must be above -1, got %g", a.EscalationRate)
	}
	if err := model.CheckRange("financing.omRate", a.OMRate, 1); err != nil {
		return err
	}
	return nil
}

// Calculate projects the cash flow series and derives the financial figures.
// The series starts with year 0 holding the negative net investment.
func Calculate(in Input) (model.FinancialResult, error) {
	if err := checkInput(in); err != nil {
		return model.FinancialResult{}, err
	}

	a := in.Assumptions
	stack := ValueStack(in.Sizing, in.Rates, a)
	// Sorted so the sum is bit identical between runs
	base := 0.0
	for _, k := range slices.Sorted(maps.Keys(stack)) {
		base += stack[k]
	}

	netInvestment := in.Capex.Total - in.CreditAmount
	opEx := in.Capex.Total * a.OMRate

	flows := make([]float64, a.LifetimeYears)
	series := make([]model.CashFlow, 0, a.LifetimeYears+1)
	series = append(series, model.CashFlow{Year: 0, NetCashFlow: -netInvestment})

	escalation := 1.0
	for t := 1; t <= a.LifetimeYears; t++ {
		if t > 1 {
			escalation *= 1 + a.EscalationRate
		}
		revenue := base * escalation * in.Curve.FractionAt(t)
		flows[t-1] = revenue - opEx
		series = append(series, model.CashFlow{
			Year:        t,
			Revenue:     revenue,
			OpEx:        opEx,
			NetCashFlow: flows[t-1],
		})
	}

	res := model.FinancialResult{
		TotalCapex:             in.Capex.Total,
		CreditAmount:           in.CreditAmount,
		NetInvestment:          netInvestment,
		BaseAnnualSavings:      base,
		NPV:                    NPVAt(a.DiscountRate, netInvestment, flows),
		IRR:                    IRR(netInvestment, flows),
		SimplePaybackYears:     Payback(netInvestment, flows),
		DiscountedPaybackYears: DiscountedPayback(a.DiscountRate, netInvestment, flows),
		ValueStack:             stack,
		LineItems:              in.Capex.LineItems,
		CashFlows:              series,
	}

	if !res.IRR.IsValid() {
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnIRRUndefined,
			Message: "cash flows never change sign, no internal rate of return",
		})
	}
	if !res.SimplePaybackYears.IsValid() {
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnPaybackNotAchieved,
			Message: fmt.Sprintf("investment is not paid back within %d years", a.LifetimeYears),
		})
	}
	if !res.DiscountedPaybackYears.IsValid() {
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnDiscountedPaybackNotAchieved,
			Message: fmt.Sprintf("discounted investment is not paid back within %d years", a.LifetimeYears),
		})
	}

	return res, nil
}
