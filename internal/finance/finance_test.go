package finance

import (
	"errors"
	"math"
	"testing"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/model"
)

func TestNPVWithoutDiscounting(t *testing.T) {
	flows := []float64{120.5, -30.25, 410, 0, 99.125, 1e6}
	sum := 0.0
	for _, cf := range flows {
		sum += cf
	}
	got := NPVAt(0, 2500.75, flows)
	if got != sum-2500.75 {
		t.Errorf("got %f, wanted %f", got, sum-2500.75)
	}
}

func TestIRRZeroesNPV(t *testing.T) {
	fading := make([]float64, 20)
	for i := range fading {
		fading[i] = 300_000
		if i >= 10 {
			fading[i] = -20_000
		}
	}

	tests := []struct {
		name   string
		invest float64
		flows  []float64
		min    float64
		max    float64
	}{
		{"flat", 1000, []float64{300, 300, 300, 300, 300}, 0.15, 0.16},
		{"growing", 5000, []float64{100, 500, 1000, 2000, 4000, 4000}, 0.1, 0.5},
		{"losing", 1000, []float64{100, 100, 100, 100}, -0.5, 0},
		// Savings fade out while running costs stay: the NPV also crosses
		// zero at a negative rate, the investment return is the upper root.
		{"savings turn into costs", 1_000_000, fading, 0.25, 0.3},
		{"money received up front", -1000, []float64{-300, -300, -300, -300, -300}, 0.15, 0.16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			irr := IRR(tt.invest, tt.flows)
			if !irr.IsValid() {
				t.Fatalf("expected an IRR")
			}
			if irr.Value() < tt.min || irr.Value() > tt.max {
				t.Errorf("got IRR %f, wanted within [%f, %f]", irr.Value(), tt.min, tt.max)
			}
			if npv := NPVAt(irr.Value(), tt.invest, tt.flows); math.Abs(npv) > 1e-6 {
				t.Errorf("NPV at IRR %f is %g, wanted ~0", irr.Value(), npv)
			}
		})
	}
}

func TestIRRUndefined(t *testing.T) {
	if irr := IRR(1000, []float64{-10, -20, -30}); irr.IsValid() {
		t.Errorf("got IRR %f for an all negative series", irr.Value())
	}
	if irr := IRR(-100, []float64{10, 20}); irr.IsValid() {
		t.Errorf("got IRR %f for an all positive series", irr.Value())
	}
	if irr := IRR(100, nil); irr.IsValid() {
		t.Errorf("got IRR for an empty series")
	}
}

func TestFlatPayback(t *testing.T) {
	flows := make([]float64, 10)
	for i := range flows {
		flows[i] = 500_000
	}
	p := Payback(2_500_000, flows)
	if !p.IsValid() || p.Value() != 5.0 {
		t.Errorf("got payback %v, wanted 5.0", p)
	}

	p = Payback(2_250_000, flows)
	if !p.IsValid() || !almostEqual(p.Value(), 4.5) {
		t.Errorf("got payback %v, wanted 4.5", p)
	}

	d := DiscountedPayback(0.05, 2_500_000, flows)
	if !d.IsValid() || d.Value() <= 5 {
		t.Errorf("got discounted payback %v, wanted more than 5", d)
	}
}

func TestPaybackNotAchieved(t *testing.T) {
	if p := Payback(1000, []float64{-1, -2, -3}); p.IsValid() {
		t.Errorf("got payback %f for an all negative series", p.Value())
	}
	if p := Payback(1000, []float64{100, 100}); p.IsValid() {
		t.Errorf("got payback %f beyond the lifetime", p.Value())
	}
}

func TestPriceEquipment(t *testing.T) {
	prices := map[string]model.UnitPrice{
		model.EquipStorageEnergy: {Price: 310.10, Unit: "kWh", Source: "nrel-atb", Confidence: model.ConfidenceHigh},
		model.EquipStoragePower:  {Price: 150.05, Unit: "kW", Source: "nrel-atb", Confidence: model.ConfidenceHigh},
		model.EquipGenerator:     {Price: 500, Unit: "kW", Source: "vendor-quote", Confidence: model.ConfidenceMedium},
		model.EquipChargerDCFast: {Price: 90_000, Unit: "charger", Source: "vendor-quote", Confidence: model.ConfidenceMedium},
	}
	s := model.EquipmentSizing{
		StorageKW:   300,
		StorageKWh:  600,
		GeneratorKW: 100,
		Chargers:    model.ChargerMix{DCFast: 2},
	}

	c, err := PriceEquipment(s, prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.LineItems) != 4 {
		t.Fatalf("got %d line items, wanted 4", len(c.LineItems))
	}
	if c.Total != 186_060+45_015+50_000+180_000 {
		t.Errorf("got total %f, wanted %f", c.Total, 186_060.0+45_015+50_000+180_000)
	}
	if c.ITCBasis != 186_060+45_015 {
		t.Errorf("got ITC basis %f, wanted %f", c.ITCBasis, 186_060.0+45_015)
	}
	if c.LineItems[0].Citation.Source != "nrel-atb" {
		t.Errorf("line item lost its citation: %+v", c.LineItems[0])
	}

	s.SolarKW = 50
	_, err = PriceEquipment(s, prices)
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "benchmarks" {
		t.Errorf("got %v, wanted a validation error for the missing solar price", err)
	}
}

func TestValueStack(t *testing.T) {
	a := assumptions()
	a.GridServicesRate = 40
	s := model.EquipmentSizing{StorageKW: 300, StorageKWh: 600, SolarAnnualKWh: 100_000}
	stack := ValueStack(s, Rates{EnergyRate: 0.2, DemandCharge: 20}, a)

	want := map[string]float64{
		ValueDemandCharge: 300 * 20 * 12 * a.DemandCaptureRatio,
		ValueArbitrage:    600 * a.DepthOfDischarge * a.CyclesPerYear * a.RoundTripEfficiency * 0.2 * a.ArbitrageSpread,
		ValueGridServices: 300 * 40,
		ValueSolar:        100_000 * 0.2,
	}
	if len(stack) != len(want) {
		t.Fatalf("got %v, wanted %v", stack, want)
	}
	for k, v := range want {
		if !almostEqual(stack[k], v) {
			t.Errorf("got %s %f, wanted %f", k, stack[k], v)
		}
	}

	if stack := ValueStack(model.EquipmentSizing{GeneratorKW: 100}, Rates{EnergyRate: 0.2}, a); len(stack) != 0 {
		t.Errorf("generator only must have an empty value stack, got %v", stack)
	}
}

func TestCalculateFlatScenario(t *testing.T) {
	a := assumptions()
	a.LifetimeYears = 10
	a.DiscountRate = 0
	a.EscalationRate = 0
	a.OMRate = 0

	res, err := Calculate(Input{
		Sizing:      model.EquipmentSizing{SolarKW: 2000, SolarAnnualKWh: 4_000_000},
		Capex:       Capex{Total: 2_500_000},
		Rates:       Rates{EnergyRate: 0.125},
		Assumptions: a,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.CashFlows) != 11 {
		t.Fatalf("got %d cash flows, wanted 11", len(res.CashFlows))
	}
	if res.CashFlows[0].NetCashFlow != -2_500_000 {
		t.Errorf("got year 0 %f, wanted -2500000", res.CashFlows[0].NetCashFlow)
	}
	if res.SimplePaybackYears.Value() != 5.0 {
		t.Errorf("got payback %v, wanted 5.0", res.SimplePaybackYears)
	}
	if res.NPV != 10*500_000-2_500_000 {
		t.Errorf("got NPV %f, wanted 2500000", res.NPV)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}
}

func TestCalculateAppliesDegradationAndEscalation(t *testing.T) {
	a := assumptions()
	a.LifetimeYears = 3
	a.EscalationRate = 0.1
	a.OMRate = 0.01
	curve := model.DegradationCurve{{Year: 0, CapacityFraction: 1}, {Year: 1, CapacityFraction: 0.9}, {Year: 2, CapacityFraction: 0.8}, {Year: 3, CapacityFraction: 0.7}}

	res, err := Calculate(Input{
		Sizing:       model.EquipmentSizing{SolarAnnualKWh: 1000},
		Capex:        Capex{Total: 10_000},
		CreditAmount: 3_000,
		Curve:        curve,
		Rates:        Rates{EnergyRate: 1},
		Assumptions:  a,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantRevenue := []float64{1000 * 0.9, 1000 * 1.1 * 0.8, 1000 * 1.1 * 1.1 * 0.7}
	for i, w := range wantRevenue {
		cf := res.CashFlows[i+1]
		if !almostEqual(cf.Revenue, w) {
			t.Errorf("year %d: got revenue %f, wanted %f", cf.Year, cf.Revenue, w)
		}
		if !almostEqual(cf.OpEx, 100) {
			t.Errorf("year %d: got opex %f, wanted 100", cf.Year, cf.OpEx)
		}
	}
	if res.NetInvestment != 7_000 {
		t.Errorf("got net investment %f, wanted 7000", res.NetInvestment)
	}
}

func TestCalculateNegativeSeries(t *testing.T) {
	a := assumptions()
	a.OMRate = 0.2

	res, err := Calculate(Input{
		Sizing:      model.EquipmentSizing{StorageKW: 10, StorageKWh: 20},
		Capex:       Capex{Total: 100_000},
		Rates:       Rates{EnergyRate: 0.01, DemandCharge: 1},
		Assumptions: a,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, cf := range res.CashFlows[1:] {
		if cf.NetCashFlow >= 0 {
			t.Fatalf("year %d is not negative: %f", cf.Year, cf.NetCashFlow)
		}
	}
	if res.IRR.IsValid() {
		t.Errorf("got IRR %f, wanted none", res.IRR.Value())
	}
	if res.SimplePaybackYears.IsValid() {
		t.Errorf("got payback %f, wanted not achieved", res.SimplePaybackYears.Value())
	}

	codes := map[model.WarningCode]bool{}
	for _, w := range res.Warnings {
		codes[w.Code] = true
	}
	for _, c := range []model.WarningCode{model.WarnIRRUndefined, model.WarnPaybackNotAchieved, model.WarnDiscountedPaybackNotAchieved} {
		if !codes[c] {
			t.Errorf("missing warning %s", c)
		}
	}
}

func TestCalculateRejects(t *testing.T) {
	a := assumptions()
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"negative energy rate", Input{Rates: Rates{EnergyRate: -0.1}, Assumptions: a}, "rates.energyRate"},
		{"credit above capex", Input{Capex: Capex{Total: 10}, CreditAmount: 20, Assumptions: a}, "creditAmount"},
		{"no lifetime", Input{Assumptions: Assumptions{}}, "financing.lifetimeYears"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.in)
			var verr *model.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("got %v, wanted a validation error on %s", err, tt.field)
			}
		})
	}
}

func assumptions() Assumptions {
	e := config.DefaultEngine()
	return Assumptions{
		AppConfigFinance: e.Finance,
		CyclesPerYear:    e.Degradation.CyclesPerYear,
		DepthOfDischarge: e.Degradation.AvgDepthOfDischarge,
	}
}

func almostEqual(f1 float64, f2 float64) bool {
	return math.Abs(f1-f2) < 1e-6
}
