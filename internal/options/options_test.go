package options

import (
	"context"
	"errors"
	"testing"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/finance"
	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/icodeforyou/bessquote/internal/risk"
	"github.com/icodeforyou/bessquote/internal/sizing"
)

type tablePricer map[string]float64

func (p tablePricer) Price(_ context.Context, equipment, tier string, _ float64) model.UnitPrice {
	price, ok := p[tier+"/"+equipment]
	if !ok {
		price = p[equipment]
	}
	return model.UnitPrice{Price: price, Unit: "unit", Source: "vendor-quote", Confidence: model.ConfidenceHigh}
}

var prices = tablePricer{
	model.EquipStorageEnergy: 300,
	model.EquipStoragePower:  150,
	model.EquipSolar:         1500,
	model.EquipGenerator:     600,
	model.EquipChargerDCFast: 90_000,
}

func newGenerator() Generator {
	e := config.DefaultEngine()
	return NewGenerator(e, risk.NewSimulator(300, 1, 2))
}

func testBase() Base {
	e := config.DefaultEngine()
	return Base{
		Load:          model.LoadProfile{PeakDemandKW: 500, AnnualConsumptionKWh: 1_752_000, LoadFactor: 0.4},
		WantsStorage:  true,
		Chemistry:     model.ChemistryLFP,
		DurationHours: 2,
		Solar:         sizing.SolarSize{KW: 200, AnnualKWh: 280_000},
		Generator:     sizing.GeneratorSize{KW: 100, Fuel: model.FuelDiesel},
		Charging:      sizing.ChargingLoad{Chargers: model.ChargerMix{DCFast: 2}, KW: 300},
		Rates:         finance.Rates{EnergyRate: 0.2, DemandCharge: 20},
		Assumptions: finance.Assumptions{
			AppConfigFinance: e.Finance,
			CyclesPerYear:    e.Degradation.CyclesPerYear,
			DepthOfDischarge: e.Degradation.AvgDepthOfDischarge,
		},
	}
}

func TestGenerateThreeOrderedTiers(t *testing.T) {
	opts, err := newGenerator().Generate(context.Background(), testBase(), prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) != 3 {
		t.Fatalf("got %d options, wanted 3", len(opts))
	}

	want := []struct {
		tier string
		kw   float64
		kwh  float64
	}{
		{"Starter", 300, 600},
		{"Professional", 400, 800},
		{"Enterprise", 550, 1100},
	}
	for i, w := range want {
		o := opts[i]
		if o.Tier != w.tier {
			t.Errorf("got tier %s at %d, wanted %s", o.Tier, i, w.tier)
		}
		if !almostEqual(o.Sizing.StorageKW, w.kw) || !almostEqual(o.Sizing.StorageKWh, w.kwh) {
			t.Errorf("%s: got %f kW / %f kWh, wanted %f / %f", o.Tier, o.Sizing.StorageKW, o.Sizing.StorageKWh, w.kw, w.kwh)
		}
		capex := w.kwh*300 + w.kw*150 + 200*1500 + 100*600 + 2*90_000
		if !almostEqual(o.Financial.TotalCapex, capex) {
			t.Errorf("%s: got capex %f, wanted %f", o.Tier, o.Financial.TotalCapex, capex)
		}
		if o.Incentive.ProjectType != "hybrid" {
			t.Errorf("%s: got project type %s, wanted hybrid", o.Tier, o.Incentive.ProjectType)
		}
		if o.Risk.Trials != 300 {
			t.Errorf("%s: got %d trials, wanted 300", o.Tier, o.Risk.Trials)
		}
	}

	for i := 1; i < len(opts); i++ {
		if opts[i].Sizing.StorageKW < opts[i-1].Sizing.StorageKW {
			t.Errorf("storage not ordered at %d", i)
		}
		if opts[i].Financial.TotalCapex < opts[i-1].Financial.TotalCapex {
			t.Errorf("capex not ordered at %d", i)
		}
		if opts[i].Financial.NPV == opts[i-1].Financial.NPV {
			t.Errorf("tiers %d and %d share their financials", i-1, i)
		}
	}

	if p := Primary(opts); p.Tier != "Professional" {
		t.Errorf("got primary %s, wanted Professional", p.Tier)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	g := newGenerator()
	a, err := g.Generate(context.Background(), testBase(), prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := g.Generate(context.Background(), testBase(), prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a {
		if a[i].Risk.NPV != b[i].Risk.NPV || a[i].Risk.IRR != b[i].Risk.IRR || a[i].Financial.NPV != b[i].Financial.NPV {
			t.Errorf("%s differs between identical runs", a[i].Tier)
		}
	}
}

func TestWarrantyWarning(t *testing.T) {
	opts, err := newGenerator().Generate(context.Background(), testBase(), prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, w := range opts[0].Financial.Warnings {
		if w.Code == model.WarnWarrantyFloorBreached {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warranty warning for daily cycling over 25 years")
	}
	if !opts[0].Degradation.WarrantyBreachYear.IsValid() {
		t.Errorf("expected a warranty breach year")
	}
}

func TestTierOrderingViolation(t *testing.T) {
	cheap := tablePricer{}
	for k, v := range prices {
		cheap[k] = v
	}
	cheap["Enterprise/"+model.EquipStorageEnergy] = 1
	cheap["Enterprise/"+model.EquipSolar] = 1

	_, err := newGenerator().Generate(context.Background(), testBase(), cheap)
	if !errors.Is(err, ErrTierOrdering) {
		t.Errorf("got %v, wanted ErrTierOrdering", err)
	}
}

func TestWithoutStorage(t *testing.T) {
	base := testBase()
	base.WantsStorage = false
	opts, err := newGenerator().Generate(context.Background(), base, prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, o := range opts {
		if o.Sizing.StorageKW != 0 {
			t.Errorf("%s: got storage %f kW, wanted none", o.Tier, o.Sizing.StorageKW)
		}
		if o.Incentive.ProjectType != "solar" {
			t.Errorf("%s: got project type %s, wanted solar", o.Tier, o.Incentive.ProjectType)
		}
		if o.Degradation.FinalCapacityFraction != 1 {
			t.Errorf("%s: got final fraction %f, wanted a flat curve", o.Tier, o.Degradation.FinalCapacityFraction)
		}
	}
}

func TestVariablesStayConsistent(t *testing.T) {
	g := newGenerator()
	vars := g.variables(testBase().Assumptions)
	if len(vars) != 4 {
		t.Fatalf("got %d variables, wanted 4", len(vars))
	}
	for _, v := range vars {
		if v.Base < v.Low || v.Base > v.High {
			t.Errorf("%s: base %f outside [%f, %f]", v.Name, v.Base, v.Low, v.High)
		}
		if v.Delta <= 0 {
			t.Errorf("%s: expected a positive delta", v.Name)
		}
	}
}

func TestEscalationSamplesStayAboveMinusOne(t *testing.T) {
	base := testBase()
	base.Assumptions.EscalationRate = -0.99

	g := newGenerator()
	for _, v := range g.variables(base.Assumptions) {
		if v.Name != VarEscalation {
			continue
		}
		if v.Low <= -1 || v.Base < v.Low || v.Base > v.High {
			t.Errorf("got escalation range [%f, %f] around %f", v.Low, v.High, v.Base)
		}
	}

	if _, err := g.Generate(context.Background(), base, prices); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func almostEqual(f1 float64, f2 float64) bool {
	d := f1 - f2
	return d < 1e-6 && d > -1e-6
}
