package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/model"
)

var lim = config.DefaultEngine().Sizing

func TestStarterStorage(t *testing.T) {
	load := model.LoadProfile{PeakDemandKW: 500, AnnualConsumptionKWh: 500 * 0.4 * 8760, LoadFactor: 0.4}
	s, err := Storage(load, 0.6, 2, 0, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(s.KW, 300) {
		t.Errorf("got %f kW, wanted 300", s.KW)
	}
	if !almostEqual(s.KWh, 600) {
		t.Errorf("got %f kWh, wanted 600", s.KWh)
	}
}

func TestStorageMinimumPower(t *testing.T) {
	load := model.LoadProfile{PeakDemandKW: 500, AnnualConsumptionKWh: 1_000_000}
	s, err := Storage(load, 0.6, 2, 400, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.KW != 400 || s.KWh != 800 {
		t.Errorf("got %f kW / %f kWh, wanted 400 / 800", s.KW, s.KWh)
	}
}

func TestStorageRejects(t *testing.T) {
	ok := model.LoadProfile{PeakDemandKW: 500, AnnualConsumptionKWh: 1_000_000}
	tests := []struct {
		name     string
		load     model.LoadProfile
		coverage float64
		duration float64
		field    string
	}{
		{"negative peak", model.LoadProfile{PeakDemandKW: -1}, 0.6, 2, "peakDemandKW"},
		{"gigawatt facility", model.LoadProfile{PeakDemandKW: 5e6}, 0.6, 2, "peakDemandKW"},
		{"negative coverage", ok, -0.1, 2, "coverageFactor"},
		{"short duration", ok, 0.6, 0.5, "targetDurationHours"},
		{"long duration", ok, 0.6, 8, "targetDurationHours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Storage(tt.load, tt.coverage, tt.duration, 0, lim)
			checkField(t, err, tt.field)
		})
	}
}

func TestDefaultDuration(t *testing.T) {
	if d := DefaultDuration(model.GridReliable, lim); d != 2 {
		t.Errorf("got %f h for a reliable grid, wanted 2", d)
	}
	if d := DefaultDuration(model.GridOffGrid, lim); d != 4 {
		t.Errorf("got %f h off grid, wanted 4", d)
	}
}

func TestSolarOffsetAndAreaCap(t *testing.T) {
	load := model.LoadProfile{PeakDemandKW: 500, AnnualConsumptionKWh: 1_400_000}

	s, err := Solar(load, SolarParams{Offset: 0.5, SpecificYield: 1400}, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(s.KW, 500) || s.AreaCapped {
		t.Errorf("got %f kW capped=%t, wanted 500 uncapped", s.KW, s.AreaCapped)
	}
	if !almostEqual(s.AnnualKWh, 700_000) {
		t.Errorf("got %f kWh, wanted 700000", s.AnnualKWh)
	}

	s, err = Solar(load, SolarParams{Offset: 0.5, SpecificYield: 1400, RoofSqFt: 10_000, GroundSqFt: 5_000}, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	areaKW := 10_000*lim.RoofKWPerSqFt + 5_000*lim.GroundKWPerSqFt
	if !almostEqual(s.KW, areaKW) || !s.AreaCapped {
		t.Errorf("got %f kW capped=%t, wanted %f capped", s.KW, s.AreaCapped, areaKW)
	}
	if s.KW > areaKW {
		t.Errorf("solar exceeds the area cap")
	}
}

func TestSolarRejects(t *testing.T) {
	load := model.LoadProfile{PeakDemandKW: 500, AnnualConsumptionKWh: 1_000_000}
	_, err := Solar(load, SolarParams{Offset: 1.5, SpecificYield: 1400}, lim)
	checkField(t, err, "solarOffset")
	_, err = Solar(load, SolarParams{Offset: 0.3, SpecificYield: 0}, lim)
	checkField(t, err, "specificYield")
	_, err = Solar(load, SolarParams{Offset: 0.3, SpecificYield: 1400, RoofSqFt: -10}, lim)
	checkField(t, err, "roofAreaSqFt")
}

func TestGenerator(t *testing.T) {
	load := model.LoadProfile{PeakDemandKW: 400, AnnualConsumptionKWh: 1_000_000}
	g, err := Generator(load, 0.5, "", lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.KW != 200 || g.Fuel != model.FuelNaturalGas {
		t.Errorf("got %f kW %s, wanted 200 kW natural-gas", g.KW, g.Fuel)
	}

	_, err = Generator(load, 0.5, "coal", lim)
	checkField(t, err, "generatorFuel")
	_, err = Generator(load, 1.2, model.FuelDiesel, lim)
	checkField(t, err, "criticalLoadFraction")
}

func TestChargingOnSameMeter(t *testing.T) {
	mix := model.ChargerMix{Level2: 10, DCFast: 2}
	c, err := Charging(mix, true, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(c.KW, 10*7.2+2*150) {
		t.Errorf("got %f kW, wanted %f", c.KW, 10*7.2+2*150)
	}

	load := model.LoadProfile{PeakDemandKW: 100, AnnualConsumptionKWh: 350_400, LoadFactor: 0.4}
	out, err := c.Apply(load, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(out.PeakDemandKW, 100+c.KW) {
		t.Errorf("got peak %f, wanted %f", out.PeakDemandKW, 100+c.KW)
	}
	if !almostEqual(out.AnnualConsumptionKWh, 350_400+c.AnnualKWh) {
		t.Errorf("got annual %f, wanted %f", out.AnnualConsumptionKWh, 350_400+c.AnnualKWh)
	}
	if out.LoadFactor <= 0 || out.LoadFactor > 1 {
		t.Errorf("load factor %f out of (0,1]", out.LoadFactor)
	}
}

func TestChargingOnSeparateMeter(t *testing.T) {
	c, err := Charging(model.ChargerMix{HighPower: 4}, false, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	load := model.LoadProfile{PeakDemandKW: 100, AnnualConsumptionKWh: 350_400, LoadFactor: 0.4}
	out, err := c.Apply(load, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != load {
		t.Errorf("separate meter must not change the load, got %+v", out)
	}
}

func TestChargingRejects(t *testing.T) {
	_, err := Charging(model.ChargerMix{Level2: -1}, true, lim)
	checkField(t, err, "chargers.level2")
	_, err = Charging(model.ChargerMix{Level2: 900, DCFast: 200}, true, lim)
	checkField(t, err, "chargers")
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	want := []string{"apartment", "car-wash", "data-center", "ev-charging-hub", "grocery", "hospital",
		"hotel", "manufacturing", "office", "retail", "school", "warehouse"}
	got := r.Industries()
	if len(got) != len(want) {
		t.Fatalf("got %v, wanted %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %s at %d, wanted %s", got[i], i, want[i])
		}
	}
	if _, ok := r.Lookup("Office"); !ok {
		t.Errorf("lookup must ignore case")
	}
	if _, ok := r.Lookup("spaceport"); ok {
		t.Errorf("unexpected strategy for unknown industry")
	}

	if _, err := NewRegistry(Builtin()[0], Builtin()[0]); err == nil {
		t.Errorf("expected an error for duplicate industries")
	}
}

func TestIntensityEstimate(t *testing.T) {
	office, _ := DefaultRegistry().Lookup("office")

	tests := []struct {
		name  string
		f     model.FacilityProfile
		peak  float64
		lf    float64
		field string
	}{
		{"square feet", model.FacilityProfile{SquareFeet: 50_000}, 300, 0.35, ""},
		{"known peak wins", model.FacilityProfile{SquareFeet: 50_000, KnownPeakKW: 420}, 420, 0.35, ""},
		{"longer hours", model.FacilityProfile{SquareFeet: 50_000, OperatingHours: 20}, 300, 0.70, ""},
		{"all day", model.FacilityProfile{SquareFeet: 50_000, OperatingHours: 24}, 300, 0.84, ""},
		{"missing basis", model.FacilityProfile{}, 0, 0, "squareFeet"},
		{"too large", model.FacilityProfile{SquareFeet: 60_000_000}, 0, 0, "squareFeet"},
		{"bad hours", model.FacilityProfile{SquareFeet: 1000, OperatingHours: 25}, 0, 0, "operatingHours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp, err := office.EstimateLoad(tt.f, lim)
			if tt.field != "" {
				checkField(t, err, tt.field)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(lp.PeakDemandKW, tt.peak) {
				t.Errorf("got peak %f, wanted %f", lp.PeakDemandKW, tt.peak)
			}
			if !almostEqual(lp.LoadFactor, tt.lf) {
				t.Errorf("got load factor %f, wanted %f", lp.LoadFactor, tt.lf)
			}
			if !almostEqual(lp.AnnualConsumptionKWh, lp.PeakDemandKW*lp.LoadFactor*8760) {
				t.Errorf("annual consumption %f inconsistent with peak and load factor", lp.AnnualConsumptionKWh)
			}
		})
	}
}

func TestUnitBasedEstimateCapsLoadFactor(t *testing.T) {
	carWash, _ := DefaultRegistry().Lookup("car-wash")
	lp, err := carWash.EstimateLoad(model.FacilityProfile{UnitCount: 4, OperatingHours: 24}, lim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lp.PeakDemandKW != 200 {
		t.Errorf("got peak %f, wanted 200", lp.PeakDemandKW)
	}
	if lp.LoadFactor != 0.5 {
		t.Errorf("got load factor %f, wanted 0.5", lp.LoadFactor)
	}

	_, err = carWash.EstimateLoad(model.FacilityProfile{UnitCount: -1}, lim)
	checkField(t, err, "unitCount")
}

func checkField(t *testing.T, err error, field string) {
	t.Helper()
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, wanted a validation error on %s", err, field)
	}
	if verr.Field != field {
		t.Errorf("got field %q, wanted %q", verr.Field, field)
	}
}

func almostEqual(f1 float64, f2 float64) bool {
	return math.Abs(f1-f2) < 1e-9
}
