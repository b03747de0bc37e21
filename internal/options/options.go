// Package options sizes and prices every quote tier independently from the
// same facility load and simulates its financial risk.
package options

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/degradation"
	"github.com/icodeforyou/bessquote/internal/finance"
	"github.com/icodeforyou/bessquote/internal/incentive"
	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/icodeforyou/bessquote/internal/risk"
	"github.com/icodeforyou/bessquote/internal/sizing"
	"golang.org/x/sync/errgroup"
)

var ErrTierOrdering = errors.New("options: tiers are not ordered by storage and capex")

// Pricer resolves the applied unit price of a piece of equipment. It never
// fails, a missing price falls back to a reference value.
type Pricer interface {
	Price(ctx context.Context, equipment, tier string, size float64) model.UnitPrice
}

// Base holds everything that is the same for all tiers.
type Base struct {
	Load          model.LoadProfile
	WantsStorage  bool
	Chemistry     model.Chemistry
	DurationHours float64
	MinStorageKW  float64
	Solar         sizing.SolarSize
	Generator     sizing.GeneratorSize
	Charging      sizing.ChargingLoad
	Rates         finance.Rates
	Flags         incentive.Flags
	Assumptions   finance.Assumptions
}

type Generator struct {
	tiers       []config.AppConfigTier
	limits      config.AppConfigSizing
	degradation degradation.Model
	riskCnfg    config.AppConfigRisk
	simulator   risk.Simulator
	logger      *slog.Logger
}

func NewGenerator(cnfg config.AppConfigEngine, simulator risk.Simulator) Generator {
	return Generator{
		tiers:       cnfg.Tiers,
		limits:      cnfg.Sizing,
		degradation: degradation.NewModel(cnfg.Degradation),
		riskCnfg:    cnfg.Risk,
		simulator:   simulator,
		logger:      slog.Default().With("module", "options"),
	}
}

// Generate returns one option per configured tier, in tier order. Each tier
// runs its own sizing, degradation, pricing, incentive, finance and risk.
func (g Generator) Generate(ctx context.Context, base Base, pricer Pricer) ([]model.QuoteOption, error) {
	out := make([]model.QuoteOption, len(g.tiers))

	eg, egctx := errgroup.WithContext(ctx)
	for i, tier := range g.tiers {
		eg.Go(func() error {
			opt, err := g.tier(egctx, tier, base, pricer)
			if err != nil {
				return fmt.Errorf("tier %s: %w", tier.Name, err)
			}
			out[i] = opt
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := checkOrdering(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Primary is the option reported as the base sizing of a quote, the middle
// tier.
func Primary(opts []model.QuoteOption) model.QuoteOption {
	if len(opts) == 0 {
		return model.QuoteOption{}
	}
	return opts[len(opts)/2]
}

func checkOrdering(opts []model.QuoteOption) error {
	for i := 1; i < len(opts); i++ {
		prev, cur := opts[i-1], opts[i]
		if cur.Sizing.StorageKW < prev.Sizing.StorageKW {
			return fmt.Errorf("%w: %s storage %g kW below %s %g kW", ErrTierOrdering,
				cur.Tier, cur.Sizing.StorageKW, prev.Tier, prev.Sizing.StorageKW)
		}
		if cur.Financial.TotalCapex < prev.Financial.TotalCapex {
			return fmt.Errorf("%w: %s capex %g below %s %g", ErrTierOrdering,
				cur.Tier, cur.Financial.TotalCapex, prev.Tier, prev.Financial.TotalCapex)
		}
	}
	return nil
}

func (g Generator) tier(ctx context.Context, tier config.AppConfigTier, base Base, pricer Pricer) (model.QuoteOption, error) {
	s := model.EquipmentSizing{
		SolarKW:        base.Solar.KW,
		SolarAnnualKWh: base.Solar.AnnualKWh,
		GeneratorKW:    base.Generator.KW,
		GeneratorFuel:  base.Generator.Fuel,
		Chargers:       base.Charging.Chargers,
		ChargingKW:     base.Charging.KW,
	}
	if base.WantsStorage {
		st, err := sizing.Storage(base.Load, tier.Coverage, base.DurationHours, base.MinStorageKW, g.limits)
		if err != nil {
			return model.QuoteOption{}, err
		}
		s.StorageKW = st.KW
		s.StorageKWh = st.KWh
		s.Chemistry = base.Chemistry
	}

	params := g.degradationParams(s, base)
	degr, err := g.degradation.Project(params)
	if err != nil {
		return model.QuoteOption{}, err
	}

	capex, err := finance.PriceEquipment(s, g.prices(ctx, tier.Name, s, pricer))
	if err != nil {
		return model.QuoteOption{}, err
	}

	itc, err := incentive.Calculate(incentive.Input{
		ProjectType: projectType(s),
		CapacityKW:  s.StorageKW + s.SolarKW,
		TotalCost:   capex.ITCBasis,
		Flags:       base.Flags,
	})
	if err != nil {
		return model.QuoteOption{}, err
	}

	finIn := finance.Input{
		Sizing:       s,
		Capex:        capex,
		CreditAmount: itc.CreditAmount,
		Curve:        degr.Curve,
		Rates:        base.Rates,
		Assumptions:  base.Assumptions,
	}
	fin, err := finance.Calculate(finIn)
	if err != nil {
		return model.QuoteOption{}, err
	}
	if y := degr.WarrantyBreachYear; y.IsValid() && s.StorageKWh > 0 {
		fin.Warnings = append(fin.Warnings, model.Warning{
			Code:    model.WarnWarrantyFloorBreached,
			Message: fmt.Sprintf("storage capacity drops below the warranty floor in year %d", y.Value()),
		})
	}

	profile, err := g.simulator.Run(ctx, g.evaluator(finIn, params), g.variables(base.Assumptions))
	if err != nil {
		return model.QuoteOption{}, err
	}

	g.logger.Debug("tier computed",
		slog.String("tier", tier.Name),
		slog.Float64("storage_kw", s.StorageKW),
		slog.Float64("capex", fin.TotalCapex),
		slog.Float64("npv", fin.NPV))

	return model.QuoteOption{
		Tier:           tier.Name,
		CoverageFactor: tier.Coverage,
		Sizing:         s,
		Degradation:    degr.DegradationSummary,
		Incentive:      itc,
		Financial:      fin,
		Risk:           profile,
	}, nil
}

func (g Generator) degradationParams(s model.EquipmentSizing, base Base) degradation.Params {
	chem := s.Chemistry
	cycles := base.Assumptions.CyclesPerYear
	if s.StorageKWh == 0 {
		// Nothing to degrade, keep the curve flat
		chem = model.ChemistryLFP
		cycles = 0
	}
	return degradation.Params{
		Chemistry:          chem,
		InitialCapacityKWh: s.StorageKWh,
		CyclesPerYear:      cycles,
		AvgDoD:             base.Assumptions.DepthOfDischarge,
		LifetimeYears:      base.Assumptions.LifetimeYears,
		RateMultiplier:     1,
	}
}

func (g Generator) prices(ctx context.Context, tier string, s model.EquipmentSizing, pricer Pricer) map[string]model.UnitPrice {
	quantities := []struct {
		equipment string
		amount    float64
	}{
		{model.EquipStorageEnergy, s.StorageKWh},
		{model.EquipStoragePower, s.StorageKW},
		{model.EquipSolar, s.SolarKW},
		{model.EquipGenerator, s.GeneratorKW},
		{model.EquipChargerLevel2, float64(s.Chargers.Level2)},
		{model.EquipChargerDCFast, float64(s.Chargers.DCFast)},
		{model.EquipChargerHighPower, float64(s.Chargers.HighPower)},
	}
	prices := make(map[string]model.UnitPrice, len(quantities))
	for _, q := range quantities {
		if q.amount > 0 {
			prices[q.equipment] = pricer.Price(ctx, q.equipment, tier, q.amount)
		}
	}
	return prices
}

func projectType(s model.EquipmentSizing) string {
	switch {
	case s.StorageKWh > 0 && s.SolarKW > 0:
		return "hybrid"
	case s.StorageKWh > 0:
		return "storage"
	case s.SolarKW > 0:
		return "solar"
	default:
		return "other"
	}
}
