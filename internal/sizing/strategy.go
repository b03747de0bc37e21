package sizing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/model"
)

const hoursPerYear = 8760.0

// Strategy estimates the electrical load of one kind of facility.
type Strategy interface {
	Industry() string
	EstimateLoad(f model.FacilityProfile, lim config.AppConfigSizing) (model.LoadProfile, error)
}

type Basis int

const (
	BasisSquareFeet Basis = iota // Intensity is kW per square foot
	BasisUnits                   // Intensity is kW per unit (room, bed, bay, apartment)
)

func (b Basis) String() string {
	switch b {
	case BasisSquareFeet:
		return "squareFeet"
	case BasisUnits:
		return "unitCount"
	default:
		return "unknown"
	}
}

// Intensity sizes the peak from a per square foot or per unit demand figure
// and derives consumption from a typical load factor.
type Intensity struct {
	Name           string
	Basis          Basis
	PeakKWPerUnit  float64
	LoadFactor     float64 // At ReferenceHours of operation per day
	ReferenceHours float64
}

func (s Intensity) Industry() string {
	return s.Name
}

func (s Intensity) EstimateLoad(f model.FacilityProfile, lim config.AppConfigSizing) (model.LoadProfile, error) {
	if err := model.CheckRange("squareFeet", f.SquareFeet, lim.MaxSquareFeet); err != nil {
		return model.LoadProfile{}, err
	}
	if f.UnitCount < 0 || f.UnitCount > lim.MaxUnits {
		return model.LoadProfile{}, model.Invalid("unitCount", "must be within 0-%d, got %d", lim.MaxUnits, f.UnitCount)
	}
	if err := model.CheckRange("knownPeakKW", f.KnownPeakKW, lim.MaxPeakKW); err != nil {
		return model.LoadProfile{}, err
	}
	if err := model.CheckRange("operatingHours", f.OperatingHours, 24); err != nil {
		return model.LoadProfile{}, err
	}

	peak := f.KnownPeakKW
	if peak == 0 {
		var quantity float64
		switch s.Basis {
		case BasisSquareFeet:
			quantity = f.SquareFeet
		case BasisUnits:
			quantity = float64(f.UnitCount)
		}
		if quantity == 0 {
			return model.LoadProfile{}, model.Invalid(s.Basis.String(), "required for %s when no known peak is given", s.Name)
		}
		peak = quantity * s.PeakKWPerUnit
		if peak > lim.MaxPeakKW {
			return model.LoadProfile{}, model.Invalid(s.Basis.String(), "implies a peak of %g kW above the sanity ceiling %g kW", peak, lim.MaxPeakKW)
		}
	}

	lf := s.LoadFactor
	if f.OperatingHours > 0 && s.ReferenceHours > 0 {
		lf = s.LoadFactor * f.OperatingHours / s.ReferenceHours
	}
	lf = min(1, lf)
	if lf <= 0 {
		return model.LoadProfile{}, model.Invalid("operatingHours", "gives a load factor of %g for %s", lf, s.Name)
	}

	return model.LoadProfile{
		PeakDemandKW:         peak,
		AnnualConsumptionKWh: peak * lf * hoursPerYear,
		LoadFactor:           lf,
	}, nil
}

// Registry maps industry tags to their strategy. It is never modified after
// construction and is safe for concurrent use.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		key := strings.ToLower(s.Industry())
		if key == "" {
			return nil, fmt.Errorf("strategy without industry tag")
		}
		if _, ok := r.strategies[key]; ok {
			return nil, fmt.Errorf("duplicate strategy for industry %q", key)
		}
		r.strategies[key] = s
	}
	return r, nil
}

func (r *Registry) Lookup(industry string) (Strategy, bool) {
	s, ok := r.strategies[strings.ToLower(industry)]
	return s, ok
}

func (r *Registry) Industries() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Builtin returns the default intensity table, typical commercial figures
// for the US.
func Builtin() []Strategy {
	return []Strategy{
		Intensity{Name: "office", Basis: BasisSquareFeet, PeakKWPerUnit: 0.006, LoadFactor: 0.35, ReferenceHours: 10},
		Intensity{Name: "retail", Basis: BasisSquareFeet, PeakKWPerUnit: 0.008, LoadFactor: 0.40, ReferenceHours: 12},
		Intensity{Name: "warehouse", Basis: BasisSquareFeet, PeakKWPerUnit: 0.003, LoadFactor: 0.40, ReferenceHours: 10},
		Intensity{Name: "manufacturing", Basis: BasisSquareFeet, PeakKWPerUnit: 0.012, LoadFactor: 0.55, ReferenceHours: 16},
		Intensity{Name: "grocery", Basis: BasisSquareFeet, PeakKWPerUnit: 0.015, LoadFactor: 0.60, ReferenceHours: 18},
		Intensity{Name: "school", Basis: BasisSquareFeet, PeakKWPerUnit: 0.005, LoadFactor: 0.30, ReferenceHours: 9},
		Intensity{Name: "data-center", Basis: BasisSquareFeet, PeakKWPerUnit: 0.150, LoadFactor: 0.85, ReferenceHours: 24},
		Intensity{Name: "ev-charging-hub", Basis: BasisSquareFeet, PeakKWPerUnit: 0.004, LoadFactor: 0.30, ReferenceHours: 18},
		Intensity{Name: "hotel", Basis: BasisUnits, PeakKWPerUnit: 2.5, LoadFactor: 0.50, ReferenceHours: 24},
		Intensity{Name: "hospital", Basis: BasisUnits, PeakKWPerUnit: 10, LoadFactor: 0.70, ReferenceHours: 24},
		Intensity{Name: "car-wash", Basis: BasisUnits, PeakKWPerUnit: 50, LoadFactor: 0.25, ReferenceHours: 12},
		Intensity{Name: "apartment", Basis: BasisUnits, PeakKWPerUnit: 1.5, LoadFactor: 0.45, ReferenceHours: 24},
	}
}

func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("builtin sizing strategies: %v", err))
	}
	return r
}
