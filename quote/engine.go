// Package quote computes signed commercial storage quotes. ComputeQuote is
// the only way to obtain a price; nothing outside the engine repeats its
// formulas.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/authenticate"
	"github.com/icodeforyou/bessquote/internal/benchmark"
	"github.com/icodeforyou/bessquote/internal/degradation"
	"github.com/icodeforyou/bessquote/internal/finance"
	"github.com/icodeforyou/bessquote/internal/lookup"
	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/icodeforyou/bessquote/internal/options"
	"github.com/icodeforyou/bessquote/internal/risk"
	"github.com/icodeforyou/bessquote/internal/sizing"
	"github.com/icodeforyou/bessquote/types/maybe"
)

// Source of every value the engine supplies itself
const engineSource = "engine-catalog"

// Engine is read only after New and safe for concurrent use.
type Engine struct {
	cnfg          config.AppConfigEngine
	registry      *sizing.Registry
	degradation   degradation.Model
	catalog       benchmark.Catalog
	collab        Collaborators
	clock         func() time.Time
	resolver      lookup.Resolver
	authenticator authenticate.Authenticator
	logger        *slog.Logger
}

type Option func(*Engine)

func WithCollaborators(c Collaborators) Option {
	return func(e *Engine) {
		e.collab = c
	}
}

// WithRegistry replaces the builtin industry strategies.
func WithRegistry(r *sizing.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

func WithCatalog(c benchmark.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

func New(cnfg config.AppConfigEngine, opts ...Option) (*Engine, error) {
	if err := cnfg.Validate(); err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	e := &Engine{
		cnfg:        cnfg,
		registry:    sizing.DefaultRegistry(),
		degradation: degradation.NewModel(cnfg.Degradation),
		catalog:     benchmark.Default(),
		clock:       time.Now,
		logger:      slog.Default().With("module", "quote"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = lookup.NewResolver(time.Duration(cnfg.Lookup.TimeoutMs) * time.Millisecond)
	e.authenticator = authenticate.New(cnfg.Authenticator, authenticate.WithClock(e.clock))
	return e, nil
}

func (e *Engine) Industries() []string {
	return e.registry.Industries()
}

// Verify checks a quote against the engine's signing key.
func (e *Engine) Verify(q *AuthenticatedQuote) error {
	return authenticate.Verify(q, []byte(e.cnfg.Authenticator.SigningKey))
}

// ParseQuote reads a quote in the JSON form it marshals to.
func ParseQuote(data []byte) (*AuthenticatedQuote, error) {
	return authenticate.Parse(data)
}

// ComputeQuote runs a request through validation, computation and
// authentication. Any failure ends in the rejected state with no partial
// output.
func (e *Engine) ComputeQuote(ctx context.Context, req Request) Response {
	trail := []State{StateReceived}
	req = req.snapshot()

	if err := e.validate(req); err != nil {
		return e.reject(trail, err)
	}
	trail = e.advance(trail, StateValidated)

	in, err := e.compute(ctx, req)
	if err != nil {
		return e.reject(trail, err)
	}
	trail = e.advance(trail, StateComputed)

	q, err := e.authenticator.Authenticate(in, e.catalog)
	if err != nil {
		return e.reject(trail, err)
	}
	trail = e.advance(trail, StateAuthenticated)

	e.logger.Info("quote authenticated",
		slog.String("industry", req.Facility.Industry),
		slog.String("confidence", string(q.Confidence())),
		slog.Int("degradations", len(in.Degradations)))

	return Response{State: StateAuthenticated, Trail: trail, Quote: q}
}

func (e *Engine) advance(trail []State, s State) []State {
	e.logger.Debug("quote state", slog.String("from", string(trail[len(trail)-1])), slog.String("to", string(s)))
	return append(trail, s)
}

func (e *Engine) reject(trail []State, err error) Response {
	rej := RejectionResult{Reason: err.Error()}
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		rej = RejectionResult{Reason: verr.Reason, Field: verr.Field}
	case errors.Is(err, options.ErrTierOrdering):
		rej.Field = "benchmarks"
	}

	e.logger.Info("quote rejected",
		slog.String("after", string(trail[len(trail)-1])),
		slog.String("field", rej.Field),
		slog.String("reason", rej.Reason))

	return Response{
		State:     StateRejected,
		Trail:     append(trail, StateRejected),
		Rejection: &rej,
	}
}

func (e *Engine) compute(ctx context.Context, req Request) (authenticate.Input, error) {
	f := req.Facility
	p := f.Preferences
	lim := e.cnfg.Sizing

	strategy, _ := e.registry.Lookup(f.Industry)
	load, err := strategy.EstimateLoad(f, lim)
	if err != nil {
		return authenticate.Input{}, err
	}

	var charging sizing.ChargingLoad
	if p.WantsCharging {
		if charging, err = sizing.Charging(f.Chargers, p.ChargingOnSameMeter, lim); err != nil {
			return authenticate.Input{}, err
		}
		if load, err = charging.Apply(load, lim); err != nil {
			return authenticate.Input{}, err
		}
	}

	var notes []model.Degradation
	note := func(n maybe.Maybe[model.Degradation]) {
		if n.IsValid() {
			notes = append(notes, n.Value())
		}
	}

	rates, n := e.rates(ctx, req)
	note(n)
	citations := []model.SourceCitation{{
		Field:      "rates",
		Source:     rates.Source,
		Confidence: rates.Confidence,
	}}

	var solar sizing.SolarSize
	if p.WantsSolar {
		offset := p.SolarOffset
		if offset == 0 {
			offset = lim.DefaultSolarOffset
		}
		solar, err = sizing.Solar(load, sizing.SolarParams{
			Offset:        offset,
			SpecificYield: lim.DefaultSpecificYield,
			RoofSqFt:      f.RoofAreaSqFt,
			GroundSqFt:    f.GroundAreaSqFt,
		}, lim)
		if err != nil {
			return authenticate.Input{}, err
		}
		if solar.KW > 0 {
			est, n := e.solarProduction(ctx, solar, f.Location)
			note(n)
			solar.AnnualKWh = est.AnnualKWh
			citations = append(citations, model.SourceCitation{
				Field:      "solar-production",
				Source:     est.Source,
				Confidence: est.Confidence,
			})
		}
	}

	var gen sizing.GeneratorSize
	if p.WantsGenerator {
		fraction := p.CriticalLoad
		if fraction == 0 {
			fraction = lim.CriticalLoadFraction
		}
		if f.GridConnection == model.GridOffGrid {
			fraction = 1
		}
		if gen, err = sizing.Generator(load, fraction, p.GeneratorFuel, lim); err != nil {
			return authenticate.Input{}, err
		}
	}

	duration := p.TargetDurationHours
	if duration == 0 {
		duration = sizing.DefaultDuration(f.GridConnection, lim)
	}

	// Storage has to cover whatever the grid connection can not deliver
	var minKW float64
	if f.GridCapacityKW > 0 && load.PeakDemandKW > f.GridCapacityKW {
		minKW = load.PeakDemandKW - f.GridCapacityKW
	}

	chemistry := p.Chemistry
	if chemistry == "" {
		chemistry = model.ChemistryLFP
	}

	base := options.Base{
		Load:          load,
		WantsStorage:  p.WantsStorage,
		Chemistry:     chemistry,
		DurationHours: duration,
		MinStorageKW:  minKW,
		Solar:         solar,
		Generator:     gen,
		Charging:      charging,
		Rates:         finance.Rates{EnergyRate: rates.EnergyRate, DemandCharge: rates.DemandCharge},
		Assumptions:   e.assumptions(req.Financing),
	}
	if req.Incentives != nil {
		base.Flags = *req.Incentives
	}

	trials, seed := e.cnfg.Risk.Trials, e.cnfg.Risk.Seed
	if s := req.Simulation; s != nil {
		if s.Trials != nil {
			trials = *s.Trials
		}
		if s.Seed != nil {
			seed = *s.Seed
		}
	}
	generator := options.NewGenerator(e.cnfg, risk.NewSimulator(trials, seed, e.cnfg.Risk.Workers))

	pr := &pricer{
		provided: req.Benchmarks,
		fetch:    e.collab.Benchmarks,
		catalog:  e.catalog,
		resolver: e.resolver,
	}
	opts, err := generator.Generate(ctx, base, pr)
	if err != nil {
		return authenticate.Input{}, err
	}

	snapshot, err := json.Marshal(req)
	if err != nil {
		return authenticate.Input{}, fmt.Errorf("encode request: %w", err)
	}

	return authenticate.Input{
		Request: snapshot,
		Base: authenticate.Base{
			Load:   load,
			Sizing: options.Primary(opts).Sizing,
		},
		Options:      opts,
		Citations:    citations,
		Degradations: sortNotes(append(notes, pr.degradations()...)),
	}, nil
}

func (e *Engine) assumptions(o *FinancialAssumptions) finance.Assumptions {
	a := finance.Assumptions{
		AppConfigFinance: e.cnfg.Finance,
		CyclesPerYear:    e.cnfg.Degradation.CyclesPerYear,
		DepthOfDischarge: e.cnfg.Degradation.AvgDepthOfDischarge,
	}
	if o == nil {
		return a
	}
	if o.LifetimeYears != nil {
		a.LifetimeYears = *o.LifetimeYears
	}
	if o.DiscountRate != nil {
		a.DiscountRate = *o.DiscountRate
	}
	if o.EscalationRate != nil {
		a.EscalationRate = *o.EscalationRate
	}
	if o.OMRate != nil {
		a.OMRate = *o.OMRate
	}
	if o.CyclesPerYear != nil {
		a.CyclesPerYear = *o.CyclesPerYear
	}
	if o.DepthOfDischarge != nil {
		a.DepthOfDischarge = *o.DepthOfDischarge
	}
	return a
}

// rates prefers the request, then the rate lookup, then the configured
// regional default.
func (e *Engine) rates(ctx context.Context, req Request) (RateContext, maybe.Maybe[model.Degradation]) {
	if req.Rates != nil {
		r := *req.Rates
		if r.Confidence.Rank() == 0 {
			r.Confidence = model.ConfidenceLow
		}
		return r, maybe.None[model.Degradation]()
	}

	loc := req.Facility.Location
	def := e.cnfg.RegionalRate(loc.State)
	fallback := RateContext{
		EnergyRate:   def.EnergyRate,
		DemandCharge: def.DemandCharge,
		Currency:     def.Currency,
		Source:       engineSource,
		Confidence:   model.ConfidenceLow,
	}

	var fetch lookup.Fetch[RateContext]
	if e.collab.Rates != nil {
		fetch = func(ctx context.Context) (RateContext, error) {
			r, err := e.collab.Rates(ctx, loc)
			if err != nil {
				return RateContext{}, err
			}
			if err := validateRates(&r); err != nil {
				return RateContext{}, err
			}
			if r.Confidence.Rank() == 0 {
				r.Confidence = model.ConfidenceLow
			}
			return r, nil
		}
	}
	return lookup.Resolve(ctx, e.resolver, depRates, fallbackRegional, fetch, fallback)
}

// solarProduction asks the estimator for the annual yield of the sized
// array, falling back to the configured specific yield.
func (e *Engine) solarProduction(ctx context.Context, s sizing.SolarSize, loc Location) (SolarEstimate, maybe.Maybe[model.Degradation]) {
	fallback := SolarEstimate{
		AnnualKWh:  s.AnnualKWh,
		Source:     engineSource,
		Confidence: model.ConfidenceLow,
	}

	var fetch lookup.Fetch[SolarEstimate]
	if e.collab.Solar != nil {
		fetch = func(ctx context.Context) (SolarEstimate, error) {
			est, err := e.collab.Solar(ctx, s.KW, loc)
			if err != nil {
				return SolarEstimate{}, err
			}
			if math.IsNaN(est.AnnualKWh) || math.IsInf(est.AnnualKWh, 0) || est.AnnualKWh < 0 {
				return SolarEstimate{}, fmt.Errorf("unusable production estimate %g kWh", est.AnnualKWh)
			}
			if est.Confidence.Rank() == 0 {
				est.Confidence = model.ConfidenceLow
			}
			return est, nil
		}
	}
	return lookup.Resolve(ctx, e.resolver, depSolar, fallbackYield, fetch, fallback)
}
