// Package risk runs a seeded Monte Carlo simulation over the uncertain
// inputs of a quote option and ranks how sensitive its NPV is to each one.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/icodeforyou/bessquote/types/maybe"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

const maxTrials = 1_000_000

var ErrNoTrials = errors.New("risk: trial count must be positive")

// Outcome is what one evaluation of the financial model yields.
type Outcome struct {
	NPV     float64
	IRR     maybe.Maybe[float64]
	Payback maybe.Maybe[float64]
}

// Evaluator re-runs the financial model with the given variable values. It
// is called from several goroutines at once.
type Evaluator func(v Values) (Outcome, error)

type Simulator struct {
	Trials  int
	Seed    uint64
	Workers int
	logger  *slog.Logger
}

func NewSimulator(trials int, seed uint64, workers int) Simulator {
	return Simulator{
		Trials:  trials,
		Seed:    seed,
		Workers: workers,
		logger:  slog.Default().With("module", "risk"),
	}
}

type outcomes struct {
	npv     []float64
	irr     []float64
	payback []float64
}

// Run evaluates every trial and reduces them to percentile bands. Trial i
// always draws from its own stream seeded by (Seed, i) and its result is
// stored at index i, so the bands do not depend on the worker count.
func (s Simulator) Run(ctx context.Context, eval Evaluator, vars []Variable) (model.RiskProfile, error) {
	if s.Trials < 1 {
		return model.RiskProfile{}, ErrNoTrials
	}
	if s.Trials > maxTrials {
		return model.RiskProfile{}, fmt.Errorf("risk: %d trials exceed the maximum of %d", s.Trials, maxTrials)
	}
	for _, v := range vars {
		if err := v.validate(); err != nil {
			return model.RiskProfile{}, fmt.Errorf("risk: %w", err)
		}
	}

	logger := s.logger
	if logger == nil {
		logger = slog.Default().With("module", "risk")
	}
	start := time.Now()

	res := outcomes{
		npv:     make([]float64, s.Trials),
		irr:     make([]float64, s.Trials),
		payback: make([]float64, s.Trials),
	}

	workers := max(1, min(s.Workers, s.Trials))
	chunk := (s.Trials + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for from := 0; from < s.Trials; from += chunk {
		to := min(from+chunk, s.Trials)
		g.Go(func() error {
			return s.runTrials(gctx, eval, vars, from, to, &res)
		})
	}
	if err := g.Wait(); err != nil {
		return model.RiskProfile{}, err
	}

	sensitivity, err := Sensitivity(eval, vars)
	if err != nil {
		return model.RiskProfile{}, err
	}

	profile := model.RiskProfile{
		Trials:       s.Trials,
		Seed:         s.Seed,
		NPV:          band(res.npv),
		IRR:          band(res.irr),
		PaybackYears: band(res.payback),
		Sensitivity:  sensitivity,
	}

	logger.Debug("monte carlo done",
		slog.Int("trials", s.Trials),
		slog.Int("workers", workers),
		slog.Duration("elapsed", time.Since(start)))

	return profile, nil
}

func (s Simulator) runTrials(ctx context.Context, eval Evaluator, vars []Variable, from, to int, res *outcomes) error {
	for i := from; i < to; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		src := newSource(s.Seed, i)
		vals := make(Values, len(vars))
		for _, v := range vars {
			vals[v.Name] = v.sample(src)
		}

		out, err := eval(vals)
		if err != nil {
			return fmt.Errorf("risk: trial %d: %w", i, err)
		}
		if math.IsNaN(out.NPV) {
			return fmt.Errorf("risk: trial %d: NPV is NaN", i)
		}

		res.npv[i] = out.NPV
		res.irr[i] = out.IRR.ValueOrDefault(math.Inf(-1))
		res.payback[i] = out.Payback.ValueOrDefault(math.Inf(1))
	}
	return nil
}

func newSource(seed uint64, trial int) rand.Source {
	return rand.NewPCG(seed, uint64(trial))
}

// band sorts samples in place. Infinite percentiles stand for an undefined
// IRR or a payback that is never reached and are reported as absent.
func band(samples []float64) model.Band {
	slices.Sort(samples)
	q := func(p float64) maybe.Maybe[float64] {
		v := stat.Quantile(p, stat.Empirical, samples, nil)
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return maybe.None[float64]()
		}
		return maybe.Some(v)
	}
	return model.Band{P10: q(0.10), P50: q(0.50), P90: q(0.90)}
}

// Sensitivity moves one variable at a time by its delta while the others
// stay at their base value and ranks the variables by the NPV swing.
func Sensitivity(eval Evaluator, vars []Variable) ([]model.Sensitivity, error) {
	out := make([]model.Sensitivity, 0, len(vars))
	for _, v := range vars {
		low := baseValues(vars)
		low[v.Name] = v.clip(v.Base - v.Delta)
		high := baseValues(vars)
		high[v.Name] = v.clip(v.Base + v.Delta)

		lo, err := eval(low)
		if err != nil {
			return nil, fmt.Errorf("risk: sensitivity %s: %w", v.Name, err)
		}
		hi, err := eval(high)
		if err != nil {
			return nil, fmt.Errorf("risk: sensitivity %s: %w", v.Name, err)
		}

		out = append(out, model.Sensitivity{
			Variable: v.Name,
			Impact:   math.Abs(hi.NPV - lo.NPV),
			LowNPV:   lo.NPV,
			HighNPV:  hi.NPV,
		})
	}

	slices.SortStableFunc(out, func(a, b model.Sensitivity) int {
		switch {
		case a.Impact > b.Impact:
			return -1
		case a.Impact < b.Impact:
			return 1
		default:
			return strings.Compare(a.Variable, b.Variable)
		}
	})
	return out, nil
}
