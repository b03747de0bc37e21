package options

import (
	"github.com/icodeforyou/bessquote/internal/degradation"
	"github.com/icodeforyou/bessquote/internal/finance"
	"github.com/icodeforyou/bessquote/internal/risk"
)

// Uncertain inputs of the Monte Carlo simulation
const (
	VarEscalation   = "escalation"
	VarDegradation  = "degradation-multiplier"
	VarIncentive    = "incentive-availability"
	VarEnergyRate   = "energy-rate-multiplier"
	normalSpreadStd = 4.0
)

func (g Generator) variables(a finance.Assumptions) []risk.Variable {
	c := g.riskCnfg
	share := c.SensitivityDeltaShare

	// Prices can fall by less than 100% a year, so the low end stays
	// between -1 and the base rate.
	esc := risk.Variable{
		Name:  VarEscalation,
		Kind:  risk.Triangular,
		Low:   max(a.EscalationRate-c.EscalationSpread, (a.EscalationRate-1)/2),
		High:  a.EscalationRate + c.EscalationSpread,
		Base:  a.EscalationRate,
		Delta: share * c.EscalationSpread,
	}

	degrBase := 1.0
	if degrBase < c.DegradationMin || degrBase > c.DegradationMax {
		degrBase = (c.DegradationMin + c.DegradationMax) / 2
	}
	degr := risk.Variable{
		Name:  VarDegradation,
		Kind:  risk.Triangular,
		Low:   c.DegradationMin,
		High:  c.DegradationMax,
		Base:  degrBase,
		Delta: share * (c.DegradationMax - c.DegradationMin) / 2,
	}

	itc := risk.Variable{
		Name:  VarIncentive,
		Kind:  risk.Triangular,
		Low:   c.IncentiveMin,
		High:  1,
		Base:  1,
		Delta: share * (1 - c.IncentiveMin),
	}

	rate := risk.Variable{
		Name:   VarEnergyRate,
		Kind:   risk.Normal,
		Low:    max(0, 1-normalSpreadStd*c.EnergyRateStdDev),
		High:   1 + normalSpreadStd*c.EnergyRateStdDev,
		Base:   1,
		StdDev: c.EnergyRateStdDev,
		Delta:  c.EnergyRateStdDev,
	}

	return []risk.Variable{esc, degr, itc, rate}
}

// evaluator re-runs degradation and finance for one set of perturbed inputs.
// Everything it captures is read only.
func (g Generator) evaluator(base finance.Input, params degradation.Params) risk.Evaluator {
	return func(v risk.Values) (risk.Outcome, error) {
		p := params
		p.RateMultiplier = v[VarDegradation]
		degr, err := g.degradation.Project(p)
		if err != nil {
			return risk.Outcome{}, err
		}

		in := base
		in.Curve = degr.Curve
		in.CreditAmount = base.CreditAmount * v[VarIncentive]
		in.Assumptions.EscalationRate = v[VarEscalation]
		in.Rates.EnergyRate = base.Rates.EnergyRate * v[VarEnergyRate]

		fin, err := finance.Calculate(in)
		if err != nil {
			return risk.Outcome{}, err
		}
		return risk.Outcome{
			NPV:     fin.NPV,
			IRR:     fin.IRR,
			Payback: fin.SimplePaybackYears,
		}, nil
	}
}
