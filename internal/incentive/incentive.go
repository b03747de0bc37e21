// Package incentive computes the investment tax credit for a project from a
// base rate plus the bonus adders it qualifies for.
package incentive

import (
	"fmt"
	"slices"
	"strings"

	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/shopspring/decimal"
)

var (
	baseRateFull    = decimal.RequireFromString("0.30")
	baseRateReduced = decimal.RequireFromString("0.06")
	maxRate         = decimal.RequireFromString("0.70")
)

const (
	BonusEnergyCommunity = "energy-community"
	BonusDomesticContent = "domestic-content"
	BonusLowIncome       = "low-income"
)

var energyCommunities = map[string]bool{
	"coal-closure":      true,
	"brownfield":        true,
	"fossil-employment": true,
}

var lowIncomeBonus = map[string]decimal.Decimal{
	"located-in":         decimal.RequireFromString("0.10"),
	"tribal":             decimal.RequireFromString("0.10"),
	"serves":             decimal.RequireFromString("0.20"),
	"affordable-housing": decimal.RequireFromString("0.20"),
}

var eligibleProjects = []string{"storage", "solar", "hybrid"}

// Flags are the qualification answers given by the caller. Anything left
// empty or not recognized counts as not met.
type Flags struct {
	PrevailingWage  bool     `json:"prevailingWage"`
	Apprenticeship  bool     `json:"apprenticeship"`
	EnergyCommunity string   `json:"energyCommunity,omitempty"` // coal-closure, brownfield, fossil-employment
	DomesticContent bool     `json:"domesticContent"`
	LowIncome       []string `json:"lowIncome,omitempty"` // located-in, tribal, serves, affordable-housing
}

type Input struct {
	ProjectType string
	CapacityKW  float64
	TotalCost   float64
	Flags       Flags
}

func Calculate(in Input) (model.IncentiveResult, error) {
	if err := model.CheckRange("capacityKW", in.CapacityKW, 0); err != nil {
		return model.IncentiveResult{}, err
	}
	if err := model.CheckRange("totalCost", in.TotalCost, 0); err != nil {
		return model.IncentiveResult{}, err
	}

	res := model.IncentiveResult{
		ProjectType:    in.ProjectType,
		BonusBreakdown: map[string]float64{},
	}

	if !slices.Contains(eligibleProjects, in.ProjectType) {
		res.Notes = append(res.Notes, fmt.Sprintf("project type %q is not eligible for the investment credit", in.ProjectType))
		return res, nil
	}

	f := in.Flags
	if !(f.PrevailingWage && f.Apprenticeship) {
		res.BaseRate = baseRateReduced.InexactFloat64()
		res.TotalRate = res.BaseRate
		res.CreditAmount = decimal.NewFromFloat(in.TotalCost).Mul(baseRateReduced).Round(2).InexactFloat64()
		if f.EnergyCommunity != "" || f.DomesticContent || len(f.LowIncome) > 0 {
			res.Notes = append(res.Notes, "bonus adders require prevailing wage and apprenticeship, none applied")
		}
		return res, nil
	}

	rate := baseRateFull
	res.BaseRate = baseRateFull.InexactFloat64()

	bonus := decimal.RequireFromString("0.10")
	switch {
	case f.EnergyCommunity == "":
	case energyCommunities[strings.ToLower(f.EnergyCommunity)]:
		rate = rate.Add(bonus)
		res.BonusBreakdown[BonusEnergyCommunity] = bonus.InexactFloat64()
	default:
		res.Notes = append(res.Notes, fmt.Sprintf("unknown energy community category %q treated as not met", f.EnergyCommunity))
	}

	if f.DomesticContent {
		rate = rate.Add(bonus)
		res.BonusBreakdown[BonusDomesticContent] = bonus.InexactFloat64()
	}

	li, notes := bestLowIncome(f.LowIncome)
	res.Notes = append(res.Notes, notes...)
	if li.IsPositive() {
		rate = rate.Add(li)
		res.BonusBreakdown[BonusLowIncome] = li.InexactFloat64()
	}

	if rate.GreaterThan(maxRate) {
		res.Notes = append(res.Notes, fmt.Sprintf("total rate %s capped at %s", rate.String(), maxRate.String()))
		rate = maxRate
	}

	res.TotalRate = rate.InexactFloat64()
	res.CreditAmount = decimal.NewFromFloat(in.TotalCost).Mul(rate).Round(2).InexactFloat64()
	return res, nil
}

// bestLowIncome returns the single largest low-income adder among the
// declared categories. Categories never stack.
func bestLowIncome(categories []string) (decimal.Decimal, []string) {
	var notes []string
	best := decimal.Zero
	recognized := 0
	for _, c := range categories {
		v, ok := lowIncomeBonus[strings.ToLower(c)]
		if !ok {
			notes = append(notes, fmt.Sprintf("unknown low-income category %q treated as not met", c))
			continue
		}
		recognized++
		if v.GreaterThan(best) {
			best = v
		}
	}
	if recognized > 1 {
		notes = append(notes, "low-income categories do not stack, the largest one applies")
	}
	return best, notes
}
