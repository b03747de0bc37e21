package finance

import (
	"math"

	"github.com/icodeforyou/bessquote/types/maybe"
)

const (
	irrLow       = -0.5
	irrHigh      = 2.0
	irrGridSteps = 250
	irrMaxIter   = 200
)

// NPVAt discounts the yearly flows (flows[0] is year 1) and subtracts the
// net investment made at year 0.
func NPVAt(rate, netInvestment float64, flows []float64) float64 {
	npv := -netInvestment
	factor := 1.0
	for _, cf := range flows {
		factor *= 1 + rate
		npv += cf / factor
	}
	return npv
}

// IRR returns the rate within [-50%, 200%] where the NPV crosses zero. The
// range is scanned in steps and a crossing is refined by bisection. When
// the flows change sign more than once the NPV can have several roots; the
// first one where the NPV falls through zero as the rate rises is returned,
// otherwise the root nearest to zero. None is returned when the NPV never
// changes sign.
func IRR(netInvestment float64, flows []float64) maybe.Maybe[float64] {
	if len(flows) == 0 {
		return maybe.None[float64]()
	}

	step := (irrHigh - irrLow) / irrGridSteps
	rising := maybe.None[float64]()
	lo := irrLow
	fLo := NPVAt(lo, netInvestment, flows)

	for i := 1; i <= irrGridSteps; i++ {
		hi := irrLow + float64(i)*step
		fHi := NPVAt(hi, netInvestment, flows)

		var root float64
		found := true
		switch {
		case fLo == 0 && i == 1:
			root = lo
		case fLo == 0:
			// Reported as the upper end of the previous step.
			found = false
		case fHi == 0:
			root = hi
		case math.Signbit(fLo) != math.Signbit(fHi):
			root = bisect(lo, hi, fLo, netInvestment, flows)
		default:
			found = false
		}

		if found {
			if fLo > fHi {
				return maybe.Some(root)
			}
			if !rising.IsValid() || math.Abs(root) < math.Abs(rising.Value()) {
				rising = maybe.Some(root)
			}
		}
		lo, fLo = hi, fHi
	}

	return rising
}

func bisect(lo, hi, fLo, netInvestment float64, flows []float64) float64 {
	for range irrMaxIter {
		mid := lo + (hi-lo)/2
		if mid == lo || mid == hi {
			break
		}
		fMid := NPVAt(mid, netInvestment, flows)
		if fMid == 0 {
			return mid
		}
		if math.Signbit(fMid) == math.Signbit(fLo) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return lo + (hi-lo)/2
}

// Payback returns the fractional year at which the cumulative flows first
// reach the net investment, interpolated linearly within that year.
func Payback(netInvestment float64, flows []float64) maybe.Maybe[float64] {
	if netInvestment <= 0 {
		return maybe.Some(0.0)
	}
	cum := 0.0
	for i, cf := range flows {
		prev := cum
		cum += cf
		if cum >= netInvestment && cf > 0 {
			return maybe.Some(float64(i) + (netInvestment-prev)/cf)
		}
	}
	return maybe.None[float64]()
}

func DiscountedPayback(rate, netInvestment float64, flows []float64) maybe.Maybe[float64] {
	discounted := make([]float64, len(flows))
	factor := 1.0
	for i, cf := range flows {
		factor *= 1 + rate
		discounted[i] = cf / factor
	}
	return Payback(netInvestment, discounted)
}
