package risk

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

type Distribution int

const (
	Triangular Distribution = iota
	Normal
	Uniform
)

func (d Distribution) String() string {
	switch d {
	case Triangular:
		return "triangular"
	case Normal:
		return "normal"
	case Uniform:
		return "uniform"
	default:
		return "unknown"
	}
}

// Variable is one uncertain input. Samples and sensitivity values are always
// kept within [Low, High].
type Variable struct {
	Name   string
	Kind   Distribution
	Low    float64
	High   float64
	Base   float64 // Mode for triangular, mean for normal
	StdDev float64 // Normal only
	Delta  float64 // +- used for the one at a time sensitivity
}

func (v Variable) validate() error {
	switch {
	case v.Name == "":
		return fmt.Errorf("variable without name")
	case math.IsNaN(v.Low) || math.IsNaN(v.High) || math.IsNaN(v.Base):
		return fmt.Errorf("variable %s: NaN bound", v.Name)
	case v.Low > v.High:
		return fmt.Errorf("variable %s: low %g above high %g", v.Name, v.Low, v.High)
	case v.Base < v.Low || v.Base > v.High:
		return fmt.Errorf("variable %s: base %g outside [%g, %g]", v.Name, v.Base, v.Low, v.High)
	case v.Kind == Normal && !(v.StdDev >= 0):
		return fmt.Errorf("variable %s: invalid standard deviation %g", v.Name, v.StdDev)
	case v.Delta < 0:
		return fmt.Errorf("variable %s: negative delta %g", v.Name, v.Delta)
	}
	return nil
}

func (v Variable) clip(x float64) float64 {
	return min(v.High, max(v.Low, x))
}

// sample draws one value from src. A variable without spread always returns
// its base value and leaves src untouched.
func (v Variable) sample(src rand.Source) float64 {
	if v.Low == v.High {
		return v.Base
	}
	switch v.Kind {
	case Normal:
		if v.StdDev == 0 {
			return v.Base
		}
		return v.clip(distuv.Normal{Mu: v.Base, Sigma: v.StdDev, Src: src}.Rand())
	case Uniform:
		return distuv.Uniform{Min: v.Low, Max: v.High, Src: src}.Rand()
	default:
		return v.clip(distuv.NewTriangle(v.Low, v.High, v.Base, src).Rand())
	}
}

// Values holds one value per variable name.
type Values map[string]float64

func baseValues(vars []Variable) Values {
	vals := make(Values, len(vars))
	for _, v := range vars {
		vals[v.Name] = v.Base
	}
	return vals
}
