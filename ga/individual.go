package ga

import (
	"fmt"
	"math"
	"strings"
)

// Individual is a candidate solution and its last evaluated cost.
type Individual struct {
	Genes []Gene
	Cost  float64
}

// Clone returns a deep copy.
func (ind Individual) Clone() Individual {
	c := Individual{Genes: make([]Gene, len(ind.Genes)), Cost: ind.Cost}
	for i, g := range ind.Genes {
		c.Genes[i] = Gene{Kind: g.Kind, Choice: g.Choice}
		if g.Values != nil {
			c.Genes[i].Values = append([]float64(nil), g.Values...)
		}
	}
	return c
}

// Scalar returns the value of the i-th gene.
func (ind Individual) Scalar(i int) float64 {
	return ind.Genes[i].Values[0]
}

// Vector returns the values of the i-th gene.
func (ind Individual) Vector(i int) []float64 {
	return ind.Genes[i].Values
}

// Choice returns the choice of the i-th gene.
func (ind Individual) Choice(i int) string {
	return ind.Genes[i].Choice
}

// Evaluated returns whether the cost is finite.
func (ind Individual) Evaluated() bool {
	return !math.IsInf(ind.Cost, 0) && !math.IsNaN(ind.Cost)
}

func (ind Individual) String() string {
	parts := make([]string, len(ind.Genes))
	for i, g := range ind.Genes {
		switch g.Kind {
		case Categorical:
			parts[i] = g.Choice
		case Scalar:
			parts[i] = fmt.Sprintf("%.6g", g.Values[0])
		default:
			parts[i] = fmt.Sprintf("%.6g", g.Values)
		}
	}
	return fmt.Sprintf("[%s] cost=%.6g", strings.Join(parts, " "), ind.Cost)
}
