package ga

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/gonum/floats"
	"github.com/gonum/stat/distuv"
)

const (
	// mutationScale is the relative amplitude of a mutation.
	mutationScale = 0.3
	// mutationSigma is the deviation of the normal factor of a mutation.
	mutationSigma = 0.1
)

// Selection defines how parents are drawn from a population.
type Selection uint8

const (
	// Rank draws each individual with a probability proportional to 1/rank.
	Rank Selection = iota + 1
	// Roulette draws each individual with a probability decreasing with its cost.
	Roulette
)

func (s Selection) String() string {
	switch s {
	case Rank:
		return "rank"
	case Roulette:
		return "roulette"
	}
	panic("cannot stringify unknown selection")
}

// SelectionFromString returns the selection method from its name.
func SelectionFromString(name string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rank", "":
		return Rank, nil
	case "roulette":
		return Roulette, nil
	}
	return 0, fmt.Errorf("unknown selection `%s`", name)
}

// ranks returns the 1-based rank of each cost, ties sharing their average rank.
func ranks(costs []float64) []float64 {
	idx := make([]int, len(costs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return costs[idx[i]] < costs[idx[j]] })
	r := make([]float64, len(costs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && costs[idx[j+1]] == costs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			r[idx[k]] = avg
		}
		i = j + 1
	}
	return r
}

// selectionWeights returns the unnormalized probability of drawing each individual.
func selectionWeights(costs []float64, method Selection) []float64 {
	w := make([]float64, len(costs))
	switch method {
	case Roulette:
		best := math.Inf(1)
		for _, c := range costs {
			if !math.IsInf(c, 1) && !math.IsNaN(c) {
				best = math.Min(best, c)
			}
		}
		for i, c := range costs {
			if math.IsInf(c, 1) || math.IsNaN(c) {
				continue
			}
			w[i] = 1 / (1 + c - best)
		}
	default:
		for i, r := range ranks(costs) {
			w[i] = 1 / r
		}
	}
	if floats.Sum(w) == 0 {
		for i := range w {
			w[i] = 1
		}
	}
	return w
}

// pick draws an index with a probability proportional to its weight.
func pick(cumulative []float64, rng *rand.Rand) int {
	u := rng.Float64() * cumulative[len(cumulative)-1]
	i := sort.SearchFloat64s(cumulative, u)
	for i < len(cumulative)-1 && cumulative[i] <= u {
		i++
	}
	return i
}

// selectParents draws n parent indexes with replacement.
func selectParents(costs []float64, method Selection, n int, rng *rand.Rand) []int {
	w := selectionWeights(costs, method)
	cumulative := make([]float64, len(w))
	floats.CumSum(cumulative, w)
	parents := make([]int, n)
	for i := range parents {
		parents[i] = pick(cumulative, rng)
	}
	return parents
}

// elites returns deep copies of the n lowest cost individuals, best first.
func elites(pop []Individual, n int) []Individual {
	idx := make([]int, len(pop))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return less(pop[idx[i]].Cost, pop[idx[j]].Cost) })
	if n > len(pop) {
		n = len(pop)
	}
	out := make([]Individual, n)
	for i := 0; i < n; i++ {
		out[i] = pop[idx[i]].Clone()
	}
	return out
}

// less orders costs with NaN last.
func less(a, b float64) bool {
	if math.IsNaN(b) {
		return !math.IsNaN(a)
	}
	return a < b
}

// arithmeticCrossover blends the numeric genes of both parents with weight w.
// Categorical genes are inherited unchanged.
func arithmeticCrossover(a, b Individual, w float64) (Individual, Individual) {
	c1, c2 := a.Clone(), b.Clone()
	for i, g := range a.Genes {
		if g.Kind == Categorical {
			continue
		}
		other := b.Genes[i].Values
		// c1 = w*a + (1-w)*b, c2 = w*b + (1-w)*a
		copy(c1.Genes[i].Values, g.Values)
		floats.Scale(w, c1.Genes[i].Values)
		floats.AddScaled(c1.Genes[i].Values, 1-w, other)
		copy(c2.Genes[i].Values, other)
		floats.Scale(w, c2.Genes[i].Values)
		floats.AddScaled(c2.Genes[i].Values, 1-w, g.Values)
	}
	c1.Cost, c2.Cost = math.Inf(1), math.Inf(1)
	return c1, c2
}

// codingCrossover swaps the genes of both parents after a random cut.
func codingCrossover(a, b Individual, rng *rand.Rand) (Individual, Individual) {
	cut := rng.Intn(len(a.Genes))
	c1 := Individual{Genes: make([]Gene, len(a.Genes)), Cost: math.Inf(1)}
	c2 := Individual{Genes: make([]Gene, len(a.Genes)), Cost: math.Inf(1)}
	ac, bc := a.Clone(), b.Clone()
	for i := range a.Genes {
		if i < cut {
			c1.Genes[i], c2.Genes[i] = ac.Genes[i], bc.Genes[i]
		} else {
			c1.Genes[i], c2.Genes[i] = bc.Genes[i], ac.Genes[i]
		}
	}
	return c1, c2
}

// mutate perturbs each numeric value with probability p by a relative normal step, within the gene bounds.
// Categorical genes are never mutated.
func mutate(ind Individual, schema Schema, p float64, rng *rand.Rand) Individual {
	n := distuv.Normal{Mu: 0, Sigma: mutationSigma, Source: rng}
	for i, spec := range schema {
		if spec.Kind == Categorical {
			continue
		}
		values := ind.Genes[i].Values
		for k, v := range values {
			if rng.Float64() >= p {
				continue
			}
			values[k] = spec.clamp(v + mutationScale*v*n.Rand())
		}
	}
	return ind
}
