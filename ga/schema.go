// Package ga implements the genetic search of descent parameters.
package ga

import (
	"fmt"
	"math/rand"

	"github.com/gonum/stat/distuv"
)

// Kind defines the kind of a gene.
type Kind uint8

const (
	// Scalar genes hold one bounded real.
	Scalar Kind = iota + 1
	// Vector genes hold a fixed number of bounded reals, typically one per thruster.
	Vector
	// Categorical genes hold one of a fixed set of choices.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	case Categorical:
		return "categorical"
	}
	panic("cannot stringify unknown gene kind")
}

// GeneSpec describes one gene of an individual.
type GeneSpec struct {
	Name     string
	Kind     Kind
	Min, Max float64  // bounds of Scalar and Vector values
	Size     int      // length of a Vector
	Choices  []string // Categorical choices
}

// Validate returns an error if the spec cannot generate genes.
func (g GeneSpec) Validate() error {
	switch g.Kind {
	case Scalar, Vector:
		if g.Min > g.Max {
			return fmt.Errorf("gene %s: min %f above max %f", g.Name, g.Min, g.Max)
		}
		if g.Kind == Vector && g.Size <= 0 {
			return fmt.Errorf("gene %s: vector size must be positive", g.Name)
		}
	case Categorical:
		if len(g.Choices) == 0 {
			return fmt.Errorf("gene %s: no choices", g.Name)
		}
	default:
		return fmt.Errorf("gene %s: unknown kind %d", g.Name, g.Kind)
	}
	return nil
}

// len returns the number of values of a numeric gene.
func (g GeneSpec) len() int {
	if g.Kind == Vector {
		return g.Size
	}
	return 1
}

// clamp bounds v to the range of the gene.
func (g GeneSpec) clamp(v float64) float64 {
	if v < g.Min {
		return g.Min
	}
	if v > g.Max {
		return g.Max
	}
	return v
}

// Gene is the value of one GeneSpec. Numeric genes use Values, categorical genes use Choice.
type Gene struct {
	Kind   Kind
	Values []float64
	Choice string
}

// Schema is the fixed shape of every individual of a population.
type Schema []GeneSpec

// Validate validates every gene spec.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("empty schema")
	}
	for _, g := range s {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Random returns an individual drawn uniformly within the bounds of the schema.
func (s Schema) Random(rng *rand.Rand) Individual {
	ind := Individual{Genes: make([]Gene, len(s))}
	for i, spec := range s {
		gene := Gene{Kind: spec.Kind}
		switch spec.Kind {
		case Categorical:
			gene.Choice = spec.Choices[rng.Intn(len(spec.Choices))]
		default:
			gene.Values = make([]float64, spec.len())
			if spec.Min == spec.Max {
				for k := range gene.Values {
					gene.Values[k] = spec.Min
				}
				break
			}
			u := distuv.Uniform{Min: spec.Min, Max: spec.Max, Source: rng}
			for k := range gene.Values {
				gene.Values[k] = u.Rand()
			}
		}
		ind.Genes[i] = gene
	}
	return ind
}

// Conforms returns an error if the individual does not have the shape of the schema.
func (s Schema) Conforms(ind Individual) error {
	if len(ind.Genes) != len(s) {
		return fmt.Errorf("individual has %d genes, schema %d", len(ind.Genes), len(s))
	}
	for i, spec := range s {
		gene := ind.Genes[i]
		if gene.Kind != spec.Kind {
			return fmt.Errorf("gene %s is %s, expected %s", spec.Name, gene.Kind, spec.Kind)
		}
		if spec.Kind != Categorical && len(gene.Values) != spec.len() {
			return fmt.Errorf("gene %s has %d values, expected %d", spec.Name, len(gene.Values), spec.len())
		}
	}
	return nil
}
