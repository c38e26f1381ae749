package ga

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"golang.org/x/sync/errgroup"

	spl "github.com/spel-uchile/SolidPropellantforLanding"
)

// Problem binds individuals to a cost.
type Problem interface {
	// Schema returns the shape of every individual.
	Schema() Schema
	// Evaluate scores an individual. It must only draw random numbers from seed
	// and must be safe to call concurrently.
	Evaluate(ctx context.Context, ind Individual, seed int64, wa, wb float64) (Evaluation, error)
}

// Evaluation is the outcome of one evaluation.
type Evaluation struct {
	Cost float64
	Run  *spl.SimulationRun
}

// Config configures the optimizer.
type Config struct {
	Generations     int
	Population      int
	Mutation        float64 // probability of mutating each numeric value
	Elite           float64 // fraction of the population copied unchanged to the next generation
	CrossoverWeight float64
	Selection       Selection
	Ah, Bh          float64 // position and velocity error weights
	Workers         int
	Seed            int64
}

// DefaultConfig returns the reference optimizer settings.
func DefaultConfig() Config {
	return Config{
		Generations:     200,
		Population:      50,
		Mutation:        0.2,
		Elite:           0.2,
		CrossoverWeight: 0.3,
		Selection:       Rank,
		Ah:              0.1,
		Bh:              1.0,
		Workers:         4,
		Seed:            1,
	}
}

// ConfigFromScenario returns the optimizer settings of a scenario file.
func ConfigFromScenario(c spl.OptimizerSection) (Config, error) {
	sel, err := SelectionFromString(c.Selection)
	if err != nil {
		return Config{}, err
	}
	conf := Config{
		Generations:     c.Generations,
		Population:      c.Population,
		Mutation:        c.Mutation,
		Elite:           c.Elite,
		CrossoverWeight: c.CrossoverWeight,
		Selection:       sel,
		Ah:              c.Ah,
		Bh:              c.Bh,
		Workers:         c.Workers,
		Seed:            c.Seed,
	}
	return conf, conf.Validate()
}

// Validate returns an error if the configuration cannot run.
func (c Config) Validate() error {
	switch {
	case c.Generations < 1:
		return fmt.Errorf("at least one generation required")
	case c.Population < 2:
		return fmt.Errorf("population must hold at least two individuals")
	case c.Mutation < 0 || c.Mutation > 1:
		return fmt.Errorf("mutation probability %f not in [0, 1]", c.Mutation)
	case c.Elite < 0 || c.Elite >= 1:
		return fmt.Errorf("elite fraction %f not in [0, 1)", c.Elite)
	case c.CrossoverWeight < 0 || c.CrossoverWeight > 1:
		return fmt.Errorf("crossover weight %f not in [0, 1]", c.CrossoverWeight)
	}
	return nil
}

// offspring returns the number of individuals bred each generation, always even.
func (c Config) offspring() int {
	n := int(math.Round(float64(c.Population) * (1 - c.Elite)))
	return n - n%2
}

// Generation summarizes one generation.
type Generation struct {
	Number    int
	Min       float64 // lowest cost of the generation
	BestSoFar float64
	Failed    int
}

// Result is the outcome of an optimization.
type Result struct {
	Best       Individual
	BestRun    *spl.SimulationRun
	History    []Generation
	Population []Individual // last generation
}

// MinCosts returns the lowest cost of each generation.
func (r *Result) MinCosts() []float64 {
	out := make([]float64, len(r.History))
	for i, g := range r.History {
		out[i] = g.Min
	}
	return out
}

// BestCosts returns the best cost found up to each generation.
func (r *Result) BestCosts() []float64 {
	out := make([]float64, len(r.History))
	for i, g := range r.History {
		out[i] = g.BestSoFar
	}
	return out
}

// Optimizer runs a generational genetic search with elitism.
type Optimizer struct {
	conf    Config
	problem Problem
	schema  Schema
	rng     *rand.Rand
	logger  kitlog.Logger
	metrics *Metrics
}

// NewOptimizer returns a new optimizer.
func NewOptimizer(problem Problem, conf Config) (*Optimizer, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	schema := problem.Schema()
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if conf.Workers < 1 {
		conf.Workers = 1
	}
	return &Optimizer{
		conf:    conf,
		problem: problem,
		schema:  schema,
		rng:     rand.New(rand.NewSource(conf.Seed)),
		logger:  kitlog.NewNopLogger(),
	}, nil
}

// SetLogger sets the logger.
func (o *Optimizer) SetLogger(logger kitlog.Logger) {
	o.logger = kitlog.With(logger, "subsys", "ga")
}

// SetMetrics enables the reporting of the search progress.
func (o *Optimizer) SetMetrics(m *Metrics) {
	o.metrics = m
}

// deriveSeed returns the evaluation seed of an individual, independent of the scheduling order.
func deriveSeed(seed int64, generation, index int) int64 {
	// splitmix64 finalizer
	z := uint64(seed) + uint64(generation)*0x9E3779B97F4A7C15 + uint64(index)*0xBF58476D1CE4E5B9
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64((z ^ (z >> 31)) >> 1)
}

// evaluate scores the population in parallel. Failed or panicking individuals cost +Inf.
func (o *Optimizer) evaluate(ctx context.Context, generation int, pop []Individual) ([]*spl.SimulationRun, int, error) {
	runs := make([]*spl.SimulationRun, len(pop))
	failed := make([]bool, len(pop))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.conf.Workers)
	for i := range pop {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("evaluation panicked: %v", r)
					o.logger.Log("level", "warning", "generation", generation, "individual", i, "err", err)
					if o.metrics != nil {
						o.metrics.observeEvaluation(0, err)
					}
					pop[i].Cost = math.Inf(1)
					runs[i] = nil
					failed[i] = true
				}
			}()
			start := time.Now()
			eval, err := o.problem.Evaluate(gctx, pop[i], deriveSeed(o.conf.Seed, generation, i), o.conf.Ah, o.conf.Bh)
			if o.metrics != nil {
				o.metrics.observeEvaluation(time.Since(start), err)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				o.logger.Log("level", "warning", "generation", generation, "individual", i, "err", err)
				pop[i].Cost = math.Inf(1)
				failed[i] = true
				return nil
			}
			pop[i].Cost = eval.Cost
			if math.IsNaN(eval.Cost) {
				pop[i].Cost = math.Inf(1)
			}
			runs[i] = eval.Run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	nFailed := 0
	for _, f := range failed {
		if f {
			nFailed++
		}
	}
	return runs, nFailed, nil
}

// breed returns the next population: elites first, then mutated children of selected parents.
// Arithmetic and coding crossovers alternate.
func (o *Optimizer) breed(pop []Individual) []Individual {
	nChildren := o.conf.offspring()
	next := elites(pop, o.conf.Population-nChildren)
	costs := make([]float64, len(pop))
	for i, ind := range pop {
		costs[i] = ind.Cost
	}
	arithmetic := true
	for len(next) < o.conf.Population {
		parents := selectParents(costs, o.conf.Selection, 2, o.rng)
		var c1, c2 Individual
		if arithmetic {
			c1, c2 = arithmeticCrossover(pop[parents[0]], pop[parents[1]], o.conf.CrossoverWeight)
		} else {
			c1, c2 = codingCrossover(pop[parents[0]], pop[parents[1]], o.rng)
		}
		arithmetic = !arithmetic
		next = append(next, mutate(c1, o.schema, o.conf.Mutation, o.rng))
		if len(next) < o.conf.Population {
			next = append(next, mutate(c2, o.schema, o.conf.Mutation, o.rng))
		}
	}
	return next
}

// Run runs the search.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	pop := make([]Individual, o.conf.Population)
	for i := range pop {
		pop[i] = o.schema.Random(o.rng)
		pop[i].Cost = math.Inf(1)
	}
	res := &Result{Best: Individual{Cost: math.Inf(1)}}
	for gen := 1; gen <= o.conf.Generations; gen++ {
		if gen > 1 {
			pop = o.breed(pop)
		}
		runs, failed, err := o.evaluate(ctx, gen, pop)
		if err != nil {
			return res, err
		}
		summary := Generation{Number: gen, Min: math.Inf(1), Failed: failed}
		for i, ind := range pop {
			if ind.Cost < summary.Min {
				summary.Min = ind.Cost
			}
			if ind.Cost < res.Best.Cost {
				res.Best = ind.Clone()
				res.BestRun = runs[i]
			}
		}
		summary.BestSoFar = res.Best.Cost
		res.History = append(res.History, summary)
		if o.metrics != nil {
			o.metrics.observeGeneration(summary)
		}
		o.logger.Log("level", "info", "generation", gen, "min", summary.Min, "best", summary.BestSoFar, "failed", failed)
	}
	res.Population = pop
	if !res.Best.Evaluated() {
		o.logger.Log("level", "critical", "status", "no individual evaluated")
		return res, fmt.Errorf("every individual failed")
	}
	o.logger.Log("level", "notice", "status", "finished", "best", res.Best)
	return res, nil
}
