package ga

import (
	"context"
	"fmt"

	"github.com/gonum/stat"

	spl "github.com/spel-uchile/SolidPropellantforLanding"
)

// Gene positions of a lander individual. Controller parameter genes follow geneLaw,
// one Vector gene per parameter holding that parameter for every thruster.
const (
	geneAlpha = iota
	geneBurn
	geneLaw
	geneParams
)

// Bounds are the search ranges of a lander individual.
type Bounds struct {
	AlphaMin, AlphaMax float64 // kg/s per thruster
	TBurnMin, TBurnMax float64 // s
	Laws               []spl.ControlLaw
	ParamMin, ParamMax []float64 // one entry per controller parameter
}

// BoundsFromScenario returns the search ranges of a scenario file.
func BoundsFromScenario(c spl.OptimizerSection) (Bounds, error) {
	b := Bounds{
		AlphaMin: c.AlphaMin, AlphaMax: c.AlphaMax,
		TBurnMin: c.TBurnMin, TBurnMax: c.TBurnMax,
		ParamMin: c.ParamMin, ParamMax: c.ParamMax,
	}
	for _, name := range c.Laws {
		law, err := spl.ControlLawFromString(name)
		if err != nil {
			return Bounds{}, err
		}
		b.Laws = append(b.Laws, law)
	}
	return b, nil
}

// LanderProblem searches the mass flow, burn duration, control law and per thruster
// controller parameters of a scenario.
type LanderProblem struct {
	base       *spl.Scenario
	x0, xf     spl.State
	opts       spl.TimeOptions
	cost       spl.CostFunc
	bounds     Bounds
	ids        []spl.ThrusterID
	arity      int
	schema     Schema
	cases      int
	dispersion spl.Dispersion
}

// NewLanderProblem returns the problem of landing from x0 to xf with the thrusters of base.
// The base scenario is never modified: every evaluation runs on its own clone.
func NewLanderProblem(base *spl.Scenario, x0, xf spl.State, opts spl.TimeOptions, bounds Bounds, cost spl.CostFunc) (*LanderProblem, error) {
	ids := base.IDs()
	if len(ids) == 0 {
		return nil, fmt.Errorf("scenario has no thrusters")
	}
	if len(bounds.Laws) == 0 {
		bounds.Laws = []spl.ControlLaw{base.Controller().Type()}
	}
	p := &LanderProblem{base: base, x0: x0, xf: xf, opts: opts, cost: cost, bounds: bounds, ids: ids, cases: 1}
	choices := make([]string, len(bounds.Laws))
	for i, law := range bounds.Laws {
		ctrl, err := spl.NewController(law)
		if err != nil {
			return nil, err
		}
		if ctrl.Arity() > p.arity {
			p.arity = ctrl.Arity()
		}
		choices[i] = law.String()
	}
	if len(bounds.ParamMin) < p.arity || len(bounds.ParamMax) < p.arity {
		return nil, fmt.Errorf("controller parameter bounds must have %d entries", p.arity)
	}
	n := len(ids)
	p.schema = Schema{
		{Name: "alpha", Kind: Vector, Min: bounds.AlphaMin, Max: bounds.AlphaMax, Size: n},
		{Name: "t_burn", Kind: Vector, Min: bounds.TBurnMin, Max: bounds.TBurnMax, Size: n},
		{Name: "law", Kind: Categorical, Choices: choices},
	}
	for k := 0; k < p.arity; k++ {
		p.schema = append(p.schema, GeneSpec{Name: fmt.Sprintf("param-%d", k), Kind: Vector, Min: bounds.ParamMin[k], Max: bounds.ParamMax[k], Size: n})
	}
	return p, p.schema.Validate()
}

// SetDispersion scores each individual on the mean cost of cases dispersed runs.
func (p *LanderProblem) SetDispersion(cases int, d spl.Dispersion) {
	if cases < 1 {
		cases = 1
	}
	p.cases = cases
	p.dispersion = d
}

// Schema implements the Problem interface.
func (p *LanderProblem) Schema() Schema {
	return p.schema
}

// Apply sets the thrusters and the controller of scn from an individual.
func (p *LanderProblem) Apply(scn *spl.Scenario, ind Individual) error {
	if err := p.schema.Conforms(ind); err != nil {
		return err
	}
	alphas, burns := ind.Vector(geneAlpha), ind.Vector(geneBurn)
	for i, id := range p.ids {
		if err := scn.ModifyThruster(id, spl.FieldAlpha, alphas[i]); err != nil {
			return err
		}
		if err := scn.ModifyThruster(id, spl.FieldBurnDuration, burns[i]); err != nil {
			return err
		}
	}
	law, err := spl.ControlLawFromString(ind.Choice(geneLaw))
	if err != nil {
		return err
	}
	ctrl, err := spl.NewController(law)
	if err != nil {
		return err
	}
	scn.SetController(ctrl)
	for i, id := range p.ids {
		params := make([]float64, ctrl.Arity())
		for k := range params {
			params[k] = ind.Vector(geneParams + k)[i]
		}
		if i == 0 {
			if err := scn.SetControllerParameters(params); err != nil {
				return err
			}
		}
		if err := scn.SetOverride(id, params); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate implements the Problem interface.
func (p *LanderProblem) Evaluate(ctx context.Context, ind Individual, seed int64, wa, wb float64) (Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return Evaluation{}, err
	}
	scn := p.base.Clone(seed)
	if err := p.Apply(scn, ind); err != nil {
		return Evaluation{}, err
	}
	if p.cases == 1 {
		run, err := scn.Run(p.x0, p.xf, p.opts)
		if err != nil {
			return Evaluation{}, err
		}
		return Evaluation{Cost: p.cost(run.States, run.Thrust, wa, wb), Run: run}, nil
	}
	mc, err := scn.MonteCarlo(p.x0, p.xf, p.opts, spl.MonteCarloConfig{Cases: p.cases, Dispersion: p.dispersion})
	if err != nil {
		return Evaluation{}, err
	}
	costs := make([]float64, len(mc.Runs))
	for i, run := range mc.Runs {
		costs[i] = p.cost(run.States, run.Thrust, wa, wb)
	}
	return Evaluation{Cost: stat.Mean(costs, nil), Run: mc.Runs[0]}, nil
}
