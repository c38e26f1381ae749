package spl

import (
	"errors"
	"fmt"
	"math"

	"github.com/gonum/floats"
)

// ErrNotReset is returned when a run starts on thrusters which were already propagated.
var ErrNotReset = errors.New("thrusters must be reset before a new run")

// Termination defines why a run stopped.
type Termination uint8

const (
	// TimeElapsed is returned when the final time is reached.
	TimeElapsed Termination = iota + 1
	// Landed is returned once the altitude reaches the target altitude.
	Landed
	// MassDepleted is returned once the mass reaches its lower bound.
	MassDepleted
)

func (t Termination) String() string {
	switch t {
	case TimeElapsed:
		return "time elapsed"
	case Landed:
		return "landed"
	case MassDepleted:
		return "mass depleted"
	}
	panic("cannot stringify unknown termination")
}

// TimeOptions defines the time span of a run. Dt must match the scenario step.
type TimeOptions struct {
	T0, Tf, Dt float64
}

// Marker is an index into the states of a run.
// A marker which never fired holds the last valid index and Observed is false.
type Marker struct {
	Index    int
	Observed bool
}

func (m *Marker) observe(i int) {
	if !m.Observed {
		m.Index = i
		m.Observed = true
	}
}

// ThrusterMarkers are the ignition and exhaustion markers of a single thruster.
type ThrusterMarkers struct {
	Ignition   Marker
	Exhaustion Marker
}

// SimulationRun stores the output of a run.
// Thrust[i] is the total thrust applied between States[i] and States[i+1]; the last entry is zero.
type SimulationRun struct {
	States     []State
	Thrust     []float64
	Time       []float64
	Ignition   Marker
	Exhaustion Marker
	Landing    Marker
	Thrusters  map[ThrusterID]ThrusterMarkers
	Reason     Termination
	step       float64
}

// Len returns the number of recorded states.
func (r *SimulationRun) Len() int {
	return len(r.States)
}

// Initial returns the first state.
func (r *SimulationRun) Initial() State {
	return r.States[0]
}

// Final returns the last state.
func (r *SimulationRun) Final() State {
	return r.States[len(r.States)-1]
}

// Positions returns the altitude history.
func (r *SimulationRun) Positions() []float64 {
	return r.component(0)
}

// Velocities returns the velocity history.
func (r *SimulationRun) Velocities() []float64 {
	return r.component(1)
}

// Masses returns the mass history.
func (r *SimulationRun) Masses() []float64 {
	return r.component(2)
}

func (r *SimulationRun) component(i int) []float64 {
	out := make([]float64, len(r.States))
	for k, s := range r.States {
		out[k] = s[i]
	}
	return out
}

// Impulse returns the total impulse delivered during the run (N.s).
func (r *SimulationRun) Impulse() float64 {
	return floats.Sum(r.Thrust) * r.step
}

// MaxThrust returns the highest total thrust of the run (N).
func (r *SimulationRun) MaxThrust() float64 {
	if len(r.Thrust) == 0 {
		return 0
	}
	return floats.Max(r.Thrust)
}

// Run propagates the lander from x0 until one of the termination conditions holds.
// The target xf provides the landing altitude. Partial runs are returned along with any error.
func (s *Scenario) Run(x0, xf State, opts TimeOptions) (*SimulationRun, error) {
	if opts.Dt == 0 {
		opts.Dt = s.step
	}
	if math.Abs(opts.Dt-s.step) > 1e-12 {
		return nil, newConfigurationError("dt", opts.Dt, fmt.Sprintf("must match the thruster step of %f s", s.step))
	}
	if opts.Tf <= opts.T0 {
		return nil, newConfigurationError("tf", opts.Tf, "must be after t0")
	}
	if len(x0) != 3 || len(xf) < 1 {
		return nil, fmt.Errorf("lander states are [pos, vel, mass], got %d and %d components", len(x0), len(xf))
	}
	if len(s.params) != s.controller.Arity() {
		return nil, fmt.Errorf("%s controller parameters not set", s.controller.Type())
	}
	for _, thr := range s.thrusters {
		if thr.wallSteps > 0 {
			return nil, ErrNotReset
		}
	}
	p := newPropagation(s, x0.Clone(), xf.Position(), opts)
	s.Integrator.Solve(p, opts.T0, opts.Dt)
	run := p.finish()
	final := run.Final()
	s.logger.Log("level", "info", "status", "finished", "reason", run.Reason, "t(s)", run.Time[len(run.Time)-1], "h(m)", final.Position(), "v(m/s)", final.Velocity(), "mass(kg)", final.Mass())
	if p.err != nil {
		s.logger.Log("level", "critical", "err", p.err)
	}
	return run, p.err
}

// propagation drives the lander dynamics as an ode.Integrable.
type propagation struct {
	scn      *Scenario
	state    State
	targetH  float64
	opts     TimeOptions
	minMass  float64
	cNominal float64
	steps    int
	thrust   float64
	run      *SimulationRun
	err      error
}

func newPropagation(s *Scenario, x0 State, targetH float64, opts TimeOptions) *propagation {
	run := &SimulationRun{
		States:    []State{x0.Clone()},
		Time:      []float64{opts.T0},
		Thrusters: make(map[ThrusterID]ThrusterMarkers, len(s.ids)),
		step:      opts.Dt,
	}
	for _, id := range s.ids {
		run.Thrusters[id] = ThrusterMarkers{}
	}
	return &propagation{
		scn:      s,
		state:    x0,
		targetH:  targetH,
		opts:     opts,
		minMass:  math.Max(s.MinMass, 0),
		cNominal: s.Propellant.Isp * StandardGravity,
		run:      run,
	}
}

// now returns the current time from the step count.
func (p *propagation) now() float64 {
	return p.opts.T0 + float64(p.steps)*p.opts.Dt
}

// terminated returns the termination reason of the current state, if any.
func (p *propagation) terminated() (Termination, bool) {
	switch {
	case p.state.Mass() <= p.minMass || math.IsNaN(p.state.Mass()):
		return MassDepleted, true
	case p.state.Position() <= p.targetH:
		return Landed, true
	case p.now() >= p.opts.Tf-1e-9:
		return TimeElapsed, true
	}
	return 0, false
}

// Stop implements the ode.Integrable interface. It commands the thrusters of the coming step.
func (p *propagation) Stop(t float64) bool {
	if p.err != nil {
		return true
	}
	if reason, done := p.terminated(); done {
		p.run.Reason = reason
		if reason == Landed {
			p.run.Landing.observe(p.steps)
		}
		return true
	}
	if err := p.command(); err != nil {
		p.err = err
		return true
	}
	return false
}

// command evaluates the controller, propagates every thruster and records the total thrust.
func (p *propagation) command() error {
	s := p.scn
	broadcast := s.controller.Command(s.params, p.state)
	total := 0.0
	for _, id := range s.ids {
		thr := s.thrusters[id]
		on := broadcast
		if params, ok := s.commandFor(id); ok {
			on = s.controller.Command(params, p.state)
		}
		thr.SetCommand(on)
		if err := thr.PropagateStep(); err != nil {
			return err
		}
		total += thr.Thrust()
		markers := p.run.Thrusters[id]
		if thr.IgnitedThisStep() {
			markers.Ignition.observe(p.steps)
			p.run.Ignition.observe(p.steps)
		}
		if thr.Exhausted() {
			markers.Exhaustion.observe(p.steps)
		}
		p.run.Thrusters[id] = markers
	}
	p.thrust = total
	p.run.Thrust = append(p.run.Thrust, total)
	return nil
}

// GetState implements the ode.Integrable interface.
func (p *propagation) GetState() []float64 {
	return p.state
}

// SetState implements the ode.Integrable interface.
func (p *propagation) SetState(t float64, s []float64) {
	p.steps++
	p.state = State(s).Clone()
	p.run.States = append(p.run.States, p.state.Clone())
	p.run.Time = append(p.run.Time, p.now())
}

// Func implements the ode.Integrable interface.
func (p *propagation) Func(t float64, s []float64) []float64 {
	return landerDerivative(s, p.thrust, p.scn.Body.Gravity, p.cNominal)
}

// finish pads the thrust history and resolves the markers which never fired.
func (p *propagation) finish() *SimulationRun {
	run := p.run
	for len(run.Thrust) < len(run.States) {
		run.Thrust = append(run.Thrust, 0)
	}
	last := len(run.States) - 1
	if run.Reason == 0 {
		// Stopped on an error.
		run.Reason = TimeElapsed
		if reason, done := p.terminated(); done {
			run.Reason = reason
		}
	}
	resolve := func(m *Marker) {
		if !m.Observed {
			m.Index = last
		}
	}
	resolve(&run.Ignition)
	resolve(&run.Landing)
	for id, markers := range run.Thrusters {
		resolve(&markers.Ignition)
		resolve(&markers.Exhaustion)
		run.Thrusters[id] = markers
	}
	run.Exhaustion = p.exhaustion()
	if run.Exhaustion.Index < run.Ignition.Index {
		run.Exhaustion.Index = run.Ignition.Index
	}
	return run
}

// exhaustion returns the step after which every commanded thruster is exhausted.
// It is not observed while a commanded thruster still burns, or if none was commanded.
func (p *propagation) exhaustion() Marker {
	m := Marker{Index: len(p.run.States) - 1}
	for _, id := range p.scn.ids {
		if !p.scn.thrusters[id].Commanded() {
			continue
		}
		exh := p.run.Thrusters[id].Exhaustion
		if !exh.Observed {
			return Marker{Index: len(p.run.States) - 1}
		}
		if !m.Observed || exh.Index > m.Index {
			m = exh
		}
	}
	return m
}
