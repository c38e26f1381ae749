package spl

import (
	"fmt"
	"math/rand"

	kitlog "github.com/go-kit/kit/log"
)

// ThrusterField names a mutable thruster parameter.
type ThrusterField uint8

const (
	// FieldAlpha is the mass flow rate.
	FieldAlpha ThrusterField = iota + 1
	// FieldBurnDuration is the burn duration.
	FieldBurnDuration
	// FieldDeadTime is the dead time.
	FieldDeadTime
	// FieldLagTime is the lag time.
	FieldLagTime
)

func (f ThrusterField) String() string {
	switch f {
	case FieldAlpha:
		return "alpha"
	case FieldBurnDuration:
		return "t_burn"
	case FieldDeadTime:
		return "dead_time"
	case FieldLagTime:
		return "lag_time"
	}
	panic("cannot stringify unknown thruster field")
}

// Scenario owns the thrusters, the controller and the random source of a descent.
// A scenario is not safe for concurrent use: use Clone to give each worker its own.
type Scenario struct {
	Body       Body
	Propellant PropellantSpec
	Integrator Integrator
	MinMass    float64 // the run stops once the mass is at or below this bound (kg)
	controller Controller
	params     []float64
	overrides  map[ThrusterID][]float64
	ids        []ThrusterID
	thrusters  map[ThrusterID]*ThrustProfile
	step       float64
	seed       int64
	rng        *rand.Rand
	logger     kitlog.Logger
}

// NewScenario returns a scenario without thrusters.
func NewScenario(body Body, propellant PropellantSpec, ctrl Controller, step float64, seed int64) (*Scenario, error) {
	if step <= 0 {
		return nil, newConfigurationError("dt", step, "must be positive")
	}
	if ctrl == nil {
		return nil, fmt.Errorf("scenario requires a controller")
	}
	return &Scenario{
		Body:       body,
		Propellant: propellant,
		Integrator: RK4{},
		controller: ctrl,
		overrides:  make(map[ThrusterID][]float64),
		thrusters:  make(map[ThrusterID]*ThrustProfile),
		step:       step,
		seed:       seed,
		rng:        rand.New(rand.NewSource(seed)),
		logger:     kitlog.NewNopLogger(),
	}, nil
}

// SetLogger sets the logger of the scenario.
func (s *Scenario) SetLogger(logger kitlog.Logger) {
	s.logger = kitlog.With(logger, "subsys", "sim")
}

// AddThruster adds a thruster under the provided identifier.
func (s *Scenario) AddThruster(id ThrusterID, conf ThrusterConfig) error {
	if _, exists := s.thrusters[id]; exists {
		return fmt.Errorf("thruster %s already exists", id)
	}
	thr, err := NewThrustProfile(id, conf, s.Propellant, s.step, s.rng)
	if err != nil {
		return err
	}
	s.ids = append(s.ids, id)
	s.thrusters[id] = thr
	return nil
}

// AddThrusters adds n identical thrusters named thr-0 ... thr-(n-1) and returns their identifiers.
func (s *Scenario) AddThrusters(n int, conf ThrusterConfig) ([]ThrusterID, error) {
	ids := make([]ThrusterID, n)
	for i := 0; i < n; i++ {
		ids[i] = ThrusterID(fmt.Sprintf("thr-%d", len(s.ids)))
		if err := s.AddThruster(ids[i], conf); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// IDs returns the thruster identifiers in insertion order.
func (s *Scenario) IDs() []ThrusterID {
	ids := make([]ThrusterID, len(s.ids))
	copy(ids, s.ids)
	return ids
}

// Thruster returns the thruster of that identifier.
func (s *Scenario) Thruster(id ThrusterID) (*ThrustProfile, bool) {
	thr, ok := s.thrusters[id]
	return thr, ok
}

// Thrusters returns the thrusters in insertion order.
func (s *Scenario) Thrusters() []*ThrustProfile {
	thrs := make([]*ThrustProfile, len(s.ids))
	for i, id := range s.ids {
		thrs[i] = s.thrusters[id]
	}
	return thrs
}

// ModifyThruster changes one parameter of a thruster.
func (s *Scenario) ModifyThruster(id ThrusterID, field ThrusterField, value float64) error {
	thr, ok := s.thrusters[id]
	if !ok {
		return fmt.Errorf("no thruster %s", id)
	}
	var err error
	switch field {
	case FieldAlpha:
		err = thr.SetAlpha(value)
	case FieldBurnDuration:
		err = thr.SetBurnDuration(value)
	case FieldDeadTime:
		err = thr.SetDeadTime(value)
	case FieldLagTime:
		err = thr.SetLagTime(value)
	default:
		err = fmt.Errorf("unknown field %d", field)
	}
	if err != nil {
		return fmt.Errorf("thruster %s %s: %w", id, field, err)
	}
	return nil
}

// Controller returns the controller.
func (s *Scenario) Controller() Controller {
	return s.controller
}

// SetController replaces the controller and clears the parameters.
func (s *Scenario) SetController(ctrl Controller) {
	s.controller = ctrl
	s.params = nil
	s.overrides = make(map[ThrusterID][]float64)
}

// SetControllerParameters sets the parameters broadcast to every thruster.
func (s *Scenario) SetControllerParameters(params []float64) error {
	if len(params) != s.controller.Arity() {
		return fmt.Errorf("%s controller expects %d parameters, got %d", s.controller.Type(), s.controller.Arity(), len(params))
	}
	s.params = append([]float64(nil), params...)
	return nil
}

// ControllerParameters returns the broadcast parameters.
func (s *Scenario) ControllerParameters() []float64 {
	return s.params
}

// SetOverride sets the controller parameters of a single thruster.
func (s *Scenario) SetOverride(id ThrusterID, params []float64) error {
	if _, ok := s.thrusters[id]; !ok {
		return fmt.Errorf("no thruster %s", id)
	}
	if len(params) != s.controller.Arity() {
		return fmt.Errorf("%s controller expects %d parameters, got %d", s.controller.Type(), s.controller.Arity(), len(params))
	}
	s.overrides[id] = append([]float64(nil), params...)
	return nil
}

// ClearOverrides removes every per thruster parameter.
func (s *Scenario) ClearOverrides() {
	s.overrides = make(map[ThrusterID][]float64)
}

// Reset returns every thruster and grain to its initial state.
func (s *Scenario) Reset() {
	for _, thr := range s.thrusters {
		thr.Reset()
	}
}

// Reseed restarts the random source from the provided seed.
func (s *Scenario) Reseed(seed int64) {
	s.seed = seed
	s.rng.Seed(seed)
}

// Seed returns the last seed of the random source.
func (s *Scenario) Seed() int64 {
	return s.seed
}

// Rand returns the random source shared by the grains of this scenario.
func (s *Scenario) Rand() *rand.Rand {
	return s.rng
}

// Step returns the propagation step (s).
func (s *Scenario) Step() float64 {
	return s.step
}

// Clone returns an independent, reset deep copy drawing from a new source seeded with seed.
func (s *Scenario) Clone(seed int64) *Scenario {
	c := *s
	c.seed = seed
	c.rng = rand.New(rand.NewSource(seed))
	c.params = append([]float64(nil), s.params...)
	c.overrides = make(map[ThrusterID][]float64, len(s.overrides))
	for id, p := range s.overrides {
		c.overrides[id] = append([]float64(nil), p...)
	}
	c.ids = s.IDs()
	c.thrusters = make(map[ThrusterID]*ThrustProfile, len(s.thrusters))
	for id, thr := range s.thrusters {
		c.thrusters[id] = thr.clone(c.rng)
	}
	return &c
}

// commandFor returns the controller parameters applicable to a thruster.
func (s *Scenario) commandFor(id ThrusterID) ([]float64, bool) {
	p, ok := s.overrides[id]
	return p, ok
}
