package spl

import (
	"fmt"
	"math/rand"
)

// ThrusterID is the stable identifier of a thruster within a scenario.
type ThrusterID string

// ThrusterState is the ignition state of a solid thruster.
type ThrusterState uint8

const (
	// Idle thrusters wait for an ignition command.
	Idle ThrusterState = iota + 1
	// Igniting is the transient state of the step on which ignition latched.
	Igniting
	// Burning thrusters produce thrust until their grain is consumed.
	Burning
	// Exhausted is terminal.
	Exhausted
)

func (s ThrusterState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Igniting:
		return "igniting"
	case Burning:
		return "burning"
	case Exhausted:
		return "exhausted"
	}
	panic("cannot stringify unknown thruster state")
}

// ThrusterConfig is the configuration of one thruster.
type ThrusterConfig struct {
	Alpha        float64  // mass flow rate (kg/s)
	BurnDuration float64  // s
	DeadTime     *float64 // rise/decay time constant of the lag model (s)
	LagTime      *float64 // plateau duration of the lag model (s), nil or 0 selects the unlagged law
	Shape        BurnShape
	Propellant   PropellantConfig
	Table        *ThrustTable // if set, replaces the analytic law while burning
}

// ThrustProfile models the ignition and combustion of a single solid thruster.
// SetCommand must be called exactly once per step, before PropagateStep.
type ThrustProfile struct {
	ID    ThrusterID
	shape BurnShape
	alpha float64
	burn  float64
	dead  float64
	lag   float64
	step  float64
	model lagModel
	table *ThrustTable
	grain *PropellantGrain

	state      ThrusterState
	commandOn  bool
	commandSet bool
	commanded  bool
	ignitedNow bool
	burnSteps  int
	wallSteps  int
	thrust     float64
	history    []float64
}

// NewThrustProfile returns a new idle thruster.
func NewThrustProfile(id ThrusterID, conf ThrusterConfig, propellant PropellantSpec, step float64, src *rand.Rand) (*ThrustProfile, error) {
	if conf.Shape == 0 {
		conf.Shape = Neutral
	}
	t := &ThrustProfile{ID: id, shape: conf.Shape, alpha: conf.Alpha, burn: conf.BurnDuration, step: step, table: conf.Table}
	if conf.DeadTime != nil {
		t.dead = *conf.DeadTime
	}
	if conf.LagTime != nil {
		t.lag = *conf.LagTime
	}
	if err := t.validate(t.alpha, t.burn, t.dead, t.lag); err != nil {
		return nil, fmt.Errorf("thruster %s: %w", id, err)
	}
	grain, err := NewPropellantGrain(propellant, conf.Propellant, step, src)
	if err != nil {
		return nil, fmt.Errorf("thruster %s: %w", id, err)
	}
	t.grain = grain
	t.recompute()
	t.Reset()
	return t, nil
}

func (t *ThrustProfile) validate(alpha, burn, dead, lag float64) error {
	if burn <= 0 {
		return newConfigurationError("burn_duration", burn, "must be positive")
	}
	if alpha <= 0 && t.table == nil {
		return newConfigurationError("alpha", alpha, "must be positive")
	}
	if dead < 0 {
		return newConfigurationError("dead_time", dead, "must not be negative")
	}
	if lag < 0 {
		return newConfigurationError("lag_time", lag, "must not be negative")
	}
	if t.table != nil {
		return nil
	}
	if lag == 0 && t.shape != Neutral {
		return &UnsupportedProfileError{t.shape}
	}
	if lag > 0 && dead == 0 {
		return newConfigurationError("dead_time", dead, "lagged profiles need a positive dead time")
	}
	return nil
}

// recompute updates the derived timing constants.
func (t *ThrustProfile) recompute() {
	if t.lag > 0 {
		t.model = newLagModel(t.dead, t.lag, t.burn)
	} else {
		t.model = lagModel{}
	}
}

// SetAlpha sets the mass flow rate.
func (t *ThrustProfile) SetAlpha(alpha float64) error {
	if err := t.validate(alpha, t.burn, t.dead, t.lag); err != nil {
		return err
	}
	t.alpha = alpha
	return nil
}

// SetBurnDuration sets the burn duration and recomputes the timing constants.
func (t *ThrustProfile) SetBurnDuration(burn float64) error {
	if err := t.validate(t.alpha, burn, t.dead, t.lag); err != nil {
		return err
	}
	t.burn = burn
	t.recompute()
	return nil
}

// SetDeadTime sets the dead time and recomputes the timing constants.
func (t *ThrustProfile) SetDeadTime(dead float64) error {
	if err := t.validate(t.alpha, t.burn, dead, t.lag); err != nil {
		return err
	}
	t.dead = dead
	t.recompute()
	return nil
}

// SetLagTime sets the lag time and recomputes the timing constants.
func (t *ThrustProfile) SetLagTime(lag float64) error {
	if err := t.validate(t.alpha, t.burn, t.dead, lag); err != nil {
		return err
	}
	t.lag = lag
	t.recompute()
	return nil
}

// SetCommand sets the firing command of the current step.
// An asserted command is deferred while the grain's dead time has not elapsed.
// Once burning, a solid thruster ignores the command until it is exhausted.
func (t *ThrustProfile) SetCommand(on bool) {
	t.commandSet = true
	t.ignitedNow = false
	switch t.state {
	case Exhausted:
		t.commandOn = false
		return
	case Burning, Igniting:
		t.commandOn = true
		return
	}
	t.commandOn = false
	if !on {
		return
	}
	t.commanded = true
	if !t.grain.DeadTimeElapsed() {
		t.grain.StepDeadTime()
		return
	}
	t.commandOn = true
	t.state = Igniting
}

// PropagateStep computes the thrust of the current step and advances the clocks.
func (t *ThrustProfile) PropagateStep() error {
	if !t.commandSet {
		return fmt.Errorf("thruster %s: %w", t.ID, ErrState)
	}
	t.commandSet = false
	t.thrust = 0
	switch t.state {
	case Igniting:
		t.state = Burning
		t.burnSteps = 0
		t.ignitedNow = true
		t.grain.AdvanceBias()
		fallthrough
	case Burning:
		thrust, burning, err := t.burningThrust(t.BurnElapsed())
		if err != nil {
			return fmt.Errorf("thruster %s: %w", t.ID, err)
		}
		if burning {
			t.thrust = thrust
			t.burnSteps++
		} else {
			t.state = Exhausted
			t.commandOn = false
		}
	}
	t.wallSteps++
	t.history = append(t.history, t.thrust)
	return nil
}

// burningThrust returns the thrust at tb seconds after ignition, and false past the burn extent.
func (t *ThrustProfile) burningThrust(tb float64) (float64, bool, error) {
	if t.table != nil {
		if tb > t.table.Extent() {
			return 0, false, nil
		}
		return t.table.At(tb), true, nil
	}
	if t.lag == 0 {
		if t.shape != Neutral {
			return 0, false, &UnsupportedProfileError{t.shape}
		}
		if tb > t.burn {
			return 0, false, nil
		}
		if t.burnSteps == 0 {
			return t.alpha * t.grain.CharacteristicVelocity(), true, nil
		}
		return t.alpha * t.grain.CharacteristicVelocityWithNoise(), true, nil
	}
	level, burning := t.model.level(t.shape, tb)
	if !burning {
		return 0, false, nil
	}
	if t.burnSteps == 0 {
		// The grain is lighting.
		return 0, true, nil
	}
	return t.alpha * t.grain.CharacteristicVelocityWithNoise() * level, true, nil
}

// Reset returns the thruster and its grain to their initial state.
func (t *ThrustProfile) Reset() {
	t.state = Idle
	t.commandOn = false
	t.commandSet = false
	t.commanded = false
	t.ignitedNow = false
	t.burnSteps = 0
	t.wallSteps = 0
	t.thrust = 0
	t.history = nil
	t.grain.Reset()
}

// clone returns an independent idle copy drawing from src.
func (t *ThrustProfile) clone(src *rand.Rand) *ThrustProfile {
	c := *t
	c.grain = t.grain.clone(src)
	c.Reset()
	return &c
}

// State returns the ignition state.
func (t *ThrustProfile) State() ThrusterState {
	return t.state
}

// Thrust returns the thrust of the last propagated step (N).
func (t *ThrustProfile) Thrust() float64 {
	return t.thrust
}

// History returns the thrust of every propagated step since the last reset.
func (t *ThrustProfile) History() []float64 {
	return t.history
}

// CommandOn returns the effective firing command of the current step.
func (t *ThrustProfile) CommandOn() bool {
	return t.commandOn
}

// Commanded returns whether an ignition was requested since the last reset.
func (t *ThrustProfile) Commanded() bool {
	return t.commanded
}

// Ignited returns whether the ignition has latched.
func (t *ThrustProfile) Ignited() bool {
	return t.state == Burning || t.state == Exhausted
}

// IgnitedThisStep returns whether the ignition latched on the last propagated step.
func (t *ThrustProfile) IgnitedThisStep() bool {
	return t.ignitedNow
}

// Exhausted returns whether the grain is consumed.
func (t *ThrustProfile) Exhausted() bool {
	return t.state == Exhausted
}

// BurnElapsed returns the time since ignition (s).
func (t *ThrustProfile) BurnElapsed() float64 {
	return float64(t.burnSteps) * t.step
}

// WallElapsed returns the time since the start of the simulation (s).
func (t *ThrustProfile) WallElapsed() float64 {
	return float64(t.wallSteps) * t.step
}

// Alpha returns the mass flow rate (kg/s).
func (t *ThrustProfile) Alpha() float64 {
	return t.alpha
}

// BurnDuration returns the burn duration (s).
func (t *ThrustProfile) BurnDuration() float64 {
	return t.burn
}

// DeadTime returns the dead time (s).
func (t *ThrustProfile) DeadTime() float64 {
	return t.dead
}

// LagTime returns the lag time (s).
func (t *ThrustProfile) LagTime() float64 {
	return t.lag
}

// Shape returns the burn shape.
func (t *ThrustProfile) Shape() BurnShape {
	return t.shape
}

// Grain returns the propellant grain owned by this thruster.
func (t *ThrustProfile) Grain() *PropellantGrain {
	return t.grain
}

// TimeToRise returns the time the lagged law takes to reach its plateau, zero without lag.
func (t *ThrustProfile) TimeToRise() float64 {
	return t.model.timeToRise
}

// Extent returns the total burn extent of the selected law (s).
func (t *ThrustProfile) Extent() float64 {
	switch {
	case t.table != nil:
		return t.table.Extent()
	case t.lag == 0:
		return t.burn
	}
	return t.model.extent(t.shape)
}

func (t *ThrustProfile) String() string {
	return fmt.Sprintf("%s (%s, α=%.4f kg/s, tb=%.2f s): %s", t.ID, t.shape, t.alpha, t.burn, t.state)
}
