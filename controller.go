package spl

import (
	"fmt"
	"strings"
)

// ControlLaw defines an enum of firing control laws.
type ControlLaw uint8

const (
	// Linear fires when a*pos + b*vel <= 0.
	Linear ControlLaw = iota + 1
	// Altitude fires below an ignition altitude.
	Altitude
)

func (cl ControlLaw) String() string {
	switch cl {
	case Linear:
		return "linear"
	case Altitude:
		return "altitude"
	}
	panic("cannot stringify unknown control law")
}

// ControlLawFromString returns the control law from its name.
func ControlLawFromString(name string) (ControlLaw, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "affine_function":
		return Linear, nil
	case "altitude", "ga_wo_hamilton":
		return Altitude, nil
	}
	return 0, fmt.Errorf("unknown control law `%s`", name)
}

// Controller defines the firing command interface.
type Controller interface {
	// Command returns whether to fire for the provided parameters and state.
	Command(params []float64, s State) bool
	// Type returns the control law implemented.
	Type() ControlLaw
	// Arity returns the number of parameters expected.
	Arity() int
}

// NewController returns the controller implementing the provided law.
func NewController(cl ControlLaw) (Controller, error) {
	switch cl {
	case Linear:
		return SwitchingSurface{}, nil
	case Altitude:
		return AltitudeThreshold{}, nil
	}
	return nil, fmt.Errorf("control law %d not supported", cl)
}

// SwitchingSurface fires when the state crosses the line a*pos + b*vel = 0.
type SwitchingSurface struct{}

// Command implements the Controller interface.
func (SwitchingSurface) Command(params []float64, s State) bool {
	return params[0]*s.Position()+params[1]*s.Velocity() <= 0
}

// Type implements the Controller interface.
func (SwitchingSurface) Type() ControlLaw {
	return Linear
}

// Arity implements the Controller interface.
func (SwitchingSurface) Arity() int {
	return 2
}

// AltitudeThreshold fires once the altitude is at or below params[0].
type AltitudeThreshold struct{}

// Command implements the Controller interface.
func (AltitudeThreshold) Command(params []float64, s State) bool {
	return s.Position() <= params[0]
}

// Type implements the Controller interface.
func (AltitudeThreshold) Type() ControlLaw {
	return Altitude
}

// Arity implements the Controller interface.
func (AltitudeThreshold) Arity() int {
	return 1
}
