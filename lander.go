package spl

import (
	"fmt"
	"math"
)

// State is the 1D lander state: altitude (m), vertical velocity (m/s) and mass (kg).
type State []float64

// NewState returns a new state.
func NewState(pos, vel, mass float64) State {
	return State{pos, vel, mass}
}

// Position returns the altitude (m).
func (s State) Position() float64 {
	return s[0]
}

// Velocity returns the vertical velocity (m/s), positive upward.
func (s State) Velocity() float64 {
	return s[1]
}

// Mass returns the mass (kg).
func (s State) Mass() float64 {
	return s[2]
}

// Clone returns a copy of the state.
func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) String() string {
	return fmt.Sprintf("h=%.3f m  v=%.3f m/s  m=%.3f kg", s[0], s[1], s[2])
}

// Body defines the central body the lander descends to.
type Body struct {
	Name    string
	Gravity float64 // signed surface gravity (m/s^2), negative downward
	Radius  float64 // m
	μ       float64 // m^3/s^2
}

// GM returns the gravitational parameter.
func (b Body) GM() float64 {
	return b.μ
}

// NewBody returns a new body.
func NewBody(name string, gravity, radius, μ float64) Body {
	return Body{name, gravity, radius, μ}
}

// Moon is the descent target of the reference scenarios.
var Moon = Body{"Moon", -1.62, 1738e3, 4.9048695e12}

// landerDerivative returns the time derivative of the state under a constant thrust.
// cNominal is the nominal exhaust velocity used to convert thrust into mass flow.
func landerDerivative(s State, thrust, gravity, cNominal float64) []float64 {
	fDot := make([]float64, 3)
	fDot[0] = s[1]
	m := s[2]
	if m <= 0 || math.IsNaN(m) {
		// Nothing left to accelerate: the loop stops on the next check.
		fDot[1] = gravity
		return fDot
	}
	fDot[1] = thrust/m + gravity
	fDot[2] = -thrust / cNominal
	return fDot
}
