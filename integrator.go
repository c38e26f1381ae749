package spl

import (
	"fmt"

	"github.com/ChristopherRabotin/ode"
	"github.com/gonum/floats"
)

// Integrator solves an ode.Integrable on a fixed step until it requests to stop.
// Implementations must be deterministic for identical inputs.
type Integrator interface {
	Solve(inte ode.Integrable, t0, step float64)
	String() string
}

// RK4 is the fourth order Runge Kutta integrator.
type RK4 struct{}

// Solve implements the Integrator interface.
func (RK4) Solve(inte ode.Integrable, t0, step float64) {
	ode.NewRK4(t0, step, inte).Solve() // Blocking.
}

func (RK4) String() string {
	return "rk4"
}

// Euler is the explicit first order integrator.
type Euler struct{}

// Solve implements the Integrator interface.
func (Euler) Solve(inte ode.Integrable, t0, step float64) {
	t := t0
	for iterNum := 0; !inte.Stop(t); iterNum++ {
		state := inte.GetState()
		next := make([]float64, len(state))
		floats.AddScaledTo(next, state, step, inte.Func(t, state))
		t = t0 + float64(iterNum+1)*step
		inte.SetState(t, next)
	}
}

func (Euler) String() string {
	return "euler"
}

// IntegratorFromString returns the integrator of that name.
func IntegratorFromString(name string) (Integrator, error) {
	switch name {
	case "rk4", "":
		return RK4{}, nil
	case "euler":
		return Euler{}, nil
	}
	return nil, fmt.Errorf("unknown integrator `%s`", name)
}
