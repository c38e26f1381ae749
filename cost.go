package spl

import (
	"math"

	"github.com/gonum/floats"
)

// CostFunc scores a run: lower is better. wa weights the position error and wb the velocity error.
type CostFunc func(states []State, thrust []float64, wa, wb float64) float64

const (
	// climbPenalty multiplies the velocity error of a lander which climbed at any time.
	climbPenalty = 100.0
	// groundPenalty multiplies the position error of a lander which went below the ground.
	groundPenalty = 100.0
	// massWeight weighs the squared mass ratio.
	massWeight = 10.0
)

// LandingCost returns the descent cost towards the target state:
// wa*ep^2 + wb*ev^2 + 10*(m0/mf)^2, where ep and ev are the final position and velocity errors.
func LandingCost(target State) CostFunc {
	return func(states []State, thrust []float64, wa, wb float64) float64 {
		if len(states) == 0 {
			return math.Inf(1)
		}
		first, last := states[0], states[len(states)-1]
		pos := make([]float64, len(states))
		vel := make([]float64, len(states))
		for i, s := range states {
			pos[i] = s.Position()
			vel[i] = s.Velocity()
		}
		ep := last.Position() - target.Position()
		ev := last.Velocity() - target.Velocity()
		if floats.Max(vel) > 0 {
			ev *= climbPenalty
		}
		if floats.Min(pos) < 0 {
			ep *= groundPenalty
		}
		mf := last.Mass()
		if mf <= 0 {
			return math.Inf(1)
		}
		ratio := first.Mass() / mf
		cost := wa*ep*ep + wb*ev*ev + massWeight*ratio*ratio
		if math.IsNaN(cost) {
			return math.Inf(1)
		}
		return cost
	}
}
